package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeNotifier struct {
	calls int
	fn    func(ctx context.Context, in StaleShift) error
}

func (f *fakeNotifier) NotifyStaleShift(ctx context.Context, in StaleShift) error {
	f.calls++
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, in)
}

func TestProtectedNotifier_OpensAfterThreshold(t *testing.T) {
	boom := errors.New("sink down")
	inner := &fakeNotifier{fn: func(context.Context, StaleShift) error { return boom }}

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Minute})
	n.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := n.NotifyStaleShift(context.Background(), StaleShift{}); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected sink error, got %v", i, err)
		}
	}

	if !n.Open() {
		t.Fatalf("expected circuit to be open")
	}
	if err := n.NotifyStaleShift(context.Background(), StaleShift{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected inner to be skipped while open, calls=%d", inner.calls)
	}
}

func TestProtectedNotifier_HalfOpenRecovers(t *testing.T) {
	fail := true
	inner := &fakeNotifier{fn: func(context.Context, StaleShift) error {
		if fail {
			return errors.New("sink down")
		}
		return nil
	}}

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Minute})
	n.now = func() time.Time { return now }

	_ = n.NotifyStaleShift(context.Background(), StaleShift{})
	if !n.Open() {
		t.Fatalf("expected open")
	}

	now = now.Add(time.Minute)
	fail = false

	if err := n.NotifyStaleShift(context.Background(), StaleShift{}); err != nil {
		t.Fatalf("expected trial call to succeed, got %v", err)
	}
	if n.Open() {
		t.Fatalf("expected circuit to close after a successful trial")
	}
}

func TestProtectedNotifier_HalfOpenFailureReopens(t *testing.T) {
	inner := &fakeNotifier{fn: func(context.Context, StaleShift) error { return errors.New("still down") }}

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Minute})
	n.now = func() time.Time { return now }

	_ = n.NotifyStaleShift(context.Background(), StaleShift{})
	now = now.Add(2 * time.Minute)
	_ = n.NotifyStaleShift(context.Background(), StaleShift{})

	if !n.Open() {
		t.Fatalf("expected failed trial to reopen the circuit")
	}
}

func TestProtectedNotifier_AppliesTimeout(t *testing.T) {
	inner := &fakeNotifier{fn: func(ctx context.Context, _ StaleShift) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{Timeout: 10 * time.Millisecond})

	err := n.NotifyStaleShift(context.Background(), StaleShift{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
