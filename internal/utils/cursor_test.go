package utils

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestShiftCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 4, 8, 30, 0, 123, time.FixedZone("x", 3600))

	enc, err := EncodeShiftCursor(at, "shift-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeShiftCursor(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.ClockInTime.Equal(at) || got.ID != "shift-1" {
		t.Fatalf("unexpected cursor %+v", got)
	}
}

func TestDecodeShiftCursorRejectsGarbage(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"not_base64": "%%%",
		"not_json":   base64.RawURLEncoding.EncodeToString([]byte("nope")),
		"missing_id": base64.RawURLEncoding.EncodeToString([]byte(`{"clockInTime":"2024-01-01T00:00:00Z"}`)),
		"zero_time":  base64.RawURLEncoding.EncodeToString([]byte(`{"id":"x"}`)),
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeShiftCursor(in); !errors.Is(err, ErrInvalidCursor) {
				t.Fatalf("got %v, want ErrInvalidCursor", err)
			}
		})
	}
}

func TestAnalyticsCacheKeysPerOrganization(t *testing.T) {
	a := AnalyticsCacheKeys("org-a")
	b := AnalyticsCacheKeys("org-b")

	if len(a) != 2 || a[0] == b[0] || a[1] == b[1] || a[0] == a[1] {
		t.Fatalf("keys must differ per org and kind: %v %v", a, b)
	}
}
