package notifications

import (
	"context"
	"time"
)

// StaleShift describes a shift that has been open longer than the configured threshold.
type StaleShift struct {
	ShiftID        string
	UserID         string
	OrganizationID string
	ClockInTime    time.Time
	OpenFor        time.Duration
}

type Notifier interface {
	NotifyStaleShift(ctx context.Context, in StaleShift) error
}
