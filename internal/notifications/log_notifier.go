package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes stale-shift alerts to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyStaleShift(ctx context.Context, in StaleShift) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.WarnContext(ctx, "notification.stale_shift",
		"shift_id", in.ShiftID,
		"user_id", in.UserID,
		"organization_id", in.OrganizationID,
		"clock_in_time", in.ClockInTime,
		"open_hours", in.OpenFor.Hours(),
	)
	return nil
}
