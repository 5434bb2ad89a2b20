package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// ShiftCursor marks the last row of a clockInTime-descending shift page.
type ShiftCursor struct {
	ClockInTime time.Time `json:"clockInTime"`
	ID          string    `json:"id"`
}

func EncodeShiftCursor(clockIn time.Time, id string) (string, error) {
	b, err := json.Marshal(ShiftCursor{ClockInTime: clockIn.UTC(), ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeShiftCursor(cursor string) (ShiftCursor, error) {
	if cursor == "" {
		return ShiftCursor{}, ErrInvalidCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return ShiftCursor{}, ErrInvalidCursor
	}

	var c ShiftCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ShiftCursor{}, ErrInvalidCursor
	}
	if c.ID == "" || c.ClockInTime.IsZero() {
		return ShiftCursor{}, ErrInvalidCursor
	}
	return c, nil
}
