package expense

import (
	"errors"
	"strings"
	"time"
)

// Timestamp mirrors the document store's native representation: whole
// seconds since the Unix epoch plus the nanosecond remainder.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC()

	return Timestamp{
		Seconds:     t.Unix(),
		Nanoseconds: int32(t.Nanosecond()),
	}
}

func NewTimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanoseconds)).UTC()
}

// DateString formats the timestamp as a calendar date in UTC.
func (ts Timestamp) DateString() string {
	return ts.Time().Format(time.DateOnly)
}

var ErrInvalidDate = errors.New("invalid date")

// ParseDate accepts a calendar date (2024-01-01, read as UTC midnight) or a
// full RFC 3339 timestamp.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	t, err := time.Parse(time.DateOnly, raw)

	if err == nil {
		return t.UTC(), nil
	}

	t, err = time.Parse(time.RFC3339Nano, raw)

	if err != nil {
		return time.Time{}, ErrInvalidDate
	}

	return t.UTC(), nil
}
