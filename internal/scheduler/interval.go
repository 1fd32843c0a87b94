package scheduler

import (
	"errors"
	"time"
)

// ErrEmptyInterval is returned when an interval would not end after it starts.
var ErrEmptyInterval = errors.New("scheduler: interval end must be after start")

// Interval is the half-open range [Start, End). Two back-to-back intervals
// sharing a boundary instant never overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval, rejecting ranges where start is not before end.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, ErrEmptyInterval
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether i and o share at least one instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsZero reports whether both bounds are unset.
func (i Interval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}
