package testfixtures

import (
	"sync"
	"time"
)

// Clock is the injectable time source handed to services under test. It only
// moves when a test calls Advance.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns the clock as a service dependency. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Slot returns a booking window on the day that is days after the clock's
// current day, starting at startHour and lasting the given number of hours.
func (c *Clock) Slot(days, startHour, hours int) (time.Time, time.Time) {
	day := c.Now().Truncate(24 * time.Hour).AddDate(0, 0, days)
	start := day.Add(time.Duration(startHour) * time.Hour)
	return start, start.Add(time.Duration(hours) * time.Hour)
}
