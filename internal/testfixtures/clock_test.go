package testfixtures

import (
	"testing"
	"time"
)

func TestClock_StartsAtReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClock_AdvanceIsVisibleThroughNowFunc(t *testing.T) {
	start := time.Date(2030, time.June, 3, 8, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	now := clock.NowFunc()

	if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("Advance returned %v", got)
	}
	if got := now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("NowFunc did not follow the clock: %v", got)
	}

	var nilClock *Clock
	if nilClock.NowFunc() == nil {
		t.Fatalf("nil clock must fall back to time.Now")
	}
}

func TestClock_Slot(t *testing.T) {
	clock := NewClock(time.Date(2030, time.June, 3, 17, 45, 0, 0, time.UTC))

	start, end := clock.Slot(1, 9, 2)
	wantStart := time.Date(2030, time.June, 4, 9, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantStart.Add(2*time.Hour)) {
		t.Fatalf("unexpected slot %v - %v", start, end)
	}

	// Back-to-back slots share an endpoint.
	_, firstEnd := clock.Slot(1, 9, 1)
	secondStart, _ := clock.Slot(1, 10, 1)
	if !firstEnd.Equal(secondStart) {
		t.Fatalf("expected adjacent slots, got %v and %v", firstEnd, secondStart)
	}
}
