// Package scheduler holds the time arithmetic behind room reservations: the
// half-open interval model and the resolver that decides whether a slot is
// still free given the bookings already held on a room.
package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/room-booking/internal/booking"
)

// Reservation is the slice of a booking the resolver needs.
type Reservation struct {
	ID       string
	RoomID   string
	Interval Interval
	Status   booking.Status
}

// Conflict pairs the candidate with an existing reservation that blocks it.
type Conflict struct {
	WithReservationID string
	RoomID            string
	Interval          Interval
	Status            booking.Status
}

// DetectConflicts returns every reservation in existing that sits on the
// candidate's room, holds a blocking status and overlaps the candidate.
// The candidate's own id is never reported. Results are ordered by start time.
func DetectConflicts(existing []Reservation, candidate Reservation, blocking booking.StatusSet) []Conflict {
	var conflicts []Conflict
	for _, r := range existing {
		if r.ID != "" && r.ID == candidate.ID {
			continue
		}
		if r.RoomID != candidate.RoomID {
			continue
		}
		if !blocking.Contains(r.Status) {
			continue
		}
		if !r.Interval.Overlaps(candidate.Interval) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithReservationID: r.ID,
			RoomID:            r.RoomID,
			Interval:          r.Interval,
			Status:            r.Status,
		})
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Interval.Start.Before(conflicts[j].Interval.Start)
	})
	return conflicts
}

// ReservationSource narrows the bookings of one room to those holding one of
// statuses and overlapping window. Implementations may over-return; the
// resolver re-applies the predicate.
type ReservationSource interface {
	ReservationsForRoom(ctx context.Context, roomID string, statuses booking.StatusSet, window Interval) ([]Reservation, error)
}

// ReservationSourceFunc adapts a function to ReservationSource.
type ReservationSourceFunc func(ctx context.Context, roomID string, statuses booking.StatusSet, window Interval) ([]Reservation, error)

// ReservationsForRoom calls f.
func (f ReservationSourceFunc) ReservationsForRoom(ctx context.Context, roomID string, statuses booking.StatusSet, window Interval) ([]Reservation, error) {
	return f(ctx, roomID, statuses, window)
}

// Resolver answers whether a room slot is free.
type Resolver struct {
	source ReservationSource
}

// NewResolver constructs a resolver reading from source.
func NewResolver(source ReservationSource) *Resolver {
	return &Resolver{source: source}
}

// FindConflict returns the earliest blocking reservation overlapping window on
// roomID, ignoring excludeID. A nil result means the slot is free.
func (r *Resolver) FindConflict(ctx context.Context, roomID string, window Interval, blocking booking.StatusSet, excludeID string) (*Conflict, error) {
	if r == nil || r.source == nil {
		return nil, fmt.Errorf("scheduler: resolver has no reservation source")
	}
	if len(blocking) == 0 {
		return nil, nil
	}

	existing, err := r.source.ReservationsForRoom(ctx, roomID, blocking, window)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load reservations for room %s: %w", roomID, err)
	}

	conflicts := DetectConflicts(existing, Reservation{ID: excludeID, RoomID: roomID, Interval: window}, blocking)
	if len(conflicts) == 0 {
		return nil, nil
	}
	return &conflicts[0], nil
}

// HasConflict is the boolean form of FindConflict.
func (r *Resolver) HasConflict(ctx context.Context, roomID string, window Interval, blocking booking.StatusSet, excludeID string) (bool, error) {
	conflict, err := r.FindConflict(ctx, roomID, window, blocking, excludeID)
	if err != nil {
		return false, err
	}
	return conflict != nil, nil
}
