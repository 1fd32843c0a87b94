// Package adapter bridges persistence repositories to the interfaces the
// application services depend on.
package adapter

import (
	"context"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// RoomRepository adapts persistence.RoomRepository to application.RoomRepository
// and application.RoomDirectory.
type RoomRepository struct {
	repo persistence.RoomRepository
}

var (
	_ application.RoomRepository = (*RoomRepository)(nil)
	_ application.RoomDirectory  = (*RoomRepository)(nil)
)

func NewRoomRepository(repo persistence.RoomRepository) *RoomRepository {
	return &RoomRepository{repo: repo}
}

func (a *RoomRepository) UpsertRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpsertRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	stored, err := a.repo.GetRoom(ctx, room.ID)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *RoomRepository) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *RoomRepository) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

// BookingRepository adapts persistence.BookingRepository to application.BookingRepository.
type BookingRepository struct {
	repo persistence.BookingRepository
}

var _ application.BookingRepository = (*BookingRepository)(nil)

func NewBookingRepository(repo persistence.BookingRepository) *BookingRepository {
	return &BookingRepository{repo: repo}
}

func (a *BookingRepository) CreateBooking(ctx context.Context, b application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(b)); err != nil {
		return application.Booking{}, err
	}
	stored, err := a.repo.GetBooking(ctx, b.ID)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *BookingRepository) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *BookingRepository) UpdateBookingStatus(ctx context.Context, id string, update application.BookingStatusUpdate) (application.Booking, error) {
	stored, err := a.repo.UpdateBookingStatus(ctx, id, persistence.StatusUpdate{
		FromStatus:      update.From.String(),
		ToStatus:        update.To.String(),
		RejectionReason: cloneString(update.RejectionReason),
		ConfirmedAt:     cloneTime(update.ConfirmedAt),
		UpdatedAt:       update.UpdatedAt,
	})
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *BookingRepository) ListBookingsForRoom(ctx context.Context, roomID string, statuses booking.StatusSet, window scheduler.Interval) ([]application.Booking, error) {
	models, err := a.repo.ListBookingsForRoom(ctx, roomID, statuses.Strings(), window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a *BookingRepository) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, persistence.BookingFilter{
		RequesterID: filter.RequesterID,
		RoomID:      filter.RoomID,
		Statuses:    filter.Statuses.Strings(),
	})
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:         model.ID,
		Name:       model.Name,
		Location:   model.Location,
		Capacity:   model.Capacity,
		Facilities: cloneStrings(model.Facilities),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:         room.ID,
		Name:       room.Name,
		Location:   room.Location,
		Capacity:   room.Capacity,
		Facilities: cloneStrings(room.Facilities),
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
	}
}

func toApplicationBookings(models []persistence.Booking) []application.Booking {
	if len(models) == 0 {
		return nil
	}
	out := make([]application.Booking, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationBooking(model))
	}
	return out
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:              model.ID,
		RoomID:          model.RoomID,
		RequesterID:     model.RequesterID,
		Start:           model.Start,
		End:             model.End,
		Purpose:         model.Purpose,
		Attendees:       model.Attendees,
		Status:          booking.Status(model.Status),
		RejectionReason: cloneString(model.RejectionReason),
		ConfirmedAt:     cloneTime(model.ConfirmedAt),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceBooking(b application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:              b.ID,
		RoomID:          b.RoomID,
		RequesterID:     b.RequesterID,
		Start:           b.Start,
		End:             b.End,
		Purpose:         b.Purpose,
		Attendees:       b.Attendees,
		Status:          b.Status.String(),
		RejectionReason: cloneString(b.RejectionReason),
		ConfirmedAt:     cloneTime(b.ConfirmedAt),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
