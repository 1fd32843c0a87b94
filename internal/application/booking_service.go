package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// BookingRepository captures the persistence interactions needed by the service.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, update BookingStatusUpdate) (Booking, error)
	ListBookingsForRoom(ctx context.Context, roomID string, statuses booking.StatusSet, window scheduler.Interval) ([]Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// RoomDirectory exposes room lookup by id.
type RoomDirectory interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// RoomLocker opens a per-room mutual exclusion scope. The returned function
// closes it.
type RoomLocker interface {
	LockRoom(ctx context.Context, roomID string) (func(), error)
}

// maxCancelAttempts bounds how often Cancel re-reads a booking whose status
// moved underneath it.
const maxCancelAttempts = 3

// BookingService orchestrates validation, conflict resolution, authorization
// and persistence for the booking workflow.
type BookingService struct {
	bookings    BookingRepository
	rooms       RoomDirectory
	locker      RoomLocker
	resolver    *scheduler.Resolver
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings BookingRepository, rooms RoomDirectory, locker RoomLocker, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, locker, idGenerator, now, nil)
}

// NewBookingServiceWithLogger wires dependencies with a specified logger. A nil
// locker falls back to an in-process lock.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomDirectory, locker RoomLocker, idGenerator func() string, now func() time.Time, logger *zap.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	s := &BookingService{
		bookings:    bookings,
		rooms:       rooms,
		locker:      locker,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
	s.resolver = scheduler.NewResolver(scheduler.ReservationSourceFunc(s.reservationsForRoom))
	return s
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, fields...)
}

func (s *BookingService) configured() error {
	if s.bookings == nil || s.rooms == nil {
		return fmt.Errorf("booking service dependencies not configured")
	}
	return nil
}

// CreateBooking validates a request and stores it awaiting administrator approval.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (created Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	principal := params.Principal
	input := params.Input
	logger := s.loggerWith(ctx, "CreateBooking",
		zap.String("principal_id", principal.UserID),
		zap.String("room_id", input.RoomID),
	)
	defer func() {
		if err != nil {
			logFailure(logger, "failed to create booking", err)
			return
		}
		logger.Info("booking requested", zap.String("booking_id", created.ID))
	}()

	if !booking.Authorize(booking.OpCreate, principal.actor(), "") {
		err = ErrUnauthorized
		return
	}
	if err = s.configured(); err != nil {
		return
	}

	input.RoomID = strings.TrimSpace(input.RoomID)
	input.Purpose = strings.TrimSpace(input.Purpose)

	if vErr := validateRequiredFields(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if input.Start.Before(s.now()) {
		err = newValidationError(msgStartInPast, "start_time")
		return
	}
	window, ivErr := scheduler.NewInterval(input.Start, input.End)
	if ivErr != nil {
		err = newValidationError(msgEndBeforeStart, "end_time")
		return
	}

	room, rErr := s.rooms.GetRoom(ctx, input.RoomID)
	if rErr != nil {
		err = mapRoomLookupError(rErr, input.RoomID)
		return
	}
	if input.Attendees > room.Capacity {
		err = &CapacityExceededError{RoomID: room.ID, Capacity: room.Capacity, Requested: input.Attendees}
		return
	}

	createdAt := s.now()
	candidate := Booking{
		ID:          s.idGenerator(),
		RoomID:      room.ID,
		RequesterID: principal.UserID,
		Start:       window.Start,
		End:         window.End,
		Purpose:     input.Purpose,
		Attendees:   input.Attendees,
		Status:      booking.Initial(),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	err = s.withRoomLock(ctx, room.ID, func() error {
		conflict, cErr := s.resolver.FindConflict(ctx, room.ID, window, booking.CreationBlocking(), "")
		if cErr != nil {
			return internalError("check room availability", cErr)
		}
		if conflict != nil {
			return &ConflictError{Phase: ConflictAtCreation, RoomID: room.ID, ConflictingID: conflict.WithReservationID}
		}

		persisted, pErr := s.bookings.CreateBooking(ctx, candidate)
		if pErr != nil {
			return mapBookingRepoError(pErr, candidate.ID)
		}
		created = persisted
		return nil
	})
	if err != nil {
		return
	}

	created.Room = summarizeRoom(room)
	return
}

// DecideBooking records an administrator's approval or rejection of a pending request.
// It deliberately does not re-check conflicts; competing approvals are settled at confirmation.
func (s *BookingService) DecideBooking(ctx context.Context, params DecideBookingParams) (updated Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "DecideBooking",
		zap.String("principal_id", principal.UserID),
		zap.String("booking_id", params.BookingID),
		zap.String("target_status", string(params.Target)),
	)
	defer func() {
		if err != nil {
			logFailure(logger, "failed to decide booking", err)
			return
		}
		logger.Info("booking decided", zap.String("status", string(updated.Status)))
	}()

	if !booking.Authorize(booking.OpDecide, principal.actor(), "") {
		err = ErrUnauthorized
		return
	}
	if err = s.configured(); err != nil {
		return
	}
	if !booking.DecisionTargets().Contains(params.Target) {
		err = &InvalidTransitionError{To: params.Target, Message: msgInvalidDecision}
		return
	}

	reason := strings.TrimSpace(params.Reason)
	if params.Target == booking.StatusRejected && reason == "" {
		err = newValidationError(msgRejectionReason, "rejection_reason")
		return
	}

	current, gErr := s.bookings.GetBooking(ctx, params.BookingID)
	if gErr != nil {
		err = mapBookingRepoError(gErr, params.BookingID)
		return
	}
	if tErr := booking.CheckTransition(booking.OpDecide, current.Status, params.Target); tErr != nil {
		err = &InvalidTransitionError{From: current.Status, To: params.Target}
		return
	}

	update := BookingStatusUpdate{From: current.Status, To: params.Target, UpdatedAt: s.now()}
	if params.Target == booking.StatusRejected {
		update.RejectionReason = &reason
	}

	updated, err = s.bookings.UpdateBookingStatus(ctx, current.ID, update)
	if err != nil {
		err = mapBookingRepoError(err, current.ID)
		return
	}
	s.attachRooms(ctx, []*Booking{&updated})
	return
}

// ConfirmBooking commits an approved booking on behalf of its requester. The
// slot is re-checked against confirmed bookings under the room lock, so of two
// approved overlapping requests only the first to confirm wins.
func (s *BookingService) ConfirmBooking(ctx context.Context, params BookingActionParams) (updated Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "ConfirmBooking",
		zap.String("principal_id", principal.UserID),
		zap.String("booking_id", params.BookingID),
	)
	defer func() {
		if err != nil {
			logFailure(logger, "failed to confirm booking", err)
			return
		}
		logger.Info("booking confirmed")
	}()

	if err = s.configured(); err != nil {
		return
	}

	current, gErr := s.bookings.GetBooking(ctx, params.BookingID)
	if gErr != nil {
		err = mapBookingRepoError(gErr, params.BookingID)
		return
	}
	if !booking.Authorize(booking.OpConfirm, principal.actor(), current.RequesterID) {
		err = ErrUnauthorized
		return
	}
	if current.Status != booking.StatusPendingEmployeeConfirmation {
		err = &InvalidTransitionError{From: current.Status, To: booking.StatusConfirmed, Message: msgNotAwaitingConfirm}
		return
	}

	err = s.withRoomLock(ctx, current.RoomID, func() error {
		fresh, fErr := s.bookings.GetBooking(ctx, current.ID)
		if fErr != nil {
			return mapBookingRepoError(fErr, current.ID)
		}
		if tErr := booking.CheckTransition(booking.OpConfirm, fresh.Status, booking.StatusConfirmed); tErr != nil {
			return &InvalidTransitionError{From: fresh.Status, To: booking.StatusConfirmed, Message: msgNotAwaitingConfirm}
		}

		conflict, cErr := s.resolver.FindConflict(ctx, fresh.RoomID, fresh.Interval(), booking.ConfirmationBlocking(), fresh.ID)
		if cErr != nil {
			return internalError("check room availability", cErr)
		}
		if conflict != nil {
			return &ConflictError{Phase: ConflictAtConfirmation, RoomID: fresh.RoomID, ConflictingID: conflict.WithReservationID}
		}

		confirmedAt := s.now()
		persisted, uErr := s.bookings.UpdateBookingStatus(ctx, fresh.ID, BookingStatusUpdate{
			From:        fresh.Status,
			To:          booking.StatusConfirmed,
			ConfirmedAt: &confirmedAt,
			UpdatedAt:   confirmedAt,
		})
		if uErr != nil {
			return mapBookingRepoError(uErr, fresh.ID)
		}
		updated = persisted
		return nil
	})
	if err != nil {
		return
	}
	s.attachRooms(ctx, []*Booking{&updated})
	return
}

// CancelBooking withdraws a booking that has not already reached a terminal state.
func (s *BookingService) CancelBooking(ctx context.Context, params BookingActionParams) (updated Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "CancelBooking",
		zap.String("principal_id", principal.UserID),
		zap.String("booking_id", params.BookingID),
	)
	defer func() {
		if err != nil {
			logFailure(logger, "failed to cancel booking", err)
			return
		}
		logger.Info("booking cancelled")
	}()

	if err = s.configured(); err != nil {
		return
	}

	for attempt := 1; ; attempt++ {
		current, gErr := s.bookings.GetBooking(ctx, params.BookingID)
		if gErr != nil {
			err = mapBookingRepoError(gErr, params.BookingID)
			return
		}
		if !booking.Authorize(booking.OpCancel, principal.actor(), current.RequesterID) {
			err = ErrUnauthorized
			return
		}
		if tErr := booking.CheckTransition(booking.OpCancel, current.Status, booking.StatusCancelledByEmployee); tErr != nil {
			err = &InvalidTransitionError{From: current.Status, To: booking.StatusCancelledByEmployee}
			return
		}

		updated, err = s.bookings.UpdateBookingStatus(ctx, current.ID, BookingStatusUpdate{
			From:      current.Status,
			To:        booking.StatusCancelledByEmployee,
			UpdatedAt: s.now(),
		})
		if err == nil {
			break
		}
		if errors.Is(err, persistence.ErrStaleStatus) && attempt < maxCancelAttempts {
			continue
		}
		err = mapBookingRepoError(err, current.ID)
		return
	}

	s.attachRooms(ctx, []*Booking{&updated})
	return
}

// GetBooking returns one booking to its requester or an administrator.
func (s *BookingService) GetBooking(ctx context.Context, params BookingActionParams) (found Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if err = s.configured(); err != nil {
		return
	}

	found, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err, params.BookingID)
		s.loggerWith(ctx, "GetBooking", zap.String("booking_id", params.BookingID)).
			Debug("booking lookup failed", zap.Error(err))
		return
	}
	if !booking.Authorize(booking.OpGet, params.Principal.actor(), found.RequesterID) {
		found = Booking{}
		err = ErrUnauthorized
		return
	}
	s.attachRooms(ctx, []*Booking{&found})
	return
}

// ListBookings returns every booking to administrators and only the caller's
// own bookings to everyone else, ordered by start time.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "ListBookings",
		zap.String("principal_id", principal.UserID),
		zap.Bool("admin", principal.IsAdmin()),
	)
	defer func() {
		if err != nil {
			logFailure(logger, "failed to list bookings", err)
			return
		}
		logger.Info("bookings listed", zap.Int("result_count", len(bookings)))
	}()

	if !booking.Authorize(booking.OpList, principal.actor(), "") {
		err = ErrUnauthorized
		return
	}
	if err = s.configured(); err != nil {
		return
	}

	filter := BookingFilter{RoomID: strings.TrimSpace(params.RoomID)}
	for _, status := range params.Statuses {
		if !status.Valid() {
			err = newValidationError(fmt.Sprintf("unknown booking status %q", status), "status")
			return
		}
		if !filter.Statuses.Contains(status) {
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if !principal.IsAdmin() {
		filter.RequesterID = principal.UserID
	}

	var raw []Booking
	raw, err = s.bookings.ListBookings(ctx, filter)
	if err != nil {
		err = internalError("list bookings", err)
		return
	}

	bookings = make([]Booking, 0, len(raw))
	for _, b := range raw {
		if filter.RequesterID != "" && b.RequesterID != filter.RequesterID {
			continue
		}
		bookings = append(bookings, b)
	}
	sortByStart(bookings)

	refs := make([]*Booking, len(bookings))
	for i := range bookings {
		refs[i] = &bookings[i]
	}
	s.attachRooms(ctx, refs)
	return
}

func (s *BookingService) withRoomLock(ctx context.Context, roomID string, fn func() error) error {
	release, err := s.locker.LockRoom(ctx, roomID)
	if err != nil {
		return internalError("lock room "+roomID, err)
	}
	defer release()
	return fn()
}

func (s *BookingService) reservationsForRoom(ctx context.Context, roomID string, statuses booking.StatusSet, window scheduler.Interval) ([]scheduler.Reservation, error) {
	held, err := s.bookings.ListBookingsForRoom(ctx, roomID, statuses, window)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Reservation, 0, len(held))
	for _, b := range held {
		out = append(out, scheduler.Reservation{
			ID:       b.ID,
			RoomID:   b.RoomID,
			Interval: b.Interval(),
			Status:   b.Status,
		})
	}
	return out, nil
}

// attachRooms fills the room summary of each booking. Lookup failures leave
// the summary empty rather than failing the read.
func (s *BookingService) attachRooms(ctx context.Context, bookings []*Booking) {
	if s.rooms == nil || len(bookings) == 0 {
		return
	}
	cache := make(map[string]*RoomSummary)
	for _, b := range bookings {
		summary, seen := cache[b.RoomID]
		if !seen {
			room, err := s.rooms.GetRoom(ctx, b.RoomID)
			if err == nil {
				summary = summarizeRoom(room)
			}
			cache[b.RoomID] = summary
		}
		b.Room = summary
	}
}

func validateRequiredFields(input BookingInput) *ValidationError {
	vErr := &ValidationError{}

	if input.RoomID == "" {
		vErr.add("room_id", "room is required")
	}
	if input.Start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if input.End.IsZero() {
		vErr.add("end_time", "end time is required")
	}
	if input.Purpose == "" {
		vErr.add("purpose", "purpose is required")
	}
	if input.Attendees <= 0 {
		vErr.add("attendees", "attendees must be a positive integer")
	}

	if vErr.HasErrors() {
		vErr.Message = msgMissingFields
	}
	return vErr
}

func sortByStart(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
}

func mapRoomLookupError(err error, roomID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return &NotFoundError{Entity: EntityRoom, ID: roomID}
	}
	return internalError("look up room", err)
}

func mapBookingRepoError(err error, bookingID string) error {
	if err == nil {
		return nil
	}

	var (
		conflict   *ConflictError
		transition *InvalidTransitionError
		vErr       *ValidationError
	)
	switch {
	case errors.As(err, &conflict), errors.As(err, &transition), errors.As(err, &vErr):
		return err
	case errors.Is(err, ErrUnauthorized):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return &NotFoundError{Entity: EntityBooking, ID: bookingID}
	case errors.Is(err, persistence.ErrStaleStatus):
		return &InvalidTransitionError{Message: msgConcurrentStatusChange}
	}
	return internalError("booking storage", err)
}
