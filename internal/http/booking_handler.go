package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/booking"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	DecideBooking(ctx context.Context, params application.DecideBookingParams) (application.Booking, error)
	ConfirmBooking(ctx context.Context, params application.BookingActionParams) (application.Booking, error)
	CancelBooking(ctx context.Context, params application.BookingActionParams) (application.Booking, error)
	GetBooking(ctx context.Context, params application.BookingActionParams) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *zap.Logger
}

func NewBookingHandler(service bookingService, logger *zap.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	if h == nil {
		return zap.L()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, fields...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", zap.String("principal_id", principal.UserID), zap.String("error_kind", "bad_request")).
			Warn("failed to decode booking request", zap.Error(err))
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	input, fieldErrors := req.toInput()
	if len(fieldErrors) > 0 {
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "Times must be RFC 3339 timestamps",
			Errors:    fieldErrors,
		})
		return
	}

	logger := h.log(r.Context(), "Create", zap.String("principal_id", principal.UserID), zap.String("room_id", input.RoomID))

	created, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.Debug("booking creation failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info("booking created", zap.String("booking_id", created.ID))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(created)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.act(w, r, "Get", h.service.GetBooking)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.act(w, r, "Confirm", h.service.ConfirmBooking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.act(w, r, "Cancel", h.service.CancelBooking)
}

// act runs a single-booking operation addressed by the path id.
func (h *BookingHandler) act(w http.ResponseWriter, r *http.Request, operation string, call func(context.Context, application.BookingActionParams) (application.Booking, error)) {
	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, zap.String("principal_id", principal.UserID), zap.String("booking_id", bookingID))

	result, err := call(r.Context(), application.BookingActionParams{Principal: principal, BookingID: bookingID})
	if err != nil {
		logger.Debug("booking action failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info("booking action completed", zap.String("status", result.Status.String()))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(result)})
}

func (h *BookingHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req decideBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Decide", zap.String("booking_id", bookingID), zap.String("error_kind", "bad_request")).
			Warn("failed to decode decision", zap.Error(err))
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	target := booking.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	logger := h.log(r.Context(), "Decide",
		zap.String("principal_id", principal.UserID),
		zap.String("booking_id", bookingID),
		zap.String("target_status", target.String()),
	)

	updated, err := h.service.DecideBooking(r.Context(), application.DecideBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Target:    target,
		Reason:    req.RejectionReason,
	})
	if err != nil {
		logger.Debug("booking decision failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info("booking decided")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(updated)})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	var statuses []booking.Status
	for _, raw := range query["status"] {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				statuses = append(statuses, booking.Status(strings.ToUpper(trimmed)))
			}
		}
	}

	logger := h.log(r.Context(), "List", zap.String("principal_id", principal.UserID))
	bookings, err := h.service.ListBookings(r.Context(), application.ListBookingsParams{
		Principal: principal,
		RoomID:    query.Get("room_id"),
		Statuses:  statuses,
	})
	if err != nil {
		logger.Debug("booking list failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info("bookings listed", zap.Int("result_count", len(bookings)))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

type createBookingRequest struct {
	RoomID    string `json:"room_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Purpose   string `json:"purpose"`
	Attendees int    `json:"attendees"`
}

// toInput parses timestamps. Empty values stay zero so the service reports
// them as missing fields.
func (r createBookingRequest) toInput() (application.BookingInput, map[string]string) {
	input := application.BookingInput{
		RoomID:    strings.TrimSpace(r.RoomID),
		Purpose:   r.Purpose,
		Attendees: r.Attendees,
	}
	fieldErrors := make(map[string]string)
	if v := strings.TrimSpace(r.StartTime); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fieldErrors["start_time"] = "start_time must be an RFC 3339 timestamp"
		}
		input.Start = t
	}
	if v := strings.TrimSpace(r.EndTime); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fieldErrors["end_time"] = "end_time must be an RFC 3339 timestamp"
		}
		input.End = t
	}
	return input, fieldErrors
}

type decideBookingRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type bookingDTO struct {
	ID              string          `json:"id"`
	RoomID          string          `json:"room_id"`
	RequesterID     string          `json:"requester_id"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	Purpose         string          `json:"purpose"`
	Attendees       int             `json:"attendees"`
	Status          string          `json:"status"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	ConfirmedAt     *string         `json:"confirmed_at,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
	Room            *roomSummaryDTO `json:"room,omitempty"`
}

type roomSummaryDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toBookingDTO(b application.Booking) bookingDTO {
	dto := bookingDTO{
		ID:              b.ID,
		RoomID:          b.RoomID,
		RequesterID:     b.RequesterID,
		StartTime:       formatTimestamp(b.Start),
		EndTime:         formatTimestamp(b.End),
		Purpose:         b.Purpose,
		Attendees:       b.Attendees,
		Status:          b.Status.String(),
		RejectionReason: b.RejectionReason,
		CreatedAt:       formatTimestamp(b.CreatedAt),
		UpdatedAt:       formatTimestamp(b.UpdatedAt),
	}
	if b.ConfirmedAt != nil {
		confirmed := formatTimestamp(*b.ConfirmedAt)
		dto.ConfirmedAt = &confirmed
	}
	if b.Room != nil {
		dto.Room = &roomSummaryDTO{ID: b.Room.ID, Name: b.Room.Name, Location: b.Room.Location, Capacity: b.Room.Capacity}
	}
	return dto
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	return out
}
