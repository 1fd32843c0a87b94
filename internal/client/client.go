// Package client is a typed HTTP client for the room booking API.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// Identity is the caller the client authenticates as.
type Identity struct {
	UserID string
	Role   string
}

// Room mirrors the room resource.
type Room struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Location   string   `json:"location"`
	Capacity   int      `json:"capacity"`
	Facilities []string `json:"facilities"`
}

// RoomSummary is the room projection embedded in bookings.
type RoomSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

// Booking mirrors the booking resource.
type Booking struct {
	ID              string       `json:"id"`
	RoomID          string       `json:"room_id"`
	RequesterID     string       `json:"requester_id"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	Purpose         string       `json:"purpose"`
	Attendees       int          `json:"attendees"`
	Status          string       `json:"status"`
	RejectionReason *string      `json:"rejection_reason,omitempty"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Room            *RoomSummary `json:"room,omitempty"`
}

// CreateBookingRequest is the payload of POST /bookings.
type CreateBookingRequest struct {
	RoomID    string
	Start     time.Time
	End       time.Time
	Purpose   string
	Attendees int
}

// ListBookingsOptions filters GET /bookings.
type ListBookingsOptions struct {
	RoomID   string
	Statuses []string
}

// Health is the /healthz payload.
type Health struct {
	Status  string `json:"status"`
	Role    string `json:"role"`
	Storage string `json:"storage"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("booking api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("booking api: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

type errorBody struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors"`
}

type bookingEnvelope struct {
	Booking Booking `json:"booking"`
}

type bookingsEnvelope struct {
	Bookings []Booking `json:"bookings"`
}

type roomEnvelope struct {
	Room Room `json:"room"`
}

type roomsEnvelope struct {
	Rooms []Room `json:"rooms"`
}

// Client talks to a booking API server.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Option customises a Client.
type Option func(*resty.Client)

// WithTimeout overrides the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// New builds a client for baseURL that sends identity headers on every call.
func New(baseURL string, identity Identity, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("X-User-ID", identity.UserID)
	if role := strings.TrimSpace(identity.Role); role != "" {
		rc.SetHeader("X-User-Role", role)
	}
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc, logger: logger}
}

func (c *Client) request(ctx context.Context, result any) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&errorBody{})
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Error("booking api call failed", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Code = body.ErrorCode
		apiErr.Message = body.Message
		apiErr.Fields = body.Errors
	}
	c.logger.Warn("booking api returned error",
		zap.String("operation", op),
		zap.Int("status_code", apiErr.StatusCode),
		zap.String("error_code", apiErr.Code),
	)
	return apiErr
}

// Health calls /healthz.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	resp, err := c.request(ctx, &out).Get("/healthz")
	return out, c.check("health", resp, err)
}

// ListRooms returns the room catalog.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var out roomsEnvelope
	resp, err := c.request(ctx, &out).Get("/rooms")
	return out.Rooms, c.check("list rooms", resp, err)
}

// GetRoom returns a single room.
func (c *Client) GetRoom(ctx context.Context, id string) (Room, error) {
	var out roomEnvelope
	resp, err := c.request(ctx, &out).
		SetPathParam("id", id).
		Get("/rooms/{id}")
	return out.Room, c.check("get room", resp, err)
}

// CreateBooking submits a new booking request.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (Booking, error) {
	payload := map[string]any{
		"room_id":    req.RoomID,
		"start_time": req.Start.Format(time.RFC3339),
		"end_time":   req.End.Format(time.RFC3339),
		"purpose":    req.Purpose,
		"attendees":  req.Attendees,
	}
	var out bookingEnvelope
	resp, err := c.request(ctx, &out).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/bookings")
	return out.Booking, c.check("create booking", resp, err)
}

// GetBooking fetches a booking by id.
func (c *Client) GetBooking(ctx context.Context, id string) (Booking, error) {
	var out bookingEnvelope
	resp, err := c.request(ctx, &out).
		SetPathParam("id", id).
		Get("/bookings/{id}")
	return out.Booking, c.check("get booking", resp, err)
}

// ListBookings returns the bookings visible to the caller.
func (c *Client) ListBookings(ctx context.Context, opts ListBookingsOptions) ([]Booking, error) {
	query := url.Values{}
	if opts.RoomID != "" {
		query.Set("room_id", opts.RoomID)
	}
	for _, s := range opts.Statuses {
		query.Add("status", s)
	}
	var out bookingsEnvelope
	resp, err := c.request(ctx, &out).
		SetQueryParamsFromValues(query).
		Get("/bookings")
	return out.Bookings, c.check("list bookings", resp, err)
}

// Approve moves a pending booking to the awaiting-confirmation state.
func (c *Client) Approve(ctx context.Context, id string) (Booking, error) {
	return c.decide(ctx, id, "PENDING_EMPLOYEE_CONFIRMATION", "")
}

// Reject rejects a pending booking with an optional reason.
func (c *Client) Reject(ctx context.Context, id, reason string) (Booking, error) {
	return c.decide(ctx, id, "REJECTED", reason)
}

func (c *Client) decide(ctx context.Context, id, status, reason string) (Booking, error) {
	payload := map[string]any{"status": status}
	if reason != "" {
		payload["rejection_reason"] = reason
	}
	var out bookingEnvelope
	resp, err := c.request(ctx, &out).
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", id).
		SetBody(payload).
		Patch("/bookings/{id}/status")
	return out.Booking, c.check("decide booking", resp, err)
}

// Confirm confirms an approved booking.
func (c *Client) Confirm(ctx context.Context, id string) (Booking, error) {
	var out bookingEnvelope
	resp, err := c.request(ctx, &out).
		SetPathParam("id", id).
		Patch("/bookings/{id}/confirm")
	return out.Booking, c.check("confirm booking", resp, err)
}

// Cancel cancels a booking.
func (c *Client) Cancel(ctx context.Context, id string) (Booking, error) {
	var out bookingEnvelope
	resp, err := c.request(ctx, &out).
		SetPathParam("id", id).
		Patch("/bookings/{id}/cancel")
	return out.Booking, c.check("cancel booking", resp, err)
}
