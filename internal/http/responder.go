package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
)

var (
	errBadRequestBody   = errors.New("Invalid request body")
	errInvalidBookingID = errors.New("Invalid booking id")
	errInvalidRoomID    = errors.New("Invalid room id")
)

type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).Error("failed to encode response", zap.Error(err))
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps application errors onto status codes. Domain
// errors carry their message to the client; anything else is reported
// generically. Services log their own failures.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", errors.New("Internal server error"))
		return
	}

	var (
		vErr     *application.ValidationError
		conflict *application.ConflictError
	)
	switch application.ErrorKind(err) {
	case "validation":
		errors.As(err, &vErr)
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   vErr.Error(),
			Errors:    vErr.FieldErrors,
		})
	case "not_found":
		r.writeError(ctx, w, http.StatusNotFound, "NOT_FOUND", err)
	case "unauthorized":
		r.writeError(ctx, w, http.StatusForbidden, "FORBIDDEN", errors.New("Unauthorized"))
	case "capacity_exceeded":
		r.writeError(ctx, w, http.StatusBadRequest, "CAPACITY_EXCEEDED", err)
	case "conflict":
		code := "SLOT_CONFLICT"
		if errors.As(err, &conflict) && conflict.Phase == application.ConflictAtConfirmation {
			code = "SLOT_NO_LONGER_AVAILABLE"
		}
		r.writeError(ctx, w, http.StatusConflict, code, err)
	case "invalid_transition":
		r.writeError(ctx, w, http.StatusBadRequest, "INVALID_STATE_TRANSITION", err)
	default:
		r.loggerFor(ctx).Debug("request failed", zap.Error(err))
		r.writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", errors.New("Internal server error"))
	}
}

func (r responder) loggerFor(ctx context.Context) *zap.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
