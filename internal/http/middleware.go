package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/logging"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"
)

// ErrNoPrincipal is returned by resolvers when the request carries no identity.
var ErrNoPrincipal = errors.New("http: no principal on request")

// PrincipalResolver turns an inbound request into the acting principal.
type PrincipalResolver interface {
	ResolvePrincipal(r *http.Request) (application.Principal, error)
}

// PrincipalResolverFunc adapts a function to PrincipalResolver.
type PrincipalResolverFunc func(r *http.Request) (application.Principal, error)

func (f PrincipalResolverFunc) ResolvePrincipal(r *http.Request) (application.Principal, error) {
	return f(r)
}

// HeaderPrincipalResolver trusts identity headers set by an authenticating
// gateway. A missing role header means employee.
type HeaderPrincipalResolver struct{}

func (HeaderPrincipalResolver) ResolvePrincipal(r *http.Request) (application.Principal, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return application.Principal{}, ErrNoPrincipal
	}
	role := booking.RoleEmployee
	if raw := strings.TrimSpace(r.Header.Get(HeaderUserRole)); raw != "" {
		parsed, err := booking.ParseRole(raw)
		if err != nil {
			return application.Principal{}, fmt.Errorf("%w: %v", ErrNoPrincipal, err)
		}
		role = parsed
	}
	return application.Principal{UserID: userID, Role: role}, nil
}

// RequirePrincipal rejects requests whose principal cannot be resolved with 401.
func RequirePrincipal(resolver PrincipalResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolver.ResolvePrincipal(r)
			if err != nil {
				responder.loggerFor(r.Context()).Warn("principal not resolved", zap.Error(err))
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "UNAUTHENTICATED",
					Message:   "Authentication required",
				})
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// RequestLogger attaches a request scoped logger to the context and logs the
// start and completion of every request.
func RequestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.L()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			logger := base.With(
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.Info("request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.Info("request completed", zap.Int("status", rec.status), zap.Duration("duration", time.Since(start)))
		})
	}
}
