package httpjson

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
	"github.com/meetgrid/meetgrid/internal/scheduling/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type contextKey int

const callerUserIDKey contextKey = iota

// CallerUserID returns the session user id attached by the auth middleware,
// or empty when the request was not authenticated.
func CallerUserID(ctx context.Context) string {
	value, _ := ctx.Value(callerUserIDKey).(string)
	return value
}

// requireSession verifies the bearer token and stashes the caller user id in
// the request context. Session issuance lives in the identity provider; this
// side only verifies.
func (h *Handler) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, apperrors.New(apperrors.CodeSessionInvalid, "missing bearer token"))
			return
		}
		claims, err := session.Verify(token, h.sessions)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), callerUserIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// WithTracing wraps a handler in one server span per request. Route patterns
// are not recoverable here, so spans are named by method plus path.
func WithTracing(next http.Handler) http.Handler {
	tracer := otel.Tracer("meetgrid/scheduler/httpjson")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.Int("http.response.status_code", recorder.status),
		)
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
		}
	})
}
