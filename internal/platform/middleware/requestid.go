package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"rostersync/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID stamps every request with an id (honoring an inbound header)
// and a single request-scoped timestamp, so one reconciliation batch sees
// one consistent clock reading.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), id)
		ctx = requestcontext.WithTime(ctx, time.Now())
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
