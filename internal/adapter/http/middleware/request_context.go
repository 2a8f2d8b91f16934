package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iho/custodyledger/internal/domain"
)

const (
	// ActorHeader names the user recorded on audit rows.
	ActorHeader = "X-Actor"
	// RequestIDHeader echoes the request id back to the client.
	RequestIDHeader = "X-Request-ID"
)

// RequestContext copies the request id and actor onto the request context
// so audit rows and logs can name them. It must run after chi's RequestID.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if requestID := chimiddleware.GetReqID(ctx); requestID != "" {
			ctx = domain.WithRequestID(ctx, requestID)
			w.Header().Set(RequestIDHeader, requestID)
		}
		if actor := r.Header.Get(ActorHeader); actor != "" {
			ctx = domain.WithActor(ctx, actor)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
