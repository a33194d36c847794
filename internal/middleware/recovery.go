package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Faith-Rounds/flash-arb-bot/internal/apierror"
)

// Recovery turns a handler panic into a logged stack trace and a 500
// response. http.ErrAbortHandler is re-panicked so the server can abort the
// connection as usual.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				apierror.WriteJSON(w, r, http.StatusInternalServerError, apierror.InternalError, "an unexpected error occurred")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
