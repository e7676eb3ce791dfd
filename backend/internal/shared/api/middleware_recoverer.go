package apicommon

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"cheesecave/backend/internal/shared/types"
)

// RecoveryMiddleware recovers from panics and answers with a generic 500.
func (m *MiddlewareHandler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			l := GetLoggerFromContextOrNil(r.Context())
			if l == nil {
				l = m.l
			}

			l.Error("panic recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)

			RespondJSON(w, r, http.StatusInternalServerError, &types.ErrorResponse{
				RequestID: GetRequestIDFromContext(r.Context()),
				Message:   "Internal Server Error",
			})
		}()

		next.ServeHTTP(w, r)
	})
}
