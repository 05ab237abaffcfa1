package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/auth"
)

// Middleware records successful write operations (POST, PUT, DELETE) to the
// audit_log table.
func Middleware(store *Store, logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 400 {
				return
			}

			var userID *string
			if uid := auth.UserIDFromContext(r.Context()); uid != "" {
				userID = &uid
			}

			details, _ := json.Marshal(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"remote_addr": r.RemoteAddr,
			})

			action := strings.ToLower(r.Method) + " " + r.URL.Path
			if err := store.Insert(r.Context(), userID, action, r.URL.Path, details); err != nil && !errors.Is(err, ErrNoDatabase) {
				logger.Warn().Err(err).Str("action", action).Msg("audit: failed to log entry")
			}
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
