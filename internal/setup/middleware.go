package setup

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

// guardState caches the setup-required check so protected requests do not
// count administrators every time.
type guardState struct {
	mu            sync.Mutex
	required      bool
	lastCheck     time.Time
	initialized   bool
	cacheDuration time.Duration
}

func newGuardState(cacheDuration time.Duration) *guardState {
	return &guardState{cacheDuration: cacheDuration}
}

func (g *guardState) isSetupRequired(service *Service, r *http.Request) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if g.initialized && now.Sub(g.lastCheck) < g.cacheDuration {
		return g.required, nil
	}

	required, err := service.IsSetupRequired(r.Context())
	if err != nil {
		return false, err
	}

	g.required = required
	g.lastCheck = now
	g.initialized = true

	// setup never becomes required again
	if !required {
		g.cacheDuration = 24 * time.Hour
	}
	return required, nil
}

// GuardMiddleware answers 403 to every request outside /api/setup/ until an
// administrator exists. The check is cached for cacheFor.
func GuardMiddleware(service *Service, cacheFor time.Duration) mux.MiddlewareFunc {
	state := newGuardState(cacheFor)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/setup/") {
				next.ServeHTTP(w, r)
				return
			}

			required, err := state.isSetupRequired(service, r)
			if err != nil {
				if state.initialized && !state.required {
					next.ServeHTTP(w, r)
					return
				}
				service.logger.Error().Err(err).Msg("setup check failed")
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error":   "setup_check_failed",
					"message": "Unable to verify system state. Please try again.",
				})
				return
			}

			if required {
				if !httputil.WantsJSON(r) {
					http.Error(w, "Initial setup is required", http.StatusForbidden)
					return
				}
				httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":   "setup_required",
					"message": "Initial setup is required",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
