package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

// Handlers provides HTTP handlers for user settings.
type Handlers struct {
	store Store
}

func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes wires the settings endpoints. The router must require a
// signed-in user.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/settings/store", h.Store).Methods("POST")
	r.HandleFunc("/settings/{key:.+}", h.Get).Methods("GET")
}

// Store handles POST /settings/store. It accepts a JSON object of key/value
// pairs, a single "setting"/"value" form pair, or "count" numbered pairs
// ("setting1"/"value1", ...).
func (h *Handlers) Store(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	if uid == "" {
		httputil.WriteAjaxError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	pairs, err := readPairs(r)
	if err != nil {
		httputil.WriteAjaxError(w, http.StatusBadRequest, err.Error())
		return
	}

	for k, v := range pairs {
		if err := h.store.Set(r.Context(), uid, k, v); err != nil {
			httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	httputil.WriteAjax(w, nil)
}

func readPairs(r *http.Request) (map[string]string, error) {
	if httputil.IsJSONRequest(r) {
		var pairs map[string]string
		if err := json.NewDecoder(r.Body).Decode(&pairs); err != nil {
			return nil, fmt.Errorf("invalid request body")
		}
		return pairs, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form")
	}
	pairs := make(map[string]string)
	if count := r.PostForm.Get("count"); count != "" {
		n, err := strconv.Atoi(count)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count")
		}
		for i := 1; i <= n; i++ {
			key := r.PostForm.Get("setting" + strconv.Itoa(i))
			if key == "" {
				return nil, fmt.Errorf("setting%d is missing", i)
			}
			pairs[key] = r.PostForm.Get("value" + strconv.Itoa(i))
		}
		return pairs, nil
	}

	key := r.PostForm.Get("setting")
	if key == "" {
		return nil, fmt.Errorf("setting is required")
	}
	pairs[key] = r.PostForm.Get("value")
	return pairs, nil
}

// Get handles GET /settings/{key}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	if uid == "" {
		httputil.WriteAjaxError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	key := mux.Vars(r)["key"]
	v, err := h.store.Get(r.Context(), uid, key)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteAjaxError(w, http.StatusNotFound, "setting not found")
		return
	}
	if err != nil {
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to read setting")
		return
	}
	httputil.WriteAjax(w, map[string]string{key: v})
}
