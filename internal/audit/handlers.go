package audit

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

// Handlers provides HTTP handlers for the audit log.
type Handlers struct {
	store *Store
	guard mux.MiddlewareFunc
}

// NewHandlers creates audit handlers. guard, when set, protects every route.
func NewHandlers(store *Store, guard mux.MiddlewareFunc) *Handlers {
	return &Handlers{store: store, guard: guard}
}

func (h *Handlers) RegisterRoutes(r *mux.Router) {
	routes := r.PathPrefix("/api/audit-log").Subrouter()
	if h.guard != nil {
		routes.Use(h.guard)
	}
	routes.HandleFunc("", h.List).Methods("GET")
}

// List handles GET /api/audit-log with query filters and pagination.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	params := ListParams{
		UserID:   q.Get("user_id"),
		Action:   q.Get("action"),
		FromDate: q.Get("from_date"),
		ToDate:   q.Get("to_date"),
		Limit:    limit,
		Offset:   offset,
	}

	entries, total, err := h.store.List(r.Context(), params)
	if errors.Is(err, ErrNoDatabase) {
		httputil.WriteError(w, http.StatusServiceUnavailable, "audit log requires a database")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   params.Limit,
		"offset":  params.Offset,
	})
}
