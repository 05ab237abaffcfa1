package plugin

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

type Handlers struct {
	engine     *Engine
	adminGuard mux.MiddlewareFunc
}

func NewHandlers(engine *Engine, adminGuard mux.MiddlewareFunc) *Handlers {
	return &Handlers{engine: engine, adminGuard: adminGuard}
}

func (h *Handlers) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/plugins").Subrouter()
	if h.adminGuard != nil {
		api.Use(h.adminGuard)
	}
	api.HandleFunc("", h.handleList).Methods("GET")
	api.HandleFunc("/{id}/enable", h.handleEnable).Methods("POST")
	api.HandleFunc("/{id}/disable", h.handleDisable).Methods("POST")
}

func (h *Handlers) handleList(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.engine.ListAll())
}

func (h *Handlers) handleEnable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *Handlers) handleDisable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *Handlers) toggle(w http.ResponseWriter, r *http.Request, enable bool) {
	id := mux.Vars(r)["id"]

	var err error
	status := "disabled"
	if enable {
		err = h.engine.Enable(r.Context(), id)
		status = "enabled"
	} else {
		err = h.engine.Disable(r.Context(), id)
	}

	if errors.Is(err, ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
