package preferences

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

type Handlers struct {
	registry *Registry
}

func NewHandlers(registry *Registry) *Handlers {
	return &Handlers{registry: registry}
}

// RegisterRoutes wires the preference endpoints. The router must require a
// signed-in user.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/preferences/", h.handleList).Methods("GET")
	r.HandleFunc("/preferences/{module}/{category}/{name}", h.handleGet).Methods("GET")
	r.HandleFunc("/preferences/{module}/{category}/{name}", h.handleSet).Methods("PUT")
}

type preferenceValue struct {
	*Preference
	Value interface{} `json:"value"`
}

type categoryValues struct {
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Preferences []preferenceValue `json:"preferences"`
}

type moduleValues struct {
	Name       string           `json:"name"`
	Categories []categoryValues `json:"categories"`
}

func (h *Handlers) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modules := []moduleValues{}
	for _, m := range h.registry.Modules() {
		mv := moduleValues{Name: m.Name}
		for _, c := range m.Categories {
			cv := categoryValues{Name: c.Name, Label: c.Label}
			for _, p := range c.Preferences {
				cv.Preferences = append(cv.Preferences, preferenceValue{Preference: p, Value: p.Get(ctx)})
			}
			mv.Categories = append(mv.Categories, cv)
		}
		modules = append(modules, mv)
	}
	httputil.WriteAjax(w, modules)
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*Preference, bool) {
	vars := mux.Vars(r)
	p, err := h.registry.Lookup(vars["module"], vars["category"], vars["name"])
	if err != nil {
		httputil.WriteAjaxError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return p, true
}

func (h *Handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteAjax(w, preferenceValue{Preference: p, Value: p.Get(r.Context())})
}

func (h *Handlers) handleSet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var value interface{}
	if httputil.IsJSONRequest(r) {
		var body struct {
			Value interface{} `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
			httputil.WriteAjaxError(w, http.StatusBadRequest, "value is required")
			return
		}
		value = body.Value
	} else {
		value = r.FormValue("value")
	}

	if err := p.Set(r.Context(), value); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrInvalidValue):
			status = http.StatusBadRequest
		case errors.Is(err, ErrAnonymous):
			status = http.StatusUnauthorized
		case errors.Is(err, ErrNoStore):
			status = http.StatusServiceUnavailable
		}
		httputil.WriteAjaxError(w, status, err.Error())
		return
	}
	httputil.WriteAjax(w, preferenceValue{Preference: p, Value: p.Get(r.Context())})
}
