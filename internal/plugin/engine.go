package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/preferences"
)

var ErrNotFound = errors.New("module not found")

// Engine is the ordered module registry. Modules are enabled on registration
// and every aggregate preserves registration order.
type Engine struct {
	modules []Module
	enabled map[string]bool
	store   *Store
	logger  zerolog.Logger
	mu      sync.RWMutex
}

func NewEngine(pool *pgxpool.Pool, logger zerolog.Logger) *Engine {
	e := &Engine{
		enabled: make(map[string]bool),
		logger:  logger,
	}
	if pool != nil {
		e.store = NewStore(pool)
	}
	return e
}

func (e *Engine) Register(m Module) error {
	if m == nil || m.Name() == "" {
		return fmt.Errorf("module must have a name")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.find(m.Name()) != nil {
		return fmt.Errorf("module %q is already registered", m.Name())
	}

	e.modules = append(e.modules, m)
	e.enabled[m.Name()] = true
	return nil
}

func (e *Engine) find(name string) Module {
	for _, m := range e.modules {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// Get returns the registered module with the given name.
func (e *Engine) Get(name string) (Module, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m := e.find(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return m, nil
}

func (e *Engine) Modules() []Module {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Module, len(e.modules))
	copy(out, e.modules)
	return out
}

func (e *Engine) IsEnabled(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled[name]
}

func (e *Engine) Enable(ctx context.Context, name string) error {
	return e.setEnabled(ctx, name, true)
}

func (e *Engine) Disable(ctx context.Context, name string) error {
	return e.setEnabled(ctx, name, false)
}

func (e *Engine) setEnabled(ctx context.Context, name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.find(name)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	if e.store != nil {
		if err := e.store.Save(ctx, m.Name(), m.Label(), enabled); err != nil {
			return err
		}
	}
	e.enabled[name] = enabled
	return nil
}

// LoadStates restores enablement flags persisted by earlier runs. Modules
// without a stored row keep their current flag and are recorded as enabled.
func (e *Engine) LoadStates(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	records, err := e.store.List(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	known := make(map[string]bool, len(records))
	for _, rec := range records {
		known[rec.ID] = true
		if e.find(rec.ID) != nil {
			e.enabled[rec.ID] = rec.Enabled
		}
	}
	for _, m := range e.modules {
		if known[m.Name()] {
			continue
		}
		if err := e.store.Save(ctx, m.Name(), m.Label(), e.enabled[m.Name()]); err != nil {
			e.logger.Warn().Err(err).Str("module", m.Name()).Msg("failed to record module")
		}
	}
	return nil
}

func (e *Engine) active() []Module {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Module
	for _, m := range e.modules {
		if e.enabled[m.Name()] {
			out = append(out, m)
		}
	}
	return out
}

// Javascripts concatenates the scripts of every enabled module. Duplicates
// are kept.
func (e *Engine) Javascripts() []Asset {
	var out []Asset
	for _, m := range e.active() {
		for _, a := range m.Javascripts() {
			if !a.Valid() {
				e.logger.Warn().Str("module", m.Name()).Str("asset", a.Name).Msg("skipping script without name or path")
				continue
			}
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) Stylesheets() []string {
	var out []string
	for _, m := range e.active() {
		out = append(out, m.Stylesheets()...)
	}
	return out
}

func (e *Engine) ExposedURLEndpoints() []string {
	var out []string
	for _, m := range e.active() {
		out = append(out, m.ExposedURLEndpoints()...)
	}
	return out
}

// RegisterPreferences lets every registered module declare its preferences,
// enabled or not, so stored values stay addressable.
func (e *Engine) RegisterPreferences(reg *preferences.Registry) {
	for _, m := range e.Modules() {
		m.RegisterPreferences(reg)
	}
}

// RegisterAllRoutes mounts the routes of every registered module. Each module
// sits behind a gate answering 404 while it is disabled, so toggling a module
// takes effect without a restart.
func (e *Engine) RegisterAllRoutes(router *mux.Router) {
	for _, m := range e.Modules() {
		sub := router.NewRoute().Subrouter()
		sub.Use(e.enabledOnly(m.Name()))
		m.RegisterRoutes(sub)
	}
}

func (e *Engine) enabledOnly(name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !e.IsEnabled(name) {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Info is the administrative view of a module.
type Info struct {
	Name    string `json:"id"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

func (e *Engine) ListAll() []Info {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]Info, 0, len(e.modules))
	for _, m := range e.modules {
		infos = append(infos, Info{
			Name:    m.Name(),
			Label:   m.Label(),
			Enabled: e.enabled[m.Name()],
		})
	}
	return infos
}
