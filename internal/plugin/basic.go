package plugin

import (
	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/preferences"
)

// Basic adapts plain functions into a Module. It lets packages that must not
// depend on this one (preferences, settings) take part in the registry.
type Basic struct {
	ID        string
	Title     string
	Scripts   []Asset
	Styles    []string
	Endpoints []string
	Routes    func(r *mux.Router)
	Prefs     func(reg *preferences.Registry)
}

func (b *Basic) Name() string                  { return b.ID }
func (b *Basic) Label() string                 { return b.Title }
func (b *Basic) Submodules() []Module          { return nil }
func (b *Basic) Stylesheets() []string         { return b.Styles }
func (b *Basic) Javascripts() []Asset          { return b.Scripts }
func (b *Basic) ExposedURLEndpoints() []string { return b.Endpoints }

func (b *Basic) RegisterPreferences(reg *preferences.Registry) {
	if b.Prefs != nil {
		b.Prefs(reg)
	}
}

func (b *Basic) RegisterRoutes(r *mux.Router) {
	if b.Routes != nil {
		b.Routes(r)
	}
}
