// Package plugin holds the module abstraction through which the browser shell
// and its node types contribute assets, preferences and routes to the host.
package plugin

import (
	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/preferences"
)

// Module is a self-registering extension of the host application.
type Module interface {
	Name() string
	Label() string
	Submodules() []Module
	Stylesheets() []string
	Javascripts() []Asset
	ExposedURLEndpoints() []string
	RegisterPreferences(reg *preferences.Registry)
	RegisterRoutes(r *mux.Router)
}

// Asset describes a script the client-side loader should know about.
// When is the node type whose first expansion triggers loading; nil means
// the script is loaded eagerly.
type Asset struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Deps       []string `json:"deps,omitempty"`
	Exports    string   `json:"exports,omitempty"`
	When       *string  `json:"when"`
	Preloaded  bool     `json:"preloaded"`
	IsTemplate *bool    `json:"is_template,omitempty"`
}

// Valid reports whether the required fields are present.
func (a Asset) Valid() bool {
	return a.Name != "" && a.Path != ""
}

// Bool returns a pointer to b, for Asset.IsTemplate.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, for Asset.When.
func String(s string) *string { return &s }
