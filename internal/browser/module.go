// Package browser implements the main tree-view shell: the page itself, the
// script and stylesheet bundles generated from the registered modules, the
// tree root, and the account recovery forms.
package browser

import (
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/config"
	"github.com/darkden-lab/pgbrowser/internal/plugin"
	"github.com/darkden-lab/pgbrowser/internal/preferences"
	"github.com/darkden-lab/pgbrowser/internal/settings"
)

const (
	ModuleName = "browser"
	URLPrefix  = "/browser"
)

// AssetSource supplies the page-wide stylesheets, scripts and endpoint names.
// *plugin.Engine satisfies it.
type AssetSource interface {
	Stylesheets() []string
	Javascripts() []plugin.Asset
	ExposedURLEndpoints() []string
}

// Deps are the collaborators of the browser module.
type Deps struct {
	// Host aggregates assets over all modules. The module's own assets are
	// used when nil.
	Host     AssetSource
	Recovery *auth.Recovery
	Sessions *auth.Sessions
	Settings settings.Store
	Logger   zerolog.Logger
	// Client performs the upgrade check.
	Client *http.Client
	// RecoveryLimit, when set, guards the forgot and reset password forms.
	RecoveryLimit mux.MiddlewareFunc
}

type Module struct {
	cfg      *config.Config
	host     AssetSource
	recovery *auth.Recovery
	sessions *auth.Sessions
	settings settings.Store
	logger   zerolog.Logger
	client   *http.Client
	limit    mux.MiddlewareFunc
	validate *validator.Validate

	mu         sync.RWMutex
	submodules []NodeModule
	prefs      *preferences.Registry
	router     *mux.Router

	showSystemObjects      *preferences.Preference
	tableRowCountThreshold *preferences.Preference
}

func New(cfg *config.Config, deps Deps) *Module {
	m := &Module{
		cfg:      cfg,
		host:     deps.Host,
		recovery: deps.Recovery,
		sessions: deps.Sessions,
		settings: deps.Settings,
		logger:   deps.Logger,
		client:   deps.Client,
		limit:    deps.RecoveryLimit,
		validate: newValidator(),
	}
	if m.host == nil {
		m.host = m
	}
	if m.settings == nil {
		m.settings = settings.NewMemoryStore()
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: cfg.UpgradeCheckTimeout}
	}
	return m
}

func (m *Module) Name() string  { return ModuleName }
func (m *Module) Label() string { return "Browser" }

// AddSubmodule attaches a top-level node module.
func (m *Module) AddSubmodule(n NodeModule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submodules = append(m.submodules, n)
}

func (m *Module) nodeModules() []NodeModule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NodeModule, len(m.submodules))
	copy(out, m.submodules)
	return out
}

func (m *Module) Submodules() []plugin.Module {
	subs := m.nodeModules()
	out := make([]plugin.Module, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

// vendor picks the debug or minified variant of a vendor file.
func (m *Module) vendor(debug, minified string) string {
	if m.cfg.Debug {
		return debug
	}
	return minified
}

func (m *Module) Stylesheets() []string {
	return []string{
		"/static/vendor/codemirror/codemirror.css",
		"/static/vendor/codemirror/addon/dialog/dialog.css",
		m.vendor("/static/vendor/jQuery-contextMenu/jquery.contextMenu.css",
			"/static/vendor/jQuery-contextMenu/jquery.contextMenu.min.css"),
		m.vendor("/static/vendor/wcDocker/wcDocker.css", "/static/vendor/wcDocker/wcDocker.min.css"),
		URLPrefix + "/static/css/browser.css",
		URLPrefix + "/static/vendor/aciTree/css/aciTree.css",
		URLPrefix + "/browser.css",
	}
}

// Javascripts lists the shell's scripts followed by the scripts of every
// node module, depth first in registration order.
func (m *Module) Javascripts() []plugin.Asset {
	static := func(file string) string { return "/static/" + file }
	own := func(file string) string { return URLPrefix + "/static/" + file }
	index := URLPrefix + "/"

	scripts := []plugin.Asset{
		{
			Name:      "alertify",
			Path:      static(m.vendor("vendor/alertifyjs/alertify", "vendor/alertifyjs/alertify.min")),
			Exports:   "alertify",
			Preloaded: true,
		},
		{
			Name: "jqueryui.position",
			Path: static(m.vendor("vendor/jQuery-contextMenu/jquery.ui.position",
				"vendor/jQuery-contextMenu/jquery.ui.position.min")),
			Deps:      []string{"jquery"},
			Exports:   "jQuery.ui.position",
			Preloaded: true,
		},
		{
			Name: "jquery.contextmenu",
			Path: static(m.vendor("vendor/jQuery-contextMenu/jquery.contextMenu",
				"vendor/jQuery-contextMenu/jquery.contextMenu.min")),
			Deps:      []string{"jquery", "jqueryui.position"},
			Exports:   "jQuery.contextMenu",
			Preloaded: true,
		},
		{
			Name:      "jquery.aciplugin",
			Path:      own("vendor/aciTree/jquery.aciPlugin.min"),
			Deps:      []string{"jquery"},
			Exports:   "aciPluginClass",
			Preloaded: true,
		},
		{
			Name:      "jquery.acitree",
			Path:      own(m.vendor("vendor/aciTree/jquery.aciTree", "vendor/aciTree/jquery.aciTree.min")),
			Deps:      []string{"jquery", "jquery.aciplugin"},
			Exports:   "aciPluginClass.plugins.aciTree",
			Preloaded: true,
		},
		{
			Name:      "jquery.acisortable",
			Path:      own("vendor/aciTree/jquery.aciSortable.min"),
			Deps:      []string{"jquery", "jquery.aciplugin"},
			Exports:   "aciPluginClass.plugins.aciSortable",
			Preloaded: true,
		},
		{
			Name:      "jquery.acifragment",
			Path:      own("vendor/aciTree/jquery.aciFragment.min"),
			Deps:      []string{"jquery", "jquery.aciplugin"},
			Exports:   "aciPluginClass.plugins.aciFragment",
			Preloaded: true,
		},
		{
			Name:      "wcdocker",
			Path:      static(m.vendor("vendor/wcDocker/wcDocker", "vendor/wcDocker/wcDocker.min")),
			Deps:      []string{"jquery.contextmenu"},
			Preloaded: true,
		},
		{
			Name:      "pgadmin.browser.datamodel",
			Path:      own("js/datamodel"),
			Preloaded: true,
		},
	}

	for _, s := range [][2]string{
		{"pgadmin.browser", "js/browser"},
		{"pgadmin.browser.endpoints", "js/endpoints"},
		{"pgadmin.browser.error", "js/error"},
	} {
		scripts = append(scripts, plugin.Asset{Name: s[0], Path: index + s[1], Preloaded: true})
	}

	for _, s := range [][2]string{
		{"pgadmin.browser.node", "js/node"},
		{"pgadmin.browser.messages", "js/messages"},
		{"pgadmin.browser.collection", "js/collection"},
	} {
		scripts = append(scripts, plugin.Asset{
			Name:      s[0],
			Path:      index + s[1],
			Deps:      []string{"pgadmin.browser.datamodel"},
			Preloaded: true,
		})
	}

	for _, s := range [][2]string{
		{"pgadmin.browser.menu", "js/menu"},
		{"pgadmin.browser.panel", "js/panel"},
		{"pgadmin.browser.frame", "js/frame"},
	} {
		scripts = append(scripts, plugin.Asset{Name: s[0], Path: own(s[1]), Preloaded: true})
	}

	scripts = append(scripts, plugin.Asset{
		Name: "pgadmin.browser.node.ui",
		Path: own("js/node.ui"),
		When: plugin.String("server_group"),
	})

	for _, sub := range m.nodeModules() {
		scripts = append(scripts, sub.OwnJavascripts()...)
	}
	return scripts
}

// RegisterPreferences registers the browser's display preferences and those
// of its node modules.
func (m *Module) RegisterPreferences(reg *preferences.Registry) {
	pm := reg.Module(ModuleName)
	showSystem := pm.Register("display", "show_system_objects", "Show system objects?", preferences.Boolean, false,
		preferences.WithCategoryLabel("Display"))
	threshold := pm.Register("properties", "table_row_count_threshold", "Count rows if estimated less than",
		preferences.Integer, 2000, preferences.WithCategoryLabel("Properties"))

	m.mu.Lock()
	m.prefs = reg
	m.showSystemObjects = showSystem
	m.tableRowCountThreshold = threshold
	m.mu.Unlock()

	for _, sub := range m.nodeModules() {
		sub.RegisterPreferences(reg)
	}
}

func (m *Module) ExposedURLEndpoints() []string {
	return []string{"browser.index", "browser.nodes"}
}

func (m *Module) preference(module, name string) *preferences.Preference {
	m.mu.RLock()
	reg := m.prefs
	m.mu.RUnlock()
	if reg == nil {
		return nil
	}
	return reg.Module(module).Preference(name)
}
