package browser

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/flash"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
	"github.com/darkden-lab/pgbrowser/internal/i18n"
	"github.com/darkden-lab/pgbrowser/internal/middleware"
	"github.com/darkden-lab/pgbrowser/internal/preferences"
	"github.com/darkden-lab/pgbrowser/internal/settings"
)

// RegisterRoutes mounts the shell under /browser. Node modules receive a
// router that requires a signed-in user and mount under their NodePath.
func (m *Module) RegisterRoutes(r *mux.Router) {
	m.mu.Lock()
	m.router = r
	m.mu.Unlock()

	loginRequired := middleware.LoginRequired(m.loginURL())
	anonymousRequired := middleware.AnonymousRequired(m.postLoginView())

	b := r.PathPrefix(URLPrefix).Subrouter()
	b.HandleFunc("/js/endpoints.js", m.handleEndpointsJS).Methods("GET").Name("browser.exposed_urls")
	b.HandleFunc("/js/messages.js", m.handleMessagesJS).Methods("GET").Name("browser.messages_js")

	protected := b.NewRoute().Subrouter()
	protected.Use(loginRequired)
	protected.HandleFunc("/", m.handleIndex).Methods("GET").Name("browser.index")
	protected.HandleFunc("/js/utils.js", m.handleUtilsJS).Methods("GET").Name("browser.utils")
	protected.HandleFunc("/js/error.js", m.handleErrorJS).Methods("GET").Name("browser.error_js")
	protected.HandleFunc("/js/node.js", m.handleNodeJS).Methods("GET").Name("browser.node_js")
	protected.HandleFunc("/js/collection.js", m.handleCollectionJS).Methods("GET").Name("browser.collection_js")
	protected.HandleFunc("/browser.css", m.handleBrowserCSS).Methods("GET").Name("browser.browser_css")
	protected.HandleFunc("/nodes/", m.handleNodes).Methods("GET").Name("browser.nodes")

	if m.cfg.SecurityChangeable && m.recovery != nil {
		protected.HandleFunc("/change_password", m.handleChangePassword).
			Methods("GET", "POST").Name("browser.change_password")
	}

	if m.cfg.SecurityRecoverable && m.recovery != nil {
		anonymous := b.NewRoute().Subrouter()
		if m.limit != nil {
			anonymous.Use(m.limit)
		}
		anonymous.Use(anonymousRequired)
		anonymous.HandleFunc("/reset_password", m.handleForgotPassword).
			Methods("GET", "POST").Name("browser.forgot_password")
		anonymous.HandleFunc("/forgot_password", m.handleForgotPassword).Methods("GET", "POST")
		anonymous.HandleFunc("/reset_password/{token}", m.handleResetPassword).
			Methods("GET", "POST").Name("browser.reset_password")
	}

	nodes := r.NewRoute().Subrouter()
	nodes.Use(loginRequired)
	for _, sub := range m.nodeModules() {
		sub.RegisterRoutes(nodes)
	}
}

func (m *Module) loginURL() string {
	return "/login"
}

func (m *Module) postLoginView() string {
	if m.cfg.PostLoginView != "" {
		return m.cfg.PostLoginView
	}
	return URLPrefix + "/"
}

func (m *Module) translator(r *http.Request) *i18n.Translator {
	return i18n.FromRequest(r, m.cfg.DefaultLanguage)
}

func (m *Module) writeScript(w http.ResponseWriter, t executor, data interface{}) {
	body, err := render(t, data)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to render script")
		http.Error(w, "failed to render script", http.StatusInternalServerError)
		return
	}
	httputil.WriteContent(w, http.StatusOK, httputil.ContentTypeJavaScript, body)
}

// GravatarURL returns the avatar of email: 100px, rating g, retro default,
// served over https.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://secure.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?s=100&d=retro&r=g"
}

type indexData struct {
	*i18n.Translator
	AppName     string
	AppVersion  string
	Debug       bool
	Username    string
	IsAdmin     bool
	Changeable  bool
	Gravatar    string
	Stylesheets []string
	Scripts     interface{}
	Messages    []flash.Message
}

func (m *Module) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		claims = &auth.Claims{}
	}

	language := "en"
	if p := m.preference("miscellaneous", "user_language"); p != nil {
		if v := p.String(ctx); v != "" {
			language = v
		}
	}
	t := i18n.New(language)

	if notice := m.upgradeNotice(ctx, t); notice != "" {
		flash.Add(r, flash.CategoryWarning, notice)
	}

	data := indexData{
		Translator:  t,
		AppName:     m.cfg.AppName,
		AppVersion:  m.cfg.AppVersion,
		Debug:       m.cfg.Debug,
		Username:    claims.Email,
		IsAdmin:     claims.IsAdmin(),
		Changeable:  m.cfg.SecurityChangeable,
		Gravatar:    GravatarURL(claims.Email),
		Stylesheets: m.host.Stylesheets(),
		Scripts:     m.host.Javascripts(),
		Messages:    flash.Pop(r),
	}

	body, err := render(indexPage, data)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to render browser page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	// Remembered for the login page of the next session.
	http.SetCookie(w, &http.Cookie{Name: i18n.LanguageCookie, Value: language, Path: "/"})
	httputil.WriteContent(w, http.StatusOK, httputil.ContentTypeHTML, body)
}

func (m *Module) boolPref(ctx context.Context, module, name string, def bool) bool {
	if p := m.preference(module, name); p != nil {
		return p.Bool(ctx)
	}
	return def
}

func (m *Module) helpPaths(ctx context.Context) (pg, edbas string) {
	pg, edbas = preferences.DefaultPGHelpPath, preferences.DefaultEDBASHelpPath
	if p := m.preference("paths", "pg_help_path"); p != nil {
		pg = p.String(ctx)
	}
	if p := m.preference("paths", "edbas_help_path"); p != nil {
		edbas = p.String(ctx)
	}
	return pg, edbas
}

type utilsData struct {
	Layout                   string
	JSSnippets               []string
	PGHelpPath               string
	EDBASHelpPath            string
	EditorTabSize            int
	EditorUseSpaces          bool
	EditorWrapCode           bool
	EditorBraceMatching      bool
	EditorInsertPairBrackets bool
	EditorIndentWithTabs     bool
	AppName                  string
	LibpqVersion             int
}

func (m *Module) handleUtilsJS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var snippets []string
	for _, sub := range m.nodeModules() {
		snippets = append(snippets, sub.JSSnippets()...)
	}

	tabSize := 4
	if p := m.preference("sqleditor", "tab_size"); p != nil {
		tabSize = p.Int(ctx)
	}
	useSpaces := m.boolPref(ctx, "sqleditor", "use_spaces", false)

	data := utilsData{
		Layout:                   settings.Get(ctx, m.settings, "Browser/Layout", ""),
		JSSnippets:               snippets,
		EditorTabSize:            tabSize,
		EditorUseSpaces:          useSpaces,
		EditorWrapCode:           m.boolPref(ctx, "sqleditor", "wrap_code", false),
		EditorBraceMatching:      m.boolPref(ctx, "sqleditor", "brace_matching", true),
		EditorInsertPairBrackets: m.boolPref(ctx, "sqleditor", "insert_pair_brackets", true),
		EditorIndentWithTabs:     !useSpaces,
		AppName:                  m.cfg.AppName,
		// No database driver is linked into the shell.
		LibpqVersion: 0,
	}
	data.PGHelpPath, data.EDBASHelpPath = m.helpPaths(ctx)

	m.writeScript(w, utilsJS, data)
}

// endpointURLs resolves exposed endpoint names to the path templates of the
// routes registered under those names.
func (m *Module) endpointURLs() map[string]string {
	m.mu.RLock()
	router := m.router
	m.mu.RUnlock()

	urls := make(map[string]string)
	if router == nil {
		return urls
	}
	for _, name := range m.host.ExposedURLEndpoints() {
		route := router.Get(name)
		if route == nil {
			m.logger.Warn().Str("endpoint", name).Msg("exposed endpoint has no route")
			continue
		}
		tpl, err := route.GetPathTemplate()
		if err != nil {
			continue
		}
		urls[name] = tpl
	}
	return urls
}

func (m *Module) handleEndpointsJS(w http.ResponseWriter, r *http.Request) {
	m.writeScript(w, endpointsJS, struct{ Endpoints map[string]string }{m.endpointURLs()})
}

func (m *Module) handleErrorJS(w http.ResponseWriter, r *http.Request) {
	m.writeScript(w, errorJS, m.translator(r))
}

type nodeJSData struct {
	*i18n.Translator
	PGHelpPath    string
	EDBASHelpPath string
}

func (m *Module) handleNodeJS(w http.ResponseWriter, r *http.Request) {
	data := nodeJSData{Translator: m.translator(r)}
	data.PGHelpPath, data.EDBASHelpPath = m.helpPaths(r.Context())
	m.writeScript(w, nodeJS, data)
}

// clientMessages are the strings the tree client shows to users.
var clientMessages = map[string]string{
	"SQL_TAB":             "SQL",
	"SQL_INCOMPLETE":      "Incomplete definition",
	"SQL_NO_CHANGE":       "Nothing changed",
	"MUST_SELECT_ITEM":    "Select an item from the tree.",
	"CANNOT_BE_EMPTY":     "'%s' cannot be empty.",
	"MUST_BE_INT":         "'%s' must be an integer.",
	"MUST_BE_NUM":         "'%s' must be a numeric.",
	"MUST_GR_EQ":          "'%s' must be greater than or equal to %d.",
	"MUST_LESS_EQ":        "'%s' must be less than or equal to %d.",
	"STATISTICS_LABEL":    "Statistics",
	"STATISTICS_VALUE":    "Value",
	"NODE_HAS_NO_SQL":     "No SQL could be generated for the selected object.",
	"NODE_HAS_NO_STATS":   "No statistics are available for the selected object.",
	"LOADING_MESSAGE":     "Retrieving data from the server...",
	"CONNECTION_LOST":     "Connection to the server has been lost.",
	"SESSION_EXPIRED":     "Your session has expired. Please log in again.",
	"DELETE_CONFIRMATION": "Are you sure you want to delete this object?",
}

func (m *Module) handleMessagesJS(w http.ResponseWriter, r *http.Request) {
	t := m.translator(r)
	messages := make(map[string]string, len(clientMessages))
	for k, v := range clientMessages {
		if strings.Contains(v, "%") {
			// Placeholders are filled in by the client.
			messages[k] = v
			continue
		}
		messages[k] = t.T(v)
	}
	m.writeScript(w, messagesJS, struct{ Messages map[string]string }{messages})
}

func (m *Module) handleCollectionJS(w http.ResponseWriter, r *http.Request) {
	m.writeScript(w, collectionJS, m.translator(r))
}

// FontSizeRule returns the CodeMirror font rule for size rounded to two
// decimals, or "" when the rounded size is zero. Whole sizes keep one
// decimal ("1.0em").
func FontSizeRule(value float64) string {
	rounded := math.RoundToEven(value*100) / 100
	if rounded == 0 {
		return ""
	}
	size := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.Contains(size, ".") {
		size += ".0"
	}
	return fmt.Sprintf(".CodeMirror { font-size: %sem; }", size)
}

func (m *Module) handleBrowserCSS(w http.ResponseWriter, r *http.Request) {
	size := 1.0
	if p := m.preference("sqleditor", "sql_font_size"); p != nil {
		size = p.Float(r.Context())
	}

	var snippets []string
	if rule := FontSizeRule(size); rule != "" {
		snippets = append(snippets, rule)
	}
	for _, sub := range m.nodeModules() {
		snippets = append(snippets, sub.CSSSnippets()...)
	}

	body, err := render(browserCSS, struct{ Snippets []string }{snippets})
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to render browser.css")
		http.Error(w, "failed to render stylesheet", http.StatusInternalServerError)
		return
	}
	httputil.WriteContent(w, http.StatusOK, httputil.ContentTypeCSS, body)
}

// Nodes collects the root nodes of every node module in registration order.
// Visibility is left to the client, which reads the show_node preferences.
func (m *Module) Nodes(ctx context.Context) ([]Node, error) {
	nodes := []Node{}
	for _, sub := range m.nodeModules() {
		children, err := sub.GetNodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s nodes: %w", sub.NodeType(), err)
		}
		nodes = append(nodes, children...)
	}
	return nodes, nil
}

func (m *Module) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := m.Nodes(r.Context())
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to build tree")
		httputil.WriteAjaxError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteAjax(w, nodes)
}
