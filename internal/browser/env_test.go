package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/config"
	"github.com/darkden-lab/pgbrowser/internal/flash"
	"github.com/darkden-lab/pgbrowser/internal/mail"
	"github.com/darkden-lab/pgbrowser/internal/middleware"
	"github.com/darkden-lab/pgbrowser/internal/preferences"
	"github.com/darkden-lab/pgbrowser/internal/settings"
)

const (
	testEmail    = "user@example.com"
	testPassword = "secret1"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type fakeNode struct {
	NodeBase
	nodes []Node
	err   error
}

func newFakeNode(nodeType string, load *string) *fakeNode {
	return &fakeNode{NodeBase: NewNodeBase(nodeType, nodeType+" nodes", load)}
}

func (f *fakeNode) GetNodes(context.Context) ([]Node, error) { return f.nodes, f.err }

type testEnv struct {
	module   *Module
	router   http.Handler
	service  *auth.AuthService
	mailer   *fakeMailer
	user     *auth.User
	settings *settings.MemoryStore
	prefs    *preferences.Registry
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:             "pgBrowser",
		AppVersion:          "3.0",
		AppVersionInt:       30000,
		DefaultLanguage:     "en",
		ExternalURL:         "http://localhost:5050",
		SecurityChangeable:  true,
		SecurityRecoverable: true,
		PasswordMinLength:   6,
		PostLoginView:       "/browser/",
		UpgradeCheckTimeout: time.Second,
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, jwtOpts []auth.JWTOption, nodes ...NodeModule) *testEnv {
	t.Helper()
	ctx := context.Background()

	jwtService := auth.NewJWTService("test-secret", jwtOpts...)
	service := auth.NewAuthService(auth.NewMemoryUserStore(), jwtService)
	user, err := service.Register(ctx, testEmail, testPassword, auth.RoleAdministrator)
	require.NoError(t, err)

	mailer := &fakeMailer{}
	recovery := auth.NewRecovery(service, mailer, nil, auth.RecoveryConfig{
		AppName:          cfg.AppName,
		ExternalURL:      cfg.ExternalURL,
		Recoverable:      cfg.SecurityRecoverable,
		SendChangeNotice: true,
		SendResetNotice:  true,
		SubjectReset:     "Password reset instructions",
		SubjectChange:    "Your password has been changed",
		SubjectNotice:    "Your password has been reset",
	}, zerolog.Nop())
	sessions := auth.NewSessions(jwtService, false)
	store := settings.NewMemoryStore()

	m := New(cfg, Deps{
		Recovery: recovery,
		Sessions: sessions,
		Settings: store,
		Logger:   zerolog.Nop(),
	})
	for _, n := range nodes {
		m.AddSubmodule(n)
	}

	reg := preferences.NewRegistry(preferences.NewMemoryStore())
	preferences.RegisterCommon(reg)
	m.RegisterPreferences(reg)

	r := mux.NewRouter()
	r.Use(flash.NewManager("flash-secret", false).Middleware)
	r.Use(middleware.Session(sessions))
	m.RegisterRoutes(r)

	return &testEnv{
		module:   m,
		router:   r,
		service:  service,
		mailer:   mailer,
		user:     user,
		settings: store,
		prefs:    reg,
	}
}

// userContext is a context carrying the test user, for preference writes.
func (e *testEnv) userContext() context.Context {
	return auth.ContextWithClaims(context.Background(), &auth.Claims{UserID: e.user.ID, Email: e.user.Email})
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := e.service.IssueSession(e.user)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authenticated {
		return e.do(req, e.sessionCookie(t))
	}
	return e.do(req)
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
