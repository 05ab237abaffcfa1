package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/crypto"
	"github.com/darkden-lab/pgbrowser/plugins/servergroup"
)

const (
	testUser = "6f1c2a8e-0000-4000-8000-000000000001"
	testKey  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

type testEnv struct {
	groups *servergroup.Module
	module *Module
	store  *MemoryStore
	router *mux.Router
	gid    int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cipher, err := crypto.NewCipher(testKey)
	require.NoError(t, err)

	groups := servergroup.New(servergroup.NewMemoryStore(), zerolog.Nop())
	store := NewMemoryStore()
	m := New(store, groups, cipher, zerolog.Nop())
	groups.AddSubmodule(m)

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			uid := req.Header.Get("X-Test-User")
			if uid == "" {
				uid = testUser
			}
			next.ServeHTTP(w, req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{UserID: uid})))
		})
	})
	groups.RegisterRoutes(r)

	defaults, err := groups.Groups(context.Background(), testUser)
	require.NoError(t, err)

	return &testEnv{groups: groups, module: m, store: store, router: r, gid: defaults[0].ID}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

const validServer = `{"name":"local","host":"db.example.com","username":"postgres","password":"hunter2"}`

func TestDescriptor(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, "NODE-server", env.module.Name())
	require.NotNil(t, env.module.ScriptLoad())
	assert.Equal(t, "server_group", *env.module.ScriptLoad())

	scripts := env.groups.OwnJavascripts()
	require.Len(t, scripts, 2)
	assert.Equal(t, "pgadmin.node.server", scripts[1].Name)
	assert.Equal(t, "/browser/server/static/js/server", scripts[1].Path)
	require.NotNil(t, scripts[1].When)
	assert.Equal(t, "server_group", *scripts[1].When)
}

func TestCreateAndListServers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/browser/server/obj/1", validServer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "server/1", created.Data["id"])
	assert.Equal(t, "local", created.Data["label"])
	assert.Equal(t, float64(env.gid), created.Data["_pid"])
	assert.Equal(t, false, created.Data["connected"])
	assert.Equal(t, "pg", created.Data["server_type"])
	assert.Equal(t, "icon-server-not-connected", created.Data["icon"])
	assert.NotContains(t, rec.Body.String(), "hunter2")

	rec = env.do(http.MethodGet, "/browser/server/nodes/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, "server/1", listed.Data[0]["id"])
}

func TestCreateAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/browser/server/obj/1", validServer)
	require.Equal(t, http.StatusOK, rec.Code)

	servers, err := env.store.ListAll(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, 5432, servers[0].Port)
	assert.Equal(t, "postgres", servers[0].MaintenanceDB)
}

func TestPasswordIsSealed(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/browser/server/obj/1", validServer).Code)

	servers, err := env.store.ListAll(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.NotEmpty(t, servers[0].Password)
	assert.NotEqual(t, "hunter2", servers[0].Password)

	pw, err := env.module.Password(context.Background(), testUser, servers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	_, err = env.module.Password(context.Background(), testUser, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]string{
		"missing name": `{"host":"db.example.com","username":"postgres"}`,
		"bad host":     `{"name":"x","host":"not a host!","username":"postgres"}`,
		"bad port":     `{"name":"x","host":"10.0.0.1","port":70000,"username":"postgres"}`,
		"no username":  `{"name":"x","host":"10.0.0.1"}`,
		"broken json":  `{`,
	} {
		rec := env.do(http.MethodPost, "/browser/server/obj/1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestUnknownGroup(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusGone, env.do(http.MethodGet, "/browser/server/nodes/99", "").Code)
	assert.Equal(t, http.StatusGone, env.do(http.MethodPost, "/browser/server/obj/99", validServer).Code)
}

func TestOtherUsersGroupIsHidden(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/browser/server/nodes/1", nil)
	req.Header.Set("X-Test-User", "someone-else")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestGetNodesListsAllServers(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/browser/server/obj/1", validServer).Code)

	nodes, err := env.module.GetNodes(auth.ContextWithClaims(context.Background(), &auth.Claims{UserID: testUser}))
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "server", nodes[0]["_type"])

	_, err = env.module.GetNodes(context.Background())
	assert.Error(t, err)
}
