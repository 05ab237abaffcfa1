package servergroup

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
)

const testUser = "6f1c2a8e-0000-4000-8000-000000000001"

func userContext(uid string) context.Context {
	return auth.ContextWithClaims(context.Background(), &auth.Claims{UserID: uid})
}

func newTestRouter(m *Module, uid string) *mux.Router {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{UserID: uid})))
		})
	})
	m.RegisterRoutes(r)
	return r
}

type ajax struct {
	Success  int                    `json:"success"`
	ErrorMsg string                 `json:"errormsg"`
	Data     map[string]interface{} `json:"data"`
}

func TestDescriptor(t *testing.T) {
	m := New(NewMemoryStore(), zerolog.Nop())

	assert.Equal(t, "NODE-server_group", m.Name())
	assert.Equal(t, NodeType, m.NodeType())
	assert.Nil(t, m.ScriptLoad())

	scripts := m.OwnJavascripts()
	require.Len(t, scripts, 1)
	assert.Equal(t, "pgadmin.node.server_group", scripts[0].Name)
	assert.Equal(t, "/browser/server_group/static/js/server_group", scripts[0].Path)
}

func TestGetNodesCreatesDefaultGroup(t *testing.T) {
	store := NewMemoryStore()
	m := New(store, zerolog.Nop())

	nodes, err := m.GetNodes(userContext(testUser))
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	n := nodes[0]
	assert.Equal(t, "server_group/1", n["id"])
	assert.Equal(t, DefaultGroup, n["label"])
	assert.Equal(t, "icon-server_group", n["icon"])
	assert.Equal(t, true, n["inode"])
	assert.Equal(t, NodeType, n["_type"])
	assert.Nil(t, n["_pid"])
	assert.Equal(t, false, n["can_delete"])

	again, err := m.GetNodes(userContext(testUser))
	require.NoError(t, err)
	assert.Len(t, again, 1, "the default group is created once")
}

func TestGetNodesRequiresUser(t *testing.T) {
	m := New(NewMemoryStore(), zerolog.Nop())

	_, err := m.GetNodes(context.Background())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestGroupsArePerUser(t *testing.T) {
	m := New(NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	mine, err := m.Groups(ctx, testUser)
	require.NoError(t, err)
	theirs, err := m.Groups(ctx, "someone-else")
	require.NoError(t, err)

	require.Len(t, mine, 1)
	require.Len(t, theirs, 1)
	assert.NotEqual(t, mine[0].ID, theirs[0].ID)

	ok, err := m.HasGroup(ctx, testUser, theirs[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.HasGroup(ctx, testUser, mine[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNodesRoute(t *testing.T) {
	r := newTestRouter(New(NewMemoryStore(), zerolog.Nop()), testUser)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/browser/server_group/nodes/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success int                      `json:"success"`
		Data    []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, DefaultGroup, resp.Data[0]["label"])
}

func TestCreateRoute(t *testing.T) {
	r := newTestRouter(New(NewMemoryStore(), zerolog.Nop()), testUser)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/browser/server_group/obj/", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"name":"Production"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ajax
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Production", resp.Data["label"])
	assert.Equal(t, "server_group/2", resp.Data["id"], "the default group comes first")
	assert.Equal(t, true, resp.Data["can_delete"])

	assert.Equal(t, http.StatusConflict, post(`{"name":"Production"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)
}
