package preferences

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkden-lab/pgbrowser/internal/auth"
)

func userCtx(id string) context.Context {
	return auth.ContextWithClaims(context.Background(), &auth.Claims{UserID: id})
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry(NewMemoryStore())
	p := r.Module("browser").Register("display", "show_system_objects", "Show system objects?", Boolean, false,
		WithCategoryLabel("Display"))

	got, err := r.Lookup("browser", "display", "show_system_objects")
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Equal(t, "browser/display/show_system_objects", p.ID)
	assert.Equal(t, "Display", r.Modules()[0].Categories[0].Label)
	assert.Same(t, p, r.Module("browser").Preference("show_system_objects"))
	assert.Nil(t, r.Module("browser").Preference("missing"))

	_, err = r.Lookup("browser", "display", "missing")
	assert.ErrorIs(t, err, ErrUnknownPreference)
}

func TestRegisterTwiceKeepsFirst(t *testing.T) {
	r := NewRegistry(NewMemoryStore())
	first := r.Module("node").Register("node", "show_node_server", "Servers", Boolean, true)
	second := r.Module("node").Register("node", "show_node_server", "Other", Boolean, false)

	assert.Same(t, first, second)
	assert.Equal(t, true, second.Default)
}

func TestGetFallsBackToDefault(t *testing.T) {
	r := NewRegistry(NewMemoryStore())
	p := r.Module("sqleditor").Register("Options", "tab_size", "Tab size", Integer, 4, WithRange(2, 8))

	assert.Equal(t, 4, p.Int(context.Background()), "anonymous")
	assert.Equal(t, 4, p.Int(userCtx("u1")), "no stored value")
}

func TestSetAndGetPerUser(t *testing.T) {
	r := NewRegistry(NewMemoryStore())
	p := r.Module("sqleditor").Register("Options", "tab_size", "Tab size", Integer, 4, WithRange(2, 8))

	require.NoError(t, p.Set(userCtx("u1"), 8))
	assert.Equal(t, 8, p.Int(userCtx("u1")))
	assert.Equal(t, 4, p.Int(userCtx("u2")))
}

func TestSetValidates(t *testing.T) {
	r := NewRegistry(NewMemoryStore())
	m := r.Module("sqleditor")
	tab := m.Register("Options", "tab_size", "Tab size", Integer, 4, WithRange(2, 8))
	size := m.Register("display", "sql_font_size", "Font size", Numeric, 1.0, WithRange(0.1, 10))
	flag := m.Register("Options", "use_spaces", "Use spaces?", Boolean, false)
	lang := r.Module("miscellaneous").Register("user_language", "user_language", "User language", Options, "en",
		WithChoices(Choice{Label: "English", Value: "en"}, Choice{Label: "Deutsch", Value: "de"}))

	ctx := userCtx("u1")
	assert.ErrorIs(t, tab.Set(ctx, 12), ErrInvalidValue)
	assert.ErrorIs(t, tab.Set(ctx, "four"), ErrInvalidValue)
	assert.ErrorIs(t, size.Set(ctx, 0.05), ErrInvalidValue)
	assert.ErrorIs(t, flag.Set(ctx, "maybe"), ErrInvalidValue)
	assert.ErrorIs(t, lang.Set(ctx, "xx"), ErrInvalidValue)
	assert.ErrorIs(t, tab.Set(context.Background(), 4), ErrAnonymous)

	require.NoError(t, size.Set(ctx, 1.25))
	assert.Equal(t, 1.25, size.Float(ctx))
	require.NoError(t, flag.Set(ctx, "true"))
	assert.True(t, flag.Bool(ctx))
	require.NoError(t, lang.Set(ctx, "de"))
	assert.Equal(t, "de", lang.String(ctx))
}

func TestWithoutStore(t *testing.T) {
	r := NewRegistry(nil)
	p := r.Module("sqleditor").Register("Options", "tab_size", "Tab size", Integer, 4, WithRange(2, 8))

	assert.ErrorIs(t, p.Set(userCtx("u1"), 8), ErrNoStore)
	assert.Equal(t, 4, p.Int(userCtx("u1")))
}

func TestStaleStoredValueFallsBack(t *testing.T) {
	store := NewMemoryStore()
	r := NewRegistry(store)
	p := r.Module("sqleditor").Register("Options", "tab_size", "Tab size", Integer, 4, WithRange(2, 8))

	require.NoError(t, store.Set(context.Background(), "u1", p.ID, "99"))
	assert.Equal(t, 4, p.Int(userCtx("u1")))
}

func TestRegisterCommon(t *testing.T) {
	r := NewRegistry(NewMemoryStore())
	RegisterCommon(r)

	ctx := context.Background()
	assert.Equal(t, DefaultPGHelpPath, r.Module("paths").Preference("pg_help_path").String(ctx))
	assert.Equal(t, 1.0, r.Module("sqleditor").Preference("sql_font_size").Float(ctx))
	assert.Equal(t, 4, r.Module("sqleditor").Preference("tab_size").Int(ctx))
	assert.False(t, r.Module("sqleditor").Preference("use_spaces").Bool(ctx))
	assert.True(t, r.Module("sqleditor").Preference("brace_matching").Bool(ctx))
	assert.True(t, r.Module("sqleditor").Preference("insert_pair_brackets").Bool(ctx))

	lang := r.Module("miscellaneous").Preference("user_language")
	require.NotNil(t, lang)
	assert.Equal(t, "en", lang.String(ctx))
	assert.Len(t, lang.Choices, 3)
	assert.Equal(t, "English", lang.Choices[0].Label)
}

func newPrefRouter() (*Registry, *mux.Router) {
	r := NewRegistry(NewMemoryStore())
	RegisterCommon(r)
	router := mux.NewRouter()
	NewHandlers(r).RegisterRoutes(router)
	return r, router
}

func TestHandleSetAndList(t *testing.T) {
	reg, router := newPrefRouter()

	body, _ := json.Marshal(map[string]interface{}{"value": 2})
	req := httptest.NewRequest(http.MethodPut, "/preferences/sqleditor/Options/tab_size", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(userCtx("u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, reg.Module("sqleditor").Preference("tab_size").Int(userCtx("u1")))

	req = httptest.NewRequest(http.MethodGet, "/preferences/", nil).WithContext(userCtx("u1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success int `json:"success"`
		Data    []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Success)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "paths", resp.Data[0].Name)
}

func TestHandleSetErrors(t *testing.T) {
	_, router := newPrefRouter()

	req := httptest.NewRequest(http.MethodPut, "/preferences/sqleditor/Options/nope", nil).WithContext(userCtx("u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/preferences/sqleditor/Options/tab_size?value=100", nil).WithContext(userCtx("u1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/preferences/sqleditor/Options/tab_size?value=4", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
