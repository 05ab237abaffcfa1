package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterNumbersPlaceholders(t *testing.T) {
	f := ListParams{UserID: "u1", Action: "login", ToDate: "2024-01-01"}.filter()

	assert.Equal(t, " WHERE user_id::text = $1 AND action = $2 AND timestamp <= $3", f.where())
	assert.Equal(t, []interface{}{"u1", "login", "2024-01-01"}, f.args)
}

func TestFilterEmpty(t *testing.T) {
	f := ListParams{}.filter()
	assert.Empty(t, f.where())
	assert.Empty(t, f.args)
}

func TestStoreWithoutDatabase(t *testing.T) {
	store := NewStore(nil)

	err := store.Insert(context.Background(), nil, "x", "y", nil)
	assert.ErrorIs(t, err, ErrNoDatabase)

	_, _, err = store.List(context.Background(), ListParams{})
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestRecorderLogsWithoutDatabase(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(NewStore(nil), zerolog.New(&buf))

	rec.RecordEvent(context.Background(), "user-1", "reset_password_instructions_sent", "user/user-1", map[string]interface{}{"email": "a@example.com"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reset_password_instructions_sent", entry["action"])
	assert.Equal(t, "user-1", entry["user_id"])
}

func TestListWithoutDatabase(t *testing.T) {
	h := NewHandlers(NewStore(nil), nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/api/audit-log?limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddlewareSkipsReads(t *testing.T) {
	called := false
	handler := Middleware(NewStore(nil), zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/browser/", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareCapturesStatus(t *testing.T) {
	handler := Middleware(NewStore(nil), zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/settings/store", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
}
