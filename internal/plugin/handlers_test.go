package plugin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlersToggle(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.Register(&Basic{ID: "browser", Title: "Browser"}))

	r := mux.NewRouter()
	NewHandlers(e, nil).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/plugins/browser/disable", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, e.IsEnabled("browser"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plugins", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.False(t, infos[0].Enabled)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/plugins/missing/enable", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlersGuard(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}

	r := mux.NewRouter()
	NewHandlers(newTestEngine(), deny).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plugins", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
