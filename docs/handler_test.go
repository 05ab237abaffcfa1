package docs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecParses(t *testing.T) {
	spec, err := Spec()
	require.NoError(t, err)
	assert.Equal(t, "3.0.3", spec["openapi"])

	paths, ok := spec["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/browser/nodes/")
	assert.Contains(t, paths, "/api/setup/init")
	assert.Contains(t, paths, "/api/audit-log")
	assert.NotContains(t, paths, "/api/audit")
}

func TestRoutes(t *testing.T) {
	r := mux.NewRouter()
	RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "pgBrowser API", doc["info"].(map[string]interface{})["title"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
}
