// Package docs serves the OpenAPI description of the JSON endpoints.
package docs

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

//go:embed openapi.yaml
var openAPISpec []byte

var (
	parseOnce sync.Once
	parsed    map[string]interface{}
	parseErr  error
)

// Spec returns the OpenAPI document decoded from its YAML source.
func Spec() (map[string]interface{}, error) {
	parseOnce.Do(func() {
		parseErr = yaml.Unmarshal(openAPISpec, &parsed)
		if parseErr != nil {
			parseErr = fmt.Errorf("invalid openapi document: %w", parseErr)
		}
	})
	return parsed, parseErr
}

// RegisterRoutes serves the OpenAPI document as YAML and JSON plus a Swagger UI page.
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/docs/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteContent(w, http.StatusOK, "application/yaml", openAPISpec)
	}).Methods("GET")

	r.HandleFunc("/api/docs/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		spec, err := Spec()
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "openapi document not available")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, spec)
	}).Methods("GET")

	r.HandleFunc("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteContent(w, http.StatusOK, httputil.ContentTypeHTML, []byte(swaggerUIHTML))
	}).Methods("GET")
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>pgBrowser API Docs</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/api/docs/openapi.json',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
