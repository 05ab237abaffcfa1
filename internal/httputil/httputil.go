package httputil

import (
	"mime"
	"net/http"
	"strings"
)

const (
	ContentTypeJavaScript = "application/x-javascript"
	ContentTypeCSS        = "text/css"
	ContentTypeHTML       = "text/html; charset=utf-8"
)

// AjaxResponse is the envelope the browser client expects from tree and
// property endpoints.
type AjaxResponse struct {
	Success  int         `json:"success"`
	ErrorMsg string      `json:"errormsg"`
	Info     string      `json:"info"`
	Result   interface{} `json:"result"`
	Data     interface{} `json:"data"`
}

// WriteAjax writes a successful envelope carrying data.
func WriteAjax(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, AjaxResponse{Success: 1, Data: data})
}

// WriteAjaxError writes a failed envelope.
func WriteAjaxError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, AjaxResponse{Success: 0, ErrorMsg: message})
}

// WriteContent writes a raw body with an explicit content type.
func WriteContent(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck
}

// IsJSONRequest reports whether the request body is JSON.
func IsJSONRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

// WantsJSON reports whether the client expects a JSON answer rather than a
// page or redirect.
func WantsJSON(r *http.Request) bool {
	if IsJSONRequest(r) {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// SafeRedirectTarget returns target when it is a local absolute path and
// fallback otherwise.
func SafeRedirectTarget(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
