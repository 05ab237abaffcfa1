package middleware

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

// Session attaches the claims of a valid bearer token or session cookie to
// the request context. Anonymous requests pass through unchanged.
func Session(sessions *auth.Sessions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := sessions.Authenticate(r); ok {
				r = r.WithContext(auth.ContextWithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRequired rejects anonymous requests. Pages are redirected to loginURL
// with the original location in "next"; API clients get a 401.
func LoginRequired(loginURL string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.ClaimsFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			if httputil.WantsJSON(r) {
				httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			target := loginURL + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}

// AnonymousRequired sends authenticated users to redirectTo.
func AnonymousRequired(redirectTo string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.ClaimsFromContext(r.Context()); ok {
				http.Redirect(w, r, redirectTo, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminRequired lets only administrators through.
func AdminRequired() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !claims.IsAdmin() {
				httputil.WriteError(w, http.StatusForbidden, "administrator role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
