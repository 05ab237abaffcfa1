package auth

import (
	"net/http"
	"strings"
	"time"
)

const SessionCookieName = "pga4_session"

// Sessions stores session tokens in an HttpOnly cookie.
type Sessions struct {
	jwt    *JWTService
	secure bool
}

func NewSessions(jwtService *JWTService, secure bool) *Sessions {
	return &Sessions{jwt: jwtService, secure: secure}
}

// Login sets the session cookie for token.
func (s *Sessions) Login(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.jwt.SessionDuration()),
	})
}

func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// TokenFromRequest returns the bearer token if present, else the session
// cookie value.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate resolves the claims of the request, if any.
func (s *Sessions) Authenticate(r *http.Request) (*Claims, bool) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, false
	}
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}
