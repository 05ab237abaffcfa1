// Package flash carries one-shot user messages across a redirect in a signed
// cookie.
package flash

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "pga4_flash"

// Categories used by the browser pages.
const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryWarning = "warning"
	CategoryDanger  = "danger"
	CategoryError   = "error"
)

// Message is a single flashed message.
type Message struct {
	Category string `json:"c"`
	Text     string `json:"m"`
}

type flashClaims struct {
	Messages []Message `json:"msgs"`
	jwt.RegisteredClaims
}

type bag struct {
	messages []Message
	dirty    bool
}

type contextKey struct{}

// Manager loads and persists flashed messages for each request.
type Manager struct {
	key    []byte
	maxAge time.Duration
	secure bool
}

// NewManager returns a Manager signing cookies with secret.
func NewManager(secret string, secure bool) *Manager {
	return &Manager{key: []byte(secret), maxAge: 10 * time.Minute, secure: secure}
}

// Middleware makes Add and Pop usable for the wrapped handler. Pending
// messages are written back when the response header is sent.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := &bag{messages: m.load(r)}
		ctx := context.WithValue(r.Context(), contextKey{}, b)
		fw := &flashWriter{ResponseWriter: w, manager: m, bag: b}
		next.ServeHTTP(fw, r.WithContext(ctx))
		fw.flushCookie()
	})
}

func (m *Manager) load(r *http.Request) []Message {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	claims := &flashClaims{}
	_, err = jwt.ParseWithClaims(c.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil
	}
	return claims.Messages
}

func (m *Manager) cookie(messages []Message) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if len(messages) == 0 {
		c.MaxAge = -1
		return c
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, flashClaims{
		Messages: messages,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		c.MaxAge = -1
		return c
	}
	c.Value = signed
	c.MaxAge = int(m.maxAge.Seconds())
	return c
}

type flashWriter struct {
	http.ResponseWriter
	manager     *Manager
	bag         *bag
	wroteHeader bool
}

func (w *flashWriter) flushCookie() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if w.bag.dirty {
		http.SetCookie(w.ResponseWriter, w.manager.cookie(w.bag.messages))
	}
}

func (w *flashWriter) WriteHeader(code int) {
	w.flushCookie()
	w.ResponseWriter.WriteHeader(code)
}

func (w *flashWriter) Write(p []byte) (int, error) {
	w.flushCookie()
	return w.ResponseWriter.Write(p)
}

func fromContext(ctx context.Context) *bag {
	b, _ := ctx.Value(contextKey{}).(*bag)
	return b
}

// Add queues a message for the next page render. It is a no-op outside the
// middleware.
func Add(r *http.Request, category, text string) {
	b := fromContext(r.Context())
	if b == nil {
		return
	}
	b.messages = append(b.messages, Message{Category: category, Text: text})
	b.dirty = true
}

// Pop returns and clears all pending messages.
func Pop(r *http.Request) []Message {
	b := fromContext(r.Context())
	if b == nil || len(b.messages) == 0 {
		return nil
	}
	msgs := b.messages
	b.messages = nil
	b.dirty = true
	return msgs
}

// Peek returns pending messages without consuming them.
func Peek(r *http.Request) []Message {
	b := fromContext(r.Context())
	if b == nil {
		return nil
	}
	return append([]Message(nil), b.messages...)
}
