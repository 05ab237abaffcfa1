package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flashCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestFlashSurvivesRedirect(t *testing.T) {
	m := NewManager("secret", false)

	setter := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Add(r, CategoryWarning, "upgrade available")
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	rec := httptest.NewRecorder()
	setter.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	c := flashCookie(t, rec)
	require.NotNil(t, c)
	assert.NotEmpty(t, c.Value)

	var got []Message
	reader := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Pop(r)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/next", nil)
	req.AddCookie(c)
	rec2 := httptest.NewRecorder()
	reader.ServeHTTP(rec2, req)

	require.Len(t, got, 1)
	assert.Equal(t, Message{Category: CategoryWarning, Text: "upgrade available"}, got[0])

	cleared := flashCookie(t, rec2)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestFlashTamperedCookieIgnored(t *testing.T) {
	m := NewManager("secret", false)
	other := NewManager("other-secret", false)

	setter := other.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Add(r, CategoryInfo, "forged")
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	setter.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var got []Message
	reader := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Peek(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(flashCookie(t, rec))
	reader.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, got)
}

func TestUnconsumedMessagesAreKept(t *testing.T) {
	m := NewManager("secret", false)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Nil(t, flashCookie(t, rec), "untouched bag must not rewrite the cookie")
}

func TestAddOutsideMiddlewareIsNoop(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Add(req, CategoryInfo, "lost")
	assert.Nil(t, Pop(req))
}
