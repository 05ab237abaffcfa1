package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func hit(h http.Handler, method, path, remote, xff string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBurst(t *testing.T) {
	h := RateLimit(1, 3)(okHandler)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/browser/nodes/", "192.168.1.1:4000", "").Code, "request %d", i+1)
	}

	rec := hit(h, http.MethodGet, "/browser/nodes/", "192.168.1.1:4000", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body["error"])
}

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(1, 1)(okHandler)

	assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/browser/", "10.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/browser/", "10.0.0.1:2", "").Code)
	assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/browser/", "10.0.0.2:1", "").Code)
}

func TestRateLimitRecoveryFormsLimitedSeparately(t *testing.T) {
	app := RateLimit(100, 200)(okHandler)
	recovery := RateLimit(1, 2)(okHandler)
	const client = "172.16.0.1:5555"

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, hit(recovery, http.MethodPost, "/browser/reset_password", client, "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(recovery, http.MethodPost, "/browser/reset_password", client, "").Code)

	// The app-wide bucket is unaffected by the recovery one.
	assert.Equal(t, http.StatusOK, hit(app, http.MethodGet, "/browser/", client, "").Code)
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	h := RateLimit(1, 1)(okHandler)

	require.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/browser/", "10.0.0.1:1", "203.0.113.50").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/browser/", "10.0.0.1:1", "198.51.100.99").Code)
	assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/browser/", "10.0.0.2:1", "203.0.113.50").Code)
}

func TestRateLimitOnSubrouter(t *testing.T) {
	r := mux.NewRouter()
	recovery := r.PathPrefix("/browser/reset_password").Subrouter()
	recovery.Use(RateLimit(1, 1))
	recovery.HandleFunc("", okHandler).Methods(http.MethodPost)
	r.HandleFunc("/browser/", okHandler).Methods(http.MethodGet)

	require.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/browser/reset_password", "10.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, http.MethodPost, "/browser/reset_password", "10.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "/browser/", "10.0.0.1:1", "").Code)
}

func TestClientIP(t *testing.T) {
	cases := map[string]struct{ remote, xff, want string }{
		"host and port":    {"192.168.1.1:8080", "", "192.168.1.1"},
		"bare host":        {"192.168.1.1", "", "192.168.1.1"},
		"forwarded header": {"10.0.0.1:1234", "203.0.113.50, 70.41.3.18", "10.0.0.1"},
		"ipv6":             {"[::1]:8080", "", "::1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	store := &rateLimiterStore{rps: 1, burst: 1, idle: time.Minute}
	store.getLimiter("10.0.0.1")

	store.evict(time.Now())
	_, ok := store.limiters.Load("10.0.0.1")
	assert.True(t, ok)

	store.evict(time.Now().Add(2 * time.Minute))
	_, ok = store.limiters.Load("10.0.0.1")
	assert.False(t, ok)
}
