package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserHandlersRouter(t *testing.T) (*AuthService, *mux.Router) {
	t.Helper()
	svc, _ := newTestService()
	h := NewUserManagementHandlers(svc, 6)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return svc, r
}

// requestWithClaims returns req with admin claims injected into context.
func requestWithClaims(req *http.Request) *http.Request {
	claims := &Claims{UserID: "admin-user-id", Email: "admin@test.com", Role: RoleAdministrator}
	return req.WithContext(ContextWithClaims(req.Context(), claims))
}

func postUser(r http.Handler, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := requestWithClaims(httptest.NewRequest("POST", "/api/users", bytes.NewBuffer(body)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateUserRejectsInvalidEmail(t *testing.T) {
	_, r := newUserHandlersRouter(t)

	invalidEmails := []string{
		"not-an-email",
		"@nodomain.com",
		"double@@at.com",
		"spaces in@email.com",
		"Name <user@example.com>",
		"<script>alert(1)</script>",
	}
	for _, email := range invalidEmails {
		rec := postUser(r, createUserRequest{Email: email, Password: "secret1"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("email %q: expected 400, got %d", email, rec.Code)
		}
	}
}

func TestCreateUserValidation(t *testing.T) {
	_, r := newUserHandlersRouter(t)

	assert.Equal(t, http.StatusBadRequest, postUser(r, map[string]string{"email": "a@example.com"}).Code)
	assert.Equal(t, http.StatusBadRequest, postUser(r, createUserRequest{Email: "a@example.com", Password: "123"}).Code)
	assert.Equal(t, http.StatusBadRequest, postUser(r, createUserRequest{Email: "a@example.com", Password: "secret1", Role: "Root"}).Code)

	req := requestWithClaims(httptest.NewRequest("POST", "/api/users", bytes.NewBufferString("{bad")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateListDeleteUser(t *testing.T) {
	svc, r := newUserHandlersRouter(t)

	rec := postUser(r, createUserRequest{Email: "a@example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, RoleUser, created.Role)

	assert.Equal(t, http.StatusConflict, postUser(r, createUserRequest{Email: "a@example.com", Password: "secret1"}).Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, requestWithClaims(httptest.NewRequest("GET", "/api/users", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	var users []User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&users))
	assert.Len(t, users, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, requestWithClaims(httptest.NewRequest("DELETE", "/api/users/"+created.ID, nil)))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := svc.GetUserByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUserNotFound(t *testing.T) {
	_, r := newUserHandlersRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, requestWithClaims(httptest.NewRequest("DELETE", "/api/users/missing", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUserPreventsSelfDeletion(t *testing.T) {
	_, r := newUserHandlersRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, requestWithClaims(httptest.NewRequest("DELETE", "/api/users/admin-user-id", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUserWithoutClaims(t *testing.T) {
	_, r := newUserHandlersRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/users/some-id", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
