package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

// UserManagementHandlers provides administrator-only user CRUD.
type UserManagementHandlers struct {
	service   *AuthService
	minLength int
}

func NewUserManagementHandlers(service *AuthService, minPasswordLength int) *UserManagementHandlers {
	return &UserManagementHandlers{service: service, minLength: minPasswordLength}
}

// RegisterRoutes registers user management routes on the given router, which
// must already require an administrator session.
func (h *UserManagementHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/users", h.handleListUsers).Methods("GET")
	r.HandleFunc("/api/users", h.handleCreateUser).Methods("POST")
	r.HandleFunc("/api/users/{id}", h.handleDeleteUser).Methods("DELETE")
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *UserManagementHandlers) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list users"})
		return
	}
	if users == nil {
		users = []User{}
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *UserManagementHandlers) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid email address"})
		return
	}
	if len(req.Password) < h.minLength {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "password is too short"})
		return
	}
	switch req.Role {
	case "":
		req.Role = RoleUser
	case RoleUser, RoleAdministrator:
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role"})
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.Role)
	if errors.Is(err, ErrUserExists) {
		httputil.WriteJSON(w, http.StatusConflict, errorResponse{Error: "user already exists"})
		return
	}
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create user"})
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, user)
}

// handleDeleteUser deletes a user by ID. Users cannot delete themselves.
func (h *UserManagementHandlers) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "user id is required"})
		return
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	if claims.UserID == id {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "cannot delete your own account"})
		return
	}

	err := h.service.DeleteUser(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		httputil.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete user"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
