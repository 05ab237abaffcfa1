package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

// Handlers provides HTTP handlers for the first-run setup.
type Handlers struct {
	service   *Service
	sessions  *auth.Sessions
	minLength int
}

func NewHandlers(service *Service, sessions *auth.Sessions, minLength int) *Handlers {
	return &Handlers{service: service, sessions: sessions, minLength: minLength}
}

// RegisterRoutes registers public setup routes (no auth required).
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/setup/status", h.handleStatus).Methods("GET")
	r.HandleFunc("/api/setup/init", h.handleInit).Methods("POST")
}

type statusResponse struct {
	SetupRequired bool `json:"setup_required"`
}

type initRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type initResponse struct {
	User *auth.User `json:"user"`
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	required, err := h.service.IsSetupRequired(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to check setup status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{SetupRequired: required})
}

func (h *Handlers) handleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if problems := validateInitRequest(req, h.minLength); len(problems) > 0 {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "validation_failed",
			"message": "Request validation failed",
			"details": problems,
		})
		return
	}

	user, err := h.service.CreateAdministrator(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, ErrAlreadyCompleted):
		httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error":   "setup_already_completed",
			"message": "Initial setup has already been completed",
		})
		return
	case err != nil:
		h.service.logger.Error().Err(err).Msg("setup: failed to create administrator")
		httputil.WriteJSON(w, http.StatusConflict, map[string]string{
			"error":   "user_creation_failed",
			"message": "Failed to create the administrator account.",
		})
		return
	}

	token, err := h.service.auth.IssueSession(user)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	if h.sessions != nil {
		h.sessions.Login(w, token)
	}

	httputil.WriteJSON(w, http.StatusCreated, initResponse{User: user})
}

// fieldError describes a single validation problem.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validateInitRequest(req initRequest, minLength int) []fieldError {
	var problems []fieldError

	email := strings.TrimSpace(req.Email)
	if email == "" {
		problems = append(problems, fieldError{Field: "email", Message: "email is required"})
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		problems = append(problems, fieldError{Field: "email", Message: "invalid email format"})
	}

	if req.Password == "" {
		problems = append(problems, fieldError{Field: "password", Message: "password is required"})
	} else if len(req.Password) < minLength {
		problems = append(problems, fieldError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", minLength),
		})
	}

	return problems
}
