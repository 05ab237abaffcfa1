package auth

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/flash"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
	"github.com/darkden-lab/pgbrowser/internal/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templateFS, "templates/login.html"))

type Handlers struct {
	service   *AuthService
	sessions  *Sessions
	postLogin string
	language  string
	logger    zerolog.Logger
}

func NewHandlers(service *AuthService, sessions *Sessions, postLogin, language string, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service:   service,
		sessions:  sessions,
		postLogin: postLogin,
		language:  language,
		logger:    logger,
	}
}

// RegisterRoutes registers public auth routes (no auth middleware required).
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/auth/login", h.handleLogin).Methods("POST")
	r.HandleFunc("/api/auth/logout", h.handleLogout).Methods("POST")
	r.HandleFunc("/login", h.handleLoginPage).Methods("GET", "POST")
	r.HandleFunc("/logout", h.handleLogoutPage).Methods("GET", "POST")
}

// RegisterProtectedRoutes registers auth routes that require authentication.
func (h *Handlers) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/api/auth/me", h.handleMe).Methods("GET")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	h.sessions.Login(w, token)
	httputil.WriteJSON(w, http.StatusOK, authResponse{User: user, AccessToken: token})
}

func (h *Handlers) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrUserInactive):
		httputil.WriteError(w, http.StatusForbidden, "account is disabled")
	default:
		h.logger.Error().Err(err).Msg("login failed")
		httputil.WriteError(w, http.StatusInternalServerError, "login failed")
	}
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

type loginPage struct {
	*i18n.Translator
	Email    string
	Next     string
	Messages []flash.Message
}

func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := httputil.SafeRedirectTarget(r.FormValue("next"), h.postLogin)

	if _, ok := h.sessions.Authenticate(r); ok {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	t := i18n.FromRequest(r, h.language)
	page := loginPage{Translator: t, Next: next}

	if r.Method == http.MethodPost {
		page.Email = r.PostFormValue("email")
		_, token, err := h.service.Login(r.Context(), page.Email, r.PostFormValue("password"))
		if err == nil {
			h.sessions.Login(w, token)
			http.Redirect(w, r, next, http.StatusFound)
			return
		}
		if errors.Is(err, ErrUserInactive) {
			flash.Add(r, flash.CategoryDanger, t.T("Account is disabled."))
		} else {
			if !errors.Is(err, ErrInvalidCredentials) {
				h.logger.Error().Err(err).Msg("login failed")
			}
			flash.Add(r, flash.CategoryDanger, t.T("Incorrect username or password."))
		}
	}

	page.Messages = flash.Pop(r)
	w.Header().Set("Content-Type", httputil.ContentTypeHTML)
	if err := loginTemplate.Execute(w, page); err != nil {
		h.logger.Error().Err(err).Msg("failed to render login page")
	}
}

func (h *Handlers) handleLogoutPage(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}
