package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdministrator = "Administrator"
	RoleUser          = "User"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUserInactive       = errors.New("user account is disabled")
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Active       bool       `json:"active"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func (u *User) HasRole(role string) bool {
	return u != nil && u.Role == role
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, role string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLogin(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role string) (int, error)
}

type AuthService struct {
	users UserStore
	jwt   *JWTService
}

func NewAuthService(users UserStore, jwtService *JWTService) *AuthService {
	return &AuthService{
		users: users,
		jwt:   jwtService,
	}
}

func (s *AuthService) JWT() *JWTService { return s.jwt }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, email, password, role string) (*User, error) {
	if role == "" {
		role = RoleUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, normalizeEmail(email), string(hash), role)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and returns the user with a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !s.VerifyPassword(user, password) {
		return nil, "", ErrInvalidCredentials
	}
	if !user.Active {
		return nil, "", ErrUserInactive
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		return nil, "", fmt.Errorf("failed to update last login: %w", err)
	}

	token, err := s.IssueSession(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// IssueSession signs a session token for an already authenticated user.
func (s *AuthService) IssueSession(user *User) (string, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return token, nil
}

func (s *AuthService) VerifyPassword(user *User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// SetPassword hashes and stores a new password for user.
func (s *AuthService) SetPassword(ctx context.Context, user *User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	user.PasswordHash = string(hash)
	return nil
}

// restorePasswordHash puts back a previous hash after a failed change.
func (s *AuthService) restorePasswordHash(ctx context.Context, user *User, hash string) error {
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to restore password: %w", err)
	}
	user.PasswordHash = hash
	return nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, normalizeEmail(email))
}

func (s *AuthService) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

func (s *AuthService) CountAdministrators(ctx context.Context) (int, error) {
	return s.users.CountByRole(ctx, RoleAdministrator)
}

// GenerateResetToken issues a reset token bound to the user's current password.
func (s *AuthService) GenerateResetToken(user *User) (string, error) {
	token, err := s.jwt.GenerateResetToken(user.ID, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return token, nil
}

// ResetTokenStatus reports whether token is expired or invalid and the user it
// was issued for. A token whose user changed password since issue is invalid.
func (s *AuthService) ResetTokenStatus(ctx context.Context, token string) (expired, invalid bool, user *User) {
	claims, err := s.jwt.ParseResetToken(token)
	expired = errors.Is(err, jwt.ErrTokenExpired)
	if err != nil && !expired {
		return false, true, nil
	}

	user, uerr := s.users.GetByID(ctx, claims.Subject)
	if uerr != nil {
		return false, true, nil
	}
	if claims.Fingerprint != passwordFingerprint(user.PasswordHash) {
		return expired, true, user
	}
	return expired, false, user
}
