package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionAudience = "pgbrowser-session"
	resetAudience   = "pgbrowser-reset-password"
)

type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the session belongs to an administrator.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdministrator
}

// ResetClaims is the payload of a password reset token. Fingerprint binds the
// token to the password hash current at issue time, so the token stops
// working once the password changes.
type ResetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secretKey       []byte
	sessionDuration time.Duration
	resetDuration   time.Duration
}

type JWTOption func(*JWTService)

func WithSessionDuration(d time.Duration) JWTOption {
	return func(j *JWTService) { j.sessionDuration = d }
}

func WithResetDuration(d time.Duration) JWTOption {
	return func(j *JWTService) { j.resetDuration = d }
}

func NewJWTService(secretKey string, opts ...JWTOption) *JWTService {
	j := &JWTService{
		secretKey:       []byte(secretKey),
		sessionDuration: 12 * time.Hour,
		resetDuration:   5 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *JWTService) SessionDuration() time.Duration { return j.sessionDuration }
func (j *JWTService) ResetDuration() time.Duration   { return j.resetDuration }

func (j *JWTService) GenerateToken(userID, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.sessionDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return j.secretKey, nil
}

func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, j.keyFunc, jwt.WithAudience(sessionAudience))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// GenerateResetToken issues a password reset token for the user.
func (j *JWTService) GenerateResetToken(userID, passwordHash string) (string, error) {
	now := time.Now()
	claims := ResetClaims{
		Fingerprint: passwordFingerprint(passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Audience:  jwt.ClaimStrings{resetAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.resetDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ParseResetToken verifies a reset token. An expired but otherwise genuine
// token returns its claims together with an error wrapping
// jwt.ErrTokenExpired.
func (j *JWTService) ParseResetToken(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, j.keyFunc, jwt.WithAudience(resetAudience))
	if err != nil {
		return claims, fmt.Errorf("invalid reset token: %w", err)
	}
	return claims, nil
}

func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
