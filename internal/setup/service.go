package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/auth"
)

// ErrAlreadyCompleted is returned when an administrator already exists.
var ErrAlreadyCompleted = errors.New("initial setup has already been completed")

// Service handles first-run state: the server needs setup until an
// administrator account exists.
type Service struct {
	auth   *auth.AuthService
	logger zerolog.Logger

	// serializes administrator creation between the check and the insert
	mu sync.Mutex
}

func NewService(authService *auth.AuthService, logger zerolog.Logger) *Service {
	return &Service{auth: authService, logger: logger}
}

// IsSetupRequired reports whether no administrator account exists yet.
func (s *Service) IsSetupRequired(ctx context.Context) (bool, error) {
	n, err := s.auth.CountAdministrators(ctx)
	if err != nil {
		return false, fmt.Errorf("checking administrators: %w", err)
	}
	return n == 0, nil
}

// CreateAdministrator creates the first administrator. It fails with
// ErrAlreadyCompleted once one exists.
func (s *Service) CreateAdministrator(ctx context.Context, email, password string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	required, err := s.IsSetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, ErrAlreadyCompleted
	}

	user, err := s.auth.Register(ctx, strings.TrimSpace(email), password, auth.RoleAdministrator)
	if err != nil {
		return nil, fmt.Errorf("creating administrator: %w", err)
	}
	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("initial administrator created")
	return user, nil
}

// Bootstrap creates the configured administrator on first start. It does
// nothing when no credentials are configured or setup already happened.
func (s *Service) Bootstrap(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.CreateAdministrator(ctx, email, password)
	if errors.Is(err, ErrAlreadyCompleted) {
		return nil
	}
	return err
}
