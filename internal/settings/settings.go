// Package settings stores free-form per-user UI state such as the browser
// layout.
package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkden-lab/pgbrowser/internal/auth"
)

var ErrNotFound = errors.New("setting not found")

// Store persists per-user settings.
type Store interface {
	Get(ctx context.Context, userID, key string) (string, error)
	Set(ctx context.Context, userID, key, value string) error
}

// Get returns the current user's setting, or def when it is unset or the
// request is anonymous.
func Get(ctx context.Context, store Store, key, def string) string {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return def
	}
	v, err := store.Get(ctx, uid, key)
	if err != nil {
		return def
	}
	return v
}

// PGStore keeps settings in the settings table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		"SELECT value FROM settings WHERE user_id::text = $1 AND key = $2", userID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Set performs an INSERT ... ON CONFLICT UPDATE into the settings table.
func (s *PGStore) Set(ctx context.Context, userID, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (user_id, key, value, updated_at)
		 VALUES ($1::uuid, $2, $3, NOW())
		 ON CONFLICT (user_id, key) DO UPDATE
		   SET value = EXCLUDED.value,
		       updated_at = NOW()`,
		userID, key, value,
	)
	return err
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, userID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[userID+"\x00"+key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[userID+"\x00"+key] = value
	return nil
}
