package preferences

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ValueStore persists the raw values users chose for preferences.
type ValueStore interface {
	Get(ctx context.Context, userID, prefID string) (string, bool, error)
	Set(ctx context.Context, userID, prefID, value string) error
	All(ctx context.Context, userID string) (map[string]string, error)
}

// PGStore keeps values in the user_preferences table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, userID, prefID string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM user_preferences WHERE user_id::text = $1 AND pref_id = $2`,
		userID, prefID,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *PGStore) Set(ctx context.Context, userID, prefID, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_preferences (user_id, pref_id, value, updated_at)
		 VALUES ($1::uuid, $2, $3, NOW())
		 ON CONFLICT (user_id, pref_id) DO UPDATE SET value = $3, updated_at = NOW()`,
		userID, prefID, value,
	)
	return err
}

func (s *PGStore) All(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pref_id, value FROM user_preferences WHERE user_id::text = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		values[id] = value
	}
	return values, rows.Err()
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, userID, prefID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[userID][prefID]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, userID, prefID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[userID] == nil {
		s.values[userID] = make(map[string]string)
	}
	s.values[userID][prefID] = value
	return nil
}

func (s *MemoryStore) All(_ context.Context, userID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values[userID]))
	for k, v := range s.values[userID] {
		out[k] = v
	}
	return out, nil
}
