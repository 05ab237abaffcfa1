package servergroup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("server group not found")
	ErrDuplicate = errors.New("a server group with this name already exists")
)

// Group is a user's named folder of servers.
type Group struct {
	ID     int    `json:"id"`
	UserID string `json:"-"`
	Name   string `json:"name"`
}

// Store persists server groups per user.
type Store interface {
	List(ctx context.Context, userID string) ([]Group, error)
	Get(ctx context.Context, userID string, id int) (Group, error)
	Create(ctx context.Context, userID, name string) (Group, error)
}

// PGStore keeps groups in the servergroup table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) List(ctx context.Context, userID string) ([]Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id::text, name FROM servergroup WHERE user_id = $1::uuid ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list server groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan server group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, userID string, id int) (Group, error) {
	var g Group
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id::text, name FROM servergroup WHERE user_id = $1::uuid AND id = $2`, userID, id,
	).Scan(&g.ID, &g.UserID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("failed to get server group: %w", err)
	}
	return g, nil
}

func (s *PGStore) Create(ctx context.Context, userID, name string) (Group, error) {
	g := Group{UserID: userID, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO servergroup (user_id, name) VALUES ($1::uuid, $2) RETURNING id`, userID, name,
	).Scan(&g.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Group{}, ErrDuplicate
		}
		return Group{}, fmt.Errorf("failed to create server group: %w", err)
	}
	return g, nil
}

// MemoryStore keeps groups in memory for tests and for running without a
// database.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int
	groups map[int]Group
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[int]Group)}
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []Group
	for _, g := range s.groups {
		if g.UserID == userID {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (s *MemoryStore) Get(_ context.Context, userID string, id int) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok || g.UserID != userID {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (s *MemoryStore) Create(_ context.Context, userID, name string) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.UserID == userID && g.Name == name {
			return Group{}, ErrDuplicate
		}
	}
	s.nextID++
	g := Group{ID: s.nextID, UserID: userID, Name: name}
	s.groups[g.ID] = g
	return g, nil
}
