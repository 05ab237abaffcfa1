package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("server not found")

// Server is a registered database server. Password holds the sealed value.
type Server struct {
	ID            int    `json:"id"`
	UserID        string `json:"-"`
	GroupID       int    `json:"gid"`
	Name          string `json:"name"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	MaintenanceDB string `json:"db"`
	Username      string `json:"username"`
	Password      string `json:"-"`
}

// Store persists server definitions.
type Store interface {
	List(ctx context.Context, userID string, groupID int) ([]Server, error)
	ListAll(ctx context.Context, userID string) ([]Server, error)
	Create(ctx context.Context, s Server) (Server, error)
}

// PGStore keeps servers in the server table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const selectServers = `SELECT id, user_id::text, servergroup_id, name, host, port, maintenance_db, username, COALESCE(password, '')
	FROM server`

func (s *PGStore) query(ctx context.Context, sql string, args ...interface{}) ([]Server, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		var sv Server
		if err := rows.Scan(&sv.ID, &sv.UserID, &sv.GroupID, &sv.Name, &sv.Host, &sv.Port,
			&sv.MaintenanceDB, &sv.Username, &sv.Password); err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, sv)
	}
	return servers, rows.Err()
}

func (s *PGStore) List(ctx context.Context, userID string, groupID int) ([]Server, error) {
	return s.query(ctx, selectServers+` WHERE user_id = $1::uuid AND servergroup_id = $2 ORDER BY id`, userID, groupID)
}

func (s *PGStore) ListAll(ctx context.Context, userID string) ([]Server, error) {
	return s.query(ctx, selectServers+` WHERE user_id = $1::uuid ORDER BY id`, userID)
}

func (s *PGStore) Create(ctx context.Context, sv Server) (Server, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO server (user_id, servergroup_id, name, host, port, maintenance_db, username, password)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		 RETURNING id`,
		sv.UserID, sv.GroupID, sv.Name, sv.Host, sv.Port, sv.MaintenanceDB, sv.Username, sv.Password,
	).Scan(&sv.ID)
	if err != nil {
		return Server{}, fmt.Errorf("failed to create server: %w", err)
	}
	return sv, nil
}

type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int
	servers map[int]Server
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{servers: make(map[int]Server)}
}

func (s *MemoryStore) filter(keep func(Server) bool) []Server {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Server
	for _, sv := range s.servers {
		if keep(sv) {
			out = append(out, sv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) List(_ context.Context, userID string, groupID int) ([]Server, error) {
	return s.filter(func(sv Server) bool { return sv.UserID == userID && sv.GroupID == groupID }), nil
}

func (s *MemoryStore) ListAll(_ context.Context, userID string) ([]Server, error) {
	return s.filter(func(sv Server) bool { return sv.UserID == userID }), nil
}

func (s *MemoryStore) Create(_ context.Context, sv Server) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sv.ID = s.nextID
	s.servers[sv.ID] = sv
	return sv, nil
}
