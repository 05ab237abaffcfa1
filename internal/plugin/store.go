package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Record struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Enabled     bool      `json:"enabled"`
	InstalledAt time.Time `json:"installed_at"`
}

// Store persists module enablement in the plugins table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Save(ctx context.Context, id, label string, enabled bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO plugins (id, label, enabled)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET label = $2, enabled = $3`,
		id, label, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save module %q: %w", id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, label, enabled, installed_at FROM plugins ORDER BY installed_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Label, &r.Enabled, &r.InstalledAt); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
