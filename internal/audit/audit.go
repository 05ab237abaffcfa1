package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrNoDatabase is returned by Store methods when no pool is configured.
var ErrNoDatabase = errors.New("audit: no database configured")

// Entry represents a single audit log entry.
type Entry struct {
	ID        string          `json:"id"`
	UserID    *string         `json:"user_id"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	Details   json.RawMessage `json:"details"`
	Timestamp time.Time       `json:"timestamp"`
}

// ListParams holds the query filters for listing audit entries.
type ListParams struct {
	UserID   string
	Action   string
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}

// Store provides access to the audit_log table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert records a new audit log entry.
func (s *Store) Insert(ctx context.Context, userID *string, action, resource string, details json.RawMessage) error {
	if s.pool == nil {
		return ErrNoDatabase
	}
	if details == nil {
		details = json.RawMessage("{}")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (user_id, action, resource, details) VALUES ($1, $2, $3, $4)`,
		userID, action, resource, details,
	)
	return err
}

// filter accumulates WHERE conditions with numbered placeholders.
type filter struct {
	conds []string
	args  []interface{}
}

func (f *filter) add(cond string, arg interface{}) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(f.args)), 1))
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

func (p ListParams) filter() *filter {
	f := &filter{}
	if p.UserID != "" {
		f.add("user_id::text = ?", p.UserID)
	}
	if p.Action != "" {
		f.add("action = ?", p.Action)
	}
	if p.FromDate != "" {
		f.add("timestamp >= ?", p.FromDate)
	}
	if p.ToDate != "" {
		f.add("timestamp <= ?", p.ToDate)
	}
	return f
}

// List returns audit log entries matching the given filters, newest first,
// along with the total number of matches.
func (s *Store) List(ctx context.Context, params ListParams) ([]Entry, int, error) {
	if s.pool == nil {
		return nil, 0, ErrNoDatabase
	}
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}

	f := params.filter()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`+f.where(), f.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(f.args)
	query := `SELECT id::text, user_id::text, action, resource, details, timestamp FROM audit_log` + f.where() +
		` ORDER BY timestamp DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args := append(f.args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &e.Details, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Recorder logs account events and persists them when a database is
// available.
type Recorder struct {
	store  *Store
	logger zerolog.Logger
}

func NewRecorder(store *Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) RecordEvent(ctx context.Context, userID, action, resource string, details map[string]interface{}) {
	r.logger.Info().Str("user_id", userID).Str("action", action).Str("resource", resource).Msg("account event")

	raw, err := json.Marshal(details)
	if err != nil {
		r.logger.Warn().Err(err).Str("action", action).Msg("audit: failed to encode details")
		return
	}
	var uid *string
	if userID != "" {
		uid = &userID
	}
	if err := r.store.Insert(ctx, uid, action, resource, raw); err != nil && !errors.Is(err, ErrNoDatabase) {
		r.logger.Warn().Err(err).Str("action", action).Msg("audit: failed to log entry")
	}
}
