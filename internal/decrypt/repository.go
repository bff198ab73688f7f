package decrypt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists decrypt reports.
type Store interface {
	Append(ctx context.Context, r *Report) error
	List(ctx context.Context) ([]*Report, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []*Report
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, r *Report) error {
	cp := *r
	s.mu.Lock()
	s.reports = append(s.reports, &cp)
	s.mu.Unlock()
	return nil
}

// List implements Store. Reports are returned oldest first.
func (s *MemoryStore) List(_ context.Context) ([]*Report, error) {
	s.mu.RLock()
	out := make([]*Report, 0, len(s.reports))
	for _, r := range s.reports {
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// PostgresStore persists reports in the decrypt_reports table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, r *Report) error {
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO decrypt_reports (guid, received_at, source_ip, email) VALUES ($1, $2, $3, $4)`,
		r.GUID, r.ReceivedAt, r.SourceIP, r.Email,
	)
	if err != nil {
		return fmt.Errorf("insert decrypt report: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]*Report, error) {
	rows, err := s.db.Query(ctx,
		`SELECT guid, received_at, source_ip, email FROM decrypt_reports ORDER BY received_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list decrypt reports: %w", err)
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.GUID, &r.ReceivedAt, &r.SourceIP, &r.Email); err != nil {
			return nil, fmt.Errorf("scan decrypt report: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
