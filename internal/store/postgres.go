package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PostgresStore keeps records in PostgreSQL over a single connection.
type PostgresStore struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return &PostgresStore{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS scan_results (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			image BYTEA,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		ALTER TABLE scan_results ADD COLUMN IF NOT EXISTS owner TEXT NOT NULL DEFAULT '';
		CREATE INDEX IF NOT EXISTS scan_results_created_at_idx ON scan_results (created_at DESC, seq DESC);
		CREATE INDEX IF NOT EXISTS scan_results_owner_idx ON scan_results (owner, created_at DESC);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Save inserts a scan.
func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `
		INSERT INTO scan_results (id, owner, label, confidence, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID.String(), rec.Owner, rec.Label, rec.Confidence, rec.Image, rec.CreatedAt)
	return err
}

// selectPG builds a newest-first query over the columns cols.
func selectPG(cols string, f Filter) (string, []any) {
	query := `SELECT ` + cols + ` FROM scan_results`
	var args []any
	if f.Owner != "" {
		args = append(args, f.Owner)
		query += ` WHERE owner = $1`
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	return query, args
}

// List returns scans newest first.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args := selectPG(`id, owner, label, confidence, created_at`, f)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			id  string
		)
		if err := rows.Scan(&id, &rec.Owner, &rec.Label, &rec.Confidence, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt scan id %q: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one scan with its image.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{ID: id}
	err := s.conn.QueryRow(ctx,
		`SELECT owner, label, confidence, image, created_at FROM scan_results WHERE id = $1`, id.String()).
		Scan(&rec.Owner, &rec.Label, &rec.Confidence, &rec.Image, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan %s: %w", id, err)
	}
	return &rec, nil
}

// Labels returns only the label column, newest first.
func (s *PostgresStore) Labels(ctx context.Context, f Filter) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args := selectPG(`label`, f)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Close terminates the connection.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close(context.Background())
}
