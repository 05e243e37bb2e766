package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps records in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path and creates the scan_results table if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS scan_results (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL,
		confidence REAL NOT NULL,
		image BLOB,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scan_results_created_at ON scan_results(created_at);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	if err := addOwnerColumn(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_scan_results_owner ON scan_results(owner, created_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// addOwnerColumn upgrades files created before records had an owner.
func addOwnerColumn(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('scan_results') WHERE name = 'owner'`).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = db.Exec(`ALTER TABLE scan_results ADD COLUMN owner TEXT NOT NULL DEFAULT ''`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_results (id, owner, label, confidence, image, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Owner, rec.Label, rec.Confidence, rec.Image, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save scan %s: %w", rec.ID, err)
	}
	return nil
}

// selectSQL builds a newest-first query over the columns cols.
func selectSQL(cols string, f Filter) (string, []interface{}) {
	query := `SELECT ` + cols + ` FROM scan_results`
	args := []interface{}{}
	if f.Owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, f.Owner)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return query, args
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	query, args := selectSQL(`id, owner, label, confidence, created_at`, f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			id      string
			created int64
		)
		if err := rows.Scan(&id, &rec.Owner, &rec.Label, &rec.Confidence, &created); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt scan id %q: %w", id, err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec := Record{ID: id}
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, label, confidence, image, created_at FROM scan_results WHERE id = ?`, id.String()).
		Scan(&rec.Owner, &rec.Label, &rec.Confidence, &rec.Image, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan %s: %w", id, err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

func (s *SQLiteStore) Labels(ctx context.Context, f Filter) ([]string, error) {
	query, args := selectSQL(`label`, f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		out = append(out, label)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
