// Package store persists classified scans and lists them newest first.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/cassava-api/internal/capture"
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/model"
)

var (
	// ErrNotClassified is returned when asked to persist an Uncertain verdict.
	ErrNotClassified = errors.New("only classified verdicts are stored")
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("scan not found")
)

// Record is one stored scan. Owner scopes a record to one client (a chat);
// records saved by the API and CLI have no owner.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Owner      string    `json:"owner,omitempty"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Image      []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows List and Labels. The zero Filter matches every record.
type Filter struct {
	// Owner restricts results to one owner; empty matches all owners.
	Owner string
	// Limit caps the number of results; <= 0 means no cap.
	Limit int
}

// Store is the scan history.
type Store interface {
	// Save inserts rec.
	Save(ctx context.Context, rec *Record) error
	// List returns matching records newest first, without their images.
	List(ctx context.Context, f Filter) ([]Record, error)
	// Get returns one record with its image, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// Labels returns the label of every matching record, newest first.
	Labels(ctx context.Context, f Filter) ([]string, error)
	Close() error
}

// NewRecord builds a record from a classified verdict and its source image,
// stored as PNG.
func NewRecord(v decision.Verdict, img *model.ImageBuffer) (*Record, error) {
	if !v.IsClassified() {
		return nil, ErrNotClassified
	}
	data, err := capture.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:         uuid.New(),
		Label:      v.Label,
		Confidence: v.Confidence,
		Image:      data,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Open selects a backend from dsn: "memory", "sqlite://<path>" (or a bare
// path ending in .db), or a postgres:// URL.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasSuffix(dsn, ".db"):
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported store dsn %q", dsn)
	}
}
