package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

// ErrIndexUnconfigured is returned by every call when no index URL is set.
var ErrIndexUnconfigured = errors.New("index unconfigured")

type backend interface {
	upsert(ctx context.Context, rec models.FileRecord) error
	listByOwner(ctx context.Context, owner string) ([]models.FileRecord, error)
	close() error
}

// Index is the owner-scoped file listing. The backend connection is opened
// on first use and shared for the life of the Index.
type Index struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	backend backend
	closed  bool
}

// New returns an Index for url. An empty url yields an Index whose calls
// fail with ErrIndexUnconfigured.
func New(url string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		url:    strings.TrimSpace(url),
		logger: logger.With("component", "index"),
	}
}

// Configured reports whether a connection URL was provided.
func (i *Index) Configured() bool {
	return i != nil && i.url != ""
}

func (i *Index) conn(ctx context.Context) (backend, error) {
	if !i.Configured() {
		return nil, ErrIndexUnconfigured
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if i.backend != nil {
		return i.backend, nil
	}

	b, err := openBackend(ctx, i.url)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	i.logger.Debug("index connected", "scheme", schemeOf(i.url))
	i.backend = b
	return b, nil
}

// Record upserts rec keyed by its blob id.
func (i *Index) Record(ctx context.Context, rec models.FileRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	b, err := i.conn(ctx)
	if err != nil {
		return err
	}
	rec.UploadedAt = rec.UploadedAt.UTC()
	return b.upsert(ctx, rec)
}

// ListByOwner returns owner's records, most recent first. An owner with no
// records yields an empty slice.
func (i *Index) ListByOwner(ctx context.Context, owner string) ([]models.FileRecord, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	b, err := i.conn(ctx)
	if err != nil {
		return nil, err
	}
	records, err := b.listByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.FileRecord{}
	}
	return records, nil
}

// Close releases the backend connection, if one was opened.
func (i *Index) Close() error {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	if i.backend == nil {
		return nil
	}
	err := i.backend.close()
	i.backend = nil
	return err
}

func validateRecord(rec models.FileRecord) error {
	if strings.TrimSpace(rec.BlobID) == "" {
		return fmt.Errorf("blob id is required")
	}
	if strings.TrimSpace(rec.Owner) == "" {
		return fmt.Errorf("owner is required")
	}
	if strings.TrimSpace(rec.TxID) == "" {
		return fmt.Errorf("tx id is required")
	}
	if rec.UploadedAt.IsZero() {
		return fmt.Errorf("uploaded at is required")
	}
	return nil
}
