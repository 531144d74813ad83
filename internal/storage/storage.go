package storage

import (
	"context"
	"errors"

	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/pkg/config"
)

var ErrNotFound = errors.New("batch not found")

// Storage is the batch ledger: every indexing batch snapshot observed by
// ingestion, keyed by batch ID. Later snapshots replace earlier ones.
type Storage interface {
	SaveBatch(ctx context.Context, batch *models.IndexingBatch) error
	GetBatch(ctx context.Context, batchID string) (*models.IndexingBatch, error)
	// ListBatches returns the most recently updated batches first.
	ListBatches(ctx context.Context, limit int) ([]*models.IndexingBatch, error)
	Close() error
}

// New opens the ledger selected by cfg.
func New(ctx context.Context, cfg config.DatabaseConfig) (Storage, error) {
	if cfg.UseInMemory {
		return NewMemoryStorage(), nil
	}
	return NewPostgresStorage(ctx, cfg)
}
