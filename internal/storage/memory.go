package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/xaenox/proposal-assistant/internal/models"
)

type MemoryStorage struct {
	mu      sync.RWMutex
	batches map[string]*models.IndexingBatch
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		batches: make(map[string]*models.IndexingBatch),
	}
}

func (s *MemoryStorage) SaveBatch(ctx context.Context, batch *models.IndexingBatch) error {
	if batch == nil || batch.BatchID == "" {
		return &models.ValidationError{Subject: "batch_id", Constraint: models.ConstraintRequired, Detail: "batch has no id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[batch.BatchID] = clone(batch)
	return nil
}

func (s *MemoryStorage) GetBatch(ctx context.Context, batchID string) (*models.IndexingBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if batch, exists := s.batches[batchID]; exists {
		return clone(batch), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) ListBatches(ctx context.Context, limit int) ([]*models.IndexingBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.IndexingBatch, 0, len(s.batches))
	for _, batch := range s.batches {
		result = append(result, clone(batch))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].BatchID < result[j].BatchID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func clone(b *models.IndexingBatch) *models.IndexingBatch {
	c := *b
	c.FileRefs = slices.Clone(b.FileRefs)
	c.FileNames = slices.Clone(b.FileNames)
	return &c
}
