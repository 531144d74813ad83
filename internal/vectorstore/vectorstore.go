package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/models"
)

// API is the part of *openai.Client used for files and vector stores.
type API interface {
	CreateFileBytes(ctx context.Context, request openai.FileBytesRequest) (openai.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error)
	RetrieveVectorStore(ctx context.Context, vectorStoreID string) (openai.VectorStore, error)
	CreateVectorStoreFileBatch(ctx context.Context, vectorStoreID string, request openai.VectorStoreFileBatchRequest) (openai.VectorStoreFileBatch, error)
	RetrieveVectorStoreFileBatch(ctx context.Context, vectorStoreID, batchID string) (openai.VectorStoreFileBatch, error)
}

// Store adapts the hosted file and vector store endpoints to the ingestion
// file store and index.
type Store struct {
	api    API
	logger *zap.Logger
}

func New(api API, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{api: api, logger: logger.With(zap.String("component", "vectorstore"))}
}

// Upload stores the item bytes for retrieval use and returns the file ID.
func (s *Store) Upload(ctx context.Context, item models.UploadItem) (string, error) {
	file, err := s.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    item.Name,
		Bytes:   item.Content,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", models.NewUpstreamError("files", "upload "+item.Name, err)
	}
	if file.ID == "" {
		return "", models.NewUpstreamError("files", "upload "+item.Name, errors.New("response has no file id"))
	}
	s.logger.Debug("Uploaded file", zap.String("name", item.Name), zap.String("file_id", file.ID))
	return file.ID, nil
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := s.api.DeleteFile(ctx, ref); err != nil {
		return models.NewUpstreamError("files", "delete "+ref, err)
	}
	return nil
}

func (s *Store) SubmitBatch(ctx context.Context, indexRef string, fileRefs []string) (models.IndexingBatch, error) {
	resp, err := s.api.CreateVectorStoreFileBatch(ctx, indexRef, openai.VectorStoreFileBatchRequest{FileIDs: fileRefs})
	if err != nil {
		return models.IndexingBatch{}, models.NewUpstreamError("index", "submit batch", err)
	}
	batch, err := toBatch(resp)
	if err != nil {
		return models.IndexingBatch{}, models.NewUpstreamError("index", "submit batch", err)
	}
	batch.FileRefs = fileRefs
	if batch.IndexRef == "" {
		batch.IndexRef = indexRef
	}
	return batch, nil
}

func (s *Store) BatchStatus(ctx context.Context, indexRef, batchID string) (models.IndexingBatch, error) {
	resp, err := s.api.RetrieveVectorStoreFileBatch(ctx, indexRef, batchID)
	if err != nil {
		return models.IndexingBatch{}, models.NewUpstreamError("index", "batch status", err)
	}
	batch, err := toBatch(resp)
	if err != nil {
		return models.IndexingBatch{}, models.NewUpstreamError("index", "batch status", err)
	}
	if batch.BatchID != batchID {
		return models.IndexingBatch{}, models.NewUpstreamError("index", "batch status",
			fmt.Errorf("asked for batch %s, got %s", batchID, batch.BatchID))
	}
	return batch, nil
}

// toBatch validates a file batch payload. An empty ID or a status outside
// the batch state machine is rejected.
func toBatch(b openai.VectorStoreFileBatch) (models.IndexingBatch, error) {
	if b.ID == "" {
		return models.IndexingBatch{}, errors.New("file batch has no id")
	}
	status, err := models.ParseIndexingStatus(b.Status)
	if err != nil {
		return models.IndexingBatch{}, fmt.Errorf("file batch %s: %w", b.ID, err)
	}

	batch := models.IndexingBatch{
		BatchID:    b.ID,
		IndexRef:   b.VectorStoreID,
		Status:     status,
		FileCounts: toCounts(b.FileCounts),
	}
	if b.CreatedAt > 0 {
		batch.CreatedAt = time.Unix(b.CreatedAt, 0).UTC()
	}
	return batch, nil
}

func toCounts(c openai.VectorStoreFileCount) models.FileCounts {
	return models.FileCounts{
		Completed:  c.Completed,
		Failed:     c.Failed,
		InProgress: c.InProgress,
		Cancelled:  c.Cancelled,
		Total:      c.Total,
	}
}

// IndexInfo describes a vector store.
type IndexInfo struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	UsageBytes int               `json:"usage_bytes"`
	FileCounts models.FileCounts `json:"file_counts"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (s *Store) CreateIndex(ctx context.Context, name string) (IndexInfo, error) {
	if name == "" {
		return IndexInfo{}, &models.ValidationError{Subject: "name", Constraint: models.ConstraintRequired, Detail: "vector store name is empty"}
	}
	vs, err := s.api.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: name})
	if err != nil {
		return IndexInfo{}, models.NewUpstreamError("index", "create vector store", err)
	}
	s.logger.Info("Created vector store", zap.String("vector_store_id", vs.ID), zap.String("name", vs.Name))
	return toInfo(vs), nil
}

func (s *Store) ShowIndex(ctx context.Context, id string) (IndexInfo, error) {
	if id == "" {
		return IndexInfo{}, &models.ConfigurationError{Key: "retrieval.vector_store_id"}
	}
	vs, err := s.api.RetrieveVectorStore(ctx, id)
	if err != nil {
		return IndexInfo{}, models.NewUpstreamError("index", "retrieve vector store", err)
	}
	return toInfo(vs), nil
}

func toInfo(vs openai.VectorStore) IndexInfo {
	info := IndexInfo{
		ID:         vs.ID,
		Name:       vs.Name,
		Status:     vs.Status,
		UsageBytes: vs.UsageBytes,
		FileCounts: toCounts(vs.FileCounts),
	}
	if vs.CreatedAt > 0 {
		info.CreatedAt = time.Unix(vs.CreatedAt, 0).UTC()
	}
	return info
}
