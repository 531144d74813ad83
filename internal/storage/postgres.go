package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/pkg/config"
)

//go:embed migrations.sql
var migrations embed.FS

type PostgresStorage struct {
	db *sql.DB
}

// ConnString renders cfg as a lib/pq key/value connection string.
func ConnString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

func NewPostgresStorage(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveBatch(ctx context.Context, batch *models.IndexingBatch) error {
	if batch == nil || batch.BatchID == "" {
		return &models.ValidationError{Subject: "batch_id", Constraint: models.ConstraintRequired, Detail: "batch has no id"}
	}

	createdAt, updatedAt := batch.CreatedAt, batch.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO indexing_batches (batch_id, vector_store_id, file_refs, file_names, status,
			completed, failed, in_progress, cancelled, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (batch_id) DO UPDATE SET
			status = EXCLUDED.status,
			completed = EXCLUDED.completed,
			failed = EXCLUDED.failed,
			in_progress = EXCLUDED.in_progress,
			cancelled = EXCLUDED.cancelled,
			total = EXCLUDED.total,
			file_refs = EXCLUDED.file_refs,
			file_names = EXCLUDED.file_names,
			updated_at = EXCLUDED.updated_at`

	c := batch.FileCounts
	_, err := s.db.ExecContext(ctx, query,
		batch.BatchID,
		batch.IndexRef,
		pq.Array(nonNil(batch.FileRefs)),
		pq.Array(nonNil(batch.FileNames)),
		string(batch.Status),
		c.Completed, c.Failed, c.InProgress, c.Cancelled, c.Total,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving batch %s: %w", batch.BatchID, err)
	}
	return nil
}

const selectBatch = `
	SELECT batch_id, vector_store_id, file_refs, file_names, status,
		completed, failed, in_progress, cancelled, total, created_at, updated_at
	FROM indexing_batches`

func (s *PostgresStorage) GetBatch(ctx context.Context, batchID string) (*models.IndexingBatch, error) {
	row := s.db.QueryRowContext(ctx, selectBatch+` WHERE batch_id = $1`, batchID)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying batch %s: %w", batchID, err)
	}
	return batch, nil
}

func (s *PostgresStorage) ListBatches(ctx context.Context, limit int) ([]*models.IndexingBatch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectBatch+` ORDER BY updated_at DESC, batch_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.IndexingBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (*models.IndexingBatch, error) {
	var (
		b      models.IndexingBatch
		status string
	)
	err := row.Scan(
		&b.BatchID,
		&b.IndexRef,
		pq.Array(&b.FileRefs),
		pq.Array(&b.FileNames),
		&status,
		&b.FileCounts.Completed,
		&b.FileCounts.Failed,
		&b.FileCounts.InProgress,
		&b.FileCounts.Cancelled,
		&b.FileCounts.Total,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status, err = models.ParseIndexingStatus(status)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
