package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/proposal-assistant/internal/models"
)

// FileStore holds uploaded file bytes and hands back an opaque reference.
type FileStore interface {
	Upload(ctx context.Context, item models.UploadItem) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Index groups file references into batches and reports their progress.
type Index interface {
	SubmitBatch(ctx context.Context, indexRef string, fileRefs []string) (models.IndexingBatch, error)
	BatchStatus(ctx context.Context, indexRef, batchID string) (models.IndexingBatch, error)
}

// Ledger records every batch snapshot observed.
type Ledger interface {
	SaveBatch(ctx context.Context, batch *models.IndexingBatch) error
}

type Options struct {
	IndexRef          string
	MaxFileBytes      int64
	AllowedTypes      []string
	PollInterval      time.Duration
	PollMaxInterval   time.Duration
	PollTimeout       time.Duration
	UploadConcurrency int
}

const cleanupTimeout = 30 * time.Second

type Pipeline struct {
	files     FileStore
	index     Index
	ledger    Ledger
	validator *Validator
	opts      Options
	logger    *zap.Logger
}

// New builds an ingestion pipeline. ledger may be nil.
func New(files FileStore, index Index, ledger Ledger, opts Options, logger *zap.Logger) *Pipeline {
	if opts.UploadConcurrency < 1 {
		opts.UploadConcurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.PollMaxInterval < opts.PollInterval {
		opts.PollMaxInterval = opts.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		files:     files,
		index:     index,
		ledger:    ledger,
		validator: NewValidator(opts.MaxFileBytes, opts.AllowedTypes),
		opts:      opts,
		logger:    logger.With(zap.String("component", "ingestion")),
	}
}

func (p *Pipeline) Validator() *Validator {
	return p.validator
}

// Ingest validates every item, uploads them, submits one batch and waits for
// it to finish. It returns the batch only when it completed; otherwise the
// error is a *models.IngestionError carrying the last counts seen.
func (p *Pipeline) Ingest(ctx context.Context, items []models.UploadItem) (*models.IndexingBatch, error) {
	if p.opts.IndexRef == "" {
		return nil, &models.ConfigurationError{Key: "retrieval.vector_store_id", Detail: "required for ingestion (set VECTOR_STORE_ID)"}
	}
	if err := p.validator.Validate(items); err != nil {
		return nil, err
	}

	refs, err := p.upload(ctx, items)
	if err != nil {
		return nil, err
	}

	batch, err := p.index.SubmitBatch(ctx, p.opts.IndexRef, refs)
	if err != nil {
		p.cleanup(ctx, refs)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("submit batch: %w", ctx.Err())
		}
		return nil, asUpstream("index", "submit batch", err)
	}

	batch.IndexRef = p.opts.IndexRef
	batch.FileRefs = refs
	batch.FileNames = names(items)
	p.record(ctx, &batch)

	p.logger.Info("Submitted indexing batch",
		zap.String("batch_id", batch.BatchID),
		zap.Int("files", len(refs)),
		zap.String("status", string(batch.Status)))

	return p.wait(ctx, batch)
}

// upload sends items with bounded parallelism. refs keep input order. On any
// failure the remaining uploads are cancelled and created refs are removed.
func (p *Pipeline) upload(ctx context.Context, items []models.UploadItem) ([]string, error) {
	refs := make([]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.UploadConcurrency)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ref, err := p.files.Upload(gctx, item)
			if err != nil {
				return fmt.Errorf("upload %s: %w", item.Name, err)
			}
			refs[i] = ref
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.cleanup(ctx, refs)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("upload files: %w", ctx.Err())
		}
		return nil, asUpstream("files", "upload", err)
	}
	return refs, nil
}

func (p *Pipeline) cleanup(ctx context.Context, refs []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := p.files.Delete(ctx, ref); err != nil {
			p.logger.Warn("Failed to delete uploaded file", zap.String("file_id", ref), zap.Error(err))
		}
	}
}

// wait polls the batch with capped exponential backoff until it reaches a
// terminal state, the poll timeout passes, or ctx is cancelled.
func (p *Pipeline) wait(ctx context.Context, current models.IndexingBatch) (*models.IndexingBatch, error) {
	pollCtx := ctx
	if p.opts.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.opts.PollTimeout)
		defer cancel()
	}

	delay := p.opts.PollInterval
	for !current.Status.IsTerminal() {
		timer := time.NewTimer(delay)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			return nil, p.stopped(ctx, current)
		case <-timer.C:
		}

		next, err := p.index.BatchStatus(pollCtx, p.opts.IndexRef, current.BatchID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, p.stopped(ctx, current)
			}
			return nil, asUpstream("index", "batch status", err)
		}

		if !current.Status.CanTransition(next.Status) {
			p.logger.Warn("Unexpected batch status transition",
				zap.String("batch_id", current.BatchID),
				zap.String("from", string(current.Status)),
				zap.String("to", string(next.Status)))
		}
		current = merge(current, next)
		p.record(ctx, &current)

		delay *= 2
		if delay > p.opts.PollMaxInterval {
			delay = p.opts.PollMaxInterval
		}
	}

	if current.Status != models.StatusCompleted {
		p.logger.Warn("Indexing batch did not complete",
			zap.String("batch_id", current.BatchID),
			zap.String("status", string(current.Status)),
			zap.Int("failed", current.FileCounts.Failed))
		return nil, &models.IngestionError{Batch: current, Reason: string(current.Status)}
	}

	p.logger.Info("Indexing batch completed",
		zap.String("batch_id", current.BatchID),
		zap.Int("completed", current.FileCounts.Completed),
		zap.Int("total", current.FileCounts.Total))
	return &current, nil
}

// stopped explains why polling ended early: caller cancellation wins over
// the poll timeout.
func (p *Pipeline) stopped(ctx context.Context, last models.IndexingBatch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("poll batch %s: %w", last.BatchID, err)
	}
	p.logger.Warn("Timed out waiting for indexing batch",
		zap.String("batch_id", last.BatchID),
		zap.Duration("timeout", p.opts.PollTimeout))
	return &models.IngestionError{Batch: last, Reason: "timed out"}
}

func (p *Pipeline) record(ctx context.Context, batch *models.IndexingBatch) {
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now

	if p.ledger == nil {
		return
	}
	if err := p.ledger.SaveBatch(context.WithoutCancel(ctx), batch); err != nil {
		p.logger.Warn("Failed to record batch", zap.String("batch_id", batch.BatchID), zap.Error(err))
	}
}

// merge carries caller-side fields over to a fresh snapshot.
func merge(prev, next models.IndexingBatch) models.IndexingBatch {
	if next.BatchID == "" {
		next.BatchID = prev.BatchID
	}
	next.IndexRef = prev.IndexRef
	next.FileRefs = prev.FileRefs
	next.FileNames = prev.FileNames
	if !prev.CreatedAt.IsZero() {
		next.CreatedAt = prev.CreatedAt
	}
	return next
}

func names(items []models.UploadItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

func asUpstream(service, op string, err error) error {
	var upErr *models.UpstreamError
	if errors.As(err, &upErr) {
		return err
	}
	return models.NewUpstreamError(service, op, err)
}
