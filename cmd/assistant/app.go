package main

import (
	"context"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/classifier"
	"github.com/xaenox/proposal-assistant/internal/generation"
	"github.com/xaenox/proposal-assistant/internal/ingestion"
	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/pipeline"
	"github.com/xaenox/proposal-assistant/internal/responder"
	"github.com/xaenox/proposal-assistant/internal/storage"
	"github.com/xaenox/proposal-assistant/internal/vectorstore"
	"github.com/xaenox/proposal-assistant/pkg/config"
)

// A label fits in a handful of tokens.
const classifierMaxTokens = 50

// ingestor is satisfied by *ingestion.Pipeline and accepted by both front ends.
type ingestor interface {
	Ingest(ctx context.Context, items []models.UploadItem) (*models.IndexingBatch, error)
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	oc := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		oc.BaseURL = cfg.OpenAI.BaseURL
	}
	oc.OrgID = cfg.OpenAI.Organization
	oc.HTTPClient = &http.Client{Timeout: cfg.OpenAI.RequestTimeout}
	return openai.NewClientWithConfig(oc)
}

func buildPipeline(cfg *config.Config, client *openai.Client, logger *zap.Logger) (*pipeline.Pipeline, error) {
	clf := classifier.NewGPTClassifier(
		client,
		cfg.OpenAI.ClassifierModel,
		classifierMaxTokens,
		cfg.OpenAI.RequestTimeout,
		logger,
	)

	gen := generation.NewClient(
		cfg.OpenAI.APIKey,
		generation.WithBaseURL(cfg.OpenAI.BaseURL),
		generation.WithOrganization(cfg.OpenAI.Organization),
		generation.WithLogger(logger),
	)

	resp, err := responder.New(gen, responder.Options{
		Model:           cfg.OpenAI.AnswerModel,
		VectorStoreID:   cfg.Retrieval.VectorStoreID,
		MaxNumResults:   cfg.OpenAI.MaxNumResults,
		MaxOutputTokens: cfg.OpenAI.MaxTokens,
		Timeout:         cfg.OpenAI.RequestTimeout,
		PlainText:       cfg.Output.PlainText,
	}, logger)
	if err != nil {
		return nil, err
	}

	return pipeline.New(clf, resp, cfg.Output.PlainText, logger), nil
}

// buildIngestor returns nil when no vector store is configured.
func buildIngestor(cfg *config.Config, client *openai.Client, ledger storage.Storage, logger *zap.Logger) ingestor {
	if !cfg.Retrieval.Enabled() {
		logger.Warn("VECTOR_STORE_ID is not set; uploads are disabled and answers are ungrounded")
		return nil
	}

	store := vectorstore.New(client, logger)
	return ingestion.New(store, store, ledger, ingestion.Options{
		IndexRef:          cfg.Retrieval.VectorStoreID,
		MaxFileBytes:      cfg.Ingestion.MaxFileBytes,
		AllowedTypes:      cfg.Ingestion.AllowedTypes,
		PollInterval:      cfg.Ingestion.PollInterval,
		PollMaxInterval:   cfg.Ingestion.PollMaxInterval,
		PollTimeout:       cfg.Ingestion.PollTimeout,
		UploadConcurrency: cfg.Ingestion.UploadConcurrency,
	}, logger)
}

func openLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory batch ledger")
	} else {
		logger.Info("Using PostgreSQL batch ledger", zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName))
	}
	return storage.New(ctx, cfg.Database)
}
