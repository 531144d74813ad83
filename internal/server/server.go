package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/pipeline"
	"github.com/xaenox/proposal-assistant/internal/storage"
	"github.com/xaenox/proposal-assistant/pkg/config"
)

// Asker answers one chat message.
type Asker interface {
	RunWithFormat(ctx context.Context, input string, plainText bool) (*pipeline.Result, error)
}

// Ingestor indexes uploaded files.
type Ingestor interface {
	Ingest(ctx context.Context, items []models.UploadItem) (*models.IndexingBatch, error)
}

type Server struct {
	cfg      *config.Config
	asker    Asker
	ingestor Ingestor
	ledger   storage.Storage
	logger   *zap.Logger
	router   *gin.Engine
}

// New wires the HTTP API. ingestor may be nil when no vector store is
// configured; upload requests then fail with a configuration error.
func New(cfg *config.Config, asker Asker, ingestor Ingestor, ledger storage.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		asker:    asker,
		ingestor: ingestor,
		ledger:   ledger,
		logger:   logger.With(zap.String("component", "server")),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger), cors(s.cfg.Server.CORSOrigins))

	var limiter *clientLimiter
	if s.cfg.Server.RateLimit > 0 {
		limiter = newClientLimiter(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst)
	}

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.POST("/chat", rateLimit(limiter), bodyLimit(1<<20), s.handleChat)
	api.POST("/upload", rateLimit(limiter), bodyLimit(s.cfg.Server.MaxBodyBytes), s.handleUpload)
	api.GET("/batches", s.handleListBatches)
	api.GET("/batches/:id", s.handleGetBatch)
	api.GET("/labels", s.handleLabels)
	api.GET("/debug/config", s.handleDebugConfig)

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
