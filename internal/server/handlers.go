package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/agents"
	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/storage"
)

type chatRequest struct {
	Message string `json:"message" binding:"required"`
	// Plain overrides output.plain_text for this request.
	Plain *bool `json:"plain,omitempty"`
}

type chatResponse struct {
	OK             bool              `json:"ok"`
	Classification models.Label      `json:"classification"`
	Agent          string            `json:"agent"`
	Reply          string            `json:"reply"`
	Citations      []models.Citation `json:"citations"`
	Grounded       bool              `json:"grounded"`
}

type uploadResponse struct {
	OK              bool              `json:"ok"`
	VectorStoreID   string            `json:"vector_store_id"`
	UploadedFileIDs []string          `json:"uploaded_file_ids"`
	FileBatchID     string            `json:"file_batch_id"`
	Status          string            `json:"status"`
	FileCounts      models.FileCounts `json:"file_counts"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &models.ValidationError{Subject: "message", Constraint: models.ConstraintRequired, Detail: "Missing message"}, "Chat failed")
		return
	}

	plain := s.cfg.Output.PlainText
	if req.Plain != nil {
		plain = *req.Plain
	}

	res, err := s.asker.RunWithFormat(c.Request.Context(), req.Message, plain)
	if err != nil {
		s.logger.Error("Chat failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
		writeError(c, err, "Chat failed")
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		OK:             true,
		Classification: res.Label,
		Agent:          res.Agent,
		Reply:          res.Answer,
		Citations:      res.Citations,
		Grounded:       res.Grounded,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	if s.ingestor == nil {
		writeError(c, &models.ConfigurationError{Key: "retrieval.vector_store_id", Detail: "Missing VECTOR_STORE_ID env var"}, "Upload failed")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(c, &models.ValidationError{
				Subject:    "files",
				Constraint: models.ConstraintSize,
				Detail:     fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
			}, "Upload failed")
			return
		}
		writeError(c, &models.ValidationError{
			Subject:    "files",
			Constraint: models.ConstraintRequired,
			Detail:     "No files uploaded",
			Allowed:    s.cfg.Ingestion.AllowedTypes,
		}, "Upload failed")
		return
	}

	headers := form.File["files"]
	items := make([]models.UploadItem, 0, len(headers))
	for _, fh := range headers {
		item, err := readUpload(fh)
		if err != nil {
			writeError(c, err, "Upload failed")
			return
		}
		items = append(items, item)
	}

	batch, err := s.ingestor.Ingest(c.Request.Context(), items)
	if err != nil {
		s.logger.Error("Upload failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Int("files", len(items)),
			zap.Error(err))
		writeError(c, err, "Upload failed")
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		OK:              true,
		VectorStoreID:   batch.IndexRef,
		UploadedFileIDs: batch.FileRefs,
		FileBatchID:     batch.BatchID,
		Status:          string(batch.Status),
		FileCounts:      batch.FileCounts,
	})
}

func readUpload(fh *multipart.FileHeader) (models.UploadItem, error) {
	f, err := fh.Open()
	if err != nil {
		return models.UploadItem{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return models.UploadItem{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return models.UploadItem{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Content:  content,
	}, nil
}

func (s *Server) handleListBatches(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		writeError(c, &models.ValidationError{Subject: "limit", Constraint: "range", Detail: "limit must be a positive integer"}, "List failed")
		return
	}

	batches, err := s.ledger.ListBatches(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, "List failed")
		return
	}
	if batches == nil {
		batches = []*models.IndexingBatch{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "batches": batches})
}

func (s *Server) handleGetBatch(c *gin.Context) {
	batch, err := s.ledger.GetBatch(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Batch not found"})
		return
	}
	if err != nil {
		writeError(c, err, "Lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "batch": batch})
}

func (s *Server) handleLabels(c *gin.Context) {
	type label struct {
		Label models.Label `json:"label"`
		Name  string       `json:"name"`
	}
	profiles := agents.Profiles()
	out := make([]label, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, label{Label: p.Label, Name: p.Name})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "labels": out})
}

// handleDebugConfig reports which settings are present without leaking them.
func (s *Server) handleDebugConfig(c *gin.Context) {
	key := s.cfg.OpenAI.APIKey
	var preview any
	if key != "" {
		preview = maskKey(key)
	}
	var storeID any
	if s.cfg.Retrieval.VectorStoreID != "" {
		storeID = s.cfg.Retrieval.VectorStoreID
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":                     true,
		"has_OPENAI_API_KEY":     key != "",
		"has_VECTOR_STORE_ID":    s.cfg.Retrieval.Enabled(),
		"OPENAI_API_KEY_preview": preview,
		"VECTOR_STORE_ID":        storeID,
		"classifier_model":       s.cfg.OpenAI.ClassifierModel,
		"answer_model":           s.cfg.OpenAI.AnswerModel,
		"plain_text":             s.cfg.Output.PlainText,
	})
}

func maskKey(key string) string {
	if len(key) <= 10 {
		return "..."
	}
	return key[:6] + "..." + key[len(key)-4:]
}
