package server

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/xaenox/proposal-assistant/internal/models"
)

// writeError maps err onto a status code and the {ok:false,...} body the
// web client understands. fallback is the error title for upstream and
// unknown failures.
func writeError(c *gin.Context, err error, fallback string) {
	if violations := models.ValidationErrors(err); len(violations) > 0 {
		status := http.StatusBadRequest
		details := make([]string, 0, len(violations))
		var allowed []string
		for _, v := range violations {
			if v.Constraint == models.ConstraintSize {
				status = http.StatusRequestEntityTooLarge
			}
			details = append(details, v.Error())
			for _, a := range v.Allowed {
				if !slices.Contains(allowed, a) {
					allowed = append(allowed, a)
				}
			}
		}
		title := "Validation failed"
		if len(violations) == 1 {
			title = violations[0].Detail
		}
		body := gin.H{"ok": false, "error": title, "details": details}
		if len(allowed) > 0 {
			body["allowed"] = allowed
		}
		c.JSON(status, body)
		return
	}

	var cfgErr *models.ConfigurationError
	if errors.As(err, &cfgErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": cfgErr.Error()})
		return
	}

	var ingErr *models.IngestionError
	if errors.As(err, &ingErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"ok":                false,
			"error":             "Indexing did not complete",
			"details":           ingErr.Error(),
			"vector_store_id":   ingErr.Batch.IndexRef,
			"uploaded_file_ids": ingErr.Batch.FileRefs,
			"file_batch_id":     ingErr.Batch.BatchID,
			"status":            ingErr.Batch.Status,
			"file_counts":       ingErr.Batch.FileCounts,
		})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"ok": false, "error": "Upstream timed out", "details": err.Error()})
		return
	}

	var upErr *models.UpstreamError
	if errors.As(err, &upErr) {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": fallback, "details": err.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": fallback, "details": err.Error()})
}
