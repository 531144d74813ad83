package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/proposal-assistant/internal/models"
)

func newTestStore(t *testing.T, mux *http.ServeMux) *Store {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = server.URL + "/v1"
	return New(openai.NewClientWithConfig(cfg), nil)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestUploadAndDelete(t *testing.T) {
	var deleted atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "assistants", r.FormValue("purpose"))
		_, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			assert.Equal(t, "rates.pdf", header.Filename)
		}
		writeJSON(w, http.StatusOK, `{"id":"file-1","object":"file","filename":"rates.pdf","purpose":"assistants"}`)
	})
	mux.HandleFunc("DELETE /v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted.Store(r.PathValue("id"))
		writeJSON(w, http.StatusOK, `{"id":"file-1","object":"file","deleted":true}`)
	})
	s := newTestStore(t, mux)

	ref, err := s.Upload(context.Background(), models.UploadItem{Name: "rates.pdf", Content: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "file-1", ref)

	require.NoError(t, s.Delete(context.Background(), ref))
	assert.Equal(t, "file-1", deleted.Load())
}

func TestUploadError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusRequestEntityTooLarge, `{"error":{"message":"File too large","type":"invalid_request_error"}}`)
	})
	s := newTestStore(t, mux)

	_, err := s.Upload(context.Background(), models.UploadItem{Name: "big.pdf", Content: []byte("x")})
	var upErr *models.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "files", upErr.Service)
	assert.Equal(t, http.StatusRequestEntityTooLarge, upErr.StatusCode())
}

func TestSubmitAndPollBatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/vector_stores/vs_1/file_batches", func(w http.ResponseWriter, r *http.Request) {
		var req openai.VectorStoreFileBatchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"file-1", "file-2"}, req.FileIDs)
		writeJSON(w, http.StatusOK, `{"id":"vsfb_1","object":"vector_store.file_batch","created_at":1718000000,
			"vector_store_id":"vs_1","status":"in_progress",
			"file_counts":{"in_progress":2,"completed":0,"failed":0,"cancelled":0,"total":2}}`)
	})
	mux.HandleFunc("GET /v1/vector_stores/vs_1/file_batches/vsfb_1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"vsfb_1","vector_store_id":"vs_1","status":"completed",
			"file_counts":{"in_progress":0,"completed":2,"failed":0,"cancelled":0,"total":2}}`)
	})
	s := newTestStore(t, mux)

	batch, err := s.SubmitBatch(context.Background(), "vs_1", []string{"file-1", "file-2"})
	require.NoError(t, err)
	assert.Equal(t, "vsfb_1", batch.BatchID)
	assert.Equal(t, models.StatusInProgress, batch.Status)
	assert.Equal(t, 2, batch.FileCounts.InProgress)
	assert.Equal(t, []string{"file-1", "file-2"}, batch.FileRefs)
	assert.Equal(t, int64(1718000000), batch.CreatedAt.Unix())

	batch, err = s.BatchStatus(context.Background(), "vs_1", "vsfb_1")
	require.NoError(t, err)
	assert.True(t, batch.Succeeded())
	assert.Equal(t, models.FileCounts{Completed: 2, Total: 2}, batch.FileCounts)
}

func TestBatchStatusRejectsUnknownStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/vector_stores/vs_1/file_batches/vsfb_1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"vsfb_1","status":"paused","file_counts":{}}`)
	})
	s := newTestStore(t, mux)

	_, err := s.BatchStatus(context.Background(), "vs_1", "vsfb_1")
	var upErr *models.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Contains(t, err.Error(), "paused")
}

func TestToBatchRejectsMissingID(t *testing.T) {
	_, err := toBatch(openai.VectorStoreFileBatch{Status: "completed"})
	assert.Error(t, err)
}

func TestCreateAndShowIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/vector_stores", func(w http.ResponseWriter, r *http.Request) {
		var req openai.VectorStoreRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "proposals", req.Name)
		writeJSON(w, http.StatusOK, `{"id":"vs_new","object":"vector_store","name":"proposals","status":"completed","file_counts":{}}`)
	})
	mux.HandleFunc("GET /v1/vector_stores/vs_new", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"vs_new","name":"proposals","status":"completed","usage_bytes":2048,
			"file_counts":{"completed":3,"total":3}}`)
	})
	s := newTestStore(t, mux)

	info, err := s.CreateIndex(context.Background(), "proposals")
	require.NoError(t, err)
	assert.Equal(t, "vs_new", info.ID)

	info, err = s.ShowIndex(context.Background(), "vs_new")
	require.NoError(t, err)
	assert.Equal(t, 2048, info.UsageBytes)
	assert.Equal(t, 3, info.FileCounts.Completed)

	_, err = s.ShowIndex(context.Background(), "")
	var cfgErr *models.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
