package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func isolatedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VECTOR_STORE_ID", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	return filepath.Join(dir, "missing.yaml")
}

func TestLabelsCommand(t *testing.T) {
	out, err := execute(t, "labels")
	require.NoError(t, err)
	for _, label := range models.DomainLabels() {
		assert.Contains(t, out, string(label))
	}
}

func TestCommandsRequireConfiguration(t *testing.T) {
	path := isolatedEnv(t)

	tests := []struct {
		args []string
		key  string
	}{
		{[]string{"ingest", "rates.pdf"}, "retrieval.vector_store_id"},
		{[]string{"index", "show"}, "retrieval.vector_store_id"},
		{[]string{"bot"}, "telegram.token"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", path}, tt.args...)...)
			var cfgErr *models.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestMissingAPIKey(t *testing.T) {
	path := isolatedEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := execute(t, "--config", path, "ask", "hello")
	var cfgErr *models.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "openai.api_key", cfgErr.Key)
}

func TestReadUploads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.txt")
	require.NoError(t, os.WriteFile(path, []byte("labor rates"), 0o600))

	items, err := readUploads([]string{path})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "rates.txt", items[0].Name)
	assert.Equal(t, int64(11), items[0].Size)
	assert.Empty(t, items[0].MIMEType)

	_, err = readUploads([]string{filepath.Join(dir, "nope.pdf")})
	assert.Error(t, err)
}

func TestPrintBatch(t *testing.T) {
	var out bytes.Buffer
	printBatch(&out, &models.IndexingBatch{
		BatchID:    "vsfb_1",
		IndexRef:   "vs_1",
		FileRefs:   []string{"file-1"},
		FileNames:  []string{"rates.pdf"},
		Status:     models.StatusCompleted,
		FileCounts: models.FileCounts{Completed: 1, Total: 1},
		CreatedAt:  time.Now().Add(-time.Minute),
	})

	assert.Contains(t, out.String(), "Batch vsfb_1 completed in vector store vs_1")
	assert.Contains(t, out.String(), "1 indexed, 0 failed, 1 total")
	assert.Contains(t, out.String(), "file-1 rates.pdf")
	assert.Contains(t, out.String(), "minute ago")
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &pipeline.Result{
		Label:     models.LabelPastPerformance,
		Agent:     "Past Performance",
		Answer:    "Three CPARS ratings are Exceptional.",
		Citations: []models.Citation{{FileRef: "file-2", Quote: "Exceptional"}},
	})

	assert.Equal(t, "Classification: past_performance (Past Performance)\n\n"+
		"Three CPARS ratings are Exceptional.\n\n"+
		"Sources:\n  1. file-2: \"Exceptional\"\n", out.String())
}
