package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xaenox/proposal-assistant/internal/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Upload documents into the configured vector store and wait for indexing",
	Example: `  assistant ingest rates.pdf past-performance.docx`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireVectorStore(); err != nil {
			return err
		}
		ctx := cmd.Context()

		items, err := readUploads(args)
		if err != nil {
			return err
		}

		ledger, err := openLedger(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer ledger.Close()

		ing := buildIngestor(cfg, newOpenAIClient(cfg), ledger, logger)
		batch, err := ing.Ingest(ctx, items)
		if err != nil {
			return err
		}
		printBatch(cmd.OutOrStdout(), batch)
		return nil
	},
}

// readUploads loads each path as an upload item. The MIME type is left for
// the ingestion validator to sniff.
func readUploads(paths []string) ([]models.UploadItem, error) {
	items := make([]models.UploadItem, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		items = append(items, models.UploadItem{
			Name:    filepath.Base(path),
			Size:    int64(len(content)),
			Content: content,
		})
	}
	return items, nil
}

func printBatch(w io.Writer, batch *models.IndexingBatch) {
	c := batch.FileCounts
	fmt.Fprintf(w, "Batch %s %s in vector store %s\n", batch.BatchID, batch.Status, batch.IndexRef)
	fmt.Fprintf(w, "  files: %d indexed, %d failed, %d total\n", c.Completed, c.Failed, c.Total)
	for i, ref := range batch.FileRefs {
		name := ""
		if i < len(batch.FileNames) {
			name = batch.FileNames[i]
		}
		fmt.Fprintf(w, "  %s %s\n", ref, name)
	}
	if !batch.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  submitted %s\n", humanize.Time(batch.CreatedAt))
	}
}
