package models

import (
	"fmt"
	"strings"
	"time"
)

// UploadItem is one user-supplied file waiting to be ingested.
type UploadItem struct {
	Name     string
	MIMEType string
	Size     int64
	Content  []byte
}

// IndexingStatus is the lifecycle state of an indexing batch.
//
//	queued -> in_progress -> completed | failed | cancelled
type IndexingStatus string

const (
	StatusQueued     IndexingStatus = "queued"
	StatusInProgress IndexingStatus = "in_progress"
	StatusCompleted  IndexingStatus = "completed"
	StatusFailed     IndexingStatus = "failed"
	StatusCancelled  IndexingStatus = "cancelled"
)

// ParseIndexingStatus accepts only the statuses of the batch state machine.
func ParseIndexingStatus(raw string) (IndexingStatus, error) {
	s := IndexingStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusQueued, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown indexing status %q", raw)
}

func (s IndexingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether a batch may move from s to next.
// Terminal states are final; repeating the current state is allowed.
func (s IndexingStatus) CanTransition(next IndexingStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusQueued:
		return next == StatusInProgress || next.IsTerminal()
	case StatusInProgress:
		return next.IsTerminal()
	}
	return false
}

// FileCounts is the per-file breakdown reported by the index for a batch.
type FileCounts struct {
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	InProgress int `json:"in_progress"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

// IndexingBatch is one ingestion submission as last observed from the index.
type IndexingBatch struct {
	BatchID    string         `json:"batch_id"`
	IndexRef   string         `json:"vector_store_id"`
	FileRefs   []string       `json:"file_refs"`
	FileNames  []string       `json:"file_names,omitempty"`
	Status     IndexingStatus `json:"status"`
	FileCounts FileCounts     `json:"file_counts"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Succeeded is true only for a batch that reached completed.
func (b *IndexingBatch) Succeeded() bool {
	return b != nil && b.Status == StatusCompleted
}
