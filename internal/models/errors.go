package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ConfigurationError means a required setting is missing or invalid. It is
// detected before any upstream call is made.
type ConfigurationError struct {
	Key    string
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("configuration: %s is required", e.Key)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Detail)
}

// Validation constraints.
const (
	ConstraintRequired = "required"
	ConstraintSize     = "size"
	ConstraintType     = "type"
	ConstraintEmpty    = "empty"
)

// ValidationError is a client-caused problem with a request or an upload.
type ValidationError struct {
	Subject    string // the file name or request field at fault
	Constraint string // size, type, required
	Detail     string
	Allowed    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%s): %s", e.Subject, e.Constraint, e.Detail)
}

// ValidationErrors flattens err (possibly built with errors.Join) into its
// validation failures.
func ValidationErrors(err error) []*ValidationError {
	var out []*ValidationError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ve, ok := e.(*ValidationError); ok {
			out = append(out, ve)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

// UpstreamError wraps a failure of the generation, file or index service.
// The wrapped error is kept intact so its diagnostic payload survives.
type UpstreamError struct {
	Service string
	Op      string
	Err     error
}

func NewUpstreamError(service, op string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Op: op, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusCode returns the upstream HTTP status, or 0 when the call never got
// an HTTP answer.
func (e *UpstreamError) StatusCode() int {
	var apiErr *openai.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(e.Err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// Timeout reports whether the call ran out of time.
func (e *UpstreamError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IngestionError reports a batch that did not reach completed, with the last
// counts observed so the caller can tell how many files made it.
type IngestionError struct {
	Batch  IndexingBatch
	Reason string
}

func (e *IngestionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ingestion batch %s %s", e.Batch.BatchID, e.Reason)
	c := e.Batch.FileCounts
	fmt.Fprintf(&b, ": %d/%d files indexed, %d failed, %d in progress", c.Completed, c.Total, c.Failed, c.InProgress)
	return b.String()
}
