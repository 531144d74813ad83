package ingestion

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/xaenox/proposal-assistant/internal/models"
)

const genericMIME = "application/octet-stream"

// knownMIMEs maps an allowed extension to the media types that identify it.
// Extensions missing here can only be matched by file name.
var knownMIMEs = map[string][]string{
	"pdf":  {"application/pdf"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"doc":  {"application/msword"},
	"pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	"txt":  {"text/plain"},
	"md":   {"text/markdown", "text/x-markdown"},
	"csv":  {"text/csv"},
	"json": {"application/json"},
	"html": {"text/html"},
}

// Validator checks upload items against the size limit and the allowed
// type list.
type Validator struct {
	maxBytes     int64
	allowedExt   []string
	allowedMIMEs map[string]struct{}
}

func NewValidator(maxBytes int64, allowed []string) *Validator {
	v := &Validator{maxBytes: maxBytes, allowedMIMEs: make(map[string]struct{})}
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || slices.Contains(v.allowedExt, ext) {
			continue
		}
		v.allowedExt = append(v.allowedExt, ext)
		for _, m := range knownMIMEs[ext] {
			v.allowedMIMEs[m] = struct{}{}
		}
	}
	return v
}

// Allowed returns the allowed extensions, for error payloads.
func (v *Validator) Allowed() []string {
	return slices.Clone(v.allowedExt)
}

// Validate checks every item and joins all violations. It never stops at the
// first bad item so the caller can report them together.
func (v *Validator) Validate(items []models.UploadItem) error {
	if len(items) == 0 {
		return &models.ValidationError{
			Subject:    "files",
			Constraint: models.ConstraintRequired,
			Detail:     "No files uploaded",
			Allowed:    v.Allowed(),
		}
	}

	var errs []error
	for _, item := range items {
		if err := v.validateItem(item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v *Validator) validateItem(item models.UploadItem) error {
	size := item.Size
	if n := int64(len(item.Content)); n > size {
		size = n
	}

	switch {
	case size == 0:
		return &models.ValidationError{
			Subject:    item.Name,
			Constraint: models.ConstraintEmpty,
			Detail:     "file is empty",
		}
	case size > v.maxBytes:
		return &models.ValidationError{
			Subject:    item.Name,
			Constraint: models.ConstraintSize,
			Detail: fmt.Sprintf("%s exceeds the %s limit",
				humanize.Bytes(uint64(size)), humanize.Bytes(uint64(v.maxBytes))),
		}
	}

	if !v.typeAllowed(item) {
		return &models.ValidationError{
			Subject:    item.Name,
			Constraint: models.ConstraintType,
			Detail:     fmt.Sprintf("type %q is not allowed", effectiveMIME(item)),
			Allowed:    v.Allowed(),
		}
	}
	return nil
}

func (v *Validator) typeAllowed(item models.UploadItem) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(item.Name), "."))
	if ext != "" && slices.Contains(v.allowedExt, ext) {
		return true
	}

	declared := baseMIME(item.MIMEType)
	if declared != "" && declared != genericMIME {
		_, ok := v.allowedMIMEs[declared]
		return ok
	}

	if len(item.Content) == 0 {
		return false
	}
	detected := mimetype.Detect(item.Content)
	for m := range v.allowedMIMEs {
		if detected.Is(m) {
			return true
		}
	}
	return slices.Contains(v.allowedExt, strings.TrimPrefix(detected.Extension(), "."))
}

// effectiveMIME is the declared type, or the sniffed one when the declared
// type says nothing.
func effectiveMIME(item models.UploadItem) string {
	declared := baseMIME(item.MIMEType)
	if declared != "" && declared != genericMIME {
		return declared
	}
	if len(item.Content) == 0 {
		return genericMIME
	}
	detected, _, _ := mime.ParseMediaType(mimetype.Detect(item.Content).String())
	return detected
}

func baseMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return mediaType
}
