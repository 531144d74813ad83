package citations

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/proposal-assistant/internal/generation"
	"github.com/xaenox/proposal-assistant/internal/models"
)

func message(text string, annotations ...string) generation.OutputItem {
	part := generation.ContentPart{Type: generation.ContentOutputText, Text: text}
	for _, a := range annotations {
		part.Annotations = append(part.Annotations, json.RawMessage(a))
	}
	return generation.OutputItem{Type: generation.OutputTypeMessage, Content: []generation.ContentPart{part}}
}

func TestExtractDedupPreservesOrder(t *testing.T) {
	resp := &generation.Response{Output: []generation.OutputItem{
		message("first",
			`{"type":"file_citation","file_id":"file-b","filename":"rates.pdf"}`,
			`{"type":"file_citation","file_id":"file-a","filename":"resumes.docx"}`,
			`{"type":"file_citation","file_id":"file-b","filename":"rates.pdf"}`,
		),
		message("second",
			`{"type":"file_citation","file_id":"file-a","filename":"resumes.docx"}`,
			`{"type":"file_citation","file_id":"file-c","filename":"cpars.pdf"}`,
		),
	}}

	got := Extract(resp)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"file-b", "file-a", "file-c"}, []string{got[0].FileRef, got[1].FileRef, got[2].FileRef})
	assert.Equal(t, "rates.pdf", got[0].SourceLabel)
}

func TestExtractLegacyNestedShape(t *testing.T) {
	resp := &generation.Response{Output: []generation.OutputItem{
		message("x", `{"type":"file_citation","text":"【4:0†source】","file_citation":{"file_id":"file-9","quote":" Net 30 terms "}}`),
	}}

	got := Extract(resp)
	require.Len(t, got, 1)
	assert.Equal(t, models.Citation{FileRef: "file-9", Quote: "Net 30 terms"}, got[0])
}

func TestExtractContainerAndURLCitations(t *testing.T) {
	text := "Rates per GSA schedule ✓ apply."
	resp := &generation.Response{Output: []generation.OutputItem{
		message(text,
			`{"type":"container_file_citation","container_id":"cntr_1","file_id":"cfile-1","filename":"out.csv"}`,
			`{"type":"url_citation","url":"https://gsa.gov/schedules","title":"GSA","start_index":10,"end_index":24}`,
		),
	}}

	got := Extract(resp)
	require.Len(t, got, 2)
	assert.Equal(t, "cfile-1", got[0].FileRef)
	assert.Equal(t, models.Citation{SourceLabel: "https://gsa.gov/schedules", Quote: "GSA schedule ✓"}, got[1])
}

func TestExtractURLSpanOutOfRange(t *testing.T) {
	resp := &generation.Response{Output: []generation.OutputItem{
		message("short", `{"type":"url_citation","url":"https://example.com","start_index":2,"end_index":99}`),
	}}

	got := Extract(resp)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Quote)
	assert.Equal(t, "https://example.com", got[0].SourceLabel)
}

func TestExtractNeverFails(t *testing.T) {
	tests := []struct {
		name string
		resp *generation.Response
	}{
		{"nil response", nil},
		{"no output", &generation.Response{}},
		{"content without annotations", &generation.Response{Output: []generation.OutputItem{message("plain")}}},
		{"malformed annotation", &generation.Response{Output: []generation.OutputItem{message("x", `{"type":`, `42`, `null`)}}},
		{"unknown kind", &generation.Response{Output: []generation.OutputItem{message("x", `{"type":"file_path","file_id":"file-1"}`)}}},
		{"empty file citation", &generation.Response{Output: []generation.OutputItem{message("x", `{"type":"file_citation"}`)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Empty(t, Extract(tt.resp))
			})
		})
	}
}
