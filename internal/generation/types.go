package generation

import (
	"encoding/json"
	"strings"

	"github.com/xaenox/proposal-assistant/internal/models"
)

// Request is the subset of the responses API this service sends.
type Request struct {
	Model           string      `json:"model"`
	Input           []InputItem `json:"input"`
	Tools           []Tool      `json:"tools,omitempty"`
	MaxOutputTokens int         `json:"max_output_tokens,omitempty"`
}

type InputItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool is a hosted tool attached to a request. Only file_search is used.
type Tool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
	MaxNumResults  int      `json:"max_num_results,omitempty"`
}

const ToolTypeFileSearch = "file_search"

// FileSearchTool binds retrieval to a single vector store. A zero
// maxResults leaves the service default in place.
func FileSearchTool(vectorStoreID string, maxResults int) Tool {
	return Tool{
		Type:           ToolTypeFileSearch,
		VectorStoreIDs: []string{vectorStoreID},
		MaxNumResults:  maxResults,
	}
}

// InputFromMessages converts role-tagged messages to request input.
func InputFromMessages(msgs ...models.Message) []InputItem {
	out := make([]InputItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, InputItem{Role: string(m.Role), Content: m.Text})
	}
	return out
}

// Response keeps only the fields read downstream. Annotations stay raw
// until the citation extractor decodes them.
type Response struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"`
	Model             string             `json:"model"`
	Output            []OutputItem       `json:"output"`
	Error             *ResponseError     `json:"error,omitempty"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details,omitempty"`
}

type OutputItem struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Status  string        `json:"status,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

type ContentPart struct {
	Type        string            `json:"type"`
	Text        string            `json:"text,omitempty"`
	Annotations []json.RawMessage `json:"annotations,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type IncompleteDetails struct {
	Reason string `json:"reason"`
}

const (
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusIncomplete = "incomplete"

	OutputTypeMessage = "message"
	ContentOutputText = "output_text"
)

// OutputText concatenates the text parts of every message item, in order.
func (r *Response) OutputText() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != OutputTypeMessage {
			continue
		}
		for _, part := range item.Content {
			if part.Type == ContentOutputText {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

// UsedFileSearch reports whether the model ran a file_search call.
func (r *Response) UsedFileSearch() bool {
	if r == nil {
		return false
	}
	for _, item := range r.Output {
		if item.Type == "file_search_call" {
			return true
		}
	}
	return false
}
