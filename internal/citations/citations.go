package citations

import (
	"encoding/json"
	"strings"

	"github.com/xaenox/proposal-assistant/internal/generation"
	"github.com/xaenox/proposal-assistant/internal/models"
)

const (
	kindFileCitation          = "file_citation"
	kindContainerFileCitation = "container_file_citation"
	kindURLCitation           = "url_citation"
)

// annotation covers the current flat shapes and the older nested
// file_citation object. Unknown fields are ignored.
type annotation struct {
	Type       string `json:"type"`
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	Quote      string `json:"quote"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	StartIndex *int   `json:"start_index"`
	EndIndex   *int   `json:"end_index"`

	FileCitation *struct {
		FileID   string `json:"file_id"`
		Filename string `json:"filename"`
		Quote    string `json:"quote"`
	} `json:"file_citation"`
}

// Extract collects file and URL citations from resp in the order the model
// emitted them, dropping duplicates. Malformed or unknown annotations are
// skipped; a nil response yields nil.
func Extract(resp *generation.Response) []models.Citation {
	if resp == nil {
		return nil
	}

	var out []models.Citation
	seen := make(map[string]struct{})

	for _, item := range resp.Output {
		for _, part := range item.Content {
			for _, raw := range part.Annotations {
				c, ok := decode(raw, part.Text)
				if !ok {
					continue
				}
				key := c.Key()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

func decode(raw json.RawMessage, text string) (models.Citation, bool) {
	var a annotation
	if err := json.Unmarshal(raw, &a); err != nil {
		return models.Citation{}, false
	}

	var c models.Citation
	switch a.Type {
	case kindFileCitation, kindContainerFileCitation:
		c.FileRef = a.FileID
		c.SourceLabel = a.Filename
		c.Quote = a.Quote
		if nested := a.FileCitation; nested != nil {
			c.FileRef = firstNonEmpty(c.FileRef, nested.FileID)
			c.SourceLabel = firstNonEmpty(c.SourceLabel, nested.Filename)
			c.Quote = firstNonEmpty(c.Quote, nested.Quote)
		}
	case kindURLCitation:
		c.SourceLabel = firstNonEmpty(a.URL, a.Title)
		c.Quote = span(text, a.StartIndex, a.EndIndex)
	default:
		return models.Citation{}, false
	}

	c.Quote = strings.TrimSpace(c.Quote)
	if c.FileRef == "" && c.SourceLabel == "" && c.Quote == "" {
		return models.Citation{}, false
	}
	return c, true
}

// span returns text[start:end] counted in runes, or "" when the bounds are
// missing or out of range.
func span(text string, start, end *int) string {
	if start == nil || end == nil {
		return ""
	}
	runes := []rune(text)
	s, e := *start, *end
	if s < 0 || e > len(runes) || s >= e {
		return ""
	}
	return string(runes[s:e])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
