package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/pipeline"
)

// Telegram rejects messages longer than 4096 characters.
const maxMessageLen = 4096

func formatAnswer(res *pipeline.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", res.Agent, res.Answer)

	if len(res.Citations) > 0 {
		b.WriteString("\n\nSources:")
		for i, c := range res.Citations {
			source := c.SourceLabel
			if source == "" {
				source = c.FileRef
			}
			fmt.Fprintf(&b, "\n%d. %s", i+1, source)
			if c.Quote != "" {
				fmt.Fprintf(&b, ": %q", c.Quote)
			}
		}
	}
	return b.String()
}

// describeError turns a pipeline or ingestion error into a chat reply.
func describeError(err error) string {
	if violations := models.ValidationErrors(err); len(violations) > 0 {
		parts := make([]string, 0, len(violations))
		for _, v := range violations {
			parts = append(parts, fmt.Sprintf("%s: %s", v.Subject, v.Detail))
		}
		return strings.Join(parts, "\n")
	}

	var cfgErr *models.ConfigurationError
	if errors.As(err, &cfgErr) {
		return "The assistant is not fully configured: " + cfgErr.Error()
	}

	var ingErr *models.IngestionError
	if errors.As(err, &ingErr) {
		c := ingErr.Batch.FileCounts
		return fmt.Sprintf("Indexing %s: %d of %d files indexed, %d failed.", ingErr.Reason, c.Completed, c.Total, c.Failed)
	}

	var upErr *models.UpstreamError
	if errors.As(err, &upErr) {
		if upErr.Timeout() {
			return "The AI service took too long to answer. Please try again."
		}
		return "The AI service failed. Please try again later."
	}

	return "Something went wrong. Please try again."
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		cut := limit
		if i := strings.LastIndex(string(runes[:limit]), "\n"); i > 0 {
			cut = utf8.RuneCountInString(string(runes[:limit])[:i])
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		text = strings.TrimLeft(string(runes[cut:]), "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
