package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/proposal-assistant/internal/models"
)

// Classifier maps a free-text request to exactly one label.
type Classifier interface {
	Classify(ctx context.Context, input string) (models.Label, error)
}

// PromptVersion identifies the classification instruction below. Bump it
// whenever the wording changes so logged results stay comparable.
const PromptVersion = "2024-06-classify-v1"

var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a classification agent.\n\n")
	b.WriteString("Classify the user's request into ONE of the following values:\n")
	for _, label := range models.DomainLabels() {
		fmt.Fprintf(&b, "- %s\n", label)
	}
	b.WriteString("\nReturn ONLY valid JSON:\n")
	b.WriteString(`{ "classification": "<value>" }`)
	return b.String()
}

// SystemPrompt returns the fixed classification instruction.
func SystemPrompt() string {
	return systemPrompt
}
