package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/models"
)

// ChatCompleter is the part of *openai.Client the classifier needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type GPTResponse struct {
	Classification *string `json:"classification"`
}

type GPTClassifier struct {
	client    ChatCompleter
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

func NewGPTClassifier(client ChatCompleter, model string, maxTokens int, timeout time.Duration, logger *zap.Logger) *GPTClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPTClassifier{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "classifier")),
	}
}

// Classify makes a single chat completion call. Anything the model returns
// that is not one of the domain labels resolves to models.DefaultLabel; only
// a failed call is reported as an error.
func (c *GPTClassifier) Classify(ctx context.Context, input string) (models.Label, error) {
	if strings.TrimSpace(input) == "" {
		return models.LabelUnclassified, &models.ValidationError{
			Subject:    "message",
			Constraint: "required",
			Detail:     "input text is empty",
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: input,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: 0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		c.logger.Error("Failed to get classification", zap.Error(err))
		return models.LabelUnclassified, models.NewUpstreamError("classifier", "create chat completion", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("Classification returned no choices, using default label",
			zap.String("label", models.DefaultLabel.String()))
		return models.DefaultLabel, nil
	}

	raw := resp.Choices[0].Message.Content
	label, ok := ParseResponse(raw)
	if !ok {
		c.logger.Warn("Unusable classification, using default label",
			zap.String("response", raw),
			zap.String("label", models.DefaultLabel.String()),
			zap.String("prompt_version", PromptVersion))
		return models.DefaultLabel, nil
	}

	c.logger.Debug("Classified request", zap.String("label", label.String()))
	return label, nil
}

// ParseResponse extracts the label from the model's JSON reply. It reports
// false for malformed JSON, a missing or null field, or a value outside the
// domain labels.
func ParseResponse(raw string) (models.Label, bool) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return models.LabelUnclassified, false
	}

	var gptResponse GPTResponse
	if err := json.Unmarshal([]byte(text), &gptResponse); err != nil {
		return models.LabelUnclassified, false
	}
	if gptResponse.Classification == nil {
		return models.LabelUnclassified, false
	}
	return models.ParseLabel(*gptResponse.Classification)
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
