package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/agents"
	"github.com/xaenox/proposal-assistant/internal/classifier"
	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/responder"
	"github.com/xaenox/proposal-assistant/internal/sanitize"
)

// Answerer is the responder step. *responder.Responder implements it.
type Answerer interface {
	Answer(ctx context.Context, profile agents.Profile, input string) (*responder.Answer, error)
}

// Result is what a caller gets back for one request.
type Result struct {
	Label     models.Label      `json:"classification"`
	Agent     string            `json:"agent"`
	Answer    string            `json:"reply"`
	Citations []models.Citation `json:"citations"`
	Grounded  bool              `json:"grounded"`
}

// Pipeline runs classification then answering for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	classifier classifier.Classifier
	answerer   Answerer
	plainText  bool
	logger     *zap.Logger
}

func New(c classifier.Classifier, a Answerer, plainText bool, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier: c,
		answerer:   a,
		plainText:  plainText,
		logger:     logger.With(zap.String("component", "pipeline")),
	}
}

// Run classifies input, routes it to a profile and answers it. The answer is
// stripped of markdown when plain text output is configured.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	return p.run(ctx, input, p.plainText)
}

// RunWithFormat is Run with the plain text setting overridden.
func (p *Pipeline) RunWithFormat(ctx context.Context, input string, plainText bool) (*Result, error) {
	return p.run(ctx, input, plainText)
}

func (p *Pipeline) run(ctx context.Context, input string, plainText bool) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &models.ValidationError{Subject: "message", Constraint: "required", Detail: "Missing message"}
	}

	start := time.Now()
	label, err := p.classifier.Classify(ctx, input)
	if err != nil {
		return nil, err
	}

	profile := agents.Route(label)
	answer, err := p.answerer.Answer(ctx, profile, input)
	if err != nil {
		return nil, err
	}

	text := answer.Text
	if plainText {
		text = sanitize.StripMarkdown(text)
	}

	cites := answer.Citations
	if cites == nil {
		cites = []models.Citation{}
	}

	p.logger.Info("Answered request",
		zap.String("label", label.String()),
		zap.String("agent", profile.Name),
		zap.Int("citations", len(cites)),
		zap.Bool("grounded", answer.Grounded),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		Label:     label,
		Agent:     profile.Name,
		Answer:    text,
		Citations: cites,
		Grounded:  answer.Grounded,
	}, nil
}
