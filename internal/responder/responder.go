package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/agents"
	"github.com/xaenox/proposal-assistant/internal/citations"
	"github.com/xaenox/proposal-assistant/internal/generation"
	"github.com/xaenox/proposal-assistant/internal/models"
)

// NoMatchSentence is the exact reply required when retrieval finds nothing.
const NoMatchSentence = "I searched the uploaded documents but found no matching text."

const retrievalClause = `CRITICAL TOOL RULE:
- You MUST use file_search to answer questions about uploaded documents.
- Use ONLY retrieved text from the uploaded documents.
- If nothing is found, say exactly: ` + NoMatchSentence + `
- Support each factual claim with a short quote from the retrieved text.`

const noRetrievalClause = `KNOWLEDGE BASE:
- No knowledge base is connected, so no uploaded documents can be searched.
- Answer from general proposal expertise and say that the answer is not based on uploaded documents.`

const plainTextClause = `CRITICAL OUTPUT RULE:
- Output PLAIN TEXT ONLY.
- Do NOT use Markdown (no bullets, no headings, no bold, no code blocks).
- Use short paragraphs with normal sentences.`

type Options struct {
	Model           string
	VectorStoreID   string // empty disables retrieval
	MaxNumResults   int
	MaxOutputTokens int
	Timeout         time.Duration
	PlainText       bool
}

// Answer is the raw generated text and the citations found in it. Grounded
// is true when retrieval was on and at least one citation came back.
type Answer struct {
	Text       string
	Citations  []models.Citation
	Grounded   bool
	ResponseID string
}

type Responder struct {
	gen    generation.Generator
	opts   Options
	logger *zap.Logger
}

func New(gen generation.Generator, opts Options, logger *zap.Logger) (*Responder, error) {
	if gen == nil {
		return nil, errors.New("responder: nil generator")
	}
	if opts.Model == "" {
		return nil, &models.ConfigurationError{Key: "openai.answer_model"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{gen: gen, opts: opts, logger: logger.With(zap.String("component", "responder"))}, nil
}

func (r *Responder) RetrievalEnabled() bool {
	return r.opts.VectorStoreID != ""
}

// SystemPrompt composes the profile prompt with the retrieval clause that
// matches this deployment.
func (r *Responder) SystemPrompt(profile agents.Profile) string {
	parts := []string{profile.SystemPrompt}
	if r.RetrievalEnabled() {
		parts = append(parts, retrievalClause)
	} else {
		parts = append(parts, noRetrievalClause)
	}
	if r.opts.PlainText {
		parts = append(parts, plainTextClause)
	}
	return strings.Join(parts, "\n\n")
}

// BuildRequest returns the generation request for one user turn. With
// retrieval on it carries exactly one file_search tool.
func (r *Responder) BuildRequest(profile agents.Profile, input string) generation.Request {
	req := generation.Request{
		Model: r.opts.Model,
		Input: generation.InputFromMessages(
			models.SystemMessage(r.SystemPrompt(profile)),
			models.UserMessage(input),
		),
		MaxOutputTokens: r.opts.MaxOutputTokens,
	}
	if r.RetrievalEnabled() {
		req.Tools = []generation.Tool{generation.FileSearchTool(r.opts.VectorStoreID, r.opts.MaxNumResults)}
	}
	return req
}

// Answer generates a reply under profile. Any generation failure is returned
// as *models.UpstreamError; there is no retry without retrieval.
func (r *Responder) Answer(ctx context.Context, profile agents.Profile, input string) (*Answer, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	resp, err := r.gen.CreateResponse(ctx, r.BuildRequest(profile, input))
	if err != nil {
		return nil, models.NewUpstreamError("generation", "create response", err)
	}

	if resp.Status == generation.StatusFailed {
		msg := "response failed"
		if resp.Error != nil && resp.Error.Message != "" {
			msg = fmt.Sprintf("response failed: %s (%s)", resp.Error.Message, resp.Error.Code)
		}
		return nil, models.NewUpstreamError("generation", "create response", errors.New(msg))
	}

	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return nil, models.NewUpstreamError("generation", "create response",
			fmt.Errorf("response %s has no output text (status %q)", resp.ID, resp.Status))
	}

	if resp.Status == generation.StatusIncomplete {
		reason := ""
		if resp.IncompleteDetails != nil {
			reason = resp.IncompleteDetails.Reason
		}
		r.logger.Warn("Generation incomplete, returning partial text",
			zap.String("response_id", resp.ID),
			zap.String("reason", reason))
	}

	cites := citations.Extract(resp)
	grounded := r.RetrievalEnabled() && len(cites) > 0
	if r.RetrievalEnabled() && !grounded {
		r.logger.Debug("Retrieval answer has no citations",
			zap.String("response_id", resp.ID),
			zap.Bool("file_search_called", resp.UsedFileSearch()))
	}

	return &Answer{
		Text:       text,
		Citations:  cites,
		Grounded:   grounded,
		ResponseID: resp.ID,
	}, nil
}
