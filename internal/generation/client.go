package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Generator creates one model response. *Client implements it.
type Generator interface {
	CreateResponse(ctx context.Context, req Request) (*Response, error)
}

type Client struct {
	apiKey       string
	baseURL      string
	organization string
	httpClient   *http.Client
	logger       *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithOrganization(org string) Option {
	return func(c *Client) { c.organization = org }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateResponse posts req to the responses endpoint. Error replies are
// returned as *openai.APIError carrying the HTTP status; replies that cannot
// be decoded come back as *openai.RequestError with the raw body.
func (c *Client) CreateResponse(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("Responses call finished",
		zap.String("model", req.Model),
		zap.Int("status", resp.StatusCode),
		zap.Int("tools", len(req.Tools)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp, raw)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &openai.RequestError{
			HTTPStatus:     resp.Status,
			HTTPStatusCode: resp.StatusCode,
			Err:            fmt.Errorf("decode response: %w", err),
			Body:           raw,
		}
	}
	return &out, nil
}

func decodeError(resp *http.Response, raw []byte) error {
	var errResp openai.ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error != nil {
		errResp.Error.HTTPStatus = resp.Status
		errResp.Error.HTTPStatusCode = resp.StatusCode
		return errResp.Error
	}
	return &openai.RequestError{
		HTTPStatus:     resp.Status,
		HTTPStatusCode: resp.StatusCode,
		Err:            errors.New(strings.TrimSpace(string(raw))),
		Body:           raw,
	}
}
