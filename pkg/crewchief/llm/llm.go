// Package llm is a small client for OpenAI compatible chat-completion
// endpoints.
package llm

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

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/mpapenbr/crewchief/log"
)

const (
	DefaultEndpoint = "https://ai.gateway.lovable.dev/v1/chat/completions"
	DefaultModel    = "google/gemini-2.5-flash"
	DefaultTimeout  = 30 * time.Second
	// limit of the response body included in errors
	maxErrorBody = 512
)

var (
	ErrMissingAPIKey = errors.New("LLM api key not configured")
	ErrEmptyResponse = errors.New("LLM response contains no message content")
	contentPath      = jp.MustParseString("$.choices[0].message.content")
)

// APIError is returned when the endpoint answers with a non 2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM api error: %d", e.StatusCode)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Completer produces the assistant answer for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Client struct {
	endpoint string
	model    string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	tracer   trace.Tracer
	logger   *log.Logger
}

type Option func(*Client)

func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient sets the base client used below the bearer token transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

func New(opts ...Option) (*Client, error) {
	ret := &Client{
		endpoint: DefaultEndpoint,
		model:    DefaultModel,
		timeout:  DefaultTimeout,
		logger:   log.Default().Named("llm"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("crewchief")
	}
	base := ret.client
	if base == nil {
		base = &http.Client{}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	ret.client = oauth2.NewClient(ctx,
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: ret.apiKey}))
	ret.client.Timeout = ret.timeout
	return ret, nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends the request and returns the content of the first choice.
//
//nolint:funlen // ok
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm chat completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", c.model),
		attribute.Int("maxTokens", req.MaxTokens),
	)

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("LLM request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data))}
		c.logger.Error("LLM api error",
			log.Int("status", resp.StatusCode),
			log.String("body", apiErr.Body))
		span.SetStatus(codes.Error, apiErr.Error())
		return "", apiErr
	}
	content, err := extractContent(data)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return content, nil
}

func extractContent(data []byte) (string, error) {
	obj, err := oj.Parse(data)
	if err != nil {
		return "", fmt.Errorf("LLM response: %w", err)
	}
	for _, v := range contentPath.Get(obj) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", ErrEmptyResponse
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
