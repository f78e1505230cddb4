// Package classifier provides category classification backed by an
// OpenAI-compatible chat completions endpoint.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/config"
)

// maxResponseSize is the maximum accepted completion response (1MB)
const maxResponseSize = 1 << 20

// Classifier errors
var (
	ErrRequestFailed   = errors.New("classifier: request failed")
	ErrInvalidResponse = errors.New("classifier: invalid response")
)

// Ensure HTTPClassifier implements Classifier
var _ shopping.Classifier = (*HTTPClassifier)(nil)

const systemPrompt = `You sort shopping list items into store categories.
Answer with a JSON object {"items":[{"name":...,"category":...,"confidence":...}]}.
Use only the given categories. confidence is a number between 0 and 1.
Repeat each name exactly as given.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPClassifier asks a chat completions model to categorize item names
type HTTPClassifier struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures an HTTPClassifier
type Option func(*HTTPClassifier)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *HTTPClassifier) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClassifier) {
		c.httpClient = client
	}
}

// NewHTTPClassifier creates a classifier from configuration
func NewHTTPClassifier(cfg *config.ClassifierConfig, opts ...Option) (*HTTPClassifier, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("classifier: base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("classifier: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c := &HTTPClassifier{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify returns one classification per name the model answered for.
// Names the model skipped are simply absent from the result.
func (c *HTTPClassifier) Classify(ctx context.Context, names []string, categories []string) ([]shopping.Classification, error) {
	if len(names) == 0 {
		return nil, nil
	}

	prompt, err := json.Marshal(map[string][]string{
		"categories": categories,
		"items":      names,
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to encode prompt: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(prompt)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
	}

	var completion chatResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if completion.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	answers, err := parseAnswers(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Classified items",
		zap.Int("requested", len(names)),
		zap.Int("answered", len(answers)),
		zap.Duration("duration", time.Since(start)),
	)
	return answers, nil
}

// parseAnswers accepts either {"items":[...]} or a bare array, optionally
// wrapped in a markdown code fence.
func parseAnswers(content string) ([]shopping.Classification, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var answers []shopping.Classification
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &answers); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	} else {
		var wrapped struct {
			Items []shopping.Classification `json:"items"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		answers = wrapped.Items
	}

	out := answers[:0]
	for _, a := range answers {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
