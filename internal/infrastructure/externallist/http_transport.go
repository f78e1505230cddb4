// Package externallist provides the command transport used to talk to the
// external list through its state endpoints.
package externallist

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

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/infrastructure/config"
)

// defaultMaxBodySize bounds state responses when the config leaves it unset (4MB)
const defaultMaxBodySize = 4 << 20

// Transport errors
var (
	ErrStateRequestFailed = errors.New("externallist: state request failed")
	ErrResponseTooLarge   = errors.New("externallist: response body too large")
	ErrInvalidResponse    = errors.New("externallist: invalid state response")
)

// Ensure HTTPTransport implements CommandTransport
var _ integration.CommandTransport = (*HTTPTransport)(nil)

// stateEnvelope is the body of a state read or write
type stateEnvelope struct {
	Val json.RawMessage `json:"val"`
}

// HTTPTransport reads and writes external states over a REST state API:
//
//	GET  {base}/states/{id}  -> {"val": ...}
//	POST {base}/states/{id}  <- {"val": ...}
type HTTPTransport struct {
	baseURL     string
	token       string
	maxBodySize int64
	httpClient  *http.Client
	logger      *zap.Logger
}

// Option configures an HTTPTransport
type Option func(*HTTPTransport)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTransport) {
		t.httpClient = client
	}
}

// NewHTTPTransport creates a transport from the external config
func NewHTTPTransport(cfg *config.ExternalConfig, opts ...Option) (*HTTPTransport, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("externallist: base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("externallist: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}

	t := &HTTPTransport{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		maxBodySize: maxBody,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTransport) stateURL(id string) string {
	return t.baseURL + "/states/" + url.PathEscape(id)
}

// ReadSnapshot returns the raw JSON text held by a snapshot state. String
// values are unwrapped; a missing state reads as empty.
func (t *HTTPTransport) ReadSnapshot(ctx context.Context, snapshotID string) (string, error) {
	val, found, err := t.readState(ctx, snapshotID)
	if err != nil {
		return "", err
	}
	if !found {
		t.logger.Debug("Snapshot state not found", zap.String("snapshot_id", snapshotID))
		return "", nil
	}

	trimmed := bytes.TrimSpace(val)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return s, nil
	}
	return string(trimmed), nil
}

// WriteCommand posts a value to a command state
func (t *HTTPTransport) WriteCommand(ctx context.Context, commandID string, value any) error {
	payload, err := json.Marshal(map[string]any{"val": value})
	if err != nil {
		return fmt.Errorf("externallist: failed to encode command: %w", err)
	}

	req, err := t.newRequest(ctx, http.MethodPost, commandID, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateRequestFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, t.maxBodySize))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s returned HTTP %d", ErrStateRequestFailed, commandID, resp.StatusCode)
	}

	t.logger.Debug("Command written", zap.String("command_id", commandID))
	return nil
}

// ConnectionHealth reads a boolean connection state. Anything other than a
// boolean reads as unknown.
func (t *HTTPTransport) ConnectionHealth(ctx context.Context, connectionID string) (integration.ConnectionHealth, error) {
	if connectionID == "" {
		return integration.HealthHealthy, nil
	}

	val, found, err := t.readState(ctx, connectionID)
	if err != nil {
		return integration.HealthUnknown, err
	}
	if !found {
		return integration.HealthUnknown, nil
	}

	var connected bool
	if err := json.Unmarshal(val, &connected); err != nil {
		return integration.HealthUnknown, nil
	}
	if connected {
		return integration.HealthHealthy, nil
	}
	return integration.HealthDown, nil
}

// readState fetches the val of a state. found is false for 404.
func (t *HTTPTransport) readState(ctx context.Context, id string) (json.RawMessage, bool, error) {
	req, err := t.newRequest(ctx, http.MethodGet, id, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStateRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("%w: %s returned HTTP %d", ErrStateRequestFailed, id, resp.StatusCode)
	}

	// Read one byte past the limit to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize+1))
	if err != nil {
		return nil, false, fmt.Errorf("externallist: failed to read response: %w", err)
	}
	if int64(len(body)) > t.maxBodySize {
		return nil, false, fmt.Errorf("%w: %s", ErrResponseTooLarge, id)
	}

	var env stateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(env.Val) == 0 {
		return json.RawMessage("null"), true, nil
	}
	return env.Val, true, nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, id string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.stateURL(id), body)
	if err != nil {
		return nil, fmt.Errorf("externallist: failed to create request: %w", err)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return req, nil
}
