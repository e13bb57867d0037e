// Package llamaserver adapts a llama-server HTTP instance to the backend
// contract. The server hosts GGUF models and exposes completion and
// embedding endpoints plus admin load/unload for model switching.
package llamaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/scriptorium-ai/scriptorium/internal/backend"
)

// ErrorType classifies client failures so callers can decide between
// retrying and surfacing.
type ErrorType string

const (
	ErrTypeConnection ErrorType = "connection"
	ErrTypeTimeout    ErrorType = "timeout"
	ErrTypeHTTP       ErrorType = "http"
	ErrTypeDecode     ErrorType = "decode"
)

// ClientError wraps a transport or protocol failure with its class.
// StatusCode is set for ErrTypeHTTP failures.
type ClientError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llamaserver: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("llamaserver: %s", e.Message)
}

func (e *ClientError) Unwrap() error { return e.Cause }

// IsConnectionError reports whether err is a failure to reach the server.
func IsConnectionError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeConnection
}

// IsTimeout reports whether err is a deadline or timeout failure.
func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeTimeout
}

// IsClientRejection reports whether err is a 4xx response: the request
// itself was rejected and retrying the same request cannot help.
func IsClientRejection(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeHTTP &&
		ce.StatusCode >= 400 && ce.StatusCode < 500
}

// Config holds client connection settings.
type Config struct {
	// BaseURL is the llama-server address, e.g. http://127.0.0.1:8080.
	BaseURL string

	// Timeout bounds a single HTTP exchange. Generation requests also
	// honor the caller's context deadline.
	Timeout time.Duration
}

const (
	defaultBaseURL = "http://127.0.0.1:8080"
	defaultTimeout = 300 * time.Second
)

// Client is a minimal llama-server HTTP client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client, filling zero config fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Health checks that the server is up and ready.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", &out); err != nil {
		return err
	}
	if out.Status != "ok" && out.Status != "" {
		return &ClientError{Type: ErrTypeHTTP, Message: fmt.Sprintf("server status %q", out.Status)}
	}
	return nil
}

// loadRequest mirrors the admin load endpoint payload.
type loadRequest struct {
	Model     string `json:"model"`
	CtxSize   int    `json:"ctx_size,omitempty"`
	GPULayers int    `json:"gpu_layers,omitempty"`
	Threads   int    `json:"threads,omitempty"`
}

// LoadModel asks the server to load the model file at path.
func (c *Client) LoadModel(ctx context.Context, path string, opts backend.Options) error {
	req := loadRequest{
		Model:     path,
		CtxSize:   opts.ContextSize,
		GPULayers: opts.GPULayers,
		Threads:   opts.Threads,
	}
	return c.post(ctx, "/admin/load", req, nil)
}

// UnloadModel asks the server to release the model file at path.
func (c *Client) UnloadModel(ctx context.Context, path string) error {
	return c.post(ctx, "/admin/unload", map[string]string{"model": path}, nil)
}

// completionRequest is the /completion payload.
type completionRequest struct {
	Prompt        string   `json:"prompt"`
	NPredict      int      `json:"n_predict,omitempty"`
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	CachePrompt   bool     `json:"cache_prompt"`
}

// completionResponse is the subset of the /completion reply we consume.
type completionResponse struct {
	Content         string `json:"content"`
	TokensPredicted int    `json:"tokens_predicted"`
	StoppedEOS      bool   `json:"stopped_eos"`
	StoppedLimit    bool   `json:"stopped_limit"`
}

// Completion runs a text completion.
func (c *Client) Completion(ctx context.Context, req completionRequest) (*completionResponse, error) {
	var out completionResponse
	if err := c.post(ctx, "/completion", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Embedding returns the embedding vector for content.
func (c *Client) Embedding(ctx context.Context, content string) ([]float32, error) {
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := c.post(ctx, "/embedding", map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, &ClientError{Type: ErrTypeDecode, Message: "empty embedding in response"}
	}
	return out.Embedding, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "building request", Cause: err}
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &ClientError{Type: ErrTypeDecode, Message: "encoding request", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ClientError{
			Type:       ErrTypeHTTP,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeDecode, Message: fmt.Sprintf("decoding %s response", path), Cause: err}
	}
	return nil
}

func classifyTransport(path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: path + " deadline exceeded", Cause: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: path + " timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: path + " request failed", Cause: err}
}
