package llamaserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scriptorium-ai/scriptorium/internal/backend"
)

// handle is a loaded model on a llama-server instance.
type handle struct {
	client *Client
	model  string
}

// Load implements backend.Loader. It connects to the server named by
// opts.BaseURL, verifies health, and requests the model load.
func Load(ctx context.Context, path string, opts backend.Options) (backend.Handle, error) {
	client := NewClient(Config{BaseURL: opts.BaseURL})

	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("server not ready: %w", err)
	}
	if err := client.LoadModel(ctx, path, opts); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return &handle{client: client, model: path}, nil
}

func (h *handle) Generate(ctx context.Context, req backend.Request) (backend.Response, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	creq := completionRequest{
		Prompt:        prompt,
		NPredict:      req.Sampling.MaxTokens,
		Temperature:   req.Sampling.Temperature,
		TopP:          req.Sampling.TopP,
		TopK:          req.Sampling.TopK,
		RepeatPenalty: req.Sampling.RepeatPenalty,
		Stop:          req.Sampling.Stop,
		CachePrompt:   true,
	}

	start := time.Now()
	cresp, err := h.client.Completion(ctx, creq)
	if err != nil {
		return backend.Response{}, err
	}

	return backend.Response{
		Text:     strings.TrimSpace(cresp.Content),
		Tokens:   cresp.TokensPredicted,
		Duration: time.Since(start),
	}, nil
}

func (h *handle) Embed(ctx context.Context, text string) ([]float32, error) {
	return h.client.Embedding(ctx, text)
}

func (h *handle) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.client.UnloadModel(ctx, h.model); err != nil {
		return fmt.Errorf("unloading %s: %w", h.model, err)
	}
	return nil
}

func init() {
	backend.Register("llamaserver", Load)
}
