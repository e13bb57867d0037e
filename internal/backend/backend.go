// Package backend defines the contract between the pipeline and inference
// engines. An adapter turns a model path plus opaque engine options into a
// loaded Handle; the lifecycle manager owns when handles are created and
// released, the router decides which one serves a task.
package backend

import (
	"context"
	"time"
)

// Options carries engine initialization parameters. The pipeline passes
// them through unchanged; their meaning belongs to the adapter.
type Options struct {
	// BaseURL is the inference server address for HTTP adapters.
	BaseURL string

	// ContextSize is the token context window to request at load.
	ContextSize int

	// GPULayers is the number of layers to offload to the GPU.
	// -1 requests full offload.
	GPULayers int

	// Threads is the CPU thread count for generation.
	Threads int
}

// Sampling holds the generation sampling parameters forwarded with every
// request.
type Sampling struct {
	Temperature   float64
	TopP          float64
	TopK          int
	MaxTokens     int
	RepeatPenalty float64
	Stop          []string
}

// Request is a single generation call against a loaded handle.
type Request struct {
	System   string
	Prompt   string
	Sampling Sampling
}

// Response is the result of a generation call.
type Response struct {
	Text     string
	Tokens   int
	Duration time.Duration
}

// Handle is a loaded, ready-to-serve model instance. Implementations are
// not required to support concurrent Generate calls; the pipeline issues
// them sequentially per handle.
type Handle interface {
	// Generate produces text for the request. Cancellation and deadlines
	// arrive through ctx.
	Generate(ctx context.Context, req Request) (Response, error)

	// Embed returns the embedding vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases the instance and any device memory it holds.
	Close() error
}

// Loader materializes a Handle for the model at path. Adapters register
// loaders under their adapter name; the lifecycle manager invokes them.
type Loader func(ctx context.Context, path string, opts Options) (Handle, error)
