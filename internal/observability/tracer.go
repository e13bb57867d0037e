package observability

import "context"

// Tracer defines the interface for observability tracing.
// Implementations track the lifecycle of generation runs,
// recording model invocations and skipped stages.
//
// Trace hierarchy:
//
//	Run (Trace)
//	  └── Attempt (Span): one generation call with its retry schedule,
//	        the first draft or a single refinement operation
//	        └── Model call (Generation): the completed invocation
type Tracer interface {
	StartRun(runID string, opts RunOptions) RunContext
	StartAttempt(run RunContext, attempt int, opts AttemptOptions) AttemptContext
	RecordGeneration(attempt AttemptContext, gen GenerationInput)
	RecordSkipped(run RunContext, stage string, reason string)
	EndAttempt(attempt AttemptContext, status string, durationMs int64)
	CompleteRun(run RunContext, opts CompleteOptions)
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RunContext holds the context for an active trace (run level).
type RunContext struct {
	TraceID  string
	RunID    string
	Metadata map[string]string
}

// AttemptContext holds the context for an active span (attempt level).
type AttemptContext struct {
	SpanID  string
	Attempt int
	TraceID string
}

// RunOptions configures a new trace.
type RunOptions struct {
	Subject string
	Backend string
	Model   string
}

// AttemptOptions configures a new span.
type AttemptOptions struct {
	MaxAttempts int
	Metadata    map[string]string
}

// GenerationInput describes a model invocation to record.
type GenerationInput struct {
	Name         string // "entry" for the first draft, "refine" afterwards
	Model        string
	Input        string // Prompt text sent to the model
	Output       string // Text the model produced
	InputTokens  int
	OutputTokens int
	Status       string // "completed" or "error"
	DurationMs   int64
}

// CompleteOptions configures trace completion.
type CompleteOptions struct {
	Status            string // "accepted", "rejected", or "failed"
	Score             float64
	Tier              string
	TotalInputTokens  int
	TotalOutputTokens int
}
