package observability

import "context"

// NoOpTracer is a tracer that does nothing. It is used when Langfuse
// is not configured or is explicitly disabled.
type NoOpTracer struct{}

func (n *NoOpTracer) StartRun(_ string, _ RunOptions) RunContext {
	return RunContext{}
}

func (n *NoOpTracer) StartAttempt(_ RunContext, _ int, _ AttemptOptions) AttemptContext {
	return AttemptContext{}
}

func (n *NoOpTracer) RecordGeneration(_ AttemptContext, _ GenerationInput) {}

func (n *NoOpTracer) RecordSkipped(_ RunContext, _ string, _ string) {}

func (n *NoOpTracer) EndAttempt(_ AttemptContext, _ string, _ int64) {}

func (n *NoOpTracer) CompleteRun(_ RunContext, _ CompleteOptions) {}

func (n *NoOpTracer) Flush(_ context.Context) error { return nil }

func (n *NoOpTracer) Stop(_ context.Context) error { return nil }
