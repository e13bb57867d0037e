package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/scriptorium-ai/scriptorium/internal/backend"
	"github.com/scriptorium-ai/scriptorium/internal/config"
	"github.com/scriptorium-ai/scriptorium/internal/events"
	"github.com/scriptorium-ai/scriptorium/internal/export"
	"github.com/scriptorium-ai/scriptorium/internal/observability"
	"github.com/scriptorium-ai/scriptorium/internal/prompt"
	"github.com/scriptorium-ai/scriptorium/internal/refine"
	"github.com/scriptorium-ai/scriptorium/internal/retry"
	"github.com/scriptorium-ai/scriptorium/internal/router"
	"github.com/scriptorium-ai/scriptorium/internal/state"
)

// RunReport is the caller-facing outcome of one generation run. A
// report with Result.Accepted false and a nil error is a completed run
// whose best attempt stayed below the threshold.
type RunReport struct {
	Result     export.Result
	EntryPath  string
	ResultPath string
	EventsPath string
}

// Generate produces one encyclopedia entry. The returned error is
// reserved for runs that could not complete: no qualified backend,
// load failure, or every generation attempt failing. A completed run
// that missed the quality bar returns normally with Accepted false.
func (p *Pipeline) Generate(ctx context.Context, subject string) (RunReport, error) {
	runID := newRunID()
	rep := RunReport{Result: export.Result{
		RunID:       runID,
		Subject:     subject,
		GeneratedAt: time.Now().UTC(),
	}}

	sink, err := events.NewFileSink(p.eventsDir(), runID)
	if err != nil {
		p.logger.Printf("pipeline: event sink unavailable for %s: %v", runID, err)
		sink = nil
	} else {
		rep.EventsPath = sink.Path()
		defer sink.Close()
	}

	p.emit(sink, events.RunEvent{
		RunID:   runID,
		Subject: subject,
		Type:    events.EventRunStarted,
	})

	var run observability.RunContext
	fail := func(stage string, cause error) (RunReport, error) {
		rep.Result.Error = cause.Error()
		if path, werr := p.writer.WriteResult(rep.Result); werr != nil {
			p.logger.Printf("pipeline: writing failure record for %s: %v", runID, werr)
		} else {
			rep.ResultPath = path
		}
		p.emit(sink, events.RunEvent{
			RunID:   runID,
			Subject: subject,
			Stage:   stage,
			Type:    events.EventRunFailed,
			Message: cause.Error(),
		})
		if run.TraceID != "" {
			p.tracer.CompleteRun(run, observability.CompleteOptions{Status: "failed"})
		}
		p.recordRun(state.RunSummary{
			RunID:   runID,
			Subject: subject,
			Backend: rep.Result.Backend,
			Failed:  true,
			Error:   cause.Error(),
		})
		return rep, cause
	}

	backendName, ok := p.router.Route(router.TaskEntry)
	if !ok {
		return fail("route", &RouteError{TaskType: router.TaskEntry})
	}
	rep.Result.Backend = backendName
	p.emit(sink, events.RunEvent{
		RunID:   runID,
		Subject: subject,
		Stage:   "route",
		Type:    events.EventModelSelected,
		Backend: backendName,
	})

	handle, err := p.acquireHandle(ctx, backendName)
	if err != nil {
		return fail("generate", &GenerationError{Subject: subject, Backend: backendName, Err: err})
	}

	modelName := ""
	if bcfg, ok := p.backendConfig(backendName); ok {
		modelName = filepath.Base(bcfg.Path)
	}
	run = p.tracer.StartRun(runID, observability.RunOptions{
		Subject: subject,
		Backend: backendName,
		Model:   modelName,
	})

	passages := p.retrieveContext(ctx, handle, subject, sink, runID)
	initialPrompt := prompt.BuildEntryPrompt(subject, passages, p.cfg.Generation.MinWords, p.cfg.Generation.MaxWords)

	// A cached entry seeds the loop instead of replacing it: the seed
	// is re-assessed and only skips generation when it still clears the
	// threshold.
	entryKey := entryCacheKey(subject, initialPrompt)
	seed := ""
	if cached, ok := p.cache.Get(entryKey); ok {
		seed = string(cached)
		p.emit(sink, events.RunEvent{
			RunID:   runID,
			Subject: subject,
			Stage:   "cache",
			Type:    events.EventCacheHit,
			Message: entryKey,
		})
		p.tracer.RecordSkipped(run, "draft", "seeded from entry cache")
	}

	var genLatency time.Duration
	var genCalls, genAttempt int
	var totalIn, totalOut int
	gen := func(ctx context.Context, text string) (string, error) {
		genAttempt++
		name := "refine"
		if genAttempt == 1 && seed == "" {
			name = "entry"
		}
		span := p.tracer.StartAttempt(run, genAttempt, observability.AttemptOptions{
			MaxAttempts: p.cfg.Generation.MaxAttempts,
		})
		start := time.Now()
		resp, err := retry.Do(ctx, p.genPolicy, p.logger, "generate "+backendName,
			func(ctx context.Context) (backend.Response, error) {
				return handle.Generate(ctx, backend.Request{
					System:   p.systemPrompt,
					Prompt:   text,
					Sampling: p.sampling,
				})
			}, backend.Response{})
		elapsed := time.Since(start)
		if err != nil {
			p.tracer.EndAttempt(span, "error", elapsed.Milliseconds())
			return "", err
		}
		genLatency += elapsed
		genCalls++
		inTokens := estimateTokens(p.systemPrompt) + estimateTokens(text)
		totalIn += inTokens
		totalOut += resp.Tokens
		p.tracer.RecordGeneration(span, observability.GenerationInput{
			Name:         name,
			Model:        modelName,
			Input:        text,
			Output:       resp.Text,
			InputTokens:  inTokens,
			OutputTokens: resp.Tokens,
			Status:       "completed",
			DurationMs:   elapsed.Milliseconds(),
		})
		p.tracer.EndAttempt(span, "completed", elapsed.Milliseconds())
		return resp.Text, nil
	}

	opTimeout, _ := time.ParseDuration(p.cfg.Generation.OpTimeout)
	refiner := refine.New(gen, p.composite, refine.Config{
		Threshold:    p.cfg.Generation.Threshold,
		MaxAttempts:  p.cfg.Generation.MaxAttempts,
		CriticalVeto: p.cfg.Generation.CriticalVeto == nil || *p.cfg.Generation.CriticalVeto,
		OpTimeout:    opTimeout,
	}, p.logger)

	var outcome refine.Outcome
	if seed != "" {
		outcome, err = refiner.RunSeed(ctx, seed)
	} else {
		outcome, err = refiner.Run(ctx, initialPrompt)
	}
	rep.Result.Attempts = outcome.Attempts
	rep.Result.Trail = outcome.Trail
	if err != nil {
		p.router.UpdateMetrics(backendName, 0, false, avgSeconds(genLatency, genCalls))
		if ctx.Err() != nil {
			return fail("generate", err)
		}
		return fail("generate", &GenerationError{Subject: subject, Backend: backendName, Err: err})
	}

	for _, a := range outcome.Trail {
		p.emit(sink, events.RunEvent{
			RunID:   runID,
			Subject: subject,
			Stage:   "validate",
			Type:    events.EventAttempt,
			Attempt: a.Index,
			Score:   a.Score,
			Tier:    a.Tier,
			Message: attemptMessage(a),
		})
	}

	accepted := !outcome.Exhausted
	rep.Result.Accepted = accepted
	rep.Result.Score = outcome.Score
	rep.Result.Tier = outcome.Tier
	rep.Result.Exhausted = outcome.Exhausted
	rep.Result.Assessment = outcome.Assessment

	entry := export.Entry{
		Meta: export.FrontMatter{
			Subject: subject,
			Date:    rep.Result.GeneratedAt.Format("2006-01-02"),
			RunID:   runID,
			Backend: backendName,
			Score:   outcome.Score,
			Tier:    outcome.Tier,
		},
		Content:    outcome.Content,
		Assessment: outcome.Assessment,
		Attempts:   outcome.Attempts,
	}
	entryPath, err := p.writer.WriteEntry(entry)
	if err != nil {
		p.router.UpdateMetrics(backendName, outcome.Score/100, false, avgSeconds(genLatency, genCalls))
		return fail("export", &GenerationError{Subject: subject, Backend: backendName, Err: err})
	}
	rep.EntryPath = entryPath

	if path, err := p.writer.WriteResult(rep.Result); err != nil {
		p.logger.Printf("pipeline: writing result record for %s: %v", runID, err)
	} else {
		rep.ResultPath = path
	}

	if accepted {
		if err := p.cache.Set(entryKey, []byte(outcome.Content), 1); err != nil {
			p.logger.Printf("pipeline: caching entry for %q: %v", subject, err)
		}
	}

	p.router.UpdateMetrics(backendName, outcome.Score/100, accepted, avgSeconds(genLatency, genCalls))
	status := "accepted"
	if outcome.Exhausted {
		status = "rejected"
	}
	p.tracer.CompleteRun(run, observability.CompleteOptions{
		Status:            status,
		Score:             outcome.Score,
		Tier:              outcome.Tier,
		TotalInputTokens:  totalIn,
		TotalOutputTokens: totalOut,
	})
	p.recordRun(state.RunSummary{
		RunID:      runID,
		Subject:    subject,
		Backend:    backendName,
		Score:      outcome.Score,
		Tier:       outcome.Tier,
		Attempts:   outcome.Attempts,
		Exhausted:  outcome.Exhausted,
		OutputPath: entryPath,
	})

	finalType := events.EventRunCompleted
	message := ""
	if outcome.Exhausted {
		finalType = events.EventRunFailed
		message = fmt.Sprintf("best score %.1f below threshold %.1f after %d attempts",
			outcome.Score, p.cfg.Generation.Threshold, outcome.Attempts)
	}
	p.emit(sink, events.RunEvent{
		RunID:   runID,
		Subject: subject,
		Stage:   "export",
		Type:    finalType,
		Score:   outcome.Score,
		Tier:    outcome.Tier,
		Backend: backendName,
		Message: message,
	})

	return rep, nil
}

// acquireHandle resolves the configured backend, its loader, and the
// model path, then loads through the lifecycle manager under the retry
// policy.
func (p *Pipeline) acquireHandle(ctx context.Context, name string) (backend.Handle, error) {
	bcfg, ok := p.backendConfig(name)
	if !ok {
		return nil, fmt.Errorf("backend %q not configured", name)
	}
	loader, err := backend.Get(bcfg.Adapter)
	if err != nil {
		return nil, err
	}

	modelPath := bcfg.Path
	if !filepath.IsAbs(modelPath) {
		modelPath = filepath.Join(resolvePath(p.workDir, p.cfg.Model.Dir), modelPath)
	}
	opts := backend.Options{
		BaseURL:     bcfg.BaseURL,
		ContextSize: p.cfg.Model.ContextSize,
		GPULayers:   p.cfg.Model.GPULayers,
		Threads:     p.cfg.Model.Threads,
	}

	return retry.Do(ctx, p.genPolicy, p.logger, "load "+name,
		func(ctx context.Context) (backend.Handle, error) {
			return p.manager.EnsureLoaded(ctx, name, modelPath, loader, opts)
		}, nil)
}

// retrieveContext fetches reference passages for the subject, caching
// the retrieved set in tier 2. Every failure here degrades to an empty
// context; retrieval never blocks generation.
func (p *Pipeline) retrieveContext(ctx context.Context, h backend.Handle, subject string, sink *events.FileSink, runID string) []prompt.ContextPassage {
	topK := p.cfg.Vector.TopK
	if p.vectors == nil || topK <= 0 {
		return nil
	}

	key := contextCacheKey(subject, topK)
	if data, ok := p.cache.Get(key); ok {
		var passages []prompt.ContextPassage
		if err := json.Unmarshal(data, &passages); err == nil {
			p.emit(sink, events.RunEvent{
				RunID:   runID,
				Subject: subject,
				Stage:   "cache",
				Type:    events.EventCacheHit,
				Message: key,
			})
			return passages
		}
		p.cache.Delete(key)
	}

	warn := func(err error) {
		p.logger.Printf("pipeline: retrieval for %q degraded: %v", subject, err)
		p.emit(sink, events.RunEvent{
			RunID:   runID,
			Subject: subject,
			Stage:   "cache",
			Type:    events.EventWarning,
			Message: "retrieval degraded: " + err.Error(),
		})
	}

	embedding, err := h.Embed(ctx, subject)
	if err != nil {
		warn(err)
		return nil
	}
	matches, err := p.vectors.Query(ctx, embedding, topK)
	if err != nil {
		warn(err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	passages := make([]prompt.ContextPassage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, prompt.ContextPassage{
			Source:  m.Passage.Source,
			Ref:     m.Passage.Ref,
			Content: m.Passage.Content,
		})
	}

	if data, err := json.Marshal(passages); err == nil {
		if err := p.cache.Set(key, data, 2); err != nil {
			p.logger.Printf("pipeline: caching context for %q: %v", subject, err)
		}
	}
	return passages
}

// recordRun updates persistent state after a run. Save failures are
// logged, never fatal.
func (p *Pipeline) recordRun(run state.RunSummary) {
	p.store.RecordRun(run)
	p.store.SetCapabilities(p.router.Snapshot())
	p.store.SetCacheStats(p.cache.Stats())
	if err := p.store.Save(); err != nil {
		p.logger.Printf("pipeline: saving state: %v", err)
	}
}

// emit stamps and writes one event. A nil sink or a write failure only
// costs the trail entry, never the run.
func (p *Pipeline) emit(sink *events.FileSink, ev events.RunEvent) {
	if sink == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := sink.WriteOne(ev); err != nil {
		p.logger.Printf("pipeline: writing event: %v", err)
	}
}

func (p *Pipeline) eventsDir() string {
	return filepath.Join(resolvePath(p.workDir, p.cfg.Paths.StateDir), "events")
}

func (p *Pipeline) backendConfig(name string) (config.BackendConfig, bool) {
	for _, b := range p.cfg.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return config.BackendConfig{}, false
}

// attemptMessage compresses one trail entry into an event message.
func attemptMessage(a refine.AttemptSummary) string {
	switch {
	case a.GenError != "":
		return "generation failed: " + a.GenError
	case len(a.Ops) > 0:
		return "refined: " + strings.Join(a.Ops, ", ")
	default:
		return ""
	}
}

func avgSeconds(total time.Duration, calls int) float64 {
	if calls == 0 {
		return 0
	}
	return (total / time.Duration(calls)).Seconds()
}

// estimateTokens approximates the token count of s at four characters
// per token. The server reports exact counts only for its own output.
func estimateTokens(s string) int {
	return len(s) / 4
}
