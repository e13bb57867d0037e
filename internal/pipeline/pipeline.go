// Package pipeline wires configuration into the full generation stack
// and drives the CLI-facing operations: generate one entry, run a batch,
// assess an existing file, report status. Components are constructed
// once and passed by reference; the pipeline owns their lifetimes.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scriptorium-ai/scriptorium/internal/backend"
	"github.com/scriptorium-ai/scriptorium/internal/backend/llamaserver"
	"github.com/scriptorium-ai/scriptorium/internal/cache"
	"github.com/scriptorium-ai/scriptorium/internal/config"
	"github.com/scriptorium-ai/scriptorium/internal/export"
	"github.com/scriptorium-ai/scriptorium/internal/lifecycle"
	"github.com/scriptorium-ai/scriptorium/internal/observability"
	"github.com/scriptorium-ai/scriptorium/internal/prompt"
	"github.com/scriptorium-ai/scriptorium/internal/retry"
	"github.com/scriptorium-ai/scriptorium/internal/router"
	"github.com/scriptorium-ai/scriptorium/internal/state"
	"github.com/scriptorium-ai/scriptorium/internal/template"
	"github.com/scriptorium-ai/scriptorium/internal/validate"
	"github.com/scriptorium-ai/scriptorium/internal/vector"
)

// Pipeline owns the wired components for one process.
type Pipeline struct {
	cfg     *config.Config
	workDir string

	cache     *cache.Cache
	manager   *lifecycle.Manager
	router    *router.Router
	composite *validate.Composite
	vectors   *vector.Store
	store     *state.Store
	writer    *export.Writer
	tracer    observability.Tracer

	systemPrompt string
	sampling     backend.Sampling
	genPolicy    retry.Policy

	logger *log.Logger
}

// New wires a pipeline from validated configuration. Construction
// failures are configuration failures: fatal, surfaced immediately.
func New(cfg *config.Config, workDir string, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	tiered, err := cache.New(cache.Config{
		Tier1Max:     cfg.Cache.Tier1Max,
		Tier2Max:     cfg.Cache.Tier2Max,
		Dir:          resolvePath(workDir, cfg.Paths.CacheDir),
		DemoteToDisk: cfg.Cache.DemoteToDisk == nil || *cfg.Cache.DemoteToDisk,
	}, logger)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	loadTimeout, _ := time.ParseDuration(cfg.Model.LoadTimeout)
	manager := lifecycle.New(lifecycle.Config{
		BudgetGB:            cfg.Model.BudgetGB,
		SafetyFactor:        cfg.Model.SafetyFactor,
		FootprintMultiplier: cfg.Model.FootprintMultiplier,
		LoadTimeout:         loadTimeout,
	}, nil, logger)

	rt := router.New(manager, logger)
	for _, b := range cfg.Backends {
		if err := rt.Register(b.Name, b.Tags); err != nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("backend %s: %w", b.Name, err)}
		}
	}
	rt.SetOverrides(cfg.Routing.Overrides)

	composite, err := newComposite(cfg, logger)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	store := state.NewStore(resolvePath(workDir, cfg.Paths.StateDir), 0, logger)
	if err := store.Load(); err != nil {
		logger.Printf("pipeline: state load failed, starting fresh: %v", err)
	}
	rt.Restore(store.Capabilities())

	writer, err := export.NewWriter(resolvePath(workDir, cfg.Paths.OutputDir))
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	// The vector store only supplies retrieval context. When it cannot
	// be opened every query degrades to empty context instead of
	// blocking generation.
	vecPath := resolvePath(workDir, cfg.Vector.Path)
	var vectors *vector.Store
	if err := os.MkdirAll(filepath.Dir(vecPath), 0755); err != nil {
		logger.Printf("pipeline: vector store unavailable, continuing without retrieval: %v", err)
	} else if vectors, err = vector.Open(vecPath); err != nil {
		logger.Printf("pipeline: vector store unavailable, continuing without retrieval: %v", err)
		vectors = nil
	}

	systemPrompt, err := prompt.LoadMergedSystemPrompt(workDir)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	systemPrompt = template.RenderPrompt(systemPrompt, template.MergeVariables(map[string]string{
		"min_words": strconv.Itoa(cfg.Generation.MinWords),
		"max_words": strconv.Itoa(cfg.Generation.MaxWords),
		"threshold": strconv.FormatFloat(cfg.Generation.Threshold, 'f', -1, 64),
	}, cfg.Generation.PromptVars))

	maxWait, _ := time.ParseDuration(cfg.Generation.Retry.MaxWait)
	genPolicy := retry.Policy{
		MaxRetries:    cfg.Generation.Retry.MaxRetries,
		BackoffFactor: cfg.Generation.Retry.BackoffFactor,
		MaxWait:       maxWait,
		Mode:          cfg.Generation.Retry.Mode,
		Classify:      retryWorthy,
	}

	var tracer observability.Tracer = &observability.NoOpTracer{}
	if lf := cfg.Observability.Langfuse; lf.PublicKey != "" && lf.SecretKey != "" {
		lt := observability.NewLangfuseTracer(observability.LangfuseConfig{
			PublicKey: lf.PublicKey,
			SecretKey: lf.SecretKey,
			BaseURL:   lf.BaseURL,
		}, logger)
		logger.Printf("pipeline: Langfuse tracer enabled (base_url=%s)", lt.BaseURL())
		tracer = lt
	}

	return &Pipeline{
		cfg:          cfg,
		workDir:      workDir,
		cache:        tiered,
		manager:      manager,
		router:       rt,
		composite:    composite,
		vectors:      vectors,
		store:        store,
		writer:       writer,
		tracer:       tracer,
		systemPrompt: systemPrompt,
		sampling: backend.Sampling{
			Temperature:   cfg.Model.Sampling.Temperature,
			TopP:          cfg.Model.Sampling.TopP,
			TopK:          cfg.Model.Sampling.TopK,
			MaxTokens:     cfg.Model.Sampling.MaxTokens,
			RepeatPenalty: cfg.Model.Sampling.RepeatPenalty,
		},
		genPolicy: genPolicy,
		logger:    logger,
	}, nil
}

// newComposite builds the scoring engine from the validation section,
// falling back to battery defaults for anything unset.
func newComposite(cfg *config.Config, logger *log.Logger) (*validate.Composite, error) {
	weights := cfg.Validation.Weights
	if len(weights) == 0 {
		weights = validate.DefaultWeights()
	}
	floors := cfg.Validation.Floors
	if len(floors) == 0 {
		floors = validate.DefaultFloors()
	}
	var bands []validate.Band
	for _, b := range cfg.Validation.Bands {
		bands = append(bands, validate.Band{Label: b.Label, Min: b.Min, Max: b.Max})
	}

	battery := validate.DefaultBattery(cfg.Generation.MinWords, cfg.Generation.MaxWords)
	return validate.NewComposite(validate.CompositeConfig{
		Weights:      weights,
		Floors:       floors,
		DefaultFloor: cfg.Validation.DefaultFloor,
		Workers:      cfg.Validation.Workers,
		Bands:        bands,
	}, battery, logger)
}

// retryWorthy is the retry classifier: requests the server rejected
// outright are permanent, everything else is worth another try.
func retryWorthy(err error) bool {
	return !llamaserver.IsClientRejection(err)
}

// Close releases loaded backends, the vector store, and the tracer.
func (p *Pipeline) Close() error {
	var first error
	if err := p.manager.Close(); err != nil {
		first = err
	}
	if p.vectors != nil {
		if err := p.vectors.Close(); err != nil && first == nil {
			first = err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.tracer.Stop(ctx); err != nil && first == nil {
		first = err
	}
	return first
}

// resolvePath anchors relative configured paths at the working
// directory; absolute paths pass through.
func resolvePath(workDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}

// newRunID derives a short run identifier from a fresh UUID.
func newRunID() string {
	return "run-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// entryCacheKey keys a finished entry by subject and prompt digest so
// re-runs with unchanged configuration resolve to the same slot.
func entryCacheKey(subject, initialPrompt string) string {
	return fmt.Sprintf("entry:%s:%s", export.Slug(subject), cache.KeyHash(initialPrompt))
}

// contextCacheKey keys cached retrieval context per subject.
func contextCacheKey(subject string, topK int) string {
	return fmt.Sprintf("ctx:%s:%d", export.Slug(subject), topK)
}
