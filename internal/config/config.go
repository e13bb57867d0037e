// Package config loads the scriptorium configuration from file and
// environment. The configuration is read once at process start and
// handed to components by explicit injection; no package holds a
// config singleton.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/scriptorium-ai/scriptorium/internal/validate"
)

// Config represents the full scriptorium configuration.
type Config struct {
	Model         ModelConfig         `mapstructure:"model"`
	Backends      []BackendConfig     `mapstructure:"backends" validate:"dive"`
	Routing       RoutingConfig       `mapstructure:"routing"`
	Generation    GenerationConfig    `mapstructure:"generation"`
	Validation    ValidationConfig    `mapstructure:"validation"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Vector        VectorConfig        `mapstructure:"vector"`
	Paths         PathsConfig         `mapstructure:"paths"`
	Log           LogConfig           `mapstructure:"log"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ModelConfig contains engine-level settings shared by all backends.
type ModelConfig struct {
	// Dir is the directory model paths are resolved against.
	// Overridable via SCRIPTORIUM_MODEL_DIR.
	Dir string `mapstructure:"dir"`

	// BudgetGB is the memory budget for all loaded backends combined.
	BudgetGB float64 `mapstructure:"budget_gb" validate:"min=0"`

	// SafetyFactor shrinks the usable budget to leave estimation headroom.
	SafetyFactor float64 `mapstructure:"safety_factor" validate:"min=0,max=1"`

	// FootprintMultiplier scales model file size into estimated footprint.
	FootprintMultiplier float64 `mapstructure:"footprint_multiplier" validate:"min=0"`

	// LoadTimeout bounds a single backend load, as a duration string.
	LoadTimeout string `mapstructure:"load_timeout"`

	ContextSize int `mapstructure:"context_size" validate:"min=0"`
	GPULayers   int `mapstructure:"gpu_layers" validate:"min=-1"`
	Threads     int `mapstructure:"threads" validate:"min=0"`

	Sampling SamplingConfig `mapstructure:"sampling"`
}

// SamplingConfig holds the generation sampling parameters forwarded to
// the inference backend unchanged.
type SamplingConfig struct {
	Temperature   float64 `mapstructure:"temperature" validate:"min=0,max=2"`
	TopP          float64 `mapstructure:"top_p" validate:"min=0,max=1"`
	TopK          int     `mapstructure:"top_k" validate:"min=0"`
	MaxTokens     int     `mapstructure:"max_tokens" validate:"min=0"`
	RepeatPenalty float64 `mapstructure:"repeat_penalty" validate:"min=0"`
}

// BackendConfig describes one inference backend the router may select.
type BackendConfig struct {
	Name    string   `mapstructure:"name" validate:"required"`
	Path    string   `mapstructure:"path" validate:"required"`
	Adapter string   `mapstructure:"adapter" validate:"required"`
	BaseURL string   `mapstructure:"base_url"`
	Tags    []string `mapstructure:"tags" validate:"min=1"`
}

// RoutingConfig pins backends to task types, overriding scored routing.
type RoutingConfig struct {
	// Overrides maps a task type (entry, refine, outline) to a backend name.
	Overrides map[string]string `mapstructure:"overrides"`
}

// GenerationConfig controls the generate-validate-refine loop.
type GenerationConfig struct {
	MinWords     int     `mapstructure:"min_words" validate:"min=0"`
	MaxWords     int     `mapstructure:"max_words" validate:"min=0"`
	Threshold    float64 `mapstructure:"threshold" validate:"min=0,max=100"`
	MaxAttempts  int     `mapstructure:"max_attempts" validate:"min=0"`
	CriticalVeto *bool   `mapstructure:"critical_veto"`

	// OpTimeout bounds one refinement generation call, as a duration string.
	OpTimeout string `mapstructure:"op_timeout"`

	// PromptVars are extra {{variable}} values substituted into prompt
	// files, on top of the built-in min_words/max_words/threshold.
	PromptVars map[string]string `mapstructure:"prompt_vars"`

	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig shapes the retry wrapper around backend calls.
type RetryConfig struct {
	MaxRetries    int     `mapstructure:"max_retries" validate:"min=0"`
	BackoffFactor float64 `mapstructure:"backoff_factor" validate:"min=0"`
	MaxWait       string  `mapstructure:"max_wait"`
	Mode          string  `mapstructure:"mode" validate:"omitempty,oneof=soft hard"`
}

// ValidationConfig controls the composite scoring engine.
type ValidationConfig struct {
	Weights      map[string]float64 `mapstructure:"weights"`
	Floors       map[string]float64 `mapstructure:"floors"`
	DefaultFloor float64            `mapstructure:"default_floor" validate:"min=0,max=100"`
	Workers      int                `mapstructure:"workers" validate:"min=0"`
	Bands        []BandConfig       `mapstructure:"bands" validate:"dive"`
}

// BandConfig is one row of the score-to-tier table.
type BandConfig struct {
	Label string  `mapstructure:"label" validate:"required"`
	Min   float64 `mapstructure:"min" validate:"min=0,max=100"`
	Max   float64 `mapstructure:"max" validate:"min=0,max=100"`
}

// CacheConfig controls the RAM tier capacities. The disk tier lives
// under paths.cache_dir.
type CacheConfig struct {
	Tier1Max     int   `mapstructure:"tier1_max" validate:"min=0"`
	Tier2Max     int   `mapstructure:"tier2_max" validate:"min=0"`
	DemoteToDisk *bool `mapstructure:"demote_to_disk"`
}

// VectorConfig controls the retrieval store.
type VectorConfig struct {
	// Path is the sqlite database file. Defaults under paths.state_dir.
	Path       string `mapstructure:"path"`
	TopK       int    `mapstructure:"top_k" validate:"min=0"`
	ChunkWords int    `mapstructure:"chunk_words" validate:"min=0"`
}

// PathsConfig locates the writable directories.
type PathsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	CacheDir  string `mapstructure:"cache_dir"`
	StateDir  string `mapstructure:"state_dir"`
}

// LogConfig controls console logging.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Debug bool   `mapstructure:"debug"`
}

// ObservabilityConfig wires optional external run tracing.
type ObservabilityConfig struct {
	Langfuse LangfuseConfig `mapstructure:"langfuse"`
}

// LangfuseConfig carries the Langfuse ingestion credentials. Tracing
// stays off until both keys are set; the keys usually arrive through
// SCRIPTORIUM_LANGFUSE_PUBLIC_KEY and SCRIPTORIUM_LANGFUSE_SECRET_KEY
// rather than the config file.
type LangfuseConfig struct {
	PublicKey string `mapstructure:"public_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Model.BudgetGB == 0 {
		cfg.Model.BudgetGB = 8.0
	}
	if cfg.Model.SafetyFactor == 0 {
		cfg.Model.SafetyFactor = 0.95
	}
	if cfg.Model.FootprintMultiplier == 0 {
		cfg.Model.FootprintMultiplier = 1.1
	}
	if cfg.Model.LoadTimeout == "" {
		cfg.Model.LoadTimeout = "5m"
	}
	if cfg.Model.ContextSize == 0 {
		cfg.Model.ContextSize = 4096
	}
	// GPULayers has no default: 0 keeps layers on CPU, -1 offloads all.
	if cfg.Model.Threads == 0 {
		cfg.Model.Threads = 4
	}

	if cfg.Model.Sampling.Temperature == 0 {
		cfg.Model.Sampling.Temperature = 0.7
	}
	if cfg.Model.Sampling.TopP == 0 {
		cfg.Model.Sampling.TopP = 0.9
	}
	if cfg.Model.Sampling.TopK == 0 {
		cfg.Model.Sampling.TopK = 40
	}
	if cfg.Model.Sampling.MaxTokens == 0 {
		cfg.Model.Sampling.MaxTokens = 4096
	}
	if cfg.Model.Sampling.RepeatPenalty == 0 {
		cfg.Model.Sampling.RepeatPenalty = 1.1
	}

	if cfg.Generation.MinWords == 0 {
		cfg.Generation.MinWords = 800
	}
	if cfg.Generation.MaxWords == 0 {
		cfg.Generation.MaxWords = 2000
	}
	if cfg.Generation.Threshold == 0 {
		cfg.Generation.Threshold = 85
	}
	if cfg.Generation.MaxAttempts == 0 {
		cfg.Generation.MaxAttempts = 3
	}
	if cfg.Generation.CriticalVeto == nil {
		veto := true
		cfg.Generation.CriticalVeto = &veto
	}
	if cfg.Generation.OpTimeout == "" {
		cfg.Generation.OpTimeout = "2m"
	}
	if cfg.Generation.Retry.MaxRetries == 0 {
		cfg.Generation.Retry.MaxRetries = 3
	}
	if cfg.Generation.Retry.BackoffFactor == 0 {
		cfg.Generation.Retry.BackoffFactor = 2.0
	}
	if cfg.Generation.Retry.MaxWait == "" {
		cfg.Generation.Retry.MaxWait = "30s"
	}
	if cfg.Generation.Retry.Mode == "" {
		cfg.Generation.Retry.Mode = "hard"
	}

	if cfg.Validation.DefaultFloor == 0 {
		cfg.Validation.DefaultFloor = 90
	}
	if cfg.Validation.Workers == 0 {
		cfg.Validation.Workers = 4
	}

	if cfg.Cache.Tier1Max == 0 {
		cfg.Cache.Tier1Max = 5000
	}
	if cfg.Cache.Tier2Max == 0 {
		cfg.Cache.Tier2Max = 50000
	}
	if cfg.Cache.DemoteToDisk == nil {
		demote := true
		cfg.Cache.DemoteToDisk = &demote
	}

	if cfg.Vector.TopK == 0 {
		cfg.Vector.TopK = 4
	}
	if cfg.Vector.ChunkWords == 0 {
		cfg.Vector.ChunkWords = 200
	}

	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = "output"
	}
	if cfg.Paths.CacheDir == "" {
		cfg.Paths.CacheDir = ".scriptorium/cache"
	}
	if cfg.Paths.StateDir == "" {
		cfg.Paths.StateDir = ".scriptorium/state"
	}
	if cfg.Vector.Path == "" {
		cfg.Vector.Path = cfg.Paths.StateDir + "/vectors.db"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate validates the configuration. Failures are fatal: the caller
// surfaces them immediately and never retries.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Generation.MinWords >= c.Generation.MaxWords {
		return fmt.Errorf("generation.min_words %d must be below max_words %d",
			c.Generation.MinWords, c.Generation.MaxWords)
	}

	if len(c.Validation.Weights) > 0 {
		sum := 0.0
		for name, w := range c.Validation.Weights {
			if w < 0 {
				return fmt.Errorf("validation.weights.%s is negative", name)
			}
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-3 {
			return fmt.Errorf("validation.weights sum to %.3f, want 1.0", sum)
		}
	}
	for name, f := range c.Validation.Floors {
		if f < 0 || f > 100 {
			return fmt.Errorf("validation.floors.%s = %.1f outside [0,100]", name, f)
		}
	}
	if len(c.Validation.Bands) > 0 {
		bands := make([]validate.Band, 0, len(c.Validation.Bands))
		for _, b := range c.Validation.Bands {
			bands = append(bands, validate.Band{Label: b.Label, Min: b.Min, Max: b.Max})
		}
		if _, err := validate.CheckBands(bands); err != nil {
			return fmt.Errorf("validation.bands: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if seen[b.Name] {
			return fmt.Errorf("backend %q configured twice", b.Name)
		}
		seen[b.Name] = true
	}
	for task, name := range c.Routing.Overrides {
		if !seen[name] {
			return fmt.Errorf("routing.overrides.%s names unknown backend %q", task, name)
		}
	}

	for key, val := range map[string]string{
		"model.load_timeout":        c.Model.LoadTimeout,
		"generation.op_timeout":     c.Generation.OpTimeout,
		"generation.retry.max_wait": c.Generation.Retry.MaxWait,
	} {
		if val == "" {
			continue
		}
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if c.Generation.Retry.BackoffFactor != 0 && c.Generation.Retry.BackoffFactor <= 1 {
		return fmt.Errorf("generation.retry.backoff_factor %.2f must exceed 1",
			c.Generation.Retry.BackoffFactor)
	}

	return nil
}

// ValidateForGenerate performs the additional validation generation
// commands need beyond Validate.
func (c *Config) ValidateForGenerate() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}

	if c.Model.BudgetGB <= 0 {
		return fmt.Errorf("model.budget_gb must be positive")
	}

	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir is required")
	}

	return nil
}
