package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/scriptorium-ai/scriptorium/prompts"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize project configuration",
	Long: `Initialize a scriptorium working directory.

This creates a .scriptorium.yaml with sensible defaults, the output,
cache, state, model, and source directories, and an editable copy of
the system prompt under prompts/SYSTEM.md.

Example:
  scriptorium init
  scriptorium init --model-dir /srv/models --budget 12`,
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("model-dir", "models", "directory holding model files")
	initCmd.Flags().Float64("budget", 8.0, "model memory budget in GB")
	initCmd.Flags().String("server", "http://127.0.0.1:8080", "llama-server base URL")
	initCmd.Flags().Bool("force", false, "overwrite existing config")
}

type starterBackend struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Adapter string   `yaml:"adapter"`
	BaseURL string   `yaml:"base_url"`
	Tags    []string `yaml:"tags"`
}

type starterConfig struct {
	Model struct {
		Dir      string  `yaml:"dir"`
		BudgetGB float64 `yaml:"budget_gb"`
	} `yaml:"model"`
	Backends   []starterBackend `yaml:"backends"`
	Generation struct {
		MinWords    int     `yaml:"min_words"`
		MaxWords    int     `yaml:"max_words"`
		Threshold   float64 `yaml:"threshold"`
		MaxAttempts int     `yaml:"max_attempts"`
	} `yaml:"generation"`
	Paths struct {
		OutputDir string `yaml:"output_dir"`
		CacheDir  string `yaml:"cache_dir"`
		StateDir  string `yaml:"state_dir"`
	} `yaml:"paths"`
}

func initProject(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(".", ".scriptorium.yaml")

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := starterConfig{}
	cfg.Model.Dir, _ = cmd.Flags().GetString("model-dir")
	cfg.Model.BudgetGB, _ = cmd.Flags().GetFloat64("budget")

	server, _ := cmd.Flags().GetString("server")
	cfg.Backends = append(cfg.Backends, starterBackend{
		Name:    "scholar-13b",
		Path:    "scholar-13b.Q5_K_M.gguf",
		Adapter: "llamaserver",
		BaseURL: server,
		Tags:    []string{"generation", "longform"},
	})

	cfg.Generation.MinWords = 2000
	cfg.Generation.MaxWords = 6000
	cfg.Generation.Threshold = 85
	cfg.Generation.MaxAttempts = 3

	cfg.Paths.OutputDir = "output"
	cfg.Paths.CacheDir = ".scriptorium/cache"
	cfg.Paths.StateDir = ".scriptorium/state"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# Scriptorium configuration
# Unlisted keys fall back to built-in defaults; run 'scriptorium status'
# to see the effective setup.

`

	if err := os.WriteFile(configPath, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	dirs := []string{
		cfg.Paths.OutputDir,
		cfg.Paths.CacheDir,
		cfg.Paths.StateDir,
		cfg.Model.Dir,
		"sources",
		"prompts",
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	promptPath := filepath.Join("prompts", "SYSTEM.md")
	if _, err := os.Stat(promptPath); os.IsNotExist(err) || force {
		if err := os.WriteFile(promptPath, []byte(prompts.System), 0644); err != nil {
			return fmt.Errorf("failed to write system prompt: %w", err)
		}
	}

	fmt.Printf("Created %s\n\n", configPath)
	fmt.Println("Next steps:")
	fmt.Println("  1. Drop model files into " + cfg.Model.Dir + "/ and fix the backend path")
	fmt.Println("  2. Start llama-server at " + server)
	fmt.Println("  3. Put reference texts under sources/ and run 'scriptorium index --source sources'")
	fmt.Println("  4. Run 'scriptorium generate \"Doctrine of Grace\"'")

	return nil
}
