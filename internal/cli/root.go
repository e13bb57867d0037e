// Package cli implements the scriptorium command tree. Commands stay
// thin: they load configuration, hand off to the pipeline, and render
// its reports for the console.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scriptorium-ai/scriptorium/internal/config"
	"github.com/scriptorium-ai/scriptorium/internal/pipeline"
	"github.com/scriptorium-ai/scriptorium/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "scriptorium",
	Short: "Scriptorium - Local-model theological encyclopedia generator",
	Long: `Scriptorium generates long-form theological encyclopedia entries with a
local language model, scores every draft against a battery of stylistic
and doctrinal validators, and refines it until the quality bar is met or
the attempt budget runs out.

Entries land as markdown with YAML front matter plus a JSON result
record; reference material indexed into the vector store is retrieved
into generation prompts automatically.

Example:
  scriptorium init
  scriptorium index --source ./sources
  scriptorium generate "Doctrine of Grace"`,
}

// Execute runs the root command under the process context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .scriptorium.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output")
	_ = viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".scriptorium")
	}

	viper.SetEnvPrefix("SCRIPTORIUM")
	viper.AutomaticEnv()
	_ = viper.BindEnv("log.debug", "SCRIPTORIUM_DEBUG")
	_ = viper.BindEnv("log.level", "SCRIPTORIUM_LOG_LEVEL")
	_ = viper.BindEnv("model.dir", "SCRIPTORIUM_MODEL_DIR")
	_ = viper.BindEnv("observability.langfuse.public_key", "SCRIPTORIUM_LANGFUSE_PUBLIC_KEY")
	_ = viper.BindEnv("observability.langfuse.secret_key", "SCRIPTORIUM_LANGFUSE_SECRET_KEY")
	_ = viper.BindEnv("observability.langfuse.base_url", "SCRIPTORIUM_LANGFUSE_BASE_URL")

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("log.debug") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) *log.Logger {
	flags := log.LstdFlags
	if cfg.Log.Debug || cfg.Log.Level == "debug" {
		flags |= log.Lshortfile
	}
	return log.New(os.Stderr, "", flags)
}

// newPipeline loads configuration and wires the pipeline rooted at the
// current directory.
func newPipeline() (*pipeline.Pipeline, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}

	p, err := pipeline.New(cfg, cwd, newLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}
