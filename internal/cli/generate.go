package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scriptorium-ai/scriptorium/internal/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate <subject>",
	Short: "Generate one encyclopedia entry",
	Long: `Generate a single encyclopedia entry for the given subject.

The entry is refined until it clears the configured quality threshold or
the attempt budget runs out. A run that exhausts its attempts still
writes its best draft and exits zero; only unrecoverable failures (no
usable backend, model load failure, every generation attempt failing)
exit non-zero.

Examples:
  scriptorium generate "Doctrine of Grace"
  scriptorium generate Christology`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	p, cfg, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := cfg.ValidateForGenerate(); err != nil {
		return err
	}

	rep, err := p.Generate(cmd.Context(), args[0])
	if err != nil {
		printFailureRecord(rep)
		return err
	}

	printRunReport(rep, cfg.Generation.Threshold)
	return nil
}

func printRunReport(rep pipeline.RunReport, threshold float64) {
	r := rep.Result
	if r.Accepted {
		fmt.Printf("Accepted %q at %.1f (%s) after %d attempt(s)\n", r.Subject, r.Score, r.Tier, r.Attempts)
	} else {
		fmt.Printf("Best effort for %q: %.1f (%s) after %d attempt(s), threshold %.1f not met\n",
			r.Subject, r.Score, r.Tier, r.Attempts, threshold)
	}
	if rep.EntryPath != "" {
		fmt.Printf("  entry:  %s\n", rep.EntryPath)
	}
	if rep.ResultPath != "" {
		fmt.Printf("  result: %s\n", rep.ResultPath)
	}
	if rep.EventsPath != "" {
		fmt.Printf("  events: %s\n", rep.EventsPath)
	}
}

func printFailureRecord(rep pipeline.RunReport) {
	if rep.ResultPath != "" {
		fmt.Printf("Failure record: %s\n", rep.ResultPath)
	}
}
