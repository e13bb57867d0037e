package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scriptorium-ai/scriptorium/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Score an existing entry file",
	Long: `Assess an existing markdown entry against the validator battery
without generating anything. YAML front matter, when present, supplies
the subject and is excluded from scoring.

The composite score, tier, and every finding are printed; a JSON result
record is written to the output directory.

Example:
  scriptorium validate output/doctrine-of-grace.md`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, cfg, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	result, resultPath, err := p.ValidateFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	verdict := "MEETS threshold"
	if !result.Accepted {
		verdict = "BELOW threshold"
	}
	fmt.Printf("%s: %.1f (%s), %s %.1f\n", result.Subject, result.Score, result.Tier, verdict, cfg.Generation.Threshold)

	dims := make([]string, 0, len(result.Assessment.SubScores))
	for dim := range result.Assessment.SubScores {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	fmt.Println("\nSub-scores:")
	for _, dim := range dims {
		fmt.Printf("  %-12s %.1f\n", dim, result.Assessment.SubScores[dim])
	}

	var open []validate.Result
	for _, f := range result.Assessment.Results {
		if !f.Passed {
			open = append(open, f)
		}
	}
	if len(open) == 0 {
		fmt.Println("\nNo outstanding findings.")
	} else {
		fmt.Println("\nFindings:")
		for _, f := range validate.RankResults(open) {
			fmt.Printf("  [%s] %s: %s\n", f.Severity, f.Dimension, f.Issue)
			if f.Suggestion != "" {
				fmt.Printf("      %s\n", f.Suggestion)
			}
		}
	}

	fmt.Printf("\nresult: %s\n", resultPath)
	return nil
}
