package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate entries for a list of subjects",
	Long: `Generate entries for every subject in a file, one subject per line.
Blank lines and lines starting with '#' are ignored.

A subject that fails is reported and skipped; the batch continues. The
command exits non-zero only when the subjects file is unusable or the
run is interrupted.

Example:
  scriptorium batch --subjects subjects.txt`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("subjects", "", "file listing one subject per line")
	_ = batchCmd.MarkFlagRequired("subjects")
}

func runBatch(cmd *cobra.Command, args []string) error {
	subjectsPath, _ := cmd.Flags().GetString("subjects")

	p, cfg, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := cfg.ValidateForGenerate(); err != nil {
		return err
	}

	report, err := p.Batch(cmd.Context(), subjectsPath)

	for _, rep := range report.Reports {
		r := rep.Result
		switch {
		case r.Error != "":
			fmt.Printf("FAILED    %-40s %s\n", r.Subject, r.Error)
		case r.Accepted:
			fmt.Printf("accepted  %-40s %.1f (%s) in %d attempt(s)\n", r.Subject, r.Score, r.Tier, r.Attempts)
		default:
			fmt.Printf("below bar %-40s %.1f (%s) after %d attempt(s)\n", r.Subject, r.Score, r.Tier, r.Attempts)
		}
	}
	if report.Total > 0 {
		fmt.Printf("\n%d subject(s): %d accepted, %d below threshold, %d failed\n",
			report.Total, report.Accepted, report.Rejected, report.Failed)
	}
	return err
}
