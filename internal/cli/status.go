package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status",
	Long: `Show backend routing metrics, loaded models against the memory
budget, cache effectiveness, the vector index size, and recent runs.

Example:
  scriptorium status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, _, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	s := p.Status(cmd.Context())

	fmt.Printf("%-20s %-8s %-8s %-8s %-10s %s\n", "BACKEND", "LOADED", "QUALITY", "SUCCESS", "LATENCY", "TAGS")
	fmt.Println(strings.Repeat("-", 72))
	for _, b := range s.Backends {
		loaded := "no"
		if b.Loaded {
			loaded = "yes"
		}
		fmt.Printf("%-20s %-8s %-8.2f %-8.2f %-10s %s\n",
			b.Capability.Name,
			loaded,
			b.Capability.QualityScore,
			b.Capability.SuccessRate,
			fmt.Sprintf("%.1fs", b.Capability.AvgLatency),
			strings.Join(b.Capability.Tags, ","),
		)
	}
	if len(s.Backends) == 0 {
		fmt.Println("No backends configured.")
	}

	fmt.Printf("\nMemory: %.2f/%.2f GB loaded\n", s.TotalGB, s.BudgetGB)
	for _, m := range s.LoadedModels {
		fmt.Printf("  %-20s %6.2f GB  last used %s\n", m.Name, m.FootprintGB, m.LastUsed.Format(time.RFC3339))
	}

	c := s.Cache
	fmt.Printf("\nCache: %d requests, %.0f%% hit rate, tier1 %d, tier2 %d\n",
		c.Requests, c.HitRate*100, c.Tier1, c.Tier2)

	if s.VectorCount >= 0 {
		fmt.Printf("Vector index: %d passage(s)\n", s.VectorCount)
	} else {
		fmt.Println("Vector index: unavailable")
	}

	if len(s.RecentRuns) > 0 {
		fmt.Printf("\n%-12s %-30s %-8s %-10s %s\n", "RUN", "SUBJECT", "SCORE", "TIER", "FINISHED")
		fmt.Println(strings.Repeat("-", 76))
		for _, r := range s.RecentRuns {
			score := fmt.Sprintf("%.1f", r.Score)
			if r.Failed {
				score = "failed"
			}
			fmt.Printf("%-12s %-30s %-8s %-10s %s\n",
				r.RunID, r.Subject, score, r.Tier, r.FinishedAt.Format(time.RFC3339))
		}
	}

	return nil
}
