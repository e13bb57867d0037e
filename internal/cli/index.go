package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [files...]",
	Short: "Index reference documents into the vector store",
	Long: `Chunk reference documents, embed each chunk with the routed backend,
and store the passages for retrieval-augmented generation. Directories
are walked for .md and .txt files; re-indexing a file replaces its
previous passages.

Examples:
  scriptorium index --source ./sources
  scriptorium index augustine-confessions.txt summa-excerpts.md`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().String("source", "", "directory of reference documents")
}

func runIndex(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	paths := args
	if source != "" {
		paths = append(paths, source)
	}
	if len(paths) == 0 {
		return fmt.Errorf("nothing to index: pass files or --source")
	}

	p, cfg, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := cfg.ValidateForGenerate(); err != nil {
		return err
	}

	report, err := p.Index(cmd.Context(), paths)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d file(s) into %d passage(s)", report.Files, report.Passages)
	if report.Skipped > 0 {
		fmt.Printf(", skipped %d non-text file(s)", report.Skipped)
	}
	fmt.Println()
	return nil
}
