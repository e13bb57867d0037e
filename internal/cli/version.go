package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scriptorium-ai/scriptorium/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit, and build information for this binary.

--short prints only the version tag, for scripts; --full prints the
multi-line build block.`,
	Run: func(cmd *cobra.Command, args []string) {
		switch {
		case flagBool(cmd, "short"):
			fmt.Println(version.Short())
		case flagBool(cmd, "full"):
			fmt.Println(version.Full())
		default:
			fmt.Println(version.Info())
		}
	},
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the version tag")
	versionCmd.Flags().Bool("full", false, "print the multi-line build block")
	rootCmd.AddCommand(versionCmd)
}
