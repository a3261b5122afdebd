// Package cli implements the llmfit command line.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "llmfit",
	Short: "llmfit — evaluate whether a problem suits LLM automation",
	Long: `llmfit runs a problem description through a five-stage analysis
pipeline (screening, dimension scoring, verdict, risk/alternative/
architecture assessment, synthesis) and prints the resulting report.

Follow-up answers can be supplied up front in a YAML profile so
non-interactive runs never stall on questions.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(evaluateCmd)
}
