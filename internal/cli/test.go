package cli

import (
	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/internal/protocol"
)

var (
	testMode   string
	testFilter string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run editor tests",
}

var testRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a test pass and wait for results",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := map[string]any{"mode": testMode}
		if testFilter != "" {
			a["filter"] = testFilter
		}
		return rpc(protocol.CmdTestRun, a, 0)
	},
}

func init() {
	testRunCmd.Flags().StringVar(&testMode, "mode", "editmode", "test mode: editmode or playmode")
	testRunCmd.Flags().StringVar(&testFilter, "filter", "", "test name filter")
	testCmd.AddCommand(testRunCmd)
	rootCmd.AddCommand(testCmd)
}
