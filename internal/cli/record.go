package cli

import (
	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/internal/protocol"
)

var (
	recordDuration float64
	recordOutput   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record gameplay video",
}

var recordStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a recording (enters play mode first if needed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := map[string]any{}
		if recordDuration > 0 {
			a["duration"] = recordDuration
		}
		if recordOutput != "" {
			a["outputPath"] = recordOutput
		}
		return rpc(protocol.CmdRecordStart, a, 0)
	},
}

func init() {
	recordStartCmd.Flags().Float64Var(&recordDuration, "duration", 0, "seconds to record; waits for completion when set")
	recordStartCmd.Flags().StringVar(&recordOutput, "output", "", "output file path")
	recordCmd.AddCommand(
		recordStartCmd,
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the active recording",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdRecordStop, nil, 0)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report recording state",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdRecordStatus, nil, 0)
			},
		},
	)
	rootCmd.AddCommand(recordCmd)
}
