package cli

import (
	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/internal/protocol"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Control editor play mode",
}

func init() {
	playCmd.AddCommand(
		&cobra.Command{
			Use:   "enter",
			Short: "Refresh assets and enter play mode",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdPlayEnter, nil, 0)
			},
		},
		&cobra.Command{
			Use:   "exit",
			Short: "Exit play mode",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdPlayExit, nil, 0)
			},
		},
		&cobra.Command{
			Use:   "toggle",
			Short: "Enter or exit play mode depending on the current state",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdPlayToggle, nil, 0)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report the current play mode state",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdPlayStatus, nil, 0)
			},
		},
	)
	rootCmd.AddCommand(playCmd)
}
