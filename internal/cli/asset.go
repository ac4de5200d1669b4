package cli

import (
	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/internal/protocol"
)

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Asset database operations",
}

func init() {
	assetCmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Refresh the asset database and wait for compilation",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdAssetRefresh, nil, 0)
			},
		},
		&cobra.Command{
			Use:   "import <path>",
			Short: "Import a single asset and wait for completion",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdAssetImport, map[string]any{"path": args[0]}, 0)
			},
		},
		&cobra.Command{
			Use:   "reimport-all",
			Short: "Reimport every asset in the project",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdAssetReimportAll, nil, 0)
			},
		},
	)
	rootCmd.AddCommand(assetCmd)
}
