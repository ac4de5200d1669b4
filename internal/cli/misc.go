package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/internal/protocol"
)

var rpcTimeout float64

var rpcCmd = &cobra.Command{
	Use:   "rpc <command> [json-args]",
	Short: "Invoke a raw bridge command",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var a map[string]any
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &a); err != nil {
				return fmt.Errorf("parse args: %w", err)
			}
		}
		return rpc(args[0], a, rpcTimeout)
	},
}

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Scene operations",
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Editor menu operations",
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently completed bridge commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		entries, err := c.History(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			printJSON(entries)
			return nil
		}
		for _, e := range entries {
			status := styleOK.Render(e.Status)
			if e.Status != protocol.StatusOK {
				status = styleError.Render(e.Status + " " + e.Code)
			}
			fmt.Printf("%s  %-22s %s  %dms\n",
				styleMuted.Render(e.Time.Local().Format("15:04:05")),
				e.Command, status, e.DurationMS)
		}
		return nil
	},
}

func init() {
	rpcCmd.Flags().Float64Var(&rpcTimeout, "timeout", 0, "logical deadline in seconds (0 = command default)")

	sceneCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List scenes in the build settings",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdSceneList, nil, 0)
			},
		},
		&cobra.Command{
			Use:   "load <path>",
			Short: "Load a scene by path",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdSceneLoad, map[string]any{"path": args[0]}, 0)
			},
		},
	)

	menuCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List editor menu items",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdMenuList, nil, 0)
			},
		},
		&cobra.Command{
			Use:   "exec <item>",
			Short: "Execute an editor menu item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdMenuExecute, map[string]any{"item": args[0]}, 0)
			},
		},
	)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "number of entries")

	rootCmd.AddCommand(
		rpcCmd,
		sceneCmd,
		menuCmd,
		historyCmd,
		&cobra.Command{
			Use:   "screenshot [output-path]",
			Short: "Capture a screenshot of the game view",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := map[string]any{}
				if len(args) == 1 {
					a["outputPath"] = args[0]
				}
				return rpc(protocol.CmdScreenshotCapture, a, 0)
			},
		},
		&cobra.Command{
			Use:   "script <code>",
			Short: "Execute a C# snippet on the editor main loop",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rpc(protocol.CmdScriptExecute, map[string]any{"code": args[0]}, 0)
			},
		},
		&cobra.Command{
			Use:   "build [target]",
			Short: "Build the player",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := map[string]any{}
				if len(args) == 1 {
					a["target"] = args[0]
				}
				return rpc(protocol.CmdBuildPlayer, a, 0)
			},
		},
		&cobra.Command{
			Use:   "console",
			Short: "Tail console logs (alias for logs --source console)",
			RunE: func(cmd *cobra.Command, args []string) error {
				logsSource = "console"
				return runLogs(cmd, args)
			},
		},
	)
}
