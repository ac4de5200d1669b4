package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/pkg/bridgeclient"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge and editor status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "block until the bridge answers")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}

	var h *bridgeclient.Health
	if statusWait {
		ctx, cancel := ctxWithTimeout(60 * time.Second)
		defer cancel()
		h, err = c.WaitHealthy(ctx)
	} else {
		h, err = c.Health(context.Background())
	}
	if err != nil {
		return err
	}

	if flagJSON {
		printJSON(h)
		return nil
	}

	fmt.Printf("bridge:   %s (%s)\n", styleOK.Render("running"), h.BridgeVersion)
	fmt.Printf("project:  %s\n", h.ProjectID)
	if h.UnityConnected {
		ready := styleWarning.Render("connected, not ready")
		if h.EditorReady {
			ready = styleOK.Render("ready")
		}
		fmt.Printf("editor:   %s", ready)
		if h.UnityPluginVersion != "" {
			fmt.Printf(" %s", styleMuted.Render("(plugin "+h.UnityPluginVersion+")"))
		}
		fmt.Println()
	} else {
		fmt.Printf("editor:   %s\n", styleError.Render("not connected"))
	}
	return nil
}
