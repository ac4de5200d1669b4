// Package cli implements the unityctl command tree. Every verb is a thin
// wrapper over the Bridge's HTTP surface; the daemon does the real work.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/internal/protocol"
	"github.com/unityctl/unityctl/pkg/bridgeclient"
)

var (
	flagProject string
	flagJSON    bool
)

var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

var rootCmd = &cobra.Command{
	Use:           "unityctl",
	Short:         "Drive a running Unity editor from the command line",
	Long:          `unityctl talks to the unityctl-bridge daemon for a Unity project and executes editor commands: play mode, asset refresh, tests, recordings, and log access.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "Unity project root (default: auto-detect from cwd)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output")
}

// Execute runs the CLI. Any error surfaced to the caller exits 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// projectRoot resolves --project or walks up from cwd looking for a
// .unityctl directory, falling back to the cwd itself.
func projectRoot() (string, error) {
	if flagProject != "" {
		return filepath.Abs(flagProject)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".unityctl")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

func client() (*bridgeclient.Client, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	return bridgeclient.Discover(root)
}

// rpc runs one command through the Bridge and renders the response. An
// error-status response becomes a non-nil error, so RunE exits 1.
func rpc(command string, args map[string]any, timeout float64) error {
	c, err := client()
	if err != nil {
		return err
	}
	resp, err := c.RPC(context.Background(), command, args, "", timeout)
	if err != nil {
		return err
	}
	return renderResponse(resp)
}

func renderResponse(resp *protocol.Response) error {
	if flagJSON {
		printJSON(resp)
		if resp.Status != protocol.StatusOK {
			return fmt.Errorf("command failed")
		}
		return nil
	}
	if resp.Status != protocol.StatusOK {
		if len(resp.Result) > 0 {
			printJSON(resp.Result)
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
		}
		return fmt.Errorf("command failed")
	}
	if len(resp.Result) > 0 {
		printJSON(resp.Result)
	} else {
		fmt.Println(styleOK.Render("ok"))
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func ctxWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
