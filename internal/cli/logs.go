package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unityctl/unityctl/internal/bridge"
)

var (
	logsLines  int
	logsSource string
	logsFull   bool
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail or follow the unified log buffer",
	RunE:  runLogs,
}

var logsClearReason string

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Advance the log watermark",
	RunE:  runLogsClear,
}

func init() {
	logsCmd.Flags().IntVar(&logsLines, "lines", 50, "number of entries (0 = all)")
	logsCmd.Flags().StringVar(&logsSource, "source", "all", "source filter: console, editor, all")
	logsCmd.Flags().BoolVar(&logsFull, "full", false, "include entries below the watermark")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream new entries")
	logsClearCmd.Flags().StringVar(&logsClearReason, "reason", "", "reason recorded with the clear")
	logsCmd.AddCommand(logsClearCmd)
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}

	if logsFollow {
		return c.StreamLogs(context.Background(), logsSource, func(e bridge.LogEntry) error {
			printEntry(e)
			return nil
		})
	}

	res, err := c.TailLogs(context.Background(), logsLines, logsSource, logsFull)
	if err != nil {
		return err
	}
	if flagJSON {
		printJSON(res)
		return nil
	}
	for _, e := range res.Entries {
		printEntry(e)
	}
	if res.ClearReason != "" {
		fmt.Println(styleMuted.Render(fmt.Sprintf("-- cleared at %s (%s)", res.ClearedAt, res.ClearReason)))
	}
	return nil
}

func runLogsClear(cmd *cobra.Command, args []string) error {
	c, err := client()
	if err != nil {
		return err
	}
	wm, err := c.ClearLogs(context.Background(), logsClearReason)
	if err != nil {
		return err
	}
	if flagJSON {
		printJSON(map[string]any{"success": true, "watermark": wm})
		return nil
	}
	fmt.Printf("cleared (watermark %d)\n", wm)
	return nil
}

func printEntry(e bridge.LogEntry) {
	if flagJSON {
		printJSON(e)
		return
	}
	ts := e.Timestamp.Local().Format(time.TimeOnly)
	line := fmt.Sprintf("%s %-7s %s", styleMuted.Render(ts), levelTag(e.Level), e.Message)
	fmt.Println(line)
	if e.StackTrace != "" {
		fmt.Println(styleMuted.Render(e.StackTrace))
	}
}

func levelTag(l bridge.Level) string {
	switch l {
	case bridge.LevelError, bridge.LevelException, bridge.LevelAssert:
		return styleError.Render(string(l))
	case bridge.LevelWarning:
		return styleWarning.Render(string(l))
	default:
		return string(l)
	}
}
