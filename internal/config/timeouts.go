package config

import (
	"strings"
	"time"

	"github.com/unityctl/unityctl/internal/protocol"
)

// For returns the logical deadline for a command. record.* commands carrying
// a duration argument get duration + 60s so the recording can finish before
// the request does.
func (t Timeouts) For(command string, args map[string]any) time.Duration {
	if strings.HasPrefix(command, "record.") {
		if d, ok := durationSeconds(args); ok {
			return d + 60*time.Second
		}
	}
	switch command {
	case protocol.CmdAssetRefresh, protocol.CmdAssetReimportAll:
		return t.Refresh
	case protocol.CmdTestRun:
		return t.Test
	case protocol.CmdBuildPlayer:
		return t.Build
	case protocol.CmdPlayEnter, protocol.CmdPlayToggle:
		// Entering play mode runs an asset refresh first.
		return t.Refresh
	default:
		return t.Default
	}
}

func durationSeconds(args map[string]any) (time.Duration, bool) {
	if args == nil {
		return 0, false
	}
	switch v := args["duration"].(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case int:
		return time.Duration(v) * time.Second, true
	default:
		return 0, false
	}
}
