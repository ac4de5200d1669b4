package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/unityctl/unityctl/internal/protocol"
)

// Peer is the command-sending surface the orchestrator drives. Satisfied by
// *SessionManager.
type Peer interface {
	Send(ctx context.Context, command string, args map[string]any, agentID string) (*protocol.Response, error)
}

// Orchestrator expands compound commands into sequences of peer requests and
// awaited events. Each flow is a plain sequential procedure; concurrent
// invocations share nothing but the peer socket and the log pipeline.
type Orchestrator struct {
	logger            *slog.Logger
	peer              Peer
	events            *EventBus
	logs              *LogBuffer
	exitCompileWindow time.Duration
}

// NewOrchestrator wires the compound command flows.
func NewOrchestrator(logger *slog.Logger, peer Peer, events *EventBus, logs *LogBuffer, exitCompileWindow time.Duration) *Orchestrator {
	if exitCompileWindow <= 0 {
		exitCompileWindow = 2 * time.Second
	}
	return &Orchestrator{
		logger:            logger,
		peer:              peer,
		events:            events,
		logs:              logs,
		exitCompileWindow: exitCompileWindow,
	}
}

// Execute runs one caller-visible command to completion. Compound commands
// expand into multi-step flows; everything else is forwarded verbatim.
func (o *Orchestrator) Execute(ctx context.Context, command string, args map[string]any, agentID string) (*protocol.Response, error) {
	switch command {
	case protocol.CmdAssetRefresh:
		return o.assetRefresh(ctx, agentID, true)
	case protocol.CmdPlayEnter:
		return o.playEnter(ctx, agentID)
	case protocol.CmdPlayExit:
		return o.playExit(ctx, agentID)
	case protocol.CmdPlayToggle:
		return o.playToggle(ctx, agentID)
	case protocol.CmdTestRun:
		return o.testRun(ctx, args, agentID)
	case protocol.CmdRecordStart:
		return o.recordStart(ctx, args, agentID)
	case protocol.CmdAssetImport:
		return o.sendAndAwait(ctx, command, args, agentID, protocol.EventAssetImportComplete)
	case protocol.CmdAssetReimportAll:
		return o.sendAndAwait(ctx, command, args, agentID, protocol.EventAssetReimportComplete)
	default:
		return o.peer.Send(ctx, command, args, agentID)
	}
}

// assetRefresh implements the refresh flow: ack, refreshComplete, then an
// optional compilation.finished round.
func (o *Orchestrator) assetRefresh(ctx context.Context, agentID string, clearLogs bool) (*protocol.Response, error) {
	sub := o.events.Subscribe()
	defer o.events.Unsubscribe(sub)

	if clearLogs {
		o.logs.Clear("asset-refresh")
	}

	resp, err := o.peer.Send(ctx, protocol.CmdAssetRefresh, nil, agentID)
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusOK {
		return resp, nil
	}

	ev, err := waitOn(ctx, sub, named(protocol.EventAssetRefreshComplete))
	if err != nil {
		return nil, err
	}
	triggered := ev.Bool("compilationTriggered")

	if ev.Bool("hasCompilationErrors") {
		return errResponse(CodeCompilationError, "project has compilation errors", map[string]any{
			"compilationTriggered": triggered,
			"compilationSuccess":   false,
			"errors":               o.recentErrors(),
		}), nil
	}
	if !triggered {
		return okResponse(map[string]any{
			"compilationTriggered": false,
			"compilationSuccess":   true,
		}), nil
	}

	fin, err := waitOn(ctx, sub, named(protocol.EventCompilationFinished))
	if err != nil {
		return nil, err
	}
	result := map[string]any{
		"compilationTriggered": true,
		"compilationSuccess":   fin.Bool("success"),
		"errors":               fin.Payload["errors"],
		"warnings":             fin.Payload["warnings"],
	}
	if !fin.Bool("success") {
		return errResponse(CodeCompilationError, "compilation failed", result), nil
	}
	return okResponse(result), nil
}

// playEnter implements the enter flow: status probe, log clear, asset
// refresh, then the play-mode transition with bounce-back detection and
// domain-reload tolerance.
func (o *Orchestrator) playEnter(ctx context.Context, agentID string) (*protocol.Response, error) {
	status, err := o.peer.Send(ctx, protocol.CmdPlayStatus, nil, agentID)
	if err != nil {
		return nil, err
	}
	if status.Status != protocol.StatusOK {
		return status, nil
	}
	if boolResult(status, "playing") {
		return okResponse(map[string]any{"state": "AlreadyPlaying"}), nil
	}

	sub := o.events.Subscribe()
	defer o.events.Unsubscribe(sub)

	o.logs.Clear("entered-play-mode")

	refresh, err := o.assetRefresh(ctx, agentID, false)
	if err != nil {
		return nil, err
	}
	if refresh.Status != protocol.StatusOK {
		return refresh, nil
	}

	enter, err := o.peer.Send(ctx, protocol.CmdPlayEnter, nil, agentID)
	if err != nil {
		return nil, err
	}
	if enter.Status != protocol.StatusOK {
		return enter, nil
	}

	sawExitingEdit := false
	for {
		ev, err := waitOn(ctx, sub, anyOf(
			protocol.EventPlayModeChanged,
			EventPeerDisconnected,
			EventPeerConnected,
		))
		if err != nil {
			return nil, err
		}
		switch ev.Name {
		case protocol.EventPlayModeChanged:
			switch ev.Str("state") {
			case protocol.PlayStateEnteredPlayMode:
				return okResponse(map[string]any{"state": protocol.PlayStateEnteredPlayMode}), nil
			case protocol.PlayStateExitingEditMode:
				sawExitingEdit = true
			case protocol.PlayStateEnteredEditMode:
				if sawExitingEdit {
					// Bounce-back: the editor refused to enter play mode.
					return errResponse(CodePlayModeFailed, "play mode entry failed", map[string]any{
						"state": "PlayModeEntryFailed",
					}), nil
				}
			}
		case EventPeerDisconnected:
			if !ev.Bool("reloading") {
				return errResponse(CodePeerDisconnected, "editor disconnected during play mode entry", nil), nil
			}
			// Domain reload: the reconnect shows up as peer.connected below.
		case EventPeerConnected:
			st, err := o.peer.Send(ctx, protocol.CmdPlayStatus, nil, agentID)
			if err != nil {
				return nil, err
			}
			if st.Status == protocol.StatusOK && boolResult(st, "playing") {
				return okResponse(map[string]any{"state": protocol.PlayStateEnteredPlayMode}), nil
			}
		}
	}
}

// playExit implements the exit flow, including the short window for a late
// compilation.started after the mode change.
func (o *Orchestrator) playExit(ctx context.Context, agentID string) (*protocol.Response, error) {
	sub := o.events.Subscribe()
	defer o.events.Unsubscribe(sub)

	resp, err := o.peer.Send(ctx, protocol.CmdPlayExit, nil, agentID)
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusOK {
		return resp, nil
	}

	ev, err := waitOn(ctx, sub, func(e PeerEvent) bool {
		return e.Name == protocol.EventPlayModeChanged && e.Str("state") == protocol.PlayStateExitingPlayMode
	})
	if err != nil {
		return nil, err
	}
	compilationTriggered := ev.Bool("compilationTriggered")

	if !compilationTriggered {
		// Unity sometimes starts a compile a beat after the mode change;
		// watch for it briefly before declaring the exit clean.
		wctx, cancel := context.WithTimeout(ctx, o.exitCompileWindow)
		late, err := waitOn(wctx, sub, anyOf(
			protocol.EventCompilationStarted,
			protocol.EventDomainReloadStarting,
		))
		cancel()
		if err == nil {
			switch late.Name {
			case protocol.EventCompilationStarted:
				compilationTriggered = true
			case protocol.EventDomainReloadStarting:
				// Reload instead of a visible compile: wait out the
				// reconnect, bounded by the caller's deadline.
				if _, err := waitOn(ctx, sub, named(EventPeerConnected)); err != nil {
					return nil, err
				}
			}
		}
	}

	result := map[string]any{
		"state":                protocol.PlayStateExitingPlayMode,
		"compilationTriggered": compilationTriggered,
	}
	if compilationTriggered {
		fin, err := waitOn(ctx, sub, named(protocol.EventCompilationFinished))
		if err != nil {
			return nil, err
		}
		result["compilationSuccess"] = fin.Bool("success")
	}
	return okResponse(result), nil
}

// playToggle probes play.status and runs the matching transition.
func (o *Orchestrator) playToggle(ctx context.Context, agentID string) (*protocol.Response, error) {
	status, err := o.peer.Send(ctx, protocol.CmdPlayStatus, nil, agentID)
	if err != nil {
		return nil, err
	}
	if status.Status != protocol.StatusOK {
		return status, nil
	}
	if boolResult(status, "playing") {
		return o.playExit(ctx, agentID)
	}
	return o.playEnter(ctx, agentID)
}

// testRun acks the run, then returns the test.finished payload unchanged.
func (o *Orchestrator) testRun(ctx context.Context, args map[string]any, agentID string) (*protocol.Response, error) {
	sub := o.events.Subscribe()
	defer o.events.Unsubscribe(sub)

	ack, err := o.peer.Send(ctx, protocol.CmdTestRun, args, agentID)
	if err != nil {
		return nil, err
	}
	if ack.Status != protocol.StatusOK {
		return ack, nil
	}
	runID, _ := ack.Result["testRunId"]

	fin, err := waitOn(ctx, sub, func(e PeerEvent) bool {
		if e.Name != protocol.EventTestFinished {
			return false
		}
		return runID == nil || e.Payload["testRunId"] == runID
	})
	if err != nil {
		return nil, err
	}
	return okResponse(fin.Payload), nil
}

// recordStart enters play mode if needed, starts the recording, and for
// bounded recordings waits for record.finished.
func (o *Orchestrator) recordStart(ctx context.Context, args map[string]any, agentID string) (*protocol.Response, error) {
	status, err := o.peer.Send(ctx, protocol.CmdPlayStatus, nil, agentID)
	if err != nil {
		return nil, err
	}
	if status.Status != protocol.StatusOK {
		return status, nil
	}
	if !boolResult(status, "playing") {
		enter, err := o.playEnter(ctx, agentID)
		if err != nil {
			return nil, err
		}
		if enter.Status != protocol.StatusOK {
			return enter, nil
		}
	}

	sub := o.events.Subscribe()
	defer o.events.Unsubscribe(sub)

	ack, err := o.peer.Send(ctx, protocol.CmdRecordStart, args, agentID)
	if err != nil {
		return nil, err
	}
	if ack.Status != protocol.StatusOK {
		return ack, nil
	}
	if _, bounded := args["duration"]; !bounded {
		return ack, nil
	}

	recID, _ := ack.Result["recordingId"]
	fin, err := waitOn(ctx, sub, func(e PeerEvent) bool {
		if e.Name != protocol.EventRecordFinished {
			return false
		}
		return recID == nil || e.Payload["recordingId"] == recID
	})
	if err != nil {
		return nil, err
	}
	return okResponse(fin.Payload), nil
}

// sendAndAwait forwards a command and waits for its completion event,
// returning the event payload merged over the acknowledgement.
func (o *Orchestrator) sendAndAwait(ctx context.Context, command string, args map[string]any, agentID, completionEvent string) (*protocol.Response, error) {
	sub := o.events.Subscribe()
	defer o.events.Unsubscribe(sub)

	ack, err := o.peer.Send(ctx, command, args, agentID)
	if err != nil {
		return nil, err
	}
	if ack.Status != protocol.StatusOK {
		return ack, nil
	}

	ev, err := waitOn(ctx, sub, named(completionEvent))
	if err != nil {
		return nil, err
	}
	result := make(map[string]any, len(ack.Result)+len(ev.Payload))
	for k, v := range ack.Result {
		result[k] = v
	}
	for k, v := range ev.Payload {
		result[k] = v
	}
	return okResponse(result), nil
}

// recentErrors collects the error-level console entries currently buffered,
// used when a refresh reports pre-existing compilation errors.
func (o *Orchestrator) recentErrors() []map[string]any {
	tail := o.logs.Tail(0, SourceConsole, true)
	var out []map[string]any
	for _, e := range tail.Entries {
		switch e.Level {
		case LevelError, LevelException, LevelAssert:
			out = append(out, map[string]any{
				"message":    e.Message,
				"stackTrace": e.StackTrace,
			})
		}
	}
	const max = 20
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func okResponse(result map[string]any) *protocol.Response {
	return protocol.OK("", result)
}

func errResponse(code Code, message string, result map[string]any) *protocol.Response {
	return protocol.Err("", string(code), message, result)
}

func boolResult(resp *protocol.Response, key string) bool {
	if resp.Result == nil {
		return false
	}
	v, _ := resp.Result[key].(bool)
	return v
}

func anyOf(names ...string) func(PeerEvent) bool {
	return func(e PeerEvent) bool {
		for _, n := range names {
			if e.Name == n {
				return true
			}
		}
		return false
	}
}
