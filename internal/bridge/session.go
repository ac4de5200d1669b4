package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/unityctl/unityctl/internal/protocol"
)

// helloWait bounds how long a freshly connected peer has to send its hello
// frame before the socket is treated as a protocol violation.
const helloWait = 5 * time.Second

// peerSession is one live editor connection. The outbox channel plus a single
// writer goroutine serialize all socket writes.
type peerSession struct {
	conn   *websocket.Conn
	hello  protocol.Hello
	outbox chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func (s *peerSession) shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// Status is the session snapshot reported by /health.
type Status struct {
	Connected bool
	Ready     bool
	Reloading bool
	Hello     *protocol.Hello
}

// SessionManager owns the single peer slot: hello validation, atomic session
// swap on reconnect, the readiness probe, the domain-reload grace latch, and
// request forwarding through the correlator.
type SessionManager struct {
	logger      *slog.Logger
	projectID   string
	correlator  *Correlator
	events      *EventBus
	logs        *LogBuffer
	graceWindow time.Duration
	readyWait   time.Duration

	mu         sync.Mutex
	cur        *peerSession
	ready      bool
	reloading  bool
	reloadDone chan struct{} // non-nil exactly while reloading
}

// NewSessionManager wires the session layer to the correlator, event bus,
// and log pipeline.
func NewSessionManager(logger *slog.Logger, projectID string, correlator *Correlator, events *EventBus, logs *LogBuffer, graceWindow, readyWait time.Duration) *SessionManager {
	if graceWindow <= 0 {
		graceWindow = 60 * time.Second
	}
	if readyWait <= 0 {
		readyWait = 5 * time.Second
	}
	return &SessionManager{
		logger:      logger,
		projectID:   projectID,
		correlator:  correlator,
		events:      events,
		logs:        logs,
		graceWindow: graceWindow,
		readyWait:   readyWait,
	}
}

// HandlePeer runs a peer connection to completion: hello handshake, session
// install, then the frame reader loop. It blocks until the peer goes away.
func (m *SessionManager) HandlePeer(conn *websocket.Conn) {
	hello, err := m.awaitHello(conn)
	if err != nil {
		m.logger.Warn("peer handshake failed", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	sess := &peerSession{
		conn:   conn,
		hello:  *hello,
		outbox: make(chan []byte, 32),
		closed: make(chan struct{}),
	}
	m.install(sess)

	m.logger.Info("editor connected",
		"unity_version", hello.UnityVersion,
		"plugin_version", hello.PluginVersion,
		"peer_pid", hello.PID,
	)

	go m.writeLoop(sess)
	go m.probeReady(sess)

	m.readLoop(sess)
	m.detach(sess)
}

func (m *SessionManager) awaitHello(conn *websocket.Conn) (*protocol.Hello, error) {
	if err := conn.SetReadDeadline(time.Now().Add(helloWait)); err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, errors.New("no hello frame before deadline")
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}

	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	hello, ok := frame.(*protocol.Hello)
	if !ok {
		return nil, errors.New("first frame is not a hello")
	}
	if hello.ProjectID != m.projectID {
		return nil, errors.New("hello projectId does not match this bridge")
	}
	return hello, nil
}

// install replaces any prior session atomically. A replacement arriving
// while a domain reload is in progress completes the reload signal so every
// waiter unblocks.
func (m *SessionManager) install(sess *peerSession) {
	m.mu.Lock()
	old := m.cur
	m.cur = sess
	m.ready = false
	done := m.reloadDone
	m.reloading = false
	m.reloadDone = nil
	m.mu.Unlock()

	if old != nil {
		old.shutdown()
	}
	if done != nil {
		close(done)
	}
	m.events.Publish(PeerEvent{Name: EventPeerConnected})
}

func (m *SessionManager) detach(sess *peerSession) {
	m.mu.Lock()
	if m.cur != sess {
		// Already replaced by a newer session.
		m.mu.Unlock()
		sess.shutdown()
		return
	}
	m.cur = nil
	m.ready = false
	reloading := m.reloading
	m.mu.Unlock()
	sess.shutdown()

	m.logger.Info("editor disconnected", "reloading", reloading)
	m.events.Publish(PeerEvent{Name: EventPeerDisconnected, Payload: map[string]any{"reloading": reloading}})

	if !reloading {
		m.correlator.FailAll(CodePeerDisconnected, "editor peer disconnected")
		return
	}

	// Domain reload in progress: keep in-flight requests alive for the
	// grace window; fail them only if no peer comes back in time.
	time.AfterFunc(m.graceWindow, func() {
		m.mu.Lock()
		expired := m.reloading && m.cur == nil
		var done chan struct{}
		if expired {
			m.reloading = false
			done = m.reloadDone
			m.reloadDone = nil
		}
		m.mu.Unlock()
		if !expired {
			return
		}
		if done != nil {
			close(done)
		}
		m.logger.Warn("domain reload grace window expired")
		m.correlator.FailAll(CodePeerDisconnected, "editor did not reconnect within reload grace window")
	})
}

func (m *SessionManager) writeLoop(sess *peerSession) {
	for {
		select {
		case msg := <-sess.outbox:
			if err := sess.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				sess.shutdown()
				return
			}
		case <-sess.closed:
			return
		}
	}
}

func (m *SessionManager) readLoop(sess *peerSession) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			m.logger.Warn("malformed peer frame", "error", err)
			_ = sess.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseProtocolError, "malformed frame"),
				time.Now().Add(time.Second))
			return
		}
		switch f := frame.(type) {
		case *protocol.Response:
			if !m.correlator.Resolve(f) {
				m.logger.Debug("unmatched response", "id", f.ID)
			}
		case *protocol.Event:
			m.handleEvent(f)
		default:
			m.logger.Warn("unexpected frame kind from peer")
		}
	}
}

func (m *SessionManager) handleEvent(ev *protocol.Event) {
	switch ev.Name {
	case protocol.EventLog:
		m.logs.Append(consoleEntry(ev.Payload))
	case protocol.EventDomainReloadStarting:
		m.mu.Lock()
		if !m.reloading {
			m.reloading = true
			m.reloadDone = make(chan struct{})
		}
		m.ready = false
		m.mu.Unlock()
	case protocol.EventPlayModeChanged:
		if s, _ := ev.Payload["state"].(string); s == protocol.PlayStateEnteredPlayMode {
			m.logs.Clear("entered-play-mode")
		}
	}
	m.events.Publish(PeerEvent{Name: ev.Name, Payload: ev.Payload})
}

func consoleEntry(payload map[string]any) LogEntry {
	e := LogEntry{Source: SourceConsole, Level: LevelLog}
	if v, ok := payload["level"].(string); ok && v != "" {
		e.Level = Level(v)
	}
	e.Message, _ = payload["message"].(string)
	e.StackTrace, _ = payload["stackTrace"].(string)
	e.Color, _ = payload["color"].(string)
	return e
}

// probeReady sends editor.ping on the freshly connected session; any
// non-error reply within the readiness deadline marks the editor ready.
func (m *SessionManager) probeReady(sess *peerSession) {
	ctx, cancel := context.WithTimeout(context.Background(), m.readyWait)
	defer cancel()
	resp, err := m.Send(ctx, protocol.CmdEditorPing, map[string]any{"ts": time.Now().UnixMilli()}, "")
	if err != nil || resp.Status != protocol.StatusOK {
		m.logger.Warn("readiness probe failed", "error", err)
		return
	}
	m.mu.Lock()
	if m.cur == sess {
		m.ready = true
	}
	m.mu.Unlock()
	m.logger.Info("editor ready")
}

// Send forwards one command to the peer and waits for the correlated
// response. If the peer is absent but a domain reload is in progress, it
// blocks for the reconnect (bounded by ctx); with no reload it fails fast
// with ErrPeerUnavailable. A ctx deadline yields ErrTimeout.
func (m *SessionManager) Send(ctx context.Context, command string, args map[string]any, agentID string) (*protocol.Response, error) {
	var sess *peerSession
	for {
		m.mu.Lock()
		sess = m.cur
		reloading := m.reloading
		done := m.reloadDone
		m.mu.Unlock()

		if sess != nil {
			break
		}
		if !reloading {
			return nil, ErrPeerUnavailable
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctxError(ctx)
		}
	}

	id := uuid.NewString()
	p := m.correlator.Register(id, command)

	data, err := json.Marshal(protocol.Request{
		Type:    protocol.KindRequest,
		ID:      id,
		Command: command,
		Args:    args,
		AgentID: agentID,
	})
	if err != nil {
		m.correlator.Remove(id)
		return nil, err
	}

	select {
	case sess.outbox <- data:
	case <-sess.closed:
		// Write failure is a disconnect. The pending record stays; detach
		// decides between grace and PEER_DISCONNECTED, and we wait below.
	case <-ctx.Done():
		m.correlator.Remove(id)
		return nil, ctxError(ctx)
	}

	select {
	case resp := <-p.done:
		return resp, nil
	case <-ctx.Done():
		m.correlator.Remove(id)
		return nil, ctxError(ctx)
	}
}

// Status reports peer presence and readiness for /health.
func (m *SessionManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Connected: m.cur != nil,
		Ready:     m.ready,
		Reloading: m.reloading,
	}
	if m.cur != nil {
		h := m.cur.hello
		st.Hello = &h
	}
	return st
}

// Close tears down the current peer connection, if any.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sess := m.cur
	m.mu.Unlock()
	if sess != nil {
		sess.shutdown()
	}
}

func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
