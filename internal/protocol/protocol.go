// Package protocol defines the JSON wire format shared by the Bridge, the
// unityctl CLI, and the Unity editor plugin. All peer frames are JSON text
// discriminated by a "type" field.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the wire protocol version the Bridge speaks.
const Version = "1.0.0"

// Frame kinds carried on the peer WebSocket.
const (
	KindHello    = "hello"
	KindRequest  = "request"
	KindResponse = "response"
	KindEvent    = "event"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Hello is the first frame a peer sends after the socket opens.
type Hello struct {
	Type            string `json:"type"`
	ProjectID       string `json:"projectId"`
	UnityVersion    string `json:"unityVersion"`
	ProtocolVersion string `json:"protocolVersion"`
	PluginVersion   string `json:"pluginVersion"`
	PID             int    `json:"pid,omitempty"`
}

// Request is a Bridge-to-peer command frame.
type Request struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
	AgentID string         `json:"agentId,omitempty"`
}

// Response is a peer-to-Bridge reply frame, correlated by ID. The same shape
// is returned verbatim to HTTP /rpc callers.
type Response struct {
	Type   string         `json:"type"`
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  *ErrorInfo     `json:"error,omitempty"`
}

// ErrorInfo carries a stable error code plus a human-readable message.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Event is an unsolicited peer-to-Bridge notification frame.
type Event struct {
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// DecodeFrame parses a raw peer frame into one of Hello, Request, Response,
// or Event based on the "type" discriminator.
func DecodeFrame(data []byte) (any, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	switch probe.Type {
	case KindHello:
		var h Hello
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("parse hello: %w", err)
		}
		return &h, nil
	case KindRequest:
		var r Request
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse request: %w", err)
		}
		return &r, nil
	case KindResponse:
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		return &r, nil
	case KindEvent:
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parse event: %w", err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", probe.Type)
	}
}

// OK builds a success response.
func OK(id string, result map[string]any) *Response {
	return &Response{Type: KindResponse, ID: id, Status: StatusOK, Result: result}
}

// Err builds an error response.
func Err(id, code, message string, result map[string]any) *Response {
	return &Response{
		Type:   KindResponse,
		ID:     id,
		Status: StatusError,
		Result: result,
		Error:  &ErrorInfo{Code: code, Message: message},
	}
}
