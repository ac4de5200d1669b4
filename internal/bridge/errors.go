package bridge

import (
	"errors"
	"net/http"
)

// Code is a stable error code surfaced to callers.
type Code string

const (
	CodePeerUnavailable  Code = "PEER_UNAVAILABLE"
	CodeTimeout          Code = "TIMEOUT"
	CodePeerDisconnected Code = "PEER_DISCONNECTED"
	CodeCompilationError Code = "COMPILATION_ERROR"
	CodePlayModeFailed   Code = "PLAY_MODE_FAILED"
	CodeProtocolError    Code = "PROTOCOL_ERROR"
	CodeCommandFailed    Code = "COMMAND_FAILED"
)

// HTTPStatus maps a code to the /rpc HTTP status. Domain failures
// (compilation, play mode, peer-reported errors) are 200 with status=error;
// only transport-level failures change the HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodePeerUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodePeerDisconnected:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

var (
	// ErrPeerUnavailable means no peer is connected and no domain reload is
	// in progress.
	ErrPeerUnavailable = errors.New("editor peer unavailable")

	// ErrTimeout means a logical deadline elapsed before the peer answered.
	ErrTimeout = errors.New("request timed out")

	// ErrPeerDisconnected means the peer went away mid-request without a
	// domain reload in progress.
	ErrPeerDisconnected = errors.New("editor peer disconnected")
)
