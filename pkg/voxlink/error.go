package voxlink

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrTransportUnsupported indicates the execution environment cannot
	// create the underlying socket at all (simulated or headless hosts).
	// This is permanent; the engine will not retry.
	ErrTransportUnsupported = errors.New("voxlink: transport unsupported in this environment")

	// ErrNotConnected is returned by send operations while no session is
	// established.
	ErrNotConnected = errors.New("voxlink: not connected")
)

// Error codes carried by *Error.
const (
	CodeInvalidConfig      = "invalid_config"
	CodeAuthRejected       = "auth_rejected"
	CodeJoinRejected       = "join_rejected"
	CodeReconnectExhausted = "reconnect_exhausted"
	CodeTransport          = "transport_error"
	CodeServer             = "server_error"
)

// Error is a protocol- or configuration-level failure surfaced by the
// engine. No other error type crosses the public API boundary.
type Error struct {
	// Code is a stable machine-readable identifier.
	Code string

	// Message is the human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("voxlink: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("voxlink: %s", e.Message)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
