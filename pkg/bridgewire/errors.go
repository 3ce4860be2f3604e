package bridgewire

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned immediately when an operation is attempted
// while no executor is attached. Calls are never queued for a future
// connection.
var ErrNotConnected = errors.New("no executor connected to the bridge")

// TimeoutError reports that a correlated request was sent but no reply
// arrived inside the window. The pending entry is removed before this is
// returned, so a very late reply cannot be misattributed.
type TimeoutError struct {
	ID     string
	Method string
	Window time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %s (%s) timed out after %s", e.ID, e.Method, e.Window)
}

// RemoteError carries an application-level failure reported by the executor
// (e.g. "slide not found"). The message is forwarded verbatim, never
// translated.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ConnectionLostError rejects an in-flight request whose executor socket
// closed before a reply arrived. Distinct from TimeoutError so callers can
// tell "connection died mid-call" from "executor never answered".
type ConnectionLostError struct {
	ID     string
	Method string
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("executor connection lost before request %s (%s) completed", e.ID, e.Method)
}
