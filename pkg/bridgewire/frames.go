// Package bridgewire defines the JSON wire protocol spoken between the relay
// and the single attached executor. Frames are small tagged unions: a request
// travels relay→executor, a response or an unsolicited event travels
// executor→relay, and a one-shot "connected" handshake travels relay→executor
// immediately after the socket is accepted.
package bridgewire

import (
	"encoding/json"
	"fmt"
)

// Frame type tags.
const (
	TypeRequest   = "request"
	TypeResponse  = "response"
	TypeEvent     = "event"
	TypeConnected = "connected"
)

// Frame is the decoded form of any wire message. Fields that do not apply to
// the tagged type are left zero. Params/Result/Data stay raw so the receiver
// decides how (and whether) to decode them.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewRequestFrame builds a request frame, marshalling params in place.
func NewRequestFrame(id, method string, params any) (*Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
	}
	return &Frame{Type: TypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResultFrame builds a successful response frame for the given request id.
func NewResultFrame(id string, result any) (*Frame, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result for request %s: %w", id, err)
	}
	return &Frame{Type: TypeResponse, ID: id, Result: raw}, nil
}

// NewErrorFrame builds an error response frame. The message is forwarded to
// the original caller verbatim, so it should already be human readable.
func NewErrorFrame(id, message string) *Frame {
	return &Frame{Type: TypeResponse, ID: id, Error: message}
}

// NewEventFrame builds an unsolicited executor→relay notification.
func NewEventFrame(event string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data for event %s: %w", event, err)
	}
	return &Frame{Type: TypeEvent, Event: event, Data: raw}, nil
}

// NewConnectedFrame builds the advisory handshake frame the relay sends once
// per accepted connection.
func NewConnectedFrame(message string) *Frame {
	return &Frame{Type: TypeConnected, Message: message}
}

// DecodeFrame parses a raw wire message.
func DecodeFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed bridge frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("bridge frame missing type tag")
	}
	return &f, nil
}
