// Package client is the executor side of the bridge: a connection lifecycle
// manager that dials the relay, serves incoming correlated requests, and
// reconnects with exponential backoff when the link drops.
package client

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/loonghao/ppt-kit/internal/events"
	"github.com/loonghao/ppt-kit/pkg/bridgewire"
)

// State is the lifecycle manager's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Lifecycle events published on the manager's emitter.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

// Defaults for reconnect behavior.
const (
	DefaultBaseDelay   = 2000 * time.Millisecond
	DefaultMaxAttempts = 10

	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	requestBudget    = 25 * time.Second
)

// Handler executes one relayed request locally (in the original system, via
// Office.js). The returned value is serialized into the response frame; an
// error is forwarded to the relay verbatim.
type Handler func(ctx context.Context, method string, params json.RawMessage) (any, error)

// Config tunes the lifecycle manager.
type Config struct {
	// URL of the relay's /ws endpoint.
	URL string
	// BaseDelay is the first reconnect delay; attempt n waits BaseDelay·1.5^n.
	BaseDelay time.Duration
	// MaxAttempts caps automatic reconnects. Once exhausted the manager
	// stays disconnected until an explicit Connect.
	MaxAttempts int
}

// Manager owns the WebSocket to the relay and drives the
// disconnected → connecting → connected → (error|disconnected) state machine.
type Manager struct {
	cfg     Config
	handler Handler
	emitter *events.Emitter
	dialer  *websocket.Dialer

	mu       sync.Mutex
	state    State
	attempts int
	conn     *websocket.Conn
	timer    *time.Timer
	stopped  bool

	writeMu sync.Mutex
}

// NewManager creates a lifecycle manager. handler must not be nil; emitter
// may be.
func NewManager(cfg Config, handler Handler, emitter *events.Emitter) *Manager {
	if handler == nil {
		log.Fatal("client.Manager requires a non-nil handler")
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Manager{
		cfg:     cfg,
		handler: handler,
		emitter: emitter,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		state:   StateDisconnected,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current reconnect attempt counter.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens the socket to the relay. Calling it while already connecting
// or connected is a no-op. A successful connect resets the attempt counter;
// a failure schedules a reconnect.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.stopped = false
	url := m.cfg.URL
	m.mu.Unlock()

	log.WithField("url", url).Debug("Connecting to bridge relay")
	conn, _, err := m.dialer.Dial(url, nil)
	if err != nil {
		m.mu.Lock()
		m.state = StateError
		m.mu.Unlock()
		log.Warnf("Bridge connection failed: %v", err)
		m.emit(EventError, err.Error())
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.stopped {
		// Disconnect was issued while the dial was in flight; it wins.
		m.state = StateDisconnected
		m.mu.Unlock()
		log.Debug("Discarding connection established after Disconnect")
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	m.mu.Unlock()

	log.Info("Connected to bridge relay")
	m.emit(EventConnected, nil)
	go m.readPump(conn)
}

// Disconnect closes the socket with a normal-closure code and cancels any
// scheduled reconnect. The manager stays down until Connect is called again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
	}
	m.emit(EventDisconnected, nil)
}

// SendEvent pushes an unsolicited event frame to the relay, e.g. a
// presentation-changed notification. No reply is expected.
func (m *Manager) SendEvent(event string, data any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return bridgewire.ErrNotConnected
	}
	frame, err := bridgewire.NewEventFrame(event, data)
	if err != nil {
		return err
	}
	return m.writeFrame(conn, frame)
}

func (m *Manager) writeFrame(conn *websocket.Conn, frame *bridgewire.Frame) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

func (m *Manager) readPump(conn *websocket.Conn) {
	defer m.handleClose(conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Debugf("Bridge connection closed: %v", err)
			return
		}
		frame, err := bridgewire.DecodeFrame(raw)
		if err != nil {
			log.Warnf("Dropping malformed relay frame: %v", err)
			continue
		}

		switch frame.Type {
		case bridgewire.TypeConnected:
			log.Debugf("Relay handshake: %s", frame.Message)
		case bridgewire.TypeRequest:
			m.serveRequest(conn, frame)
		default:
			log.Debugf("Ignoring relay frame of type %q", frame.Type)
		}
	}
}

// serveRequest executes one relayed request and writes back the correlated
// response. Requests run concurrently; ordering across calls is the
// relay's caller's problem, not ours.
func (m *Manager) serveRequest(conn *websocket.Conn, frame *bridgewire.Frame) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestBudget)
		defer cancel()

		result, err := m.handler(ctx, frame.Method, frame.Params)
		var reply *bridgewire.Frame
		if err != nil {
			reply = bridgewire.NewErrorFrame(frame.ID, err.Error())
		} else {
			reply, err = bridgewire.NewResultFrame(frame.ID, result)
			if err != nil {
				reply = bridgewire.NewErrorFrame(frame.ID, err.Error())
			}
		}
		if err := m.writeFrame(conn, reply); err != nil {
			log.Warnf("Failed to send response for request %s: %v", frame.ID, err)
		}
	}()
}

// handleClose runs when the read pump exits for any reason, including a
// clean close. It always schedules a reconnect unless Disconnect stopped us.
func (m *Manager) handleClose(conn *websocket.Conn) {
	_ = conn.Close()

	m.mu.Lock()
	if m.conn != conn {
		// A newer connection already replaced this one.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	stopped := m.stopped
	m.mu.Unlock()

	m.emit(EventDisconnected, nil)
	if !stopped {
		m.scheduleReconnect()
	}
}

// scheduleReconnect arms the backoff timer. Attempts are incremented here
// and only here, right before the retry fires.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.cfg.MaxAttempts {
		m.mu.Unlock()
		log.Warnf("Giving up after %d reconnect attempts; call Connect to retry manually", m.cfg.MaxAttempts)
		return
	}
	delay := BackoffDelay(m.cfg.BaseDelay, m.attempts)
	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.attempts++
		m.timer = nil
		m.mu.Unlock()
		m.Connect()
	})
	m.mu.Unlock()

	log.WithFields(log.Fields{"delay": delay, "attempt": m.Attempts() + 1}).
		Debug("Reconnect scheduled")
}

func (m *Manager) emit(name string, data any) {
	if m.emitter != nil {
		m.emitter.Emit(name, data)
	}
}

// BackoffDelay computes the reconnect delay for the given attempt number:
// base·1.5^attempts.
func BackoffDelay(base time.Duration, attempts int) time.Duration {
	return time.Duration(float64(base) * math.Pow(1.5, float64(attempts)))
}
