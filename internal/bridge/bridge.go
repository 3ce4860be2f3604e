// Package bridge is the relay side of the executor link. It accepts exactly
// one executor WebSocket at a time (a newer connection evicts the older one),
// correlates outbound requests with replies, and keeps the dispatcher's
// backend consistent with connection state: Remote while an executor is
// attached, Mock the instant it is not.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/loonghao/ppt-kit/internal/events"
	"github.com/loonghao/ppt-kit/internal/ops"
	"github.com/loonghao/ppt-kit/pkg/bridgewire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	// DefaultRequestTimeout bounds how long a correlated request may wait
	// for its reply.
	DefaultRequestTimeout = 30 * time.Second
)

// Lifecycle events published on the bridge emitter.
const (
	EventExecutorConnected    = "executor_connected"
	EventExecutorDisconnected = "executor_disconnected"
	EventExecutorNotification = "executor_notification"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The executor runs inside the Office add-in sandbox and connects from
	// whatever origin the host application serves the task pane from.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// backendSink is the dispatcher seam the bridge flips as the executor
// attaches and detaches.
type backendSink interface {
	SetOperations(ops.Operations)
}

type callOutcome struct {
	result json.RawMessage
	err    error
}

// pendingRequest is one in-flight correlated call. Owned exclusively by the
// bridge's pending map; destroyed by reply, timeout, cancellation or
// connection loss, whichever comes first.
type pendingRequest struct {
	id     string
	method string
	ch     chan callOutcome
}

// Bridge relays correlated requests to the single attached executor.
type Bridge struct {
	sink    backendSink
	mock    ops.Operations
	remote  ops.Operations
	emitter *events.Emitter
	timeout time.Duration

	ids bridgewire.IDGenerator

	mu       sync.Mutex // guards conn, connDone and pending
	conn     *websocket.Conn
	connDone chan struct{}
	pending  map[string]*pendingRequest

	writeMu sync.Mutex // serializes frame writes to the socket
}

// New creates a bridge that flips the sink between the given mock backend
// and its own remote backend. A non-positive timeout selects the default.
// The sink starts on the mock backend.
func New(sink backendSink, mock ops.Operations, emitter *events.Emitter, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	b := &Bridge{
		sink:    sink,
		mock:    mock,
		emitter: emitter,
		timeout: timeout,
		pending: make(map[string]*pendingRequest),
	}
	b.remote = &RemoteOperations{bridge: b}
	sink.SetOperations(mock)
	return b
}

// Connected reports whether an executor is currently attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Remote returns the bridge's remote backend, mainly for tests that call it
// directly.
func (b *Bridge) Remote() ops.Operations {
	return b.remote
}

// HandleWebSocket upgrades an incoming executor connection and attaches it.
func (b *Bridge) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade executor connection: %v", err)
		return
	}
	b.attach(conn)
}

// attach installs the new executor connection, evicting a previous one.
// Single tenancy favors the newest tab: the old connection is closed, not
// the new one rejected.
func (b *Bridge) attach(conn *websocket.Conn) {
	b.mu.Lock()
	prev := b.conn
	prevDone := b.connDone
	if prev != nil {
		// The evicted executor's in-flight requests can never complete.
		b.failPendingLocked()
	}
	b.conn = conn
	b.connDone = make(chan struct{})
	done := b.connDone
	b.mu.Unlock()

	if prev != nil {
		log.WithField("remote_addr", prev.RemoteAddr().String()).
			Warn("Evicting previously attached executor")
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "superseded by new connection")
		_ = prev.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = prev.Close()
		close(prevDone)
	}

	log.WithField("remote_addr", conn.RemoteAddr().String()).Info("Executor connected")

	// Advisory handshake; the executor does not have to wait for it.
	if err := b.writeFrame(conn, bridgewire.NewConnectedFrame("connected to ppt-kit bridge")); err != nil {
		log.Warnf("Failed to send connected handshake: %v", err)
	}

	b.sink.SetOperations(b.remote)
	if b.emitter != nil {
		b.emitter.Emit(EventExecutorConnected, conn.RemoteAddr().String())
	}

	go b.pinger(conn, done)
	go b.readPump(conn)
}

// detach tears down the given connection if it is still the active one.
func (b *Bridge) detach(conn *websocket.Conn) {
	b.mu.Lock()
	active := b.conn == conn
	var done chan struct{}
	if active {
		b.conn = nil
		done = b.connDone
		b.connDone = nil
		b.failPendingLocked()
	}
	b.mu.Unlock()

	_ = conn.Close()
	if !active {
		return
	}
	close(done)

	log.Info("Executor disconnected, dispatcher re-armed to mock backend")
	b.sink.SetOperations(b.mock)
	if b.emitter != nil {
		b.emitter.Emit(EventExecutorDisconnected, nil)
	}
}

// failPendingLocked rejects every in-flight request with a connection-lost
// error. Caller holds b.mu.
func (b *Bridge) failPendingLocked() {
	for id, pr := range b.pending {
		delete(b.pending, id)
		pr.ch <- callOutcome{err: &bridgewire.ConnectionLostError{ID: id, Method: pr.method}}
	}
}

func (b *Bridge) pinger(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *Bridge) readPump(conn *websocket.Conn) {
	defer b.detach(conn)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
				log.Warnf("Executor read error: %v", err)
			} else {
				log.Debugf("Executor connection closed: %v", err)
			}
			return
		}

		frame, err := bridgewire.DecodeFrame(raw)
		if err != nil {
			log.Warnf("Dropping malformed executor frame: %v", err)
			continue
		}

		switch frame.Type {
		case bridgewire.TypeResponse:
			b.resolve(frame)
		case bridgewire.TypeEvent:
			log.WithField("event", frame.Event).Debug("Executor event received")
			if b.emitter != nil {
				b.emitter.Emit(EventExecutorNotification, frame)
			}
		default:
			log.Debugf("Ignoring executor frame of type %q", frame.Type)
		}
	}
}

// resolve routes a response frame to its pending request. A reply whose id
// is unknown (already timed out, cancelled, or belonging to an evicted
// connection) is dropped silently.
func (b *Bridge) resolve(frame *bridgewire.Frame) {
	pr := b.takePending(frame.ID)
	if pr == nil {
		log.WithField("id", frame.ID).Debug("Dropping late or unknown response")
		return
	}
	if frame.Error != "" {
		pr.ch <- callOutcome{err: &bridgewire.RemoteError{Method: pr.method, Message: frame.Error}}
		return
	}
	pr.ch <- callOutcome{result: frame.Result}
}

// takePending removes and returns the pending request for id, or nil.
func (b *Bridge) takePending(id string) *pendingRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	pr, ok := b.pending[id]
	if !ok {
		return nil
	}
	delete(b.pending, id)
	return pr
}

func (b *Bridge) writeFrame(conn *websocket.Conn, frame *bridgewire.Frame) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

// Call forwards one correlated request to the attached executor and waits
// for the matching reply, the timeout, or context cancellation. Fails
// immediately with ErrNotConnected when no executor is attached; calls are
// never queued.
func (b *Bridge) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return nil, bridgewire.ErrNotConnected
	}
	pr := &pendingRequest{
		id:     b.ids.Next(),
		method: method,
		ch:     make(chan callOutcome, 1),
	}
	b.pending[pr.id] = pr
	b.mu.Unlock()

	frame, err := bridgewire.NewRequestFrame(pr.id, method, params)
	if err != nil {
		b.takePending(pr.id)
		return nil, err
	}
	if err := b.writeFrame(conn, frame); err != nil {
		b.takePending(pr.id)
		return nil, &bridgewire.ConnectionLostError{ID: pr.id, Method: method}
	}

	log.WithFields(log.Fields{"id": pr.id, "method": method}).Debug("Request relayed to executor")

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case out := <-pr.ch:
		if out.err != nil {
			return nil, out.err
		}
		return out.result, nil

	case <-timer.C:
		// Losing the race against a concurrent reply is fine: if the entry
		// is already gone the outcome is sitting in the buffered channel.
		if b.takePending(pr.id) == nil {
			out := <-pr.ch
			if out.err != nil {
				return nil, out.err
			}
			return out.result, nil
		}
		return nil, &bridgewire.TimeoutError{ID: pr.id, Method: method, Window: b.timeout}

	case <-ctx.Done():
		if b.takePending(pr.id) == nil {
			out := <-pr.ch
			if out.err != nil {
				return nil, out.err
			}
			return out.result, nil
		}
		return nil, ctx.Err()
	}
}
