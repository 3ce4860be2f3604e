package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loonghao/ppt-kit/internal/events"
	"github.com/loonghao/ppt-kit/internal/models"
	"github.com/loonghao/ppt-kit/internal/ops"
	"github.com/loonghao/ppt-kit/pkg/bridgewire"
)

// recordingSink captures every backend swap so tests can assert the
// connected ⇔ remote-backend invariant.
type recordingSink struct {
	mu      sync.Mutex
	current ops.Operations
}

func (s *recordingSink) SetOperations(backend ops.Operations) {
	s.mu.Lock()
	s.current = backend
	s.mu.Unlock()
}

func (s *recordingSink) Current() ops.Operations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

type harness struct {
	bridge  *Bridge
	sink    *recordingSink
	mock    ops.Operations
	emitter *events.Emitter
	url     string
}

func newHarness(t *testing.T, timeout time.Duration) *harness {
	t.Helper()
	sink := &recordingSink{}
	mock := ops.NewMockOperations()
	emitter := events.NewEmitter()
	b := New(sink, mock, emitter, timeout)

	srv := httptest.NewServer(http.HandlerFunc(b.HandleWebSocket))
	t.Cleanup(srv.Close)

	return &harness{
		bridge:  b,
		sink:    sink,
		mock:    mock,
		emitter: emitter,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

// dial connects a fake executor and consumes the connected handshake.
func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	if err != nil {
		t.Fatalf("executor dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	var hello bridgewire.Frame
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading handshake: %v", err)
	}
	if hello.Type != bridgewire.TypeConnected {
		t.Fatalf("first frame type = %q, want connected", hello.Type)
	}
	return conn
}

func readRequest(t *testing.T, conn *websocket.Conn) *bridgewire.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var frame bridgewire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			// Errorf, not Fatalf: readRequest runs on executor goroutines,
			// and Fatalf must only be called from the test goroutine.
			t.Errorf("executor read: %v", err)
			return &frame
		}
		if frame.Type == bridgewire.TypeRequest {
			return &frame
		}
	}
}

func reply(t *testing.T, conn *websocket.Conn, id string, result any) {
	t.Helper()
	frame, err := bridgewire.NewResultFrame(id, result)
	if err != nil {
		t.Fatalf("building result frame: %v", err)
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("executor write: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCallWithoutExecutorFailsFast(t *testing.T) {
	h := newHarness(t, 0)

	start := time.Now()
	_, err := h.bridge.Remote().GetPresentationInfo(context.Background())
	if !errors.Is(err, bridgewire.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("disconnected call took %s, want immediate rejection", elapsed)
	}
	if h.sink.Current() != h.mock {
		t.Error("dispatcher should stay on the mock backend while disconnected")
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	h := newHarness(t, 0)
	conn := h.dial(t)

	waitFor(t, "executor attach", h.bridge.Connected)
	if h.sink.Current() != h.bridge.Remote() {
		t.Fatal("attach must install the remote backend")
	}

	go func() {
		req := readRequest(t, conn)
		if req.Method != "getPresentationInfo" {
			t.Errorf("method = %q, want getPresentationInfo", req.Method)
		}
		if !strings.HasPrefix(req.ID, "req_") {
			t.Errorf("correlation id = %q, want req_ prefix", req.ID)
		}
		reply(t, conn, req.ID, models.PresentationInfo{Title: "Live Deck", SlideCount: 7})
	}()

	info, err := h.bridge.Remote().GetPresentationInfo(context.Background())
	if err != nil {
		t.Fatalf("GetPresentationInfo: %v", err)
	}
	if info.Title != "Live Deck" || info.SlideCount != 7 || info.Mock {
		t.Errorf("info = %+v", info)
	}
}

func TestOutOfOrderRepliesResolveByID(t *testing.T) {
	h := newHarness(t, 0)
	conn := h.dial(t)
	waitFor(t, "executor attach", h.bridge.Connected)

	// Echo each request's title back, but answer the two requests in the
	// opposite order they arrived.
	go func() {
		first := readRequest(t, conn)
		second := readRequest(t, conn)
		for _, req := range []*bridgewire.Frame{second, first} {
			var params struct {
				Title string `json:"title"`
			}
			if err := json.Unmarshal(req.Params, &params); err != nil {
				t.Errorf("decoding params: %v", err)
				return
			}
			reply(t, conn, req.ID, models.SlideRef{SlideID: "s-" + params.Title, Title: params.Title})
		}
	}()

	results := make(chan *models.SlideRef, 2)
	for _, title := range []string{"alpha", "beta"} {
		go func(title string) {
			ref, err := h.bridge.Remote().CreateSlide(context.Background(), title, models.LayoutContent)
			if err != nil {
				t.Errorf("CreateSlide(%s): %v", title, err)
				results <- &models.SlideRef{}
				return
			}
			results <- ref
		}(title)
	}

	for i := 0; i < 2; i++ {
		ref := <-results
		if ref.SlideID != "s-"+ref.Title {
			t.Errorf("reply crossed correlation ids: %+v", ref)
		}
	}
}

func TestRemoteErrorForwardedVerbatim(t *testing.T) {
	h := newHarness(t, 0)
	conn := h.dial(t)
	waitFor(t, "executor attach", h.bridge.Connected)

	go func() {
		req := readRequest(t, conn)
		if err := conn.WriteJSON(bridgewire.NewErrorFrame(req.ID, "slide not found: ghost")); err != nil {
			t.Errorf("executor write: %v", err)
		}
	}()

	_, err := h.bridge.Remote().DeleteSlide(context.Background(), "ghost")
	var remoteErr *bridgewire.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if remoteErr.Error() != "slide not found: ghost" {
		t.Errorf("message not forwarded verbatim: %q", remoteErr.Error())
	}
}

func TestCallTimeoutIsolation(t *testing.T) {
	h := newHarness(t, 80*time.Millisecond)
	conn := h.dial(t)
	waitFor(t, "executor attach", h.bridge.Connected)

	staleID := make(chan string, 1)
	go func() {
		req := readRequest(t, conn)
		staleID <- req.ID // swallowed: never answered inside the window
	}()

	_, err := h.bridge.Remote().GetPresentationInfo(context.Background())
	var timeoutErr *bridgewire.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if timeoutErr.Window != 80*time.Millisecond {
		t.Errorf("reported window = %s", timeoutErr.Window)
	}

	// A reply arriving after the timeout is dropped, and the connection
	// keeps serving subsequent requests.
	reply(t, conn, <-staleID, models.PresentationInfo{Title: "too late"})

	go func() {
		req := readRequest(t, conn)
		reply(t, conn, req.ID, models.PresentationInfo{Title: "on time", SlideCount: 1})
	}()

	info, err := h.bridge.Remote().GetPresentationInfo(context.Background())
	if err != nil {
		t.Fatalf("call after timeout: %v", err)
	}
	if info.Title != "on time" {
		t.Errorf("late reply leaked into a later call: %+v", info)
	}
}

func TestContextCancellationAbandonsCall(t *testing.T) {
	h := newHarness(t, 0)
	conn := h.dial(t)
	waitFor(t, "executor attach", h.bridge.Connected)

	go readRequest(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := h.bridge.Remote().GetPresentationInfo(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDisconnectFailsInFlightAndRearmsMock(t *testing.T) {
	h := newHarness(t, 0)
	conn := h.dial(t)
	waitFor(t, "executor attach", h.bridge.Connected)

	errs := make(chan error, 1)
	go func() {
		_, err := h.bridge.Remote().GetPresentationInfo(context.Background())
		errs <- err
	}()

	// Wait for the request to hit the wire, then drop the socket.
	readRequest(t, conn)
	_ = conn.Close()

	select {
	case err := <-errs:
		var lostErr *bridgewire.ConnectionLostError
		if !errors.As(err, &lostErr) {
			t.Fatalf("err = %v, want ConnectionLostError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call should fail on disconnect, not wait for the timeout")
	}

	waitFor(t, "detach", func() bool { return !h.bridge.Connected() })
	waitFor(t, "mock re-arm", func() bool { return h.sink.Current() == h.mock })
}

func TestNewConnectionEvictsPrevious(t *testing.T) {
	h := newHarness(t, 0)
	first := h.dial(t)
	waitFor(t, "first executor attach", h.bridge.Connected)

	second := h.dial(t)

	// The evicted side sees a policy-violation close with the supersede
	// reason.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("evicted read err = %v, want CloseError", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
	}
	if !strings.Contains(closeErr.Text, "superseded") {
		t.Errorf("close reason = %q", closeErr.Text)
	}

	// The newer connection serves calls as the one and only executor.
	go func() {
		req := readRequest(t, second)
		reply(t, second, req.ID, models.PresentationInfo{Title: "Second Tab", SlideCount: 2})
	}()

	info, err := h.bridge.Remote().GetPresentationInfo(context.Background())
	if err != nil {
		t.Fatalf("call via new executor: %v", err)
	}
	if info.Title != "Second Tab" {
		t.Errorf("info = %+v", info)
	}
	if !h.bridge.Connected() {
		t.Error("bridge should still report connected after eviction")
	}
}

func TestExecutorEventsReachTheEmitter(t *testing.T) {
	h := newHarness(t, 0)

	notifications := make(chan events.Event, 4)
	unsubscribe := h.emitter.Subscribe(func(ev events.Event) {
		if ev.Name == EventExecutorNotification {
			notifications <- ev
		}
	})
	defer unsubscribe()

	conn := h.dial(t)
	waitFor(t, "executor attach", h.bridge.Connected)

	frame, err := bridgewire.NewEventFrame("presentation_changed", map[string]any{"method": "createSlide"})
	if err != nil {
		t.Fatalf("building event frame: %v", err)
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("executor write: %v", err)
	}

	select {
	case ev := <-notifications:
		received, ok := ev.Data.(*bridgewire.Frame)
		if !ok {
			t.Fatalf("notification payload = %T, want *bridgewire.Frame", ev.Data)
		}
		if received.Event != "presentation_changed" {
			t.Errorf("event name = %q", received.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("executor event never reached the emitter")
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	h := newHarness(t, 0)
	conn := h.dial(t)
	waitFor(t, "executor attach", h.bridge.Connected)

	// Garbage and untagged frames must not kill the connection.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("executor write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"x"}`)); err != nil {
		t.Fatalf("executor write: %v", err)
	}

	go func() {
		req := readRequest(t, conn)
		reply(t, conn, req.ID, models.PresentationInfo{Title: "still alive", SlideCount: 1})
	}()

	info, err := h.bridge.Remote().GetPresentationInfo(context.Background())
	if err != nil {
		t.Fatalf("call after malformed frames: %v", err)
	}
	if info.Title != "still alive" {
		t.Errorf("info = %+v", info)
	}
}
