package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/loonghao/ppt-kit/internal/events"
	"github.com/loonghao/ppt-kit/internal/ops"
)

// ErrUnknownTool is returned when a call names a tool that was never
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// EventToolCalled is emitted after every dispatched call.
const EventToolCalled = "tool_called"

// Handler executes one tool call against the backend captured at dispatch
// time. It returns the canonical structured value and a short markdown
// summary of it; the dispatcher picks which rendering the caller sees.
type Handler func(ctx context.Context, backend ops.Operations, args Args) (structured any, summary string, err error)

// Result is a dispatched call's outcome. Structured always carries the
// canonical value (with a success flag); Text carries the rendering selected
// by the caller's response_format.
type Result struct {
	Structured map[string]any
	Text       string
	IsError    bool
}

type registeredTool struct {
	def     Definition
	handler Handler
}

// Dispatcher owns the tool catalogue and the currently-installed operation
// backend. The catalogue is populated once at startup; the backend is
// hot-swapped by the bridge as the executor attaches and detaches.
type Dispatcher struct {
	mu      sync.RWMutex
	backend ops.Operations

	toolMu sync.RWMutex
	tools  map[string]*registeredTool
	order  []string

	events *events.Emitter
}

// NewDispatcher creates a dispatcher bound to the given backend. emitter may
// be nil when nobody observes tool-call events.
func NewDispatcher(backend ops.Operations, emitter *events.Emitter) *Dispatcher {
	if backend == nil {
		log.Fatal("Dispatcher requires a non-nil initial backend")
	}
	return &Dispatcher{
		backend: backend,
		tools:   make(map[string]*registeredTool),
		events:  emitter,
	}
}

// Register adds a tool to the catalogue. The set is fixed at startup;
// registering a duplicate name is a programming error.
func (d *Dispatcher) Register(def Definition, h Handler) error {
	if def.Name == "" {
		return fmt.Errorf("cannot register a tool with an empty name")
	}
	if h == nil {
		return fmt.Errorf("cannot register tool %s with a nil handler", def.Name)
	}

	d.toolMu.Lock()
	defer d.toolMu.Unlock()

	if _, exists := d.tools[def.Name]; exists {
		return fmt.Errorf("tool %s is already registered", def.Name)
	}
	d.tools[def.Name] = &registeredTool{def: def, handler: h}
	d.order = append(d.order, def.Name)
	log.Debugf("Registered tool: %s", def.Name)
	return nil
}

// ListTools returns every registered definition in registration order.
func (d *Dispatcher) ListTools() []Definition {
	d.toolMu.RLock()
	defer d.toolMu.RUnlock()

	defs := make([]Definition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].def)
	}
	return defs
}

// SetOperations atomically swaps the installed backend. Calls already in
// flight keep the implementation they captured at dispatch time; only calls
// issued afterwards see the new one.
func (d *Dispatcher) SetOperations(backend ops.Operations) {
	if backend == nil {
		log.Fatal("Dispatcher backend must never be nil")
	}
	d.mu.Lock()
	d.backend = backend
	d.mu.Unlock()
}

// Operations returns the currently-installed backend.
func (d *Dispatcher) Operations() ops.Operations {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.backend
}

// Call validates the arguments and dispatches to the tool's handler, making
// exactly one backend call. Unknown tools and validation failures come back
// as Go errors; backend failures come back as an IsError Result with the
// executor's message forwarded verbatim.
func (d *Dispatcher) Call(ctx context.Context, name string, rawArgs map[string]any) (*Result, error) {
	d.toolMu.RLock()
	tool, ok := d.tools[name]
	d.toolMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args, err := tool.def.validate(rawArgs)
	if err != nil {
		return nil, err
	}
	format := args.String("response_format", "json")

	// Capture the backend before anything can suspend so a mid-flight swap
	// cannot hand this call a different implementation halfway through.
	backend := d.Operations()

	structured, summary, err := tool.handler(ctx, backend, args)
	if err != nil {
		log.WithFields(log.Fields{"tool": name, "error": err}).Warn("Tool call failed")
		d.emit(name, false)
		return errorResult(name, format, err), nil
	}

	envelope, err := successEnvelope(structured)
	if err != nil {
		d.emit(name, false)
		return nil, fmt.Errorf("failed to encode %s result: %w", name, err)
	}

	text := summary
	if format != "markdown" {
		text = canonicalJSON(envelope)
	}
	d.emit(name, true)
	return &Result{Structured: envelope, Text: text}, nil
}

func (d *Dispatcher) emit(tool string, success bool) {
	if d.events == nil {
		return
	}
	d.events.Emit(EventToolCalled, map[string]any{"tool": tool, "success": success})
}

// successEnvelope flattens the canonical value into a map and adds the
// success flag every tool response carries.
func successEnvelope(structured any) (map[string]any, error) {
	envelope := map[string]any{"success": true}
	if structured == nil {
		return envelope, nil
	}
	raw, err := json.Marshal(structured)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		envelope[k] = v
	}
	return envelope, nil
}

func errorResult(name, format string, err error) *Result {
	envelope := map[string]any{
		"success": false,
		"error":   err.Error(),
	}
	text := canonicalJSON(envelope)
	if format == "markdown" {
		text = fmt.Sprintf("**%s failed**: %s", name, err.Error())
	}
	return &Result{Structured: envelope, Text: text, IsError: true}
}

func canonicalJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(raw)
}
