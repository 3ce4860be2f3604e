package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/loonghao/ppt-kit/internal/models"
	"github.com/loonghao/ppt-kit/internal/ops"
)

func newTestDispatcher(t *testing.T, backend ops.Operations) *Dispatcher {
	t.Helper()
	d := NewDispatcher(backend, nil)
	if err := RegisterAll(d); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return d
}

func TestCatalogueIsComplete(t *testing.T) {
	d := newTestDispatcher(t, ops.NewMockOperations())

	want := []string{
		ToolCreateSlide, ToolAddContent, ToolGetInfo, ToolGenerateSlides,
		ToolAddCodeBlock, ToolAddMermaidDiagram, ToolListSlides, ToolDeleteSlide,
	}
	defs := d.ListTools()
	if len(defs) != len(want) {
		t.Fatalf("catalogue has %d tools, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("tool %d = %s, want %s", i, defs[i].Name, name)
		}
		if defs[i].field("response_format") == nil {
			t.Errorf("tool %s is missing response_format", name)
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	d := newTestDispatcher(t, ops.NewMockOperations())
	err := d.Register(createSlideDef(), handleCreateSlide)
	if err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestCallUnknownTool(t *testing.T) {
	d := newTestDispatcher(t, ops.NewMockOperations())
	_, err := d.Call(context.Background(), "explode_slide", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestCallValidation(t *testing.T) {
	d := newTestDispatcher(t, ops.NewMockOperations())
	ctx := context.Background()

	cases := []struct {
		name  string
		tool  string
		args  map[string]any
		field string
	}{
		{"missing required title", ToolCreateSlide, map[string]any{}, "title"},
		{"title too long", ToolCreateSlide, map[string]any{"title": strings.Repeat("x", MaxTitleLen+1)}, "title"},
		{"bad layout enum", ToolCreateSlide, map[string]any{"title": "ok", "layout": "diagonal"}, "layout"},
		{"title wrong type", ToolCreateSlide, map[string]any{"title": 42}, "title"},
		{"bad content type", ToolAddContent, map[string]any{"slide_id": "s", "content": "c", "content_type": "video"}, "content_type"},
		{"position not object", ToolAddContent, map[string]any{"slide_id": "s", "content": "c", "content_type": "text", "position": "here"}, "position"},
		{"limit too large", ToolListSlides, map[string]any{"limit": float64(101)}, "limit"},
		{"offset negative", ToolListSlides, map[string]any{"offset": float64(-1)}, "offset"},
		{"mermaid too long", ToolAddMermaidDiagram, map[string]any{"slide_id": "s", "mermaid_code": strings.Repeat("x", MaxMermaidLen+1)}, "mermaid_code"},
		{"bad response format", ToolGetInfo, map[string]any{"response_format": "yaml"}, "response_format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Call(ctx, tc.tool, tc.args)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("failing field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestCallSuccessEnvelope(t *testing.T) {
	d := newTestDispatcher(t, ops.NewMockOperations())

	result, err := d.Call(context.Background(), ToolCreateSlide, map[string]any{"title": "Intro"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if result.Structured["success"] != true {
		t.Errorf("success flag missing: %+v", result.Structured)
	}
	if result.Structured["title"] != "Intro" {
		t.Errorf("canonical fields not flattened: %+v", result.Structured)
	}
	if !strings.Contains(result.Text, `"success": true`) {
		t.Errorf("default rendering should be canonical JSON, got %q", result.Text)
	}
}

func TestCallMarkdownRendering(t *testing.T) {
	d := newTestDispatcher(t, ops.NewMockOperations())

	result, err := d.Call(context.Background(), ToolGetInfo, map[string]any{"response_format": "markdown"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(result.Text, "Mock Presentation") {
		t.Errorf("markdown rendering = %q", result.Text)
	}
	if strings.Contains(result.Text, `"success"`) {
		t.Errorf("markdown rendering should not be JSON: %q", result.Text)
	}
	// The rendering choice never changes the canonical value.
	if result.Structured["success"] != true || result.Structured["slide_count"] != float64(3) {
		t.Errorf("structured content affected by response_format: %+v", result.Structured)
	}
}

// failingOps reports a fixed application error for deletes.
type failingOps struct {
	ops.Operations
}

func (f *failingOps) DeleteSlide(ctx context.Context, slideID string) (*models.DeleteResult, error) {
	return nil, fmt.Errorf("slide not found: %s", slideID)
}

func TestCallForwardsBackendErrors(t *testing.T) {
	d := newTestDispatcher(t, &failingOps{Operations: ops.NewMockOperations()})

	result, err := d.Call(context.Background(), ToolDeleteSlide, map[string]any{"slide_id": "nope"})
	if err != nil {
		t.Fatalf("backend failures must not surface as call errors: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result")
	}
	if result.Structured["success"] != false {
		t.Errorf("success flag = %v, want false", result.Structured["success"])
	}
	if result.Structured["error"] != "slide not found: nope" {
		t.Errorf("error message not forwarded verbatim: %v", result.Structured["error"])
	}
}

// blockingOps signals entry into CreateSlide and then parks until released,
// to observe backend capture semantics during an in-flight call.
type blockingOps struct {
	ops.Operations
	entered chan struct{}
	release chan struct{}
}

func (b *blockingOps) CreateSlide(ctx context.Context, title string, layout models.SlideLayout) (*models.SlideRef, error) {
	close(b.entered)
	<-b.release
	return &models.SlideRef{SlideID: "from-old-backend", Title: title, Layout: layout}, nil
}

func TestSetOperationsDoesNotAffectInFlightCalls(t *testing.T) {
	old := &blockingOps{
		Operations: ops.NewMockOperations(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	d := newTestDispatcher(t, old)

	type callResult struct {
		result *Result
		err    error
	}
	done := make(chan callResult, 1)
	go func() {
		r, err := d.Call(context.Background(), ToolCreateSlide, map[string]any{"title": "T"})
		done <- callResult{r, err}
	}()

	// Swap only once the first call is parked inside the old backend, so the
	// call has provably captured its implementation already.
	<-old.entered
	d.SetOperations(ops.NewLocalOperations("new"))
	close(old.release)

	out := <-done
	if out.err != nil {
		t.Fatalf("Call: %v", out.err)
	}
	if out.result.Structured["slide_id"] != "from-old-backend" {
		t.Errorf("in-flight call used the swapped backend: %+v", out.result.Structured)
	}

	// Calls issued after the swap see the new backend.
	after, err := d.Call(context.Background(), ToolCreateSlide, map[string]any{"title": "U"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if after.Structured["slide_id"] == "from-old-backend" {
		t.Error("post-swap call used the old backend")
	}
}

func TestGenerateSlidesTruncationPolicy(t *testing.T) {
	d := newTestDispatcher(t, ops.NewLocalOperations(""))

	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "# Slide %d\n\n%s\n\n", i, strings.Repeat("w ", 300))
	}

	result, err := d.Call(context.Background(), ToolGenerateSlides, map[string]any{"markdown": sb.String()})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result.Structured)
	}
	if result.Structured["truncated"] != true {
		t.Fatalf("expected truncated flag, got %+v", result.Structured["truncated"])
	}
	slides, ok := result.Structured["slides"].([]any)
	if !ok {
		t.Fatalf("slides missing from structured content")
	}
	if len(slides) > 30 {
		t.Errorf("truncated list has %d slides, want <= 30", len(slides))
	}
	if result.Structured["slide_count"] != float64(60) {
		t.Errorf("slide_count = %v, want 60 (creation count, not listing count)", result.Structured["slide_count"])
	}

	small, err := d.Call(context.Background(), ToolGenerateSlides, map[string]any{"markdown": "# Tiny\n\nhello"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, present := small.Structured["truncated"]; present {
		t.Errorf("small document should not carry a truncated flag: %+v", small.Structured)
	}
}
