package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loonghao/ppt-kit/internal/markdown"
	"github.com/loonghao/ppt-kit/internal/models"
	"github.com/loonghao/ppt-kit/internal/ops"
)

// Input ceilings from the tool contracts.
const (
	MaxTitleLen    = 200
	MaxMarkdownLen = 100000
	MaxCodeLen     = 50000
	MaxMermaidLen  = 20000

	DefaultListLimit = 20
	MaxListLimit     = 100

	// MaxResponseChars caps the serialized size of a generate result. Going
	// over triggers the truncation policy, not an error.
	MaxResponseChars = 25000
)

// Tool names.
const (
	ToolCreateSlide       = "create_slide"
	ToolAddContent        = "add_content"
	ToolGetInfo           = "get_presentation_info"
	ToolGenerateSlides    = "generate_slides_from_markdown"
	ToolAddCodeBlock      = "add_code_block"
	ToolAddMermaidDiagram = "add_mermaid_diagram"
	ToolListSlides        = "list_slides"
	ToolDeleteSlide       = "delete_slide"
)

func layoutEnum() []string {
	layouts := models.SlideLayouts()
	out := make([]string, len(layouts))
	for i, l := range layouts {
		out[i] = string(l)
	}
	return out
}

func responseFormatField() Field {
	return Field{
		Name:          "response_format",
		Type:          FieldString,
		Description:   "Rendering of the text response: canonical JSON or a short markdown summary",
		Enum:          []string{"json", "markdown"},
		DefaultString: "json",
		HasDefaultStr: true,
	}
}

// RegisterAll populates the dispatcher with the fixed tool catalogue. Called
// exactly once at process start.
func RegisterAll(d *Dispatcher) error {
	catalogue := []struct {
		def     Definition
		handler Handler
	}{
		{createSlideDef(), handleCreateSlide},
		{addContentDef(), handleAddContent},
		{getInfoDef(), handleGetInfo},
		{generateSlidesDef(), handleGenerateSlides},
		{addCodeBlockDef(), handleAddCodeBlock},
		{addMermaidDef(), handleAddMermaid},
		{listSlidesDef(), handleListSlides},
		{deleteSlideDef(), handleDeleteSlide},
	}
	for _, entry := range catalogue {
		if err := d.Register(entry.def, entry.handler); err != nil {
			return err
		}
	}
	return nil
}

// --- create_slide ---

func createSlideDef() Definition {
	return Definition{
		Name:        ToolCreateSlide,
		Description: "Create a new slide with a title and an optional layout",
		Fields: []Field{
			{Name: "title", Type: FieldString, Description: "Slide title", Required: true, MinLen: 1, MaxLen: MaxTitleLen},
			{Name: "layout", Type: FieldString, Description: "Slide layout", Enum: layoutEnum(), DefaultString: string(models.LayoutContent), HasDefaultStr: true},
			responseFormatField(),
		},
	}
}

func handleCreateSlide(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	title := args.String("title", "")
	layout := models.SlideLayout(args.String("layout", string(models.LayoutContent)))

	ref, err := backend.CreateSlide(ctx, title, layout)
	if err != nil {
		return nil, "", err
	}
	summary := fmt.Sprintf("Created slide **%s** (id `%s`, layout `%s`)", ref.Title, ref.SlideID, ref.Layout)
	return ref, summary, nil
}

// --- add_content ---

func addContentDef() Definition {
	return Definition{
		Name:        ToolAddContent,
		Description: "Add a text, code or image block to an existing slide",
		Fields: []Field{
			{Name: "slide_id", Type: FieldString, Description: "Target slide id", Required: true, MinLen: 1},
			{Name: "content", Type: FieldString, Description: "Block content (text, code, or image URL)", Required: true, MinLen: 1},
			{Name: "content_type", Type: FieldString, Description: "Kind of block to add", Required: true, Enum: []string{"text", "code", "image"}},
			{Name: "position", Type: FieldObject, Description: "Optional placement rectangle in points", ObjectProps: map[string]string{
				"x":      "Left edge",
				"y":      "Top edge",
				"width":  "Width",
				"height": "Height",
			}},
			responseFormatField(),
		},
	}
}

func handleAddContent(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	slideID := args.String("slide_id", "")
	content := args.String("content", "")
	contentType := models.ContentType(args.String("content_type", ""))

	var position *models.Position
	if obj := args.Object("position"); obj != nil {
		position = &models.Position{
			X:      objNumber(obj, "x"),
			Y:      objNumber(obj, "y"),
			Width:  objNumber(obj, "width"),
			Height: objNumber(obj, "height"),
		}
	}

	ref, err := backend.AddContent(ctx, slideID, content, contentType, position)
	if err != nil {
		return nil, "", err
	}
	summary := fmt.Sprintf("Added a %s block to slide `%s`", ref.BlockType, ref.SlideID)
	return ref, summary, nil
}

func objNumber(obj map[string]any, key string) float64 {
	if f, ok := asFloat(obj[key]); ok {
		return f
	}
	return 0
}

// --- get_presentation_info ---

func getInfoDef() Definition {
	return Definition{
		Name:        ToolGetInfo,
		Description: "Get information about the open presentation",
		Fields:      []Field{responseFormatField()},
		Annotations: Annotations{ReadOnly: true, Idempotent: true},
	}
}

func handleGetInfo(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	info, err := backend.GetPresentationInfo(ctx)
	if err != nil {
		return nil, "", err
	}
	summary := fmt.Sprintf("**%s** — %d slide(s)", info.Title, info.SlideCount)
	if info.Mock {
		summary += " _(mock data, no live document)_"
	}
	return info, summary, nil
}

// --- generate_slides_from_markdown ---

func generateSlidesDef() Definition {
	return Definition{
		Name:        ToolGenerateSlides,
		Description: "Generate a sequence of slides from a markdown document (headings split slides)",
		Fields: []Field{
			{Name: "markdown", Type: FieldString, Description: "Markdown source", Required: true, MinLen: 1, MaxLen: MaxMarkdownLen},
			responseFormatField(),
		},
	}
}

func handleGenerateSlides(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	slides := markdown.Parse(args.String("markdown", ""))

	result, err := backend.GenerateSlides(ctx, slides)
	if err != nil {
		return nil, "", err
	}
	applyTruncationPolicy(result)

	summary := fmt.Sprintf("Generated %d slide(s) from markdown", result.SlideCount)
	if result.Truncated {
		summary += fmt.Sprintf(" — response truncated to %d slide(s)", len(result.Slides))
	}
	return result, summary, nil
}

// applyTruncationPolicy halves the reported slide list when the serialized
// result would blow past the response ceiling. Policy, not error: the slides
// were still created, the response just stops enumerating all of them.
func applyTruncationPolicy(result *models.GenerateResult) {
	raw, err := json.Marshal(result)
	if err != nil || len(raw) <= MaxResponseChars {
		return
	}
	keep := (len(result.Slides) + 1) / 2
	result.Slides = result.Slides[:keep]
	result.Truncated = true
	result.Message = fmt.Sprintf(
		"Response truncated: showing %d of %d generated slides to stay under %d characters",
		keep, result.SlideCount, MaxResponseChars,
	)
}

// --- add_code_block ---

func addCodeBlockDef() Definition {
	return Definition{
		Name:        ToolAddCodeBlock,
		Description: "Add a syntax-tagged code block to a slide",
		Fields: []Field{
			{Name: "slide_id", Type: FieldString, Description: "Target slide id", Required: true, MinLen: 1},
			{Name: "code", Type: FieldString, Description: "Code to display", Required: true, MinLen: 1, MaxLen: MaxCodeLen},
			{Name: "language", Type: FieldString, Description: "Language tag for highlighting", Required: true, MinLen: 1},
			responseFormatField(),
		},
	}
}

func handleAddCodeBlock(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	ref, err := backend.AddCodeBlock(ctx, args.String("slide_id", ""), args.String("code", ""), args.String("language", ""))
	if err != nil {
		return nil, "", err
	}
	return ref, fmt.Sprintf("Added a code block to slide `%s`", ref.SlideID), nil
}

// --- add_mermaid_diagram ---

func addMermaidDef() Definition {
	return Definition{
		Name:        ToolAddMermaidDiagram,
		Description: "Add a mermaid diagram to a slide",
		Fields: []Field{
			{Name: "slide_id", Type: FieldString, Description: "Target slide id", Required: true, MinLen: 1},
			{Name: "mermaid_code", Type: FieldString, Description: "Mermaid diagram source", Required: true, MinLen: 1, MaxLen: MaxMermaidLen},
			responseFormatField(),
		},
	}
}

func handleAddMermaid(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	ref, err := backend.AddMermaidDiagram(ctx, args.String("slide_id", ""), args.String("mermaid_code", ""))
	if err != nil {
		return nil, "", err
	}
	return ref, fmt.Sprintf("Added a mermaid diagram to slide `%s`", ref.SlideID), nil
}

// --- list_slides ---

func listSlidesDef() Definition {
	return Definition{
		Name:        ToolListSlides,
		Description: "List slides in the presentation, paginated",
		Fields: []Field{
			{Name: "limit", Type: FieldNumber, Description: "Maximum slides to return", Min: floatPtr(1), Max: floatPtr(MaxListLimit), DefaultNumber: floatPtr(DefaultListLimit)},
			{Name: "offset", Type: FieldNumber, Description: "Slides to skip", Min: floatPtr(0), DefaultNumber: floatPtr(0)},
			responseFormatField(),
		},
		Annotations: Annotations{ReadOnly: true, Idempotent: true},
	}
}

func handleListSlides(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	page, err := backend.ListSlides(ctx, args.Int("limit", DefaultListLimit), args.Int("offset", 0))
	if err != nil {
		return nil, "", err
	}
	summary := fmt.Sprintf("Listing %d of %d slide(s)", len(page.Slides), page.Total)
	for _, s := range page.Slides {
		summary += fmt.Sprintf("\n- `%s` %s (%s, %d block(s))", s.ID, s.Title, s.Layout, s.BlockCount)
	}
	return page, summary, nil
}

// --- delete_slide ---

func deleteSlideDef() Definition {
	return Definition{
		Name:        ToolDeleteSlide,
		Description: "Delete a slide by id. Deleting an id that is already gone is not an error.",
		Fields: []Field{
			{Name: "slide_id", Type: FieldString, Description: "Slide id to delete", Required: true, MinLen: 1},
			responseFormatField(),
		},
		Annotations: Annotations{Destructive: true, Idempotent: true},
	}
}

func handleDeleteSlide(ctx context.Context, backend ops.Operations, args Args) (any, string, error) {
	result, err := backend.DeleteSlide(ctx, args.String("slide_id", ""))
	if err != nil {
		return nil, "", err
	}
	if result.Deleted {
		return result, fmt.Sprintf("Deleted slide `%s`", result.SlideID), nil
	}
	return result, fmt.Sprintf("Slide `%s` was already gone", result.SlideID), nil
}
