// Package ops defines the operation contract the dispatcher calls through,
// together with its execution backends. The contract is pure interface: the
// same eight operations exist whether they run against canned mock data, an
// in-process deck, or a remote executor on the far side of the bridge.
package ops

import (
	"context"

	"github.com/loonghao/ppt-kit/internal/models"
)

// Operations is the fixed contract of document-manipulation calls. The
// dispatcher holds exactly one implementation at a time and swaps it when an
// executor attaches or detaches; in-flight calls keep the implementation they
// captured at invocation time.
type Operations interface {
	// GetPresentationInfo describes the open document.
	GetPresentationInfo(ctx context.Context) (*models.PresentationInfo, error)

	// CreateSlide appends a new slide with the given title and layout.
	CreateSlide(ctx context.Context, title string, layout models.SlideLayout) (*models.SlideRef, error)

	// DeleteSlide removes a slide by id. Deleting an id that is already gone
	// succeeds with Deleted=false.
	DeleteSlide(ctx context.Context, slideID string) (*models.DeleteResult, error)

	// AddContent adds a text, code or image block to a slide. position is
	// optional placement.
	AddContent(ctx context.Context, slideID, content string, contentType models.ContentType, position *models.Position) (*models.ContentRef, error)

	// AddCodeBlock adds a syntax-tagged code block to a slide.
	AddCodeBlock(ctx context.Context, slideID, code, language string) (*models.ContentRef, error)

	// AddMermaidDiagram adds a mermaid diagram block to a slide.
	AddMermaidDiagram(ctx context.Context, slideID, code string) (*models.ContentRef, error)

	// ListSlides returns one page of slide summaries.
	ListSlides(ctx context.Context, limit, offset int) (*models.SlidePage, error)

	// GenerateSlides creates a batch of slides, typically parsed from
	// markdown, and returns them with their assigned ids.
	GenerateSlides(ctx context.Context, slides []models.Slide) (*models.GenerateResult, error)
}
