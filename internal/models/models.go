// Package models holds the payload types carried through bridge operations:
// slides, content blocks and the per-operation result shapes. The bridge
// itself treats these as opaque JSON; they are produced and consumed by
// whichever backend executes the operation.
package models

// --- Enumerations ---

// SlideLayout tags how a slide arranges its content.
type SlideLayout string

const (
	LayoutTitle      SlideLayout = "title"
	LayoutContent    SlideLayout = "content"
	LayoutTwoColumn  SlideLayout = "two-column"
	LayoutImageFocus SlideLayout = "image-focus"
	LayoutCodeFocus  SlideLayout = "code-focus"
	LayoutBlank      SlideLayout = "blank"
)

// SlideLayouts lists every valid layout, in the order shown to clients.
func SlideLayouts() []SlideLayout {
	return []SlideLayout{
		LayoutTitle, LayoutContent, LayoutTwoColumn,
		LayoutImageFocus, LayoutCodeFocus, LayoutBlank,
	}
}

// IsValidLayout reports whether s names a known layout.
func IsValidLayout(s string) bool {
	for _, l := range SlideLayouts() {
		if string(l) == s {
			return true
		}
	}
	return false
}

// ContentType tags the kind of payload a content block carries.
type ContentType string

const (
	ContentText    ContentType = "text"
	ContentCode    ContentType = "code"
	ContentImage   ContentType = "image"
	ContentList    ContentType = "list"
	ContentDiagram ContentType = "diagram"
)

// --- Core entities ---

// TextStyle carries optional presentation hints for a text block.
type TextStyle struct {
	FontSize int  `json:"font_size,omitempty"`
	Bold     bool `json:"bold,omitempty"`
	Italic   bool `json:"italic,omitempty"`
}

// ContentBlock is one unit of slide content. Language is only meaningful for
// code blocks; Style only for text blocks.
type ContentBlock struct {
	Type     ContentType `json:"type"`
	Content  string      `json:"content"`
	Language string      `json:"language,omitempty"`
	Style    *TextStyle  `json:"style,omitempty"`
}

// Slide is a single slide with its ordered content blocks.
type Slide struct {
	ID     string         `json:"id,omitempty"`
	Title  string         `json:"title"`
	Layout SlideLayout    `json:"layout"`
	Blocks []ContentBlock `json:"blocks"`
}

// Position is an optional placement rectangle for added content, in points.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// --- Operation results ---

// PresentationInfo describes the open document.
type PresentationInfo struct {
	Title         string `json:"title"`
	SlideCount    int    `json:"slide_count"`
	ActiveSlideID string `json:"active_slide_id,omitempty"`
	Mock          bool   `json:"mock,omitempty"`
}

// SlideRef identifies a slide created or touched by an operation.
type SlideRef struct {
	SlideID string      `json:"slide_id"`
	Index   int         `json:"index"`
	Title   string      `json:"title"`
	Layout  SlideLayout `json:"layout"`
	Mock    bool        `json:"mock,omitempty"`
}

// ContentRef identifies content added to a slide.
type ContentRef struct {
	SlideID   string      `json:"slide_id"`
	BlockType ContentType `json:"block_type"`
	Mock      bool        `json:"mock,omitempty"`
}

// DeleteResult reports a slide deletion. Deleted is false when the id was
// already gone; repeated deletes are not an error.
type DeleteResult struct {
	SlideID string `json:"slide_id"`
	Deleted bool   `json:"deleted"`
	Mock    bool   `json:"mock,omitempty"`
}

// SlideSummary is the list-view projection of a slide.
type SlideSummary struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Layout     SlideLayout `json:"layout"`
	BlockCount int         `json:"block_count"`
}

// SlidePage is one page of the slide listing.
type SlidePage struct {
	Slides []SlideSummary `json:"slides"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Mock   bool           `json:"mock,omitempty"`
}

// GenerateResult reports a markdown-driven batch generation. Truncated and
// Message are only present when the response-size policy cut the list.
type GenerateResult struct {
	SlideCount int     `json:"slide_count"`
	Slides     []Slide `json:"slides"`
	Truncated  bool    `json:"truncated,omitempty"`
	Message    string  `json:"message,omitempty"`
	Mock       bool    `json:"mock,omitempty"`
}
