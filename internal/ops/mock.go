package ops

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/loonghao/ppt-kit/internal/models"
)

// MockOperations answers every call deterministically without a live
// document. It is the backend installed whenever no executor is attached, and
// the only backend used in stdio mode. Results are flagged Mock so a caller
// can always tell canned data from real document state.
type MockOperations struct {
	counter atomic.Uint64
}

// NewMockOperations returns a fresh mock backend.
func NewMockOperations() *MockOperations {
	return &MockOperations{}
}

func (m *MockOperations) nextID() string {
	return fmt.Sprintf("mock-slide-%d", m.counter.Add(1))
}

func (m *MockOperations) GetPresentationInfo(ctx context.Context) (*models.PresentationInfo, error) {
	return &models.PresentationInfo{
		Title:      "Mock Presentation",
		SlideCount: 3,
		Mock:       true,
	}, nil
}

func (m *MockOperations) CreateSlide(ctx context.Context, title string, layout models.SlideLayout) (*models.SlideRef, error) {
	return &models.SlideRef{
		SlideID: m.nextID(),
		Index:   0,
		Title:   title,
		Layout:  layout,
		Mock:    true,
	}, nil
}

func (m *MockOperations) DeleteSlide(ctx context.Context, slideID string) (*models.DeleteResult, error) {
	return &models.DeleteResult{SlideID: slideID, Deleted: true, Mock: true}, nil
}

func (m *MockOperations) AddContent(ctx context.Context, slideID, content string, contentType models.ContentType, position *models.Position) (*models.ContentRef, error) {
	return &models.ContentRef{SlideID: slideID, BlockType: contentType, Mock: true}, nil
}

func (m *MockOperations) AddCodeBlock(ctx context.Context, slideID, code, language string) (*models.ContentRef, error) {
	return &models.ContentRef{SlideID: slideID, BlockType: models.ContentCode, Mock: true}, nil
}

func (m *MockOperations) AddMermaidDiagram(ctx context.Context, slideID, code string) (*models.ContentRef, error) {
	return &models.ContentRef{SlideID: slideID, BlockType: models.ContentDiagram, Mock: true}, nil
}

func (m *MockOperations) ListSlides(ctx context.Context, limit, offset int) (*models.SlidePage, error) {
	summaries := []models.SlideSummary{
		{ID: "mock-slide-a", Title: "Welcome", Layout: models.LayoutTitle, BlockCount: 0},
		{ID: "mock-slide-b", Title: "Overview", Layout: models.LayoutContent, BlockCount: 2},
		{ID: "mock-slide-c", Title: "Thanks", Layout: models.LayoutContent, BlockCount: 1},
	}
	total := len(summaries)
	if offset >= total {
		summaries = nil
	} else {
		end := offset + limit
		if end > total {
			end = total
		}
		summaries = summaries[offset:end]
	}
	return &models.SlidePage{
		Slides: summaries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Mock:   true,
	}, nil
}

func (m *MockOperations) GenerateSlides(ctx context.Context, slides []models.Slide) (*models.GenerateResult, error) {
	out := make([]models.Slide, len(slides))
	copy(out, slides)
	for i := range out {
		out[i].ID = m.nextID()
	}
	return &models.GenerateResult{SlideCount: len(out), Slides: out, Mock: true}, nil
}
