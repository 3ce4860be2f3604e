package ops

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/loonghao/ppt-kit/internal/models"
)

// LocalOperations executes operations against an in-memory deck. It is the
// backend the standalone executor serves, standing in for the Office.js
// surface during development and in tests. All access goes through a single
// RWMutex; slides keep insertion order.
type LocalOperations struct {
	mu     sync.RWMutex
	title  string
	slides []*models.Slide
}

// NewLocalOperations creates an empty deck with the given presentation title.
func NewLocalOperations(title string) *LocalOperations {
	if title == "" {
		title = "Untitled Presentation"
	}
	return &LocalOperations{title: title}
}

// findLocked returns the slide with the given id, or nil. Caller holds mu.
func (l *LocalOperations) findLocked(slideID string) *models.Slide {
	for _, s := range l.slides {
		if s.ID == slideID {
			return s
		}
	}
	return nil
}

func (l *LocalOperations) GetPresentationInfo(ctx context.Context) (*models.PresentationInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	info := &models.PresentationInfo{Title: l.title, SlideCount: len(l.slides)}
	if len(l.slides) > 0 {
		info.ActiveSlideID = l.slides[len(l.slides)-1].ID
	}
	return info, nil
}

func (l *LocalOperations) CreateSlide(ctx context.Context, title string, layout models.SlideLayout) (*models.SlideRef, error) {
	if layout == "" {
		layout = models.LayoutContent
	}
	slide := &models.Slide{
		ID:     uuid.NewString(),
		Title:  title,
		Layout: layout,
	}

	l.mu.Lock()
	l.slides = append(l.slides, slide)
	index := len(l.slides) - 1
	l.mu.Unlock()

	return &models.SlideRef{SlideID: slide.ID, Index: index, Title: title, Layout: layout}, nil
}

func (l *LocalOperations) DeleteSlide(ctx context.Context, slideID string) (*models.DeleteResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.slides {
		if s.ID != slideID {
			continue
		}
		if len(l.slides) == 1 {
			return nil, fmt.Errorf("cannot delete the last slide")
		}
		l.slides = append(l.slides[:i], l.slides[i+1:]...)
		return &models.DeleteResult{SlideID: slideID, Deleted: true}, nil
	}
	// Already gone. Repeating a delete is not an error.
	return &models.DeleteResult{SlideID: slideID, Deleted: false}, nil
}

func (l *LocalOperations) addBlock(slideID string, block models.ContentBlock) (*models.ContentRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slide := l.findLocked(slideID)
	if slide == nil {
		return nil, fmt.Errorf("slide not found: %s", slideID)
	}
	slide.Blocks = append(slide.Blocks, block)
	return &models.ContentRef{SlideID: slideID, BlockType: block.Type}, nil
}

func (l *LocalOperations) AddContent(ctx context.Context, slideID, content string, contentType models.ContentType, position *models.Position) (*models.ContentRef, error) {
	switch contentType {
	case models.ContentText, models.ContentCode, models.ContentImage:
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
	return l.addBlock(slideID, models.ContentBlock{Type: contentType, Content: content})
}

func (l *LocalOperations) AddCodeBlock(ctx context.Context, slideID, code, language string) (*models.ContentRef, error) {
	return l.addBlock(slideID, models.ContentBlock{
		Type:     models.ContentCode,
		Content:  code,
		Language: language,
	})
}

func (l *LocalOperations) AddMermaidDiagram(ctx context.Context, slideID, code string) (*models.ContentRef, error) {
	return l.addBlock(slideID, models.ContentBlock{Type: models.ContentDiagram, Content: code})
}

func (l *LocalOperations) ListSlides(ctx context.Context, limit, offset int) (*models.SlidePage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.slides)
	page := &models.SlidePage{Total: total, Limit: limit, Offset: offset}
	if offset >= total {
		return page, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	for _, s := range l.slides[offset:end] {
		page.Slides = append(page.Slides, models.SlideSummary{
			ID:         s.ID,
			Title:      s.Title,
			Layout:     s.Layout,
			BlockCount: len(s.Blocks),
		})
	}
	return page, nil
}

func (l *LocalOperations) GenerateSlides(ctx context.Context, slides []models.Slide) (*models.GenerateResult, error) {
	created := make([]models.Slide, 0, len(slides))

	l.mu.Lock()
	for _, s := range slides {
		slide := s
		slide.ID = uuid.NewString()
		l.slides = append(l.slides, &slide)
		created = append(created, slide)
	}
	l.mu.Unlock()

	return &models.GenerateResult{SlideCount: len(created), Slides: created}, nil
}
