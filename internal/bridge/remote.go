package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loonghao/ppt-kit/internal/models"
	"github.com/loonghao/ppt-kit/internal/ops"
)

// Wire method names, matched by the executor's dispatch table.
const (
	methodGetInfo        = "getPresentationInfo"
	methodCreateSlide    = "createSlide"
	methodDeleteSlide    = "deleteSlide"
	methodAddContent     = "addContent"
	methodAddCodeBlock   = "addCodeBlock"
	methodAddMermaid     = "addMermaidDiagram"
	methodListSlides     = "listSlides"
	methodGenerateSlides = "generateSlides"
)

// RemoteOperations makes bridged calls look like local ones: each operation
// becomes one correlated request to the attached executor, and the reply (or
// timeout, or connection failure) becomes the return value.
type RemoteOperations struct {
	bridge *Bridge
}

var _ ops.Operations = (*RemoteOperations)(nil)

// call relays the request and decodes the executor's result into out.
func (r *RemoteOperations) call(ctx context.Context, method string, params, out any) error {
	raw, err := r.bridge.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed executor result for %s: %w", method, err)
	}
	return nil
}

func (r *RemoteOperations) GetPresentationInfo(ctx context.Context) (*models.PresentationInfo, error) {
	var info models.PresentationInfo
	if err := r.call(ctx, methodGetInfo, map[string]any{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *RemoteOperations) CreateSlide(ctx context.Context, title string, layout models.SlideLayout) (*models.SlideRef, error) {
	var ref models.SlideRef
	params := map[string]any{"title": title, "layout": layout}
	if err := r.call(ctx, methodCreateSlide, params, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *RemoteOperations) DeleteSlide(ctx context.Context, slideID string) (*models.DeleteResult, error) {
	var result models.DeleteResult
	params := map[string]any{"slide_id": slideID}
	if err := r.call(ctx, methodDeleteSlide, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *RemoteOperations) AddContent(ctx context.Context, slideID, content string, contentType models.ContentType, position *models.Position) (*models.ContentRef, error) {
	var ref models.ContentRef
	params := map[string]any{
		"slide_id":     slideID,
		"content":      content,
		"content_type": contentType,
	}
	if position != nil {
		params["position"] = position
	}
	if err := r.call(ctx, methodAddContent, params, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *RemoteOperations) AddCodeBlock(ctx context.Context, slideID, code, language string) (*models.ContentRef, error) {
	var ref models.ContentRef
	params := map[string]any{"slide_id": slideID, "code": code, "language": language}
	if err := r.call(ctx, methodAddCodeBlock, params, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *RemoteOperations) AddMermaidDiagram(ctx context.Context, slideID, code string) (*models.ContentRef, error) {
	var ref models.ContentRef
	params := map[string]any{"slide_id": slideID, "mermaid_code": code}
	if err := r.call(ctx, methodAddMermaid, params, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *RemoteOperations) ListSlides(ctx context.Context, limit, offset int) (*models.SlidePage, error) {
	var page models.SlidePage
	params := map[string]any{"limit": limit, "offset": offset}
	if err := r.call(ctx, methodListSlides, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *RemoteOperations) GenerateSlides(ctx context.Context, slides []models.Slide) (*models.GenerateResult, error) {
	var result models.GenerateResult
	params := map[string]any{"slides": slides}
	if err := r.call(ctx, methodGenerateSlides, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
