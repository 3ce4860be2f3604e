package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loonghao/ppt-kit/internal/models"
	"github.com/loonghao/ppt-kit/internal/ops"
)

// OperationsHandler adapts an ops.Operations backend into the Handler the
// lifecycle manager serves relayed requests with. In the original system
// this dispatch lives in the browser tab and calls Office.js; the standalone
// executor drives the in-memory Local backend instead.
func OperationsHandler(backend ops.Operations) Handler {
	return func(ctx context.Context, method string, params json.RawMessage) (any, error) {
		switch method {
		case "getPresentationInfo":
			return backend.GetPresentationInfo(ctx)

		case "createSlide":
			var p struct {
				Title  string             `json:"title"`
				Layout models.SlideLayout `json:"layout"`
			}
			if err := decodeParams(method, params, &p); err != nil {
				return nil, err
			}
			return backend.CreateSlide(ctx, p.Title, p.Layout)

		case "deleteSlide":
			var p struct {
				SlideID string `json:"slide_id"`
			}
			if err := decodeParams(method, params, &p); err != nil {
				return nil, err
			}
			return backend.DeleteSlide(ctx, p.SlideID)

		case "addContent":
			var p struct {
				SlideID     string             `json:"slide_id"`
				Content     string             `json:"content"`
				ContentType models.ContentType `json:"content_type"`
				Position    *models.Position   `json:"position"`
			}
			if err := decodeParams(method, params, &p); err != nil {
				return nil, err
			}
			return backend.AddContent(ctx, p.SlideID, p.Content, p.ContentType, p.Position)

		case "addCodeBlock":
			var p struct {
				SlideID  string `json:"slide_id"`
				Code     string `json:"code"`
				Language string `json:"language"`
			}
			if err := decodeParams(method, params, &p); err != nil {
				return nil, err
			}
			return backend.AddCodeBlock(ctx, p.SlideID, p.Code, p.Language)

		case "addMermaidDiagram":
			var p struct {
				SlideID string `json:"slide_id"`
				Code    string `json:"mermaid_code"`
			}
			if err := decodeParams(method, params, &p); err != nil {
				return nil, err
			}
			return backend.AddMermaidDiagram(ctx, p.SlideID, p.Code)

		case "listSlides":
			var p struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
			}
			if err := decodeParams(method, params, &p); err != nil {
				return nil, err
			}
			return backend.ListSlides(ctx, p.Limit, p.Offset)

		case "generateSlides":
			var p struct {
				Slides []models.Slide `json:"slides"`
			}
			if err := decodeParams(method, params, &p); err != nil {
				return nil, err
			}
			return backend.GenerateSlides(ctx, p.Slides)
		}

		return nil, fmt.Errorf("unknown method: %s", method)
	}
}

func decodeParams(method string, raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed params for %s: %v", method, err)
	}
	return nil
}
