package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// list payloads are either a bare array or wrapped under one of these keys
var listWrapperKeys = []string{"submissions", "items", "data"}

type savedSubmission struct {
	ID           flexString `json:"id"`
	SubmissionID flexString `json:"submission_id"`
}

// ListForWorkItem returns the work item's submissions as the portal orders
// them, newest first.
func (c *Client) ListForWorkItem(ctx context.Context, workItemID string) ([]*entity.RawSubmission, error) {
	data, err := c.get(ctx, resourcePath("/api/work-items/%s/submissions", workItemID))
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return []*entity.RawSubmission{}, nil
	}

	entries, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode submissions of work item %s: %w", workItemID, err)
	}

	result := make([]*entity.RawSubmission, 0, len(entries))
	for idx, entry := range entries {
		raw, err := entity.DecodeRawSubmission(entry)
		if err != nil {
			c.logger.Warn("Skipping malformed submission summary",
				zap.String("work_item_id", workItemID),
				zap.Int("index", idx),
				zap.Error(err))
			continue
		}
		result = append(result, raw)
	}
	return result, nil
}

// GetByID fetches one submission in full. Returns nil, nil on 404.
func (c *Client) GetByID(ctx context.Context, id string) (*entity.RawSubmission, error) {
	data, err := c.get(ctx, resourcePath("/api/submissions/%s", id))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return nil, nil
		}
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}

	raw, err := entity.DecodeRawSubmission(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	return raw, nil
}

// Create sends a new submission and returns its identifier
func (c *Client) Create(ctx context.Context, req *port.OutboundRequest) (string, error) {
	return c.send(ctx, fasthttp.MethodPost, "/api/submissions", req)
}

// Update replaces the stored submission identified by req.SubmissionID
func (c *Client) Update(ctx context.Context, req *port.OutboundRequest) (string, error) {
	if !req.IsUpdate() {
		return "", fmt.Errorf("update requires a submission id")
	}
	return c.send(ctx, fasthttp.MethodPut, resourcePath("/api/submissions/%s", req.SubmissionID), req)
}

func (c *Client) send(ctx context.Context, method, path string, req *port.OutboundRequest) (string, error) {
	body, contentType, err := c.buildMultipart(ctx, req)
	if err != nil {
		return "", err
	}

	data, err := c.do(ctx, call{
		method:      method,
		path:        path,
		contentType: contentType,
		body:        body,
	})
	if err != nil {
		return "", err
	}

	id := req.SubmissionID
	if !isNull(data) && bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		var saved savedSubmission
		if err := json.Unmarshal(data, &saved); err != nil {
			c.logger.Warn("Could not read saved submission identifier",
				zap.String("path", path),
				zap.Error(err))
		} else if saved.ID != "" {
			id = string(saved.ID)
		} else if saved.SubmissionID != "" {
			id = string(saved.SubmissionID)
		}
	}

	c.logger.Info("Submission saved",
		zap.String("method", method),
		zap.String("work_item_id", req.WorkItemID),
		zap.String("submission_id", id),
		zap.Int("files", len(req.Files)),
		zap.Int("manual_attachments", len(req.ManualNames)),
		zap.Int("retained_attachments", len(req.RetainedAttachmentIDs)))

	return id, nil
}

func decodeList(data json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		for _, key := range listWrapperKeys {
			if inner, ok := wrapper[key]; ok && !isNull(inner) {
				return decodeList(inner)
			}
		}
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
