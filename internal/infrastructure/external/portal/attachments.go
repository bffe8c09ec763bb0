package portal

import (
	"context"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Delete removes a stored attachment. An attachment the portal no longer
// knows is treated as already deleted.
func (c *Client) Delete(ctx context.Context, attachmentID string) error {
	_, err := c.do(ctx, call{
		method: fasthttp.MethodDelete,
		path:   resourcePath("/api/attachments/%s", attachmentID),
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			c.logger.Info("Attachment already gone", zap.String("attachment_id", attachmentID))
			return nil
		}
		return err
	}
	return nil
}
