package portal

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	json "github.com/goccy/go-json"
)

// Multipart field names of the create and update endpoints
const (
	formWorkItemID     = "work_item_id"
	formLiaisonID      = "liaison_id"
	formNotes          = "notes"
	formExpenses       = "expenses"
	formFiles          = "files[]"
	formManualNames    = "manual_attachments"
	formRetainedIDs    = "existing_attachment_ids"
	formSubmissionID   = "submission_id"
	defaultPartMIME    = "application/octet-stream"
	emptyJSONArrayText = "[]"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildMultipart renders the request as multipart/form-data. Staged file
// bytes are read from storage by their source reference.
func (c *Client) buildMultipart(ctx context.Context, req *port.OutboundRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct {
		name  string
		value string
	}{
		{formWorkItemID, req.WorkItemID},
		{formLiaisonID, req.LiaisonID},
		{formNotes, req.Notes},
		{formExpenses, expensesText(req.ExpensesJSON)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	manual, err := jsonList(req.ManualNames)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField(formManualNames, manual); err != nil {
		return nil, "", fmt.Errorf("failed to write field %s: %w", formManualNames, err)
	}

	retained, err := jsonList(req.RetainedAttachmentIDs)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField(formRetainedIDs, retained); err != nil {
		return nil, "", fmt.Errorf("failed to write field %s: %w", formRetainedIDs, err)
	}

	if req.IsUpdate() {
		if err := w.WriteField(formSubmissionID, req.SubmissionID); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", formSubmissionID, err)
		}
	}

	for _, file := range req.Files {
		if err := c.writeFilePart(ctx, w, file); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) writeFilePart(ctx context.Context, w *multipart.Writer, file port.FilePart) error {
	if c.storage == nil {
		return fmt.Errorf("no staging storage configured for file %s", file.FileName)
	}

	content, err := c.storage.Read(ctx, file.SourceRef)
	if err != nil {
		return fmt.Errorf("failed to read staged file %s: %w", file.FileName, err)
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = defaultPartMIME
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(formFiles), quoteEscaper.Replace(file.FileName)))
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create part for %s: %w", file.FileName, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write part for %s: %w", file.FileName, err)
	}
	return nil
}

func expensesText(data []byte) string {
	if len(bytes.TrimSpace(data)) == 0 {
		return emptyJSONArrayText
	}
	return string(data)
}

func jsonList(values []string) (string, error) {
	if len(values) == 0 {
		return emptyJSONArrayText, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}
