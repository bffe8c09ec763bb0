package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fieldops-portal/internal/application/service"
	"github.com/garyjia/fieldops-portal/internal/completion"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/garyjia/fieldops-portal/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Error codes returned alongside non-2xx responses
const (
	CodeInvalidRequest       = "invalid_request"
	CodeValidation           = "validation_failed"
	CodeNotFound             = "not_found"
	CodeRequiresConfirmation = "requires_confirmation"
	CodeSessionClosed        = "session_closed"
	CodeUpstream             = "portal_unavailable"
	CodeInternal             = "internal_error"
)

// HealthFunc reports overall health and per-component detail
type HealthFunc func(ctx context.Context) (bool, interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	sessions service.SessionService
	sheets   *export.ExpenseSheetWriter
	health   HealthFunc
	logger   Logger
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(sessions service.SessionService, sheets *export.ExpenseSheetWriter, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		sessions: sessions,
		sheets:   sheets,
		health:   health,
		logger:   logger,
		now:      time.Now,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// SessionResponse is the editable view of an open session
type SessionResponse struct {
	ID            string               `json:"id"`
	State         string               `json:"state"`
	Editable      bool                 `json:"editable"`
	WorkItem      *entity.WorkItem     `json:"work_item"`
	LiaisonID     string               `json:"liaison_id"`
	SubmissionID  string               `json:"submission_id,omitempty"`
	MissingRecord bool                 `json:"missing_record"`
	Notes         string               `json:"notes"`
	Expenses      []entity.Expense     `json:"expenses"`
	Attachments   []AttachmentResponse `json:"attachments"`
	OpenedAt      string               `json:"opened_at"`
}

// AttachmentResponse is one registry entry
type AttachmentResponse struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Kind                 string `json:"kind"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	ServerID             string `json:"server_id,omitempty"`
	Display              string `json:"display,omitempty"`
}

// SubmitResponse describes a successful submit
type SubmitResponse struct {
	SubmissionID      string   `json:"submission_id"`
	Created           bool     `json:"created"`
	CoercedExpenseIDs []string `json:"coerced_expense_ids,omitempty"`
}

// OpenSessionRequest is the body of POST /api/sessions
type OpenSessionRequest struct {
	WorkItemID string `json:"work_item_id" binding:"required"`
	LiaisonID  string `json:"liaison_id"`
}

// NotesRequest is the body of PUT /api/sessions/:id/notes
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ExpenseRequest carries the fields to set on an expense row; absent fields are kept
type ExpenseRequest struct {
	Description *string `json:"description"`
	Amount      *string `json:"amount"`
}

// ManualAttachmentRequest is the body of POST /api/sessions/:id/attachments/manual
type ManualAttachmentRequest struct {
	Name string `json:"name"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, detail := true, interface{}(nil)
	if h.health != nil {
		healthy, detail = h.health(c.Request.Context())
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  h.now().UTC().Format(time.RFC3339),
		Components: detail,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{
		Success: healthy,
		Data:    response,
	})
}

// OpenSession handles POST /api/sessions
func (h *Handlers) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "work_item_id is required")
		return
	}

	session, err := h.sessions.Open(c.Request.Context(), req.WorkItemID, req.LiaisonID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toSessionResponse(session),
	})
}

// GetSession handles GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	h.withSession(c, func(s *completion.Session) (int, interface{}, error) {
		return http.StatusOK, toSessionResponse(s), nil
	})
}

// DiscardSession handles DELETE /api/sessions/:id
func (h *Handlers) DiscardSession(c *gin.Context) {
	if err := h.sessions.Discard(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// UpdateNotes handles PUT /api/sessions/:id/notes
func (h *Handlers) UpdateNotes(c *gin.Context) {
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	h.withSession(c, func(s *completion.Session) (int, interface{}, error) {
		if err := s.SetNotes(req.Notes); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toSessionResponse(s), nil
	})
}

// AddExpense handles POST /api/sessions/:id/expenses.
// A body is optional; without one a blank row is appended.
func (h *Handlers) AddExpense(c *gin.Context) {
	var req ExpenseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body")
			return
		}
	}

	h.withEditableSession(c, func(s *completion.Session) (int, interface{}, error) {
		row := s.Ledger().Add()
		if err := applyExpense(s.Ledger(), row.ID, req); err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, findExpense(s.Ledger(), row.ID), nil
	})
}

// UpdateExpense handles PATCH /api/sessions/:id/expenses/:expenseId
func (h *Handlers) UpdateExpense(c *gin.Context) {
	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	expenseID := c.Param("expenseId")
	h.withEditableSession(c, func(s *completion.Session) (int, interface{}, error) {
		if err := applyExpense(s.Ledger(), expenseID, req); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, findExpense(s.Ledger(), expenseID), nil
	})
}

// RemoveExpense handles DELETE /api/sessions/:id/expenses/:expenseId
func (h *Handlers) RemoveExpense(c *gin.Context) {
	expenseID := c.Param("expenseId")
	h.withEditableSession(c, func(s *completion.Session) (int, interface{}, error) {
		if err := s.Ledger().Remove(expenseID); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, expenseRows(s.Ledger()), nil
	})
}

// UploadAttachment handles POST /api/sessions/:id/attachments/file (multipart field "file")
func (h *Handlers) UploadAttachment(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Error:   fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit),
				Code:    CodeInvalidRequest,
			})
			return
		}
		h.badRequest(c, "multipart field \"file\" is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	added, err := h.sessions.StageFile(c.Request.Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toAttachmentResponse(added),
	})
}

// AddManualAttachment handles POST /api/sessions/:id/attachments/manual
func (h *Handlers) AddManualAttachment(c *gin.Context) {
	var req ManualAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	h.withEditableSession(c, func(s *completion.Session) (int, interface{}, error) {
		added, err := s.Registry().AddManual(req.Name)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toAttachmentResponse(added), nil
	})
}

// RemoveAttachment handles DELETE /api/sessions/:id/attachments/:attachmentId.
// Stored attachments need ?confirm=true.
func (h *Handlers) RemoveAttachment(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	attachmentID := c.Param("attachmentId")

	h.withSession(c, func(s *completion.Session) (int, interface{}, error) {
		if err := s.RemoveAttachment(c.Request.Context(), attachmentID, confirmed); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toAttachmentResponses(s.Registry().Items()), nil
	})
}

// Submit handles POST /api/sessions/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	result, err := h.sessions.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: SubmitResponse{
			SubmissionID:      result.SubmissionID,
			Created:           result.Created,
			CoercedExpenseIDs: result.CoercedExpenseIDs,
		},
	})
}

// RefreshRemote handles GET /api/sessions/:id/remote. The stored submission is
// returned as the portal has it; local edits are untouched.
func (h *Handlers) RefreshRemote(c *gin.Context) {
	h.withSession(c, func(s *completion.Session) (int, interface{}, error) {
		sub, err := s.Refresh(c.Request.Context())
		if err != nil {
			return 0, nil, err
		}
		if sub == nil {
			return 0, nil, &completion.NotFoundError{Resource: "submission", ID: s.WorkItem().ID}
		}
		return http.StatusOK, sub, nil
	})
}

// ExportExpenses handles GET /api/sessions/:id/expenses.xlsx
func (h *Handlers) ExportExpenses(c *gin.Context) {
	var (
		buf      bytes.Buffer
		fileName string
	)
	err := h.sessions.WithSession(c.Request.Context(), c.Param("id"), func(s *completion.Session) error {
		_, err := h.sheets.Write(&buf, export.SheetData{
			WorkItem:     s.WorkItem(),
			SubmissionID: s.SubmissionID(),
			LiaisonID:    s.LiaisonID(),
			Notes:        s.Notes(),
			Expenses:     s.Ledger().Rows(),
			Attachments:  s.Registry().Items(),
			GeneratedAt:  h.now(),
		})
		fileName = fmt.Sprintf("work-item-%s-expenses.xlsx", s.WorkItem().ID)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListEvents handles GET /api/work-items/:id/events
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := h.sessions.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    events,
	})
}

// withSession runs fn under the session lock and writes its result
func (h *Handlers) withSession(c *gin.Context, fn func(s *completion.Session) (int, interface{}, error)) {
	var (
		status int
		data   interface{}
	)
	err := h.sessions.WithSession(c.Request.Context(), c.Param("id"), func(s *completion.Session) error {
		var err error
		status, data, err = fn(s)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, Response{Success: true, Data: data})
}

// withEditableSession is withSession for ledger and registry edits
func (h *Handlers) withEditableSession(c *gin.Context, fn func(s *completion.Session) (int, interface{}, error)) {
	h.withSession(c, func(s *completion.Session) (int, interface{}, error) {
		if !s.State().IsEditable() {
			return 0, nil, completion.ErrSessionClosed
		}
		return fn(s)
	})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
		Code:    CodeInvalidRequest,
	})
}

// fail maps engine errors onto HTTP statuses
func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
	}
	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
		Code:    code,
	})
}

func classify(err error) (int, string) {
	var (
		validationErr *completion.ValidationError
		notFoundErr   *completion.NotFoundError
		transportErr  *completion.TransportError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, CodeValidation
	case errors.Is(err, completion.ErrConfirmationRequired):
		return http.StatusConflict, CodeRequiresConfirmation
	case errors.Is(err, completion.ErrSessionClosed):
		return http.StatusConflict, CodeSessionClosed
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, completion.ErrExpenseNotFound),
		errors.Is(err, completion.ErrAttachmentNotFound),
		errors.As(err, &notFoundErr):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, CodeUpstream
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func applyExpense(ledger *completion.Ledger, id string, req ExpenseRequest) error {
	if req.Description != nil {
		if err := ledger.Update(id, completion.FieldDescription, *req.Description); err != nil {
			return err
		}
	}
	if req.Amount != nil {
		if err := ledger.Update(id, completion.FieldAmount, *req.Amount); err != nil {
			return err
		}
	}
	if req.Description == nil && req.Amount == nil && findExpense(ledger, id) == nil {
		return completion.ErrExpenseNotFound
	}
	return nil
}

func expenseRows(ledger *completion.Ledger) []entity.Expense {
	rows := ledger.Rows()
	if rows == nil {
		rows = []entity.Expense{}
	}
	return rows
}

func findExpense(ledger *completion.Ledger, id string) *entity.Expense {
	for _, row := range ledger.Rows() {
		if row.ID == id {
			row := row
			return &row
		}
	}
	return nil
}

func toSessionResponse(s *completion.Session) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		State:         s.State().String(),
		Editable:      s.State().IsEditable(),
		WorkItem:      s.WorkItem(),
		LiaisonID:     s.LiaisonID(),
		SubmissionID:  s.SubmissionID(),
		MissingRecord: s.MissingRecord(),
		Notes:         s.Notes(),
		Expenses:      expenseRows(s.Ledger()),
		Attachments:   toAttachmentResponses(s.Registry().Items()),
		OpenedAt:      s.OpenedAt.UTC().Format(time.RFC3339),
	}
}

func toAttachmentResponses(items []entity.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toAttachmentResponse(item))
	}
	return out
}

func toAttachmentResponse(a entity.Attachment) AttachmentResponse {
	resp := AttachmentResponse{
		ID:   a.AttachmentID(),
		Name: a.Name(),
		Kind: string(a.Kind()),
	}
	if remote, ok := a.(*entity.RemoteAttachment); ok {
		resp.RequiresConfirmation = true
		resp.ServerID = remote.ServerID
		resp.Display = string(remote.Display)
	}
	return resp
}
