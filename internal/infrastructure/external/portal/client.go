package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Config holds portal API settings
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the field operations portal API.
// It implements the work item, submission and attachment providers.
type Client struct {
	http    *fasthttp.Client
	config  Config
	baseURL string
	storage port.StagingStorage
	logger  *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithDial replaces the dialer of the underlying fasthttp client
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) {
		c.http.Dial = dial
	}
}

// NewClient creates a new portal client. storage resolves the source
// references of staged files when a submission is sent.
func NewClient(config Config, storage port.StagingStorage, logger *zap.Logger, opts ...Option) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	c := &Client{
		http: &fasthttp.Client{
			Name:         "fieldops-portal",
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		storage: storage,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the wrapper every portal response comes in
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-successful portal response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request was not successful"
	}
	return fmt.Sprintf("portal %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// NotFound reports a 404 from the portal
func (e *APIError) NotFound() bool {
	return e.StatusCode == fasthttp.StatusNotFound
}

// call is one outbound request
type call struct {
	method      string
	path        string
	contentType string
	body        []byte
}

// do sends the call and returns the envelope data. A response without an
// explicit success flag set to true is returned as *APIError.
func (c *Client) do(ctx context.Context, in call) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + in.path)
	req.Header.SetMethod(in.method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.config.Token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.config.Token)
	}
	if in.body != nil {
		req.Header.SetContentType(in.contentType)
		req.SetBodyRaw(in.body)
	}

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("portal %s %s: %w", in.method, in.path, err)
	}

	status := resp.StatusCode()
	c.logger.Debug("Portal request completed",
		zap.String("method", in.method),
		zap.String("path", in.path),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))

	var env envelope
	body := bytes.TrimSpace(resp.Body())
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			if status >= fasthttp.StatusBadRequest {
				return nil, &APIError{Method: in.method, Path: in.path, StatusCode: status}
			}
			return nil, fmt.Errorf("portal %s %s: failed to decode response: %w", in.method, in.path, err)
		}
	}

	if status >= fasthttp.StatusBadRequest || env.Success == nil || !*env.Success {
		return nil, &APIError{
			Method:     in.method,
			Path:       in.path,
			StatusCode: status,
			Message:    env.Message,
		}
	}

	// The response buffer is released on return.
	return append(json.RawMessage(nil), env.Data...), nil
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, call{method: fasthttp.MethodGet, path: path})
}

func resourcePath(format string, ids ...string) string {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}

// flexString decodes identifiers sent either as JSON strings or numbers
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(data)
	return nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

var (
	_ port.WorkItemProvider   = (*Client)(nil)
	_ port.SubmissionProvider = (*Client)(nil)
	_ port.AttachmentProvider = (*Client)(nil)
)
