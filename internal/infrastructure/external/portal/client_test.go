package portal

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/garyjia/fieldops-portal/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"
)

// recordedRequest is what the fake portal saw
type recordedRequest struct {
	method        string
	path          string
	authorization string
	fields        map[string][]string
	files         []recordedFile
}

type recordedFile struct {
	field       string
	name        string
	contentType string
	content     string
}

type route struct {
	status int
	body   string
}

type fakePortal struct {
	routes   map[string]route
	requests []recordedRequest
}

func (p *fakePortal) handle(ctx *fasthttp.RequestCtx) {
	rec := recordedRequest{
		method:        string(ctx.Method()),
		path:          string(ctx.Path()),
		authorization: string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)),
	}

	if form, err := ctx.MultipartForm(); err == nil {
		rec.fields = form.Value
		for field, headers := range form.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					continue
				}
				content, _ := io.ReadAll(f)
				_ = f.Close()
				rec.files = append(rec.files, recordedFile{
					field:       field,
					name:        fh.Filename,
					contentType: fh.Header.Get("Content-Type"),
					content:     string(content),
				})
			}
		}
	}
	p.requests = append(p.requests, rec)

	r, ok := p.routes[rec.method+" "+rec.path]
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"success": false, "message": "not found"}`)
		return
	}
	ctx.SetStatusCode(r.status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(r.body)
}

func (p *fakePortal) last(t *testing.T) recordedRequest {
	t.Helper()
	require.NotEmpty(t, p.requests)
	return p.requests[len(p.requests)-1]
}

func newTestClient(t *testing.T, routes map[string]route) (*Client, *fakePortal, *storage.LocalStagingStorage) {
	t.Helper()

	fake := &fakePortal{routes: routes}
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: fake.handle}
	go func() {
		_ = server.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
	})

	staging := storage.NewLocalStagingStorage(t.TempDir(), zap.NewNop())
	client := NewClient(
		Config{BaseURL: "http://portal.test/", Token: "secret"},
		staging,
		zap.NewNop(),
		WithDial(func(addr string) (net.Conn, error) {
			return ln.Dial()
		}),
	)
	return client, fake, staging
}

func TestClient_GetWorkItem(t *testing.T) {
	client, fake, _ := newTestClient(t, map[string]route{
		"GET /api/work-items/42": {200, `{"success": true, "data": {
			"id": 42, "type": "job_order", "status": "InProgress",
			"description": "Replace pump", "service_type": "Plumbing"}}`},
	})

	item, err := client.GetWorkItem(context.Background(), "42")

	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "42", item.ID)
	assert.Equal(t, entity.WorkItemKindJobOrder, item.Kind)
	assert.Equal(t, entity.WorkItemStatusInProgress, item.Status)
	assert.Equal(t, "Replace pump", item.Description)
	assert.Equal(t, "Plumbing", item.ServiceLabel)
	assert.Equal(t, "Bearer secret", fake.last(t).authorization)
}

func TestClient_GetWorkItemNotFound(t *testing.T) {
	client, _, _ := newTestClient(t, nil)

	item, err := client.GetWorkItem(context.Background(), "404")

	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestClient_EnvelopeFailure(t *testing.T) {
	tests := []struct {
		name    string
		route   route
		message string
	}{
		{"explicit false", route{200, `{"success": false, "message": "work item locked"}`}, "work item locked"},
		{"missing flag", route{200, `{"data": {"id": 1}}`}, "request was not successful"},
		{"server error", route{500, `{"success": false, "message": "db down"}`}, "db down"},
		{"html error page", route{502, `<html>bad gateway</html>`}, "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, map[string]route{"GET /api/work-items/1": tt.route})

			_, err := client.GetWorkItem(context.Background(), "1")

			require.Error(t, err)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestClient_ListForWorkItem(t *testing.T) {
	t.Run("bare array keeps order and key order", func(t *testing.T) {
		client, _, _ := newTestClient(t, map[string]route{
			"GET /api/work-items/7/submissions": {200, `{"success": true, "data": [
				{"id": 901, "zeta": {}, "alpha": {}},
				{"id": 900}
			]}`},
		})

		list, err := client.ListForWorkItem(context.Background(), "7")

		require.NoError(t, err)
		require.Len(t, list, 2)
		id, _ := list[0].Get("id")
		assert.Equal(t, "901", stringOf(id))
		assert.Equal(t, []string{"id", "zeta", "alpha"}, list[0].Keys)
	})

	t.Run("wrapped list", func(t *testing.T) {
		client, _, _ := newTestClient(t, map[string]route{
			"GET /api/work-items/7/submissions": {200, `{"success": true, "data": {"submissions": [{"id": 900}]}}`},
		})

		list, err := client.ListForWorkItem(context.Background(), "7")

		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("null data", func(t *testing.T) {
		client, _, _ := newTestClient(t, map[string]route{
			"GET /api/work-items/7/submissions": {200, `{"success": true, "data": null}`},
		})

		list, err := client.ListForWorkItem(context.Background(), "7")

		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestClient_GetByID(t *testing.T) {
	client, _, _ := newTestClient(t, map[string]route{
		"GET /api/submissions/900": {200, `{"success": true, "data": {
			"id": 900, "expenses_data": [{"description": "Fuel", "amount": "50"}]}}`},
	})

	raw, err := client.GetByID(context.Background(), "900")
	require.NoError(t, err)
	require.NotNil(t, raw)
	expenses, ok := raw.Get("expenses_data")
	assert.True(t, ok)
	assert.Len(t, expenses, 1)

	missing, err := client.GetByID(context.Background(), "901")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_Create(t *testing.T) {
	client, fake, staging := newTestClient(t, map[string]route{
		"POST /api/submissions": {201, `{"success": true, "data": {"id": 1001}}`},
	})
	ref, err := staging.Stage(context.Background(), "session-1", "site.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)

	id, err := client.Create(context.Background(), &port.OutboundRequest{
		WorkItemID:   "42",
		LiaisonID:    "L-1",
		Notes:        "Replaced the pump",
		ExpensesJSON: []byte(`[{"description":"Travel","amount":150}]`),
		Files:        []port.FilePart{{FileName: "site.jpg", MimeType: "image/jpeg", SourceRef: ref}},
		ManualNames:  []string{"Paper receipt"},
	})

	require.NoError(t, err)
	assert.Equal(t, "1001", id)

	sent := fake.last(t)
	assert.Equal(t, "POST", sent.method)
	assert.Equal(t, []string{"42"}, sent.fields["work_item_id"])
	assert.Equal(t, []string{"L-1"}, sent.fields["liaison_id"])
	assert.Equal(t, []string{"Replaced the pump"}, sent.fields["notes"])
	assert.Equal(t, []string{`[{"description":"Travel","amount":150}]`}, sent.fields["expenses"])
	assert.Equal(t, []string{`["Paper receipt"]`}, sent.fields["manual_attachments"])
	assert.Equal(t, []string{`[]`}, sent.fields["existing_attachment_ids"])
	assert.NotContains(t, sent.fields, "submission_id")

	require.Len(t, sent.files, 1)
	assert.Equal(t, "files[]", sent.files[0].field)
	assert.Equal(t, "site.jpg", sent.files[0].name)
	assert.Equal(t, "image/jpeg", sent.files[0].contentType)
	assert.Equal(t, "jpeg-bytes", sent.files[0].content)
}

func TestClient_Update(t *testing.T) {
	client, fake, _ := newTestClient(t, map[string]route{
		"PUT /api/submissions/900": {200, `{"success": true, "data": null}`},
	})

	id, err := client.Update(context.Background(), &port.OutboundRequest{
		WorkItemID:            "7",
		ExpensesJSON:          []byte(`[{"description":"Fuel","amount":50}]`),
		RetainedAttachmentIDs: []string{"6"},
		SubmissionID:          "900",
	})

	require.NoError(t, err)
	assert.Equal(t, "900", id)

	sent := fake.last(t)
	assert.Equal(t, []string{"900"}, sent.fields["submission_id"])
	assert.Equal(t, []string{`["6"]`}, sent.fields["existing_attachment_ids"])
	assert.Empty(t, sent.files)
}

func TestClient_UpdateRequiresSubmissionID(t *testing.T) {
	client, fake, _ := newTestClient(t, nil)

	_, err := client.Update(context.Background(), &port.OutboundRequest{WorkItemID: "7"})

	assert.Error(t, err)
	assert.Empty(t, fake.requests)
}

func TestClient_CreateMissingStagedFile(t *testing.T) {
	client, fake, _ := newTestClient(t, nil)

	_, err := client.Create(context.Background(), &port.OutboundRequest{
		WorkItemID: "42",
		Files:      []port.FilePart{{FileName: "gone.jpg", SourceRef: "session-1/gone.jpg"}},
	})

	assert.Error(t, err)
	assert.Empty(t, fake.requests)
}

func TestClient_Delete(t *testing.T) {
	client, fake, _ := newTestClient(t, map[string]route{
		"DELETE /api/attachments/5": {200, `{"success": true}`},
		"DELETE /api/attachments/6": {500, `{"success": false, "message": "storage unavailable"}`},
	})

	require.NoError(t, client.Delete(context.Background(), "5"))
	assert.Equal(t, "DELETE", fake.last(t).method)

	assert.NoError(t, client.Delete(context.Background(), "404"))

	err := client.Delete(context.Background(), "6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage unavailable")
}

func TestClient_CanceledContext(t *testing.T) {
	client, fake, _ := newTestClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetWorkItem(ctx, "42")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.requests)
}

func stringOf(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	s, _ := v.(string)
	return s
}
