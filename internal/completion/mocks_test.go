package completion

import (
	"context"
	"testing"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWorkItemProvider struct {
	getFunc func(ctx context.Context, id string) (*entity.WorkItem, error)
}

func (m *mockWorkItemProvider) GetWorkItem(ctx context.Context, id string) (*entity.WorkItem, error) {
	return m.getFunc(ctx, id)
}

func workItemReturning(item *entity.WorkItem) *mockWorkItemProvider {
	return &mockWorkItemProvider{
		getFunc: func(ctx context.Context, id string) (*entity.WorkItem, error) {
			return item, nil
		},
	}
}

// MockSubmissionProvider mocks port.SubmissionProvider
type MockSubmissionProvider struct {
	mock.Mock
}

func (m *MockSubmissionProvider) ListForWorkItem(ctx context.Context, workItemID string) ([]*entity.RawSubmission, error) {
	args := m.Called(ctx, workItemID)
	list, _ := args.Get(0).([]*entity.RawSubmission)
	return list, args.Error(1)
}

func (m *MockSubmissionProvider) GetByID(ctx context.Context, id string) (*entity.RawSubmission, error) {
	args := m.Called(ctx, id)
	raw, _ := args.Get(0).(*entity.RawSubmission)
	return raw, args.Error(1)
}

func (m *MockSubmissionProvider) Create(ctx context.Context, req *port.OutboundRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockSubmissionProvider) Update(ctx context.Context, req *port.OutboundRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockAttachmentProvider mocks port.AttachmentProvider
type MockAttachmentProvider struct {
	mock.Mock
}

func (m *MockAttachmentProvider) Delete(ctx context.Context, attachmentID string) error {
	args := m.Called(ctx, attachmentID)
	return args.Error(0)
}

type memoryEventRepo struct {
	events []*entity.ReconcileEvent
}

func (r *memoryEventRepo) Create(ctx context.Context, event *entity.ReconcileEvent) error {
	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

func (r *memoryEventRepo) ListByWorkItem(ctx context.Context, workItemID string, limit int) ([]*entity.ReconcileEvent, error) {
	var out []*entity.ReconcileEvent
	for _, e := range r.events {
		if e.WorkItemID == workItemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryEventRepo) types() []string {
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func decodeRaw(t *testing.T, payload string) *entity.RawSubmission {
	t.Helper()
	raw, err := entity.DecodeRawSubmission([]byte(payload))
	require.NoError(t, err)
	return raw
}
