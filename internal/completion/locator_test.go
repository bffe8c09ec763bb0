package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLocator(provider *MockSubmissionProvider) *Locator {
	logger := zap.NewNop()
	return NewLocator(provider, NewNormalizer(logger), logger)
}

func TestLocator_NoSubmissions(t *testing.T) {
	provider := &MockSubmissionProvider{}
	provider.On("ListForWorkItem", mock.Anything, "7").Return([]*entity.RawSubmission{}, nil)

	sub, err := newTestLocator(provider).Locate(context.Background(), "7")

	require.NoError(t, err)
	assert.Nil(t, sub)
	provider.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestLocator_UsesNewestEntry(t *testing.T) {
	provider := &MockSubmissionProvider{}
	provider.On("ListForWorkItem", mock.Anything, "7").Return([]*entity.RawSubmission{
		decodeRaw(t, `{"id": 901}`),
		decodeRaw(t, `{"id": 900}`),
	}, nil)
	provider.On("GetByID", mock.Anything, "901").
		Return(decodeRaw(t, `{"id": 901, "notes": "latest", "expenses": [], "attachments": []}`), nil).Once()

	sub, err := newTestLocator(provider).Locate(context.Background(), "7")

	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "901", sub.ID)
	assert.Equal(t, "7", sub.WorkItemID)
	assert.Equal(t, "latest", sub.Notes)
	provider.AssertExpectations(t)
}

func TestLocator_MissingIdentifierAborts(t *testing.T) {
	provider := &MockSubmissionProvider{}
	provider.On("ListForWorkItem", mock.Anything, "7").
		Return([]*entity.RawSubmission{decodeRaw(t, `{"notes": "no id"}`)}, nil)

	sub, err := newTestLocator(provider).Locate(context.Background(), "7")

	require.NoError(t, err)
	assert.Nil(t, sub)
	provider.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestLocator_DetailFailureFallsBackToSummary(t *testing.T) {
	provider := &MockSubmissionProvider{}
	provider.On("ListForWorkItem", mock.Anything, "7").Return([]*entity.RawSubmission{
		decodeRaw(t, `{"id": "900", "expenses": [{"description": "Fuel", "amount": "50"}], "attachments": []}`),
	}, nil)
	provider.On("GetByID", mock.Anything, "900").Return(nil, errors.New("503 from portal"))

	sub, err := newTestLocator(provider).Locate(context.Background(), "7")

	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "900", sub.ID)
	require.Len(t, sub.Expenses, 1)
	assert.Equal(t, "Fuel", sub.Expenses[0].Description)
	provider.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestLocator_DetailMissingFieldsIsNotRefetched(t *testing.T) {
	provider := &MockSubmissionProvider{}
	provider.On("ListForWorkItem", mock.Anything, "7").Return([]*entity.RawSubmission{
		decodeRaw(t, `{"id": "900"}`),
	}, nil)
	provider.On("GetByID", mock.Anything, "900").Return(decodeRaw(t, `{"id": "900", "notes": "partial"}`), nil)

	sub, err := newTestLocator(provider).Locate(context.Background(), "7")

	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "partial", sub.Notes)
	assert.Empty(t, sub.Expenses)
	assert.Empty(t, sub.Attachments)
	provider.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestLocator_ListErrorDegradesToNotFound(t *testing.T) {
	provider := &MockSubmissionProvider{}
	provider.On("ListForWorkItem", mock.Anything, "7").Return(nil, errors.New("timeout"))

	sub, err := newTestLocator(provider).Locate(context.Background(), "7")

	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestLocator_CancellationIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &MockSubmissionProvider{}
	provider.On("ListForWorkItem", mock.Anything, "7").Return(nil, context.Canceled)

	sub, err := newTestLocator(provider).Locate(ctx, "7")

	assert.Nil(t, sub)
	assert.ErrorIs(t, err, context.Canceled)
}
