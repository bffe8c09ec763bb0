package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/garyjia/fieldops-portal/internal/domain/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type engineFixture struct {
	submissions *MockSubmissionProvider
	attachments *MockAttachmentProvider
	events      *memoryEventRepo
	engine      *Engine
}

func newEngineFixture(item *entity.WorkItem) *engineFixture {
	f := &engineFixture{
		submissions: &MockSubmissionProvider{},
		attachments: &MockAttachmentProvider{},
		events:      &memoryEventRepo{},
	}
	f.engine = NewEngine(workItemReturning(item), f.submissions, f.attachments, f.events, EngineConfig{}, zap.NewNop())
	return f
}

func TestSession_NewDraftIsCreated(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(&entity.WorkItem{ID: "42", Status: entity.ParseWorkItemStatus("InProgress")})

	var sent *port.OutboundRequest
	f.submissions.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*port.OutboundRequest) }).
		Return("1001", nil).Once()

	session, err := f.engine.Open(ctx, "42", "L-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDrafting, session.State())
	assert.False(t, session.MissingRecord())
	f.submissions.AssertNotCalled(t, "ListForWorkItem", mock.Anything, mock.Anything)

	row := session.Ledger().Add()
	require.NoError(t, session.Ledger().Update(row.ID, FieldDescription, "Travel"))
	require.NoError(t, session.Ledger().Update(row.ID, FieldAmount, "150.00"))
	session.Registry().AddFromFile("staged/site.jpg", "site.jpg", "image/jpeg")

	result, err := session.Submit(ctx)
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.False(t, sent.IsUpdate())
	assert.Empty(t, sent.SubmissionID)
	assert.JSONEq(t, `[{"description":"Travel","amount":150}]`, string(sent.ExpensesJSON))
	require.Len(t, sent.Files, 1)
	assert.Equal(t, "site.jpg", sent.Files[0].FileName)

	assert.Equal(t, "1001", result.SubmissionID)
	assert.True(t, result.Created)
	assert.Equal(t, []string{"staged/site.jpg"}, result.StagedRefs)
	assert.Equal(t, lifecycle.StateSubmitted, session.State())
	assert.Equal(t, 0, session.Ledger().Len())
	assert.Empty(t, session.Registry().Items())
	f.submissions.AssertExpectations(t)
}

func TestSession_SubmittedItemIsEditedInPlace(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(&entity.WorkItem{ID: "7", Status: entity.WorkItemStatusSubmitted})

	f.submissions.On("ListForWorkItem", mock.Anything, "7").
		Return([]*entity.RawSubmission{decodeRaw(t, `{"id": 900}`)}, nil)
	f.submissions.On("GetByID", mock.Anything, "900").Return(decodeRaw(t, `{
		"id": 900,
		"notes": "first visit",
		"expenses_data": [{"description": "Fuel", "amount": "50"}],
		"attachments": [{"id": 5, "file_name": "a.pdf"}]
	}`), nil).Once()
	f.attachments.On("Delete", mock.Anything, "5").Return(nil).Once()

	var sent *port.OutboundRequest
	f.submissions.On("Update", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*port.OutboundRequest) }).
		Return("900", nil).Once()

	session, err := f.engine.Open(ctx, "7", "L-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateEditing, session.State())
	assert.Equal(t, "900", session.SubmissionID())
	assert.Equal(t, "first visit", session.Notes())

	rows := session.Ledger().Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Fuel", rows[0].Description)
	assert.Equal(t, "50", rows[0].Amount)

	items := session.Registry().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a.pdf", items[0].Name())
	attachmentID := items[0].AttachmentID()
	assert.True(t, session.Registry().RequiresConfirmation(attachmentID))

	err = session.RemoveAttachment(ctx, attachmentID, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Len(t, session.Registry().Items(), 1)

	require.NoError(t, session.RemoveAttachment(ctx, attachmentID, true))
	assert.Empty(t, session.Registry().Items())

	result, err := session.Submit(ctx)
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.True(t, sent.IsUpdate())
	assert.Equal(t, "900", sent.SubmissionID)
	assert.Empty(t, sent.RetainedAttachmentIDs)
	assert.JSONEq(t, `[{"description":"Fuel","amount":50}]`, string(sent.ExpensesJSON))
	assert.Equal(t, "first visit", sent.Notes)

	assert.False(t, result.Created)
	assert.Equal(t, "900", result.SubmissionID)
	assert.Equal(t, lifecycle.StateSubmitted, session.State())

	f.submissions.AssertExpectations(t)
	f.attachments.AssertExpectations(t)
	assert.Equal(t, []string{entity.EventOpened, entity.EventLocated, entity.EventSubmitted}, f.events.types())
}

func TestSession_SubmittedWithoutRecordDrafts(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(&entity.WorkItem{ID: "7", Status: entity.WorkItemStatusSubmitted})
	f.submissions.On("ListForWorkItem", mock.Anything, "7").Return([]*entity.RawSubmission{}, nil)

	session, err := f.engine.Open(ctx, "7", "L-1")

	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDrafting, session.State())
	assert.True(t, session.MissingRecord())
	assert.Empty(t, session.SubmissionID())
	assert.Contains(t, f.events.types(), entity.EventSubmittedWithoutRecord)

	req, err := session.Compose()
	require.NoError(t, err)
	assert.False(t, req.IsUpdate())
}

func TestSession_SubmitFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(&entity.WorkItem{ID: "42", Status: entity.WorkItemStatusPending})
	f.submissions.On("Create", mock.Anything, mock.Anything).Return("", errors.New("502 bad gateway")).Once()
	f.submissions.On("Create", mock.Anything, mock.Anything).Return("1002", nil).Once()

	session, err := f.engine.Open(ctx, "42", "L-1")
	require.NoError(t, err)
	require.NoError(t, session.SetNotes("done"))
	row := session.Ledger().Add()
	require.NoError(t, session.Ledger().Update(row.ID, FieldDescription, "Parts"))
	require.NoError(t, session.Ledger().Update(row.ID, FieldAmount, "12"))

	_, err = session.Submit(ctx)
	require.Error(t, err)
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.Equal(t, lifecycle.StateDrafting, session.State())
	assert.Equal(t, "done", session.Notes())
	assert.Equal(t, 1, session.Ledger().Len())
	assert.Contains(t, f.events.types(), entity.EventSubmitFailed)

	result, err := session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1002", result.SubmissionID)
	f.submissions.AssertExpectations(t)
}

func TestSession_ValidationStopsBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(&entity.WorkItem{ID: "42", Status: entity.WorkItemStatusPending})

	session, err := f.engine.Open(ctx, "42", "L-1")
	require.NoError(t, err)
	row := session.Ledger().Add()
	require.NoError(t, session.Ledger().Update(row.ID, FieldDescription, "Parts"))

	_, err = session.Submit(ctx)

	assert.ErrorIs(t, err, ErrIncompleteExpense)
	assert.Equal(t, lifecycle.StateDrafting, session.State())
	f.submissions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSession_CoercedAmountIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(&entity.WorkItem{ID: "42", Status: entity.WorkItemStatusPending})
	f.submissions.On("Create", mock.Anything, mock.Anything).Return("1003", nil).Once()

	session, err := f.engine.Open(ctx, "42", "")
	require.NoError(t, err)
	row := session.Ledger().Add()
	require.NoError(t, session.Ledger().Update(row.ID, FieldDescription, "Lunch"))
	require.NoError(t, session.Ledger().Update(row.ID, FieldAmount, "about ten"))

	result, err := session.Submit(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{row.ID}, result.CoercedExpenseIDs)
	assert.Contains(t, f.events.types(), entity.EventAmountCoerced)
}

func TestSession_ClosedAfterSubmit(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(&entity.WorkItem{ID: "42", Status: entity.WorkItemStatusPending})
	f.submissions.On("Create", mock.Anything, mock.Anything).Return("1004", nil).Once()

	session, err := f.engine.Open(ctx, "42", "")
	require.NoError(t, err)
	_, err = session.Submit(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, session.SetNotes("late"), ErrSessionClosed)
	assert.ErrorIs(t, session.RemoveAttachment(ctx, "any", true), ErrSessionClosed)
	_, err = session.Submit(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestEngine_OpenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("work item fetch failure", func(t *testing.T) {
		provider := &mockWorkItemProvider{
			getFunc: func(ctx context.Context, id string) (*entity.WorkItem, error) {
				return nil, errors.New("dial tcp: refused")
			},
		}
		engine := NewEngine(provider, &MockSubmissionProvider{}, &MockAttachmentProvider{}, nil, EngineConfig{}, zap.NewNop())

		_, err := engine.Open(ctx, "42", "")
		var transportErr *TransportError
		assert.True(t, errors.As(err, &transportErr))
	})

	t.Run("work item missing", func(t *testing.T) {
		engine := NewEngine(workItemReturning(nil), &MockSubmissionProvider{}, &MockAttachmentProvider{}, nil, EngineConfig{}, zap.NewNop())

		_, err := engine.Open(ctx, "42", "")
		var notFound *NotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, "42", notFound.ID)
	})
}

func TestEngine_StrictAmounts(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(workItemReturning(&entity.WorkItem{ID: "42"}), &MockSubmissionProvider{}, &MockAttachmentProvider{}, nil,
		EngineConfig{StrictAmounts: true}, zap.NewNop())

	session, err := engine.Open(ctx, "42", "")
	require.NoError(t, err)
	session.Ledger().Hydrate([]entity.Expense{{ID: "x", Description: "Lunch", Amount: "ten"}})

	_, err = session.Compose()
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
