package completion

import (
	"testing"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestComposer_CreateOrUpdateFollowsSubmissionID(t *testing.T) {
	tests := []struct {
		name         string
		status       entity.WorkItemStatus
		submissionID string
		wantUpdate   bool
	}{
		{"fresh draft", entity.WorkItemStatusInProgress, "", false},
		{"located submission", entity.WorkItemStatusSubmitted, "900", true},
		{"submitted item without record", entity.WorkItemStatusSubmitted, "", false},
		{"status ignored when id present", entity.WorkItemStatusPending, "900", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &entity.WorkItem{ID: "7", Status: tt.status}
			ledger := NewLedger(false, zap.NewNop())
			registry := NewRegistry(&MockAttachmentProvider{}, zap.NewNop())

			req, err := NewComposer().Compose(item, tt.submissionID, "L-1", "", ledger, registry)

			require.NoError(t, err)
			assert.Equal(t, tt.wantUpdate, req.IsUpdate())
			assert.Equal(t, tt.submissionID, req.SubmissionID)
		})
	}
}

func TestComposer_Compose(t *testing.T) {
	item := &entity.WorkItem{ID: "42", Status: entity.WorkItemStatusInProgress}
	ledger := NewLedger(false, zap.NewNop())
	ledger.Hydrate([]entity.Expense{
		{ID: "1", Description: "Travel", Amount: "150.00"},
		{ID: "2"},
	})
	registry := NewRegistry(&MockAttachmentProvider{}, zap.NewNop())
	registry.AddFromFile("staged/photo.jpg", "photo.jpg", "image/jpeg")
	_, err := registry.AddManual("Hand-written receipt")
	require.NoError(t, err)

	req, err := NewComposer().Compose(item, "", "L-1", "Replaced the pump", ledger, registry)

	require.NoError(t, err)
	assert.Equal(t, "42", req.WorkItemID)
	assert.Equal(t, "L-1", req.LiaisonID)
	assert.Equal(t, "Replaced the pump", req.Notes)
	assert.JSONEq(t, `[{"description":"Travel","amount":150}]`, string(req.ExpensesJSON))
	require.Len(t, req.Files, 1)
	assert.Equal(t, "photo.jpg", req.Files[0].FileName)
	assert.Equal(t, []string{"Hand-written receipt"}, req.ManualNames)
	assert.Empty(t, req.RetainedAttachmentIDs)
}

func TestComposer_EmptyLedgerEncodesEmptyArray(t *testing.T) {
	item := &entity.WorkItem{ID: "42"}
	req, err := NewComposer().Compose(item, "", "", "",
		NewLedger(false, zap.NewNop()), NewRegistry(&MockAttachmentProvider{}, zap.NewNop()))

	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(req.ExpensesJSON))
}

func TestComposer_ValidationBlocks(t *testing.T) {
	item := &entity.WorkItem{ID: "42"}
	ledger := NewLedger(false, zap.NewNop())
	ledger.Hydrate([]entity.Expense{{ID: "1", Amount: "10"}})

	req, err := NewComposer().Compose(item, "", "", "", ledger, NewRegistry(&MockAttachmentProvider{}, zap.NewNop()))

	assert.Nil(t, req)
	assert.ErrorIs(t, err, ErrIncompleteExpense)
}
