package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizer_ExpenseShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "expenses field",
			payload: `{"id": 900, "expenses": [{"description": "Fuel", "amount": "50"}]}`,
		},
		{
			name:    "expenses_data field",
			payload: `{"id": 900, "expenses_data": [{"description": "Fuel", "amount": "50"}]}`,
		},
		{
			name:    "nested under another object",
			payload: `{"id": 900, "data": {"expenses": [{"description": "Fuel", "amount": "50"}]}}`,
		},
		{
			name:    "JSON string array",
			payload: `{"id": 900, "expenses": "[{\"description\": \"Fuel\", \"amount\": 50}]"}`,
		},
	}

	n := NewNormalizer(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := n.Normalize(context.Background(), decodeRaw(t, tt.payload), nil)

			assert.Equal(t, "900", sub.ID)
			require.Len(t, sub.Expenses, 1)
			assert.Equal(t, "Fuel", sub.Expenses[0].Description)
			assert.Equal(t, "50", sub.Expenses[0].Amount)
			assert.NotEmpty(t, sub.Expenses[0].ID)
		})
	}
}

func TestNormalizer_NestedScanFollowsKeyOrder(t *testing.T) {
	payload := `{
		"id": "1",
		"first": {"expenses_data": [{"description": "A", "amount": "1"}]},
		"second": {"expenses": [{"description": "B", "amount": "2"}]}
	}`

	sub := NewNormalizer(zap.NewNop()).Normalize(context.Background(), decodeRaw(t, payload), nil)

	require.Len(t, sub.Expenses, 1)
	assert.Equal(t, "A", sub.Expenses[0].Description)
}

func TestNormalizer_DetailFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields are recovered from the detail payload", func(t *testing.T) {
		calls := 0
		fetch := func(ctx context.Context, id string) (*entity.RawSubmission, error) {
			calls++
			assert.Equal(t, "900", id)
			return decodeRaw(t, `{
				"expenses_data": [{"id": "e1", "description": "Toll", "amount": "3.50"}],
				"attachments": [{"id": 5, "file_name": "a.pdf"}]
			}`), nil
		}

		sub := NewNormalizer(zap.NewNop()).Normalize(ctx, decodeRaw(t, `{"id": "900", "notes": "done"}`), fetch)

		assert.Equal(t, 1, calls)
		assert.Equal(t, "done", sub.Notes)
		require.Len(t, sub.Expenses, 1)
		assert.Equal(t, "e1", sub.Expenses[0].ID)
		require.Len(t, sub.Attachments, 1)
		assert.Equal(t, "5", sub.Attachments[0].ServerID)
	})

	t.Run("no fetch when the payload already has both lists", func(t *testing.T) {
		fetch := func(ctx context.Context, id string) (*entity.RawSubmission, error) {
			t.Fatal("detail fetch should not be called")
			return nil, nil
		}

		sub := NewNormalizer(zap.NewNop()).Normalize(ctx,
			decodeRaw(t, `{"id": "900", "expenses": [], "attachments": []}`), fetch)

		assert.Empty(t, sub.Expenses)
		assert.Empty(t, sub.Attachments)
	})

	t.Run("fetch failure yields empty lists", func(t *testing.T) {
		fetch := func(ctx context.Context, id string) (*entity.RawSubmission, error) {
			return nil, errors.New("boom")
		}

		sub := NewNormalizer(zap.NewNop()).Normalize(ctx, decodeRaw(t, `{"id": "900"}`), fetch)

		assert.NotNil(t, sub.Expenses)
		assert.Empty(t, sub.Expenses)
		assert.Empty(t, sub.Attachments)
	})
}

func TestNormalizer_Attachments(t *testing.T) {
	payload := `{
		"id": "900",
		"attachments_data": [
			{"id": 5, "file_name": "a.pdf"},
			{"attachment_id": "6", "file_path": "/uploads/2026/site.JPG"},
			{"id": 7, "name": "Paper receipt", "file_path": "__manual__"},
			{"id": 8, "name": "scan", "file_type": "image/png"},
			{"file_name": "orphan.pdf"},
			"not an object"
		]
	}`

	sub := NewNormalizer(zap.NewNop()).Normalize(context.Background(), decodeRaw(t, payload), nil)

	require.Len(t, sub.Attachments, 4)

	assert.Equal(t, "5", sub.Attachments[0].ServerID)
	assert.Equal(t, "a.pdf", sub.Attachments[0].DisplayName)
	assert.Equal(t, entity.DisplayKindDocument, sub.Attachments[0].Display)

	assert.Equal(t, "6", sub.Attachments[1].ServerID)
	assert.Equal(t, "site.JPG", sub.Attachments[1].DisplayName)
	assert.Equal(t, entity.DisplayKindImage, sub.Attachments[1].Display)

	assert.Equal(t, "Paper receipt", sub.Attachments[2].DisplayName)
	assert.Equal(t, entity.DisplayKindManual, sub.Attachments[2].Display)

	assert.Equal(t, entity.DisplayKindImage, sub.Attachments[3].Display)

	for _, att := range sub.Attachments {
		assert.NotEmpty(t, att.ID)
		assert.NotEqual(t, att.ServerID, att.ID)
		assert.Equal(t, entity.AttachmentKindExistingRemote, att.Kind())
	}
}

func TestNormalizer_ScalarFields(t *testing.T) {
	payload := `{
		"submission_id": 77,
		"job_order_id": 42,
		"liaison_id": "L-9",
		"remarks": "  all good  ",
		"created_at": "2026-05-01 10:00:00"
	}`

	sub := NewNormalizer(zap.NewNop()).Normalize(context.Background(), decodeRaw(t, payload), nil)

	assert.Equal(t, "77", sub.ID)
	assert.Equal(t, "42", sub.WorkItemID)
	assert.Equal(t, "L-9", sub.LiaisonID)
	assert.Equal(t, "all good", sub.Notes)
	assert.Equal(t, 2026, sub.CreatedAt.Year())
}

func TestAsList(t *testing.T) {
	list, ok := asList([]interface{}{1, 2})
	assert.True(t, ok)
	assert.Len(t, list, 2)

	list, ok = asList(` [{"a": 1}] `)
	assert.True(t, ok)
	assert.Len(t, list, 1)

	_, ok = asList("plain text")
	assert.False(t, ok)

	_, ok = asList("[broken")
	assert.False(t, ok)

	_, ok = asList(map[string]interface{}{})
	assert.False(t, ok)
}
