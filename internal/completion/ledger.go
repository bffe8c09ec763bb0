package completion

import (
	"strings"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Expense row fields accepted by Ledger.Update
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
)

// ExpenseLine is a validated expense as sent to the portal
type ExpenseLine struct {
	Description string
	Amount      decimal.Decimal
}

// MarshalJSON encodes the amount as a JSON number rather than a quoted string
func (l ExpenseLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Description string          `json:"description"`
		Amount      json.RawMessage `json:"amount"`
	}{
		Description: l.Description,
		Amount:      json.RawMessage(l.Amount.String()),
	})
}

// Ledger is the ordered list of expense rows of one session.
// Rows are validated only when serialized.
type Ledger struct {
	rows    []entity.Expense
	strict  bool
	coerced []string
	logger  *zap.Logger
}

// NewLedger creates an empty ledger. In strict mode a non-numeric amount
// fails validation instead of being coerced to zero.
func NewLedger(strict bool, logger *zap.Logger) *Ledger {
	return &Ledger{
		strict: strict,
		logger: logger,
	}
}

// Add appends a blank row with a fresh client identifier
func (l *Ledger) Add() entity.Expense {
	row := entity.Expense{ID: uuid.NewString()}
	l.rows = append(l.rows, row)
	return row
}

// Update sets one field of a row
func (l *Ledger) Update(id, field, value string) error {
	idx := l.indexOf(id)
	if idx < 0 {
		return ErrExpenseNotFound
	}

	switch field {
	case FieldDescription:
		l.rows[idx].Description = value
	case FieldAmount:
		l.rows[idx].Amount = value
	default:
		return &ValidationError{Reason: ErrUnknownExpenseField.Reason, ID: field}
	}
	return nil
}

// Remove deletes a row
func (l *Ledger) Remove(id string) error {
	idx := l.indexOf(id)
	if idx < 0 {
		return ErrExpenseNotFound
	}
	l.rows = append(l.rows[:idx], l.rows[idx+1:]...)
	return nil
}

// Hydrate replaces all rows with those of a loaded submission
func (l *Ledger) Hydrate(rows []entity.Expense) {
	l.rows = append([]entity.Expense(nil), rows...)
}

// Rows returns a copy of the current rows
func (l *Ledger) Rows() []entity.Expense {
	return append([]entity.Expense(nil), l.rows...)
}

// Len returns the number of rows, placeholders included
func (l *Ledger) Len() int {
	return len(l.rows)
}

// Coerced returns the ids of rows whose amount was coerced to zero
// by the last Serialize call.
func (l *Ledger) Coerced() []string {
	return append([]string(nil), l.coerced...)
}

// Serialize validates every row and returns the lines to submit.
// Blank rows are dropped; a partial row fails the whole ledger.
func (l *Ledger) Serialize() ([]ExpenseLine, error) {
	for _, row := range l.rows {
		if row.IsPartial() {
			return nil, &ValidationError{Reason: ErrIncompleteExpense.Reason, ID: row.ID}
		}
	}

	l.coerced = nil
	lines := make([]ExpenseLine, 0, len(l.rows))
	for _, row := range l.rows {
		if !row.IsComplete() {
			continue
		}

		amount, err := entity.ParseAmount(row.Amount)
		if err != nil {
			if l.strict {
				return nil, &ValidationError{Reason: ErrInvalidAmount.Reason, ID: row.ID}
			}
			l.logger.Warn("Expense amount is not numeric, submitting zero",
				zap.String("expense_id", row.ID),
				zap.String("amount", row.Amount))
			l.coerced = append(l.coerced, row.ID)
			amount = decimal.Zero
		}

		lines = append(lines, ExpenseLine{
			Description: strings.TrimSpace(row.Description),
			Amount:      amount,
		})
	}

	return lines, nil
}

func (l *Ledger) indexOf(id string) int {
	for i, row := range l.rows {
		if row.ID == id {
			return i
		}
	}
	return -1
}
