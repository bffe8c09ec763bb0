package entity

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// groupedAmount matches amounts whose commas sit on thousands boundaries
var groupedAmount = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// errAmbiguousComma is returned for comma placements that are not thousands groups
var errAmbiguousComma = errors.New("amount has a comma outside thousands grouping")

// Expense is one itemized cost line of a submission.
// Amount keeps the text as entered; it is parsed only at serialization.
type Expense struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// IsBlank reports a placeholder row with neither field filled
func (e Expense) IsBlank() bool {
	return !e.hasDescription() && !e.hasAmount()
}

// IsComplete reports a row with both fields filled
func (e Expense) IsComplete() bool {
	return e.hasDescription() && e.hasAmount()
}

// IsPartial reports a row with exactly one field filled
func (e Expense) IsPartial() bool {
	return e.hasDescription() != e.hasAmount()
}

func (e Expense) hasDescription() bool {
	return strings.TrimSpace(e.Description) != ""
}

func (e Expense) hasAmount() bool {
	return strings.TrimSpace(e.Amount) != ""
}

// ParseAmount parses an entered amount. Commas are accepted only as
// thousands separators ("1,250.50"); any other comma ("12,50",
// "1.234,56") is an error so the caller can coerce or reject the row.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !groupedAmount.MatchString(s) {
			return decimal.Zero, errAmbiguousComma
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	return decimal.NewFromString(s)
}
