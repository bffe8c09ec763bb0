package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "12.50", want: "12.5"},
		{name: "surrounding space", input: "  40 ", want: "40"},
		{name: "thousands groups", input: "1,250.50", want: "1250.5"},
		{name: "millions", input: "-2,000,000", want: "-2000000"},
		{name: "decimal comma", input: "12,50", wantErr: true},
		{name: "european grouping", input: "1.234,56", wantErr: true},
		{name: "short group", input: "1,23", wantErr: true},
		{name: "leading comma", input: ",500", wantErr: true},
		{name: "words", input: "twelve", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestExpense_RowShape(t *testing.T) {
	assert.True(t, Expense{}.IsBlank())
	assert.True(t, Expense{Description: "Fuel", Amount: "5"}.IsComplete())
	assert.True(t, Expense{Description: "Fuel"}.IsPartial())
	assert.False(t, Expense{Amount: " "}.IsPartial())
}
