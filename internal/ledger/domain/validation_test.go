package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateBalanced(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		name  string
		lines []LedgerEntryLine
		want  error
	}{
		{"balanced with commission", []LedgerEntryLine{
			{Direction: LedgerEntryDirectionDebit, Amount: d("10")},
			{Direction: LedgerEntryDirectionCredit, Amount: d("9.90")},
			{Direction: LedgerEntryDirectionCredit, Amount: d("0.10")},
		}, nil},
		{"unbalanced", []LedgerEntryLine{
			{Direction: LedgerEntryDirectionDebit, Amount: d("10")},
			{Direction: LedgerEntryDirectionCredit, Amount: d("9.99")},
		}, ErrUnbalancedEntry},
		{"single line", []LedgerEntryLine{
			{Direction: LedgerEntryDirectionDebit, Amount: d("10")},
		}, ErrInvalidEntryLines},
		{"negative amount", []LedgerEntryLine{
			{Direction: LedgerEntryDirectionDebit, Amount: d("-1")},
			{Direction: LedgerEntryDirectionCredit, Amount: d("-1")},
		}, ErrInvalidLineAmount},
		{"unknown direction", []LedgerEntryLine{
			{Direction: "sideways", Amount: d("1")},
			{Direction: LedgerEntryDirectionCredit, Amount: d("1")},
		}, ErrInvalidLineDirection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateBalanced(tc.lines); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
