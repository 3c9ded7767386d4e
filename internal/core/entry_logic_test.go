package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"finledger/internal/core"
)

func TestPostRequest_NormalizationAndValidation(t *testing.T) {
	tests := []struct {
		name     string
		source   core.SourceType
		lines    []core.PostLine
		wantCode core.ErrorCode
	}{
		{
			name:   "balanced two lines",
			source: "expense",
			lines: []core.PostLine{
				{AccountCode: " 6011 ", Debit: dec("200.00")},
				{AccountCode: "1010", Credit: dec("200")},
			},
		},
		{
			name:   "split credit",
			source: core.SourceIncome,
			lines: []core.PostLine{
				{AccountCode: "1010", Debit: dec("100")},
				{AccountCode: "4010", Credit: dec("60")},
				{AccountCode: "4020", Credit: dec("40")},
			},
		},
		{
			name:   "zero amount line",
			source: core.SourceExpense,
			lines: []core.PostLine{
				{AccountCode: "6011", Debit: dec("200")},
				{AccountCode: "1010"},
			},
			wantCode: core.CodeZeroAmountLine,
		},
		{
			name:   "negative amount",
			source: core.SourceExpense,
			lines: []core.PostLine{
				{AccountCode: "6011", Debit: dec("-100")},
				{AccountCode: "1010", Credit: dec("-100")},
			},
			wantCode: core.CodeInvalidLine,
		},
		{
			name:   "both sides on one line",
			source: core.SourceExpense,
			lines: []core.PostLine{
				{AccountCode: "6011", Debit: dec("100"), Credit: dec("100")},
				{AccountCode: "1010", Credit: dec("100")},
			},
			wantCode: core.CodeInvalidLine,
		},
		{
			name:   "sub-cent amount",
			source: core.SourceExpense,
			lines: []core.PostLine{
				{AccountCode: "6011", Debit: dec("10.005")},
				{AccountCode: "1010", Credit: dec("10.005")},
			},
			wantCode: core.CodeInvalidLine,
		},
		{
			name:   "imbalanced entry",
			source: core.SourceExpense,
			lines: []core.PostLine{
				{AccountCode: "6011", Debit: dec("200")},
				{AccountCode: "1010", Credit: dec("100")},
			},
			wantCode: core.CodeUnbalancedEntry,
		},
		{
			name:   "single line",
			source: core.SourceExpense,
			lines: []core.PostLine{
				{AccountCode: "6011", Debit: dec("200")},
			},
			wantCode: core.CodeInvalidRequest,
		},
		{
			name:   "unknown source type",
			source: "GIFT_CARD",
			lines: []core.PostLine{
				{AccountCode: "6011", Debit: dec("1")},
				{AccountCode: "1010", Credit: dec("1")},
			},
			wantCode: core.CodeInvalidRequest,
		},
		{
			name:   "missing account code",
			source: core.SourceExpense,
			lines: []core.PostLine{
				{AccountCode: "  ", Debit: dec("1")},
				{AccountCode: "1010", Credit: dec("1")},
			},
			wantCode: core.CodeInvalidAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := core.PostRequest{
				Date:       day("2024-03-01"),
				SourceType: tt.source,
				Lines:      tt.lines,
			}
			r.Normalize()
			err := r.Validate()

			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("unexpected error: %v, request: %+v", err, r)
				}
				return
			}
			requireCode(t, err, tt.wantCode)
		})
	}
}

func TestPostRequest_Normalize(t *testing.T) {
	r := core.PostRequest{
		Date:       day("2024-03-01").Add(13 * time.Hour),
		Memo:       "  lunch ",
		SourceType: " expense",
		Lines:      []core.PostLine{{AccountCode: " 6011 ", Memo: " m "}},
	}
	r.Normalize()

	assert.Equal(t, day("2024-03-01"), r.Date)
	assert.Equal(t, "lunch", r.Memo)
	assert.Equal(t, core.SourceExpense, r.SourceType)
	assert.Equal(t, "6011", r.Lines[0].AccountCode)
	assert.Equal(t, "m", r.Lines[0].Memo)
}

func TestPostRequest_ReportsEveryBadLine(t *testing.T) {
	r := core.PostRequest{
		SourceType: core.SourceExpense,
		Lines: []core.PostLine{
			{AccountCode: "6011", Debit: dec("5")},
			{AccountCode: "6012"},
			{AccountCode: "1010", Credit: dec("-5")},
		},
	}
	r.Normalize()
	errs := multierr.Errors(r.Validate())
	require.Len(t, errs, 3)

	missingDate, _ := core.AsError(errs[0])
	assert.Equal(t, core.CodeInvalidRequest, missingDate.Code)

	zero, _ := core.AsError(errs[1])
	assert.Equal(t, core.CodeZeroAmountLine, zero.Code)
	assert.Equal(t, 2, zero.Line)

	negative, _ := core.AsError(errs[2])
	assert.Equal(t, core.CodeInvalidLine, negative.Code)
	assert.Equal(t, 3, negative.Line)
	assert.Equal(t, "1010", negative.AccountCode)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "0"},
		{in: " 12.50 ", want: "12.5"},
		{in: "1000", want: "1000"},
		{in: "0.001", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := core.ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestMonthRange(t *testing.T) {
	start, end := core.MonthRange(2024, 2)
	assert.Equal(t, day("2024-02-01"), start)
	assert.Equal(t, day("2024-02-29"), end)
}
