package core_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
)

// postMarch books a salary of 50000 and 1500 of food in March 2024.
func postMarch(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for _, tr := range []core.TemplateRequest{
		{SourceType: core.SourceIncome, Category: "salary", Date: day("2024-03-01"), Amount: dec("50000")},
		{SourceType: core.SourceExpense, Category: "food", Date: day("2024-03-15"), Amount: dec("1500")},
	} {
		_, err := f.ledger.PostTemplate(ctx, tenant, tr)
		require.NoError(t, err)
	}
}

func TestReporting_ProfitAndLoss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postMarch(t, f)

	start, end := core.MonthRange(2024, 3)
	pl, err := f.reporting.ProfitAndLoss(ctx, tenant, start, end)
	require.NoError(t, err)
	assert.True(t, pl.TotalIncome.Equal(dec("50000")))
	assert.True(t, pl.TotalExpenses.Equal(dec("1500")))
	assert.True(t, pl.NetIncome.Equal(dec("48500")))
	assert.Equal(t, "97.00", pl.SavingsRate.StringFixed(2))

	// Parent rows carry their children's totals.
	rows := map[string]decimal.Decimal{}
	depths := map[string]int{}
	for _, r := range pl.Expenses {
		rows[r.Code] = r.Amount
		depths[r.Code] = r.Depth
	}
	assert.True(t, rows["6000"].Equal(dec("1500")))
	assert.True(t, rows["6010"].Equal(dec("1500")))
	assert.True(t, rows["6011"].Equal(dec("1500")))
	assert.Equal(t, 2, depths["6011"])
	assert.NotContains(t, rows, "6012", "zero rows are left out")

	start, end = core.MonthRange(2024, 4)
	pl, err = f.reporting.ProfitAndLoss(ctx, tenant, start, end)
	require.NoError(t, err)
	assert.True(t, pl.NetIncome.IsZero())
	assert.True(t, pl.SavingsRate.IsZero())

	_, err = f.reporting.ProfitAndLoss(ctx, tenant, end, start)
	requireCode(t, err, core.CodeInvalidRequest)
}

func TestReporting_TrialBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postMarch(t, f)

	tb, err := f.reporting.TrialBalance(ctx, tenant, day("2024-03-31"))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced)
	assert.True(t, tb.TotalDebit.Equal(dec("51500")))
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))

	var leafNet decimal.Decimal
	for _, row := range tb.Rows {
		if !row.IsParent {
			leafNet = leafNet.Add(row.Debit).Sub(row.Credit)
		}
		if row.Code == "1010" {
			assert.True(t, row.Balance.Equal(dec("48500")))
		}
		if row.Code == "4010" {
			assert.True(t, row.Balance.Equal(dec("50000")), "income balances are credit-positive")
		}
	}
	assert.True(t, leafNet.IsZero())

	tb, err = f.reporting.TrialBalance(ctx, tenant, day("2024-03-10"))
	require.NoError(t, err)
	assert.True(t, tb.TotalDebit.Equal(dec("50000")))
}

func TestReporting_BalanceSheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postMarch(t, f)

	_, err := f.ledger.Post(ctx, tenant, simple("2024-03-20", "1020", "3010", "10000"))
	require.NoError(t, err)
	_, err = f.ledger.Post(ctx, tenant, simple("2024-03-21", "1500", "2020", "800"))
	require.NoError(t, err)

	bs, err := f.reporting.BalanceSheet(ctx, tenant, day("2024-03-31"))
	require.NoError(t, err)
	assert.True(t, bs.IsBalanced)
	assert.True(t, bs.TotalAssets.Equal(dec("59300")), bs.TotalAssets.String())
	assert.True(t, bs.TotalLiabilities.Equal(dec("800")))
	assert.True(t, bs.CurrentEarnings.Equal(dec("48500")))
	assert.True(t, bs.TotalEquity.Equal(dec("58500")))

	last := bs.Equity[len(bs.Equity)-1]
	assert.Equal(t, core.CurrentEarningsCode, last.Code)

	// P&L for the period equals the change in current earnings.
	before, err := f.reporting.BalanceSheet(ctx, tenant, day("2024-02-29"))
	require.NoError(t, err)
	start, end := core.MonthRange(2024, 3)
	pl, err := f.reporting.ProfitAndLoss(ctx, tenant, start, end)
	require.NoError(t, err)
	assert.True(t, pl.NetIncome.Equal(bs.CurrentEarnings.Sub(before.CurrentEarnings)))
}

func TestReporting_ContraAccountReducesAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Post(ctx, tenant, simple("2024-01-01", "1020", "3010", "5000"))
	require.NoError(t, err)
	_, err = f.ledger.Post(ctx, tenant, simple("2024-01-01", "1500", "1020", "1200"))
	require.NoError(t, err)
	_, err = f.ledger.PostTemplate(ctx, tenant, core.TemplateRequest{
		SourceType: core.SourceExpense, Category: "depreciation", Date: day("2024-01-31"), Amount: dec("100"),
	})
	require.NoError(t, err)

	bs, err := f.reporting.BalanceSheet(ctx, tenant, day("2024-01-31"))
	require.NoError(t, err)
	assert.True(t, bs.IsBalanced)
	assert.True(t, bs.TotalAssets.Equal(dec("4900")), bs.TotalAssets.String())
	for _, row := range bs.Assets {
		if row.Code == "1590" {
			assert.True(t, row.Amount.Equal(dec("-100")))
		}
	}
}

func TestReporting_COGS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := registerWidget(t, f)

	receive(t, f, item.ID, "2024-01-10", "10", "100")
	receive(t, f, item.ID, "2024-02-05", "10", "200")
	for _, m := range []core.MovementRequest{
		{ItemID: item.ID, Type: core.MovementOut, Reason: core.ReasonSale, Quantity: dec("4"), Date: day("2024-02-10")},
		{ItemID: item.ID, Type: core.MovementOut, Reason: core.ReasonDamaged, Quantity: dec("1"), Date: day("2024-02-11")},
		{ItemID: item.ID, Type: core.MovementIn, Reason: core.ReasonCustomerReturn, Quantity: dec("1"), UnitCost: decPtr("150"), Date: day("2024-02-12")},
		{ItemID: item.ID, Type: core.MovementOut, Reason: core.ReasonSupplierReturn, Quantity: dec("2"), Date: day("2024-02-13")},
	} {
		_, err := f.inventory.RecordMovement(ctx, tenant, m)
		require.NoError(t, err)
	}

	start, end := core.MonthRange(2024, 2)
	r, err := f.reporting.COGSReport(ctx, tenant, start, end)
	require.NoError(t, err)

	// Sale 4*150 + damage 1*150 - return 1*150 = 600. The supplier return is not a cost.
	assert.True(t, r.Consistent)
	assert.True(t, r.JournalCost.Equal(dec("600")), r.JournalCost.String())
	assert.True(t, r.MovementCost.Equal(r.JournalCost))
	assert.True(t, r.OpeningValue.Equal(dec("1000")))
	assert.True(t, r.ClosingValue.Equal(dec("2100")), r.ClosingValue.String())
	assert.True(t, r.Inflows.Equal(dec("2150")))
	assert.True(t, r.Outflows.Equal(dec("1050")))
	assert.True(t, r.ValuationVariance.IsZero())

	require.Len(t, r.ByAccount, 2)
	assert.Equal(t, "5010", r.ByAccount[0].Code)
	assert.True(t, r.ByAccount[0].Amount.Equal(dec("450")))
	assert.Equal(t, "5020", r.ByAccount[1].Code)

	require.Len(t, r.ByReason, 3)
}

func TestReporting_AccountStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Post(ctx, tenant, simple("2024-01-05", "1010", "4010", "1000"))
	require.NoError(t, err)
	_, err = f.ledger.Post(ctx, tenant, simple("2024-02-05", "6011", "1010", "300"))
	require.NoError(t, err)
	_, err = f.ledger.Post(ctx, tenant, simple("2024-03-05", "6011", "1010", "200"))
	require.NoError(t, err)

	from, to := day("2024-02-01"), day("2024-03-31")
	st, err := f.reporting.AccountStatement(ctx, tenant, "1010", &from, &to)
	require.NoError(t, err)
	assert.True(t, st.OpeningBalance.Equal(dec("1000")))
	require.Len(t, st.Lines, 2)
	assert.True(t, st.Lines[0].Balance.Equal(dec("700")))
	assert.True(t, st.Lines[1].Balance.Equal(dec("500")))
	assert.True(t, st.ClosingBalance.Equal(dec("500")))

	// A parent statement includes its descendants.
	st, err = f.reporting.AccountStatement(ctx, tenant, "6000", nil, nil)
	require.NoError(t, err)
	assert.Len(t, st.Lines, 2)
	assert.True(t, st.ClosingBalance.Equal(dec("500")))

	_, err = f.reporting.AccountStatement(ctx, tenant, "0000", nil, nil)
	requireCode(t, err, core.CodeAccountNotFound)

	_, err = f.reporting.AccountStatement(ctx, tenant, "1010", &to, &from)
	requireCode(t, err, core.CodeInvalidRequest)
}
