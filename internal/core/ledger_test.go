package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"finledger/internal/core"
)

func TestLedger_PostAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.Post(ctx, tenant, simple("2024-03-02", "6011", "1010", "42.50"))
	require.NoError(t, err)
	assert.Positive(t, entry.ID)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, 1, entry.Lines[0].LineNo)

	got, err := f.ledger.GetEntry(ctx, tenant, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	debit, credit := got.Totals()
	assert.True(t, debit.Equal(dec("42.50")))
	assert.True(t, credit.Equal(debit))

	_, err = f.ledger.GetEntry(ctx, "other-tenant", entry.ID)
	requireCode(t, err, core.CodeEntryNotFound)
}

func TestLedger_Idempotency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := simple("2024-03-02", "6011", "1010", "10")
	req.IdempotencyKey = "receipt-0001"

	first, err := f.ledger.Post(ctx, tenant, req)
	require.NoError(t, err)

	_, err = f.ledger.Post(ctx, tenant, req)
	requireCode(t, err, core.CodeDuplicateRequest)
	assert.True(t, errors.Is(err, core.ErrDuplicateRequest))

	entries, err := f.ledger.ListEntries(ctx, tenant, core.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, first.ID, entries[0].ID)

	// The same key is free in another tenant.
	_, err = f.chart.Seed(ctx, "globex", core.DefaultSeed())
	require.NoError(t, err)
	_, err = f.ledger.Post(ctx, "globex", req)
	require.NoError(t, err)
}

func TestLedger_RejectsBadAccountsAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := core.PostRequest{
		Date:       day("2024-03-02"),
		SourceType: core.SourceExpense,
		Lines: []core.PostLine{
			{AccountCode: "6011", Debit: dec("30")},
			{AccountCode: "6010", Debit: dec("20")},
			{AccountCode: "9999", Credit: dec("50")},
		},
	}
	_, err := f.ledger.Post(ctx, tenant, req)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)

	parent, _ := core.AsError(errs[0])
	assert.Equal(t, core.CodeInvalidAccount, parent.Code)
	assert.Equal(t, core.CodeAccountIsParentOnly, parent.Reason)
	assert.Equal(t, 2, parent.Line)

	missing, _ := core.AsError(errs[1])
	assert.Equal(t, core.CodeAccountNotFound, missing.Reason)
	assert.Equal(t, 3, missing.Line)
	assert.True(t, errors.Is(err, core.ErrAccountNotFound))

	entries, err := f.ledger.ListEntries(ctx, tenant, core.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedger_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.Post(ctx, tenant, simple("2024-03-02", "6017", "1010", "15"))
	require.NoError(t, err)

	inactive := false
	_, err = f.chart.UpdateAccount(ctx, tenant, "6017", core.AccountUpdate{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.ledger.Post(ctx, tenant, simple("2024-03-03", "6017", "1010", "15"))
	requireCode(t, err, core.CodeInvalidAccount)
	e, _ := core.AsError(err)
	assert.Equal(t, core.CodeAccountInactive, e.Reason)

	// Reversals may still touch an account deactivated after the original posting.
	_, err = f.ledger.Reverse(ctx, tenant, entry.ID, day("2024-03-04"), "")
	require.NoError(t, err)
}

func TestLedger_Reverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.ledger.Post(ctx, tenant, simple("2024-03-02", "6011", "1010", "42.50"))
	require.NoError(t, err)

	reversal, err := f.ledger.Reverse(ctx, tenant, original.ID, day("2024-03-05"), "wrong card")
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversesEntryID)
	assert.Equal(t, original.ID, *reversal.ReversesEntryID)
	assert.Equal(t, day("2024-03-05"), reversal.Date)
	assert.Contains(t, reversal.Memo, "wrong card")
	assert.Equal(t, "6011", reversal.Lines[0].AccountCode)
	assert.True(t, reversal.Lines[0].Credit.Equal(dec("42.50")))
	assert.True(t, reversal.Lines[1].Debit.Equal(dec("42.50")))

	_, err = f.ledger.Reverse(ctx, tenant, original.ID, day("2024-03-06"), "")
	requireCode(t, err, core.CodeAlreadyReversed)

	_, err = f.ledger.Reverse(ctx, tenant, reversal.ID, day("2024-03-06"), "")
	requireCode(t, err, core.CodeInvalidRequest)

	_, err = f.ledger.Reverse(ctx, tenant, 999, day("2024-03-06"), "")
	requireCode(t, err, core.CodeEntryNotFound)

	tb, err := f.reporting.TrialBalance(ctx, tenant, day("2024-03-31"))
	require.NoError(t, err)
	for _, row := range tb.Rows {
		assert.True(t, row.Balance.IsZero(), "%s balance %s", row.Code, row.Balance)
	}
}

func TestLedger_ReverseDefaultsToOriginalDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.ledger.Post(ctx, tenant, simple("2024-02-10", "6012", "1020", "80"))
	require.NoError(t, err)
	reversal, err := f.ledger.Reverse(ctx, tenant, original.ID, time.Time{}, "")
	require.NoError(t, err)
	assert.Equal(t, original.Date, reversal.Date)
}

func TestLedger_PostTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.PostTemplate(ctx, tenant, core.TemplateRequest{
		SourceType: core.SourceExpense,
		Category:   "Food",
		Date:       day("2024-03-02"),
		Amount:     dec("12.30"),
	})
	require.NoError(t, err)
	assert.Equal(t, core.SourceExpense, entry.SourceType)
	assert.Equal(t, "expense food", entry.Memo)
	assert.Equal(t, "6011", entry.Lines[0].AccountCode)

	_, err = f.ledger.PostTemplate(ctx, tenant, core.TemplateRequest{
		SourceType:   core.SourceExpense,
		Category:     "food",
		Date:         day("2024-03-02"),
		Amount:       dec("5"),
		DebitAccount: "6010",
	})
	requireCode(t, err, core.CodeInvalidAccount)
}

func TestLedger_ListEntriesFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, r := range []core.PostRequest{
		simple("2024-01-15", "6011", "1010", "10"),
		simple("2024-02-15", "6012", "1010", "20"),
		simple("2024-03-15", "6011", "1020", "30"),
	} {
		_, err := f.ledger.Post(ctx, tenant, r)
		require.NoError(t, err)
	}

	entries, err := f.ledger.ListEntries(ctx, tenant, core.EntryFilter{From: day("2024-02-01"), To: day("2024-03-31")})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = f.ledger.ListEntries(ctx, tenant, core.EntryFilter{AccountCode: "6011"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = f.ledger.ListEntries(ctx, tenant, core.EntryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = f.ledger.ListEntries(ctx, tenant, core.EntryFilter{From: day("2024-03-01"), To: day("2024-02-01")})
	requireCode(t, err, core.CodeInvalidRequest)
}

func TestLedger_InventoryEntriesComeOnlyFromMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := registerWidget(t, f)
	receive(t, f, item.ID, "2024-01-10", "10", "100")

	out, err := f.inventory.RecordMovement(ctx, tenant, core.MovementRequest{
		ItemID: item.ID, Type: core.MovementOut, Reason: core.ReasonSale, Quantity: dec("4"), Date: day("2024-01-11"),
	})
	require.NoError(t, err)
	require.NotNil(t, out.JournalEntry)

	_, err = f.ledger.Reverse(ctx, tenant, out.JournalEntry.ID, time.Time{}, "undo sale")
	requireCode(t, err, core.CodeInvalidRequest)

	manual := simple("2024-01-12", "5010", "1200", "50")
	manual.SourceType = core.SourceInventoryAdjustment
	_, err = f.ledger.Post(ctx, tenant, manual)
	requireCode(t, err, core.CodeInvalidRequest)

	manual.SourceType = "inventory_adjustment"
	_, err = f.ledger.Post(ctx, tenant, manual)
	requireCode(t, err, core.CodeInvalidRequest)

	// Books and stock still agree: 6 units at 100.
	v, err := f.inventory.Valuation(ctx, tenant, nil)
	require.NoError(t, err)
	assert.True(t, v.TotalCostValue.Equal(dec("600")), v.TotalCostValue.String())
	assert.True(t, accountBalance(t, f, "1200").Equal(dec("600")), accountBalance(t, f, "1200").String())

	start, end := core.MonthRange(2024, 1)
	r, err := f.reporting.COGSReport(ctx, tenant, start, end)
	require.NoError(t, err)
	assert.True(t, r.Consistent)
}
