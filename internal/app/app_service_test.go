package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/app"
	"finledger/internal/core"
	"finledger/internal/store/memory"
)

const tenant = "acme"

func newService(t *testing.T) app.ApplicationService {
	t.Helper()
	svc := app.NewAppService(memory.New(), app.Options{Policy: core.DefaultPolicy(), Currency: "EUR"})
	_, err := svc.SeedChart(context.Background(), tenant, nil)
	require.NoError(t, err)
	return svc
}

func requireCode(t *testing.T, err error, code core.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	e, ok := core.AsError(err)
	require.True(t, ok, "expected a ledger error, got %v", err)
	assert.Equal(t, code, e.Code, err.Error())
}

func TestPostEntry_ParsesStrings(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	entry, err := svc.PostEntry(ctx, tenant, app.PostEntryRequest{
		Date:       "2024-03-05",
		Memo:       "groceries",
		SourceType: "expense",
		Lines: []app.PostLineInput{
			{AccountCode: "6011", Debit: "12.50"},
			{AccountCode: "1010", Credit: "12.50"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, core.SourceExpense, entry.SourceType)
	assert.Equal(t, "2024-03-05", entry.Date.Format(core.DateLayout))
	assert.Equal(t, "12.5", entry.Lines[0].Debit.String())
}

func TestPostEntry_BadInputIsInvalidRequest(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  app.PostEntryRequest
	}{
		{"bad date", app.PostEntryRequest{Date: "05/03/2024", SourceType: "EXPENSE"}},
		{"bad amount", app.PostEntryRequest{Date: "2024-03-05", SourceType: "EXPENSE", Lines: []app.PostLineInput{
			{AccountCode: "6011", Debit: "abc"}, {AccountCode: "1010", Credit: "1"},
		}}},
		{"sub-cent amount", app.PostEntryRequest{Date: "2024-03-05", SourceType: "EXPENSE", Lines: []app.PostLineInput{
			{AccountCode: "6011", Debit: "1.005"}, {AccountCode: "1010", Credit: "1.005"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PostEntry(ctx, tenant, tt.req)
			requireCode(t, err, core.CodeInvalidRequest)
		})
	}
}

func TestProfitAndLoss_PeriodSelection(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.PostTemplate(ctx, tenant, app.TemplateEntryRequest{SourceType: "income", Category: "salary", Date: "2024-03-01", Amount: "50000"})
	require.NoError(t, err)
	_, err = svc.PostTemplate(ctx, tenant, app.TemplateEntryRequest{SourceType: "expense", Category: "food", Date: "2024-03-10", Amount: "1500"})
	require.NoError(t, err)

	byMonth, err := svc.ProfitAndLoss(ctx, tenant, app.PeriodRequest{Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, "EUR", byMonth.Currency)
	assert.Equal(t, "48500", byMonth.NetIncome.String())
	assert.Equal(t, "2024-03-31", byMonth.End.Format(core.DateLayout))

	// A start without an end covers that single day.
	oneDay, err := svc.ProfitAndLoss(ctx, tenant, app.PeriodRequest{Start: "2024-03-10"})
	require.NoError(t, err)
	assert.True(t, oneDay.TotalIncome.IsZero())
	assert.Equal(t, "1500", oneDay.TotalExpenses.String())

	_, err = svc.ProfitAndLoss(ctx, tenant, app.PeriodRequest{Year: 2024, Month: 13})
	requireCode(t, err, core.CodeInvalidRequest)

	_, err = svc.ProfitAndLoss(ctx, tenant, app.PeriodRequest{Start: "2024-03-31", End: "2024-03-01"})
	requireCode(t, err, core.CodeInvalidRequest)
}

func TestRecordMovement_ParsesQuantityAndCost(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	item, err := svc.RegisterItem(ctx, tenant, app.RegisterItemRequest{SKU: "A-1", Name: "Anvil", SellingPrice: "99.90"})
	require.NoError(t, err)

	res, err := svc.RecordMovement(ctx, tenant, app.MovementRequest{
		ItemID: item.ID, Type: "in", Reason: "purchase", Quantity: "4", UnitCost: "12.25", Date: "2024-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "4", res.NewQuantity.String())
	require.NotNil(t, res.JournalEntry)
	assert.Equal(t, "49", res.JournalEntry.Lines[0].Debit.String())

	_, err = svc.RecordMovement(ctx, tenant, app.MovementRequest{ItemID: item.ID, Type: "OUT", Reason: "SALE"})
	requireCode(t, err, core.CodeInvalidRequest)

	_, err = svc.RecordMovement(ctx, tenant, app.MovementRequest{ItemID: item.ID, Type: "IN", Reason: "PURCHASE", Quantity: "1", UnitCost: "x"})
	requireCode(t, err, core.CodeInvalidRequest)

	val, err := svc.Valuation(ctx, tenant, "")
	require.NoError(t, err)
	assert.Nil(t, val.AsOf)
	assert.Equal(t, "49", val.TotalCostValue.String())

	_, err = svc.Valuation(ctx, tenant, "yesterday")
	requireCode(t, err, core.CodeInvalidRequest)
}

func TestReverseEntry_DefaultsToOriginalDate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	entry, err := svc.PostTemplate(ctx, tenant, app.TemplateEntryRequest{SourceType: "EXPENSE", Category: "rent", Date: "2024-02-01", Amount: "900"})
	require.NoError(t, err)

	rev, err := svc.ReverseEntry(ctx, tenant, app.ReverseEntryRequest{EntryID: entry.ID, Memo: "posted twice"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", rev.Date.Format(core.DateLayout))
	assert.Contains(t, rev.Memo, "posted twice")

	list, err := svc.ListEntries(ctx, tenant, app.EntryQuery{AccountCode: "6013"})
	require.NoError(t, err)
	assert.Len(t, list.Entries, 2)
}

func TestHealth(t *testing.T) {
	svc := newService(t)
	assert.NoError(t, svc.Health(context.Background()))
}
