package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
	"finledger/internal/store/memory"
)

const tenant = "acme"

// fixture wires the services over a fresh in-memory store seeded with the default chart.
type fixture struct {
	store     *memory.Store
	chart     core.ChartService
	ledger    core.LedgerService
	inventory core.InventoryService
	reporting core.ReportingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPolicy(t, core.DefaultPolicy())
}

func newFixtureWithPolicy(t *testing.T, policy core.Policy) *fixture {
	t.Helper()
	store := memory.New()
	rules := core.DefaultRules()
	ledger := core.NewLedger(store, rules, policy, nil, nil)
	f := &fixture{
		store:     store,
		chart:     core.NewChartService(store, policy, nil),
		ledger:    ledger,
		inventory: core.NewInventoryService(store, ledger, rules, policy, nil, nil),
		reporting: core.NewReportingService(store, nil, nil),
	}
	_, err := f.chart.Seed(context.Background(), tenant, core.DefaultSeed())
	require.NoError(t, err)
	return f
}

func day(s string) time.Time {
	t, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// simple builds a two-line entry debiting dr and crediting cr.
func simple(date, dr, cr, amount string) core.PostRequest {
	return core.PostRequest{
		Date:       day(date),
		Memo:       "test",
		SourceType: core.SourceExpense,
		Lines: []core.PostLine{
			{AccountCode: dr, Debit: dec(amount)},
			{AccountCode: cr, Credit: dec(amount)},
		},
	}
}

// requireCode asserts that err carries a ledger error with the given code.
func requireCode(t *testing.T, err error, code core.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	e, ok := core.AsError(err)
	require.True(t, ok, "expected a ledger error, got %v", err)
	require.Equal(t, code, e.Code, err.Error())
}
