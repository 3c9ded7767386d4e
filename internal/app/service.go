package app

import (
	"context"

	"finledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind. Dates and amounts arrive as
// strings exactly as the user typed them; parsing happens here so that every
// adapter rejects bad input the same way.
type ApplicationService interface {
	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error

	// ── Chart of accounts ────────────────────────────────────────────────────

	ListAccounts(ctx context.Context, tenantID string) (*AccountListResult, error)
	GetAccount(ctx context.Context, tenantID, code string) (*core.Account, error)
	ListChildren(ctx context.Context, tenantID, code string) (*AccountListResult, error)
	CreateAccount(ctx context.Context, tenantID string, req CreateAccountRequest) (*core.Account, error)
	UpdateAccount(ctx context.Context, tenantID, code string, req UpdateAccountRequest) (*core.Account, error)
	// DeleteAccount removes an unused, non-system leaf account.
	DeleteAccount(ctx context.Context, tenantID, code string) error
	// SeedChart reconciles the tenant's chart with accounts, or with the built-in
	// default chart when accounts is nil. Existing accounts are never deleted.
	SeedChart(ctx context.Context, tenantID string, accounts []core.SeedAccount) (*core.SeedResult, error)

	// ── Journal ──────────────────────────────────────────────────────────────

	// PostEntry validates and posts a balanced journal entry atomically.
	PostEntry(ctx context.Context, tenantID string, req PostEntryRequest) (*core.JournalEntry, error)
	// PostTemplate builds an entry from a business document (EXPENSE, INCOME, ...)
	// using the default account mapping, then posts it.
	PostTemplate(ctx context.Context, tenantID string, req TemplateEntryRequest) (*core.JournalEntry, error)
	// ReverseEntry posts the mirror image of an entry. An entry can be reversed once.
	ReverseEntry(ctx context.Context, tenantID string, req ReverseEntryRequest) (*core.JournalEntry, error)
	GetEntry(ctx context.Context, tenantID string, id int64) (*core.JournalEntry, error)
	ListEntries(ctx context.Context, tenantID string, q EntryQuery) (*EntryListResult, error)

	// ── Inventory ────────────────────────────────────────────────────────────

	RegisterItem(ctx context.Context, tenantID string, req RegisterItemRequest) (*core.InventoryItem, error)
	GetItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error)
	ListItems(ctx context.Context, tenantID string, includeInactive bool) (*ItemListResult, error)
	DeactivateItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error)
	// RecordMovement applies a stock movement, updates the weighted-average cost and
	// posts the linked journal entry in the same transaction.
	RecordMovement(ctx context.Context, tenantID string, req MovementRequest) (*core.MovementResult, error)
	ListMovements(ctx context.Context, tenantID string, q MovementQuery) (*MovementListResult, error)
	// Valuation values stock on hand. asOfDate is optional; empty means current state.
	Valuation(ctx context.Context, tenantID, asOfDate string) (*ValuationResult, error)

	// ── Reports ──────────────────────────────────────────────────────────────

	// TrialBalance lists every account balance as of a date (today when empty).
	TrialBalance(ctx context.Context, tenantID, asOfDate string) (*TrialBalanceResult, error)
	ProfitAndLoss(ctx context.Context, tenantID string, p PeriodRequest) (*ProfitAndLossResult, error)
	BalanceSheet(ctx context.Context, tenantID, asOfDate string) (*BalanceSheetResult, error)
	COGSReport(ctx context.Context, tenantID string, p PeriodRequest) (*COGSResult, error)
	// AccountStatement returns a chronological statement with running balance.
	// fromDate and toDate are optional (empty string means unbounded).
	AccountStatement(ctx context.Context, tenantID, accountCode, fromDate, toDate string) (*AccountStatementResult, error)
}
