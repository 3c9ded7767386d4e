package app

import "finledger/internal/core"

// AccountListResult is returned by ListAccounts and ListChildren.
type AccountListResult struct {
	TenantID string         `json:"tenant_id"`
	Accounts []core.Account `json:"accounts"`
}

// EntryListResult is returned by ListEntries.
type EntryListResult struct {
	TenantID string              `json:"tenant_id"`
	Entries  []core.JournalEntry `json:"entries"`
}

// ItemListResult is returned by ListItems.
type ItemListResult struct {
	TenantID string               `json:"tenant_id"`
	Items    []core.InventoryItem `json:"items"`
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	TenantID  string                   `json:"tenant_id"`
	Movements []core.InventoryMovement `json:"movements"`
}

// The report results embed the core report and add the display currency.

type ValuationResult struct {
	TenantID string `json:"tenant_id"`
	Currency string `json:"currency"`
	*core.ValuationReport
}

type TrialBalanceResult struct {
	TenantID string `json:"tenant_id"`
	Currency string `json:"currency"`
	*core.TrialBalance
}

type ProfitAndLossResult struct {
	TenantID string `json:"tenant_id"`
	Currency string `json:"currency"`
	*core.ProfitAndLoss
}

type BalanceSheetResult struct {
	TenantID string `json:"tenant_id"`
	Currency string `json:"currency"`
	*core.BalanceSheet
}

type COGSResult struct {
	TenantID string `json:"tenant_id"`
	Currency string `json:"currency"`
	*core.COGSReport
}

type AccountStatementResult struct {
	TenantID string `json:"tenant_id"`
	Currency string `json:"currency"`
	*core.AccountStatement
}
