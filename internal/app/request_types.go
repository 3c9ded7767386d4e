package app

import "finledger/internal/core"

// CreateAccountRequest is the input for creating a user-defined account.
type CreateAccountRequest struct {
	Code        string
	Name        string
	Description string
	Type        string
	Subtype     string
	ParentCode  string
	IsParent    bool
	IsContra    bool
}

// UpdateAccountRequest carries the mutable account fields. Nil fields are unchanged.
type UpdateAccountRequest struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// PostEntryRequest is the input for posting a manual journal entry.
// Amounts are decimal strings; an empty side means zero.
type PostEntryRequest struct {
	Date           string
	Memo           string
	SourceType     string
	SourceID       string
	IdempotencyKey string
	Lines          []PostLineInput
}

// PostLineInput is a single line within a PostEntryRequest.
type PostLineInput struct {
	AccountCode string
	Debit       string
	Credit      string
	Memo        string
}

// TemplateEntryRequest describes a business document to be turned into an entry.
// DebitAccount and CreditAccount override the default accounts when set.
type TemplateEntryRequest struct {
	SourceType     string
	Category       string
	Date           string
	Memo           string
	SourceID       string
	IdempotencyKey string
	Amount         string
	Tax            string
	Fee            string
	DebitAccount   string
	CreditAccount  string
}

// ReverseEntryRequest is the input for ReverseEntry. An empty Date reuses the
// original entry's date.
type ReverseEntryRequest struct {
	EntryID int64
	Date    string
	Memo    string
}

// EntryQuery filters ListEntries. Empty fields are unbounded.
type EntryQuery struct {
	From        string
	To          string
	SourceType  string
	AccountCode string
	Limit       int
}

// RegisterItemRequest is the input for registering an inventory item.
type RegisterItemRequest struct {
	SKU          string
	Name         string
	Category     string
	SellingPrice string
}

// MovementRequest is the input for RecordMovement. For ADJUSTMENT, Quantity is the
// counted quantity on hand, not a delta. UnitCost is only accepted for IN.
type MovementRequest struct {
	ItemID             int64
	Type               string
	Reason             string
	Quantity           string
	UnitCost           string
	Date               string
	Notes              string
	IdempotencyKey     string
	CounterAccountCode string
}

// MovementQuery filters ListMovements. ItemID 0 means all items.
type MovementQuery struct {
	ItemID int64
	From   string
	To     string
}

// PeriodRequest selects a reporting period: an explicit Start/End day range, or a
// calendar Year and Month when Start is empty.
type PeriodRequest struct {
	Start string
	End   string
	Year  int
	Month int
}

func (r CreateAccountRequest) toCore() core.CreateAccountRequest {
	return core.CreateAccountRequest{
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Type:        core.AccountType(r.Type),
		Subtype:     r.Subtype,
		ParentCode:  r.ParentCode,
		IsParent:    r.IsParent,
		IsContra:    r.IsContra,
	}
}
