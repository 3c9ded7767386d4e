package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Income    AccountType = "INCOME"
	Expense   AccountType = "EXPENSE"
)

// AccountTypes lists the account types in statement order.
var AccountTypes = []AccountType{Asset, Liability, Equity, Income, Expense}

func (t AccountType) Valid() bool {
	switch t {
	case Asset, Liability, Equity, Income, Expense:
		return true
	}
	return false
}

// DebitNormal reports whether accounts of this type increase on the debit side.
func (t AccountType) DebitNormal() bool {
	return t == Asset || t == Expense
}

type Account struct {
	TenantID    string      `json:"tenant_id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        AccountType `json:"type"`
	Subtype     string      `json:"subtype,omitempty"`
	ParentCode  string      `json:"parent_code,omitempty"`
	IsSystem    bool        `json:"is_system"`
	IsContra    bool        `json:"is_contra"`
	IsParent    bool        `json:"is_parent"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// DebitNormal reports the natural side of the account, taking contra accounts into account.
func (a Account) DebitNormal() bool {
	return a.Type.DebitNormal() != a.IsContra
}

// SourceType names the business document that caused a journal entry.
type SourceType string

const (
	SourceExpense             SourceType = "EXPENSE"
	SourceIncome              SourceType = "INCOME"
	SourceCheque              SourceType = "CHEQUE"
	SourceDeposit             SourceType = "DEPOSIT"
	SourceTransfer            SourceType = "TRANSFER"
	SourceInventoryAdjustment SourceType = "INVENTORY_ADJUSTMENT"
	SourceInvoice             SourceType = "INVOICE"
	SourcePurchase            SourceType = "PURCHASE"
)

var SourceTypes = []SourceType{
	SourceExpense, SourceIncome, SourceCheque, SourceDeposit,
	SourceTransfer, SourceInventoryAdjustment, SourceInvoice, SourcePurchase,
}

func (s SourceType) Valid() bool {
	for _, v := range SourceTypes {
		if v == s {
			return true
		}
	}
	return false
}

// JournalEntry is posted once, with all its lines, and never modified afterwards.
type JournalEntry struct {
	ID              int64         `json:"id"`
	TenantID        string        `json:"tenant_id"`
	Date            time.Time     `json:"date"`
	Memo            string        `json:"memo"`
	SourceType      SourceType    `json:"source_type"`
	SourceID        string        `json:"source_id,omitempty"`
	IdempotencyKey  string        `json:"idempotency_key,omitempty"`
	ReversesEntryID *int64        `json:"reverses_entry_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Lines           []JournalLine `json:"lines"`
}

type JournalLine struct {
	LineNo      int             `json:"line_no"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// Totals returns the debit and credit sums of the entry.
func (e *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// PostingLine is a journal line joined with its entry header, as read by reports.
type PostingLine struct {
	EntryID     int64
	Date        time.Time
	Memo        string
	SourceType  SourceType
	SourceID    string
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// LineFilter restricts the posting lines returned by a store. Zero values mean unbounded.
type LineFilter struct {
	From         time.Time
	To           time.Time
	AccountCodes []string
	SourceType   SourceType
}

// EntryFilter restricts ListEntries.
type EntryFilter struct {
	From        time.Time
	To          time.Time
	SourceType  SourceType
	AccountCode string
	Limit       int
}

// Policy holds the tenant-independent posting rules configured for the process.
type Policy struct {
	LeafOnlyPosting    bool
	AllowNegativeStock bool
}

// DefaultPolicy is leaf-only posting and no negative stock.
func DefaultPolicy() Policy {
	return Policy{LeafOnlyPosting: true}
}
