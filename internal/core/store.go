package core

import "context"

// Reader is the read side of ledger storage. Implementations return committed data only.
type Reader interface {
	ListAccounts(ctx context.Context, tenantID string) ([]Account, error)
	// AccountHasPostings reports whether any journal line references code.
	AccountHasPostings(ctx context.Context, tenantID, code string) (bool, error)

	// GetEntry returns ErrEntryNotFound when the entry does not exist for the tenant.
	GetEntry(ctx context.Context, tenantID string, id int64) (*JournalEntry, error)
	// ListEntries returns entries ordered by date, then id.
	ListEntries(ctx context.Context, tenantID string, f EntryFilter) ([]JournalEntry, error)
	// ListPostingLines returns lines ordered by entry date, then entry id, then line number.
	ListPostingLines(ctx context.Context, tenantID string, f LineFilter) ([]PostingLine, error)

	// GetItem returns ErrItemNotFound when the item does not exist for the tenant.
	GetItem(ctx context.Context, tenantID string, id int64) (*InventoryItem, error)
	ListItems(ctx context.Context, tenantID string, includeInactive bool) ([]InventoryItem, error)
	// ListMovements returns movements ordered by date, then id.
	ListMovements(ctx context.Context, tenantID string, f MovementFilter) ([]InventoryMovement, error)
}

// Tx is a unit of work. Everything written through a Tx becomes visible together
// when the surrounding InTx returns nil, and not at all otherwise.
type Tx interface {
	Reader

	InsertAccount(ctx context.Context, a *Account) error
	UpdateAccount(ctx context.Context, a *Account) error
	DeleteAccount(ctx context.Context, tenantID, code string) error

	// InsertEntry persists the entry and its lines, assigning ID and CreatedAt.
	InsertEntry(ctx context.Context, e *JournalEntry) error
	FindEntryByIdempotencyKey(ctx context.Context, tenantID, key string) (int64, bool, error)
	// FindReversal returns the id of the entry reversing entryID, if any.
	FindReversal(ctx context.Context, tenantID string, entryID int64) (int64, bool, error)

	InsertItem(ctx context.Context, it *InventoryItem) error
	// LockItem reads the item and holds it exclusively until the transaction ends.
	LockItem(ctx context.Context, tenantID string, id int64) (*InventoryItem, error)
	UpdateItem(ctx context.Context, it *InventoryItem) error
	InsertMovement(ctx context.Context, m *InventoryMovement) error
	FindMovementByIdempotencyKey(ctx context.Context, tenantID, key string) (int64, bool, error)
}

// Store is ledger storage with transactional writes.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
