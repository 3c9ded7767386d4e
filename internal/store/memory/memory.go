// Package memory is an in-process core.Store. Writers are serialized and work on a
// copy of the state that replaces the live state only when the transaction succeeds,
// so readers always see committed data and a failed transaction leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finledger/internal/core"
)

type state struct {
	accounts  map[string]map[string]core.Account // tenant -> code -> account
	entries   []core.JournalEntry
	items     []core.InventoryItem
	movements []core.InventoryMovement

	nextEntryID    int64
	nextItemID     int64
	nextMovementID int64
}

func newState() *state {
	return &state{
		accounts:       make(map[string]map[string]core.Account),
		nextEntryID:    1,
		nextItemID:     1,
		nextMovementID: 1,
	}
}

// clone copies everything a transaction can modify. Journal lines are shared since
// entries are never modified after insertion.
func (s *state) clone() *state {
	c := *s
	c.accounts = make(map[string]map[string]core.Account, len(s.accounts))
	for tenant, byCode := range s.accounts {
		m := make(map[string]core.Account, len(byCode))
		for code, a := range byCode {
			m[code] = a
		}
		c.accounts[tenant] = m
	}
	c.entries = append([]core.JournalEntry(nil), s.entries...)
	c.items = append([]core.InventoryItem(nil), s.items...)
	c.movements = append([]core.InventoryMovement(nil), s.movements...)
	return &c
}

// Store is safe for concurrent use.
type Store struct {
	writer sync.Mutex
	mu     sync.RWMutex
	cur    *state
	now    func() time.Time
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{cur: newState(), now: time.Now}
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// InTx runs fn against a private copy of the state and publishes the copy if fn
// returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	s.writer.Lock()
	defer s.writer.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.snapshot().clone()
	if err := fn(&tx{state: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cur = work
	s.mu.Unlock()
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// Ping reports only context cancellation; memory is always reachable.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) ListAccounts(ctx context.Context, tenantID string) ([]core.Account, error) {
	return s.snapshot().listAccounts(tenantID), nil
}

func (s *Store) AccountHasPostings(ctx context.Context, tenantID, code string) (bool, error) {
	return s.snapshot().accountHasPostings(tenantID, code), nil
}

func (s *Store) GetEntry(ctx context.Context, tenantID string, id int64) (*core.JournalEntry, error) {
	return s.snapshot().getEntry(tenantID, id)
}

func (s *Store) ListEntries(ctx context.Context, tenantID string, f core.EntryFilter) ([]core.JournalEntry, error) {
	return s.snapshot().listEntries(tenantID, f), nil
}

func (s *Store) ListPostingLines(ctx context.Context, tenantID string, f core.LineFilter) ([]core.PostingLine, error) {
	return s.snapshot().listPostingLines(tenantID, f), nil
}

func (s *Store) GetItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error) {
	return s.snapshot().getItem(tenantID, id)
}

func (s *Store) ListItems(ctx context.Context, tenantID string, includeInactive bool) ([]core.InventoryItem, error) {
	return s.snapshot().listItems(tenantID, includeInactive), nil
}

func (s *Store) ListMovements(ctx context.Context, tenantID string, f core.MovementFilter) ([]core.InventoryMovement, error) {
	return s.snapshot().listMovements(tenantID, f), nil
}

func (s *state) listAccounts(tenantID string) []core.Account {
	out := make([]core.Account, 0, len(s.accounts[tenantID]))
	for _, a := range s.accounts[tenantID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *state) accountHasPostings(tenantID, code string) bool {
	for _, e := range s.entries {
		if e.TenantID != tenantID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountCode == code {
				return true
			}
		}
	}
	return false
}

func (s *state) getEntry(tenantID string, id int64) (*core.JournalEntry, error) {
	for _, e := range s.entries {
		if e.ID == id && e.TenantID == tenantID {
			return copyEntry(e), nil
		}
	}
	return nil, &core.Error{Code: core.CodeEntryNotFound, Message: "journal entry not found"}
}

func copyEntry(e core.JournalEntry) *core.JournalEntry {
	e.Lines = append([]core.JournalLine(nil), e.Lines...)
	return &e
}

func inRange(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

// sortedEntries returns the tenant's entries ordered by date, then id.
func (s *state) sortedEntries(tenantID string) []core.JournalEntry {
	var out []core.JournalEntry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) listEntries(tenantID string, f core.EntryFilter) []core.JournalEntry {
	out := []core.JournalEntry{}
	for _, e := range s.sortedEntries(tenantID) {
		if !inRange(e.Date, f.From, f.To) {
			continue
		}
		if f.SourceType != "" && e.SourceType != f.SourceType {
			continue
		}
		if f.AccountCode != "" && !touches(e, f.AccountCode) {
			continue
		}
		out = append(out, *copyEntry(e))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func touches(e core.JournalEntry, code string) bool {
	for _, l := range e.Lines {
		if l.AccountCode == code {
			return true
		}
	}
	return false
}

func (s *state) listPostingLines(tenantID string, f core.LineFilter) []core.PostingLine {
	var codes map[string]bool
	if len(f.AccountCodes) > 0 {
		codes = make(map[string]bool, len(f.AccountCodes))
		for _, c := range f.AccountCodes {
			codes[c] = true
		}
	}

	out := []core.PostingLine{}
	for _, e := range s.sortedEntries(tenantID) {
		if !inRange(e.Date, f.From, f.To) {
			continue
		}
		if f.SourceType != "" && e.SourceType != f.SourceType {
			continue
		}
		for _, l := range e.Lines {
			if codes != nil && !codes[l.AccountCode] {
				continue
			}
			out = append(out, core.PostingLine{
				EntryID:     e.ID,
				Date:        e.Date,
				Memo:        e.Memo,
				SourceType:  e.SourceType,
				SourceID:    e.SourceID,
				AccountCode: l.AccountCode,
				Debit:       l.Debit,
				Credit:      l.Credit,
			})
		}
	}
	return out
}

func (s *state) itemIndex(tenantID string, id int64) int {
	for i, it := range s.items {
		if it.ID == id && it.TenantID == tenantID {
			return i
		}
	}
	return -1
}

func (s *state) getItem(tenantID string, id int64) (*core.InventoryItem, error) {
	i := s.itemIndex(tenantID, id)
	if i < 0 {
		return nil, &core.Error{Code: core.CodeItemNotFound, Message: "inventory item not found"}
	}
	it := s.items[i]
	return &it, nil
}

func (s *state) listItems(tenantID string, includeInactive bool) []core.InventoryItem {
	out := []core.InventoryItem{}
	for _, it := range s.items {
		if it.TenantID == tenantID && (includeInactive || it.IsActive) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

func (s *state) listMovements(tenantID string, f core.MovementFilter) []core.InventoryMovement {
	out := []core.InventoryMovement{}
	for _, m := range s.movements {
		if m.TenantID != tenantID || (f.ItemID != 0 && m.ItemID != f.ItemID) || !inRange(m.Date, f.From, f.To) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ── Transaction ───────────────────────────────────────────────────────────────

type tx struct {
	*state
	now func() time.Time
}

func (t *tx) ListAccounts(ctx context.Context, tenantID string) ([]core.Account, error) {
	return t.listAccounts(tenantID), nil
}

func (t *tx) AccountHasPostings(ctx context.Context, tenantID, code string) (bool, error) {
	return t.accountHasPostings(tenantID, code), nil
}

func (t *tx) GetEntry(ctx context.Context, tenantID string, id int64) (*core.JournalEntry, error) {
	return t.getEntry(tenantID, id)
}

func (t *tx) ListEntries(ctx context.Context, tenantID string, f core.EntryFilter) ([]core.JournalEntry, error) {
	return t.listEntries(tenantID, f), nil
}

func (t *tx) ListPostingLines(ctx context.Context, tenantID string, f core.LineFilter) ([]core.PostingLine, error) {
	return t.listPostingLines(tenantID, f), nil
}

func (t *tx) GetItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error) {
	return t.getItem(tenantID, id)
}

func (t *tx) ListItems(ctx context.Context, tenantID string, includeInactive bool) ([]core.InventoryItem, error) {
	return t.listItems(tenantID, includeInactive), nil
}

func (t *tx) ListMovements(ctx context.Context, tenantID string, f core.MovementFilter) ([]core.InventoryMovement, error) {
	return t.listMovements(tenantID, f), nil
}

func (t *tx) InsertAccount(ctx context.Context, a *core.Account) error {
	byCode, ok := t.accounts[a.TenantID]
	if !ok {
		byCode = make(map[string]core.Account)
		t.accounts[a.TenantID] = byCode
	}
	if _, dup := byCode[a.Code]; dup {
		return &core.Error{Code: core.CodeDuplicateAccount, AccountCode: a.Code, Message: "account code already exists"}
	}
	now := t.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	byCode[a.Code] = *a
	return nil
}

func (t *tx) UpdateAccount(ctx context.Context, a *core.Account) error {
	cur, ok := t.accounts[a.TenantID][a.Code]
	if !ok {
		return &core.Error{Code: core.CodeAccountNotFound, AccountCode: a.Code, Message: "no such account in chart"}
	}
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = t.now().UTC()
	t.accounts[a.TenantID][a.Code] = *a
	return nil
}

func (t *tx) DeleteAccount(ctx context.Context, tenantID, code string) error {
	if _, ok := t.accounts[tenantID][code]; !ok {
		return &core.Error{Code: core.CodeAccountNotFound, AccountCode: code, Message: "no such account in chart"}
	}
	delete(t.accounts[tenantID], code)
	return nil
}

func (t *tx) InsertEntry(ctx context.Context, e *core.JournalEntry) error {
	if e.IdempotencyKey != "" {
		if id, found, _ := t.FindEntryByIdempotencyKey(ctx, e.TenantID, e.IdempotencyKey); found {
			return &core.Error{Code: core.CodeDuplicateRequest, Message: fmt.Sprintf("idempotency key already posted as entry %d", id)}
		}
	}
	e.ID = t.nextEntryID
	t.nextEntryID++
	e.CreatedAt = t.now().UTC()
	t.entries = append(t.entries, *copyEntry(*e))
	return nil
}

func (t *tx) FindEntryByIdempotencyKey(ctx context.Context, tenantID, key string) (int64, bool, error) {
	for _, e := range t.entries {
		if e.TenantID == tenantID && e.IdempotencyKey == key {
			return e.ID, true, nil
		}
	}
	return 0, false, nil
}

func (t *tx) FindReversal(ctx context.Context, tenantID string, entryID int64) (int64, bool, error) {
	for _, e := range t.entries {
		if e.TenantID == tenantID && e.ReversesEntryID != nil && *e.ReversesEntryID == entryID {
			return e.ID, true, nil
		}
	}
	return 0, false, nil
}

func (t *tx) InsertItem(ctx context.Context, it *core.InventoryItem) error {
	for _, cur := range t.items {
		if cur.TenantID == it.TenantID && strings.EqualFold(cur.SKU, it.SKU) {
			return &core.Error{Code: core.CodeDuplicateItem, Message: "sku " + it.SKU + " is already registered"}
		}
	}
	it.ID = t.nextItemID
	t.nextItemID++
	now := t.now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	t.items = append(t.items, *it)
	return nil
}

// LockItem needs no extra locking: the writer mutex is held for the whole transaction.
func (t *tx) LockItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error) {
	return t.getItem(tenantID, id)
}

func (t *tx) UpdateItem(ctx context.Context, it *core.InventoryItem) error {
	i := t.itemIndex(it.TenantID, it.ID)
	if i < 0 {
		return &core.Error{Code: core.CodeItemNotFound, Message: "inventory item not found"}
	}
	it.UpdatedAt = t.now().UTC()
	t.items[i] = *it
	return nil
}

func (t *tx) InsertMovement(ctx context.Context, m *core.InventoryMovement) error {
	if m.IdempotencyKey != "" {
		if id, found, _ := t.FindMovementByIdempotencyKey(ctx, m.TenantID, m.IdempotencyKey); found {
			return &core.Error{Code: core.CodeDuplicateRequest, Message: fmt.Sprintf("idempotency key already recorded as movement %d", id)}
		}
	}
	m.ID = t.nextMovementID
	t.nextMovementID++
	m.CreatedAt = t.now().UTC()
	t.movements = append(t.movements, *m)
	return nil
}

func (t *tx) FindMovementByIdempotencyKey(ctx context.Context, tenantID, key string) (int64, bool, error) {
	for _, m := range t.movements {
		if m.TenantID == tenantID && m.IdempotencyKey == key {
			return m.ID, true, nil
		}
	}
	return 0, false, nil
}
