// Package postgres implements core.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finledger/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	reader
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{reader: reader{q: pool}, pool: pool}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx runs fn in one database transaction, committed when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{reader: reader{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(err, "failed to commit transaction")
	}
	return nil
}

// translate maps constraint violations onto ledger errors.
func translate(err error, msg string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	switch pgErr.Code {
	case "23505":
		switch {
		case strings.Contains(pgErr.ConstraintName, "idempotency"):
			return &core.Error{Code: core.CodeDuplicateRequest, Message: "idempotency key already used"}
		case strings.Contains(pgErr.ConstraintName, "reverses"):
			return &core.Error{Code: core.CodeAlreadyReversed, Message: "entry was already reversed"}
		case pgErr.ConstraintName == "accounts_pkey":
			return &core.Error{Code: core.CodeDuplicateAccount, Message: "account code already exists"}
		case pgErr.ConstraintName == "inventory_items_sku":
			return &core.Error{Code: core.CodeDuplicateItem, Message: "sku is already registered"}
		}
	case "23514":
		return &core.Error{Code: core.CodeIntegrityViolation, Message: pgErr.Message}
	case "23503":
		if strings.Contains(pgErr.ConstraintName, "account") {
			return &core.Error{Code: core.CodeAccountInUse, Message: pgErr.Message}
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ── Reads ─────────────────────────────────────────────────────────────────────

type reader struct {
	q querier
}

const accountColumns = `tenant_id, code, name, description, type, subtype, parent_code,
	is_system, is_contra, is_parent, is_active, created_at, updated_at`

func (r reader) ListAccounts(ctx context.Context, tenantID string) ([]core.Account, error) {
	rows, err := r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id = $1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var parent *string
		if err := rows.Scan(&a.TenantID, &a.Code, &a.Name, &a.Description, &a.Type, &a.Subtype, &parent,
			&a.IsSystem, &a.IsContra, &a.IsParent, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.ParentCode = deref(parent)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r reader) AccountHasPostings(ctx context.Context, tenantID, code string) (bool, error) {
	var used bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM journal_lines WHERE tenant_id = $1 AND account_code = $2)`,
		tenantID, code).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check account postings: %w", err)
	}
	return used, nil
}

const entryColumns = `id, tenant_id, entry_date, memo, source_type, source_id, idempotency_key, reverses_entry_id, created_at`

func scanEntry(row pgx.Row) (*core.JournalEntry, error) {
	var e core.JournalEntry
	var key *string
	if err := row.Scan(&e.ID, &e.TenantID, &e.Date, &e.Memo, &e.SourceType, &e.SourceID, &key, &e.ReversesEntryID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.IdempotencyKey = deref(key)
	return &e, nil
}

func (r reader) GetEntry(ctx context.Context, tenantID string, id int64) (*core.JournalEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &core.Error{Code: core.CodeEntryNotFound, Message: fmt.Sprintf("journal entry %d not found", id)}
		}
		return nil, fmt.Errorf("failed to fetch journal entry: %w", err)
	}
	entries := []core.JournalEntry{*e}
	if err := r.attachLines(ctx, entries); err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// attachLines loads the lines of entries in one query.
func (r reader) attachLines(ctx context.Context, entries []core.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, len(entries))
	index := make(map[int64]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		index[e.ID] = i
	}

	rows, err := r.q.Query(ctx, `
		SELECT entry_id, line_no, account_code, debit, credit, memo
		FROM journal_lines
		WHERE entry_id = ANY($1)
		ORDER BY entry_id, line_no
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query journal lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryID int64
		var l core.JournalLine
		if err := rows.Scan(&entryID, &l.LineNo, &l.AccountCode, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return fmt.Errorf("failed to scan journal line: %w", err)
		}
		i := index[entryID]
		entries[i].Lines = append(entries[i].Lines, l)
	}
	return rows.Err()
}

// where accumulates SQL conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	return strings.Join(w.conds, " AND ")
}

func (r reader) ListEntries(ctx context.Context, tenantID string, f core.EntryFilter) ([]core.JournalEntry, error) {
	w := &where{}
	w.add("e.tenant_id = ?", tenantID)
	if !f.From.IsZero() {
		w.add("e.entry_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("e.entry_date <= ?", f.To)
	}
	if f.SourceType != "" {
		w.add("e.source_type = ?", string(f.SourceType))
	}
	if f.AccountCode != "" {
		w.add("EXISTS (SELECT 1 FROM journal_lines l WHERE l.entry_id = e.id AND l.account_code = ?)", f.AccountCode)
	}
	sql := `SELECT ` + prefixed("e.", entryColumns) + ` FROM journal_entries e WHERE ` + w.String() + ` ORDER BY e.entry_date, e.id`
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.q.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	entries := []core.JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, *e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachLines(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (r reader) ListPostingLines(ctx context.Context, tenantID string, f core.LineFilter) ([]core.PostingLine, error) {
	w := &where{}
	w.add("e.tenant_id = ?", tenantID)
	if !f.From.IsZero() {
		w.add("e.entry_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("e.entry_date <= ?", f.To)
	}
	if f.SourceType != "" {
		w.add("e.source_type = ?", string(f.SourceType))
	}
	if len(f.AccountCodes) > 0 {
		w.add("l.account_code = ANY(?)", f.AccountCodes)
	}

	rows, err := r.q.Query(ctx, `
		SELECT e.id, e.entry_date, e.memo, e.source_type, e.source_id, l.account_code, l.debit, l.credit
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE `+w.String()+`
		ORDER BY e.entry_date, e.id, l.line_no
	`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posting lines: %w", err)
	}
	defer rows.Close()

	lines := []core.PostingLine{}
	for rows.Next() {
		var p core.PostingLine
		if err := rows.Scan(&p.EntryID, &p.Date, &p.Memo, &p.SourceType, &p.SourceID, &p.AccountCode, &p.Debit, &p.Credit); err != nil {
			return nil, fmt.Errorf("failed to scan posting line: %w", err)
		}
		lines = append(lines, p)
	}
	return lines, rows.Err()
}

const itemColumns = `id, tenant_id, sku, name, category, quantity_on_hand, weighted_average_cost,
	selling_price, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (*core.InventoryItem, error) {
	var it core.InventoryItem
	err := row.Scan(&it.ID, &it.TenantID, &it.SKU, &it.Name, &it.Category, &it.QuantityOnHand,
		&it.WeightedAverageCost, &it.SellingPrice, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	return &it, err
}

func (r reader) getItem(ctx context.Context, tenantID string, id int64, lock bool) (*core.InventoryItem, error) {
	sql := `SELECT ` + itemColumns + ` FROM inventory_items WHERE tenant_id = $1 AND id = $2`
	if lock {
		sql += ` FOR UPDATE`
	}
	it, err := scanItem(r.q.QueryRow(ctx, sql, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &core.Error{Code: core.CodeItemNotFound, Message: fmt.Sprintf("inventory item %d not found", id)}
		}
		return nil, fmt.Errorf("failed to fetch inventory item: %w", err)
	}
	return it, nil
}

func (r reader) GetItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error) {
	return r.getItem(ctx, tenantID, id, false)
}

func (r reader) ListItems(ctx context.Context, tenantID string, includeInactive bool) ([]core.InventoryItem, error) {
	sql := `SELECT ` + itemColumns + ` FROM inventory_items WHERE tenant_id = $1`
	if !includeInactive {
		sql += ` AND is_active`
	}
	rows, err := r.q.Query(ctx, sql+` ORDER BY sku`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory items: %w", err)
	}
	defer rows.Close()

	items := []core.InventoryItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r reader) ListMovements(ctx context.Context, tenantID string, f core.MovementFilter) ([]core.InventoryMovement, error) {
	w := &where{}
	w.add("tenant_id = ?", tenantID)
	if f.ItemID != 0 {
		w.add("item_id = ?", f.ItemID)
	}
	if !f.From.IsZero() {
		w.add("movement_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("movement_date <= ?", f.To)
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, tenant_id, item_id, movement_type, reason, quantity_delta, unit_cost, total_value,
		       quantity_after, cost_after, counter_account_code, movement_date, notes, idempotency_key,
		       linked_journal_entry_id, created_at
		FROM inventory_movements
		WHERE `+w.String()+`
		ORDER BY movement_date, id
	`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory movements: %w", err)
	}
	defer rows.Close()

	movements := []core.InventoryMovement{}
	for rows.Next() {
		var m core.InventoryMovement
		var key *string
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ItemID, &m.Type, &m.Reason, &m.QuantityDelta, &m.UnitCost, &m.TotalValue,
			&m.QuantityAfter, &m.CostAfter, &m.CounterAccountCode, &m.Date, &m.Notes, &key,
			&m.LinkedJournalEntryID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory movement: %w", err)
		}
		m.IdempotencyKey = deref(key)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ── Writes ────────────────────────────────────────────────────────────────────

type txStore struct {
	reader
}

func (t *txStore) InsertAccount(ctx context.Context, a *core.Account) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO accounts (tenant_id, code, name, description, type, subtype, parent_code, is_system, is_contra, is_parent, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, a.TenantID, a.Code, a.Name, a.Description, string(a.Type), a.Subtype, nullable(a.ParentCode),
		a.IsSystem, a.IsContra, a.IsParent, a.IsActive).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return translate(err, "failed to insert account")
	}
	return nil
}

func (t *txStore) UpdateAccount(ctx context.Context, a *core.Account) error {
	err := t.q.QueryRow(ctx, `
		UPDATE accounts
		SET name = $3, description = $4, subtype = $5, is_active = $6, updated_at = now()
		WHERE tenant_id = $1 AND code = $2
		RETURNING created_at, updated_at
	`, a.TenantID, a.Code, a.Name, a.Description, a.Subtype, a.IsActive).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &core.Error{Code: core.CodeAccountNotFound, AccountCode: a.Code, Message: "no such account in chart"}
		}
		return translate(err, "failed to update account")
	}
	return nil
}

func (t *txStore) DeleteAccount(ctx context.Context, tenantID, code string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM accounts WHERE tenant_id = $1 AND code = $2`, tenantID, code)
	if err != nil {
		return translate(err, "failed to delete account")
	}
	if tag.RowsAffected() == 0 {
		return &core.Error{Code: core.CodeAccountNotFound, AccountCode: code, Message: "no such account in chart"}
	}
	return nil
}

func (t *txStore) InsertEntry(ctx context.Context, e *core.JournalEntry) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO journal_entries (tenant_id, entry_date, memo, source_type, source_id, idempotency_key, reverses_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, e.TenantID, e.Date, e.Memo, string(e.SourceType), e.SourceID, nullable(e.IdempotencyKey), e.ReversesEntryID).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return translate(err, "failed to insert journal entry")
	}

	batch := &pgx.Batch{}
	for _, l := range e.Lines {
		batch.Queue(`
			INSERT INTO journal_lines (entry_id, line_no, tenant_id, account_code, debit, credit, memo)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, l.LineNo, e.TenantID, l.AccountCode, l.Debit, l.Credit, l.Memo)
	}
	if err := t.q.SendBatch(ctx, batch).Close(); err != nil {
		return translate(err, "failed to insert journal lines")
	}
	return nil
}

func (t *txStore) FindEntryByIdempotencyKey(ctx context.Context, tenantID, key string) (int64, bool, error) {
	return t.findID(ctx, `SELECT id FROM journal_entries WHERE tenant_id = $1 AND idempotency_key = $2`, tenantID, key)
}

func (t *txStore) FindReversal(ctx context.Context, tenantID string, entryID int64) (int64, bool, error) {
	return t.findID(ctx, `SELECT id FROM journal_entries WHERE tenant_id = $1 AND reverses_entry_id = $2`, tenantID, entryID)
}

func (t *txStore) FindMovementByIdempotencyKey(ctx context.Context, tenantID, key string) (int64, bool, error) {
	return t.findID(ctx, `SELECT id FROM inventory_movements WHERE tenant_id = $1 AND idempotency_key = $2`, tenantID, key)
}

func (t *txStore) findID(ctx context.Context, sql string, args ...any) (int64, bool, error) {
	var id int64
	if err := t.q.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (t *txStore) InsertItem(ctx context.Context, it *core.InventoryItem) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO inventory_items (tenant_id, sku, name, category, quantity_on_hand, weighted_average_cost, selling_price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, it.TenantID, it.SKU, it.Name, it.Category, it.QuantityOnHand, it.WeightedAverageCost, it.SellingPrice, it.IsActive).
		Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return translate(err, "failed to insert inventory item")
	}
	return nil
}

// LockItem takes a row lock held until the transaction ends, serializing concurrent
// movements of the same item.
func (t *txStore) LockItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error) {
	return t.getItem(ctx, tenantID, id, true)
}

func (t *txStore) UpdateItem(ctx context.Context, it *core.InventoryItem) error {
	err := t.q.QueryRow(ctx, `
		UPDATE inventory_items
		SET quantity_on_hand = $3, weighted_average_cost = $4, selling_price = $5, is_active = $6, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at
	`, it.TenantID, it.ID, it.QuantityOnHand, it.WeightedAverageCost, it.SellingPrice, it.IsActive).Scan(&it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &core.Error{Code: core.CodeItemNotFound, Message: fmt.Sprintf("inventory item %d not found", it.ID)}
		}
		return translate(err, "failed to update inventory item")
	}
	return nil
}

func (t *txStore) InsertMovement(ctx context.Context, m *core.InventoryMovement) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO inventory_movements (tenant_id, item_id, movement_type, reason, quantity_delta, unit_cost, total_value,
			quantity_after, cost_after, counter_account_code, movement_date, notes, idempotency_key, linked_journal_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`, m.TenantID, m.ItemID, string(m.Type), string(m.Reason), m.QuantityDelta, m.UnitCost, m.TotalValue,
		m.QuantityAfter, m.CostAfter, m.CounterAccountCode, m.Date, m.Notes, nullable(m.IdempotencyKey), m.LinkedJournalEntryID).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return translate(err, "failed to insert inventory movement")
	}
	return nil
}
