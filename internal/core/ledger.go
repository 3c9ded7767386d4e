package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LedgerService posts and reads journal entries.
type LedgerService interface {
	Post(ctx context.Context, tenantID string, req PostRequest) (*JournalEntry, error)
	PostInTx(ctx context.Context, tx Tx, tenantID string, req PostRequest) (*JournalEntry, error)
	PostTemplate(ctx context.Context, tenantID string, t TemplateRequest) (*JournalEntry, error)
	Reverse(ctx context.Context, tenantID string, entryID int64, date time.Time, memo string) (*JournalEntry, error)
	GetEntry(ctx context.Context, tenantID string, id int64) (*JournalEntry, error)
	ListEntries(ctx context.Context, tenantID string, f EntryFilter) ([]JournalEntry, error)
}

type Ledger struct {
	store  Store
	rules  RuleTable
	policy Policy
	log    *zap.Logger
	rec    Recorder
}

func NewLedger(store Store, rules RuleTable, policy Policy, logger *zap.Logger, rec Recorder) *Ledger {
	logger, rec = orNop(logger, rec)
	return &Ledger{store: store, rules: rules, policy: policy, log: logger.Named("ledger"), rec: rec}
}

// Post validates req and persists it as one entry. Either the entry and all of its
// lines are stored, or nothing is.
func (l *Ledger) Post(ctx context.Context, tenantID string, req PostRequest) (*JournalEntry, error) {
	var entry *JournalEntry
	err := l.validateRequest(tenantID, &req)
	if err == nil {
		err = l.store.InTx(ctx, func(tx Tx) error {
			var err error
			entry, err = l.post(ctx, tx, tenantID, req, true)
			return err
		})
	}
	l.rec.EntryPosted(req.SourceType, outcomeOf(err))
	if err != nil {
		l.log.Debug("journal entry rejected", zap.String("tenant", tenantID), zap.String("source_type", string(req.SourceType)), zap.Error(err))
		return nil, err
	}

	l.log.Info("journal entry posted",
		zap.String("tenant", tenantID),
		zap.Int64("entry_id", entry.ID),
		zap.String("source_type", string(entry.SourceType)),
		zap.Int("lines", len(entry.Lines)),
	)
	return entry, nil
}

// PostInTx posts req inside a transaction owned by the caller, so the entry commits
// together with whatever else the caller writes (an inventory movement, for example).
func (l *Ledger) PostInTx(ctx context.Context, tx Tx, tenantID string, req PostRequest) (*JournalEntry, error) {
	if err := l.validateRequest(tenantID, &req); err != nil {
		return nil, err
	}
	return l.post(ctx, tx, tenantID, req, true)
}

// PostTemplate expands a business document through the rule table and posts it.
func (l *Ledger) PostTemplate(ctx context.Context, tenantID string, t TemplateRequest) (*JournalEntry, error) {
	req, err := BuildEntry(l.rules, t)
	if err != nil {
		l.rec.EntryPosted(t.SourceType, outcomeOf(err))
		return nil, err
	}
	return l.Post(ctx, tenantID, req)
}

func (l *Ledger) validateRequest(tenantID string, req *PostRequest) error {
	if tenantID == "" {
		return invalidRequest("tenant is required")
	}
	req.Normalize()
	if req.SourceType == SourceInventoryAdjustment && !req.fromMovement {
		return invalidRequest("%s entries are posted by recording a stock movement", SourceInventoryAdjustment)
	}
	return req.Validate()
}

// post runs the checks that need the store and inserts the entry. requireActive is
// false only for reversals, which may touch accounts deactivated since the original
// posting.
func (l *Ledger) post(ctx context.Context, tx Tx, tenantID string, req PostRequest, requireActive bool) (*JournalEntry, error) {
	accounts, err := tx.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart of accounts: %w", err)
	}
	chart := NewChart(accounts)

	var errs error
	for i, line := range req.Lines {
		if err := l.checkAccount(chart, line.AccountCode, requireActive); err != nil {
			e, _ := AsError(err)
			errs = multierr.Append(errs, &Error{
				Code:        CodeInvalidAccount,
				Reason:      e.Code,
				Line:        i + 1,
				AccountCode: line.AccountCode,
				Message:     e.Message,
			})
		}
	}
	if errs != nil {
		return nil, errs
	}

	if req.IdempotencyKey != "" {
		existing, found, err := tx.FindEntryByIdempotencyKey(ctx, tenantID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if found {
			return nil, newError(CodeDuplicateRequest, "idempotency key %q already posted as entry %d", req.IdempotencyKey, existing)
		}
	}

	entry := req.toEntry(tenantID)
	if err := checkBalanced(entry); err != nil {
		l.integrityFault("entry_balance", tenantID, err)
		return nil, err
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return entry, nil
}

func (l *Ledger) checkAccount(chart *Chart, code string, requireActive bool) error {
	if requireActive {
		return chart.ValidateForPosting(code, l.policy.LeafOnlyPosting)
	}
	_, err := chart.Resolve(code)
	return err
}

func (l *Ledger) integrityFault(check, tenantID string, err error) {
	l.rec.IntegrityViolation(check)
	l.log.Error("integrity violation", zap.String("check", check), zap.String("tenant", tenantID), zap.Error(err))
}

// Reverse posts a new entry that mirrors entryID with debits and credits swapped.
// The original entry is left untouched and can be reversed only once.
func (l *Ledger) Reverse(ctx context.Context, tenantID string, entryID int64, date time.Time, memo string) (*JournalEntry, error) {
	var reversal *JournalEntry
	err := l.store.InTx(ctx, func(tx Tx) error {
		original, err := tx.GetEntry(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if original.SourceType == SourceInventoryAdjustment {
			return newError(CodeInvalidRequest, "entry %d books a stock movement; record a compensating movement instead", entryID)
		}
		if original.ReversesEntryID != nil {
			return newError(CodeInvalidRequest, "entry %d is itself a reversal of entry %d", entryID, *original.ReversesEntryID)
		}
		if by, found, err := tx.FindReversal(ctx, tenantID, entryID); err != nil {
			return fmt.Errorf("failed to check existing reversal: %w", err)
		} else if found {
			return newError(CodeAlreadyReversed, "entry %d was already reversed by entry %d", entryID, by)
		}

		req := reversalRequest(original, date, memo)
		req.Normalize()
		if err := req.Validate(); err != nil {
			return err
		}
		reversal, err = l.post(ctx, tx, tenantID, req, false)
		return err
	})
	l.rec.EntryReversed(outcomeOf(err))
	if err != nil {
		return nil, err
	}

	l.log.Info("journal entry reversed",
		zap.String("tenant", tenantID),
		zap.Int64("entry_id", entryID),
		zap.Int64("reversal_id", reversal.ID),
	)
	return reversal, nil
}

// reversalRequest mirrors original. The reversal is dated date, or the original date
// when date is zero.
func reversalRequest(original *JournalEntry, date time.Time, memo string) PostRequest {
	if date.IsZero() {
		date = original.Date
	}
	text := fmt.Sprintf("Reversal of entry %d", original.ID)
	if memo != "" {
		text += ": " + memo
	}
	id := original.ID
	req := PostRequest{
		Date:       date,
		Memo:       text,
		SourceType: original.SourceType,
		SourceID:   original.SourceID,
		Lines:      make([]PostLine, 0, len(original.Lines)),
		reverses:   &id,
	}
	for _, line := range original.Lines {
		req.Lines = append(req.Lines, PostLine{
			AccountCode: line.AccountCode,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Memo:        line.Memo,
		})
	}
	return req
}

func (l *Ledger) GetEntry(ctx context.Context, tenantID string, id int64) (*JournalEntry, error) {
	return l.store.GetEntry(ctx, tenantID, id)
}

func (l *Ledger) ListEntries(ctx context.Context, tenantID string, f EntryFilter) ([]JournalEntry, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, invalidRequest("date range ends before it starts")
	}
	return l.store.ListEntries(ctx, tenantID, f)
}
