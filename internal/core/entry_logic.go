package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// PostRequest is a caller's request to post one journal entry.
type PostRequest struct {
	Date           time.Time
	Memo           string
	SourceType     SourceType
	SourceID       string
	IdempotencyKey string
	Lines          []PostLine

	reverses *int64
	// fromMovement marks entries built by the inventory service for a stock movement.
	fromMovement bool
}

// PostLine is one requested debit or credit. Exactly one of Debit and Credit must be positive.
type PostLine struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
}

// Normalize cleans up caller input before validation.
func (r *PostRequest) Normalize() {
	r.Memo = strings.TrimSpace(r.Memo)
	r.SourceType = SourceType(strings.ToUpper(strings.TrimSpace(string(r.SourceType))))
	r.SourceID = strings.TrimSpace(r.SourceID)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	if !r.Date.IsZero() {
		r.Date = Day(r.Date)
	}
	for i := range r.Lines {
		r.Lines[i].AccountCode = strings.TrimSpace(r.Lines[i].AccountCode)
		r.Lines[i].Memo = strings.TrimSpace(r.Lines[i].Memo)
	}
}

// Validate enforces the structural rules of a journal entry: a date, a known source
// type, at least two lines, exactly one positive side per line in whole minor units,
// and debits equal to credits. Every violation is reported, not just the first.
func (r *PostRequest) Validate() error {
	var errs error

	if r.Date.IsZero() {
		errs = multierr.Append(errs, invalidRequest("entry date is required"))
	}
	if !r.SourceType.Valid() {
		errs = multierr.Append(errs, invalidRequest("unknown source type %q", r.SourceType))
	}
	if len(r.Lines) < 2 {
		errs = multierr.Append(errs, invalidRequest("an entry needs at least 2 lines, got %d", len(r.Lines)))
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	amountsValid := true

	for i, line := range r.Lines {
		n := i + 1
		if line.AccountCode == "" {
			errs = multierr.Append(errs, &Error{Code: CodeInvalidAccount, Reason: CodeAccountNotFound, Line: n, Message: "account code is required"})
		}

		switch {
		case line.Debit.IsNegative() || line.Credit.IsNegative():
			amountsValid = false
			errs = multierr.Append(errs, &Error{Code: CodeInvalidLine, Line: n, AccountCode: line.AccountCode, Message: "amounts cannot be negative"})
		case line.Debit.IsZero() && line.Credit.IsZero():
			amountsValid = false
			errs = multierr.Append(errs, &Error{Code: CodeZeroAmountLine, Line: n, AccountCode: line.AccountCode, Message: "line has neither a debit nor a credit"})
		case line.Debit.IsPositive() && line.Credit.IsPositive():
			amountsValid = false
			errs = multierr.Append(errs, &Error{Code: CodeInvalidLine, Line: n, AccountCode: line.AccountCode, Message: "a line cannot debit and credit the same account"})
		case !IsMinorUnit(line.Debit) || !IsMinorUnit(line.Credit):
			amountsValid = false
			errs = multierr.Append(errs, &Error{Code: CodeInvalidLine, Line: n, AccountCode: line.AccountCode,
				Message: fmt.Sprintf("amount has more than %d decimal places", AmountScale)})
		}

		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}

	if amountsValid && len(r.Lines) >= 2 && !totalDebit.Equal(totalCredit) {
		errs = multierr.Append(errs, &Error{Code: CodeUnbalancedEntry,
			Message: fmt.Sprintf("debits %s != credits %s (difference %s)",
				totalDebit.StringFixed(AmountScale), totalCredit.StringFixed(AmountScale),
				totalDebit.Sub(totalCredit).Abs().StringFixed(AmountScale))})
	}

	return errs
}

// toEntry converts a validated request into the entry that will be persisted.
func (r *PostRequest) toEntry(tenantID string) *JournalEntry {
	e := &JournalEntry{
		TenantID:        tenantID,
		Date:            r.Date,
		Memo:            r.Memo,
		SourceType:      r.SourceType,
		SourceID:        r.SourceID,
		IdempotencyKey:  r.IdempotencyKey,
		ReversesEntryID: r.reverses,
		Lines:           make([]JournalLine, 0, len(r.Lines)),
	}
	for i, l := range r.Lines {
		e.Lines = append(e.Lines, JournalLine{
			LineNo:      i + 1,
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Memo:        l.Memo,
		})
	}
	return e
}

// checkBalanced is the last check before an entry reaches the store. A failure here
// means a caller inside this package built a bad entry.
func checkBalanced(e *JournalEntry) error {
	debit, credit := e.Totals()
	if len(e.Lines) < 2 || !debit.Equal(credit) || debit.IsZero() {
		return &Error{Code: CodeIntegrityViolation,
			Message: fmt.Sprintf("refusing to persist entry with %d lines, debits %s, credits %s", len(e.Lines), debit, credit)}
	}
	for _, l := range e.Lines {
		if l.Debit.IsPositive() == l.Credit.IsPositive() || l.Debit.IsNegative() || l.Credit.IsNegative() {
			return &Error{Code: CodeIntegrityViolation, Line: l.LineNo, AccountCode: l.AccountCode,
				Message: "line must have exactly one positive side"}
		}
	}
	return nil
}
