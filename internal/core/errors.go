package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a rejected ledger operation. Codes are stable and travel over the wire.
type ErrorCode string

const (
	CodeUnbalancedEntry     ErrorCode = "UNBALANCED_ENTRY"
	CodeInvalidAccount      ErrorCode = "INVALID_ACCOUNT"
	CodeZeroAmountLine      ErrorCode = "ZERO_AMOUNT_LINE"
	CodeInvalidLine         ErrorCode = "INVALID_LINE"
	CodeAccountNotFound     ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeAccountInactive     ErrorCode = "ACCOUNT_INACTIVE"
	CodeAccountIsParentOnly ErrorCode = "ACCOUNT_IS_PARENT_ONLY"
	CodeAccountInUse        ErrorCode = "ACCOUNT_IN_USE"
	CodeSystemAccount       ErrorCode = "SYSTEM_ACCOUNT_PROTECTED"
	CodeDuplicateAccount    ErrorCode = "DUPLICATE_ACCOUNT"
	CodeNegativeStock       ErrorCode = "NEGATIVE_STOCK_ERROR"
	CodeItemNotFound        ErrorCode = "ITEM_NOT_FOUND"
	CodeItemInactive        ErrorCode = "ITEM_INACTIVE"
	CodeDuplicateItem       ErrorCode = "DUPLICATE_ITEM"
	CodeEntryNotFound       ErrorCode = "ENTRY_NOT_FOUND"
	CodeAlreadyReversed     ErrorCode = "ALREADY_REVERSED"
	CodeDuplicateRequest    ErrorCode = "DUPLICATE_REQUEST"
	CodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	CodeIntegrityViolation  ErrorCode = "INTEGRITY_VIOLATION"
)

// Error is the error type returned for every rejected ledger operation.
// Reason narrows Code when the same code has several causes
// (INVALID_ACCOUNT caused by ACCOUNT_INACTIVE, for example).
type Error struct {
	Code        ErrorCode
	Reason      ErrorCode
	Message     string
	Line        int // 1-based line number, 0 when not line specific
	AccountCode string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Reason != "" && e.Reason != e.Code {
		b.WriteString("(" + string(e.Reason) + ")")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.AccountCode != "" {
		fmt.Fprintf(&b, " account %s", e.AccountCode)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// Is matches another *Error by code, so errors.Is(err, ErrUnbalancedEntry) works
// for any unbalanced-entry error regardless of its message. A target's code also
// matches this error's Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code || (e.Reason != "" && t.Code == e.Reason)
}

// Sentinels for errors.Is.
var (
	ErrUnbalancedEntry     = &Error{Code: CodeUnbalancedEntry}
	ErrInvalidAccount      = &Error{Code: CodeInvalidAccount}
	ErrZeroAmountLine      = &Error{Code: CodeZeroAmountLine}
	ErrInvalidLine         = &Error{Code: CodeInvalidLine}
	ErrAccountNotFound     = &Error{Code: CodeAccountNotFound}
	ErrAccountInactive     = &Error{Code: CodeAccountInactive}
	ErrAccountIsParentOnly = &Error{Code: CodeAccountIsParentOnly}
	ErrAccountInUse        = &Error{Code: CodeAccountInUse}
	ErrSystemAccount       = &Error{Code: CodeSystemAccount}
	ErrDuplicateAccount    = &Error{Code: CodeDuplicateAccount}
	ErrNegativeStock       = &Error{Code: CodeNegativeStock}
	ErrItemNotFound        = &Error{Code: CodeItemNotFound}
	ErrItemInactive        = &Error{Code: CodeItemInactive}
	ErrDuplicateItem       = &Error{Code: CodeDuplicateItem}
	ErrEntryNotFound       = &Error{Code: CodeEntryNotFound}
	ErrAlreadyReversed     = &Error{Code: CodeAlreadyReversed}
	ErrDuplicateRequest    = &Error{Code: CodeDuplicateRequest}
	ErrInvalidRequest      = &Error{Code: CodeInvalidRequest}
	ErrIntegrityViolation  = &Error{Code: CodeIntegrityViolation}
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// invalidRequest is shorthand for the most common rejection.
func invalidRequest(format string, args ...any) *Error {
	return newError(CodeInvalidRequest, format, args...)
}

// AsError extracts the first *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
