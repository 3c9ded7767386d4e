package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the number of minor-unit digits carried by every posted amount.
	AmountScale = 2
	// CostScale is the precision of weighted-average unit costs.
	CostScale = 6
	// QuantityScale is the precision of stock quantities.
	QuantityScale = 4

	DateLayout = "2006-01-02"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a decimal string and rejects values finer than the minor unit.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !IsMinorUnit(d) {
		return decimal.Zero, fmt.Errorf("amount %s has more than %d decimal places", s, AmountScale)
	}
	return d, nil
}

// IsMinorUnit reports whether d is representable in whole minor units.
func IsMinorUnit(d decimal.Decimal) bool {
	return d.Equal(d.Round(AmountScale))
}

// fitsScale reports whether d has at most places decimal digits.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// RoundAmount rounds a computed value to minor units.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// Day truncates t to midnight UTC. Ledger dates carry no time of day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthRange returns the first and last day of a calendar month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}
