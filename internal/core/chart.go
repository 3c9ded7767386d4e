package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Chart is an immutable snapshot of one tenant's chart of accounts, indexed by code
// with a parent→children index built once at construction.
type Chart struct {
	accounts []Account
	byCode   map[string]Account
	children map[string][]string
	roots    []string
}

// NewChart indexes accounts. Accounts whose parent is missing are treated as roots.
func NewChart(accounts []Account) *Chart {
	sorted := make([]Account, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	c := &Chart{
		accounts: sorted,
		byCode:   make(map[string]Account, len(sorted)),
		children: make(map[string][]string),
	}
	for _, a := range sorted {
		c.byCode[a.Code] = a
	}
	for _, a := range sorted {
		if _, ok := c.byCode[a.ParentCode]; a.ParentCode != "" && ok && a.ParentCode != a.Code {
			c.children[a.ParentCode] = append(c.children[a.ParentCode], a.Code)
			continue
		}
		c.roots = append(c.roots, a.Code)
	}
	return c
}

// Accounts returns every account ordered by code.
func (c *Chart) Accounts() []Account {
	return c.accounts
}

// Resolve returns the account for code or an ACCOUNT_NOT_FOUND error.
func (c *Chart) Resolve(code string) (Account, error) {
	a, ok := c.byCode[code]
	if !ok {
		return Account{}, &Error{Code: CodeAccountNotFound, AccountCode: code, Message: "no such account in chart"}
	}
	return a, nil
}

// Children returns the direct children of code ordered by code.
func (c *Chart) Children(code string) []Account {
	codes := c.children[code]
	out := make([]Account, 0, len(codes))
	for _, cc := range codes {
		out = append(out, c.byCode[cc])
	}
	return out
}

// Descendants returns every account below code, depth first.
func (c *Chart) Descendants(code string) []Account {
	var out []Account
	seen := map[string]bool{code: true}
	var walk func(string)
	walk = func(p string) {
		for _, cc := range c.children[p] {
			if seen[cc] {
				continue
			}
			seen[cc] = true
			out = append(out, c.byCode[cc])
			walk(cc)
		}
	}
	walk(code)
	return out
}

// ValidateForPosting checks that code can receive a new journal line.
func (c *Chart) ValidateForPosting(code string, leafOnly bool) error {
	a, err := c.Resolve(code)
	if err != nil {
		return err
	}
	if !a.IsActive {
		return &Error{Code: CodeAccountInactive, AccountCode: code, Message: fmt.Sprintf("%s is deactivated for new postings", a.Name)}
	}
	if leafOnly && (a.IsParent || len(c.children[code]) > 0) {
		return &Error{Code: CodeAccountIsParentOnly, AccountCode: code, Message: fmt.Sprintf("%s is a summary account, post to one of its children", a.Name)}
	}
	return nil
}

// Walk visits accounts of the given type in tree order, parents before children.
func (c *Chart) Walk(t AccountType, fn func(a Account, depth int)) {
	seen := make(map[string]bool)
	var visit func(code string, depth int)
	visit = func(code string, depth int) {
		if seen[code] {
			return
		}
		seen[code] = true
		fn(c.byCode[code], depth)
		for _, cc := range c.children[code] {
			visit(cc, depth+1)
		}
	}
	for _, r := range c.roots {
		if c.byCode[r].Type == t {
			visit(r, 0)
		}
	}
}

// Rollup returns, for every account, its own amount plus the amounts of all of its
// descendants. Accounts absent from own count as zero.
func (c *Chart) Rollup(own map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.accounts))
	var sum func(code string, path map[string]bool) decimal.Decimal
	sum = func(code string, path map[string]bool) decimal.Decimal {
		if v, ok := out[code]; ok {
			return v
		}
		total := own[code]
		path[code] = true
		for _, cc := range c.children[code] {
			if path[cc] {
				continue
			}
			total = total.Add(sum(cc, path))
		}
		delete(path, code)
		out[code] = total
		return total
	}
	for _, a := range c.accounts {
		sum(a.Code, make(map[string]bool))
	}
	return out
}
