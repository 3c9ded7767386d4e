package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account roles resolved through the rule table instead of hardcoded codes.
const (
	RoleInventory   = "INVENTORY"
	RoleInputTax    = "INPUT_TAX"
	RoleOutputTax   = "OUTPUT_TAX"
	RoleBankCharges = "BANK_CHARGES"
)

// AnyCategory is the fallback category of a source type.
const AnyCategory = "*"

// AccountPair is the default debit and credit account of a transaction template.
type AccountPair struct {
	Debit  string `yaml:"debit" json:"debit"`
	Credit string `yaml:"credit" json:"credit"`
}

// RuleTable maps business events onto account codes. It is plain data: lookups have
// no side effects and the table can be tested without a ledger.
type RuleTable struct {
	Templates map[SourceType]map[string]AccountPair
	Roles     map[string]string
	Reasons   map[Reason]string
}

// DefaultRules matches the default chart seeded by DefaultSeed.
func DefaultRules() RuleTable {
	return RuleTable{
		Templates: map[SourceType]map[string]AccountPair{
			SourceExpense: {
				"food":          {Debit: "6011", Credit: "1010"},
				"groceries":     {Debit: "6011", Credit: "1010"},
				"utilities":     {Debit: "6012", Credit: "1010"},
				"rent":          {Debit: "6013", Credit: "1020"},
				"transport":     {Debit: "6014", Credit: "1010"},
				"education":     {Debit: "6015", Credit: "1020"},
				"healthcare":    {Debit: "6016", Credit: "1010"},
				"entertainment": {Debit: "6017", Credit: "1010"},
				"office":        {Debit: "6021", Credit: "1010"},
				"bank_charges":  {Debit: "6022", Credit: "1020"},
				"salaries":      {Debit: "6023", Credit: "1020"},
				"marketing":     {Debit: "6024", Credit: "1020"},
				"depreciation":  {Debit: "6030", Credit: "1590"},
				AnyCategory:     {Debit: "6090", Credit: "1010"},
			},
			SourceIncome: {
				"salary":    {Debit: "1010", Credit: "4010"},
				"sales":     {Debit: "1010", Credit: "4020"},
				"interest":  {Debit: "1030", Credit: "4030"},
				"gift":      {Debit: "1010", Credit: "4040"},
				AnyCategory: {Debit: "1010", Credit: "4090"},
			},
			SourceCheque: {
				"expense":   {Debit: "6090", Credit: "1020"},
				AnyCategory: {Debit: "2010", Credit: "1020"},
			},
			SourceDeposit: {
				AnyCategory: {Debit: "1020", Credit: "1010"},
			},
			SourceTransfer: {
				"withdrawal": {Debit: "1010", Credit: "1020"},
				"savings":    {Debit: "1030", Credit: "1020"},
				AnyCategory:  {Debit: "1030", Credit: "1020"},
			},
			SourceInvoice: {
				"issue":     {Debit: "1100", Credit: "4020"},
				"payment":   {Debit: "1020", Credit: "1100"},
				AnyCategory: {Debit: "1100", Credit: "4020"},
			},
			SourcePurchase: {
				"inventory": {Debit: "1200", Credit: "2010"},
				"payment":   {Debit: "2010", Credit: "1020"},
				AnyCategory: {Debit: "6090", Credit: "2010"},
			},
		},
		Roles: map[string]string{
			RoleInventory:   "1200",
			RoleInputTax:    "1210",
			RoleOutputTax:   "2100",
			RoleBankCharges: "6022",
		},
		Reasons: map[Reason]string{
			ReasonPurchase:        "2010",
			ReasonFound:           "4910",
			ReasonOpeningStock:    "3010",
			ReasonCustomerReturn:  "5010",
			ReasonTransferIn:      "1250",
			ReasonSale:            "5010",
			ReasonDamaged:         "5020",
			ReasonTheft:           "5030",
			ReasonExpired:         "5040",
			ReasonSample:          "5050",
			ReasonSupplierReturn:  "2010",
			ReasonTransferOut:     "1250",
			ReasonCountAdjustment: "5060",
		},
	}
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.ReplaceAll(c, " ", "_")
	if c == "" {
		return AnyCategory
	}
	return c
}

// Resolve returns the default account pair for a source type and category, falling
// back to the source type's "*" entry.
func (r RuleTable) Resolve(source SourceType, category string) (AccountPair, error) {
	byCategory, ok := r.Templates[source]
	if !ok {
		return AccountPair{}, invalidRequest("no transaction template for source type %s", source)
	}
	if p, ok := byCategory[normalizeCategory(category)]; ok {
		return p, nil
	}
	if p, ok := byCategory[AnyCategory]; ok {
		return p, nil
	}
	return AccountPair{}, invalidRequest("no default accounts for %s category %q", source, category)
}

// DefaultDebitAccount is Resolve(...).Debit.
func (r RuleTable) DefaultDebitAccount(source SourceType, category string) (string, error) {
	p, err := r.Resolve(source, category)
	return p.Debit, err
}

// DefaultCreditAccount is Resolve(...).Credit.
func (r RuleTable) DefaultCreditAccount(source SourceType, category string) (string, error) {
	p, err := r.Resolve(source, category)
	return p.Credit, err
}

// Role returns the account code configured for a role such as INVENTORY.
func (r RuleTable) Role(role string) (string, error) {
	code, ok := r.Roles[role]
	if !ok || code == "" {
		return "", fmt.Errorf("no account rule for role %q", role)
	}
	return code, nil
}

// ReasonAccount returns the account on the other side of Inventory for a movement reason.
func (r RuleTable) ReasonAccount(reason Reason) (string, error) {
	code, ok := r.Reasons[reason]
	if !ok || code == "" {
		return "", fmt.Errorf("no account rule for movement reason %q", reason)
	}
	return code, nil
}

// TemplateRequest describes a business document that becomes a journal entry.
// DebitAccount and CreditAccount override the defaults ("paid from", "received into").
// Tax and Fee add extra lines.
type TemplateRequest struct {
	SourceType     SourceType
	Category       string
	Date           time.Time
	Memo           string
	SourceID       string
	IdempotencyKey string
	Amount         decimal.Decimal
	Tax            decimal.Decimal
	Fee            decimal.Decimal
	DebitAccount   string
	CreditAccount  string
}

// incoming reports whether money is received by the debit account of the template,
// in which case a bank fee is taken from that account.
func (t TemplateRequest) incoming() bool {
	switch t.SourceType {
	case SourceIncome, SourceDeposit:
		return true
	case SourceInvoice:
		return normalizeCategory(t.Category) == "payment"
	}
	return false
}

// BuildEntry turns a template request into a balanced PostRequest.
//
//	net only:   Dr debit amount            / Cr credit amount
//	input tax:  Dr debit amount, Dr tax    / Cr credit amount+tax   (EXPENSE, PURCHASE, CHEQUE)
//	output tax: Dr debit amount+tax        / Cr credit amount, Cr tax (INCOME, INVOICE issue)
//	fee:        Dr bank charges fee        / Cr paying account fee
func BuildEntry(rules RuleTable, t TemplateRequest) (PostRequest, error) {
	if t.SourceType == SourceInventoryAdjustment {
		return PostRequest{}, invalidRequest("inventory adjustments are posted by recording a stock movement")
	}
	if !t.Amount.IsPositive() {
		return PostRequest{}, invalidRequest("amount must be > 0, got %s", t.Amount)
	}
	if t.Tax.IsNegative() || t.Fee.IsNegative() {
		return PostRequest{}, invalidRequest("tax and fee cannot be negative")
	}
	for _, d := range []decimal.Decimal{t.Amount, t.Tax, t.Fee} {
		if !IsMinorUnit(d) {
			return PostRequest{}, invalidRequest("amount %s has more than %d decimal places", d, AmountScale)
		}
	}

	pair, err := rules.Resolve(t.SourceType, t.Category)
	if err != nil {
		return PostRequest{}, err
	}
	if code := strings.TrimSpace(t.DebitAccount); code != "" {
		pair.Debit = code
	}
	if code := strings.TrimSpace(t.CreditAccount); code != "" {
		pair.Credit = code
	}

	memo := t.Memo
	if memo == "" {
		memo = fmt.Sprintf("%s %s", strings.ToLower(string(t.SourceType)), normalizeCategory(t.Category))
	}
	req := PostRequest{
		Date:           t.Date,
		Memo:           memo,
		SourceType:     t.SourceType,
		SourceID:       t.SourceID,
		IdempotencyKey: t.IdempotencyKey,
	}

	if t.Tax.IsPositive() {
		switch t.SourceType {
		case SourceExpense, SourcePurchase, SourceCheque:
			taxAccount, err := rules.Role(RoleInputTax)
			if err != nil {
				return PostRequest{}, err
			}
			req.Lines = append(req.Lines,
				PostLine{AccountCode: pair.Debit, Debit: t.Amount},
				PostLine{AccountCode: taxAccount, Debit: t.Tax, Memo: "input tax"},
				PostLine{AccountCode: pair.Credit, Credit: t.Amount.Add(t.Tax)},
			)
		case SourceIncome, SourceInvoice:
			if t.incoming() && t.SourceType == SourceInvoice {
				return PostRequest{}, invalidRequest("tax belongs on the invoice, not on its payment")
			}
			taxAccount, err := rules.Role(RoleOutputTax)
			if err != nil {
				return PostRequest{}, err
			}
			req.Lines = append(req.Lines,
				PostLine{AccountCode: pair.Debit, Debit: t.Amount.Add(t.Tax)},
				PostLine{AccountCode: pair.Credit, Credit: t.Amount},
				PostLine{AccountCode: taxAccount, Credit: t.Tax, Memo: "output tax"},
			)
		default:
			return PostRequest{}, invalidRequest("%s does not carry tax", t.SourceType)
		}
	} else {
		req.Lines = append(req.Lines,
			PostLine{AccountCode: pair.Debit, Debit: t.Amount},
			PostLine{AccountCode: pair.Credit, Credit: t.Amount},
		)
	}

	if t.Fee.IsPositive() {
		feeAccount, err := rules.Role(RoleBankCharges)
		if err != nil {
			return PostRequest{}, err
		}
		payer := pair.Credit
		if t.incoming() {
			payer = pair.Debit
		}
		req.Lines = append(req.Lines,
			PostLine{AccountCode: feeAccount, Debit: t.Fee, Memo: "fee"},
			PostLine{AccountCode: payer, Credit: t.Fee, Memo: "fee"},
		)
	}

	return req, nil
}
