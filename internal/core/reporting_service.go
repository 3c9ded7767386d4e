package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ── Report types ──────────────────────────────────────────────────────────────

// TrialBalanceRow is one account of a trial balance. Debit and Credit are the posted
// totals, including descendants for parent accounts. Balance is signed by the
// account's natural side: positive means a normal balance.
type TrialBalanceRow struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Type       AccountType     `json:"type"`
	ParentCode string          `json:"parent_code,omitempty"`
	Depth      int             `json:"depth"`
	IsParent   bool            `json:"is_parent"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Balance    decimal.Decimal `json:"balance"`
}

// TrialBalance lists every account as of a day. TotalDebit and TotalCredit count each
// posting once, so IsBalanced holds exactly when the journal is balanced.
type TrialBalance struct {
	AsOf        time.Time         `json:"as_of"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	IsBalanced  bool              `json:"is_balanced"`
}

// ReportRow is an account line of a P&L or balance sheet. Amount is positive for a
// normal balance of the section (income earned, cost incurred, asset held, ...).
type ReportRow struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Depth    int             `json:"depth"`
	IsParent bool            `json:"is_parent"`
	Amount   decimal.Decimal `json:"amount"`
}

// ProfitAndLoss covers the inclusive day range [Start, End]. SavingsRate is NetIncome
// as a percentage of TotalIncome, or 0 when there is no income.
type ProfitAndLoss struct {
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Income        []ReportRow     `json:"income"`
	Expenses      []ReportRow     `json:"expenses"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
	SavingsRate   decimal.Decimal `json:"savings_rate"`
}

// BalanceSheet is the financial position at the end of AsOf. Income and expenses not
// yet closed to retained earnings appear as CurrentEarnings inside equity.
type BalanceSheet struct {
	AsOf             time.Time       `json:"as_of"`
	Assets           []ReportRow     `json:"assets"`
	Liabilities      []ReportRow     `json:"liabilities"`
	Equity           []ReportRow     `json:"equity"`
	CurrentEarnings  decimal.Decimal `json:"current_earnings"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	IsBalanced       bool            `json:"is_balanced"`
}

type COGSAccountLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type COGSReasonLine struct {
	Reason   Reason          `json:"reason"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// COGSReport reconciles the cost booked to expense accounts by inventory entries with
// the cost implied by the movements of the same period. ValuationVariance is
// (closing - opening) - (inflows - outflows) and is non-zero only through rounding
// of movement values.
type COGSReport struct {
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end"`
	ByAccount    []COGSAccountLine `json:"by_account"`
	ByReason     []COGSReasonLine  `json:"by_reason"`
	JournalCost  decimal.Decimal   `json:"journal_cost"`
	MovementCost decimal.Decimal   `json:"movement_cost"`
	Consistent   bool              `json:"consistent"`

	OpeningValue decimal.Decimal `json:"opening_value"`
	ClosingValue decimal.Decimal `json:"closing_value"`
	Inflows      decimal.Decimal `json:"inflows"`
	Outflows     decimal.Decimal `json:"outflows"`

	ValuationVariance decimal.Decimal `json:"valuation_variance"`
}

// StatementLine is one posting in an account statement. Balance is the running
// balance after the line, signed by the account's natural side.
type StatementLine struct {
	EntryID     int64           `json:"entry_id"`
	Date        time.Time       `json:"date"`
	Memo        string          `json:"memo"`
	SourceType  SourceType      `json:"source_type"`
	SourceID    string          `json:"source_id,omitempty"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type AccountStatement struct {
	Account        Account         `json:"account"`
	From           *time.Time      `json:"from,omitempty"`
	To             *time.Time      `json:"to,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Lines          []StatementLine `json:"lines"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService derives reports from posted entries on every call. Nothing is
// cached and nothing is written: an integrity fault is reported, logged and counted,
// never corrected.
type ReportingService interface {
	TrialBalance(ctx context.Context, tenantID string, asOf time.Time) (*TrialBalance, error)
	ProfitAndLoss(ctx context.Context, tenantID string, start, end time.Time) (*ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, tenantID string, asOf time.Time) (*BalanceSheet, error)
	COGSReport(ctx context.Context, tenantID string, start, end time.Time) (*COGSReport, error)
	// AccountStatement lists the postings of code (and of its descendants) in the
	// optional range, oldest first, with a running balance.
	AccountStatement(ctx context.Context, tenantID, code string, from, to *time.Time) (*AccountStatement, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	store Reader
	log   *zap.Logger
	rec   Recorder
	now   func() time.Time
}

func NewReportingService(store Reader, logger *zap.Logger, rec Recorder) ReportingService {
	logger, rec = orNop(logger, rec)
	return &reportingService{store: store, log: logger.Named("reports"), rec: rec, now: time.Now}
}

func (s *reportingService) observe(report string, start time.Time) {
	s.rec.ReportServed(report, time.Since(start))
}

func (s *reportingService) integrityFault(check, tenantID string, fields ...zap.Field) {
	s.rec.IntegrityViolation(check)
	s.log.Error("integrity violation", append([]zap.Field{zap.String("check", check), zap.String("tenant", tenantID)}, fields...)...)
}

func (s *reportingService) asOf(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	return Day(t)
}

func checkRange(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return start, end, invalidRequest("report range needs a start and an end date")
	}
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return start, end, invalidRequest("report range ends (%s) before it starts (%s)", end.Format(DateLayout), start.Format(DateLayout))
	}
	return start, end, nil
}

// load reads the chart and net debit (debit - credit) per account over the lines of f.
func (s *reportingService) load(ctx context.Context, tenantID string, f LineFilter) (*Chart, map[string]decimal.Decimal, []PostingLine, error) {
	accounts, err := s.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	lines, err := s.store.ListPostingLines(ctx, tenantID, f)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list posting lines: %w", err)
	}
	net := make(map[string]decimal.Decimal)
	for _, l := range lines {
		net[l.AccountCode] = net[l.AccountCode].Add(l.Debit).Sub(l.Credit)
	}
	return NewChart(accounts), net, lines, nil
}

// natural converts a net debit into the account's natural sign.
func natural(a Account, netDebit decimal.Decimal) decimal.Decimal {
	if a.DebitNormal() {
		return netDebit
	}
	return netDebit.Neg()
}

// ── TrialBalance ──────────────────────────────────────────────────────────────

func (s *reportingService) TrialBalance(ctx context.Context, tenantID string, asOf time.Time) (*TrialBalance, error) {
	defer s.observe("trial_balance", time.Now())
	asOf = s.asOf(asOf)

	chart, _, lines, err := s.load(ctx, tenantID, LineFilter{To: asOf})
	if err != nil {
		return nil, err
	}

	debits := make(map[string]decimal.Decimal)
	credits := make(map[string]decimal.Decimal)
	tb := &TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, l := range lines {
		debits[l.AccountCode] = debits[l.AccountCode].Add(l.Debit)
		credits[l.AccountCode] = credits[l.AccountCode].Add(l.Credit)
		tb.TotalDebit = tb.TotalDebit.Add(l.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(l.Credit)
	}
	rolledDebit := chart.Rollup(debits)
	rolledCredit := chart.Rollup(credits)

	for _, t := range AccountTypes {
		chart.Walk(t, func(a Account, depth int) {
			d, c := rolledDebit[a.Code], rolledCredit[a.Code]
			tb.Rows = append(tb.Rows, TrialBalanceRow{
				Code:       a.Code,
				Name:       a.Name,
				Type:       a.Type,
				ParentCode: a.ParentCode,
				Depth:      depth,
				IsParent:   a.IsParent || len(chart.Children(a.Code)) > 0,
				Debit:      d,
				Credit:     c,
				Balance:    natural(a, d.Sub(c)),
			})
		})
	}
	if tb.Rows == nil {
		tb.Rows = []TrialBalanceRow{}
	}

	tb.IsBalanced = tb.TotalDebit.Equal(tb.TotalCredit)
	if !tb.IsBalanced {
		s.integrityFault("trial_balance", tenantID,
			zap.String("as_of", asOf.Format(DateLayout)),
			zap.Stringer("total_debit", tb.TotalDebit),
			zap.Stringer("total_credit", tb.TotalCredit),
		)
	}
	return tb, nil
}

// section walks the accounts of one type and returns rows with rolled-up amounts in
// the section's sign. Accounts that roll up to zero are left out. The total sums the
// root accounts only, since their amounts already include every descendant.
func section(chart *Chart, t AccountType, rolled map[string]decimal.Decimal, sign func(decimal.Decimal) decimal.Decimal) ([]ReportRow, decimal.Decimal) {
	rows := []ReportRow{}
	total := decimal.Zero
	chart.Walk(t, func(a Account, depth int) {
		amount := sign(rolled[a.Code])
		if amount.IsZero() {
			return
		}
		if depth == 0 {
			total = total.Add(amount)
		}
		rows = append(rows, ReportRow{
			Code:     a.Code,
			Name:     a.Name,
			Depth:    depth,
			IsParent: a.IsParent || len(chart.Children(a.Code)) > 0,
			Amount:   amount,
		})
	})
	return rows, total
}

func debitPositive(d decimal.Decimal) decimal.Decimal  { return d }
func creditPositive(d decimal.Decimal) decimal.Decimal { return d.Neg() }

// ── ProfitAndLoss ─────────────────────────────────────────────────────────────

func (s *reportingService) ProfitAndLoss(ctx context.Context, tenantID string, start, end time.Time) (*ProfitAndLoss, error) {
	defer s.observe("profit_and_loss", time.Now())
	start, end, err := checkRange(start, end)
	if err != nil {
		return nil, err
	}

	chart, net, _, err := s.load(ctx, tenantID, LineFilter{From: start, To: end})
	if err != nil {
		return nil, err
	}
	rolled := chart.Rollup(net)

	pl := &ProfitAndLoss{Start: start, End: end}
	pl.Income, pl.TotalIncome = section(chart, Income, rolled, creditPositive)
	pl.Expenses, pl.TotalExpenses = section(chart, Expense, rolled, debitPositive)
	pl.NetIncome = pl.TotalIncome.Sub(pl.TotalExpenses)
	pl.SavingsRate = savingsRate(pl.NetIncome, pl.TotalIncome)
	return pl, nil
}

func savingsRate(net, income decimal.Decimal) decimal.Decimal {
	if income.IsZero() {
		return decimal.Zero
	}
	return net.Div(income).Mul(hundred).Round(2)
}

// ── BalanceSheet ──────────────────────────────────────────────────────────────

// CurrentEarningsCode labels the synthetic equity row carrying unclosed earnings.
const CurrentEarningsCode = "CURRENT_EARNINGS"

func (s *reportingService) BalanceSheet(ctx context.Context, tenantID string, asOf time.Time) (*BalanceSheet, error) {
	defer s.observe("balance_sheet", time.Now())
	asOf = s.asOf(asOf)

	chart, net, _, err := s.load(ctx, tenantID, LineFilter{To: asOf})
	if err != nil {
		return nil, err
	}
	rolled := chart.Rollup(net)

	bs := &BalanceSheet{AsOf: asOf}
	bs.Assets, bs.TotalAssets = section(chart, Asset, rolled, debitPositive)
	bs.Liabilities, bs.TotalLiabilities = section(chart, Liability, rolled, creditPositive)
	bs.Equity, bs.TotalEquity = section(chart, Equity, rolled, creditPositive)

	_, income := section(chart, Income, rolled, creditPositive)
	_, expenses := section(chart, Expense, rolled, debitPositive)
	bs.CurrentEarnings = income.Sub(expenses)
	if !bs.CurrentEarnings.IsZero() {
		bs.Equity = append(bs.Equity, ReportRow{Code: CurrentEarningsCode, Name: "Current Earnings", Amount: bs.CurrentEarnings})
	}
	bs.TotalEquity = bs.TotalEquity.Add(bs.CurrentEarnings)

	bs.IsBalanced = bs.TotalAssets.Equal(bs.TotalLiabilities.Add(bs.TotalEquity))
	if !bs.IsBalanced {
		s.integrityFault("balance_sheet", tenantID,
			zap.String("as_of", asOf.Format(DateLayout)),
			zap.Stringer("assets", bs.TotalAssets),
			zap.Stringer("liabilities", bs.TotalLiabilities),
			zap.Stringer("equity", bs.TotalEquity),
		)
	}
	return bs, nil
}

// ── COGSReport ────────────────────────────────────────────────────────────────

func (s *reportingService) COGSReport(ctx context.Context, tenantID string, start, end time.Time) (*COGSReport, error) {
	defer s.observe("cogs", time.Now())
	start, end, err := checkRange(start, end)
	if err != nil {
		return nil, err
	}

	accounts, err := s.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	chart := NewChart(accounts)
	isExpense := func(code string) bool {
		a, err := chart.Resolve(code)
		return err == nil && a.Type == Expense
	}

	r := &COGSReport{
		Start:        start,
		End:          end,
		JournalCost:  decimal.Zero,
		MovementCost: decimal.Zero,
		Inflows:      decimal.Zero,
		Outflows:     decimal.Zero,
	}

	lines, err := s.store.ListPostingLines(ctx, tenantID, LineFilter{From: start, To: end, SourceType: SourceInventoryAdjustment})
	if err != nil {
		return nil, fmt.Errorf("failed to list posting lines: %w", err)
	}
	byAccount := make(map[string]decimal.Decimal)
	for _, l := range lines {
		if !isExpense(l.AccountCode) {
			continue
		}
		amount := l.Debit.Sub(l.Credit)
		byAccount[l.AccountCode] = byAccount[l.AccountCode].Add(amount)
		r.JournalCost = r.JournalCost.Add(amount)
	}
	r.ByAccount = make([]COGSAccountLine, 0, len(byAccount))
	for code, amount := range byAccount {
		a, _ := chart.Resolve(code)
		r.ByAccount = append(r.ByAccount, COGSAccountLine{Code: code, Name: a.Name, Amount: amount})
	}
	sort.Slice(r.ByAccount, func(i, j int) bool { return r.ByAccount[i].Code < r.ByAccount[j].Code })

	movements, err := s.store.ListMovements(ctx, tenantID, MovementFilter{From: start, To: end})
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	byReason := make(map[Reason]*COGSReasonLine)
	for _, m := range movements {
		if m.QuantityDelta.IsPositive() {
			r.Inflows = r.Inflows.Add(m.TotalValue)
		} else {
			r.Outflows = r.Outflows.Add(m.TotalValue)
		}
		if m.LinkedJournalEntryID == nil || !isExpense(m.CounterAccountCode) {
			continue
		}
		// Stock leaving debits the expense; stock coming back credits it.
		amount := m.TotalValue
		if m.QuantityDelta.IsPositive() {
			amount = amount.Neg()
		}
		line, ok := byReason[m.Reason]
		if !ok {
			line = &COGSReasonLine{Reason: m.Reason, Quantity: decimal.Zero, Amount: decimal.Zero}
			byReason[m.Reason] = line
		}
		line.Quantity = line.Quantity.Add(m.QuantityDelta.Neg())
		line.Amount = line.Amount.Add(amount)
		r.MovementCost = r.MovementCost.Add(amount)
	}
	r.ByReason = make([]COGSReasonLine, 0, len(byReason))
	for _, line := range byReason {
		r.ByReason = append(r.ByReason, *line)
	}
	sort.Slice(r.ByReason, func(i, j int) bool { return r.ByReason[i].Reason < r.ByReason[j].Reason })

	openingDay := start.AddDate(0, 0, -1)
	opening, err := valueStock(ctx, s.store, tenantID, &openingDay)
	if err != nil {
		return nil, err
	}
	closing, err := valueStock(ctx, s.store, tenantID, &end)
	if err != nil {
		return nil, err
	}
	r.OpeningValue = opening.TotalCostValue
	r.ClosingValue = closing.TotalCostValue
	r.ValuationVariance = r.ClosingValue.Sub(r.OpeningValue).Sub(r.Inflows.Sub(r.Outflows))

	r.Consistent = r.JournalCost.Equal(r.MovementCost)
	if !r.Consistent {
		s.integrityFault("cogs_consistency", tenantID,
			zap.String("start", start.Format(DateLayout)),
			zap.String("end", end.Format(DateLayout)),
			zap.Stringer("journal_cost", r.JournalCost),
			zap.Stringer("movement_cost", r.MovementCost),
		)
	}
	return r, nil
}

// ── AccountStatement ──────────────────────────────────────────────────────────

func (s *reportingService) AccountStatement(ctx context.Context, tenantID, code string, from, to *time.Time) (*AccountStatement, error) {
	defer s.observe("account_statement", time.Now())

	accounts, err := s.store.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	chart := NewChart(accounts)
	account, err := chart.Resolve(code)
	if err != nil {
		return nil, err
	}
	codes := []string{code}
	for _, d := range chart.Descendants(code) {
		codes = append(codes, d.Code)
	}

	st := &AccountStatement{Account: account, OpeningBalance: decimal.Zero, Lines: []StatementLine{}}
	f := LineFilter{AccountCodes: codes}
	if from != nil {
		day := Day(*from)
		st.From = &day
		f.From = day
	}
	if to != nil {
		day := Day(*to)
		st.To = &day
		f.To = day
	}
	if st.From != nil && st.To != nil && st.To.Before(*st.From) {
		return nil, invalidRequest("statement range ends before it starts")
	}

	if st.From != nil {
		prior, err := s.store.ListPostingLines(ctx, tenantID, LineFilter{AccountCodes: codes, To: st.From.AddDate(0, 0, -1)})
		if err != nil {
			return nil, fmt.Errorf("failed to list posting lines: %w", err)
		}
		for _, l := range prior {
			st.OpeningBalance = st.OpeningBalance.Add(natural(account, l.Debit.Sub(l.Credit)))
		}
	}

	lines, err := s.store.ListPostingLines(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list posting lines: %w", err)
	}
	balance := st.OpeningBalance
	for _, l := range lines {
		balance = balance.Add(natural(account, l.Debit.Sub(l.Credit)))
		st.Lines = append(st.Lines, StatementLine{
			EntryID:     l.EntryID,
			Date:        l.Date,
			Memo:        l.Memo,
			SourceType:  l.SourceType,
			SourceID:    l.SourceID,
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Balance:     balance,
		})
	}
	st.ClosingBalance = balance
	return st, nil
}
