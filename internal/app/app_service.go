package app

import (
	"context"
	"strings"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pinger is implemented by stores that can check their backend connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type appService struct {
	store     core.Store
	chart     core.ChartService
	ledger    core.LedgerService
	inventory core.InventoryService
	reporting core.ReportingService
	currency  string
	log       *zap.Logger
}

// Options configures NewAppService.
type Options struct {
	Rules    core.RuleTable
	Policy   core.Policy
	Currency string
	Logger   *zap.Logger
	Recorder core.Recorder
}

// NewAppService wires the core services over store and returns the facade.
func NewAppService(store core.Store, opts Options) ApplicationService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = core.NopRecorder()
	}
	if opts.Rules.Templates == nil {
		opts.Rules = core.DefaultRules()
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}

	ledger := core.NewLedger(store, opts.Rules, opts.Policy, logger, rec)
	return &appService{
		store:     store,
		chart:     core.NewChartService(store, opts.Policy, logger),
		ledger:    ledger,
		inventory: core.NewInventoryService(store, ledger, opts.Rules, opts.Policy, logger, rec),
		reporting: core.NewReportingService(store, logger, rec),
		currency:  opts.Currency,
		log:       logger.Named("app"),
	}
}

// badInput turns a parse failure into an INVALID_REQUEST error so every adapter
// reports it the same way as a core validation failure.
func badInput(err error) error {
	return &core.Error{Code: core.CodeInvalidRequest, Message: err.Error()}
}

func parseOptionalDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, badInput(err)
	}
	return t, nil
}

func parseOptionalDatePtr(s string) (*time.Time, error) {
	t, err := parseOptionalDate(s)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, &core.Error{Code: core.CodeInvalidRequest, Message: field + ": " + err.Error()}
	}
	return d, nil
}

func parseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &core.Error{Code: core.CodeInvalidRequest, Message: "quantity is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &core.Error{Code: core.CodeInvalidRequest, Message: "invalid quantity " + s}
	}
	return d, nil
}

func (s *appService) Health(ctx context.Context) error {
	if p, ok := s.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ── Chart of accounts ─────────────────────────────────────────────────────────

func (s *appService) ListAccounts(ctx context.Context, tenantID string) (*AccountListResult, error) {
	accounts, err := s.chart.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &AccountListResult{TenantID: tenantID, Accounts: accounts}, nil
}

func (s *appService) GetAccount(ctx context.Context, tenantID, code string) (*core.Account, error) {
	return s.chart.ResolveAccount(ctx, tenantID, code)
}

func (s *appService) ListChildren(ctx context.Context, tenantID, code string) (*AccountListResult, error) {
	children, err := s.chart.ListChildren(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	return &AccountListResult{TenantID: tenantID, Accounts: children}, nil
}

func (s *appService) CreateAccount(ctx context.Context, tenantID string, req CreateAccountRequest) (*core.Account, error) {
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	return s.chart.CreateAccount(ctx, tenantID, req.toCore())
}

func (s *appService) UpdateAccount(ctx context.Context, tenantID, code string, req UpdateAccountRequest) (*core.Account, error) {
	return s.chart.UpdateAccount(ctx, tenantID, code, core.AccountUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
}

func (s *appService) DeleteAccount(ctx context.Context, tenantID, code string) error {
	return s.chart.DeleteAccount(ctx, tenantID, code)
}

func (s *appService) SeedChart(ctx context.Context, tenantID string, accounts []core.SeedAccount) (*core.SeedResult, error) {
	if accounts == nil {
		accounts = core.DefaultSeed()
	}
	res, err := s.chart.Seed(ctx, tenantID, accounts)
	if err != nil {
		return nil, err
	}
	s.log.Info("chart seeded",
		zap.String("tenant", tenantID),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

// ── Journal ───────────────────────────────────────────────────────────────────

func (s *appService) PostEntry(ctx context.Context, tenantID string, req PostEntryRequest) (*core.JournalEntry, error) {
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return nil, err
	}
	post := core.PostRequest{
		Date:           date,
		Memo:           req.Memo,
		SourceType:     core.SourceType(req.SourceType),
		SourceID:       req.SourceID,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          make([]core.PostLine, len(req.Lines)),
	}
	for i, l := range req.Lines {
		debit, err := parseAmount("debit", l.Debit)
		if err != nil {
			return nil, err
		}
		credit, err := parseAmount("credit", l.Credit)
		if err != nil {
			return nil, err
		}
		post.Lines[i] = core.PostLine{AccountCode: l.AccountCode, Debit: debit, Credit: credit, Memo: l.Memo}
	}
	return s.ledger.Post(ctx, tenantID, post)
}

func (s *appService) PostTemplate(ctx context.Context, tenantID string, req TemplateEntryRequest) (*core.JournalEntry, error) {
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	tax, err := parseAmount("tax", req.Tax)
	if err != nil {
		return nil, err
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		return nil, err
	}
	return s.ledger.PostTemplate(ctx, tenantID, core.TemplateRequest{
		SourceType:     core.SourceType(strings.ToUpper(strings.TrimSpace(req.SourceType))),
		Category:       req.Category,
		Date:           date,
		Memo:           req.Memo,
		SourceID:       req.SourceID,
		IdempotencyKey: req.IdempotencyKey,
		Amount:         amount,
		Tax:            tax,
		Fee:            fee,
		DebitAccount:   strings.TrimSpace(req.DebitAccount),
		CreditAccount:  strings.TrimSpace(req.CreditAccount),
	})
}

func (s *appService) ReverseEntry(ctx context.Context, tenantID string, req ReverseEntryRequest) (*core.JournalEntry, error) {
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return nil, err
	}
	return s.ledger.Reverse(ctx, tenantID, req.EntryID, date, req.Memo)
}

func (s *appService) GetEntry(ctx context.Context, tenantID string, id int64) (*core.JournalEntry, error) {
	return s.ledger.GetEntry(ctx, tenantID, id)
}

func (s *appService) ListEntries(ctx context.Context, tenantID string, q EntryQuery) (*EntryListResult, error) {
	from, err := parseOptionalDate(q.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate(q.To)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListEntries(ctx, tenantID, core.EntryFilter{
		From:        from,
		To:          to,
		SourceType:  core.SourceType(strings.ToUpper(strings.TrimSpace(q.SourceType))),
		AccountCode: strings.TrimSpace(q.AccountCode),
		Limit:       q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &EntryListResult{TenantID: tenantID, Entries: entries}, nil
}

// ── Inventory ─────────────────────────────────────────────────────────────────

func (s *appService) RegisterItem(ctx context.Context, tenantID string, req RegisterItemRequest) (*core.InventoryItem, error) {
	price, err := parseAmount("selling_price", req.SellingPrice)
	if err != nil {
		return nil, err
	}
	return s.inventory.RegisterItem(ctx, tenantID, core.RegisterItemRequest{
		SKU:          req.SKU,
		Name:         req.Name,
		Category:     req.Category,
		SellingPrice: price,
	})
}

func (s *appService) GetItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error) {
	return s.inventory.GetItem(ctx, tenantID, id)
}

func (s *appService) ListItems(ctx context.Context, tenantID string, includeInactive bool) (*ItemListResult, error) {
	items, err := s.inventory.ListItems(ctx, tenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	return &ItemListResult{TenantID: tenantID, Items: items}, nil
}

func (s *appService) DeactivateItem(ctx context.Context, tenantID string, id int64) (*core.InventoryItem, error) {
	return s.inventory.DeactivateItem(ctx, tenantID, id)
}

func (s *appService) RecordMovement(ctx context.Context, tenantID string, req MovementRequest) (*core.MovementResult, error) {
	qty, err := parseQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return nil, err
	}

	m := core.MovementRequest{
		ItemID:             req.ItemID,
		Type:               core.MovementType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Reason:             core.Reason(strings.ToUpper(strings.TrimSpace(req.Reason))),
		Quantity:           qty,
		Date:               date,
		Notes:              req.Notes,
		IdempotencyKey:     req.IdempotencyKey,
		CounterAccountCode: strings.TrimSpace(req.CounterAccountCode),
	}
	if strings.TrimSpace(req.UnitCost) != "" {
		cost, err := decimal.NewFromString(strings.TrimSpace(req.UnitCost))
		if err != nil {
			return nil, &core.Error{Code: core.CodeInvalidRequest, Message: "invalid unit cost " + req.UnitCost}
		}
		m.UnitCost = &cost
	}
	return s.inventory.RecordMovement(ctx, tenantID, m)
}

func (s *appService) ListMovements(ctx context.Context, tenantID string, q MovementQuery) (*MovementListResult, error) {
	from, err := parseOptionalDate(q.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate(q.To)
	if err != nil {
		return nil, err
	}
	movements, err := s.inventory.ListMovements(ctx, tenantID, core.MovementFilter{ItemID: q.ItemID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	return &MovementListResult{TenantID: tenantID, Movements: movements}, nil
}

func (s *appService) Valuation(ctx context.Context, tenantID, asOfDate string) (*ValuationResult, error) {
	asOf, err := parseOptionalDatePtr(asOfDate)
	if err != nil {
		return nil, err
	}
	v, err := s.inventory.Valuation(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	return &ValuationResult{TenantID: tenantID, Currency: s.currency, ValuationReport: v}, nil
}

// ── Reports ───────────────────────────────────────────────────────────────────

// period resolves a PeriodRequest to an inclusive day range.
func (p PeriodRequest) period() (time.Time, time.Time, error) {
	if strings.TrimSpace(p.Start) == "" {
		if p.Year == 0 || p.Month < 1 || p.Month > 12 {
			return time.Time{}, time.Time{}, &core.Error{Code: core.CodeInvalidRequest, Message: "either start/end or a valid year and month is required"}
		}
		start, end := core.MonthRange(p.Year, time.Month(p.Month))
		return start, end, nil
	}
	start, err := core.ParseDate(p.Start)
	if err != nil {
		return time.Time{}, time.Time{}, badInput(err)
	}
	end := start
	if strings.TrimSpace(p.End) != "" {
		if end, err = core.ParseDate(p.End); err != nil {
			return time.Time{}, time.Time{}, badInput(err)
		}
	}
	return start, end, nil
}

func (s *appService) TrialBalance(ctx context.Context, tenantID, asOfDate string) (*TrialBalanceResult, error) {
	asOf, err := parseOptionalDate(asOfDate)
	if err != nil {
		return nil, err
	}
	tb, err := s.reporting.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	return &TrialBalanceResult{TenantID: tenantID, Currency: s.currency, TrialBalance: tb}, nil
}

func (s *appService) ProfitAndLoss(ctx context.Context, tenantID string, p PeriodRequest) (*ProfitAndLossResult, error) {
	start, end, err := p.period()
	if err != nil {
		return nil, err
	}
	pl, err := s.reporting.ProfitAndLoss(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	return &ProfitAndLossResult{TenantID: tenantID, Currency: s.currency, ProfitAndLoss: pl}, nil
}

func (s *appService) BalanceSheet(ctx context.Context, tenantID, asOfDate string) (*BalanceSheetResult, error) {
	asOf, err := parseOptionalDate(asOfDate)
	if err != nil {
		return nil, err
	}
	bs, err := s.reporting.BalanceSheet(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	return &BalanceSheetResult{TenantID: tenantID, Currency: s.currency, BalanceSheet: bs}, nil
}

func (s *appService) COGSReport(ctx context.Context, tenantID string, p PeriodRequest) (*COGSResult, error) {
	start, end, err := p.period()
	if err != nil {
		return nil, err
	}
	r, err := s.reporting.COGSReport(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	return &COGSResult{TenantID: tenantID, Currency: s.currency, COGSReport: r}, nil
}

func (s *appService) AccountStatement(ctx context.Context, tenantID, accountCode, fromDate, toDate string) (*AccountStatementResult, error) {
	from, err := parseOptionalDatePtr(fromDate)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDatePtr(toDate)
	if err != nil {
		return nil, err
	}
	st, err := s.reporting.AccountStatement(ctx, tenantID, accountCode, from, to)
	if err != nil {
		return nil, err
	}
	return &AccountStatementResult{TenantID: tenantID, Currency: s.currency, AccountStatement: st}, nil
}
