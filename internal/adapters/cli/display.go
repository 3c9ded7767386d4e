package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"finledger/internal/app"
	"finledger/internal/core"
)

// amountFormatter renders decimal amounts in a currency's display format.
type amountFormatter struct {
	cur money.Currency
}

func newAmountFormatter(code string) amountFormatter {
	// money.New never returns a nil currency, unknown codes get a generic format.
	return amountFormatter{cur: *money.New(0, strings.ToUpper(code)).Currency()}
}

func (f amountFormatter) format(d decimal.Decimal) string {
	minor := d.Shift(int32(f.cur.Fraction)).Round(0)
	return f.cur.Formatter().Format(minor.IntPart())
}

// blankZero formats d, or returns "" for zero so debit/credit columns stay readable.
func (f amountFormatter) blankZero(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return f.format(d)
}

func rule(w io.Writer, ch string, width int) {
	fmt.Fprintln(w, strings.Repeat(ch, width))
}

func header(w io.Writer, width int, title string, lines ...string) {
	fmt.Fprintln(w)
	rule(w, "=", width)
	fmt.Fprintf(w, "  %s\n", title)
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
	rule(w, "=", width)
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func printAccounts(w io.Writer, result *app.AccountListResult) {
	header(w, 78, "CHART OF ACCOUNTS", "Tenant   : "+result.TenantID)
	if len(result.Accounts) == 0 {
		fmt.Fprintln(w, "  No accounts. Run `ledgerctl seed` to install the default chart.")
		rule(w, "=", 78)
		return
	}
	chart := core.NewChart(result.Accounts)
	fmt.Fprintf(w, "  %-8s %-40s %-10s %s\n", "CODE", "NAME", "TYPE", "FLAGS")
	rule(w, "-", 78)
	for _, t := range core.AccountTypes {
		chart.Walk(t, func(a core.Account, depth int) {
			var flags []string
			if a.IsParent {
				flags = append(flags, "parent")
			}
			if a.IsSystem {
				flags = append(flags, "system")
			}
			if a.IsContra {
				flags = append(flags, "contra")
			}
			if !a.IsActive {
				flags = append(flags, "inactive")
			}
			fmt.Fprintf(w, "  %-8s %-40s %-10s %s\n", a.Code, indent(depth)+a.Name, a.Type, strings.Join(flags, ","))
		})
	}
	rule(w, "=", 78)
}

func printEntry(w io.Writer, e *core.JournalEntry, f amountFormatter) {
	title := fmt.Sprintf("JOURNAL ENTRY #%d", e.ID)
	lines := []string{
		"Date     : " + e.Date.Format(core.DateLayout),
		"Source   : " + string(e.SourceType),
		"Memo     : " + e.Memo,
	}
	if e.ReversesEntryID != nil {
		lines = append(lines, fmt.Sprintf("Reverses : #%d", *e.ReversesEntryID))
	}
	header(w, 70, title, lines...)
	fmt.Fprintf(w, "  %-4s %-10s %-20s %15s %15s\n", "#", "ACCOUNT", "MEMO", "DEBIT", "CREDIT")
	rule(w, "-", 70)
	for _, l := range e.Lines {
		fmt.Fprintf(w, "  %-4d %-10s %-20s %15s %15s\n", l.LineNo, l.AccountCode, truncate(l.Memo, 20), f.blankZero(l.Debit), f.blankZero(l.Credit))
	}
	debit, credit := e.Totals()
	rule(w, "-", 70)
	fmt.Fprintf(w, "  %-36s %15s %15s\n", "TOTAL", f.format(debit), f.format(credit))
	rule(w, "=", 70)
}

func printEntries(w io.Writer, result *app.EntryListResult, f amountFormatter) {
	header(w, 78, "JOURNAL", "Tenant   : "+result.TenantID)
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  No entries found.")
		rule(w, "=", 78)
		return
	}
	fmt.Fprintf(w, "  %-6s %-10s %-20s %-24s %12s\n", "ID", "DATE", "SOURCE", "MEMO", "AMOUNT")
	rule(w, "-", 78)
	for _, e := range result.Entries {
		debit, _ := e.Totals()
		fmt.Fprintf(w, "  %-6d %-10s %-20s %-24s %12s\n", e.ID, e.Date.Format(core.DateLayout), e.SourceType, truncate(e.Memo, 24), f.format(debit))
	}
	rule(w, "=", 78)
}

func printTrialBalance(w io.Writer, result *app.TrialBalanceResult) {
	f := newAmountFormatter(result.Currency)
	header(w, 78, "TRIAL BALANCE",
		"Tenant   : "+result.TenantID,
		"As of    : "+result.AsOf.Format(core.DateLayout),
		"Currency : "+result.Currency,
	)
	fmt.Fprintf(w, "  %-8s %-34s %15s %15s\n", "CODE", "NAME", "DEBIT", "CREDIT")
	rule(w, "-", 78)
	for _, row := range result.Rows {
		if row.Debit.IsZero() && row.Credit.IsZero() {
			continue
		}
		fmt.Fprintf(w, "  %-8s %-34s %15s %15s\n", row.Code, truncate(indent(row.Depth)+row.Name, 34), f.blankZero(row.Debit), f.blankZero(row.Credit))
	}
	rule(w, "-", 78)
	fmt.Fprintf(w, "  %-43s %15s %15s\n", "TOTAL", f.format(result.TotalDebit), f.format(result.TotalCredit))
	if !result.IsBalanced {
		fmt.Fprintln(w, "  WARNING: trial balance does not balance")
	}
	rule(w, "=", 78)
}

func printSection(w io.Writer, title string, rows []core.ReportRow, total decimal.Decimal, f amountFormatter) {
	fmt.Fprintf(w, "  %s\n", title)
	for _, r := range rows {
		fmt.Fprintf(w, "    %-8s %-40s %15s\n", r.Code, truncate(indent(r.Depth)+r.Name, 40), f.format(r.Amount))
	}
	fmt.Fprintf(w, "    %-49s %15s\n", "Total "+strings.ToLower(title), f.format(total))
	rule(w, "-", 70)
}

func printProfitAndLoss(w io.Writer, result *app.ProfitAndLossResult) {
	f := newAmountFormatter(result.Currency)
	header(w, 70, "PROFIT & LOSS",
		"Tenant   : "+result.TenantID,
		"Period   : "+result.Start.Format(core.DateLayout)+" to "+result.End.Format(core.DateLayout),
		"Currency : "+result.Currency,
	)
	printSection(w, "INCOME", result.Income, result.TotalIncome, f)
	printSection(w, "EXPENSES", result.Expenses, result.TotalExpenses, f)
	fmt.Fprintf(w, "  %-51s %15s\n", "NET INCOME", f.format(result.NetIncome))
	fmt.Fprintf(w, "  %-51s %14s%%\n", "SAVINGS RATE", result.SavingsRate.StringFixed(2))
	rule(w, "=", 70)
}

func printBalanceSheet(w io.Writer, result *app.BalanceSheetResult) {
	f := newAmountFormatter(result.Currency)
	header(w, 70, "BALANCE SHEET",
		"Tenant   : "+result.TenantID,
		"As of    : "+result.AsOf.Format(core.DateLayout),
		"Currency : "+result.Currency,
	)
	printSection(w, "ASSETS", result.Assets, result.TotalAssets, f)
	printSection(w, "LIABILITIES", result.Liabilities, result.TotalLiabilities, f)
	printSection(w, "EQUITY", result.Equity, result.TotalEquity, f)
	fmt.Fprintf(w, "  %-51s %15s\n", "LIABILITIES + EQUITY", f.format(result.TotalLiabilities.Add(result.TotalEquity)))
	if !result.IsBalanced {
		fmt.Fprintln(w, "  WARNING: balance sheet does not balance")
	}
	rule(w, "=", 70)
}

func printCOGS(w io.Writer, result *app.COGSResult) {
	f := newAmountFormatter(result.Currency)
	header(w, 70, "COST OF GOODS SOLD",
		"Tenant   : "+result.TenantID,
		"Period   : "+result.Start.Format(core.DateLayout)+" to "+result.End.Format(core.DateLayout),
		"Currency : "+result.Currency,
	)
	fmt.Fprintf(w, "  %-51s %15s\n", "Opening inventory", f.format(result.OpeningValue))
	fmt.Fprintf(w, "  %-51s %15s\n", "+ Inflows", f.format(result.Inflows))
	fmt.Fprintf(w, "  %-51s %15s\n", "- Outflows", f.format(result.Outflows))
	fmt.Fprintf(w, "  %-51s %15s\n", "Closing inventory", f.format(result.ClosingValue))
	rule(w, "-", 70)
	for _, a := range result.ByAccount {
		fmt.Fprintf(w, "    %-8s %-40s %15s\n", a.Code, truncate(a.Name, 40), f.format(a.Amount))
	}
	rule(w, "-", 70)
	fmt.Fprintf(w, "  %-51s %15s\n", "COGS (journal)", f.format(result.JournalCost))
	fmt.Fprintf(w, "  %-51s %15s\n", "COGS (movements)", f.format(result.MovementCost))
	if !result.Consistent {
		fmt.Fprintln(w, "  WARNING: journal and movement COGS disagree")
	}
	rule(w, "=", 70)
}

func printStatement(w io.Writer, result *app.AccountStatementResult) {
	f := newAmountFormatter(result.Currency)
	header(w, 90, "ACCOUNT STATEMENT",
		"Account  : "+result.Account.Code+" "+result.Account.Name,
		"Currency : "+result.Currency,
	)
	fmt.Fprintf(w, "  %-10s %-6s %-28s %13s %13s %13s\n", "DATE", "ENTRY", "MEMO", "DEBIT", "CREDIT", "BALANCE")
	rule(w, "-", 90)
	fmt.Fprintf(w, "  %-75s %13s\n", "Opening balance", f.format(result.OpeningBalance))
	for _, l := range result.Lines {
		fmt.Fprintf(w, "  %-10s %-6d %-28s %13s %13s %13s\n",
			l.Date.Format(core.DateLayout), l.EntryID, truncate(l.Memo, 28),
			f.blankZero(l.Debit), f.blankZero(l.Credit), f.format(l.Balance))
	}
	rule(w, "-", 90)
	fmt.Fprintf(w, "  %-75s %13s\n", "Closing balance", f.format(result.ClosingBalance))
	rule(w, "=", 90)
}

func printItems(w io.Writer, result *app.ItemListResult, f amountFormatter) {
	header(w, 84, "INVENTORY ITEMS", "Tenant   : "+result.TenantID)
	if len(result.Items) == 0 {
		fmt.Fprintln(w, "  No items found.")
		rule(w, "=", 84)
		return
	}
	fmt.Fprintf(w, "  %-4s %-12s %-24s %-12s %10s %14s\n", "ID", "SKU", "NAME", "CATEGORY", "QTY", "AVG COST")
	rule(w, "-", 84)
	for _, it := range result.Items {
		fmt.Fprintf(w, "  %-4d %-12s %-24s %-12s %10s %14s\n",
			it.ID, truncate(it.SKU, 12), truncate(it.Name, 24), truncate(it.Category, 12),
			it.QuantityOnHand.String(), it.WeightedAverageCost.StringFixed(core.CostScale))
	}
	rule(w, "=", 84)
}

func printMovement(w io.Writer, result *core.MovementResult, f amountFormatter) {
	m := result.Movement
	fmt.Fprintf(w, "Movement #%d: %s %s qty %s @ %s = %s\n",
		m.ID, m.Type, m.Reason, m.QuantityDelta.String(), m.UnitCost.StringFixed(core.CostScale), f.format(m.TotalValue))
	fmt.Fprintf(w, "Item now: qty %s, weighted average cost %s\n",
		result.NewQuantity.String(), result.NewWeightedAverageCost.StringFixed(core.CostScale))
	if result.JournalEntry != nil {
		fmt.Fprintf(w, "Posted journal entry #%d\n", result.JournalEntry.ID)
	}
}

func printValuation(w io.Writer, result *app.ValuationResult) {
	f := newAmountFormatter(result.Currency)
	asOf := "current"
	if result.AsOf != nil {
		asOf = result.AsOf.Format(core.DateLayout)
	}
	header(w, 78, "INVENTORY VALUATION", "Tenant   : "+result.TenantID, "As of    : "+asOf)
	fmt.Fprintf(w, "  %-24s %6s %12s %15s %15s\n", "CATEGORY", "ITEMS", "QTY", "COST", "RETAIL")
	rule(w, "-", 78)
	for _, c := range result.ByCategory {
		fmt.Fprintf(w, "  %-24s %6d %12s %15s %15s\n", truncate(c.Category, 24), c.ItemCount, c.Quantity.String(), f.format(c.CostValue), f.format(c.RetailValue))
	}
	rule(w, "-", 78)
	fmt.Fprintf(w, "  %-44s %15s %15s\n", "TOTAL", f.format(result.TotalCostValue), f.format(result.TotalRetailValue))
	rule(w, "=", 78)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
