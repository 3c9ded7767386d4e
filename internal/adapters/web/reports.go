package web

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"finledger/internal/app"
	"finledger/internal/core"
)

// periodFromQuery reads ?start=&end= or ?year=&month=.
func periodFromQuery(r *http.Request) app.PeriodRequest {
	q := r.URL.Query()
	p := app.PeriodRequest{Start: q.Get("start"), End: q.Get("end")}
	p.Year, _ = strconv.Atoi(q.Get("year"))
	p.Month, _ = strconv.Atoi(q.Get("month"))
	return p
}

// trialBalance handles GET /reports/trial-balance?as_of=&format=csv.
func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.TrialBalance(r.Context(), tenantFromContext(r.Context()), r.URL.Query().Get("as_of"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trial-balance-`+result.AsOf.Format(core.DateLayout)+`.csv"`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Code", "Name", "Type", "Debit", "Credit"})
		for _, row := range result.Rows {
			_ = cw.Write([]string{
				row.Code,
				csvSafe(row.Name),
				string(row.Type),
				row.Debit.StringFixed(core.AmountScale),
				row.Credit.StringFixed(core.AmountScale),
			})
		}
		_ = cw.Write([]string{"", "Total", "", result.TotalDebit.StringFixed(core.AmountScale), result.TotalCredit.StringFixed(core.AmountScale)})
		cw.Flush()
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// profitAndLoss handles GET /reports/profit-loss.
func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ProfitAndLoss(r.Context(), tenantFromContext(r.Context()), periodFromQuery(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// balanceSheet handles GET /reports/balance-sheet?as_of=.
func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.BalanceSheet(r.Context(), tenantFromContext(r.Context()), r.URL.Query().Get("as_of"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// cogs handles GET /reports/cogs.
func (h *Handler) cogs(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.COGSReport(r.Context(), tenantFromContext(r.Context()), periodFromQuery(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// accountStatement handles GET /reports/accounts/{code}/statement?from=&to=.
// When format=csv, streams CSV instead of JSON.
func (h *Handler) accountStatement(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	result, err := h.svc.AccountStatement(r.Context(), tenantFromContext(r.Context()), code,
		r.URL.Query().Get("from"),
		r.URL.Query().Get("to"),
	)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="statement-`+code+`.csv"`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Date", "Entry", "Memo", "Account", "Debit", "Credit", "Balance"})
		_ = cw.Write([]string{"", "", "Opening balance", "", "", "", result.OpeningBalance.StringFixed(core.AmountScale)})
		for _, line := range result.Lines {
			_ = cw.Write([]string{
				line.Date.Format(core.DateLayout),
				strconv.FormatInt(line.EntryID, 10),
				csvSafe(line.Memo),
				line.AccountCode,
				line.Debit.StringFixed(core.AmountScale),
				line.Credit.StringFixed(core.AmountScale),
				line.Balance.StringFixed(core.AmountScale),
			})
		}
		cw.Flush()
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// csvSafe prevents CSV formula injection by prefixing cells that begin with a
// formula-triggering character with a single quote.
func csvSafe(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
