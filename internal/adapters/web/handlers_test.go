package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/app"
	"finledger/internal/core"
	"finledger/internal/metrics"
	"finledger/internal/store/memory"
)

const testSecret = "test-secret"

func newTestHandler(t *testing.T, authDisabled bool) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	svc := app.NewAppService(memory.New(), app.Options{Policy: core.DefaultPolicy(), Recorder: m})
	return NewHandler(svc, Options{
		JWTSecret:     testSecret,
		AuthDisabled:  authDisabled,
		DefaultTenant: "default",
		Metrics:       m,
	})
}

func token(t *testing.T, tenant, role string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, "tester", tenant, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, h http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, false)
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(t, false)

	rec := do(t, h, http.MethodGet, "/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad, err := IssueToken("other-secret", "x", "acme", RoleAdmin, time.Hour)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/accounts", bad, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/accounts", token(t, "acme", "clerk"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSeedRequiresAdmin(t *testing.T) {
	h := newTestHandler(t, false)

	rec := do(t, h, http.MethodPost, "/accounts/seed", token(t, "acme", "clerk"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/accounts/seed", token(t, "acme", RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[core.SeedResult](t, rec)
	assert.Positive(t, res.Inserted)

	// Second run changes nothing.
	rec = do(t, h, http.MethodPost, "/accounts/seed", token(t, "acme", RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[core.SeedResult](t, rec)
	assert.Zero(t, res.Inserted)
	assert.Zero(t, res.Updated)
}

func TestPostAndReverseEntry(t *testing.T) {
	h := newTestHandler(t, false)
	admin := token(t, "acme", RoleAdmin)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/seed", admin, nil).Code)

	rec := do(t, h, http.MethodPost, "/journal/entries", admin, map[string]any{
		"date":        "2024-03-05",
		"memo":        "groceries",
		"source_type": "EXPENSE",
		"lines": []map[string]string{
			{"account_code": "6011", "debit": "120.50"},
			{"account_code": "1010", "credit": "120.50"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[core.JournalEntry](t, rec)
	require.Len(t, entry.Lines, 2)

	rec = do(t, h, http.MethodGet, "/journal/entries/1", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/journal/entries/1/reverse", admin, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reversal := decode[core.JournalEntry](t, rec)
	require.NotNil(t, reversal.ReversesEntryID)
	assert.Equal(t, entry.ID, *reversal.ReversesEntryID)

	rec = do(t, h, http.MethodPost, "/journal/entries/1/reverse", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(core.CodeAlreadyReversed), decode[errorResponse](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/reports/trial-balance", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tb struct {
		IsBalanced  bool   `json:"is_balanced"`
		TotalDebit  string `json:"total_debit"`
		TotalCredit string `json:"total_credit"`
		Currency    string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tb))
	assert.True(t, tb.IsBalanced)
	assert.Equal(t, tb.TotalDebit, tb.TotalCredit)
	assert.Equal(t, "USD", tb.Currency)
}

func TestPostUnbalancedEntry(t *testing.T) {
	h := newTestHandler(t, false)
	admin := token(t, "acme", RoleAdmin)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/seed", admin, nil).Code)

	rec := do(t, h, http.MethodPost, "/journal/entries", admin, map[string]any{
		"date":        "2024-03-05",
		"source_type": "EXPENSE",
		"lines": []map[string]string{
			{"account_code": "6011", "debit": "100"},
			{"account_code": "1010", "credit": "90"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, string(core.CodeUnbalancedEntry), resp.Code)
	assert.NotEmpty(t, resp.RequestID)

	rec = do(t, h, http.MethodGet, "/journal/entries", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[app.EntryListResult](t, rec).Entries)
}

func TestRequestValidation(t *testing.T) {
	h := newTestHandler(t, false)
	admin := token(t, "acme", RoleAdmin)

	rec := do(t, h, http.MethodPost, "/journal/entries", admin, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/journal/entries", admin, map[string]any{
		"date":        "05/03/2024",
		"source_type": "EXPENSE",
		"lines":       []map[string]string{{"account_code": "6011", "debit": "abc"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, string(core.CodeInvalidRequest), resp.Code)

	var fields []string
	for _, d := range resp.Details {
		fields = append(fields, d.Field)
	}
	assert.Contains(t, strings.Join(fields, " "), "date")
	assert.Contains(t, strings.Join(fields, " "), "lines")

	rec = do(t, h, http.MethodGet, "/journal/entries/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFound(t *testing.T) {
	h := newTestHandler(t, false)
	admin := token(t, "acme", RoleAdmin)

	rec := do(t, h, http.MethodGet, "/journal/entries/42", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(core.CodeEntryNotFound), decode[errorResponse](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/inventory/items/7", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantsAreIsolated(t *testing.T) {
	h := newTestHandler(t, false)
	acme := token(t, "acme", RoleAdmin)
	globex := token(t, "globex", RoleAdmin)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/seed", acme, nil).Code)

	rec := do(t, h, http.MethodGet, "/accounts", globex, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[app.AccountListResult](t, rec).Accounts)
}

func TestAuthDisabledUsesTenantHeader(t *testing.T) {
	h := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodPost, "/accounts/seed", nil)
	req.Header.Set("X-Tenant-ID", "local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("X-Tenant-ID", "local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[app.AccountListResult](t, rec).Accounts)

	req = httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("X-Tenant-ID", "bad tenant!")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryFlow(t *testing.T) {
	h := newTestHandler(t, true)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/seed", "", nil).Code)

	rec := do(t, h, http.MethodPost, "/inventory/items", "", map[string]string{"sku": "W-1", "name": "Widget", "category": "parts"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[core.InventoryItem](t, rec)

	for _, cost := range []string{"100", "200"} {
		rec = do(t, h, http.MethodPost, "/inventory/movements", "", map[string]any{
			"item_id": item.ID, "type": "IN", "reason": "PURCHASE", "quantity": "10", "unit_cost": cost, "date": "2024-01-10",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	res := decode[core.MovementResult](t, rec)
	assert.Equal(t, "150", res.NewWeightedAverageCost.String())
	assert.Equal(t, "20", res.NewQuantity.String())

	rec = do(t, h, http.MethodPost, "/inventory/movements", "", map[string]any{
		"item_id": item.ID, "type": "OUT", "reason": "SALE", "quantity": "25", "date": "2024-01-11",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(core.CodeNegativeStock), decode[errorResponse](t, rec).Code)

	rec = do(t, h, http.MethodPost, "/inventory/movements", "", map[string]any{
		"item_id": item.ID, "type": "OUT", "reason": "SALE", "quantity": "1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "movement date is required")

	// Movement entries are corrected with another movement, never through the journal.
	require.NotNil(t, res.JournalEntry)
	rec = do(t, h, http.MethodPost, "/journal/entries/"+strconv.FormatInt(res.JournalEntry.ID, 10)+"/reverse", "", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, string(core.CodeInvalidRequest), decode[errorResponse](t, rec).Code)

	rec = do(t, h, http.MethodPost, "/journal/entries", "", map[string]any{
		"date": "2024-01-12", "source_type": "INVENTORY_ADJUSTMENT",
		"lines": []map[string]string{
			{"account_code": "5010", "debit": "50"},
			{"account_code": "1200", "credit": "50"},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/inventory/items/1/movements", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[app.MovementListResult](t, rec).Movements, 2)

	rec = do(t, h, http.MethodGet, "/inventory/valuation", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v struct {
		TotalCostValue string `json:"total_cost_value"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "3000", v.TotalCostValue)
}

func TestReportsAndCSV(t *testing.T) {
	h := newTestHandler(t, true)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/seed", "", nil).Code)

	for _, tmpl := range []map[string]string{
		{"source_type": "INCOME", "category": "salary", "date": "2024-03-01", "amount": "50000"},
		{"source_type": "EXPENSE", "category": "food", "date": "2024-03-15", "amount": "1500"},
	} {
		rec := do(t, h, http.MethodPost, "/journal/templates", "", tmpl)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/reports/profit-loss?year=2024&month=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pl struct {
		NetIncome   string `json:"net_income"`
		SavingsRate string `json:"savings_rate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pl))
	assert.Equal(t, "48500", pl.NetIncome)
	assert.Equal(t, "97", pl.SavingsRate)

	rec = do(t, h, http.MethodGet, "/reports/profit-loss", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodGet, "/reports/balance-sheet?as_of=2024-03-31", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bs struct {
		IsBalanced bool `json:"is_balanced"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bs))
	assert.True(t, bs.IsBalanced)

	rec = do(t, h, http.MethodGet, "/reports/accounts/1010/statement?format=csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[3], "48500.00"), lines[3])

	rec = do(t, h, http.MethodGet, "/reports/trial-balance?as_of=2024-03-31&format=csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Total,,51500.00,51500.00")
}

func TestEntrySchema(t *testing.T) {
	h := newTestHandler(t, true)
	rec := do(t, h, http.MethodGet, "/journal/entries/schema", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Contains(t, schema.Properties, "lines")
	assert.Contains(t, schema.Properties, "source_type")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, true)
	do(t, h, http.MethodGet, "/health", "", nil)

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `finledger_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestCSVSafe(t *testing.T) {
	assert.Equal(t, "'=SUM(A1)", csvSafe("=SUM(A1)"))
	assert.Equal(t, "rent", csvSafe("rent"))
	assert.Equal(t, "", csvSafe(""))
}
