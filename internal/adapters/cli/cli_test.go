package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/adapters/cli"
	"finledger/internal/app"
	"finledger/internal/config"
	"finledger/internal/store/memory"
)

type harness struct {
	t   *testing.T
	svc app.ApplicationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, svc: app.NewAppService(memory.New(), app.Options{Currency: "USD"})}
}

// run executes one ledgerctl invocation against the shared in-memory service.
func (h *harness) run(stdin string, args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := cli.NewRootCommand(cli.WithService(h.svc, "USD"))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SilenceErrors = true
	if err := root.ExecuteContext(context.Background()); err != nil {
		errOut.WriteString("Error: " + err.Error() + "\n")
		return out.String(), errOut.String(), 1
	}
	return out.String(), errOut.String(), 0
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run("", args...)
	require.Equal(h.t, 0, code, errOut)
	return out
}

func TestSeedAndAccounts(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("seed")
	assert.Contains(t, out, "Chart seeded for tenant default")
	assert.Contains(t, out, "0 updated")

	out = h.mustRun("seed", "--json")
	var res struct {
		Inserted  int `json:"inserted"`
		Unchanged int `json:"unchanged"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Zero(t, res.Inserted)
	assert.Positive(t, res.Unchanged)

	out = h.mustRun("accounts")
	assert.Contains(t, out, "CHART OF ACCOUNTS")
	assert.Contains(t, out, "1010")
	assert.Contains(t, out, "contra")

	out = h.mustRun("accounts", "6010")
	assert.Contains(t, out, "6011")
	assert.NotContains(t, out, "1010")
}

func TestRecordAndReports(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")

	out := h.mustRun("record", "income", "salary", "50000", "--date", "2024-03-01")
	assert.Contains(t, out, "JOURNAL ENTRY #1")
	assert.Contains(t, out, "$50,000.00")
	h.mustRun("record", "expense", "food", "1500", "--date", "2024-03-15", "--memo", "groceries")

	out = h.mustRun("report", "pl", "--year", "2024", "--month", "3")
	assert.Contains(t, out, "PROFIT & LOSS")
	assert.Contains(t, out, "$48,500.00")
	assert.Contains(t, out, "97.00%")

	out = h.mustRun("report", "tb", "--as-of", "2024-03-31")
	assert.Contains(t, out, "$51,500.00")
	assert.NotContains(t, out, "WARNING")

	out = h.mustRun("report", "bs", "--as-of", "2024-03-31")
	assert.Contains(t, out, "BALANCE SHEET")
	assert.NotContains(t, out, "WARNING")

	out = h.mustRun("report", "statement", "1010")
	assert.Contains(t, out, "groceries")
	assert.Contains(t, out, "Closing balance")
	assert.Contains(t, out, "$48,500.00")

	out = h.mustRun("entries", "--account", "6011")
	assert.Contains(t, out, "groceries")
	assert.NotContains(t, out, "salary")
}

func TestPostFromStdinAndReverse(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")

	entry := `{"date":"2024-01-05","memo":"transfer","lines":[
		{"account_code":"1020","debit":"250"},
		{"account_code":"1010","credit":"250"}]}`
	out, errOut, code := h.run(entry, "post")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "$250.00")

	out = h.mustRun("reverse", "1", "--json")
	var reversal struct {
		ReversesEntryID int64 `json:"reverses_entry_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &reversal))
	assert.Equal(t, int64(1), reversal.ReversesEntryID)

	_, errOut, code = h.run("", "reverse", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ALREADY_REVERSED")
}

func TestPostRejectsUnbalanced(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")

	entry := `{"date":"2024-01-05","lines":[
		{"account_code":"1020","debit":"250"},
		{"account_code":"1010","credit":"200"}]}`
	_, errOut, code := h.run(entry, "post")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "UNBALANCED_ENTRY")

	_, errOut, code = h.run(`{"bogus":true}`, "post")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid entry JSON")
}

func TestInventoryCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")

	out := h.mustRun("inventory", "register", "W-1", "Widget", "--category", "parts", "--price", "250")
	assert.Contains(t, out, "Registered item #1 W-1")

	out = h.mustRun("inventory", "move", "1", "IN", "10", "--reason", "PURCHASE", "--unit-cost", "100", "--date", "2024-01-10")
	assert.Contains(t, out, "weighted average cost 100.000000")
	assert.Contains(t, out, "Posted journal entry")

	out = h.mustRun("inventory", "move", "1", "in", "10", "--reason", "purchase", "--unit-cost", "200", "--date", "2024-01-10")
	assert.Contains(t, out, "qty 20")
	assert.Contains(t, out, "weighted average cost 150.000000")

	_, errOut, code := h.run("", "inventory", "move", "1", "OUT", "25", "--reason", "SALE")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "NEGATIVE_STOCK_ERROR")

	out = h.mustRun("inventory", "valuation")
	assert.Contains(t, out, "parts")
	assert.Contains(t, out, "$3,000.00")

	out = h.mustRun("inventory", "items")
	assert.Contains(t, out, "Widget")
}

func TestTenantFlagIsolatesData(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed", "--tenant", "acme")

	out := h.mustRun("accounts", "--tenant", "other")
	assert.Contains(t, out, "No accounts")
}

func TestTokenCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	cfg := &config.Config{JWTSecret: "test-secret", DefaultTenant: "acme"}
	code := cli.Execute(context.Background(), []string{"token", "--role", "admin"}, &out, &errOut, cli.WithConfig(cfg))
	require.Equal(t, 0, code, errOut.String())

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", claims["tenant_id"])
	assert.Equal(t, "admin", claims["role"])
}

func TestExecuteReportsErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	svc := app.NewAppService(memory.New(), app.Options{})
	code := cli.Execute(context.Background(), []string{"entries", "42"}, &out, &errOut, cli.WithService(svc, "USD"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "ENTRY_NOT_FOUND")
}
