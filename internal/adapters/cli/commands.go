package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finledger/internal/adapters/web"
	"finledger/internal/app"
	"finledger/internal/core"
	"finledger/migrations"
)

// ── Schema ──────────────────────────────────────────────────────────────────

func newMigrateCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	run := func(name string, fn func(cmd *cobra.Command, dsn string) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: name + " migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := rt.config()
				if err != nil {
					return err
				}
				if cfg.DatabaseURL == "" {
					return fmt.Errorf("DATABASE_URL is not set")
				}
				return fn(cmd, cfg.DatabaseURL)
			},
		}
	}
	cmd.AddCommand(
		run("up", func(cmd *cobra.Command, dsn string) error {
			logger, err := rt.log()
			if err != nil {
				return err
			}
			if err := migrations.Up(cmd.Context(), dsn, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		}),
		run("down", func(cmd *cobra.Command, dsn string) error {
			logger, err := rt.log()
			if err != nil {
				return err
			}
			if err := migrations.Down(cmd.Context(), dsn, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration.")
			return nil
		}),
		run("status", func(cmd *cobra.Command, dsn string) error {
			logger, err := rt.log()
			if err != nil {
				return err
			}
			return migrations.Status(cmd.Context(), dsn, logger)
		}),
	)
	return cmd
}

// ── Chart of accounts ───────────────────────────────────────────────────────

func newSeedCommand(rt *runtime) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install or refresh the chart of accounts (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var accounts []core.SeedAccount
			if file != "" {
				var err error
				if accounts, err = core.LoadSeedFile(file); err != nil {
					return err
				}
			}
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.SeedChart(cmd.Context(), rt.tenantID(), accounts)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "Chart seeded for tenant %s: %d inserted, %d updated, %d unchanged.\n",
					rt.tenantID(), result.Inserted, result.Updated, result.Unchanged)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML chart file (default: built-in chart)")
	return cmd
}

func newAccountsCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "accounts [code]",
		Aliases: []string{"coa"},
		Short:   "Show the chart of accounts, or the children of one account",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			var result *app.AccountListResult
			if len(args) == 1 {
				result, err = svc.ListChildren(cmd.Context(), rt.tenantID(), args[0])
			} else {
				result, err = svc.ListAccounts(cmd.Context(), rt.tenantID())
			}
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printAccounts(w, result) })
		},
	}
}

// ── Journal ─────────────────────────────────────────────────────────────────

// entryFile is the JSON accepted by `ledgerctl post`.
type entryFile struct {
	Date           string `json:"date"`
	Memo           string `json:"memo"`
	SourceType     string `json:"source_type"`
	SourceID       string `json:"source_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Lines          []struct {
		AccountCode string `json:"account_code"`
		Debit       string `json:"debit"`
		Credit      string `json:"credit"`
		Memo        string `json:"memo"`
	} `json:"lines"`
}

func (f entryFile) toApp() app.PostEntryRequest {
	req := app.PostEntryRequest{
		Date:           f.Date,
		Memo:           f.Memo,
		SourceType:     f.SourceType,
		SourceID:       f.SourceID,
		IdempotencyKey: f.IdempotencyKey,
	}
	for _, l := range f.Lines {
		req.Lines = append(req.Lines, app.PostLineInput{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Memo:        l.Memo,
		})
	}
	return req
}

func newPostCommand(rt *runtime) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a journal entry read as JSON from --file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open entry file: %w", err)
				}
				defer f.Close()
				in = f
			}
			var body entryFile
			dec := json.NewDecoder(in)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&body); err != nil {
				return fmt.Errorf("invalid entry JSON: %w", err)
			}

			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := svc.PostEntry(cmd.Context(), rt.tenantID(), body.toApp())
			if err != nil {
				return err
			}
			return rt.emit(cmd, entry, func(w io.Writer) { printEntry(w, entry, rt.formatter()) })
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "entry JSON file (default: stdin)")
	return cmd
}

// today is the default for --date flags. The services never assume a date.
func today() string {
	return time.Now().UTC().Format(core.DateLayout)
}

func newRecordCommand(rt *runtime) *cobra.Command {
	var req app.TemplateEntryRequest
	cmd := &cobra.Command{
		Use:   "record <source-type> <category> <amount>",
		Short: "Post an entry from a transaction template",
		Long: "Post an entry from a transaction template, for example:\n\n" +
			"  ledgerctl record expense food 42.50 --date 2024-03-02\n" +
			"  ledgerctl record income salary 50000 --tax 5000",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SourceType = strings.ToUpper(args[0])
			req.Category = args[1]
			req.Amount = args[2]
			if req.Date == "" {
				req.Date = today()
			}

			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := svc.PostTemplate(cmd.Context(), rt.tenantID(), req)
			if err != nil {
				return err
			}
			return rt.emit(cmd, entry, func(w io.Writer) { printEntry(w, entry, rt.formatter()) })
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Date, "date", "", "entry date YYYY-MM-DD (default: today)")
	f.StringVar(&req.Memo, "memo", "", "entry memo")
	f.StringVar(&req.SourceID, "source-id", "", "external document reference")
	f.StringVar(&req.IdempotencyKey, "idempotency-key", "", "replay-safe key")
	f.StringVar(&req.Tax, "tax", "", "tax portion")
	f.StringVar(&req.Fee, "fee", "", "fee portion")
	f.StringVar(&req.DebitAccount, "debit", "", "override the debit account")
	f.StringVar(&req.CreditAccount, "credit", "", "override the credit account")
	return cmd
}

func newReverseCommand(rt *runtime) *cobra.Command {
	var req app.ReverseEntryRequest
	cmd := &cobra.Command{
		Use:   "reverse <entry-id>",
		Short: "Post the reversal of a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req.EntryID = id
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := svc.ReverseEntry(cmd.Context(), rt.tenantID(), req)
			if err != nil {
				return err
			}
			return rt.emit(cmd, entry, func(w io.Writer) { printEntry(w, entry, rt.formatter()) })
		},
	}
	cmd.Flags().StringVar(&req.Date, "date", "", "reversal date (default: original entry date)")
	cmd.Flags().StringVar(&req.Memo, "memo", "", "reversal memo")
	return cmd
}

func newEntriesCommand(rt *runtime) *cobra.Command {
	var q app.EntryQuery
	cmd := &cobra.Command{
		Use:   "entries [entry-id]",
		Short: "List journal entries, or show one entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				entry, err := svc.GetEntry(cmd.Context(), rt.tenantID(), id)
				if err != nil {
					return err
				}
				return rt.emit(cmd, entry, func(w io.Writer) { printEntry(w, entry, rt.formatter()) })
			}
			result, err := svc.ListEntries(cmd.Context(), rt.tenantID(), q)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printEntries(w, result, rt.formatter()) })
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.From, "from", "", "first date YYYY-MM-DD")
	f.StringVar(&q.To, "to", "", "last date YYYY-MM-DD")
	f.StringVar(&q.SourceType, "source", "", "filter by source type")
	f.StringVar(&q.AccountCode, "account", "", "only entries touching this account")
	f.IntVar(&q.Limit, "limit", 0, "maximum number of entries")
	return cmd
}

// ── Reports ─────────────────────────────────────────────────────────────────

func newReportCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"rpt"},
		Short:   "Financial reports",
	}

	var tbAsOf string
	tb := &cobra.Command{
		Use:     "trial-balance",
		Aliases: []string{"tb"},
		Short:   "Trial balance as of a date",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.TrialBalance(cmd.Context(), rt.tenantID(), tbAsOf)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printTrialBalance(w, result) })
		},
	}
	tb.Flags().StringVar(&tbAsOf, "as-of", "", "report date (default: today)")

	var plPeriod app.PeriodRequest
	pl := &cobra.Command{
		Use:     "profit-loss",
		Aliases: []string{"pl"},
		Short:   "Profit and loss for a month or date range",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.ProfitAndLoss(cmd.Context(), rt.tenantID(), defaultPeriod(plPeriod))
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printProfitAndLoss(w, result) })
		},
	}
	periodFlags(pl, &plPeriod)

	var bsAsOf string
	bs := &cobra.Command{
		Use:     "balance-sheet",
		Aliases: []string{"bs"},
		Short:   "Balance sheet as of a date",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.BalanceSheet(cmd.Context(), rt.tenantID(), bsAsOf)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printBalanceSheet(w, result) })
		},
	}
	bs.Flags().StringVar(&bsAsOf, "as-of", "", "report date (default: today)")

	var cogsPeriod app.PeriodRequest
	cogs := &cobra.Command{
		Use:   "cogs",
		Short: "Cost of goods sold for a month or date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.COGSReport(cmd.Context(), rt.tenantID(), defaultPeriod(cogsPeriod))
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printCOGS(w, result) })
		},
	}
	periodFlags(cogs, &cogsPeriod)

	var stFrom, stTo string
	statement := &cobra.Command{
		Use:   "statement <account-code>",
		Short: "Running-balance statement for one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.AccountStatement(cmd.Context(), rt.tenantID(), args[0], stFrom, stTo)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printStatement(w, result) })
		},
	}
	statement.Flags().StringVar(&stFrom, "from", "", "first date YYYY-MM-DD")
	statement.Flags().StringVar(&stTo, "to", "", "last date YYYY-MM-DD")

	cmd.AddCommand(tb, pl, bs, cogs, statement)
	return cmd
}

func periodFlags(cmd *cobra.Command, p *app.PeriodRequest) {
	f := cmd.Flags()
	f.StringVar(&p.Start, "start", "", "first day YYYY-MM-DD")
	f.StringVar(&p.End, "end", "", "last day YYYY-MM-DD (default: start)")
	f.IntVar(&p.Year, "year", 0, "calendar year")
	f.IntVar(&p.Month, "month", 0, "calendar month 1-12")
}

// defaultPeriod falls back to the current month when no period flags were given.
func defaultPeriod(p app.PeriodRequest) app.PeriodRequest {
	if p.Start == "" && p.Year == 0 && p.Month == 0 {
		now := time.Now().UTC()
		p.Year, p.Month = now.Year(), int(now.Month())
	}
	return p
}

// ── Inventory ───────────────────────────────────────────────────────────────

func newInventoryCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Inventory items, movements and valuation",
	}

	var includeInactive bool
	items := &cobra.Command{
		Use:   "items",
		Short: "List inventory items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.ListItems(cmd.Context(), rt.tenantID(), includeInactive)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printItems(w, result, rt.formatter()) })
		},
	}
	items.Flags().BoolVar(&includeInactive, "all", false, "include deactivated items")

	var reg app.RegisterItemRequest
	register := &cobra.Command{
		Use:   "register <sku> <name>",
		Short: "Register an inventory item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.SKU, reg.Name = args[0], args[1]
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			item, err := svc.RegisterItem(cmd.Context(), rt.tenantID(), reg)
			if err != nil {
				return err
			}
			return rt.emit(cmd, item, func(w io.Writer) {
				fmt.Fprintf(w, "Registered item #%d %s (%s).\n", item.ID, item.SKU, item.Name)
			})
		},
	}
	register.Flags().StringVar(&reg.Category, "category", "", "item category")
	register.Flags().StringVar(&reg.SellingPrice, "price", "", "selling price")

	var mv app.MovementRequest
	move := &cobra.Command{
		Use:   "move <item-id> <IN|OUT|ADJUSTMENT> <quantity>",
		Short: "Record a stock movement and its journal entry",
		Long: "Record a stock movement. For ADJUSTMENT the quantity is the counted\n" +
			"quantity on hand, not a delta.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			mv.ItemID, mv.Type, mv.Quantity = id, args[1], args[2]
			if mv.Date == "" {
				mv.Date = today()
			}
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.RecordMovement(cmd.Context(), rt.tenantID(), mv)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printMovement(w, result, rt.formatter()) })
		},
	}
	mf := move.Flags()
	mf.StringVar(&mv.Reason, "reason", "", "movement reason (e.g. PURCHASE, SALE, COUNT)")
	mf.StringVar(&mv.UnitCost, "unit-cost", "", "unit cost, IN movements only")
	mf.StringVar(&mv.Date, "date", "", "movement date (default: today)")
	mf.StringVar(&mv.Notes, "notes", "", "free-form notes")
	mf.StringVar(&mv.CounterAccountCode, "counter", "", "override the counter account")
	mf.StringVar(&mv.IdempotencyKey, "idempotency-key", "", "replay-safe key")

	var asOf string
	valuation := &cobra.Command{
		Use:   "valuation",
		Short: "Inventory valuation at weighted average cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Valuation(cmd.Context(), rt.tenantID(), asOf)
			if err != nil {
				return err
			}
			return rt.emit(cmd, result, func(w io.Writer) { printValuation(w, result) })
		},
	}
	valuation.Flags().StringVar(&asOf, "as-of", "", "valuation date (default: current quantities)")

	deactivate := &cobra.Command{
		Use:   "deactivate <item-id>",
		Short: "Deactivate an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			item, err := svc.DeactivateItem(cmd.Context(), rt.tenantID(), id)
			if err != nil {
				return err
			}
			return rt.emit(cmd, item, func(w io.Writer) {
				fmt.Fprintf(w, "Item #%d %s deactivated.\n", item.ID, item.SKU)
			})
		},
	}

	cmd.AddCommand(items, register, move, valuation, deactivate)
	return cmd
}

// ── Auth ────────────────────────────────────────────────────────────────────

func newTokenCommand(rt *runtime) *cobra.Command {
	var subject, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := web.IssueToken(cfg.JWTSecret, subject, rt.tenantID(), role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "ledgerctl", "token subject")
	cmd.Flags().StringVar(&role, "role", "", "role claim (admin for chart changes)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id must be a positive integer, got %q", s)
	}
	return id, nil
}
