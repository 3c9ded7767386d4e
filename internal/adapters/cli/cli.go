// Package cli implements ledgerctl, the command-line client for the ledger.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"finledger/internal/app"
	"finledger/internal/config"
	"finledger/internal/logging"
)

// runtime holds the state shared by every subcommand. The service is opened
// lazily so commands that only need configuration (migrate, token) never touch
// the store.
type runtime struct {
	envFiles []string
	tenant   string
	asJSON   bool

	cfg      *config.Config
	logger   *zap.Logger
	svc      app.ApplicationService
	currency string
	closeFn  func()
}

// Option customises the root command.
type Option func(*runtime)

// WithService runs every command against svc instead of opening the configured store.
func WithService(svc app.ApplicationService, currency string) Option {
	return func(rt *runtime) {
		rt.svc = svc
		rt.currency = currency
	}
}

// WithConfig skips environment loading and uses cfg as-is.
func WithConfig(cfg *config.Config) Option {
	return func(rt *runtime) { rt.cfg = cfg }
}

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	rt := &runtime{}
	for _, o := range opts {
		o(rt)
	}

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Double-entry ledger, inventory and reporting from the command line",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close()
		},
	}
	root.PersistentFlags().StringSliceVar(&rt.envFiles, "env-file", nil, "dotenv file(s) to load before the environment")
	root.PersistentFlags().StringVar(&rt.tenant, "tenant", "", "tenant to operate on (defaults to DEFAULT_TENANT)")
	root.PersistentFlags().BoolVar(&rt.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newMigrateCommand(rt),
		newSeedCommand(rt),
		newAccountsCommand(rt),
		newPostCommand(rt),
		newRecordCommand(rt),
		newReverseCommand(rt),
		newEntriesCommand(rt),
		newReportCommand(rt),
		newInventoryCommand(rt),
		newTokenCommand(rt),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	root := NewRootCommand(opts...)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceErrors = true
	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

// printError writes one line per aggregated error so every failing entry line is shown.
func printError(w io.Writer, err error) {
	for _, e := range multierr.Errors(err) {
		fmt.Fprintln(w, "Error:", e)
	}
}

func (rt *runtime) config() (*config.Config, error) {
	if rt.cfg != nil {
		return rt.cfg, nil
	}
	cfg, err := config.Load(rt.envFiles...)
	if err != nil {
		return nil, err
	}
	rt.cfg = cfg
	return cfg, nil
}

func (rt *runtime) log() (*zap.Logger, error) {
	if rt.logger != nil {
		return rt.logger, nil
	}
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	// Logs go to stderr so they never mix with command output.
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return nil, err
	}
	rt.logger = logger
	return logger, nil
}

func (rt *runtime) service(ctx context.Context) (app.ApplicationService, error) {
	if rt.svc != nil {
		return rt.svc, nil
	}
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	logger, err := rt.log()
	if err != nil {
		return nil, err
	}
	svc, closeFn, err := app.Open(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	rt.svc = svc
	rt.currency = cfg.BaseCurrency
	rt.closeFn = closeFn
	return svc, nil
}

func (rt *runtime) tenantID() string {
	if rt.tenant != "" {
		return rt.tenant
	}
	if rt.cfg != nil && rt.cfg.DefaultTenant != "" {
		return rt.cfg.DefaultTenant
	}
	return "default"
}

func (rt *runtime) formatter() amountFormatter {
	if rt.currency == "" {
		return newAmountFormatter("USD")
	}
	return newAmountFormatter(rt.currency)
}

func (rt *runtime) close() {
	if rt.closeFn != nil {
		rt.closeFn()
		rt.closeFn = nil
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

// emit prints v as indented JSON when --json is set, otherwise calls table.
func (rt *runtime) emit(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	if rt.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table(cmd.OutOrStdout())
	return nil
}
