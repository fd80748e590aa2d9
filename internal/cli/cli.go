// Package cli is the offline advisor: it runs the forecast and the optimizer
// over a transactions file and a TOML catalog without a database.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cashback-advisor/internal/advisor"
	"cashback-advisor/internal/catalog"
	"cashback-advisor/internal/config"
	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/forecast"
	"cashback-advisor/internal/ingest"
	"cashback-advisor/internal/logging"
	"cashback-advisor/internal/optimizer"
	"cashback-advisor/internal/storage/memory"

	"github.com/spf13/cobra"
)

// offline runs belong to a single local user
const localUser int64 = 1

type options struct {
	transactions string
	catalog      string
	month        string
	bank         string
	maxSubsets   int
	legacy       bool
	verbose      bool
}

// NewRootCmd builds the advisor command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "advisor",
		Short:         "Forecast card spend and pick cashback categories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			logging.Setup(logging.Config{Level: level, Output: cmd.ErrOrStderr()})
			return opts.applyConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.transactions, "transactions", "t", "", "Open Banking transactions JSON file")
	pf.StringVarP(&opts.month, "month", "m", "", "Target month YYYY-MM (defaults to the catalog month)")
	pf.StringVar(&opts.bank, "bank", "", "Bank name for transactions without one")
	pf.BoolVar(&opts.legacy, "legacy-weights", false, "Use the historical direct-model weights")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging to stderr")

	forecastCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Predict spend per category for the target month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runForecast(cmd, opts)
		},
	}
	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Pick the best categories per bank for the predicted spend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptimize(cmd, opts)
		},
	}
	adviseCmd := &cobra.Command{
		Use:   "advise",
		Short: "Full recommendation: predictions and a decision per catalog row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdvise(cmd, opts)
		},
	}
	for _, c := range []*cobra.Command{optimizeCmd, adviseCmd} {
		c.Flags().StringVarP(&opts.catalog, "catalog", "c", "", "TOML cashback catalog (defaults to CATALOG_FILE)")
		c.Flags().IntVar(&opts.maxSubsets, "max-subsets", optimizer.DefaultMaxSubsets, "Per-bank subset search limit")
	}

	root.AddCommand(forecastCmd, optimizeCmd, adviseCmd)
	return root
}

// Execute runs the command tree with os.Args.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

// applyConfig fills flags left unset from the environment (.env included).
func (o *options) applyConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.catalog == "" {
		o.catalog = cfg.CatalogFile
	}
	if !cmd.Flags().Changed("max-subsets") && cfg.OptimizerMaxSubsets > 0 {
		o.maxSubsets = cfg.OptimizerMaxSubsets
	}
	if !cmd.Flags().Changed("legacy-weights") {
		o.legacy = cfg.ForecastLegacyWeights
	}
	return nil
}

func (o *options) service() *advisor.Service {
	return advisor.New(memory.NewStorage(), advisor.Options{
		Forecast:  forecast.Options{LegacyDirectWeights: o.legacy},
		Optimizer: optimizer.Options{MaxSubsets: o.maxSubsets},
	})
}

func (o *options) loadTransactions() ([]domain.BankTransaction, error) {
	if o.transactions == "" {
		return nil, fmt.Errorf("--transactions is required")
	}
	data, err := os.ReadFile(o.transactions)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return ingest.ParseOpenBanking(data, o.bank)
}

// loadCatalog also resolves the target month: the flag wins over the file.
func (o *options) loadCatalog() (*catalog.File, string, error) {
	if o.catalog == "" {
		return nil, "", fmt.Errorf("--catalog or CATALOG_FILE is required")
	}
	file, err := catalog.Load(o.catalog)
	if err != nil {
		return nil, "", err
	}
	month := o.month
	if month == "" {
		month = file.Month
	}
	if month == "" {
		return nil, "", fmt.Errorf("target month is not set: pass --month or set month in the catalog")
	}
	return file, month, nil
}

func runForecast(cmd *cobra.Command, o *options) error {
	if o.month == "" {
		return fmt.Errorf("--month is required")
	}
	txs, err := o.loadTransactions()
	if err != nil {
		return err
	}
	predictions, err := o.service().Forecast(o.month, txs)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), predictions.Sorted())
}

func runOptimize(cmd *cobra.Command, o *options) error {
	file, month, err := o.loadCatalog()
	if err != nil {
		return err
	}
	txs, err := o.loadTransactions()
	if err != nil {
		return err
	}
	predictions, err := o.service().Forecast(month, txs)
	if err != nil {
		return err
	}
	chosen, err := optimizer.New(optimizer.Options{MaxSubsets: o.maxSubsets}).Optimize(predictions, file.Offers())
	if err != nil {
		return err
	}
	if chosen == nil {
		chosen = []domain.ChosenCashback{}
	}
	return writeJSON(cmd.OutOrStdout(), chosen)
}

func runAdvise(cmd *cobra.Command, o *options) error {
	file, month, err := o.loadCatalog()
	if err != nil {
		return err
	}
	txs, err := o.loadTransactions()
	if err != nil {
		return err
	}

	store := memory.NewStorage()
	if err := store.SaveMonth(cmd.Context(), localUser, month, file.BanksWithCategories()); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	svc := advisor.New(store, advisor.Options{
		Forecast:  forecast.Options{LegacyDirectWeights: o.legacy},
		Optimizer: optimizer.Options{MaxSubsets: o.maxSubsets},
	})
	rec, err := svc.Recommend(cmd.Context(), localUser, month, txs)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), rec)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
