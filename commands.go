package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gigurra/subscriptionkit/internal"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// app holds everything a command needs, built once per invocation
type app struct {
	params  *Params
	out     io.Writer
	cfgPath string
	cfg     *internal.BudgetConfig
	ledger  *internal.Ledger
	log     zerolog.Logger
}

func run(params *Params, out io.Writer) error {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	logger := internal.NewLogger(os.Stderr, params.Verbose)

	cfgPath := params.Config
	if cfgPath == "" {
		cfgPath = internal.DefaultConfigPath()
	}
	cfg, err := internal.LoadBudgetConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}

	store, err := internal.OpenStore(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	conv := internal.NewConverter(internal.NewRateSource(cfg.Rates))
	a := &app{
		params:  params,
		out:     out,
		cfgPath: cfgPath,
		cfg:     cfg,
		ledger:  internal.NewLedger(store, conv, cfg, logger),
		log:     logger,
	}

	ctx := context.Background()
	switch params.Command {
	case "list":
		return a.list(ctx)
	case "add":
		return a.add(ctx)
	case "delete":
		return a.delete(ctx)
	case "pause":
		return a.setActive(ctx, false)
	case "resume":
		return a.setActive(ctx, true)
	case "budget":
		return a.budget(ctx)
	case "categories":
		return a.categories(ctx)
	case "report":
		return a.report(ctx)
	case "import":
		return a.importFile(ctx)
	default:
		return fmt.Errorf("unknown command %q", params.Command)
	}
}

// displayCurrency returns --currency if given, otherwise the configured display currency
func (a *app) displayCurrency() (internal.CurrencyCode, error) {
	if a.params.Currency == "" {
		return a.cfg.DisplayCurrency, nil
	}
	return internal.ParseCurrencyCode(a.params.Currency)
}

// snapshot loads all records and normalizes them. A load failure is reported
// on stderr and the snapshot is computed over no data.
func (a *app) snapshot(ctx context.Context) (internal.Snapshot, error) {
	target, err := a.displayCurrency()
	if err != nil {
		return internal.Snapshot{}, err
	}
	records, err := a.ledger.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load subscriptions (%v); showing no data.\n", err)
	}
	return a.ledger.Snapshot(ctx, records, target), nil
}

func (a *app) outputOptions() internal.OutputOptions {
	return internal.OutputOptions{
		ShowFilter: a.params.Show,
		SortField:  a.params.Sort,
		SortDir:    a.params.SortDir,
	}
}

func (a *app) list(ctx context.Context) error {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	if a.params.Output == "json" {
		return internal.PrintSnapshotJSON(a.out, snap, a.outputOptions())
	}
	if len(snap.Records) == 0 {
		fmt.Fprintln(a.out, "No subscriptions yet. Add one with: subscriptionkit add --name ... --category ... --currency ... --amount ... --payment-method ...")
		return nil
	}
	internal.PrintSnapshotTable(a.out, snap, a.outputOptions())
	return nil
}

func (a *app) add(ctx context.Context) error {
	active := !a.params.Inactive

	sub, err := a.ledger.Add(ctx, internal.NewSubscription{
		Name:          a.params.Name,
		Category:      a.params.Category,
		Currency:      a.params.Currency,
		AmountText:    a.params.Amount,
		PaymentMethod: a.params.PaymentMethod,
		BillingCycle:  a.params.Cycle,
		Active:        &active,
		Notes:         a.params.Notes,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Record added: %s, %s, %s %s (id %s)\n",
		sub.Name, sub.Category, sub.Amount.StringFixed(2), sub.Currency, shortID(sub.ID))
	return nil
}

// resolve maps --id to a stored ID against a fresh load
func (a *app) resolve(ctx context.Context) (string, error) {
	if a.params.ID == "" {
		return "", fmt.Errorf("--id is required for %s", a.params.Command)
	}
	records, err := a.ledger.Load(ctx)
	if err != nil {
		return "", err
	}
	return internal.Resolve(records, a.params.ID)
}

func (a *app) delete(ctx context.Context) error {
	id, err := a.resolve(ctx)
	if err != nil {
		return err
	}
	removed, err := a.ledger.Delete(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s (id %s)\n", removed.Name, shortID(removed.ID))
	return nil
}

func (a *app) setActive(ctx context.Context, active bool) error {
	id, err := a.resolve(ctx)
	if err != nil {
		return err
	}
	sub, err := a.ledger.SetActive(ctx, id, active)
	if err != nil {
		return err
	}
	state := "paused"
	if active {
		state = "resumed"
	}
	fmt.Fprintf(a.out, "%s %s (id %s)\n", strings.ToUpper(state[:1])+state[1:], sub.Name, shortID(sub.ID))
	return nil
}

func (a *app) budget(ctx context.Context) error {
	p := a.params
	if p.SetBudget != "" || p.SetBudgetCurrency != "" || p.SetDisplayCurrency != "" {
		if err := a.saveBudget(); err != nil {
			return err
		}
	}

	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	if p.Output == "json" {
		return internal.PrintSummaryJSON(a.out, snap)
	}
	internal.PrintBudgetTable(a.out, snap)
	return nil
}

// saveBudget updates the on-disk config (without env overrides) and swaps
// the result, with env overrides reapplied, into the ledger.
func (a *app) saveBudget() error {
	p := a.params
	fileCfg, err := internal.LoadBudgetConfig(a.cfgPath)
	if err != nil {
		return err
	}
	if p.SetBudget != "" {
		amount, err := decimal.NewFromString(strings.TrimSpace(p.SetBudget))
		if err != nil {
			return &internal.ConfigError{Err: fmt.Errorf("invalid budget %q", p.SetBudget)}
		}
		fileCfg.BudgetAmount = amount
	}
	if p.SetBudgetCurrency != "" {
		code, err := internal.ParseCurrencyCode(p.SetBudgetCurrency)
		if err != nil {
			return &internal.ConfigError{Err: err}
		}
		fileCfg.BudgetCurrency = code
	}
	if p.SetDisplayCurrency != "" {
		code, err := internal.ParseCurrencyCode(p.SetDisplayCurrency)
		if err != nil {
			return &internal.ConfigError{Err: err}
		}
		fileCfg.DisplayCurrency = code
	}
	if err := fileCfg.Save(a.cfgPath); err != nil {
		return err
	}

	a.cfg.BudgetAmount = fileCfg.BudgetAmount
	a.cfg.BudgetCurrency = fileCfg.BudgetCurrency
	a.cfg.DisplayCurrency = fileCfg.DisplayCurrency
	// Environment overrides still win for the rest of this run
	if err := a.cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	a.ledger.Reconfigure(a.cfg)
	a.log.Info().Str("path", a.cfgPath).Msg("Config saved")
	if p.Output == "json" {
		return nil
	}
	fmt.Fprintf(a.out, "Saved budget %s %s (display %s) to %s\n\n",
		fileCfg.BudgetAmount.StringFixed(2), fileCfg.BudgetCurrency, fileCfg.DisplayCurrency, a.cfgPath)
	return nil
}

func (a *app) categories(ctx context.Context) error {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	if a.params.Output == "json" {
		return internal.PrintSummaryJSON(a.out, snap)
	}
	internal.PrintCategoriesTable(a.out, snap)
	return nil
}

func (a *app) report(ctx context.Context) error {
	if a.params.File == "" {
		return fmt.Errorf("--file is required for report")
	}
	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	if a.params.File == "-" {
		return internal.WriteReport(a.out, snap, now)
	}
	if err := internal.ExportReport(a.params.File, snap, now); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Report written to %s (%d active subscriptions, total %s)\n",
		a.params.File, snap.ActiveCount, internal.GetCurrency(snap.Currency).Format(snap.Total))
	return nil
}

func (a *app) importFile(ctx context.Context) error {
	if a.params.File == "" {
		return fmt.Errorf("--file is required for import")
	}
	source := a.params.Source
	if source == "" {
		var err error
		if source, err = internal.DetectSource(a.params.File); err != nil {
			return err
		}
	}
	importer, err := internal.GetImporter(source)
	if err != nil {
		return err
	}
	candidates, err := importer.Import(a.params.File)
	if err != nil {
		return fmt.Errorf("importing %s: %w", a.params.File, err)
	}

	added, rejected, err := a.ledger.Import(ctx, candidates, internal.ImportDefaults{
		Category:      a.params.Category,
		PaymentMethod: a.params.PaymentMethod,
		Currency:      a.params.Currency,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Imported %d of %d subscriptions from %s\n", len(added), len(candidates), a.params.File)
	for _, r := range rejected {
		fmt.Fprintf(a.out, "  row %d (%s): %v\n", r.Row, r.Name, r.Err)
	}
	if len(added) == 0 && len(rejected) > 0 {
		return errors.New("no valid subscriptions to import")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
