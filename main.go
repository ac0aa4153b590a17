package main

import (
	"fmt"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
)

type Params struct {
	Command string `descr:"Command to run" positional:"true" alts:"list,add,delete,pause,resume,budget,categories,report,import" strict:"true"`
	Config  string `descr:"Path to config file (default ~/.subscriptionkit/config.yaml)" optional:"true"`
	Output  string `descr:"Output format" alts:"table,json" strict:"true" default:"table"`
	Verbose bool   `descr:"Log diagnostics to stderr" optional:"true"`

	// list / categories / budget / report
	Currency string `descr:"Currency code: display currency, or the record currency for add" optional:"true"`
	Show     string `descr:"Which subscriptions to list" alts:"all,active,paused" strict:"true" default:"all"`
	Sort     string `descr:"Sort field" alts:"position,name,amount,category" strict:"true" default:"position"`
	SortDir  string `descr:"Sort direction" alts:"asc,desc" strict:"true" default:"asc"`

	// add
	Name          string `descr:"Subscription name" optional:"true"`
	Category      string `descr:"Category (also the default for import)" optional:"true"`
	Amount        string `descr:"Amount charged per billing cycle" optional:"true"`
	PaymentMethod string `descr:"Payment method (also the default for import)" optional:"true"`
	Cycle         string `descr:"Billing cycle" alts:"Monthly,Yearly,Weekly" default:"Monthly"`
	Notes         string `descr:"Free-form notes" optional:"true"`
	Inactive      bool   `descr:"Add the subscription as paused" optional:"true"`

	// delete / pause / resume
	ID string `descr:"Subscription ID, unique ID prefix, or 1-based position from list" optional:"true"`

	// report / import
	File   string `descr:"Report output path (- for stdout), or file to import" optional:"true"`
	Source string `descr:"Import source type (detected from extension if omitted)" alts:"csv,json,xlsx" optional:"true"`

	// budget
	SetBudget          string `descr:"New budget amount" optional:"true"`
	SetBudgetCurrency  string `descr:"New budget currency" optional:"true"`
	SetDisplayCurrency string `descr:"New default display currency" optional:"true"`
}

func main() {
	boa.NewCmdT[Params]("subscriptionkit").
		WithShort("Track recurring subscriptions against a budget").
		WithLong("Keeps a ledger of recurring subscriptions in a CSV (or SQLite) file, normalizes their amounts into one display currency and reports totals, per-category spend and remaining budget.").
		WithRunFunc(func(params *Params) {
			if err := run(params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}).
		Run()
}
