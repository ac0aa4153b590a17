package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// OutputOptions controls how a snapshot is displayed
type OutputOptions struct {
	ShowFilter string // all, active, paused
	SortField  string // position, name, amount, category
	SortDir    string // asc, desc
}

// Row is a normalized record together with its 1-based stored position
type Row struct {
	Position int
	NormalizedRecord
}

// JSONOutput is the root JSON output object
type JSONOutput struct {
	Subscriptions []JSONSubscription `json:"subscriptions"`
	Summary       JSONSummary        `json:"summary"`
}

// JSONSummary contains aggregate figures in the display currency
type JSONSummary struct {
	Count        int            `json:"count"`
	Active       int            `json:"active"`
	Paused       int            `json:"paused"`
	Currency     string         `json:"currency"`
	Total        string         `json:"total"`
	MonthlyTotal string         `json:"monthly_total"`
	Budget       string         `json:"budget"`
	Remaining    string         `json:"remaining"`
	PercentUsed  *string        `json:"percent_used"`
	OverBudget   bool           `json:"over_budget"`
	Categories   []JSONCategory `json:"categories"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// JSONCategory is one category aggregate
type JSONCategory struct {
	Category string `json:"category"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

// JSONSubscription is the JSON output format for a subscription
type JSONSubscription struct {
	Position        int    `json:"position"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Currency        string `json:"currency"`
	Amount          string `json:"amount"`
	DisplayCurrency string `json:"display_currency"`
	DisplayAmount   string `json:"display_amount"`
	Converted       bool   `json:"converted"`
	PaymentMethod   string `json:"payment_method"`
	BillingCycle    string `json:"billing_cycle"`
	Active          bool   `json:"active"`
	Notes           string `json:"notes,omitempty"`
}

// Rows numbers the snapshot records by stored position and applies opts
func Rows(snap Snapshot, opts OutputOptions) []Row {
	var rows []Row
	for i, rec := range snap.Records {
		rows = append(rows, Row{Position: i + 1, NormalizedRecord: rec})
	}
	rows = FilterByStatus(rows, opts.ShowFilter)
	SortRows(rows, opts.SortField, opts.SortDir)
	return rows
}

// FilterByStatus filters rows by status (active/paused/all)
func FilterByStatus(rows []Row, show string) []Row {
	if show == "" || show == "all" {
		return rows
	}
	var result []Row
	for _, r := range rows {
		if show == "active" && r.Subscription.Active {
			result = append(result, r)
		} else if show == "paused" && !r.Subscription.Active {
			result = append(result, r)
		}
	}
	return result
}

// SortRows orders rows in place; the default is stored position
func SortRows(rows []Row, field, dir string) {
	less := func(a, b Row) bool {
		switch field {
		case "name":
			return strings.ToLower(a.Subscription.Name) < strings.ToLower(b.Subscription.Name)
		case "amount":
			return a.Amount.LessThan(b.Amount)
		case "category":
			return strings.ToLower(a.Subscription.Category) < strings.ToLower(b.Subscription.Category)
		default: // "position"
			return a.Position < b.Position
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if dir == "desc" {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

func summary(snap Snapshot) JSONSummary {
	s := JSONSummary{
		Count:        len(snap.Records),
		Active:       snap.ActiveCount,
		Paused:       snap.PausedCount,
		Currency:     string(snap.Currency),
		Total:        snap.Total.StringFixed(2),
		MonthlyTotal: snap.MonthlyTotal.StringFixed(2),
		Budget:       snap.Budget.StringFixed(2),
		Remaining:    snap.Remaining.StringFixed(2),
		OverBudget:   snap.OverBudget(),
		Categories:   []JSONCategory{},
	}
	if snap.HasPercent {
		p := snap.PercentUsed.StringFixed(2)
		s.PercentUsed = &p
	}
	for _, c := range snap.Categories {
		s.Categories = append(s.Categories, JSONCategory{Category: c.Category, Total: c.Total.StringFixed(2), Count: c.Count})
	}
	for _, w := range snap.Warnings {
		s.Warnings = append(s.Warnings, w.String())
	}
	return s
}

// PrintSnapshotJSON outputs the snapshot in JSON format
func PrintSnapshotJSON(w io.Writer, snap Snapshot, opts OutputOptions) error {
	subscriptions := []JSONSubscription{}
	for _, r := range Rows(snap, opts) {
		sub := r.Subscription
		subscriptions = append(subscriptions, JSONSubscription{
			Position:        r.Position,
			ID:              sub.ID,
			Name:            sub.Name,
			Category:        sub.Category,
			Currency:        string(sub.Currency),
			Amount:          sub.Amount.String(),
			DisplayCurrency: string(r.Currency),
			DisplayAmount:   r.Amount.StringFixed(2),
			Converted:       r.Converted,
			PaymentMethod:   sub.PaymentMethod,
			BillingCycle:    string(sub.BillingCycle),
			Active:          sub.Active,
			Notes:           sub.Notes,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(JSONOutput{Subscriptions: subscriptions, Summary: summary(snap)})
}

// PrintSnapshotTable outputs the subscriptions and budget summary as tables
func PrintSnapshotTable(w io.Writer, snap Snapshot, opts OutputOptions) {
	cur := GetCurrency(snap.Currency)
	rows := Rows(snap, opts)

	fmt.Fprintf(w, "%d subscriptions (%d active, %d paused)\n", len(snap.Records), snap.ActiveCount, snap.PausedCount)
	if opts.ShowFilter != "" && opts.ShowFilter != "all" {
		fmt.Fprintf(w, "Showing: %s\n", opts.ShowFilter)
	}
	fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)

	hasNotes := false
	for _, r := range rows {
		if r.Subscription.Notes != "" {
			hasNotes = true
			break
		}
	}

	header := table.Row{"#", "Subscription", "Category", "Cycle", "Method", "Status", "Original", string(snap.Currency)}
	if hasNotes {
		header = append(header, "Notes")
	}
	t.AppendHeader(header)

	for _, r := range rows {
		sub := r.Subscription
		status := text.FgGreen.Sprint("ACTIVE")
		if !sub.Active {
			status = text.FgHiBlack.Sprint("PAUSED")
		}

		display := GetCurrency(r.Currency).Format(r.Amount)
		if !r.Converted {
			display = text.FgYellow.Sprint(display + " (!)")
		}

		row := table.Row{
			r.Position,
			sub.Name,
			sub.Category,
			string(sub.BillingCycle),
			sub.PaymentMethod,
			status,
			GetCurrency(sub.Currency).Format(sub.Amount),
			display,
		}
		if hasNotes {
			row = append(row, sub.Notes)
		}
		t.AppendRow(row)
	}

	t.AppendSeparator()

	footer := table.Row{"", "", "", "", "", "", text.Bold.Sprint("Total (active)"), text.Bold.Sprint(cur.Format(snap.Total))}
	if hasNotes {
		footer = append(footer, "")
	}
	t.AppendFooter(footer)

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()

	fmt.Fprintln(w)
	PrintBudgetTable(w, snap)
	printWarnings(w, snap.Warnings)
}

// PrintBudgetTable outputs the budget figures of a snapshot
func PrintBudgetTable(w io.Writer, snap Snapshot) {
	cur := GetCurrency(snap.Currency)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Monthly Report")

	percent := "n/a"
	if snap.HasPercent {
		percent = snap.PercentUsed.StringFixed(2) + "%"
	}
	remaining := cur.Format(snap.Remaining)
	if snap.OverBudget() {
		remaining = text.FgRed.Sprint(remaining + " (over budget)")
	}

	t.AppendRows([]table.Row{
		{"Costs", cur.Format(snap.Total)},
		{"Monthly equivalent", cur.Format(snap.MonthlyTotal)},
		{"Budget", cur.Format(snap.Budget)},
		{"Remaining", remaining},
		{"Used", percent},
	})
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

// PrintCategoriesTable outputs the per-category totals of active subscriptions
func PrintCategoriesTable(w io.Writer, snap Snapshot) {
	cur := GetCurrency(snap.Currency)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "Subscriptions", string(snap.Currency)})
	for _, c := range snap.Categories {
		t.AppendRow(table.Row{c.Category, c.Count, cur.Format(c.Total)})
	}
	t.AppendSeparator()
	t.AppendFooter(table.Row{text.Bold.Sprint("Total (active)"), snap.ActiveCount, text.Bold.Sprint(cur.Format(snap.Total))})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.Render()
	printWarnings(w, snap.Warnings)
}

// PrintSummaryJSON outputs the budget figures and category aggregates as JSON
func PrintSummaryJSON(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary(snap))
}

func printWarnings(w io.Writer, warnings []ConversionWarning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, warn := range warnings {
		fmt.Fprintln(w, text.FgYellow.Sprint("Warning: "+warn.String()+" (showing unconverted amount)"))
	}
}
