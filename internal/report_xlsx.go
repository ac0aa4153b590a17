package internal

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ReportColumns is the header row of the exported report
var ReportColumns = []string{"Subscription", "Category", "Currency", "Amount"}

// reportHeaderRow is the 1-based row holding ReportColumns
const reportHeaderRow = 3

// BuildReport renders the active subscriptions of a snapshot into a workbook
// with one sheet named after the month of now. Amounts are already normalized
// into the snapshot currency.
func BuildReport(snap Snapshot, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	month := now.Format("January 2006")
	sheet := month
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating style: %w", err)
	}
	boldMoney, err := f.NewStyle(&excelize.Style{NumFmt: 2, Font: &excelize.Font{Bold: true, Size: 12}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating style: %w", err)
	}
	footer, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Italic: true, Size: 8}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating style: %w", err)
	}

	set := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		f.SetCellValue(sheet, cell, v)
	}
	style := func(fromCol, toCol, row, id int) {
		from, _ := excelize.CoordinatesToCellName(fromCol, row)
		to, _ := excelize.CoordinatesToCellName(toCol, row)
		f.SetCellStyle(sheet, from, to, id)
	}

	set(1, 1, "Monthly Expenses - "+month)
	style(1, 1, 1, title)

	for i, h := range ReportColumns {
		set(i+1, reportHeaderRow, h)
	}
	style(1, len(ReportColumns), reportHeaderRow, bold)

	row := reportHeaderRow + 1
	for _, rec := range snap.Records {
		if !rec.Subscription.Active {
			continue
		}
		set(1, row, rec.Subscription.Name)
		set(2, row, rec.Subscription.Category)
		set(3, row, string(rec.Currency))
		set(4, row, rec.Amount.InexactFloat64())
		style(4, 4, row, money)
		row++
	}

	set(1, row, "Total")
	set(3, row, string(snap.Currency))
	set(4, row, snap.Total.InexactFloat64())
	style(1, 3, row, bold)
	style(4, 4, row, boldMoney)

	row += 2
	set(1, row, fmt.Sprintf("Generated on: %s - This report was automatically generated.", now.Format("2006-01-02 15:04:05")))
	style(1, 1, row, footer)

	f.SetColWidth(sheet, "A", "A", 30)
	f.SetColWidth(sheet, "B", "B", 20)
	f.SetColWidth(sheet, "C", "D", 12)

	return f, nil
}

// ExportReport writes the report workbook to path
func ExportReport(path string, snap Snapshot, now time.Time) error {
	f, err := BuildReport(snap, now)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return &PersistenceError{Op: "export", Path: path, Err: err}
	}
	return nil
}

// WriteReport streams the report workbook to w
func WriteReport(w io.Writer, snap Snapshot, now time.Time) error {
	f, err := BuildReport(snap, now)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
