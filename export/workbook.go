package export

import (
	"fmt"
	"io"

	"github.com/warp/paycalc/engine"
	"github.com/xuri/excelize/v2"
)

const (
	sheetComparison = "Comparison"
	sheetAnnual     = "Annual"
)

// WriteComparisonXLSX writes the 7th / 8th CPC comparison as a workbook with
// a monthly sheet and an annual sheet.
func WriteComparisonXLSX(w io.Writer, cmp engine.Comparison) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetComparison); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetAnnual); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return err
	}
	boldMoney, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 3})
	if err != nil {
		return err
	}

	sw := &sheetWriter{f: f, sheet: sheetComparison, money: money, boldMoney: boldMoney, bold: bold}
	sw.header("Component", "7th CPC", fmt.Sprintf("8th CPC (x%s)", cmp.Eighth.FitmentFactor), "Difference")

	sw.section("Earnings")
	sw.items(cmp.Seventh.Earnings(), cmp.Eighth.Earnings())
	sw.total("Gross Salary", cmp.Seventh.GrossSalary, cmp.Eighth.GrossSalary)

	sw.section("Deductions")
	sw.items(cmp.Seventh.Deductions(), cmp.Eighth.Deductions())
	sw.total("Total Deductions", cmp.Seventh.TotalDeductions, cmp.Eighth.TotalDeductions)

	sw.blank()
	sw.total("Net Salary", cmp.Seventh.NetSalary, cmp.Eighth.NetSalary)
	sw.row("Employer NPS (not deducted)", cmp.Seventh.NPSEmployer, cmp.Eighth.NPSEmployer)
	if sw.err != nil {
		return sw.err
	}

	a7, a8 := cmp.Seventh.Annual(), cmp.Eighth.Annual()
	aw := &sheetWriter{f: f, sheet: sheetAnnual, money: money, boldMoney: boldMoney, bold: bold}
	aw.header("Annual", "7th CPC", "8th CPC", "Difference")
	aw.row("Gross", a7.Gross, a8.Gross)
	aw.row("Income Tax", a7.IncomeTax, a8.IncomeTax)
	aw.row("Total Deductions", a7.Deductions, a8.Deductions)
	aw.total("Net", a7.Net, a8.Net)
	if aw.err != nil {
		return aw.err
	}

	for _, sheet := range []string{sheetComparison, sheetAnnual} {
		if err := f.SetColWidth(sheet, "A", "A", 30); err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "B", "D", 16); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

// sheetWriter appends rows to one sheet and keeps the first error.
type sheetWriter struct {
	f                      *excelize.File
	sheet                  string
	rowIdx                 int
	bold, money, boldMoney int
	err                    error
}

func (s *sheetWriter) set(col int, value any, style int) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, s.rowIdx)
	if err != nil {
		s.err = err
		return
	}
	if s.err = s.f.SetCellValue(s.sheet, cell, value); s.err != nil {
		return
	}
	if style != 0 {
		s.err = s.f.SetCellStyle(s.sheet, cell, cell, style)
	}
}

func (s *sheetWriter) header(cols ...string) {
	s.rowIdx++
	for i, c := range cols {
		s.set(i+1, c, s.bold)
	}
}

func (s *sheetWriter) section(name string) {
	s.blank()
	s.rowIdx++
	s.set(1, name, s.bold)
}

func (s *sheetWriter) blank() {
	s.rowIdx++
}

func (s *sheetWriter) row(label string, seventh, eighth int64) {
	s.rowIdx++
	s.set(1, label, 0)
	s.set(2, seventh, s.money)
	s.set(3, eighth, s.money)
	s.set(4, eighth-seventh, s.money)
}

func (s *sheetWriter) total(label string, seventh, eighth int64) {
	s.rowIdx++
	s.set(1, label, s.bold)
	s.set(2, seventh, s.boldMoney)
	s.set(3, eighth, s.boldMoney)
	s.set(4, eighth-seventh, s.boldMoney)
}

// items pairs line items by position. Both commissions list the same
// standard components followed by the same user items.
func (s *sheetWriter) items(seventh, eighth []engine.LineItem) {
	n := len(seventh)
	if len(eighth) > n {
		n = len(eighth)
	}
	for i := 0; i < n; i++ {
		var label string
		var a, b int64
		if i < len(seventh) {
			label, a = seventh[i].Name, seventh[i].Amount
		}
		if i < len(eighth) {
			label, b = eighth[i].Name, eighth[i].Amount
		}
		s.row(label, a, b)
	}
}
