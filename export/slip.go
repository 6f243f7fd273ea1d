/*
slip.go - Salary slip PDF

PURPOSE:
  Renders one breakdown as a printable A4 slip: header with pay level and
  city classes, earnings and deductions side by side, net pay, and a QR
  code that reopens the calculation.

TEXT ENCODING:
  The slip uses the PDF core fonts, which cover cp1252 only. All text goes
  through the cp1252 translator; characters outside it print as ".".

SEE ALSO:
  - workbook.go: XLSX comparison export
  - format.go:   Indian digit grouping
*/
package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/warp/paycalc/engine"
)

// SlipOptions labels a salary slip.
type SlipOptions struct {
	Title        string
	PayLevel     string
	Cell         int // 1-based pay matrix cell; 0 when unknown
	HRAClass     engine.HRAClass
	TACityType   engine.TACityType
	DAPercentage int
	Permalink    string // encoded as a QR code when set
	GeneratedAt  time.Time
}

func (o SlipOptions) title(b engine.SalaryBreakdown) string {
	if o.Title != "" {
		return o.Title
	}
	if b.CPC == engine.CPC8th {
		return "Projected Salary Slip (8th CPC)"
	}
	return "Salary Slip (7th CPC)"
}

func (o SlipOptions) level() string {
	if o.Cell > 0 && o.PayLevel != "" {
		return fmt.Sprintf("%s, Cell %d", o.PayLevel, o.Cell)
	}
	return dash(o.PayLevel)
}

// WriteSlipPDF renders one breakdown as an A4 salary slip.
func WriteSlipPDF(w io.Writer, b engine.SalaryBreakdown, opts SlipOptions) error {
	pdf, err := renderSlip(b, opts)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func renderSlip(b engine.SalaryBreakdown, opts SlipOptions) (*gofpdf.Fpdf, error) {
	generated := opts.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(opts.title(b), true)
	pdf.SetCreator("paycalc", false)
	pdf.SetCreationDate(generated)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(opts.title(b)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Pay Level: %s", opts.level())))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("HRA Class: %s    TA City: %s", opts.HRAClass.OrDefault(), opts.TACityType.OrDefault()))
	pdf.Ln(5)
	if b.CPC == engine.CPC8th {
		pdf.Cell(0, 6, fmt.Sprintf("Fitment Factor: %s (DA reset to 0%%)", b.FitmentFactor))
	} else {
		pdf.Cell(0, 6, fmt.Sprintf("DA: %d%%", opts.DAPercentage))
	}
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format("02 Jan 2006 15:04")))
	pdf.Ln(10)

	const colW, amtW, rowH = 60.0, 30.0, 7.0
	top := pdf.GetY()

	table := func(x float64, heading string, items []engine.LineItem, total string, totalAmount int64) {
		pdf.SetXY(x, top)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetFillColor(230, 236, 245)
		pdf.CellFormat(colW, rowH, heading, "1", 0, "L", true, 0, "")
		pdf.CellFormat(amtW, rowH, "Amount", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, it := range items {
			pdf.SetX(x)
			pdf.CellFormat(colW, rowH, tr(it.Name), "1", 0, "L", false, 0, "")
			pdf.CellFormat(amtW, rowH, GroupIndian(it.Amount), "1", 1, "R", false, 0, "")
		}
		pdf.SetX(x)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(colW, rowH, total, "1", 0, "L", false, 0, "")
		pdf.CellFormat(amtW, rowH, GroupIndian(totalAmount), "1", 1, "R", false, 0, "")
	}

	table(10, "Earnings", b.Earnings(), "Gross Salary", b.GrossSalary)
	leftBottom := pdf.GetY()
	table(110, "Deductions", b.Deductions(), "Total Deductions", b.TotalDeductions)
	if leftBottom > pdf.GetY() {
		pdf.SetY(leftBottom)
	}

	pdf.Ln(6)
	pdf.SetX(10)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Net Salary: %s per month", FormatINR(b.NetSalary)))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	annual := b.Annual()
	pdf.Cell(0, 6, fmt.Sprintf("Annual: gross %s, net %s", FormatINR(annual.Gross), FormatINR(annual.Net)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Employer NPS contribution (not deducted): %s", FormatINR(b.NPSEmployer)))
	pdf.Ln(10)

	if opts.Permalink != "" {
		png, err := qrcode.Encode(opts.Permalink, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode permalink QR: %w", err)
		}
		imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("permalink", imgOpts, bytes.NewReader(png))
		y := pdf.GetY()
		pdf.ImageOptions("permalink", 10, y, 30, 30, false, imgOpts, 0, "")
		pdf.SetXY(45, y+10)
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(150, 4, "Scan to reopen this calculation:\n"+tr(opts.Permalink), "", "L", false)
		pdf.SetY(y + 34)
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 4, "Estimate only. Income tax is computed on annualised gross salary under the new regime "+
		"with the standard deduction, and is not a substitute for a taxable-income computation.", "", "L", false)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render slip: %w", err)
	}
	return pdf, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
