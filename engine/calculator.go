/*
calculator.go - Salary breakdowns under the 7th and 8th CPC

PURPOSE:
  Combines the allowance, deduction and tax rules into a full monthly
  breakdown, compares the two pay commissions side by side, and applies
  the user's deduction toggles.

KEY FUNCTIONS:
  - Calculate7thCPC: Current salary from basic pay, city classes and DA
  - Calculate8thCPC: Projection with basic scaled by the fitment factor
  - Compare:         Both breakdowns plus gross and net differences
  - ApplyToggles:    Zero disabled deductions and recompute totals

INVARIANTS:
  GrossSalary = earnings + sum(OtherAllowances)
  TotalDeductions = NPS + CGHS + tax + sum(OtherDeductions)
  NetSalary = GrossSalary - TotalDeductions

SEE ALSO:
  - allowances.go: DA, HRA, TA and rounding
  - deductions.go: NPS, CGHS and income tax
  - rates.go: The rate table every rule reads
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator applies one RateTable. It holds no mutable state and is safe for
// concurrent use.
type Calculator struct {
	rates RateTable
}

// NewCalculator binds a calculator to rates. Callers load and validate the
// table (see factory) before constructing.
func NewCalculator(rates RateTable) *Calculator {
	return &Calculator{rates: rates}
}

// Rates returns the table in use.
func (c *Calculator) Rates() RateTable {
	return c.rates
}

// Calculate7thCPC computes the current monthly salary.
//
// Income tax is computed on GrossSalary x 12, allowances included. This is
// an estimate, not a taxable-income computation.
func (c *Calculator) Calculate7thCPC(in SalaryInputs) SalaryBreakdown {
	basic := clampAmount(in.BasicPay)
	if basic == 0 {
		return c.settle(SalaryBreakdown{
			CPC:             CPC7th,
			OtherAllowances: cloneItems(in.OtherAllowances),
			OtherDeductions: cloneItems(in.OtherDeductions),
		})
	}

	da := c.CalculateDA(basic, in.DAPercentage)
	hra := c.CalculateHRA(basic, in.HRAClass)
	ta := c.CalculateTA(in.PayLevel, in.TACityType)
	daOnTA := c.CalculateDAOnTA(ta, in.DAPercentage)

	b := SalaryBreakdown{
		CPC:             CPC7th,
		BasicPay:        basic,
		DA:              da,
		HRA:             hra,
		TA:              ta,
		DAOnTA:          daOnTA,
		OtherAllowances: cloneItems(in.OtherAllowances),
		OtherDeductions: cloneItems(in.OtherDeductions),
		NPSEmployee:     c.CalculateNPSEmployee(basic, da),
		NPSEmployer:     c.CalculateNPSEmployer(basic, da),
		CGHS:            c.CalculateCGHSFromBasic(basic),
	}
	return c.settle(b)
}

// Calculate8thCPC projects the salary under the 8th CPC. Basic pay is scaled
// by the fitment factor and DA resets to zero. TA is the 7th CPC amount
// scaled by the same factor. A factor whose magnitude is beyond the rupee
// range saturates every scaled amount at MaxAmount.
func (c *Calculator) Calculate8thCPC(in SalaryInputs, fitmentFactor decimal.Decimal) SalaryBreakdown {
	fitmentFactor = clampFactor(fitmentFactor)
	basic := clampAmount(in.BasicPay)
	if basic == 0 || !fitmentFactor.IsPositive() {
		return c.settle(SalaryBreakdown{
			CPC:             CPC8th,
			FitmentFactor:   fitmentFactor.String(),
			OtherAllowances: cloneItems(in.OtherAllowances),
			OtherDeductions: cloneItems(in.OtherDeductions),
		})
	}

	projected := applyRate(basic, fitmentFactor)
	ta := applyRate(c.CalculateTA(in.PayLevel, in.TACityType), fitmentFactor)

	b := SalaryBreakdown{
		CPC:             CPC8th,
		FitmentFactor:   fitmentFactor.String(),
		BasicPay:        projected,
		HRA:             hraFrom(c.rates.HRA8th, projected, in.HRAClass),
		TA:              ta,
		OtherAllowances: cloneItems(in.OtherAllowances),
		OtherDeductions: cloneItems(in.OtherDeductions),
		NPSEmployee:     c.CalculateNPSEmployee(projected, 0),
		NPSEmployer:     c.CalculateNPSEmployer(projected, 0),
		CGHS:            c.CalculateCGHSFromBasic(projected),
	}
	return c.settle(b)
}

// settle fills gross, tax, totals and net from the component amounts.
func (c *Calculator) settle(b SalaryBreakdown) SalaryBreakdown {
	b.GrossSalary = b.BasicPay + b.DA + b.HRA + b.TA + b.DAOnTA + sumItems(b.OtherAllowances)
	b.IncomeTax = c.CalculateIncomeTax(b.GrossSalary * 12)
	return totals(b)
}

func totals(b SalaryBreakdown) SalaryBreakdown {
	b.TotalDeductions = b.NPSEmployee + b.CGHS + b.IncomeTax + sumItems(b.OtherDeductions)
	b.NetSalary = b.GrossSalary - b.TotalDeductions
	return b
}

// =============================================================================
// COMPARISON
// =============================================================================

// Comparison places the current salary next to its 8th CPC projection.
type Comparison struct {
	Seventh         SalaryBreakdown
	Eighth          SalaryBreakdown
	GrossDifference int64
	NetDifference   int64
}

// Compare runs both commissions on the same inputs.
func (c *Calculator) Compare(in SalaryInputs, fitmentFactor decimal.Decimal) Comparison {
	s := c.Calculate7thCPC(in)
	e := c.Calculate8thCPC(in, fitmentFactor)
	return Comparison{
		Seventh:         s,
		Eighth:          e,
		GrossDifference: e.GrossSalary - s.GrossSalary,
		NetDifference:   e.NetSalary - s.NetSalary,
	}
}

// =============================================================================
// DEDUCTION TOGGLES
// =============================================================================

// DeductionKind names a standard deduction the user may switch off.
type DeductionKind string

const (
	DeductionNPS       DeductionKind = "nps"
	DeductionCGHS      DeductionKind = "cghs"
	DeductionIncomeTax DeductionKind = "income_tax"
)

// ParseDeductionKind returns false for unknown names.
func ParseDeductionKind(s string) (DeductionKind, bool) {
	switch k := DeductionKind(s); k {
	case DeductionNPS, DeductionCGHS, DeductionIncomeTax:
		return k, true
	}
	return "", false
}

// ApplyToggles returns a copy of b with the disabled deductions zeroed and
// totals recomputed. Earnings and the employer NPS share are untouched.
func ApplyToggles(b SalaryBreakdown, disabled ...DeductionKind) SalaryBreakdown {
	if len(disabled) == 0 {
		return b
	}
	b.OtherAllowances = cloneItems(b.OtherAllowances)
	b.OtherDeductions = cloneItems(b.OtherDeductions)
	for _, k := range disabled {
		switch k {
		case DeductionNPS:
			b.NPSEmployee = 0
		case DeductionCGHS:
			b.CGHS = 0
		case DeductionIncomeTax:
			b.IncomeTax = 0
		}
	}
	return totals(b)
}

// =============================================================================
// PACKAGE-LEVEL API (default rates)
// =============================================================================

var defaultCalculator = NewCalculator(DefaultRates())

func CalculateDA(basicPay int64, daPercentage int) int64 {
	return defaultCalculator.CalculateDA(basicPay, daPercentage)
}

func CalculateHRA(basicPay int64, class HRAClass) int64 {
	return defaultCalculator.CalculateHRA(basicPay, class)
}

func CalculateTA(payLevel string, tier TACityType) int64 {
	return defaultCalculator.CalculateTA(payLevel, tier)
}

func CalculateDAOnTA(ta int64, daPercentage int) int64 {
	return defaultCalculator.CalculateDAOnTA(ta, daPercentage)
}

func CalculateNPSEmployee(basicPay, da int64) int64 {
	return defaultCalculator.CalculateNPSEmployee(basicPay, da)
}

func CalculateNPSEmployer(basicPay, da int64) int64 {
	return defaultCalculator.CalculateNPSEmployer(basicPay, da)
}

func CalculateCGHSFromBasic(basicPay int64) int64 {
	return defaultCalculator.CalculateCGHSFromBasic(basicPay)
}

// CalculateIncomeTax returns monthly tax on an annual income.
func CalculateIncomeTax(annualIncome int64) int64 {
	return defaultCalculator.CalculateIncomeTax(annualIncome)
}

func Calculate7thCPC(in SalaryInputs) SalaryBreakdown {
	return defaultCalculator.Calculate7thCPC(in)
}

func Calculate8thCPC(in SalaryInputs, fitmentFactor decimal.Decimal) SalaryBreakdown {
	return defaultCalculator.Calculate8thCPC(in, fitmentFactor)
}
