/*
deductions.go - NPS, CGHS and income tax

PURPOSE:
  The deduction side of a breakdown.

RULES:
  - NPS:  10% of basic + DA from the employee, 14% matched by the employer
  - CGHS: monthly step chosen by basic pay
  - Tax:  new regime slabs on annual income after the standard deduction,
          with the section 87A rebate, marginal relief and 4% cess

SEE ALSO:
  - rates.go: Slabs, steps and NPS rates
  - tax_test.go: Worked slab examples
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// NPS AND CGHS
// =============================================================================

// CalculateNPSEmployee returns the employee's NPS contribution on basic + DA.
func (c *Calculator) CalculateNPSEmployee(basicPay, da int64) int64 {
	return applyRate(clampAmount(basicPay)+clampAmount(da), c.rates.NPSEmployeeRate)
}

// CalculateNPSEmployer returns the government's matching NPS contribution.
func (c *Calculator) CalculateNPSEmployer(basicPay, da int64) int64 {
	return applyRate(clampAmount(basicPay)+clampAmount(da), c.rates.NPSEmployerRate)
}

// CalculateCGHSFromBasic returns the monthly CGHS subscription.
func (c *Calculator) CalculateCGHSFromBasic(basicPay int64) int64 {
	if basicPay <= 0 {
		return 0
	}
	for _, step := range c.rates.CGHSSteps {
		if basicPay <= step.UpTo {
			return step.Amount
		}
	}
	return c.rates.CGHSAbove
}

// =============================================================================
// INCOME TAX (new regime)
// =============================================================================

var twelve = decimal.NewFromInt(12)

// CalculateIncomeTax takes annual income and returns the MONTHLY tax:
//
//	taxable = income - standard deduction (floored at 0)
//	tax     = marginal slab tax on taxable
//	rebate  = up to RebateMax when taxable <= RebateIncomeLimit
//	relief  = tax capped at (taxable - RebateIncomeLimit) inside the relief window
//	monthly = round(tax x (1 + cess) / 12)
func (c *Calculator) CalculateIncomeTax(annualIncome int64) int64 {
	return roundRupees(c.AnnualIncomeTax(annualIncome).Div(twelve))
}

// AnnualIncomeTax returns the unrounded annual tax including cess.
func (c *Calculator) AnnualIncomeTax(annualIncome int64) decimal.Decimal {
	rules := c.rates.Tax
	if annualIncome <= rules.StandardDeduction {
		return decimal.Zero
	}
	taxable := clampAmount(annualIncome - rules.StandardDeduction)

	tax := slabTax(rules.Slabs, taxable)

	limit := decimal.NewFromInt(rules.RebateIncomeLimit)
	income := decimal.NewFromInt(taxable)
	switch {
	case taxable <= rules.RebateIncomeLimit:
		tax = decimal.Max(decimal.Zero, tax.Sub(decimal.NewFromInt(rules.RebateMax)))
	case taxable < rules.ReliefUpTo:
		tax = decimal.Min(tax, income.Sub(limit))
	}

	return tax.Mul(decimal.NewFromInt(1).Add(rules.CessRate))
}

// slabTax applies each slab's rate to the part of income that falls inside it.
func slabTax(slabs []TaxSlab, income int64) decimal.Decimal {
	tax := decimal.Zero
	var lower int64
	for _, s := range slabs {
		if income <= lower {
			break
		}
		upper := s.UpTo
		if upper == 0 || income < upper {
			upper = income
		}
		tax = tax.Add(decimal.NewFromInt(upper - lower).Mul(s.Rate))
		if s.UpTo == 0 {
			break
		}
		lower = s.UpTo
	}
	return tax
}
