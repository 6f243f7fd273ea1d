package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/paycalc/engine"
)

// annualFor returns the annual income whose taxable part (after the standard
// deduction) is exactly taxable.
func annualFor(taxable int64) int64 {
	return taxable + engine.DefaultRates().Tax.StandardDeduction
}

func TestIncomeTax_BelowStandardDeductionIsZero(t *testing.T) {
	assert.Equal(t, int64(0), engine.CalculateIncomeTax(0))
	assert.Equal(t, int64(0), engine.CalculateIncomeTax(75000))
	assert.Equal(t, int64(0), engine.CalculateIncomeTax(-1))
}

func TestIncomeTax_RebateClearsTaxUpTo12L(t *testing.T) {
	// GIVEN: Taxable income at or below 12,00,000
	// THEN: Section 87A wipes the whole slab tax
	for _, taxable := range []int64{300000, 500000, 800000, 1000000, 1199999, 1200000} {
		assert.Equal(t, int64(0), engine.CalculateIncomeTax(annualFor(taxable)), "taxable %d", taxable)
	}
}

func TestIncomeTax_JustAboveRebateIsBoundedByRelief(t *testing.T) {
	// One rupee over the limit: relief caps tax at 1 rupee plus cess,
	// which rounds to zero per month.
	monthly := engine.CalculateIncomeTax(annualFor(1200001))
	assert.GreaterOrEqual(t, monthly, int64(0))
	assert.LessOrEqual(t, float64(monthly), 1*1.04/12+0.5)

	annual := engine.NewCalculator(engine.DefaultRates()).AnnualIncomeTax(annualFor(1200001))
	assert.True(t, annual.Equal(decimal.RequireFromString("1.04")), "got %s", annual)
}

func TestIncomeTax_MarginalReliefWindow(t *testing.T) {
	calc := engine.NewCalculator(engine.DefaultRates())
	for _, taxable := range []int64{1200500, 1210000, 1250000, 1270000} {
		excess := decimal.NewFromInt(taxable - 1200000)
		annual := calc.AnnualIncomeTax(annualFor(taxable))
		assert.True(t, annual.LessThanOrEqual(excess.Mul(decimal.RequireFromString("1.04"))),
			"taxable %d: tax %s exceeds relief cap", taxable, annual)
	}
}

func TestIncomeTax_At1275000(t *testing.T) {
	// Slab tax 71,250 is below the relief cap of 75,000, so it stands.
	// 71,250 x 1.04 / 12 = 6,175
	assert.Equal(t, int64(6175), engine.CalculateIncomeTax(annualFor(1275000)))
}

func TestIncomeTax_MarginalSlabs(t *testing.T) {
	cases := []struct {
		annual  int64
		monthly int64
	}{
		// 15,00,000 gross -> 14,25,000 taxable -> 20,000 + 40,000 + 33,750 = 93,750; cess -> 97,500
		// A published figure of 14,300 taxes a full 12-16L band this income never reaches.
		{1500000, 8125},
		// 16,75,000 -> 16,00,000 taxable -> 1,20,000; cess -> 1,24,800
		{1675000, 10400},
		// 24,75,000 -> 24,00,000 taxable -> 3,00,000; cess -> 3,12,000
		{2475000, 26000},
		// 30,75,000 -> 30,00,000 taxable -> 3,00,000 + 1,80,000 = 4,80,000; cess -> 4,99,200
		{3075000, 41600},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.monthly, engine.CalculateIncomeTax(tc.annual), "annual %d", tc.annual)
	}
}

func TestIncomeTax_MonotonicOutsideReliefWindow(t *testing.T) {
	prev := int64(0)
	for annual := int64(0); annual <= 5000000; annual += 25000 {
		got := engine.CalculateIncomeTax(annual)
		assert.GreaterOrEqual(t, got, prev, "annual %d", annual)
		prev = got
	}
}

func TestIncomeTax_UsesConfiguredRates(t *testing.T) {
	rates := engine.DefaultRates()
	rates.Tax.CessRate = decimal.Zero
	rates.Tax.RebateMax = 0
	calc := engine.NewCalculator(rates)

	// 8,75,000 -> 8,00,000 taxable -> 20,000 / 12 = 1,666.67
	assert.Equal(t, int64(1667), calc.CalculateIncomeTax(875000))
}
