/*
rates.go - The rate table

PURPOSE:
  Every percentage, band, step and slab the rules read lives in one
  RateTable value, so that a new DA notification or pay commission is a
  data change.

KEY TYPES:
  - RateTable: Complete set of rates, see DefaultRates
  - HRABand, TABand, CGHSStep, TaxSlab: One row of each schedule

VALIDATION:
  Validate rejects tables the calculator cannot apply (negative rates,
  unsorted steps or slabs, a non-positive fitment factor).

SEE ALSO:
  - factory/rates.go: Loading a table from YAML or JSON
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE TABLE - Read-only configuration consumed by the calculator
// =============================================================================

// HRABand is the allowance rate for one city class plus its minimum amount.
type HRABand struct {
	Rate  decimal.Decimal
	Floor int64
}

// TABand holds the monthly transport allowance for one city tier, split by
// pay-level band.
type TABand struct {
	Senior int64 // level >= TALevels.SeniorFrom
	Middle int64 // TALevels.MiddleFrom <= level < SeniorFrom
	Junior int64 // below MiddleFrom
}

// TALevels are the level thresholds that split the TA bands.
type TALevels struct {
	MiddleFrom int
	SeniorFrom int
}

// CGHSStep charges Amount when basic pay is at most UpTo.
type CGHSStep struct {
	UpTo   int64
	Amount int64
}

// TaxSlab taxes income up to UpTo at Rate. UpTo of 0 marks the open top slab.
type TaxSlab struct {
	UpTo int64
	Rate decimal.Decimal
}

// TaxRules describe the new income-tax regime.
type TaxRules struct {
	StandardDeduction int64
	Slabs             []TaxSlab
	RebateIncomeLimit int64 // section 87A applies at or below this taxable income
	RebateMax         int64
	ReliefUpTo        int64 // marginal relief applies strictly between RebateIncomeLimit and this
	CessRate          decimal.Decimal
}

// RateTable bundles every rate the engine needs. Treat as immutable once built.
type RateTable struct {
	HRA7th          map[HRAClass]HRABand
	HRA8th          map[HRAClass]HRABand
	NPSEmployeeRate decimal.Decimal
	NPSEmployerRate decimal.Decimal
	CGHSSteps       []CGHSStep // ascending by UpTo
	CGHSAbove       int64      // charged above the last step
	TA              map[TACityType]TABand
	TALevels        TALevels
	Tax             TaxRules
	FitmentFactor   decimal.Decimal // default 8th CPC projection multiplier
	DAPercentage    int             // currently notified DA, used when a request omits it
}

func pct(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}

// DefaultRates returns the rates in force for FY 2025-26.
func DefaultRates() RateTable {
	return RateTable{
		HRA7th: map[HRAClass]HRABand{
			HRAClassX:     {Rate: pct(30), Floor: 5400},
			HRAClassY:     {Rate: pct(20), Floor: 3600},
			HRAClassZ:     {Rate: pct(10), Floor: 1800},
			HRAClassOther: {Rate: pct(10), Floor: 1800},
		},
		HRA8th: map[HRAClass]HRABand{
			HRAClassX:     {Rate: pct(24), Floor: 5400},
			HRAClassY:     {Rate: pct(16), Floor: 3600},
			HRAClassZ:     {Rate: pct(8), Floor: 1800},
			HRAClassOther: {Rate: pct(8), Floor: 1800},
		},
		NPSEmployeeRate: pct(10),
		NPSEmployerRate: pct(14),
		CGHSSteps: []CGHSStep{
			{UpTo: 25000, Amount: 250},
			{UpTo: 50000, Amount: 450},
			{UpTo: 100000, Amount: 650},
			{UpTo: 150000, Amount: 1000},
		},
		CGHSAbove: 1250,
		TA: map[TACityType]TABand{
			TACityNone:   {},
			TACityHigher: {Senior: 7200, Middle: 3600, Junior: 1350},
			TACityOther:  {Senior: 3600, Middle: 1800, Junior: 900},
		},
		TALevels: TALevels{MiddleFrom: 3, SeniorFrom: 9},
		Tax: TaxRules{
			StandardDeduction: 75000,
			Slabs: []TaxSlab{
				{UpTo: 400000, Rate: pct(0)},
				{UpTo: 800000, Rate: pct(5)},
				{UpTo: 1200000, Rate: pct(10)},
				{UpTo: 1600000, Rate: pct(15)},
				{UpTo: 2000000, Rate: pct(20)},
				{UpTo: 2400000, Rate: pct(25)},
				{UpTo: 0, Rate: pct(30)},
			},
			RebateIncomeLimit: 1200000,
			RebateMax:         60000,
			ReliefUpTo:        1275000,
			CessRate:          pct(4),
		},
		FitmentFactor: decimal.RequireFromString("1.92"),
		DAPercentage:  58,
	}
}

// Validate checks the table is complete and internally consistent.
func (rt RateTable) Validate() error {
	for _, class := range []HRAClass{HRAClassX, HRAClassY, HRAClassZ, HRAClassOther} {
		for name, table := range map[string]map[HRAClass]HRABand{"hra_7th": rt.HRA7th, "hra_8th": rt.HRA8th} {
			band, ok := table[class]
			if !ok {
				return &RateTableError{Field: name, Reason: fmt.Sprintf("missing class %s", class)}
			}
			if band.Rate.IsNegative() || band.Floor < 0 {
				return &RateTableError{Field: name, Reason: fmt.Sprintf("class %s must not be negative", class)}
			}
		}
	}
	for _, tier := range []TACityType{TACityHigher, TACityOther} {
		if _, ok := rt.TA[tier]; !ok {
			return &RateTableError{Field: "ta", Reason: fmt.Sprintf("missing tier %s", tier)}
		}
	}
	if rt.TALevels.MiddleFrom <= 0 || rt.TALevels.SeniorFrom <= rt.TALevels.MiddleFrom {
		return &RateTableError{Field: "ta_levels", Reason: "must satisfy 0 < middle_from < senior_from"}
	}
	if rt.NPSEmployeeRate.IsNegative() || rt.NPSEmployerRate.IsNegative() {
		return &RateTableError{Field: "nps", Reason: "rates must not be negative"}
	}
	if !sort.SliceIsSorted(rt.CGHSSteps, func(i, j int) bool { return rt.CGHSSteps[i].UpTo < rt.CGHSSteps[j].UpTo }) {
		return &RateTableError{Field: "cghs", Reason: "steps must be ascending"}
	}
	if len(rt.Tax.Slabs) == 0 {
		return &RateTableError{Field: "income_tax.slabs", Reason: "must not be empty"}
	}
	var prev int64
	for i, s := range rt.Tax.Slabs {
		last := i == len(rt.Tax.Slabs)-1
		if s.UpTo == 0 && !last {
			return &RateTableError{Field: "income_tax.slabs", Reason: "only the last slab may be open ended"}
		}
		if s.UpTo != 0 && s.UpTo <= prev {
			return &RateTableError{Field: "income_tax.slabs", Reason: "upper bounds must be ascending"}
		}
		prev = s.UpTo
	}
	if rt.Tax.ReliefUpTo != 0 && rt.Tax.ReliefUpTo < rt.Tax.RebateIncomeLimit {
		return &RateTableError{Field: "income_tax.relief_up_to", Reason: "must not be below the rebate limit"}
	}
	if !rt.FitmentFactor.IsPositive() {
		return &RateTableError{Field: "fitment_factor", Reason: "must be positive"}
	}
	if rt.DAPercentage < 0 {
		return &RateTableError{Field: "da_percentage", Reason: "must not be negative"}
	}
	return nil
}
