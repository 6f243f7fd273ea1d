/*
Package engine computes central-government salary breakdowns.

PURPOSE:
  Turns a set of salary inputs (pay level, basic pay, city classes, DA rate,
  free-form allowances and deductions) into an itemised monthly breakdown
  under the 7th Pay Commission, or a projection under the 8th.

KEY CONCEPTS IN THIS FILE (types.go):
  - SalaryInputs:    What the user entered
  - LineItem:        A named rupee amount (user-added allowance or deduction)
  - SalaryBreakdown: The computed result for one pay commission
  - HRAClass / TACityType: City classification enums with explicit "unset"

DESIGN PRINCIPLES:
  1. Totality: No input makes the engine fail. Missing or invalid numbers
     are treated as zero, unset classes fall back to their defaults.
  2. Precision: Rates are decimal.Decimal, amounts are whole rupees.
  3. Immutability: Every calculation returns a fresh breakdown.

USAGE:
  b := engine.Calculate7thCPC(engine.SalaryInputs{
      PayLevel:     "10",
      BasicPay:     60000,
      HRAClass:     engine.HRAClassX,
      TACityType:   engine.TACityHigher,
      DAPercentage: 58,
  })
  fmt.Println(b.NetSalary)

SEE ALSO:
  - rates.go:       Rate tables (HRA, TA, CGHS, tax slabs)
  - allowances.go:  DA, HRA, TA, DA on TA
  - deductions.go:  NPS, CGHS, income tax
  - calculator.go:  7th / 8th CPC orchestration
*/
package engine

import (
	"strings"
)

// =============================================================================
// CITY CLASSIFICATIONS
// =============================================================================

// HRAClass selects the house-rent-allowance band of the posting city.
type HRAClass string

const (
	HRAClassUnset HRAClass = ""
	HRAClassX     HRAClass = "X"
	HRAClassY     HRAClass = "Y"
	HRAClassZ     HRAClass = "Z"
	HRAClassOther HRAClass = "Other"
)

// ParseHRAClass normalises user input. Anything unrecognised is unset.
func ParseHRAClass(s string) HRAClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return HRAClassX
	case "y":
		return HRAClassY
	case "z":
		return HRAClassZ
	case "other":
		return HRAClassOther
	default:
		return HRAClassUnset
	}
}

// Valid reports whether c is one of the known classes (unset included).
func (c HRAClass) Valid() bool {
	switch c {
	case HRAClassUnset, HRAClassX, HRAClassY, HRAClassZ, HRAClassOther:
		return true
	}
	return false
}

// OrDefault maps unset to Other.
func (c HRAClass) OrDefault() HRAClass {
	if c == HRAClassUnset {
		return HRAClassOther
	}
	return c
}

// TACityType selects the transport-allowance band.
type TACityType string

const (
	TACityUnset  TACityType = ""
	TACityNone   TACityType = "none"
	TACityHigher TACityType = "higher"
	TACityOther  TACityType = "other"
)

// ParseTACityType normalises user input. Anything unrecognised is unset.
func ParseTACityType(s string) TACityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return TACityNone
	case "higher":
		return TACityHigher
	case "other":
		return TACityOther
	default:
		return TACityUnset
	}
}

func (t TACityType) Valid() bool {
	switch t {
	case TACityUnset, TACityNone, TACityHigher, TACityOther:
		return true
	}
	return false
}

// OrDefault maps unset to other.
func (t TACityType) OrDefault() TACityType {
	if t == TACityUnset {
		return TACityOther
	}
	return t
}

// CPC tags which pay commission's rules produced a breakdown.
type CPC string

const (
	CPC7th CPC = "7th"
	CPC8th CPC = "8th"
)

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItem is a named rupee amount.
type LineItem struct {
	Name   string
	Amount int64
}

// NewLineItem validates a user-entered allowance or deduction.
func NewLineItem(name string, amount int64) (LineItem, error) {
	if amount < 0 {
		return LineItem{}, &LineItemError{Name: name, Amount: amount}
	}
	return LineItem{Name: strings.TrimSpace(name), Amount: amount}, nil
}

// sumItems adds the amounts, ignoring negatives.
func sumItems(items []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += clampAmount(it.Amount)
	}
	return total
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// =============================================================================
// INPUTS AND BREAKDOWN
// =============================================================================

// SalaryInputs is a single calculation request.
type SalaryInputs struct {
	PayLevel        string
	BasicPay        int64
	HRAClass        HRAClass
	TACityType      TACityType
	DAPercentage    int
	OtherAllowances []LineItem
	OtherDeductions []LineItem
}

// SalaryBreakdown is the computed monthly salary under one commission.
type SalaryBreakdown struct {
	CPC           CPC
	FitmentFactor string // 8th CPC only, e.g. "1.92"

	// Earnings
	BasicPay        int64
	DA              int64
	HRA             int64
	TA              int64
	DAOnTA          int64
	OtherAllowances []LineItem
	GrossSalary     int64

	// Deductions
	NPSEmployee     int64
	CGHS            int64
	IncomeTax       int64 // monthly
	OtherDeductions []LineItem
	TotalDeductions int64

	NetSalary int64

	// Government's matching contribution. Disclosed, never deducted.
	NPSEmployer int64
}

// Earnings lists the earning components in display order.
func (b SalaryBreakdown) Earnings() []LineItem {
	items := []LineItem{
		{Name: "Basic Pay", Amount: b.BasicPay},
		{Name: "Dearness Allowance", Amount: b.DA},
		{Name: "House Rent Allowance", Amount: b.HRA},
		{Name: "Transport Allowance", Amount: b.TA},
		{Name: "DA on TA", Amount: b.DAOnTA},
	}
	return append(items, b.OtherAllowances...)
}

// Deductions lists the deduction components in display order.
func (b SalaryBreakdown) Deductions() []LineItem {
	items := []LineItem{
		{Name: "NPS (Employee)", Amount: b.NPSEmployee},
		{Name: "CGHS", Amount: b.CGHS},
		{Name: "Income Tax", Amount: b.IncomeTax},
	}
	return append(items, b.OtherDeductions...)
}

// AnnualSummary is a breakdown scaled to twelve months.
type AnnualSummary struct {
	Gross      int64
	Deductions int64
	IncomeTax  int64
	Net        int64
}

func (b SalaryBreakdown) Annual() AnnualSummary {
	return AnnualSummary{
		Gross:      b.GrossSalary * 12,
		Deductions: b.TotalDeductions * 12,
		IncomeTax:  b.IncomeTax * 12,
		Net:        b.NetSalary * 12,
	}
}

// MaxAmount bounds every rupee input so that annualised sums stay inside int64.
const MaxAmount int64 = 100_000_000_000_000

func clampAmount(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > MaxAmount {
		return MaxAmount
	}
	return v
}
