/*
allowances.go - DA, HRA, TA and DA on TA

PURPOSE:
  The earning side of a breakdown, plus the rounding every rule shares.

RULES:
  - DA:       basic x DA%
  - HRA:      basic x class rate, never below the class floor
  - TA:       fixed band by pay level and city tier
  - DA on TA: TA x DA%

ROUNDING:
  Amounts are whole rupees, rounded half away from zero. Products beyond
  MaxAmount saturate instead of overflowing.

SEE ALSO:
  - rates.go: Rates and bands
  - deductions.go: The deduction side
*/
package engine

import (
	"github.com/shopspring/decimal"
)

var (
	hundred   = decimal.NewFromInt(100)
	maxRupees = decimal.NewFromInt(MaxAmount)
)

// maxAmountDigits is the number of integer digits in MaxAmount.
const maxAmountDigits = 15

// integerDigits returns the number of digits before the decimal point of |d|,
// or a value <= 0 when |d| < 1. It reads the coefficient and exponent only,
// so it never rescales d.
func integerDigits(d decimal.Decimal) int {
	if d.IsZero() {
		return 0
	}
	return d.NumDigits() + int(d.Exponent())
}

// roundRupees rounds half away from zero to whole rupees, saturating at
// MaxAmount. Values far outside the rupee range are settled by digit count
// alone: Cmp and Round on an extreme exponent allocate that many digits.
func roundRupees(d decimal.Decimal) int64 {
	switch digits := integerDigits(d); {
	case digits > maxAmountDigits:
		if d.IsNegative() {
			return -MaxAmount
		}
		return MaxAmount
	case digits < 0:
		// |d| < 0.1
		return 0
	}
	if d.GreaterThan(maxRupees) {
		return MaxAmount
	}
	return d.Round(0).IntPart()
}

var minFactor = decimal.New(1, -maxAmountDigits-1)

// clampFactor bounds the magnitude of a multiplier to [1e-16, MaxAmount] by
// digit count and drops the exponent of a zero. Any amount times a factor
// outside that range already rounds to 0 or saturates.
func clampFactor(f decimal.Decimal) decimal.Decimal {
	if f.IsZero() {
		return decimal.Zero
	}
	bound := f
	switch digits := integerDigits(f); {
	case digits > maxAmountDigits:
		bound = maxRupees
	case digits < -maxAmountDigits:
		bound = minFactor
	default:
		return f
	}
	if f.IsNegative() {
		return bound.Neg()
	}
	return bound
}

// applyRate returns round(amount x rate).
func applyRate(amount int64, rate decimal.Decimal) int64 {
	return roundRupees(decimal.NewFromInt(clampAmount(amount)).Mul(rate))
}

// applyPercent returns round(amount x percent / 100), or 0 when either side
// is not positive.
func applyPercent(amount int64, percent int) int64 {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return roundRupees(decimal.NewFromInt(clampAmount(amount)).Mul(decimal.NewFromInt(int64(percent))).Div(hundred))
}

// CalculateDA returns the dearness allowance on basic pay.
func (c *Calculator) CalculateDA(basicPay int64, daPercentage int) int64 {
	return applyPercent(basicPay, daPercentage)
}

// CalculateHRA returns the house rent allowance under the 7th CPC table.
// The class floor applies whenever basic pay is positive.
func (c *Calculator) CalculateHRA(basicPay int64, class HRAClass) int64 {
	return hraFrom(c.rates.HRA7th, basicPay, class)
}

func hraFrom(table map[HRAClass]HRABand, basicPay int64, class HRAClass) int64 {
	if basicPay <= 0 {
		return 0
	}
	band, ok := table[class.OrDefault()]
	if !ok {
		band = table[HRAClassOther]
	}
	computed := applyRate(basicPay, band.Rate)
	if computed < band.Floor {
		return band.Floor
	}
	return computed
}

// CalculateTA returns the monthly transport allowance for a pay level and
// city tier. The level is coerced from its label ("13A" is level 13).
func (c *Calculator) CalculateTA(payLevel string, tier TACityType) int64 {
	tier = tier.OrDefault()
	if tier == TACityNone {
		return 0
	}
	band, ok := c.rates.TA[tier]
	if !ok {
		band = c.rates.TA[TACityOther]
	}
	level := ParseLevel(payLevel)
	switch {
	case level >= c.rates.TALevels.SeniorFrom:
		return band.Senior
	case level >= c.rates.TALevels.MiddleFrom:
		return band.Middle
	default:
		return band.Junior
	}
}

// CalculateDAOnTA returns the dearness allowance paid on transport allowance.
func (c *Calculator) CalculateDAOnTA(ta int64, daPercentage int) int64 {
	return applyPercent(ta, daPercentage)
}

// ParseLevel reads the leading digits of a pay-level label. Labels without
// leading digits yield 0.
func ParseLevel(label string) int {
	level := 0
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch == ' ' && level == 0 {
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		level = level*10 + int(ch-'0')
		if level > 1_000 {
			break
		}
	}
	return level
}
