/*
validation.go - Request validation

PURPOSE:
  Checks calculation requests at the boundary and turns them into engine
  inputs. The engine accepts anything; this layer is where bad input is
  reported to the user.

CHECKS:
  - Struct tags (validator/v10): enums, ranges, list sizes
  - Fitment factor between 0.01 and 10
  - Pay level and basic pay form a cell of the pay matrix

ERRORS:
  Every rejected field is collected into one ValidationError, rendered as
  a 400 with a field -> message map.

SEE ALSO:
  - dto.go: Request types and their tags
  - handlers.go: Error responses
*/
package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/paycalc/engine"
	"github.com/warp/paycalc/paymatrix"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError is returned when a request fails boundary checks.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Field + " " + is.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Issues = append(e.Issues, FieldIssue{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// fieldPath drops the root struct name: "CalculateRequest.other_allowances[0].amount"
// becomes "other_allowances[0].amount".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

var (
	minFitment = decimal.New(1, -2)
	maxFitment = decimal.NewFromInt(10)
)

const fitmentRangeIssue = "must be between 0.01 and 10"

// fitmentInRange reports whether d lies in [0.01, 10]. The digit count is
// checked first: comparing a value with an extreme exponent rescales it.
func fitmentInRange(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	if digits := d.NumDigits() + int(d.Exponent()); digits < -1 || digits > 2 {
		return false
	}
	return !d.LessThan(minFitment) && !d.GreaterThan(maxFitment)
}

// calculation is a validated request ready for the engine.
type calculation struct {
	Inputs        engine.SalaryInputs
	FitmentFactor decimal.Decimal
	Exclude       []engine.DeductionKind
}

// validateCalculate checks req and converts it to engine inputs. DA and
// fitment fall back to the handler defaults when omitted.
func (h *Handler) validateCalculate(req CalculateRequest) (calculation, error) {
	verr := &ValidationError{}

	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return calculation{}, err
		}
		for _, fe := range fieldErrs {
			verr.add(fieldPath(fe), describeTag(fe))
		}
	}

	if req.FitmentFactor != nil && !fitmentInRange(*req.FitmentFactor) {
		verr.add("fitment_factor", fitmentRangeIssue)
	}

	if req.PayLevel != "" && req.BasicPay > 0 {
		if err := h.matrix.Contains(req.PayLevel, req.BasicPay); err != nil {
			switch {
			case errors.Is(err, paymatrix.ErrUnknownLevel):
				verr.add("pay_level", "is not a level of the pay matrix")
			case errors.Is(err, paymatrix.ErrBasicPayNotInLevel):
				verr.add("basic_pay", fmt.Sprintf("is not a cell of pay level %s", strings.ToUpper(strings.TrimSpace(req.PayLevel))))
			default:
				return calculation{}, err
			}
		}
	}

	if err := verr.orNil(); err != nil {
		return calculation{}, err
	}

	calc := calculation{
		Inputs: engine.SalaryInputs{
			PayLevel:     strings.TrimSpace(req.PayLevel),
			BasicPay:     req.BasicPay,
			HRAClass:     engine.ParseHRAClass(req.HRAClass),
			TACityType:   engine.ParseTACityType(req.TACityType),
			DAPercentage: h.daPercentage,
		},
		FitmentFactor: h.fitmentFactor,
	}
	if req.DAPercentage != nil {
		calc.Inputs.DAPercentage = *req.DAPercentage
	}
	if req.FitmentFactor != nil {
		calc.FitmentFactor = *req.FitmentFactor
	}
	for _, it := range req.OtherAllowances {
		item, err := engine.NewLineItem(it.Name, it.Amount)
		if err != nil {
			return calculation{}, err
		}
		calc.Inputs.OtherAllowances = append(calc.Inputs.OtherAllowances, item)
	}
	for _, it := range req.OtherDeductions {
		item, err := engine.NewLineItem(it.Name, it.Amount)
		if err != nil {
			return calculation{}, err
		}
		calc.Inputs.OtherDeductions = append(calc.Inputs.OtherDeductions, item)
	}
	for _, name := range req.Exclude {
		if kind, ok := engine.ParseDeductionKind(name); ok {
			calc.Exclude = append(calc.Exclude, kind)
		}
	}
	return calc, nil
}
