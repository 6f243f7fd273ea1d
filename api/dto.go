/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's Go types from the external API contract:
  - snake_case field names
  - Earnings / deductions flattened into ordered line-item lists
  - Room for API-only fields (permalink, exclusions)

NAMING CONVENTION:
  - *DTO:      Response types returned to clients
  - *Request:  Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Calculation:
    CalculateRequest, LineItemDTO, BreakdownDTO, ComparisonDTO, AnnualDTO

  Reference data:
    PayLevelDTO, ScenarioDTO

  Feedback:
    FeedbackRequest (feedback.Submission), FeedbackResponse

VALIDATION:
  Struct tags are checked by go-playground/validator in validation.go.
  Checks that need reference data (pay matrix membership) run afterwards.

SEE ALSO:
  - handlers.go:   Uses these types
  - validation.go: Request validation
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/paycalc/engine"
)

// =============================================================================
// CALCULATION
// =============================================================================

// LineItemDTO is a named amount in rupees.
type LineItemDTO struct {
	Name   string `json:"name" validate:"required,max=80"`
	Amount int64  `json:"amount" validate:"gte=0,lte=100000000"`
}

// CalculateRequest carries the salary inputs. Optional fields fall back to
// the service defaults (DA rate and fitment factor from the rate table).
type CalculateRequest struct {
	PayLevel        string           `json:"pay_level" validate:"required,max=8"`
	BasicPay        int64            `json:"basic_pay" validate:"gt=0"`
	HRAClass        string           `json:"hra_class,omitempty" validate:"omitempty,oneof=X Y Z Other x y z other"`
	TACityType      string           `json:"ta_city_type,omitempty" validate:"omitempty,oneof=none higher other"`
	DAPercentage    *int             `json:"da_percentage,omitempty" validate:"omitempty,gte=0,lte=500"`
	FitmentFactor   *decimal.Decimal `json:"fitment_factor,omitempty"`
	OtherAllowances []LineItemDTO    `json:"other_allowances,omitempty" validate:"max=20,dive"`
	OtherDeductions []LineItemDTO    `json:"other_deductions,omitempty" validate:"max=20,dive"`
	Exclude         []string         `json:"exclude,omitempty" validate:"max=3,dive,oneof=nps cghs income_tax"`
}

// AnnualDTO is a breakdown scaled to twelve months.
type AnnualDTO struct {
	Gross      int64 `json:"gross"`
	Deductions int64 `json:"deductions"`
	IncomeTax  int64 `json:"income_tax"`
	Net        int64 `json:"net"`
}

// BreakdownDTO is one commission's salary in API responses.
type BreakdownDTO struct {
	CPC           string `json:"cpc"`
	FitmentFactor string `json:"fitment_factor,omitempty"`

	BasicPay        int64         `json:"basic_pay"`
	DA              int64         `json:"da"`
	HRA             int64         `json:"hra"`
	TA              int64         `json:"ta"`
	DAOnTA          int64         `json:"da_on_ta"`
	OtherAllowances []LineItemDTO `json:"other_allowances"`
	GrossSalary     int64         `json:"gross_salary"`

	NPSEmployee     int64         `json:"nps_employee"`
	CGHS            int64         `json:"cghs"`
	IncomeTax       int64         `json:"income_tax"`
	OtherDeductions []LineItemDTO `json:"other_deductions"`
	TotalDeductions int64         `json:"total_deductions"`

	NetSalary   int64 `json:"net_salary"`
	NPSEmployer int64 `json:"nps_employer"`

	Earnings   []LineItemDTO `json:"earnings"`
	Deductions []LineItemDTO `json:"deductions"`
	Annual     AnnualDTO     `json:"annual"`
}

// ComparisonDTO places the 7th CPC salary next to its 8th CPC projection.
type ComparisonDTO struct {
	Seventh         BreakdownDTO `json:"seventh"`
	Eighth          BreakdownDTO `json:"eighth"`
	GrossDifference int64        `json:"gross_difference"`
	NetDifference   int64        `json:"net_difference"`
}

// BreakdownResponse wraps a single-commission result.
type BreakdownResponse struct {
	Breakdown BreakdownDTO `json:"breakdown"`
	Permalink string       `json:"permalink"`
}

// ComparisonResponse wraps a comparison result.
type ComparisonResponse struct {
	Comparison ComparisonDTO `json:"comparison"`
	Permalink  string        `json:"permalink"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// PayLevelDTO is one pay-matrix level.
type PayLevelDTO struct {
	Level string  `json:"level"`
	Cells []int64 `json:"cells"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
}

// ScenarioDTO describes a preset.
type ScenarioDTO struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Inputs      CalculateRequest `json:"inputs"`
}

// ScenarioResultDTO is a preset with its computed comparison.
type ScenarioResultDTO struct {
	ScenarioDTO
	Comparison ComparisonDTO `json:"comparison"`
	Permalink  string        `json:"permalink"`
}

// =============================================================================
// FEEDBACK
// =============================================================================

// FeedbackResponse is returned for an accepted submission.
type FeedbackResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FieldIssue describes one rejected request field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationDetails is the details payload of a validation_error.
type ValidationDetails struct {
	Fields []FieldIssue `json:"fields"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLineItemDTOs(items []engine.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, len(items))
	for i, it := range items {
		out[i] = LineItemDTO{Name: it.Name, Amount: it.Amount}
	}
	return out
}

func toBreakdownDTO(b engine.SalaryBreakdown) BreakdownDTO {
	annual := b.Annual()
	return BreakdownDTO{
		CPC:             string(b.CPC),
		FitmentFactor:   b.FitmentFactor,
		BasicPay:        b.BasicPay,
		DA:              b.DA,
		HRA:             b.HRA,
		TA:              b.TA,
		DAOnTA:          b.DAOnTA,
		OtherAllowances: toLineItemDTOs(b.OtherAllowances),
		GrossSalary:     b.GrossSalary,
		NPSEmployee:     b.NPSEmployee,
		CGHS:            b.CGHS,
		IncomeTax:       b.IncomeTax,
		OtherDeductions: toLineItemDTOs(b.OtherDeductions),
		TotalDeductions: b.TotalDeductions,
		NetSalary:       b.NetSalary,
		NPSEmployer:     b.NPSEmployer,
		Earnings:        toLineItemDTOs(b.Earnings()),
		Deductions:      toLineItemDTOs(b.Deductions()),
		Annual: AnnualDTO{
			Gross:      annual.Gross,
			Deductions: annual.Deductions,
			IncomeTax:  annual.IncomeTax,
			Net:        annual.Net,
		},
	}
}

func toComparisonDTO(c engine.Comparison) ComparisonDTO {
	return ComparisonDTO{
		Seventh:         toBreakdownDTO(c.Seventh),
		Eighth:          toBreakdownDTO(c.Eighth),
		GrossDifference: c.GrossDifference,
		NetDifference:   c.NetDifference,
	}
}
