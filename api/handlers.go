/*
handlers.go - HTTP API handlers for the pay calculator

PURPOSE:
  Exposes the salary engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine, exports and feedback.

ENDPOINTS:
  Health:
    GET    /healthz                    Liveness plus dependency pings

  Reference data:
    GET    /api/pay-matrix             All pay-matrix levels (ETag)
    GET    /api/pay-matrix/{level}     One level (ETag)
    GET    /api/rates                  Active rate table (ETag)

  Calculation:
    POST   /api/calculate/7th          7th CPC breakdown
    POST   /api/calculate/8th          8th CPC projection
    POST   /api/calculate/compare      Side-by-side comparison
    GET    /api/calculate              Comparison from permalink query

  Scenarios:
    GET    /api/scenarios              Presets with computed comparisons
    GET    /api/scenarios/{id}         One preset

  Export:
    POST   /api/export/pdf?cpc=8th     Salary slip PDF
    POST   /api/export/xlsx            Comparison workbook

  Feedback:
    POST   /api/feedback               Contact form (rate limited)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Calculator: engine bound to the loaded rate table
  - Matrix: pay matrix used for boundary validation
  - Feedback: feedback service (nil disables the endpoint)
  - Pre-rendered reference data bodies with ETags

REQUEST FLOW:
  1. Decode request (size-limited, unknown fields rejected)
  2. Validate input (validation.go)
  3. Call the engine
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed JSON
  - 404: Unknown pay level or scenario
  - 413: Body too large
  - 503: Feedback disabled or a dependency is down
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - validation.go: Boundary checks
  - scenarios.go: Presets
  - live.go: WebSocket recalculation
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/paycalc/engine"
	"github.com/warp/paycalc/export"
	"github.com/warp/paycalc/factory"
	"github.com/warp/paycalc/feedback"
	"github.com/warp/paycalc/paymatrix"
	"github.com/warp/paycalc/ratelimit"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	Rates        engine.RateTable
	RatesVersion string
	Matrix       *paymatrix.Matrix
	Feedback     *feedback.Service
	PublicURL    string
	MaxBodyBytes int64
	Checks       map[string]Pinger
	Logger       *slog.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	calc     *engine.Calculator
	matrix   *paymatrix.Matrix
	feedback *feedback.Service
	checks   map[string]Pinger
	logger   *slog.Logger

	daPercentage  int
	fitmentFactor decimal.Decimal
	publicURL     string
	maxBodyBytes  int64

	// Pre-rendered reference data
	matrixJSON cachedJSON
	levelJSON  map[string]cachedJSON
	ratesJSON  cachedJSON

	scenarios []scenario
	now       func() time.Time
}

// NewHandler validates the rate table and pre-renders reference data.
func NewHandler(opts Options) (*Handler, error) {
	if err := opts.Rates.Validate(); err != nil {
		return nil, err
	}
	if opts.Matrix == nil {
		opts.Matrix = paymatrix.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}

	h := &Handler{
		calc:          engine.NewCalculator(opts.Rates),
		matrix:        opts.Matrix,
		feedback:      opts.Feedback,
		checks:        opts.Checks,
		logger:        opts.Logger,
		daPercentage:  opts.Rates.DAPercentage,
		fitmentFactor: opts.Rates.FitmentFactor,
		publicURL:     strings.TrimRight(opts.PublicURL, "/"),
		maxBodyBytes:  opts.MaxBodyBytes,
		levelJSON:     make(map[string]cachedJSON),
		scenarios:     defaultScenarios(),
		now:           time.Now,
	}

	levels := h.matrix.Levels()
	dtos := make([]PayLevelDTO, len(levels))
	for i, l := range levels {
		dtos[i] = toPayLevelDTO(l)
		cached, err := newCachedJSON(dtos[i])
		if err != nil {
			return nil, err
		}
		h.levelJSON[strings.ToUpper(l.Label)] = cached
	}

	var err error
	if h.matrixJSON, err = newCachedJSON(dtos); err != nil {
		return nil, err
	}
	doc := factory.NewRateFactory().ToDocument(opts.Rates, opts.RatesVersion)
	if h.ratesJSON, err = newCachedJSON(doc); err != nil {
		return nil, err
	}
	return h, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports ok, or 503 with the failing dependency.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, status)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListPayMatrix returns every level of the pay matrix.
// GET /api/pay-matrix
func (h *Handler) ListPayMatrix(w http.ResponseWriter, r *http.Request) {
	h.matrixJSON.serve(w, r)
}

// GetPayLevel returns one level of the pay matrix.
// GET /api/pay-matrix/{level}
func (h *Handler) GetPayLevel(w http.ResponseWriter, r *http.Request) {
	label := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "level")))
	cached, ok := h.levelJSON[label]
	if !ok {
		writeError(w, http.StatusNotFound, "Pay level not found", paymatrix.ErrUnknownLevel)
		return
	}
	cached.serve(w, r)
}

// GetRates returns the active rate table in rates-file form.
// GET /api/rates
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	h.ratesJSON.serve(w, r)
}

func toPayLevelDTO(l paymatrix.Level) PayLevelDTO {
	return PayLevelDTO{
		Level: l.Label,
		Cells: l.Cells,
		Min:   l.Min(),
		Max:   l.Max(),
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

// Calculate7th returns the current salary breakdown.
// POST /api/calculate/7th
func (h *Handler) Calculate7th(w http.ResponseWriter, r *http.Request) {
	req, calc, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}
	b := engine.ApplyToggles(h.calc.Calculate7thCPC(calc.Inputs), calc.Exclude...)
	writeJSON(w, http.StatusOK, BreakdownResponse{
		Breakdown: toBreakdownDTO(b),
		Permalink: h.permalink(req),
	})
}

// Calculate8th returns the projected 8th CPC breakdown.
// POST /api/calculate/8th
func (h *Handler) Calculate8th(w http.ResponseWriter, r *http.Request) {
	req, calc, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}
	b := engine.ApplyToggles(h.calc.Calculate8thCPC(calc.Inputs, calc.FitmentFactor), calc.Exclude...)
	writeJSON(w, http.StatusOK, BreakdownResponse{
		Breakdown: toBreakdownDTO(b),
		Permalink: h.permalink(req),
	})
}

// CalculateCompare returns both commissions side by side.
// POST /api/calculate/compare
func (h *Handler) CalculateCompare(w http.ResponseWriter, r *http.Request) {
	req, calc, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ComparisonResponse{
		Comparison: toComparisonDTO(h.compare(calc)),
		Permalink:  h.permalink(req),
	})
}

// CalculatePermalink is the GET form of CalculateCompare.
// GET /api/calculate?level=10&basic=59500&hra=X
func (h *Handler) CalculatePermalink(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r.URL.Query())
	if err != nil {
		writeValidationError(w, err)
		return
	}
	calc, err := h.validateCalculate(req)
	if err != nil {
		h.writeCalculateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ComparisonResponse{
		Comparison: toComparisonDTO(h.compare(calc)),
		Permalink:  h.permalink(req),
	})
}

// compare runs both commissions and applies the deduction toggles to each
// side before taking differences.
func (h *Handler) compare(calc calculation) engine.Comparison {
	cmp := h.calc.Compare(calc.Inputs, calc.FitmentFactor)
	if len(calc.Exclude) == 0 {
		return cmp
	}
	cmp.Seventh = engine.ApplyToggles(cmp.Seventh, calc.Exclude...)
	cmp.Eighth = engine.ApplyToggles(cmp.Eighth, calc.Exclude...)
	cmp.GrossDifference = cmp.Eighth.GrossSalary - cmp.Seventh.GrossSalary
	cmp.NetDifference = cmp.Eighth.NetSalary - cmp.Seventh.NetSalary
	return cmp
}

// decodeCalculation reads and validates a CalculateRequest body. On failure
// the response has been written and ok is false.
func (h *Handler) decodeCalculation(w http.ResponseWriter, r *http.Request) (CalculateRequest, calculation, bool) {
	var req CalculateRequest
	if !h.decodeJSON(w, r, &req) {
		return req, calculation{}, false
	}
	calc, err := h.validateCalculate(req)
	if err != nil {
		h.writeCalculateError(w, err)
		return req, calculation{}, false
	}
	return req, calc, true
}

func (h *Handler) writeCalculateError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	default:
		h.logger.Error("calculation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Calculation failed", nil)
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ListScenarios returns every preset with its comparison.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioResultDTO, 0, len(h.scenarios))
	for _, s := range h.scenarios {
		res, err := h.runScenario(s)
		if err != nil {
			h.logger.Error("preset does not validate", "scenario", s.ID, "error", err)
			continue
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetScenario returns one preset.
// GET /api/scenarios/{id}
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, ok := findScenario(h.scenarios, id)
	if !ok {
		writeError(w, http.StatusNotFound, "Scenario not found", nil)
		return
	}
	res, err := h.runScenario(s)
	if err != nil {
		h.writeCalculateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) runScenario(s scenario) (ScenarioResultDTO, error) {
	calc, err := h.validateCalculate(s.Inputs)
	if err != nil {
		return ScenarioResultDTO{}, err
	}
	return ScenarioResultDTO{
		ScenarioDTO: s.ScenarioDTO,
		Comparison:  toComparisonDTO(h.compare(calc)),
		Permalink:   h.permalink(s.Inputs),
	}, nil
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportPDF renders a salary slip for one commission (?cpc=7th|8th).
// POST /api/export/pdf
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	cpc := r.URL.Query().Get("cpc")
	if cpc == "" {
		cpc = string(engine.CPC7th)
	}
	if cpc != string(engine.CPC7th) && cpc != string(engine.CPC8th) {
		writeValidationError(w, &ValidationError{Issues: []FieldIssue{{Field: "cpc", Message: "must be one of: 7th, 8th"}}})
		return
	}

	req, calc, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}

	var b engine.SalaryBreakdown
	if cpc == string(engine.CPC8th) {
		b = h.calc.Calculate8thCPC(calc.Inputs, calc.FitmentFactor)
	} else {
		b = h.calc.Calculate7thCPC(calc.Inputs)
	}
	b = engine.ApplyToggles(b, calc.Exclude...)

	// Zero when the request names no level.
	cell, _ := h.matrix.CellOf(calc.Inputs.PayLevel, calc.Inputs.BasicPay)

	var buf bytes.Buffer
	err := export.WriteSlipPDF(&buf, b, export.SlipOptions{
		PayLevel:     calc.Inputs.PayLevel,
		Cell:         cell,
		HRAClass:     calc.Inputs.HRAClass,
		TACityType:   calc.Inputs.TACityType,
		DAPercentage: calc.Inputs.DAPercentage,
		Permalink:    h.permalink(req),
		GeneratedAt:  h.now(),
	})
	if err != nil {
		h.logger.Error("failed to render salary slip", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to render PDF", nil)
		return
	}

	filename := fmt.Sprintf("salary-slip-%s-level-%s.pdf", cpc, calc.Inputs.PayLevel)
	writeAttachment(w, "application/pdf", filename, buf.Bytes())
}

// ExportXLSX renders the comparison as a workbook.
// POST /api/export/xlsx
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	_, calc, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteComparisonXLSX(&buf, h.compare(calc)); err != nil {
		h.logger.Error("failed to render workbook", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to render workbook", nil)
		return
	}

	filename := fmt.Sprintf("pay-comparison-level-%s.xlsx", calc.Inputs.PayLevel)
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// =============================================================================
// FEEDBACK
// =============================================================================

// SubmitFeedback stores and forwards a contact-form message.
// POST /api/feedback
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	if h.feedback == nil {
		writeError(w, http.StatusServiceUnavailable, "Feedback is not available", nil)
		return
	}

	var sub feedback.Submission
	if !h.decodeJSON(w, r, &sub) {
		return
	}

	receipt, err := h.feedback.Submit(r.Context(), sub, ratelimit.ClientIP(r))
	if err != nil {
		var verr *feedback.ValidationError
		if errors.As(err, &verr) {
			issues := make([]FieldIssue, len(verr.Issues))
			for i, is := range verr.Issues {
				issues[i] = FieldIssue{Field: is.Field, Message: is.Message}
			}
			writeValidationError(w, &ValidationError{Issues: issues})
			return
		}
		h.logger.Error("failed to accept feedback", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to submit feedback", nil)
		return
	}

	writeJSON(w, http.StatusOK, FeedbackResponse{OK: true, ID: receipt.ID})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON reads a size-limited JSON body into dst. Unknown fields and
// trailing data are rejected.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("body must contain a single JSON object")
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid JSON",
		Code:    "invalid_json",
		Details: err.Error(),
	})
	return false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation failed",
		Code:    "validation_error",
		Details: ValidationDetails{Fields: verr.Issues},
	})
}
