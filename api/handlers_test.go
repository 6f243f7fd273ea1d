/*
handlers_test.go - Tests for the HTTP API

Tests for:
- Calculation endpoints (7th, 8th, compare, permalink GET)
- Boundary validation and error shape
- Reference data with ETags
- Scenarios, exports, feedback and rate limiting
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/paycalc/engine"
	"github.com/warp/paycalc/feedback"
	"github.com/warp/paycalc/paymatrix"
	"github.com/warp/paycalc/ratelimit"
	"github.com/warp/paycalc/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testEnv struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func newTestEnv(t *testing.T, limiter ratelimit.Limiter) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := feedback.NewService(store, feedback.NewMailer(feedback.MailConfig{}), feedback.Config{
		From: "no-reply@example.com",
		To:   "team@example.com",
	}, nil)

	h, err := NewHandler(Options{
		Rates:        engine.DefaultRates(),
		RatesVersion: "test",
		Matrix:       paymatrix.Default(),
		Feedback:     svc,
		PublicURL:    "https://pay.example.com/",
		MaxBodyBytes: 4096,
		Checks:       map[string]Pinger{"database": store},
	})
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC) }

	router := NewRouter(h, RouterConfig{
		AllowedOrigins:  []string{"http://localhost:5173"},
		FeedbackLimiter: limiter,
	})
	return &testEnv{handler: h, router: router, store: store}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func officerRequest() CalculateRequest {
	return CalculateRequest{
		PayLevel:     "10",
		BasicPay:     59500,
		HRAClass:     "X",
		TACityType:   "higher",
		DAPercentage: intPtr(58),
	}
}

func fieldsOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp struct {
		Error   string            `json:"error"`
		Code    string            `json:"code"`
		Details ValidationDetails `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, "validation_error", resp.Code)
	out := make(map[string]string)
	for _, f := range resp.Details.Fields {
		out[f.Field] = f.Message
	}
	return out
}

// =============================================================================
// CALCULATION
// =============================================================================

func TestCalculate7th_OfficerInMetro(t *testing.T) {
	// GIVEN: a level 10 officer at 59500 in an X city with higher TA
	env := newTestEnv(t, nil)

	// WHEN: the 7th CPC breakdown is requested
	rec := env.do(t, http.MethodPost, "/api/calculate/7th", officerRequest())

	// THEN: every component follows the 7th CPC rules
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[BreakdownResponse](t, rec)
	b := resp.Breakdown
	assert.Equal(t, "7th", b.CPC)
	assert.Equal(t, int64(34510), b.DA)
	assert.Equal(t, int64(17850), b.HRA)
	assert.Equal(t, int64(7200), b.TA)
	assert.Equal(t, int64(4176), b.DAOnTA)
	assert.Equal(t, int64(123236), b.GrossSalary)
	assert.Equal(t, int64(9401), b.NPSEmployee)
	assert.Equal(t, int64(650), b.CGHS)
	assert.Equal(t, int64(7850), b.IncomeTax)
	assert.Equal(t, int64(105335), b.NetSalary)
	assert.Equal(t, int64(13161), b.NPSEmployer)
	assert.Equal(t, b.NetSalary*12, b.Annual.Net)
	assert.Len(t, b.Earnings, 5)
	assert.Len(t, b.Deductions, 3)

	assert.True(t, strings.HasPrefix(resp.Permalink, "https://pay.example.com/?"))
}

func TestCalculate8th_UsesDefaultFitment(t *testing.T) {
	// GIVEN: a request without a fitment factor
	env := newTestEnv(t, nil)

	// WHEN: the 8th CPC projection is requested
	rec := env.do(t, http.MethodPost, "/api/calculate/8th", officerRequest())

	// THEN: basic pay is scaled by 1.92 and DA resets to zero
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode[BreakdownResponse](t, rec).Breakdown
	assert.Equal(t, "8th", b.CPC)
	assert.Equal(t, "1.92", b.FitmentFactor)
	assert.Equal(t, int64(114240), b.BasicPay)
	assert.Zero(t, b.DA)
	assert.Zero(t, b.DAOnTA)
	assert.Equal(t, int64(27418), b.HRA)
	assert.Equal(t, int64(13824), b.TA)
	assert.Equal(t, int64(155482), b.GrossSalary)
	assert.Equal(t, int64(13707), b.IncomeTax)
	assert.Equal(t, int64(129351), b.NetSalary)
}

func TestCalculateCompare_Differences(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/calculate/compare", officerRequest())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cmp := decode[ComparisonResponse](t, rec).Comparison
	assert.Equal(t, int64(32246), cmp.GrossDifference)
	assert.Equal(t, int64(24016), cmp.NetDifference)
	assert.Equal(t, cmp.Eighth.GrossSalary-cmp.Seventh.GrossSalary, cmp.GrossDifference)
	assert.Equal(t, cmp.Eighth.NetSalary-cmp.Seventh.NetSalary, cmp.NetDifference)
}

func TestCalculateCompare_TogglesApplyToBothSides(t *testing.T) {
	// GIVEN: CGHS and income tax switched off
	env := newTestEnv(t, nil)
	req := officerRequest()
	req.Exclude = []string{"cghs", "income_tax"}

	// WHEN: comparing
	rec := env.do(t, http.MethodPost, "/api/calculate/compare", req)

	// THEN: only NPS remains on each side and the net difference follows
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cmp := decode[ComparisonResponse](t, rec).Comparison
	for _, b := range []BreakdownDTO{cmp.Seventh, cmp.Eighth} {
		assert.Zero(t, b.CGHS)
		assert.Zero(t, b.IncomeTax)
		assert.Equal(t, b.NPSEmployee, b.TotalDeductions)
		assert.Equal(t, b.GrossSalary-b.NPSEmployee, b.NetSalary)
	}
	assert.Equal(t, cmp.Eighth.NetSalary-cmp.Seventh.NetSalary, cmp.NetDifference)
}

func TestCalculate_ExtraLineItems(t *testing.T) {
	env := newTestEnv(t, nil)
	req := officerRequest()
	req.OtherAllowances = []LineItemDTO{{Name: "Special Duty", Amount: 2000}}
	req.OtherDeductions = []LineItemDTO{{Name: "GPF", Amount: 1500}}

	rec := env.do(t, http.MethodPost, "/api/calculate/7th", req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode[BreakdownResponse](t, rec).Breakdown
	assert.Equal(t, int64(125236), b.GrossSalary)
	assert.Equal(t, []LineItemDTO{{Name: "Special Duty", Amount: 2000}}, b.OtherAllowances)
	assert.Equal(t, "GPF", b.Deductions[len(b.Deductions)-1].Name)
	assert.Equal(t, b.NPSEmployee+b.CGHS+b.IncomeTax+1500, b.TotalDeductions)
}

func TestCalculate_DefaultDAFromRates(t *testing.T) {
	// GIVEN: no DA percentage in the request
	env := newTestEnv(t, nil)
	req := officerRequest()
	req.DAPercentage = nil

	rec := env.do(t, http.MethodPost, "/api/calculate/7th", req)

	// THEN: the rate table's DA (58%) is used
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(34510), decode[BreakdownResponse](t, rec).Breakdown.DA)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCalculate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CalculateRequest)
		field  string
	}{
		{"missing level", func(r *CalculateRequest) { r.PayLevel = "" }, "pay_level"},
		{"zero basic", func(r *CalculateRequest) { r.BasicPay = 0 }, "basic_pay"},
		{"unknown level", func(r *CalculateRequest) { r.PayLevel = "19" }, "pay_level"},
		{"basic not a cell", func(r *CalculateRequest) { r.BasicPay = 60000 }, "basic_pay"},
		{"bad hra class", func(r *CalculateRequest) { r.HRAClass = "W" }, "hra_class"},
		{"bad ta tier", func(r *CalculateRequest) { r.TACityType = "metro" }, "ta_city_type"},
		{"negative da", func(r *CalculateRequest) { r.DAPercentage = intPtr(-1) }, "da_percentage"},
		{"negative line item", func(r *CalculateRequest) {
			r.OtherAllowances = []LineItemDTO{{Name: "Bad", Amount: -5}}
		}, "other_allowances[0].amount"},
		{"unnamed line item", func(r *CalculateRequest) {
			r.OtherDeductions = []LineItemDTO{{Amount: 5}}
		}, "other_deductions[0].name"},
		{"unknown toggle", func(r *CalculateRequest) { r.Exclude = []string{"pension"} }, "exclude[0]"},
	}

	env := newTestEnv(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := officerRequest()
			tt.mutate(&req)

			rec := env.do(t, http.MethodPost, "/api/calculate/compare", req)

			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, fieldsOf(t, rec), tt.field)
		})
	}
}

func TestCalculate_FitmentOutOfRange(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, ff := range []string{"0", "-1.5", "0.001", "11", "1e8000000", "1e-8000000"} {
		t.Run(ff, func(t *testing.T) {
			// GIVEN: a fitment factor outside 0.01 to 10
			start := time.Now()

			// WHEN: it is posted and sent as a permalink query
			post := env.do(t, http.MethodPost, "/api/calculate/8th",
				`{"pay_level":"10","basic_pay":59500,"fitment_factor":"`+ff+`"}`)
			get := env.do(t, http.MethodGet, "/api/calculate?level=10&basic=59500&ff="+url.QueryEscape(ff), nil)

			// THEN: both are rejected promptly with the same issue
			assert.Less(t, time.Since(start), time.Second)
			require.Equal(t, http.StatusBadRequest, post.Code, post.Body.String())
			assert.Equal(t, "must be between 0.01 and 10", fieldsOf(t, post)["fitment_factor"])
			require.Equal(t, http.StatusBadRequest, get.Code, get.Body.String())
			assert.Equal(t, "must be between 0.01 and 10", fieldsOf(t, get)["fitment_factor"])
		})
	}
}

func TestCalculate_FitmentBoundsAreInclusive(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, ff := range []string{"0.01", "10", "10.00"} {
		rec := env.do(t, http.MethodGet, "/api/calculate?level=10&basic=59500&ff="+ff, nil)
		assert.Equal(t, http.StatusOK, rec.Code, ff)
	}
}

func TestCalculate_MalformedBodies(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("not json", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/calculate/7th", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_json", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/calculate/7th", `{"pay_level":"10","basic_pay":59500,"bonus":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("trailing data", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/calculate/7th", `{"pay_level":"10","basic_pay":59500} {}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := `{"pay_level":"10","basic_pay":59500,"hra_class":"` + strings.Repeat("X", 5000) + `"}`
		rec := env.do(t, http.MethodPost, "/api/calculate/7th", big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

// =============================================================================
// PERMALINK
// =============================================================================

func TestPermalink_RoundTrip(t *testing.T) {
	// GIVEN: a request with every optional field
	ff := mustDecimal(t, "2.57")
	req := CalculateRequest{
		PayLevel:        "13A",
		BasicPay:        131100,
		HRAClass:        "Y",
		TACityType:      "other",
		DAPercentage:    intPtr(50),
		FitmentFactor:   &ff,
		OtherAllowances: []LineItemDTO{{Name: "Special Duty: Night", Amount: 2000}},
		OtherDeductions: []LineItemDTO{{Name: "GPF", Amount: 1500}},
		Exclude:         []string{"cghs", "income_tax"},
	}

	// WHEN: it is encoded to a query and decoded back
	got, err := decodeQuery(encodeQuery(req))

	// THEN: nothing is lost
	require.NoError(t, err)
	assert.Equal(t, req.PayLevel, got.PayLevel)
	assert.Equal(t, req.BasicPay, got.BasicPay)
	assert.Equal(t, req.HRAClass, got.HRAClass)
	assert.Equal(t, req.TACityType, got.TACityType)
	assert.Equal(t, *req.DAPercentage, *got.DAPercentage)
	assert.True(t, req.FitmentFactor.Equal(*got.FitmentFactor))
	assert.Equal(t, req.OtherAllowances, got.OtherAllowances)
	assert.Equal(t, req.OtherDeductions, got.OtherDeductions)
	assert.Equal(t, req.Exclude, got.Exclude)
}

func TestPermalink_GetMatchesPost(t *testing.T) {
	env := newTestEnv(t, nil)

	post := decode[ComparisonResponse](t, env.do(t, http.MethodPost, "/api/calculate/compare", officerRequest()))
	link, err := url.Parse(post.Permalink)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/calculate?"+link.RawQuery, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	get := decode[ComparisonResponse](t, rec)
	assert.Equal(t, post.Comparison, get.Comparison)
	assert.Equal(t, post.Permalink, get.Permalink)
}

func TestPermalink_BadQuery(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/calculate?level=10&basic=abc&allow=nocolon", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := fieldsOf(t, rec)
	assert.Contains(t, fields, "basic_pay")
	assert.Contains(t, fields, "other_allowances")
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestPayMatrix_ListAndETag(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/pay-matrix", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	levels := decode[[]PayLevelDTO](t, rec)
	require.Len(t, levels, 19)
	assert.Equal(t, "1", levels[0].Level)
	assert.Equal(t, int64(18000), levels[0].Min)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// Conditional request with the same validator
	req := httptest.NewRequest(http.MethodGet, "/api/pay-matrix", nil)
	req.Header.Set("If-None-Match", "W/"+etag)
	cached := httptest.NewRecorder()
	env.router.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.Bytes())
}

func TestPayMatrix_GetLevel(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/pay-matrix/13a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	level := decode[PayLevelDTO](t, rec)
	assert.Equal(t, "13A", level.Level)
	assert.Equal(t, int64(131100), level.Min)

	rec = env.do(t, http.MethodGet, "/api/pay-matrix/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRates(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/rates", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "test", doc["version"])
	assert.EqualValues(t, 58, doc["da_percentage"])
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok", "database": "ok"}, decode[map[string]string](t, rec))

	env.store.Close()
	rec = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[map[string]string](t, rec)["database"])
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_AllPresetsValidate(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioResultDTO](t, rec)
	require.Len(t, list, len(defaultScenarios()))
	for _, s := range list {
		assert.Positive(t, s.Comparison.Seventh.GrossSalary, s.ID)
		assert.NotEmpty(t, s.Permalink, s.ID)
	}
}

func TestScenarios_GetOne(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/scenarios/extras-and-toggles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[ScenarioResultDTO](t, rec)
	assert.Zero(t, res.Comparison.Seventh.CGHS)
	assert.Equal(t, int64(2000), res.Comparison.Seventh.OtherAllowances[0].Amount)

	rec = env.do(t, http.MethodGet, "/api/scenarios/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExportPDF(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/export/pdf?cpc=8th", officerRequest())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "salary-slip-8th-level-10.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestExportPDF_RejectsUnknownCommission(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/export/pdf?cpc=9th", officerRequest())

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, fieldsOf(t, rec), "cpc")
}

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/export/xlsx", officerRequest())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "pay-comparison-level-10.xlsx")
	// XLSX is a zip archive
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

// =============================================================================
// FEEDBACK
// =============================================================================

func TestSubmitFeedback_Accepted(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/feedback", feedback.Submission{
		Name:    "Asha",
		Email:   "asha@example.com",
		Message: "The HRA for Y cities looks right.",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[FeedbackResponse](t, rec)
	assert.True(t, resp.OK)
	require.NotEmpty(t, resp.ID)

	stored, err := env.store.GetFeedback(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "asha@example.com", stored.Email)
}

func TestSubmitFeedback_Invalid(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/feedback", feedback.Submission{
		Name:    "",
		Email:   "not-an-email",
		Message: "hi",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := fieldsOf(t, rec)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "message")
}

func TestSubmitFeedback_RateLimited(t *testing.T) {
	// GIVEN: a limiter allowing one submission per window
	limiter := ratelimit.NewMemory(1, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, limiter)
	sub := feedback.Submission{Name: "A", Email: "a@example.com", Message: "hello there"}

	// WHEN: the same client submits twice
	first := env.do(t, http.MethodPost, "/api/feedback", sub)
	second := env.do(t, http.MethodPost, "/api/feedback", sub)

	// THEN: the second is rejected and calculations are not limited
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/calculate/7th", officerRequest()).Code)
}

func postFeedbackFrom(t *testing.T, router http.Handler, forwardedFor string) int {
	t.Helper()
	body := `{"name":"A","email":"a@example.com","message":"hello there"}`
	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestSubmitFeedback_ForwardedForIgnoredByDefault(t *testing.T) {
	// GIVEN: a limiter allowing one submission and no trusted proxy
	limiter := ratelimit.NewMemory(1, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, limiter)

	// WHEN: one connection rotates X-Forwarded-For between submissions
	first := postFeedbackFrom(t, env.router, "203.0.113.1")
	second := postFeedbackFrom(t, env.router, "203.0.113.2")

	// THEN: both count against the connection address
	assert.Equal(t, http.StatusOK, first)
	assert.Equal(t, http.StatusTooManyRequests, second)
}

func TestSubmitFeedback_ForwardedForHonouredBehindProxy(t *testing.T) {
	// GIVEN: the router is told a proxy sets X-Forwarded-For
	limiter := ratelimit.NewMemory(1, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, nil)
	router := NewRouter(env.handler, RouterConfig{FeedbackLimiter: limiter, TrustProxyHeaders: true})

	// WHEN: two clients behind the proxy submit, then the first again
	first := postFeedbackFrom(t, router, "203.0.113.1")
	other := postFeedbackFrom(t, router, "203.0.113.2")
	again := postFeedbackFrom(t, router, "203.0.113.1")

	// THEN: each forwarded address has its own allowance
	assert.Equal(t, http.StatusOK, first)
	assert.Equal(t, http.StatusOK, other)
	assert.Equal(t, http.StatusTooManyRequests, again)
}

func TestSubmitFeedback_Disabled(t *testing.T) {
	h, err := NewHandler(Options{Rates: engine.DefaultRates()})
	require.NoError(t, err)
	router := NewRouter(h, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNewHandler_RejectsInvalidRates(t *testing.T) {
	rates := engine.DefaultRates()
	rates.NPSEmployeeRate = mustDecimal(t, "-0.1")

	_, err := NewHandler(Options{Rates: rates})

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidRateTable))
}
