/*
permalink.go - Calculations encoded in a URL

PURPOSE:
  A permalink carries a calculation in the query string so that a result
  can be bookmarked, shared, or printed as the QR code on a salary slip.

FORMAT:
  ?level=10&basic=59500&hra=X&ta=higher&da=58&ff=1.92
   &allow=Special+Duty:2000&deduct=GPF:1500&exclude=cghs,income_tax

  Item names may contain ":"; the amount follows the last one.

SEE ALSO:
  - handlers.go: GET /api/calculate
*/
package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func encodeQuery(req CalculateRequest) url.Values {
	q := url.Values{}
	q.Set("level", req.PayLevel)
	q.Set("basic", strconv.FormatInt(req.BasicPay, 10))
	if req.HRAClass != "" {
		q.Set("hra", req.HRAClass)
	}
	if req.TACityType != "" {
		q.Set("ta", req.TACityType)
	}
	if req.DAPercentage != nil {
		q.Set("da", strconv.Itoa(*req.DAPercentage))
	}
	if req.FitmentFactor != nil {
		q.Set("ff", req.FitmentFactor.String())
	}
	for _, it := range req.OtherAllowances {
		q.Add("allow", it.Name+":"+strconv.FormatInt(it.Amount, 10))
	}
	for _, it := range req.OtherDeductions {
		q.Add("deduct", it.Name+":"+strconv.FormatInt(it.Amount, 10))
	}
	if len(req.Exclude) > 0 {
		q.Set("exclude", strings.Join(req.Exclude, ","))
	}
	return q
}

// decodeQuery is the inverse of encodeQuery. Values that do not parse are
// reported as field issues.
func decodeQuery(q url.Values) (CalculateRequest, error) {
	verr := &ValidationError{}
	req := CalculateRequest{
		PayLevel:   q.Get("level"),
		HRAClass:   q.Get("hra"),
		TACityType: q.Get("ta"),
	}

	if s := q.Get("basic"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			verr.add("basic_pay", "must be a whole number of rupees")
		}
		req.BasicPay = n
	}
	if s := q.Get("da"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			verr.add("da_percentage", "must be a whole number")
		} else {
			req.DAPercentage = &n
		}
	}
	if s := q.Get("ff"); s != "" {
		d, err := decimal.NewFromString(s)
		switch {
		case err != nil:
			verr.add("fitment_factor", "must be a number")
		case !fitmentInRange(d):
			verr.add("fitment_factor", fitmentRangeIssue)
		default:
			req.FitmentFactor = &d
		}
	}

	var ok bool
	if req.OtherAllowances, ok = decodeItems(q["allow"]); !ok {
		verr.add("other_allowances", "entries must look like name:amount")
	}
	if req.OtherDeductions, ok = decodeItems(q["deduct"]); !ok {
		verr.add("other_deductions", "entries must look like name:amount")
	}

	for _, part := range strings.Split(q.Get("exclude"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			req.Exclude = append(req.Exclude, part)
		}
	}
	return req, verr.orNil()
}

func decodeItems(raw []string) ([]LineItemDTO, bool) {
	var out []LineItemDTO
	for _, s := range raw {
		i := strings.LastIndexByte(s, ':')
		if i <= 0 {
			return nil, false
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(s[i+1:]), 10, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, LineItemDTO{Name: strings.TrimSpace(s[:i]), Amount: amount})
	}
	return out, true
}

// permalink builds the shareable URL for req.
func (h *Handler) permalink(req CalculateRequest) string {
	return h.publicURL + "/?" + encodeQuery(req).Encode()
}
