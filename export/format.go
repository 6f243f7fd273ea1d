// Package export renders salary breakdowns as downloadable documents: a
// PDF salary slip and an XLSX comparison workbook.
package export

import (
	"strconv"
	"strings"
)

// FormatINR groups digits the Indian way (12,34,567) and prefixes "Rs.".
// The PDF core fonts have no rupee glyph.
func FormatINR(amount int64) string {
	return "Rs. " + GroupIndian(amount)
}

// GroupIndian formats n with lakh/crore separators.
func GroupIndian(n int64) string {
	neg := n < 0
	digits := strconv.FormatInt(n, 10)
	if neg {
		digits = digits[1:]
	}
	if len(digits) <= 3 {
		if neg {
			return "-" + digits
		}
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}

	out := strings.Join(groups, ",") + "," + tail
	if neg {
		return "-" + out
	}
	return out
}
