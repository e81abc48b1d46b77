package exporter

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// formatMoney formats a decimal with exactly 2 places, so 13.4 appears as 13.40.
func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatPercent renders a share fraction as a percentage with 2 places.
func formatPercent(share decimal.Decimal) string {
	return share.Mul(decimal.NewFromInt(100)).StringFixed(2)
}

// cellValue converts a source cell for a worksheet. Plain numbers are written
// as numbers; everything else, including ids with leading zeros, stays text.
func cellValue(s string) interface{} {
	t := strings.TrimSpace(s)
	if t == "" || (len(t) > 1 && t[0] == '0' && t[1] != '.') {
		return s
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}
