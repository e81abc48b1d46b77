package promo

import (
	"regexp"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"promocli/pkg/contracts/domain"
)

var (
	tokenMu    sync.RWMutex
	tokenCache = make(map[string]*regexp.Regexp)
)

// tokenPattern returns a compiled, case-insensitive whole-word matcher for token.
// Patterns are cached since the same handful of tokens is tested on every row.
func tokenPattern(token string) *regexp.Regexp {
	tokenMu.RLock()
	re, ok := tokenCache[token]
	tokenMu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(token) + `\b`)

	tokenMu.Lock()
	tokenCache[token] = re
	tokenMu.Unlock()
	return re
}

// hasToken reports whether s contains token as a whole word, ignoring case.
func hasToken(s, token string) bool {
	if s == "" {
		return false
	}
	return tokenPattern(token).MatchString(s)
}

// containsFold is a case-insensitive substring test.
func containsFold(s, substr string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// containsAnyFold reports whether s contains any of the substrings, ignoring case.
func containsAnyFold(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

// discountRatio returns |discount per item| / price rounded to two places.
// ok is false when either value is missing or the price is zero.
func discountRatio(r *domain.LineRecord) (decimal.Decimal, bool) {
	if !r.Price.Valid || !r.DiscountPerItem.Valid || r.Price.Decimal.IsZero() {
		return decimal.Decimal{}, false
	}
	return r.DiscountPerItem.Decimal.Abs().Div(r.Price.Decimal).Round(2), true
}

// ratioBetween reports whether the row's discount ratio lies in [lo, hi].
func ratioBetween(r *domain.LineRecord, lo, hi decimal.Decimal) bool {
	ratio, ok := discountRatio(r)
	if !ok {
		return false
	}
	return ratio.GreaterThanOrEqual(lo) && ratio.LessThanOrEqual(hi)
}

// isZero reports whether v holds an exact zero. Missing values are not zero.
func isZero(v decimal.NullDecimal) bool {
	return v.Valid && v.Decimal.IsZero()
}

// isPositive reports whether v is present and strictly positive.
func isPositive(v decimal.NullDecimal) bool {
	return v.Valid && v.Decimal.IsPositive()
}

// equals reports whether v is present and equal to want.
func equals(v decimal.NullDecimal, want decimal.Decimal) bool {
	return v.Valid && v.Decimal.Equal(want)
}

// equalsAny reports whether v is present and equal to one of the candidates.
func equalsAny(v decimal.NullDecimal, candidates []decimal.Decimal) bool {
	if !v.Valid {
		return false
	}
	for _, c := range candidates {
		if v.Decimal.Equal(c) {
			return true
		}
	}
	return false
}

// multipleOf reports whether v is present and an exact multiple of unit.
func multipleOf(v decimal.NullDecimal, unit decimal.Decimal) bool {
	if !v.Valid || unit.IsZero() {
		return false
	}
	return v.Decimal.Mod(unit).IsZero()
}

func mustDecimals(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}
