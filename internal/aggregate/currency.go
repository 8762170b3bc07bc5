package aggregate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var amountCleaner = strings.NewReplacer(
	"$", "", ",", "", " ", "", "\t", "", "USD", "",
	"\u2212", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-",
)

// ParseAmount converts an extracted money string such as "$1,234.50" or
// "(250.00)" into a decimal. Parentheses and a leading minus mean a negative
// value only when allowNegative is set; otherwise the sign is dropped. An
// empty string is zero.
func ParseAmount(raw string, allowNegative bool) (decimal.Decimal, error) {
	s := norm.NFKC.String(raw)
	s = amountCleaner.Replace(strings.ToUpper(strings.TrimSpace(s)))
	if s == "" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if s == "" || strings.ContainsAny(s, "-+()") {
		return decimal.Zero, fmt.Errorf("malformed amount %q", raw)
	}

	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q: %w", raw, err)
	}
	if negative && allowNegative {
		return amt.Neg(), nil
	}
	return amt, nil
}
