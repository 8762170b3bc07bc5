package domain

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// VisaType is a normalized U.S. visa classification such as "F-1" or "H1B".
type VisaType string

// Visa classifications the rule tables refer to. Any other well-formed code is
// accepted and simply matches no exemption.
const (
	VisaF1    VisaType = "F-1"
	VisaF1OPT VisaType = "F-1-OPT"
	VisaJ1    VisaType = "J-1"
	VisaM1    VisaType = "M-1"
	VisaQ1    VisaType = "Q-1"
	VisaQ2    VisaType = "Q-2"
	VisaH1B   VisaType = "H1B"
)

var (
	visaPattern     = regexp.MustCompile(`^[A-Z0-9]{1,4}(-[A-Z0-9]{1,4}){0,2}$`)
	twoLetterCode   = regexp.MustCompile(`^[A-Z]{2}$`)
	dashNormalizer  = strings.NewReplacer("\u2212", "-", "\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "_", "-")
	visaAliasLookup = map[string]VisaType{
		"F1":     VisaF1,
		"F1-OPT": VisaF1OPT,
		"F-1OPT": VisaF1OPT,
		"F1OPT":  VisaF1OPT,
		"J1":     VisaJ1,
		"M1":     VisaM1,
		"Q1":     VisaQ1,
		"Q2":     VisaQ2,
		"H-1B":   VisaH1B,
		"H1-B":   VisaH1B,
	}
)

// NormalizeCode folds compatibility glyphs (full-width letters, typographic
// dashes) that document extraction tends to produce, trims and upper-cases.
func NormalizeCode(s string) string {
	s = norm.NFKC.String(s)
	s = dashNormalizer.Replace(s)
	s = strings.Join(strings.Fields(s), "")
	return strings.ToUpper(s)
}

// ParseVisaType normalizes and validates a visa code. "F1" and "F-1" yield the
// same VisaType.
func ParseVisaType(s string) (VisaType, error) {
	code := NormalizeCode(s)
	if code == "" {
		return "", NewInputError("visa_type", s, "is required")
	}
	if alias, ok := visaAliasLookup[code]; ok {
		return alias, nil
	}
	if !visaPattern.MatchString(code) {
		return "", NewInputError("visa_type", s, "is not a recognized visa code format")
	}
	return VisaType(code), nil
}

// Valid reports whether v is a well-formed, already normalized visa code.
func (v VisaType) Valid() bool {
	if _, aliased := visaAliasLookup[string(v)]; aliased {
		return false
	}
	return visaPattern.MatchString(string(v))
}

func (v VisaType) String() string { return string(v) }

// ParseCountryCode validates an ISO 3166-1 alpha-2 country code.
func ParseCountryCode(s string) (string, error) {
	code := NormalizeCode(s)
	if code == "" {
		return "", NewInputError("country_code", s, "is required")
	}
	if !twoLetterCode.MatchString(code) {
		return "", NewInputError("country_code", s, "must be a two-letter ISO country code")
	}
	return code, nil
}

// ParseStateCode validates a two-letter U.S. state code. An empty string is
// returned unchanged and means "no state".
func ParseStateCode(s string) (string, error) {
	code := NormalizeCode(s)
	if code == "" {
		return "", nil
	}
	if !twoLetterCode.MatchString(code) {
		return "", NewInputError("state_code", s, "must be a two-letter state code")
	}
	return code, nil
}
