package ruleset

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

func invalid(def Definition, path, format string, args ...any) error {
	return &domain.RulesetError{TaxYear: def.TaxYear, Path: path, Reason: fmt.Sprintf(format, args...)}
}

func validate(def Definition) error {
	if def.TaxYear <= 0 {
		return invalid(def, "tax_year", "must be positive")
	}
	if strings.TrimSpace(def.VersionID) == "" {
		return invalid(def, "version_id", "is required")
	}
	if len(def.FederalBrackets) == 0 {
		return invalid(def, "federal_brackets", "at least one bracket is required")
	}
	if err := validateBrackets(def, "federal_brackets", def.FederalBrackets); err != nil {
		return err
	}
	for status, amt := range def.StandardDeductions {
		if !status.Valid() {
			return invalid(def, "standard_deductions."+string(status), "unknown filing status")
		}
		if amt.IsNegative() {
			return invalid(def, "standard_deductions."+string(status), "cannot be negative")
		}
	}
	for country, provisions := range def.Treaties {
		if code, err := domain.ParseCountryCode(country); err != nil || code != country {
			return invalid(def, "treaties."+country, "country must be a normalized two-letter code")
		}
		for category, p := range provisions {
			path := fmt.Sprintf("treaties.%s.%s", country, category)
			if p.Cap.Valid && p.Cap.Decimal.IsNegative() {
				return invalid(def, path+".cap", "cannot be negative")
			}
			if p.PeriodYears < 0 {
				return invalid(def, path+".period_years", "cannot be negative")
			}
			if category == domain.TreatyTeacher && p.PeriodYears == 0 {
				return invalid(def, path+".period_years", "teacher exemptions must be time-boxed")
			}
			if strings.TrimSpace(p.Article) == "" {
				return invalid(def, path+".article", "is required")
			}
		}
	}
	for code, st := range def.States {
		if c, err := domain.ParseStateCode(code); err != nil || c != code || c == "" {
			return invalid(def, "states."+code, "state must be a normalized two-letter code")
		}
		if st.StandardDeduction.IsNegative() {
			return invalid(def, "states."+code+".standard_deduction", "cannot be negative")
		}
		if err := validateBrackets(def, "states."+code+".brackets", st.Brackets); err != nil {
			return err
		}
	}
	for visa, years := range def.ExemptIndividual {
		if !visa.Valid() {
			return invalid(def, "exempt_individual."+string(visa), "visa code is not normalized")
		}
		if years <= 0 {
			return invalid(def, "exempt_individual."+string(visa), "year limit must be positive")
		}
	}
	for _, visa := range def.FICAExemption.Visas {
		if !visa.Valid() {
			return invalid(def, "fica_exemption.visas", "visa code %q is not normalized", visa)
		}
	}
	if len(def.FICAExemption.Visas) > 0 && def.FICAExemption.MaxCalendarYears <= 0 {
		return invalid(def, "fica_exemption.max_calendar_years", "must be positive")
	}
	if err := validateFICA(def); err != nil {
		return err
	}
	sp := def.SubstantialPresence
	if sp.Threshold <= 0 {
		return invalid(def, "substantial_presence.threshold", "must be positive")
	}
	if sp.PriorYearDivisor <= 0 || sp.TwoYearsAgoDivisor <= 0 {
		return invalid(def, "substantial_presence", "divisors must be positive")
	}
	if sp.MinimumCurrentYearDays < 0 || sp.MinimumCurrentYearDays > domain.MaxDaysInYear {
		return invalid(def, "substantial_presence.minimum_current_year_days", "must be between 0 and %d", domain.MaxDaysInYear)
	}
	return nil
}

// validateBrackets enforces an ascending, contiguous schedule starting at zero
// whose only unbounded bracket is the last. An empty schedule is valid.
func validateBrackets(def Definition, path string, brackets []TaxBracket) error {
	for i, b := range brackets {
		at := fmt.Sprintf("%s[%d]", path, i)
		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return invalid(def, at+".rate", "must be between 0 and 1")
		}
		if i == 0 {
			if !b.Min.IsZero() {
				return invalid(def, at+".min", "first bracket must start at 0")
			}
		} else {
			prev := brackets[i-1]
			if !prev.Max.Decimal.Equal(b.Min) {
				return invalid(def, at+".min", "must equal the previous bracket max %s", prev.Max.Decimal.String())
			}
		}
		last := i == len(brackets)-1
		if b.Unbounded() != last {
			if last {
				return invalid(def, at+".max", "last bracket must be unbounded")
			}
			return invalid(def, at+".max", "only the last bracket may be unbounded")
		}
		if !b.Unbounded() && !b.Max.Decimal.GreaterThan(b.Min) {
			return invalid(def, at+".max", "must be greater than min")
		}
	}
	return nil
}

func validateFICA(def Definition) error {
	f := def.FICA
	rates := map[string]decimal.Decimal{
		"social_security_rate":     f.SocialSecurityRate,
		"medicare_rate":            f.MedicareRate,
		"additional_medicare_rate": f.AdditionalMedicareRate,
	}
	for name, r := range rates {
		if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
			return invalid(def, "fica."+name, "must be between 0 and 1")
		}
	}
	if f.SocialSecurityWageBase.IsNegative() || f.AdditionalMedicareThreshold.IsNegative() {
		return invalid(def, "fica", "thresholds cannot be negative")
	}
	return nil
}
