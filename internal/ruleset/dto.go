package ruleset

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

// YAML shapes of a ruleset file. Amounts decode straight into decimals from
// the raw scalar text, so "0.062" is never routed through a float.

type yamlRuleset struct {
	TaxYear             int                                 `yaml:"tax_year"`
	Version             string                              `yaml:"version"`
	FederalBrackets     []yamlBracket                       `yaml:"federal_brackets"`
	StandardDeductions  map[string]decimal.Decimal          `yaml:"standard_deductions"`
	Treaties            map[string]map[string]yamlProvision `yaml:"treaties"`
	States              map[string]yamlState                `yaml:"states"`
	ExemptIndividual    map[string]int                      `yaml:"exempt_individual"`
	FICAExemption       yamlFICAExemption                   `yaml:"fica_exemption"`
	FICA                yamlFICA                            `yaml:"fica"`
	SubstantialPresence yamlSubstantialPresence             `yaml:"substantial_presence"`
}

type yamlBracket struct {
	Min  decimal.Decimal `yaml:"min"`
	Max  string          `yaml:"max"`
	Rate decimal.Decimal `yaml:"rate"`
}

type yamlProvision struct {
	Cap         *decimal.Decimal `yaml:"cap"`
	Article     string           `yaml:"article"`
	PeriodYears int              `yaml:"period_years"`
	Description string           `yaml:"description"`
}

type yamlState struct {
	StandardDeduction decimal.Decimal `yaml:"standard_deduction"`
	Brackets          []yamlBracket   `yaml:"brackets"`
}

type yamlFICAExemption struct {
	Visas            []string `yaml:"visas"`
	MaxCalendarYears int      `yaml:"max_calendar_years"`
}

type yamlFICA struct {
	SocialSecurityRate          decimal.Decimal `yaml:"social_security_rate"`
	SocialSecurityWageBase      decimal.Decimal `yaml:"social_security_wage_base"`
	MedicareRate                decimal.Decimal `yaml:"medicare_rate"`
	AdditionalMedicareRate      decimal.Decimal `yaml:"additional_medicare_rate"`
	AdditionalMedicareThreshold decimal.Decimal `yaml:"additional_medicare_threshold"`
}

type yamlSubstantialPresence struct {
	Threshold              int `yaml:"threshold"`
	PriorYearDivisor       int `yaml:"prior_year_divisor"`
	TwoYearsAgoDivisor     int `yaml:"two_years_ago_divisor"`
	MinimumCurrentYearDays int `yaml:"minimum_current_year_days"`
}

func mapDefinition(path string, y yamlRuleset) (Definition, error) {
	def := Definition{
		TaxYear:            y.TaxYear,
		VersionID:          strings.TrimSpace(y.Version),
		StandardDeductions: make(map[domain.FilingStatus]decimal.Decimal, len(y.StandardDeductions)),
		Treaties:           make(map[string]map[domain.TreatyCategory]TreatyProvision, len(y.Treaties)),
		States:             make(map[string]StateTable, len(y.States)),
		ExemptIndividual:   make(map[domain.VisaType]int, len(y.ExemptIndividual)),
		FICAExemption:      FICAExemptionRules{MaxCalendarYears: y.FICAExemption.MaxCalendarYears},
		FICA: FICARates{
			SocialSecurityRate:          y.FICA.SocialSecurityRate,
			SocialSecurityWageBase:      y.FICA.SocialSecurityWageBase,
			MedicareRate:                y.FICA.MedicareRate,
			AdditionalMedicareRate:      y.FICA.AdditionalMedicareRate,
			AdditionalMedicareThreshold: y.FICA.AdditionalMedicareThreshold,
		},
		SubstantialPresence: SubstantialPresenceRules(y.SubstantialPresence),
	}
	if def.VersionID == "" && def.TaxYear > 0 {
		def.VersionID = fmt.Sprintf("v%d.1", def.TaxYear)
	}

	var err error
	if def.FederalBrackets, err = mapBrackets(path, "federal_brackets", y.FederalBrackets); err != nil {
		return Definition{}, err
	}
	for status, amt := range y.StandardDeductions {
		def.StandardDeductions[domain.FilingStatus(strings.ToLower(strings.TrimSpace(status)))] = amt
	}
	for country, provisions := range y.Treaties {
		code := domain.NormalizeCode(country)
		inner := make(map[domain.TreatyCategory]TreatyProvision, len(provisions))
		for category, p := range provisions {
			tp := TreatyProvision{Article: p.Article, PeriodYears: p.PeriodYears, Description: p.Description}
			if p.Cap != nil {
				tp.Cap = decimal.NullDecimal{Decimal: *p.Cap, Valid: true}
			}
			inner[domain.TreatyCategory(category)] = tp
		}
		def.Treaties[code] = inner
	}
	for state, st := range y.States {
		code := domain.NormalizeCode(state)
		brackets, err := mapBrackets(path, "states."+code+".brackets", st.Brackets)
		if err != nil {
			return Definition{}, err
		}
		def.States[code] = StateTable{Brackets: brackets, StandardDeduction: st.StandardDeduction}
	}
	for raw, years := range y.ExemptIndividual {
		visa, err := domain.ParseVisaType(raw)
		if err != nil {
			return Definition{}, fmt.Errorf("%s: %w: exempt_individual: %v", path, domain.ErrInvalidRuleset, err)
		}
		def.ExemptIndividual[visa] = years
	}
	for _, raw := range y.FICAExemption.Visas {
		visa, err := domain.ParseVisaType(raw)
		if err != nil {
			return Definition{}, fmt.Errorf("%s: %w: fica_exemption: %v", path, domain.ErrInvalidRuleset, err)
		}
		def.FICAExemption.Visas = append(def.FICAExemption.Visas, visa)
	}
	return def, nil
}

// mapBrackets converts YAML brackets; a max of "", "inf" or "unbounded" marks
// the open-ended top bracket.
func mapBrackets(path, field string, in []yamlBracket) ([]TaxBracket, error) {
	out := make([]TaxBracket, 0, len(in))
	for i, b := range in {
		tb := TaxBracket{Min: b.Min, Rate: b.Rate}
		switch raw := strings.ToLower(strings.TrimSpace(b.Max)); raw {
		case "", "inf", "infinity", "unbounded":
		default:
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, &domain.RulesetError{Path: fmt.Sprintf("%s: %s[%d].max", path, field, i), Reason: fmt.Sprintf("not a number: %q", b.Max)}
			}
			tb.Max = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		out = append(out, tb)
	}
	return out, nil
}
