// Package ruleset holds the immutable, per-tax-year tables the engine reads:
// brackets, standard deductions, treaty provisions, state tables and the
// exemption tables for the substantial presence test and FICA.
package ruleset

import (
	"sort"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

// TaxBracket is one progressive bracket. Max is unset for the top bracket.
type TaxBracket struct {
	Min  decimal.Decimal
	Max  decimal.NullDecimal
	Rate decimal.Decimal
}

// Unbounded reports whether the bracket has no upper limit.
func (b TaxBracket) Unbounded() bool {
	return !b.Max.Valid
}

// TreatyProvision is one exemption of a bilateral treaty. Cap is unset when
// the exemption is unlimited; PeriodYears is zero when not time-boxed.
type TreatyProvision struct {
	Cap         decimal.NullDecimal
	Article     string
	PeriodYears int
	Description string
}

// StateTable is a state's bracket schedule. An empty schedule means the state
// levies no income tax.
type StateTable struct {
	Brackets          []TaxBracket
	StandardDeduction decimal.Decimal
}

func (s StateTable) HasIncomeTax() bool {
	return len(s.Brackets) > 0
}

// SubstantialPresenceRules parameterize the weighted day-count test.
type SubstantialPresenceRules struct {
	Threshold              int
	PriorYearDivisor       int
	TwoYearsAgoDivisor     int
	MinimumCurrentYearDays int
}

// FICAExemptionRules is the payroll-tax exemption for student and exchange
// visas. It is independent of the exempt-individual table.
type FICAExemptionRules struct {
	Visas            []domain.VisaType
	MaxCalendarYears int
}

// Covers reports whether visa is one of the exempt classifications.
func (r FICAExemptionRules) Covers(visa domain.VisaType) bool {
	for _, v := range r.Visas {
		if v == visa {
			return true
		}
	}
	return false
}

// FICARates are the payroll tax parameters used to sanity-check wage statements.
type FICARates struct {
	SocialSecurityRate          decimal.Decimal
	SocialSecurityWageBase      decimal.Decimal
	MedicareRate                decimal.Decimal
	AdditionalMedicareRate      decimal.Decimal
	AdditionalMedicareThreshold decimal.Decimal
}

// Definition is the plain data a Ruleset is built from.
type Definition struct {
	TaxYear             int
	VersionID           string
	FederalBrackets     []TaxBracket
	StandardDeductions  map[domain.FilingStatus]decimal.Decimal
	Treaties            map[string]map[domain.TreatyCategory]TreatyProvision
	States              map[string]StateTable
	ExemptIndividual    map[domain.VisaType]int
	FICAExemption       FICAExemptionRules
	FICA                FICARates
	SubstantialPresence SubstantialPresenceRules
}

// Ruleset is a validated Definition. It has no mutators and every accessor
// returns copies, so one value can be shared by concurrent computations.
type Ruleset struct {
	def Definition
}

// New validates def and returns an immutable Ruleset. Structural defects,
// such as gaps between brackets, fail with domain.ErrInvalidRuleset.
func New(def Definition) (*Ruleset, error) {
	if err := validate(def); err != nil {
		return nil, err
	}
	return &Ruleset{def: cloneDefinition(def)}, nil
}

func (r *Ruleset) TaxYear() int      { return r.def.TaxYear }
func (r *Ruleset) VersionID() string { return r.def.VersionID }

// FederalBrackets returns the federal schedule in ascending order.
func (r *Ruleset) FederalBrackets() []TaxBracket {
	return append([]TaxBracket(nil), r.def.FederalBrackets...)
}

func (r *Ruleset) StandardDeduction(status domain.FilingStatus) (decimal.Decimal, bool) {
	d, ok := r.def.StandardDeductions[status]
	return d, ok
}

// FilingStatuses returns the statuses with a standard deduction, sorted.
func (r *Ruleset) FilingStatuses() []domain.FilingStatus {
	out := make([]domain.FilingStatus, 0, len(r.def.StandardDeductions))
	for s := range r.def.StandardDeductions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TreatyProvision looks up one provision of country's treaty.
func (r *Ruleset) TreatyProvision(country string, category domain.TreatyCategory) (TreatyProvision, bool) {
	p, ok := r.def.Treaties[country][category]
	return p, ok
}

// HasTreaty reports whether any provision exists for country.
func (r *Ruleset) HasTreaty(country string) bool {
	return len(r.def.Treaties[country]) > 0
}

// TreatyCategories returns country's provision kinds, sorted.
func (r *Ruleset) TreatyCategories(country string) []domain.TreatyCategory {
	provisions := r.def.Treaties[country]
	out := make([]domain.TreatyCategory, 0, len(provisions))
	for c := range provisions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Ruleset) TreatyCountries() []string {
	return sortedKeys(r.def.Treaties)
}

// State returns a state's table. The returned brackets are a copy.
func (r *Ruleset) State(code string) (StateTable, bool) {
	s, ok := r.def.States[code]
	if !ok {
		return StateTable{}, false
	}
	s.Brackets = append([]TaxBracket(nil), s.Brackets...)
	return s, true
}

func (r *Ruleset) StateCodes() []string {
	return sortedKeys(r.def.States)
}

// ExemptIndividualLimit is the number of calendar years a visa holder's days
// are excluded from the substantial presence test.
func (r *Ruleset) ExemptIndividualLimit(visa domain.VisaType) (int, bool) {
	n, ok := r.def.ExemptIndividual[visa]
	return n, ok
}

// ExemptIndividualVisas returns the visas in the exempt-individual table, sorted.
func (r *Ruleset) ExemptIndividualVisas() []domain.VisaType {
	out := make([]domain.VisaType, 0, len(r.def.ExemptIndividual))
	for v := range r.def.ExemptIndividual {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Ruleset) FICAExemption() FICAExemptionRules {
	rules := r.def.FICAExemption
	rules.Visas = append([]domain.VisaType(nil), rules.Visas...)
	return rules
}

func (r *Ruleset) FICA() FICARates { return r.def.FICA }

func (r *Ruleset) SubstantialPresence() SubstantialPresenceRules {
	return r.def.SubstantialPresence
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneDefinition(def Definition) Definition {
	out := def
	out.FederalBrackets = append([]TaxBracket(nil), def.FederalBrackets...)

	out.StandardDeductions = make(map[domain.FilingStatus]decimal.Decimal, len(def.StandardDeductions))
	for k, v := range def.StandardDeductions {
		out.StandardDeductions[k] = v
	}

	out.Treaties = make(map[string]map[domain.TreatyCategory]TreatyProvision, len(def.Treaties))
	for country, provisions := range def.Treaties {
		inner := make(map[domain.TreatyCategory]TreatyProvision, len(provisions))
		for c, p := range provisions {
			inner[c] = p
		}
		out.Treaties[country] = inner
	}

	out.States = make(map[string]StateTable, len(def.States))
	for code, st := range def.States {
		st.Brackets = append([]TaxBracket(nil), st.Brackets...)
		out.States[code] = st
	}

	out.ExemptIndividual = make(map[domain.VisaType]int, len(def.ExemptIndividual))
	for v, n := range def.ExemptIndividual {
		out.ExemptIndividual[v] = n
	}

	out.FICAExemption.Visas = append([]domain.VisaType(nil), def.FICAExemption.Visas...)
	return out
}
