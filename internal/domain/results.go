package domain

import (
	"github.com/shopspring/decimal"
)

// ResidencyStatus is the closed set of tax residency outcomes.
type ResidencyStatus string

const (
	Resident    ResidencyStatus = "resident"
	NonResident ResidencyStatus = "non_resident"
	// DualStatus needs residency start and end dates, which FilerFacts does
	// not carry; the determinator never produces it today.
	DualStatus ResidencyStatus = "dual_status"
)

func (s ResidencyStatus) Valid() bool {
	switch s {
	case Resident, NonResident, DualStatus:
		return true
	}
	return false
}

// DeterminationMethod records which test decided residency.
type DeterminationMethod string

const (
	MethodExemptIndividual    DeterminationMethod = "exempt_individual"
	MethodSubstantialPresence DeterminationMethod = "substantial_presence_test"
)

// PresenceBreakdown shows the inputs and weights of the substantial presence test.
//
// Residency needs both the weighted total reaching Threshold and at least
// MinimumCurrentYearDays in the tax year itself. The second condition is the
// IRS 31-day rule; it goes beyond a pure weighted-total test, so a filer over
// the threshold with MeetsCurrentYearMinimum false is still non-resident. A
// ruleset with a minimum of 0 decides on the weighted total alone.
type PresenceBreakdown struct {
	CurrentYear             int             `json:"current_year" yaml:"current_year"`
	PriorYear               int             `json:"prior_year" yaml:"prior_year"`
	TwoYearsAgo             int             `json:"two_years_ago" yaml:"two_years_ago"`
	WeightedPriorYear       decimal.Decimal `json:"weighted_prior_year" yaml:"weighted_prior_year"`
	WeightedTwoYearsAgo     decimal.Decimal `json:"weighted_two_years_ago" yaml:"weighted_two_years_ago"`
	Threshold               int             `json:"threshold" yaml:"threshold"`
	MinimumCurrentYearDays  int             `json:"minimum_current_year_days" yaml:"minimum_current_year_days"`
	MeetsCurrentYearMinimum bool            `json:"meets_current_year_minimum" yaml:"meets_current_year_minimum"`
}

type ResidencyDetermination struct {
	Status           ResidencyStatus     `json:"residency_status" yaml:"residency_status"`
	Method           DeterminationMethod `json:"determination_method" yaml:"determination_method"`
	WeightedDayTotal decimal.Decimal     `json:"substantial_presence_days" yaml:"substantial_presence_days"`
	ExemptYearsUsed  int                 `json:"exempt_years_used" yaml:"exempt_years_used"`
	Breakdown        *PresenceBreakdown  `json:"calculation_breakdown,omitempty" yaml:"calculation_breakdown,omitempty"`
	Reasoning        string              `json:"reasoning" yaml:"reasoning"`
}

// SourcingLine is the U.S./foreign split of one income category.
type SourcingLine struct {
	Category      IncomeCategory  `json:"income_type" yaml:"income_type"`
	Amount        decimal.Decimal `json:"amount" yaml:"amount"`
	USSource      decimal.Decimal `json:"us_portion" yaml:"us_portion"`
	ForeignSource decimal.Decimal `json:"foreign_portion" yaml:"foreign_portion"`
	Rule          SourcingRule    `json:"method" yaml:"method"`
	Authority     string          `json:"rule" yaml:"rule"`
}

type SourcingResult struct {
	Lines                      []SourcingLine  `json:"sourcing_rules_applied" yaml:"sourcing_rules_applied"`
	TotalUSSource              decimal.Decimal `json:"total_us_source_income" yaml:"total_us_source_income"`
	TotalForeignSource         decimal.Decimal `json:"total_foreign_source_income" yaml:"total_foreign_source_income"`
	EffectivelyConnectedIncome decimal.Decimal `json:"effectively_connected_income" yaml:"effectively_connected_income"`
}

// USSourceByCategory returns the U.S.-source amount of every sourced line.
func (r SourcingResult) USSourceByCategory() CategoryAmountMap {
	out := make(CategoryAmountMap, len(r.Lines))
	for _, l := range r.Lines {
		if l.Rule == SourceInformational {
			continue
		}
		out[l.Category] = l.USSource
	}
	return out
}

// TreatyCategory names a kind of treaty provision.
type TreatyCategory string

const (
	TreatyStudent         TreatyCategory = "student_exemption"
	TreatyTeacher         TreatyCategory = "teacher_exemption"
	TreatyBusinessProfits TreatyCategory = "business_profits"
)

type TreatyExemption struct {
	Type           TreatyCategory  `json:"type" yaml:"type"`
	Article        string          `json:"article" yaml:"article"`
	Amount         decimal.Decimal `json:"amount" yaml:"amount"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	YearsRemaining *int            `json:"years_remaining,omitempty" yaml:"years_remaining,omitempty"`
}

type TreatyBenefitResult struct {
	HasTreaty      bool              `json:"has_treaty" yaml:"has_treaty"`
	Country        string            `json:"treaty_country" yaml:"treaty_country"`
	Exemptions     []TreatyExemption `json:"exemptions_applied" yaml:"exemptions_applied"`
	TotalExemption decimal.Decimal   `json:"total_exemption_amount" yaml:"total_exemption_amount"`
	Reasoning      string            `json:"reasoning" yaml:"reasoning"`
}

// BracketLine is the tax owed within one bracket. Max is unset for the top bracket.
type BracketLine struct {
	Min           decimal.Decimal     `json:"min" yaml:"min"`
	Max           decimal.NullDecimal `json:"max" yaml:"max"`
	Rate          decimal.Decimal     `json:"rate" yaml:"rate"`
	TaxableAmount decimal.Decimal     `json:"taxable_amount" yaml:"taxable_amount"`
	Tax           decimal.Decimal     `json:"tax_amount" yaml:"tax_amount"`
}

type TaxBracketResult struct {
	TaxableIncome decimal.Decimal `json:"taxable_income" yaml:"taxable_income"`
	Brackets      []BracketLine   `json:"tax_by_bracket" yaml:"tax_by_bracket"`
	TotalTax      decimal.Decimal `json:"total_tax" yaml:"total_tax"`
	EffectiveRate decimal.Decimal `json:"effective_rate" yaml:"effective_rate"`
}

type StateTaxResult struct {
	State              string          `json:"state" yaml:"state"`
	HasIncomeTax       bool            `json:"has_income_tax" yaml:"has_income_tax"`
	HasStateTable      bool            `json:"has_state_table" yaml:"has_state_table"`
	StandardDeduction  decimal.Decimal `json:"standard_deduction" yaml:"standard_deduction"`
	StateTaxableIncome decimal.Decimal `json:"state_taxable_income" yaml:"state_taxable_income"`

	TaxBracketResult `yaml:",inline"`
}

type CreditLine struct {
	Type        string          `json:"credit_type" yaml:"credit_type"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Description string          `json:"description" yaml:"description"`
}

type Credits struct {
	TotalCredits decimal.Decimal `json:"total_credits" yaml:"total_credits"`
	Lines        []CreditLine    `json:"credits_breakdown" yaml:"credits_breakdown"`
}

// SettlementDirection says whether the filer receives or pays the amount.
type SettlementDirection string

const (
	Refund SettlementDirection = "refund"
	Owed   SettlementDirection = "owed"
)

type FinalComputation struct {
	TotalTax     decimal.Decimal     `json:"total_tax" yaml:"total_tax"`
	TotalCredits decimal.Decimal     `json:"total_credits" yaml:"total_credits"`
	TaxLiability decimal.Decimal     `json:"tax_liability" yaml:"tax_liability"`
	RefundOrOwed SettlementDirection `json:"refund_or_owed" yaml:"refund_or_owed"`
	Amount       decimal.Decimal     `json:"amount" yaml:"amount"`
}

type TaxableIncomeCalculation struct {
	USSourceIncome   decimal.Decimal `json:"us_source_income" yaml:"us_source_income"`
	TreatyExemptions decimal.Decimal `json:"treaty_exemptions" yaml:"treaty_exemptions"`
	TaxableIncome    decimal.Decimal `json:"taxable_income" yaml:"taxable_income"`
}

type FICAStatus struct {
	Exempt            bool            `json:"fica_exempt" yaml:"fica_exempt"`
	IncorrectWithheld decimal.Decimal `json:"incorrect_fica_withheld" yaml:"incorrect_fica_withheld"`
	RefundEligible    bool            `json:"fica_refund_eligible" yaml:"fica_refund_eligible"`
}

// ComputationResult is the full record of one computation. It carries no
// timestamps so identical inputs marshal to identical bytes.
type ComputationResult struct {
	ComputationID  string                   `json:"computation_id" yaml:"computation_id"`
	TaxYear        int                      `json:"tax_year" yaml:"tax_year"`
	RulesetVersion string                   `json:"ruleset_version" yaml:"ruleset_version"`
	Residency      ResidencyDetermination   `json:"residency_determination" yaml:"residency_determination"`
	Sourcing       SourcingResult           `json:"income_sourcing" yaml:"income_sourcing"`
	Treaty         TreatyBenefitResult      `json:"treaty_benefits" yaml:"treaty_benefits"`
	TaxableIncome  TaxableIncomeCalculation `json:"taxable_income_calculation" yaml:"taxable_income_calculation"`
	Federal        TaxBracketResult         `json:"federal_tax" yaml:"federal_tax"`
	State          *StateTaxResult          `json:"state_tax,omitempty" yaml:"state_tax,omitempty"`
	Credits        Credits                  `json:"tax_credits" yaml:"tax_credits"`
	Final          FinalComputation         `json:"final_computation" yaml:"final_computation"`
	FICA           FICAStatus               `json:"fica" yaml:"fica"`
}
