package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// IncomeCategory is a closed set of income buckets documents fold into.
type IncomeCategory string

const (
	IncomeWages                   IncomeCategory = "wages"
	IncomeSelfEmployment          IncomeCategory = "self_employment"
	IncomeTeaching                IncomeCategory = "teaching"
	IncomeResearch                IncomeCategory = "research"
	IncomeInterest                IncomeCategory = "interest"
	IncomeDividends               IncomeCategory = "dividends"
	IncomeQualifiedDividends      IncomeCategory = "qualified_dividends"
	IncomeCapitalGains            IncomeCategory = "capital_gains"
	IncomeScholarship             IncomeCategory = "scholarship"
	IncomeFellowship              IncomeCategory = "fellowship"
	IncomeUnemployment            IncomeCategory = "unemployment"
	IncomeStateRefunds            IncomeCategory = "state_refunds"
	IncomeRents                   IncomeCategory = "rents"
	IncomeRoyalties               IncomeCategory = "royalties"
	IncomeOther                   IncomeCategory = "other_income"
	IncomeRetirementDistributions IncomeCategory = "retirement_distributions"
	IncomeRetirementTaxable       IncomeCategory = "retirement_taxable"
	IncomeTuitionPaid             IncomeCategory = "tuition_paid"
	IncomeForeignPerson           IncomeCategory = "foreign_person_income"
)

// SourcingRule says how a category is split into U.S. and foreign source.
type SourcingRule string

const (
	// SourceByWorkDays splits by where the services were performed.
	SourceByWorkDays SourcingRule = "work_days"
	// SourceByPayor uses the U.S.-payor sub-amount, defaulting to all U.S.
	SourceByPayor SourcingRule = "payor"
	// SourceInformational amounts are reported but never taxed.
	SourceInformational SourcingRule = "informational"
)

type categoryTraits struct {
	rule           SourcingRule
	allowsNegative bool
}

// incomeCategoryOrder is the canonical reporting order.
var incomeCategoryOrder = []IncomeCategory{
	IncomeWages, IncomeSelfEmployment, IncomeTeaching, IncomeResearch,
	IncomeInterest, IncomeDividends, IncomeQualifiedDividends, IncomeCapitalGains,
	IncomeScholarship, IncomeFellowship, IncomeUnemployment, IncomeStateRefunds,
	IncomeRents, IncomeRoyalties, IncomeOther, IncomeRetirementDistributions,
	IncomeRetirementTaxable, IncomeTuitionPaid, IncomeForeignPerson,
}

var incomeCategoryTraits = map[IncomeCategory]categoryTraits{
	IncomeWages:                   {rule: SourceByWorkDays},
	IncomeSelfEmployment:          {rule: SourceByWorkDays},
	IncomeTeaching:                {rule: SourceByWorkDays},
	IncomeResearch:                {rule: SourceByWorkDays},
	IncomeInterest:                {rule: SourceByPayor},
	IncomeDividends:               {rule: SourceByPayor},
	IncomeQualifiedDividends:      {rule: SourceInformational},
	IncomeCapitalGains:            {rule: SourceByPayor, allowsNegative: true},
	IncomeScholarship:             {rule: SourceByPayor},
	IncomeFellowship:              {rule: SourceByPayor},
	IncomeUnemployment:            {rule: SourceByPayor},
	IncomeStateRefunds:            {rule: SourceByPayor},
	IncomeRents:                   {rule: SourceByPayor},
	IncomeRoyalties:               {rule: SourceByPayor},
	IncomeOther:                   {rule: SourceByPayor},
	IncomeRetirementDistributions: {rule: SourceInformational},
	IncomeRetirementTaxable:       {rule: SourceByPayor},
	IncomeTuitionPaid:             {rule: SourceInformational},
	IncomeForeignPerson:           {rule: SourceByPayor},
}

// IncomeCategories returns every category in reporting order.
func IncomeCategories() []IncomeCategory {
	return append([]IncomeCategory(nil), incomeCategoryOrder...)
}

// ParseIncomeCategory validates a category name.
func ParseIncomeCategory(s string) (IncomeCategory, error) {
	c := IncomeCategory(s)
	if !c.Valid() {
		return "", NewInputError("income_category", s, "is not a known income category")
	}
	return c, nil
}

func (c IncomeCategory) Valid() bool {
	_, ok := incomeCategoryTraits[c]
	return ok
}

// AllowsNegative reports whether losses are representable in this category.
func (c IncomeCategory) AllowsNegative() bool {
	return incomeCategoryTraits[c].allowsNegative
}

func (c IncomeCategory) SourcingRule() SourcingRule {
	return incomeCategoryTraits[c].rule
}

// CategoryAmounts reports an amount per income category.
type CategoryAmounts interface {
	Amount(IncomeCategory) decimal.Decimal
}

// CategoryAmountMap is a plain CategoryAmounts.
type CategoryAmountMap map[IncomeCategory]decimal.Decimal

func (m CategoryAmountMap) Amount(c IncomeCategory) decimal.Decimal {
	return m[c]
}

// IncomeAggregate is the per-category income total for one computation.
// It is read-only after construction.
type IncomeAggregate struct {
	amounts map[IncomeCategory]decimal.Decimal
	usHints map[IncomeCategory]decimal.Decimal
}

// NewIncomeAggregate validates and copies amounts and U.S.-payor hints. A hint
// is the part of a payor-sourced category paid by U.S. payors.
func NewIncomeAggregate(amounts, usSourceHints map[IncomeCategory]decimal.Decimal) (IncomeAggregate, error) {
	agg := IncomeAggregate{
		amounts: make(map[IncomeCategory]decimal.Decimal, len(amounts)),
		usHints: make(map[IncomeCategory]decimal.Decimal, len(usSourceHints)),
	}
	for c, amt := range amounts {
		if !c.Valid() {
			return IncomeAggregate{}, NewInputError("income_category", string(c), "is not a known income category")
		}
		if amt.IsNegative() && !c.AllowsNegative() {
			return IncomeAggregate{}, NewInputError(string(c), amt.String(), "cannot be negative")
		}
		if amt.IsZero() {
			continue
		}
		agg.amounts[c] = amt
	}
	for c, hint := range usSourceHints {
		if !c.Valid() {
			return IncomeAggregate{}, NewInputError("us_source_hint", string(c), "is not a known income category")
		}
		if c.SourcingRule() != SourceByPayor {
			return IncomeAggregate{}, NewInputError("us_source_hint", string(c), "is not sourced by payor")
		}
		if hint.IsNegative() {
			return IncomeAggregate{}, NewInputError("us_source_hint."+string(c), hint.String(), "cannot be negative")
		}
		total := agg.amounts[c]
		if hint.GreaterThan(total.Abs()) {
			return IncomeAggregate{}, NewInputError("us_source_hint."+string(c), hint.String(),
				fmt.Sprintf("exceeds the category total %s", total.String()))
		}
		agg.usHints[c] = hint
	}
	return agg, nil
}

// EmptyIncome is the aggregate of zero documents.
func EmptyIncome() IncomeAggregate {
	return IncomeAggregate{}
}

// Amount returns the total for c, zero when absent.
func (a IncomeAggregate) Amount(c IncomeCategory) decimal.Decimal {
	return a.amounts[c]
}

// USSourceHint returns the U.S.-payor part of c when one was supplied.
func (a IncomeAggregate) USSourceHint(c IncomeCategory) (decimal.Decimal, bool) {
	h, ok := a.usHints[c]
	return h, ok
}

// Categories returns the non-zero categories in reporting order.
func (a IncomeAggregate) Categories() []IncomeCategory {
	var out []IncomeCategory
	for _, c := range incomeCategoryOrder {
		if _, ok := a.amounts[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// IsEmpty reports whether no income was recorded.
func (a IncomeAggregate) IsEmpty() bool {
	return len(a.amounts) == 0
}

// With returns a new aggregate with extra amounts added and hints replaced.
func (a IncomeAggregate) With(extra, usSourceHints map[IncomeCategory]decimal.Decimal) (IncomeAggregate, error) {
	amounts := a.Amounts()
	for c, amt := range extra {
		amounts[c] = amounts[c].Add(amt)
	}
	hints := make(map[IncomeCategory]decimal.Decimal, len(a.usHints)+len(usSourceHints))
	for c, h := range a.usHints {
		hints[c] = h
	}
	for c, h := range usSourceHints {
		hints[c] = h
	}
	return NewIncomeAggregate(amounts, hints)
}

// Amounts returns a copy of the category totals.
func (a IncomeAggregate) Amounts() map[IncomeCategory]decimal.Decimal {
	out := make(map[IncomeCategory]decimal.Decimal, len(a.amounts))
	for c, amt := range a.amounts {
		out[c] = amt
	}
	return out
}

type incomeAggregateJSON struct {
	Amounts       map[IncomeCategory]decimal.Decimal `json:"amounts" yaml:"amounts"`
	USSourceHints map[IncomeCategory]decimal.Decimal `json:"us_source_hints,omitempty" yaml:"us_source_hints,omitempty"`
}

func (a IncomeAggregate) view() incomeAggregateJSON {
	v := incomeAggregateJSON{Amounts: a.Amounts()}
	if len(a.usHints) > 0 {
		v.USSourceHints = make(map[IncomeCategory]decimal.Decimal, len(a.usHints))
		for c, h := range a.usHints {
			v.USSourceHints[c] = h
		}
	}
	return v
}

// MarshalJSON emits amounts keyed by category; encoding/json sorts the keys.
func (a IncomeAggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.view())
}

// MarshalYAML mirrors MarshalJSON.
func (a IncomeAggregate) MarshalYAML() (interface{}, error) {
	return a.view(), nil
}
