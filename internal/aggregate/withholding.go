package aggregate

import (
	"time"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/shopspring/decimal"
)

type withholdingMapping struct {
	names    []string
	category domain.WithholdingCategory
}

var (
	federalWithheld  = withholdingMapping{[]string{"federal_income_tax_withheld", "federal_tax_withheld"}, domain.WithholdingFederalIncomeTax}
	stateWithheld    = withholdingMapping{[]string{"state_income_tax_withheld", "state_tax_withheld"}, domain.WithholdingStateIncomeTax}
	ssWithheld       = withholdingMapping{[]string{"social_security_tax_withheld"}, domain.WithholdingSocialSecurity}
	medicareWithheld = withholdingMapping{[]string{"medicare_tax_withheld"}, domain.WithholdingMedicare}
	foreignTaxPaid   = withholdingMapping{[]string{"foreign_tax_paid"}, domain.WithholdingForeignTaxPaid}
)

var withholdingFields = map[domain.DocumentCategory][]withholdingMapping{
	domain.DocumentW2:       {federalWithheld, stateWithheld, ssWithheld, medicareWithheld},
	domain.Document1099INT:  {federalWithheld, stateWithheld, foreignTaxPaid},
	domain.Document1099NEC:  {federalWithheld, stateWithheld},
	domain.Document1099DIV:  {federalWithheld, stateWithheld, foreignTaxPaid},
	domain.Document1099G:    {federalWithheld, stateWithheld},
	domain.Document1099MISC: {federalWithheld, stateWithheld},
	domain.Document1099B:    {federalWithheld, stateWithheld},
	domain.Document1099R:    {federalWithheld, stateWithheld},
	domain.Document1042S:    {federalWithheld, stateWithheld},
}

// CheckFICAExemption reports whether a filer is exempt from Social Security
// and Medicare tax: the visa is in the exemption table and the tax year is no
// later than the table's last calendar year counted from the entry year. A
// zero entry date is never exempt.
func CheckFICAExemption(visa domain.VisaType, entryDate time.Time, taxYear int, rules ruleset.FICAExemptionRules) bool {
	if entryDate.IsZero() {
		return false
	}
	normalized, err := domain.ParseVisaType(string(visa))
	if err != nil || !rules.Covers(normalized) {
		return false
	}
	calendarYears := taxYear - entryDate.Year() + 1
	return calendarYears >= 1 && calendarYears <= rules.MaxCalendarYears
}

// AggregateWithholding sums withholding with a package default Aggregator.
func AggregateWithholding(docs []domain.Document, visa domain.VisaType, entryDate time.Time, taxYear int, rules ruleset.FICAExemptionRules) (domain.WithholdingAggregate, error) {
	return NewAggregator().AggregateWithholding(docs, visa, entryDate, taxYear, rules)
}

// AggregateWithholding totals withholding across documents. For a FICA-exempt
// filer, Social Security and Medicare tax on wage statements is also
// accumulated as incorrectly withheld.
func (a *Aggregator) AggregateWithholding(docs []domain.Document, visa domain.VisaType, entryDate time.Time, taxYear int, rules ruleset.FICAExemptionRules) (domain.WithholdingAggregate, error) {
	exempt := CheckFICAExemption(visa, entryDate, taxYear, rules)
	totals := make(map[domain.WithholdingCategory]decimal.Decimal)
	incorrect := decimal.Zero

	for i, doc := range docs {
		cat, ok := domain.ParseDocumentCategory(string(doc.Category))
		if !ok {
			continue
		}
		for _, m := range withholdingFields[cat] {
			raw, ok := doc.Field(m.names...)
			if !ok {
				continue
			}
			amt, err := ParseAmount(raw, false)
			if err != nil {
				a.logger.Warnf("document %s: field %s: %v; counted as zero", docLabel(i, doc), m.names[0], err)
				continue
			}
			totals[m.category] = totals[m.category].Add(amt)
			if exempt && cat == domain.DocumentW2 &&
				(m.category == domain.WithholdingSocialSecurity || m.category == domain.WithholdingMedicare) {
				incorrect = incorrect.Add(amt)
			}
		}
	}
	if incorrect.IsPositive() {
		a.logger.Debugf("FICA-exempt filer had %s of payroll tax withheld", incorrect.StringFixed(2))
	}
	return domain.NewWithholdingAggregate(totals, exempt, incorrect)
}
