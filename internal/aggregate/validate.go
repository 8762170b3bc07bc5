package aggregate

import (
	"fmt"
	"regexp"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/shopspring/decimal"
)

// Severity grades a Finding. Findings never block aggregation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is a cross-field inconsistency detected on one document.
type Finding struct {
	DocumentID string                  `json:"document_id" yaml:"document_id"`
	Category   domain.DocumentCategory `json:"category" yaml:"category"`
	Rule       string                  `json:"rule" yaml:"rule"`
	Severity   Severity                `json:"severity" yaml:"severity"`
	Message    string                  `json:"message" yaml:"message"`
}

var (
	ssnPattern  = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	itinPattern = regexp.MustCompile(`^9\d{2}-?[5-9]\d-?\d{4}$`)

	socialSecurityRateTolerance = decimal.RequireFromString("0.001")
	medicareRateTolerance       = decimal.RequireFromString("0.0001")
)

// ValidateDocuments runs ValidateDocument over docs in order.
func ValidateDocuments(docs []domain.Document, rates ruleset.FICARates) []Finding {
	var out []Finding
	for i, doc := range docs {
		out = append(out, validateDocument(i, doc, rates)...)
	}
	return out
}

// ValidateDocument checks withholding against the income it was withheld from
// and payroll tax against the statutory rates.
func ValidateDocument(doc domain.Document, rates ruleset.FICARates) []Finding {
	return validateDocument(0, doc, rates)
}

func validateDocument(i int, doc domain.Document, rates ruleset.FICARates) []Finding {
	cat, ok := domain.ParseDocumentCategory(string(doc.Category))
	if !ok {
		return nil
	}
	v := &docValidator{id: docLabel(i, doc), cat: cat, doc: doc}

	v.checkTIN()
	switch cat {
	case domain.DocumentW2:
		wages := v.amount("wages", "wages_tips_compensation")
		federal := v.amount(federalWithheld.names...)
		if federal.GreaterThan(wages) {
			v.add("withholding_exceeds_wages", SeverityError,
				"federal income tax withheld %s exceeds wages %s", federal.StringFixed(2), wages.StringFixed(2))
		}
		ssWages := v.amount("social_security_wages")
		if base := rates.SocialSecurityWageBase; base.IsPositive() && ssWages.GreaterThan(base) {
			v.add("social_security_wages_exceed_base", SeverityWarning,
				"social security wages %s exceed the %s wage base", ssWages.StringFixed(2), base.StringFixed(2))
		}
		v.checkPayroll("social_security", ssWages, v.amount(ssWithheld.names...),
			rates.SocialSecurityRate, socialSecurityRateTolerance)
		v.checkPayroll("medicare", v.amount("medicare_wages", "medicare_wages_tips"), v.amount(medicareWithheld.names...),
			rates.MedicareRate, medicareRateTolerance)
	case domain.Document1098T:
	default:
		income := decimal.Zero
		if cat == domain.Document1042S {
			income = v.amount("gross_income")
		}
		for _, m := range incomeFields[cat] {
			if m.category.SourcingRule() == domain.SourceInformational {
				continue
			}
			income = income.Add(v.amount(m.names...).Abs())
		}
		federal := v.amount(federalWithheld.names...)
		if federal.IsPositive() && federal.GreaterThan(income) {
			v.add("withholding_exceeds_income", SeverityError,
				"federal tax withheld %s exceeds reported income %s", federal.StringFixed(2), income.StringFixed(2))
		}
	}
	return v.findings
}

type docValidator struct {
	id       string
	cat      domain.DocumentCategory
	doc      domain.Document
	findings []Finding
}

func (v *docValidator) add(rule string, sev Severity, format string, args ...any) {
	v.findings = append(v.findings, Finding{
		DocumentID: v.id,
		Category:   v.cat,
		Rule:       rule,
		Severity:   sev,
		Message:    fmt.Sprintf(format, args...),
	})
}

// amount reads a field leniently; malformed values are zero here because the
// aggregator already reports them.
func (v *docValidator) amount(names ...string) decimal.Decimal {
	raw, ok := v.doc.Field(names...)
	if !ok {
		return decimal.Zero
	}
	amt, err := ParseAmount(raw, true)
	if err != nil {
		return decimal.Zero
	}
	return amt
}

func (v *docValidator) checkPayroll(name string, wages, tax, rate, tolerance decimal.Decimal) {
	if tax.GreaterThan(wages) {
		v.add(name+"_tax_exceeds_wages", SeverityError,
			"%s tax %s exceeds %s wages %s", name, tax.StringFixed(2), name, wages.StringFixed(2))
		return
	}
	if !wages.IsPositive() || !tax.IsPositive() || rate.IsZero() {
		return
	}
	actual := tax.Div(wages)
	if actual.Sub(rate).Abs().GreaterThan(tolerance) {
		v.add(name+"_rate_mismatch", SeverityWarning,
			"%s tax is %s%% of wages, expected %s%%", name,
			actual.Mul(decimal.NewFromInt(100)).StringFixed(2), rate.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}
}

func (v *docValidator) checkTIN() {
	ssn, hasSSN := v.doc.Field("ssn", "recipient_ssn", "employee_ssn")
	itin, hasITIN := v.doc.Field("itin", "recipient_itin")
	if hasSSN && hasITIN {
		v.add("ssn_itin_conflict", SeverityError, "document carries both an SSN and an ITIN")
		return
	}
	if hasSSN && !ssnPattern.MatchString(domain.NormalizeCode(ssn)) {
		v.add("tin_format", SeverityWarning, "SSN is not in NNN-NN-NNNN form")
	}
	if hasITIN && !itinPattern.MatchString(domain.NormalizeCode(itin)) {
		v.add("tin_format", SeverityWarning, "ITIN is not a 9NN-NN-NNNN number with a valid group")
	}
}
