// Package aggregate folds extracted document fields into the income and
// withholding totals a computation consumes.
package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

// Logger is the subset of calculation.Logger the aggregator writes to.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// fieldMapping routes one extracted field (or its alternates) to a category.
type fieldMapping struct {
	names    []string
	category domain.IncomeCategory
}

func field(category domain.IncomeCategory, names ...string) fieldMapping {
	return fieldMapping{names: names, category: category}
}

var incomeFields = map[domain.DocumentCategory][]fieldMapping{
	domain.DocumentW2: {
		field(domain.IncomeWages, "wages", "wages_tips_compensation"),
	},
	domain.Document1099INT: {
		field(domain.IncomeInterest, "interest_income"),
	},
	domain.Document1099NEC: {
		field(domain.IncomeSelfEmployment, "nonemployee_compensation"),
	},
	domain.Document1099DIV: {
		field(domain.IncomeDividends, "total_ordinary_dividends", "ordinary_dividends"),
		field(domain.IncomeQualifiedDividends, "qualified_dividends"),
		field(domain.IncomeCapitalGains, "total_capital_gain_distributions", "capital_gain_distributions"),
	},
	domain.Document1099G: {
		field(domain.IncomeUnemployment, "unemployment_compensation"),
		field(domain.IncomeStateRefunds, "state_tax_refund", "state_local_tax_refund"),
	},
	domain.Document1099MISC: {
		field(domain.IncomeRents, "rents"),
		field(domain.IncomeRoyalties, "royalties"),
		field(domain.IncomeOther, "other_income"),
	},
	domain.Document1099B: {
		field(domain.IncomeCapitalGains, "gain_or_loss", "realized_gain_loss"),
	},
	domain.Document1099R: {
		field(domain.IncomeRetirementDistributions, "gross_distribution"),
		field(domain.IncomeRetirementTaxable, "taxable_amount"),
	},
	domain.Document1098T: {
		field(domain.IncomeTuitionPaid, "qualified_tuition_expenses", "payments_received"),
		field(domain.IncomeScholarship, "scholarships_grants"),
	},
}

// 1042-S income codes routed to something other than foreign_person_income.
var form1042SIncomeCodes = map[string]domain.IncomeCategory{
	"16": domain.IncomeScholarship,
	"17": domain.IncomeSelfEmployment,
	"18": domain.IncomeWages,
	"19": domain.IncomeTeaching,
	"20": domain.IncomeFellowship,
}

// Aggregator turns documents into aggregates. It holds no per-call state.
type Aggregator struct {
	logger Logger
}

// NewAggregator creates an Aggregator that logs nothing until SetLogger is called.
func NewAggregator() *Aggregator {
	return &Aggregator{logger: nopLogger{}}
}

// SetLogger sets the logger; nil restores the no-op logger.
func (a *Aggregator) SetLogger(l Logger) {
	if l == nil {
		a.logger = nopLogger{}
		return
	}
	a.logger = l
}

// AggregateIncome sums the documents into an IncomeAggregate with a package
// default Aggregator.
func AggregateIncome(docs []domain.Document) (domain.IncomeAggregate, error) {
	return NewAggregator().AggregateIncome(docs)
}

type categorySums struct {
	total        decimal.Decimal
	usPayor      decimal.Decimal
	foreignPayor bool
}

// AggregateIncome sums each recognized field into its category. A malformed
// value counts as zero and is logged; unknown document categories are skipped.
// When foreign payors contributed to a payor-sourced category, the U.S.-payor
// share is recorded as the category's sourcing hint.
func (a *Aggregator) AggregateIncome(docs []domain.Document) (domain.IncomeAggregate, error) {
	sums := make(map[domain.IncomeCategory]*categorySums)
	add := func(c domain.IncomeCategory, amt decimal.Decimal, usPayor bool) {
		s, ok := sums[c]
		if !ok {
			s = &categorySums{}
			sums[c] = s
		}
		s.total = s.total.Add(amt)
		if usPayor {
			s.usPayor = s.usPayor.Add(amt)
		} else {
			s.foreignPayor = true
		}
	}

	for i, doc := range docs {
		cat, ok := domain.ParseDocumentCategory(string(doc.Category))
		if !ok {
			a.logger.Warnf("document %s: unrecognized category %q, skipped", docLabel(i, doc), doc.Category)
			continue
		}
		usPayor := doc.USPayor()
		if cat == domain.Document1042S {
			if amt, ok := a.amount(i, doc, domain.IncomeForeignPerson, "gross_income"); ok {
				add(incomeCategoryFor1042S(doc), amt, usPayor)
			}
			continue
		}
		for _, m := range incomeFields[cat] {
			if amt, ok := a.amount(i, doc, m.category, m.names...); ok {
				add(m.category, amt, usPayor)
			}
		}
	}

	amounts := make(map[domain.IncomeCategory]decimal.Decimal, len(sums))
	hints := make(map[domain.IncomeCategory]decimal.Decimal)
	for c, s := range sums {
		amounts[c] = s.total
		if s.foreignPayor && c.SourcingRule() == domain.SourceByPayor && s.total.IsPositive() {
			hints[c] = decimal.Max(decimal.Zero, decimal.Min(s.usPayor, s.total))
		}
	}
	return domain.NewIncomeAggregate(amounts, hints)
}

// amount reads the first present field among names. ok is false when nothing
// usable was found; a malformed value is logged and also yields ok=false.
func (a *Aggregator) amount(i int, doc domain.Document, c domain.IncomeCategory, names ...string) (decimal.Decimal, bool) {
	raw, ok := doc.Field(names...)
	if !ok {
		return decimal.Zero, false
	}
	amt, err := ParseAmount(raw, c.AllowsNegative())
	if err != nil {
		a.logger.Warnf("document %s: field %s: %v; counted as zero", docLabel(i, doc), names[0], err)
		return decimal.Zero, false
	}
	return amt, !amt.IsZero()
}

func incomeCategoryFor1042S(doc domain.Document) domain.IncomeCategory {
	code, _ := doc.Field("income_code")
	code = strings.TrimLeft(strings.TrimSpace(code), "0")
	if c, ok := form1042SIncomeCodes[code]; ok {
		return c
	}
	return domain.IncomeForeignPerson
}

func docLabel(i int, doc domain.Document) string {
	if doc.ID != "" {
		return doc.ID
	}
	return "#" + strconv.Itoa(i)
}

// SupportedDocumentFields lists, per document category, the field names the
// aggregator reads. Used by the CLI to describe input files.
func SupportedDocumentFields() map[domain.DocumentCategory][]string {
	out := make(map[domain.DocumentCategory][]string)
	for cat, mappings := range incomeFields {
		for _, m := range mappings {
			out[cat] = append(out[cat], m.names[0])
		}
	}
	for cat, mappings := range withholdingFields {
		for _, m := range mappings {
			out[cat] = append(out[cat], m.names[0])
		}
	}
	out[domain.Document1042S] = append(out[domain.Document1042S], "gross_income", "income_code")
	for cat := range out {
		sort.Strings(out[cat])
	}
	return out
}
