package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rgehrsitz/nrtax/internal/aggregate"
	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/shopspring/decimal"
)

// AggregateReport is what the aggregator derived from a set of documents.
type AggregateReport struct {
	Income      domain.IncomeAggregate      `json:"income" yaml:"income"`
	Withholding domain.WithholdingAggregate `json:"withholding" yaml:"withholding"`
	Findings    []aggregate.Finding         `json:"findings" yaml:"findings"`
}

// FormatAggregateReport renders rep as console, json or yaml.
func FormatAggregateReport(format string, rep AggregateReport) ([]byte, error) {
	if rep.Findings == nil {
		rep.Findings = []aggregate.Finding{}
	}
	switch strings.ToLower(format) {
	case "json":
		return marshalJSON(rep)
	case "yaml", "yml":
		return marshalYAML(rep)
	case "console", "text", "":
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INCOME\t")
	if rep.Income.IsEmpty() {
		fmt.Fprintln(w, "  (none)\t")
	}
	for _, c := range rep.Income.Categories() {
		fmt.Fprintf(w, "  %s\t%s\n", c, FormatCurrency(rep.Income.Amount(c)))
	}
	fmt.Fprintln(w, "WITHHOLDING\t")
	for _, c := range rep.Withholding.Categories() {
		fmt.Fprintf(w, "  %s\t%s\n", c, FormatCurrency(rep.Withholding.Amount(c)))
	}
	fmt.Fprintf(w, "  fica_exempt\t%t\n", rep.Withholding.FICAExempt())
	if rep.Withholding.FICARefundEligible() {
		fmt.Fprintf(w, "  incorrect_fica_withheld\t%s\n", FormatCurrency(rep.Withholding.IncorrectFICAWithheld()))
	}
	w.Flush()

	if len(rep.Findings) > 0 {
		fmt.Fprintln(&buf, "FINDINGS")
		for _, f := range rep.Findings {
			fmt.Fprintf(&buf, "  [%s] %s %s: %s\n", f.Severity, f.DocumentID, f.Rule, f.Message)
		}
	}
	return buf.Bytes(), nil
}

// FormatResidency renders a residency determination on its own.
func FormatResidency(format string, r domain.ResidencyDetermination) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return marshalJSON(r)
	case "yaml", "yml":
		return marshalYAML(r)
	case "console", "text", "":
		return []byte(residencySection(r)), nil
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

// FormatRulesetSummary describes one tax year's tables in plain text.
func FormatRulesetSummary(rs *ruleset.Ruleset) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Ruleset %s (tax year %d)\n\n", rs.VersionID(), rs.TaxYear())
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "FEDERAL BRACKETS\t\t")
	for _, b := range rs.FederalBrackets() {
		upper := "and up"
		if !b.Unbounded() {
			upper = "to " + FormatCurrency(b.Max.Decimal)
		}
		fmt.Fprintf(w, "  %s %s\t%s\t\n", FormatCurrency(b.Min), upper, FormatPercentage(b.Rate.Mul(decimal.NewFromInt(100))))
	}
	fmt.Fprintln(w, "STANDARD DEDUCTIONS\t\t")
	for _, s := range rs.FilingStatuses() {
		amt, _ := rs.StandardDeduction(s)
		fmt.Fprintf(w, "  %s\t%s\t\n", s, FormatCurrency(amt))
	}
	fmt.Fprintln(w, "TREATIES\t\t")
	for _, country := range rs.TreatyCountries() {
		for _, cat := range rs.TreatyCategories(country) {
			p, _ := rs.TreatyProvision(country, cat)
			limit := "no cap"
			if p.Cap.Valid {
				limit = "cap " + FormatCurrency(p.Cap.Decimal)
			}
			if p.PeriodYears > 0 {
				limit += fmt.Sprintf(", %d years", p.PeriodYears)
			}
			fmt.Fprintf(w, "  %s %s\t%s\t%s\n", country, cat, p.Article, limit)
		}
	}
	fmt.Fprintln(w, "STATES\t\t")
	for _, code := range rs.StateCodes() {
		table, _ := rs.State(code)
		if !table.HasIncomeTax() {
			fmt.Fprintf(w, "  %s\tno income tax\t\n", code)
			continue
		}
		fmt.Fprintf(w, "  %s\t%d brackets\tdeduction %s\n", code, len(table.Brackets), FormatCurrency(table.StandardDeduction))
	}
	fmt.Fprintln(w, "EXEMPT INDIVIDUALS\t\t")
	for _, v := range rs.ExemptIndividualVisas() {
		years, _ := rs.ExemptIndividualLimit(v)
		fmt.Fprintf(w, "  %s\t%d calendar years\t\n", v, years)
	}
	spt := rs.SubstantialPresence()
	fmt.Fprintf(w, "SUBSTANTIAL PRESENCE\t%d days (prior /%d, two years ago /%d, current year minimum %d)\t\n",
		spt.Threshold, spt.PriorYearDivisor, spt.TwoYearsAgoDivisor, spt.MinimumCurrentYearDays)
	fica := rs.FICAExemption()
	visas := make([]string, len(fica.Visas))
	for i, v := range fica.Visas {
		visas[i] = string(v)
	}
	fmt.Fprintf(w, "FICA EXEMPTION\t%s for %d calendar years\t\n", strings.Join(visas, ", "), fica.MaxCalendarYears)
	w.Flush()
	return buf.Bytes()
}
