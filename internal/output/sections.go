package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

// Section is one titled block of a rendered result.
type Section struct {
	Title string
	Body  string
}

// Sections renders each part of a computation as plain text, in pipeline order.
// The state section is omitted when no state was computed.
func Sections(r *domain.ComputationResult) []Section {
	sections := []Section{
		{Title: "Residency", Body: residencySection(r.Residency)},
		{Title: "Sourcing", Body: sourcingSection(r.Sourcing)},
		{Title: "Treaty", Body: treatySection(r.Treaty)},
		{Title: "Federal", Body: bracketSection(r.TaxableIncome, r.Federal)},
	}
	if r.State != nil {
		sections = append(sections, Section{Title: "State", Body: stateSection(*r.State)})
	}
	sections = append(sections, Section{Title: "Settlement", Body: settlementSection(r.Credits, r.Final, r.FICA)})
	return sections
}

func table(write func(w *tabwriter.Writer)) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	write(w)
	w.Flush()
	return buf.String()
}

func residencySection(r domain.ResidencyDetermination) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status:   %s\n", statusLabel(r.Status))
	fmt.Fprintf(&b, "Method:   %s\n", r.Method)
	if r.Method == domain.MethodExemptIndividual {
		fmt.Fprintf(&b, "Exempt years used: %d\n", r.ExemptYearsUsed)
	}
	if bd := r.Breakdown; bd != nil {
		b.WriteString(table(func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "Year\tDays\tWeighted")
			fmt.Fprintf(w, "Current\t%d\t%d\n", bd.CurrentYear, bd.CurrentYear)
			fmt.Fprintf(w, "Prior\t%d\t%s\n", bd.PriorYear, bd.WeightedPriorYear.StringFixed(2))
			fmt.Fprintf(w, "Two years ago\t%d\t%s\n", bd.TwoYearsAgo, bd.WeightedTwoYearsAgo.StringFixed(2))
			fmt.Fprintf(w, "Total\t\t%s (threshold %d)\n", r.WeightedDayTotal.StringFixed(2), bd.Threshold)
		}))
	}
	fmt.Fprintf(&b, "%s\n", r.Reasoning)
	return b.String()
}

func statusLabel(s domain.ResidencyStatus) string {
	switch s {
	case domain.Resident:
		return "Resident alien"
	case domain.NonResident:
		return "Non-resident alien"
	case domain.DualStatus:
		return "Dual-status alien"
	}
	return string(s)
}

func sourcingSection(s domain.SourcingResult) string {
	if len(s.Lines) == 0 {
		return "No income reported.\n"
	}
	return table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "Income\tAmount\tU.S.\tForeign\tRule")
		for _, l := range s.Lines {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Category,
				FormatCurrency(l.Amount), FormatCurrency(l.USSource.Round(2)), FormatCurrency(l.ForeignSource.Round(2)), l.Authority)
		}
		fmt.Fprintf(w, "Total\t\t%s\t%s\t\n", FormatCurrency(s.TotalUSSource.Round(2)), FormatCurrency(s.TotalForeignSource.Round(2)))
		fmt.Fprintf(w, "Effectively connected\t\t%s\t\t\n", FormatCurrency(s.EffectivelyConnectedIncome.Round(2)))
	})
}

func treatySection(t domain.TreatyBenefitResult) string {
	var b strings.Builder
	if len(t.Exemptions) > 0 {
		b.WriteString(table(func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "Type\tArticle\tAmount\tYears left")
			for _, e := range t.Exemptions {
				left := "-"
				if e.YearsRemaining != nil {
					left = fmt.Sprint(*e.YearsRemaining)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Type, e.Article, FormatCurrency(e.Amount), left)
			}
			fmt.Fprintf(w, "Total\t\t%s\t\n", FormatCurrency(t.TotalExemption))
		}))
	}
	fmt.Fprintf(&b, "%s\n", t.Reasoning)
	return b.String()
}

func bracketLines(w *tabwriter.Writer, lines []domain.BracketLine) {
	fmt.Fprintln(w, "Bracket\tRate\tTaxed\tTax")
	for _, l := range lines {
		upper := "and up"
		if l.Max.Valid {
			upper = "to " + FormatCurrency(l.Max.Decimal)
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", FormatCurrency(l.Min), upper,
			FormatPercentage(l.Rate.Mul(decimal.NewFromInt(100))), FormatCurrency(l.TaxableAmount), FormatCurrency(l.Tax))
	}
}

func bracketSection(ti domain.TaxableIncomeCalculation, f domain.TaxBracketResult) string {
	return table(func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "U.S. source income\t%s\n", FormatCurrency(ti.USSourceIncome))
		fmt.Fprintf(w, "Treaty exemptions\t-%s\n", FormatCurrency(ti.TreatyExemptions))
		fmt.Fprintf(w, "Taxable income\t%s\n\n", FormatCurrency(f.TaxableIncome))
		if len(f.Brackets) > 0 {
			bracketLines(w, f.Brackets)
		}
		fmt.Fprintf(w, "Federal tax\t%s\t(effective %s)\n", FormatCurrency(f.TotalTax), FormatPercentage(f.EffectiveRate))
	})
}

func stateSection(s domain.StateTaxResult) string {
	switch {
	case !s.HasStateTable:
		return fmt.Sprintf("No tax table for %s; no state tax computed.\n", s.State)
	case !s.HasIncomeTax:
		return fmt.Sprintf("%s has no state income tax.\n", s.State)
	}
	return table(func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "State\t%s\n", s.State)
		fmt.Fprintf(w, "Standard deduction\t%s\n", FormatCurrency(s.StandardDeduction))
		fmt.Fprintf(w, "State taxable income\t%s\n\n", FormatCurrency(s.StateTaxableIncome))
		bracketLines(w, s.Brackets)
		fmt.Fprintf(w, "State tax\t%s\t(effective %s)\n", FormatCurrency(s.TotalTax), FormatPercentage(s.EffectiveRate))
	})
}

func settlementSection(c domain.Credits, f domain.FinalComputation, fica domain.FICAStatus) string {
	out := table(func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "Total tax\t%s\n", FormatCurrency(f.TotalTax))
		for _, l := range c.Lines {
			fmt.Fprintf(w, "%s\t-%s\n", l.Description, FormatCurrency(l.Amount))
		}
		fmt.Fprintf(w, "Total credits\t-%s\n", FormatCurrency(f.TotalCredits))
		label := "Amount owed"
		if f.RefundOrOwed == domain.Refund {
			label = "Refund due"
		}
		fmt.Fprintf(w, "%s\t%s\n", label, FormatCurrency(f.Amount))
	})
	if fica.RefundEligible {
		out += fmt.Sprintf("\nFICA withheld in error: %s (claim a refund from the employer or on Form 843)\n",
			FormatCurrency(fica.IncorrectWithheld))
	} else if fica.Exempt {
		out += "\nExempt from FICA.\n"
	}
	return out
}
