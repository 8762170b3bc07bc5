package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rgehrsitz/nrtax/internal/domain"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	refundStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	owedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

// ConsoleFormatter renders every section of a result. Styling degrades to
// plain text when the output is not a terminal.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(r *domain.ComputationResult) ([]byte, error) {
	var buf bytes.Buffer
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(&buf, rule)
	fmt.Fprintln(&buf, headingStyle.Render(fmt.Sprintf("NON-RESIDENT TAX COMPUTATION %d", r.TaxYear)))
	fmt.Fprintf(&buf, "Ruleset %s  Computation %s\n", r.RulesetVersion, r.ComputationID)
	fmt.Fprintln(&buf, rule)
	for _, s := range Sections(r) {
		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, headingStyle.Render(strings.ToUpper(s.Title)))
		fmt.Fprintln(&buf, strings.Repeat("-", len(s.Title)))
		buf.WriteString(s.Body)
	}
	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, rule)
	fmt.Fprintln(&buf, settlementLine(r.Final))
	return buf.Bytes(), nil
}

// ConsoleLiteFormatter renders a short summary.
type ConsoleLiteFormatter struct{}

func (c ConsoleLiteFormatter) Name() string { return "console-lite" }

func (c ConsoleLiteFormatter) Format(r *domain.ComputationResult) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Tax year:        %d (%s)\n", r.TaxYear, r.RulesetVersion)
	fmt.Fprintf(&buf, "Residency:       %s\n", statusLabel(r.Residency.Status))
	fmt.Fprintf(&buf, "Taxable income:  %s\n", FormatCurrency(r.TaxableIncome.TaxableIncome))
	fmt.Fprintf(&buf, "Federal tax:     %s\n", FormatCurrency(r.Federal.TotalTax))
	if r.State != nil {
		fmt.Fprintf(&buf, "State tax (%s):  %s\n", r.State.State, FormatCurrency(r.State.TotalTax))
	}
	fmt.Fprintf(&buf, "Credits:         %s\n", FormatCurrency(r.Final.TotalCredits))
	fmt.Fprintln(&buf, settlementLine(r.Final))
	return buf.Bytes(), nil
}

func settlementLine(f domain.FinalComputation) string {
	if f.RefundOrOwed == domain.Refund {
		return refundStyle.Render("REFUND DUE: " + FormatCurrency(f.Amount))
	}
	return owedStyle.Render("AMOUNT OWED: " + FormatCurrency(f.Amount))
}
