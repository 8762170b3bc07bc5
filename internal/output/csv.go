package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/rgehrsitz/nrtax/internal/domain"
)

// CSVFormatter writes one row per reported line: sourcing, treaty, brackets,
// credits and the settlement.
type CSVFormatter struct{}

func (c CSVFormatter) Name() string { return "csv" }

func (c CSVFormatter) Format(r *domain.ComputationResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	rows := [][]string{{"Section", "Item", "Detail", "Amount", "Tax"}}

	for _, l := range r.Sourcing.Lines {
		rows = append(rows,
			[]string{"sourcing", string(l.Category), "us_source", l.USSource.StringFixed(2), ""},
			[]string{"sourcing", string(l.Category), "foreign_source", l.ForeignSource.StringFixed(2), ""},
		)
	}
	for _, e := range r.Treaty.Exemptions {
		rows = append(rows, []string{"treaty", string(e.Type), e.Article, e.Amount.StringFixed(2), ""})
	}
	rows = append(rows, []string{"taxable_income", "federal", "", r.TaxableIncome.TaxableIncome.StringFixed(2), ""})
	rows = append(rows, bracketRows("federal", r.Federal.Brackets)...)
	rows = append(rows, []string{"total", "federal", r.Federal.EffectiveRate.StringFixed(2), "", r.Federal.TotalTax.StringFixed(2)})
	if r.State != nil {
		rows = append(rows, bracketRows("state_"+r.State.State, r.State.Brackets)...)
		rows = append(rows, []string{"total", "state_" + r.State.State, r.State.EffectiveRate.StringFixed(2), "", r.State.TotalTax.StringFixed(2)})
	}
	for _, l := range r.Credits.Lines {
		rows = append(rows, []string{"credit", l.Type, "", l.Amount.StringFixed(2), ""})
	}
	rows = append(rows, []string{"final", string(r.Final.RefundOrOwed), "", r.Final.Amount.StringFixed(2), r.Final.TotalTax.StringFixed(2)})

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bracketRows(section string, lines []domain.BracketLine) [][]string {
	rows := make([][]string, 0, len(lines))
	for i, l := range lines {
		rows = append(rows, []string{
			"bracket",
			section + "_" + strconv.Itoa(i+1),
			l.Rate.String(),
			l.TaxableAmount.StringFixed(2),
			l.Tax.StringFixed(2),
		})
	}
	return rows
}
