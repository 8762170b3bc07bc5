package calculation

import (
	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BracketTax walks progressive brackets over taxable income. Negative income
// is taxed as zero. Line amounts and the total are rounded to cents only after
// the sum is formed.
func BracketTax(taxable decimal.Decimal, brackets []ruleset.TaxBracket) domain.TaxBracketResult {
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	result := domain.TaxBracketResult{
		TaxableIncome: taxable.Round(2),
		Brackets:      []domain.BracketLine{},
		TotalTax:      decimal.Zero,
		EffectiveRate: decimal.Zero,
	}

	total := decimal.Zero
	for _, b := range brackets {
		if taxable.LessThanOrEqual(b.Min) {
			break
		}
		top := taxable
		if !b.Unbounded() {
			top = decimal.Min(taxable, b.Max.Decimal)
		}
		inBracket := top.Sub(b.Min)
		tax := inBracket.Mul(b.Rate)
		total = total.Add(tax)
		result.Brackets = append(result.Brackets, domain.BracketLine{
			Min:           b.Min,
			Max:           b.Max,
			Rate:          b.Rate,
			TaxableAmount: inBracket.Round(2),
			Tax:           tax.Round(2),
		})
	}

	result.TotalTax = total.Round(2)
	if taxable.IsPositive() {
		result.EffectiveRate = total.Div(taxable).Mul(hundred).Round(2)
	}
	return result
}

// FederalTax applies the ruleset's federal brackets. No standard deduction is
// taken; non-resident filers are generally not entitled to one.
func FederalTax(rs *ruleset.Ruleset, taxable decimal.Decimal) domain.TaxBracketResult {
	return BracketTax(taxable, rs.FederalBrackets())
}

// StateTax applies a state's deduction and brackets. A state the ruleset does
// not know, or one with no income tax, yields zero tax.
func StateTax(rs *ruleset.Ruleset, state string, taxable decimal.Decimal) domain.StateTaxResult {
	result := domain.StateTaxResult{
		State:              state,
		StandardDeduction:  decimal.Zero,
		StateTaxableIncome: decimal.Zero,
		TaxBracketResult: domain.TaxBracketResult{
			TaxableIncome: decimal.Max(taxable, decimal.Zero).Round(2),
			Brackets:      []domain.BracketLine{},
			TotalTax:      decimal.Zero,
			EffectiveRate: decimal.Zero,
		},
	}
	table, ok := rs.State(state)
	if !ok {
		return result
	}
	result.HasStateTable = true
	result.StandardDeduction = table.StandardDeduction
	if !table.HasIncomeTax() {
		return result
	}
	result.HasIncomeTax = true

	stateTaxable := decimal.Max(taxable.Sub(table.StandardDeduction), decimal.Zero)
	result.StateTaxableIncome = stateTaxable.Round(2)
	bracketed := BracketTax(stateTaxable, table.Brackets)
	result.Brackets = bracketed.Brackets
	result.TotalTax = bracketed.TotalTax
	if taxable.IsPositive() {
		result.EffectiveRate = bracketed.TotalTax.Div(taxable).Mul(hundred).Round(2)
	}
	return result
}
