package calculation

import (
	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	CreditFederalWithholding = "federal_withholding"
	CreditStateWithholding   = "state_withholding"
)

// ComputeCredits turns income tax withheld into credits. FICA withheld in
// error is refunded separately and is not a credit.
func ComputeCredits(withholding domain.WithholdingAggregate) domain.Credits {
	credits := domain.Credits{TotalCredits: decimal.Zero, Lines: []domain.CreditLine{}}
	add := func(kind string, amount decimal.Decimal, desc string) {
		if !amount.IsPositive() {
			return
		}
		credits.Lines = append(credits.Lines, domain.CreditLine{Type: kind, Amount: amount, Description: desc})
		credits.TotalCredits = credits.TotalCredits.Add(amount)
	}
	add(CreditFederalWithholding, withholding.Amount(domain.WithholdingFederalIncomeTax), "Federal income tax withheld")
	add(CreditStateWithholding, withholding.Amount(domain.WithholdingStateIncomeTax), "State income tax withheld")
	return credits
}

// Settle nets total tax against credits. A negative liability is a refund.
func Settle(federal domain.TaxBracketResult, state *domain.StateTaxResult, credits domain.Credits) domain.FinalComputation {
	totalTax := federal.TotalTax
	if state != nil {
		totalTax = totalTax.Add(state.TotalTax)
	}
	liability := totalTax.Sub(credits.TotalCredits).Round(2)
	final := domain.FinalComputation{
		TotalTax:     totalTax.Round(2),
		TotalCredits: credits.TotalCredits.Round(2),
		TaxLiability: liability,
		RefundOrOwed: domain.Owed,
		Amount:       liability.Abs(),
	}
	if liability.IsNegative() {
		final.RefundOrOwed = domain.Refund
	}
	return final
}
