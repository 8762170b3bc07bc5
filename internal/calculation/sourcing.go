package calculation

import (
	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

var sourcingAuthority = map[domain.IncomeCategory]string{
	domain.IncomeWages:          "IRC Section 861(a)(3) - Services performed in US",
	domain.IncomeSelfEmployment: "IRC Section 861(a)(3) - Services performed in US",
	domain.IncomeTeaching:       "IRC Section 861(a)(3) - Services performed in US",
	domain.IncomeResearch:       "IRC Section 861(a)(3) - Services performed in US",
	domain.IncomeInterest:       "IRC Section 861(a)(1) - Payor residence",
	domain.IncomeDividends:      "IRC Section 861(a)(2) - Corporation residence",
	domain.IncomeRents:          "IRC Section 861(a)(4) - Property location or use",
	domain.IncomeRoyalties:      "IRC Section 861(a)(4) - Property location or use",
	domain.IncomeScholarship:    "Treas. Reg. 1.863-1(d) - Payor residence",
	domain.IncomeFellowship:     "Treas. Reg. 1.863-1(d) - Payor residence",
	domain.IncomeCapitalGains:   "IRC Section 865(a) - Sale of personal property",
}

const defaultAuthority = "Payor residence"

// SourceIncome splits every category into U.S. and foreign source.
// Compensation follows the work-day ratio; with no work days recorded it is
// treated as entirely U.S. source. Other categories use the U.S.-payor hint
// when one was recorded and are otherwise entirely U.S. source.
// Informational categories and a net capital loss contribute nothing.
func SourceIncome(income domain.IncomeAggregate, work domain.WorkDays) domain.SourcingResult {
	result := domain.SourcingResult{
		Lines:              []domain.SourcingLine{},
		TotalUSSource:      decimal.Zero,
		TotalForeignSource: decimal.Zero,
	}
	for _, c := range income.Categories() {
		amount := income.Amount(c)
		line := domain.SourcingLine{
			Category:      c,
			Amount:        amount,
			USSource:      decimal.Zero,
			ForeignSource: decimal.Zero,
			Rule:          c.SourcingRule(),
			Authority:     authorityFor(c),
		}
		switch {
		case line.Rule == domain.SourceInformational:
			line.Authority = "Reported only"
		case amount.IsNegative():
			line.Authority += "; net loss not offset against other income"
		case line.Rule == domain.SourceByWorkDays:
			line.USSource = splitByWorkDays(amount, work)
			line.ForeignSource = amount.Sub(line.USSource)
		default:
			us := amount
			if hint, ok := income.USSourceHint(c); ok {
				us = decimal.Min(hint, amount)
			}
			line.USSource = us
			line.ForeignSource = amount.Sub(us)
		}
		result.TotalUSSource = result.TotalUSSource.Add(line.USSource)
		result.TotalForeignSource = result.TotalForeignSource.Add(line.ForeignSource)
		result.Lines = append(result.Lines, line)
	}
	result.EffectivelyConnectedIncome = result.TotalUSSource
	return result
}

func splitByWorkDays(amount decimal.Decimal, work domain.WorkDays) decimal.Decimal {
	if work.TotalWorkDays <= 0 {
		return amount
	}
	if work.USWorkDays >= work.TotalWorkDays {
		return amount
	}
	return amount.Mul(decimal.NewFromInt(int64(work.USWorkDays))).Div(decimal.NewFromInt(int64(work.TotalWorkDays)))
}

func authorityFor(c domain.IncomeCategory) string {
	if a, ok := sourcingAuthority[c]; ok {
		return a
	}
	return defaultAuthority
}
