package calculation

import (
	"fmt"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/shopspring/decimal"
)

type treatyClaim struct {
	category   domain.TreatyCategory
	visas      []domain.VisaType
	categories []domain.IncomeCategory
}

var treatyClaims = []treatyClaim{
	{
		category:   domain.TreatyStudent,
		visas:      []domain.VisaType{domain.VisaF1, domain.VisaF1OPT, domain.VisaJ1},
		categories: []domain.IncomeCategory{domain.IncomeScholarship, domain.IncomeFellowship},
	},
	{
		category:   domain.TreatyTeacher,
		visas:      []domain.VisaType{domain.VisaJ1, domain.VisaH1B},
		categories: []domain.IncomeCategory{domain.IncomeTeaching, domain.IncomeResearch},
	},
}

func (c treatyClaim) eligible(visa domain.VisaType) bool {
	for _, v := range c.visas {
		if v == visa {
			return true
		}
	}
	return false
}

func (c treatyClaim) income(amounts domain.CategoryAmounts) decimal.Decimal {
	total := decimal.Zero
	for _, cat := range c.categories {
		if amt := amounts.Amount(cat); amt.IsPositive() {
			total = total.Add(amt)
		}
	}
	return total
}

// ApplyTreaty computes the exemptions country's treaty grants against
// U.S.-source income. Visa eligibility and the teacher provision's period
// gate each claim; a capped provision exempts at most its cap. The visa code
// is normalized before eligibility is checked.
func ApplyTreaty(rs *ruleset.Ruleset, country string, rawVisa domain.VisaType, income domain.CategoryAmounts, yearsInStatus int) (domain.TreatyBenefitResult, error) {
	visa, err := domain.ParseVisaType(string(rawVisa))
	if err != nil {
		return domain.TreatyBenefitResult{}, err
	}
	result := domain.TreatyBenefitResult{
		Country:        country,
		Exemptions:     []domain.TreatyExemption{},
		TotalExemption: decimal.Zero,
	}
	if !rs.HasTreaty(country) {
		result.Reasoning = fmt.Sprintf("No tax treaty with %s in the %d ruleset", displayCountry(country), rs.TaxYear())
		return result, nil
	}
	result.HasTreaty = true

	for _, claim := range treatyClaims {
		provision, ok := rs.TreatyProvision(country, claim.category)
		if !ok || !claim.eligible(visa) {
			continue
		}
		var remaining *int
		if claim.category == domain.TreatyTeacher {
			if yearsInStatus > provision.PeriodYears {
				continue
			}
			left := provision.PeriodYears - yearsInStatus
			remaining = &left
		}
		amount := claim.income(income)
		if provision.Cap.Valid {
			amount = decimal.Min(amount, provision.Cap.Decimal)
		}
		if !amount.IsPositive() {
			continue
		}
		result.Exemptions = append(result.Exemptions, domain.TreatyExemption{
			Type:           claim.category,
			Article:        provision.Article,
			Amount:         amount,
			Description:    provision.Description,
			YearsRemaining: remaining,
		})
		result.TotalExemption = result.TotalExemption.Add(amount)
	}

	if len(result.Exemptions) == 0 {
		result.Reasoning = fmt.Sprintf("Treaty with %s exists but no provision applies to %s income of this filer", country, visa)
		return result, nil
	}
	result.Reasoning = fmt.Sprintf("Applied %d treaty exemption(s) under the %s treaty totaling $%s",
		len(result.Exemptions), country, result.TotalExemption.StringFixed(2))
	return result, nil
}

func displayCountry(code string) string {
	if code == "" {
		return "an unspecified country"
	}
	return code
}
