package calculation

import (
	"fmt"
	"time"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/shopspring/decimal"
)

var daysPerYear = decimal.RequireFromString("365.25")

// YearsSinceEntry is the whole number of 365.25-day years from entry to
// December 31 of taxYear. Entries after that date yield zero.
func YearsSinceEntry(entryDate time.Time, taxYear int) int {
	entry := time.Date(entryDate.Year(), entryDate.Month(), entryDate.Day(), 0, 0, 0, 0, time.UTC)
	days := int64(domain.YearEnd(taxYear).Sub(entry) / (24 * time.Hour))
	if days <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(days).Div(daysPerYear).IntPart())
}

// DetermineResidency classifies a filer for rs.TaxYear(). An exempt individual
// is non-resident whatever the day counts; everyone else takes the weighted
// substantial presence test. The visa code is normalized first, so "F1" and
// "F-1" classify alike; a malformed code is an ErrInvalidInput error.
func DetermineResidency(rs *ruleset.Ruleset, visa domain.VisaType, entryDate time.Time, days domain.DayCounts) (domain.ResidencyDetermination, error) {
	return determineResidency(rs, visa, entryDate, days, false)
}

// DetermineResidencyForFiler is DetermineResidency honoring the filer's
// substantial presence override.
func DetermineResidencyForFiler(rs *ruleset.Ruleset, facts domain.FilerFacts, days domain.DayCounts) (domain.ResidencyDetermination, error) {
	return determineResidency(rs, facts.VisaType, facts.EntryDate, days, facts.SubstantialPresenceOverride)
}

func determineResidency(rs *ruleset.Ruleset, rawVisa domain.VisaType, entryDate time.Time, days domain.DayCounts, override bool) (domain.ResidencyDetermination, error) {
	visa, err := domain.ParseVisaType(string(rawVisa))
	if err != nil {
		return domain.ResidencyDetermination{}, err
	}
	taxYear := rs.TaxYear()
	if limit, ok := rs.ExemptIndividualLimit(visa); ok && !override {
		years := YearsSinceEntry(entryDate, taxYear)
		if years < limit {
			return domain.ResidencyDetermination{
				Status:           domain.NonResident,
				Method:           domain.MethodExemptIndividual,
				WeightedDayTotal: decimal.Zero,
				ExemptYearsUsed:  years,
				Reasoning: fmt.Sprintf("%s visa holders are exempt from the substantial presence test for %d calendar years (%d used)",
					visa, limit, years),
			}, nil
		}
	}
	return substantialPresence(rs.SubstantialPresence(), taxYear, days), nil
}

// substantialPresence applies current + prior/p + twoAgo/q >= threshold. The
// comparison is done on integers scaled by p*q so no fraction is rounded.
func substantialPresence(rules ruleset.SubstantialPresenceRules, taxYear int, days domain.DayCounts) domain.ResidencyDetermination {
	current := days.For(taxYear)
	prior := days.For(taxYear - 1)
	twoAgo := days.For(taxYear - 2)
	p, q := int64(rules.PriorYearDivisor), int64(rules.TwoYearsAgoDivisor)

	scaled := int64(current)*p*q + int64(prior)*q + int64(twoAgo)*p
	meetsTotal := scaled >= int64(rules.Threshold)*p*q
	meetsMinimum := current >= rules.MinimumCurrentYearDays

	total := decimal.NewFromInt(scaled).Div(decimal.NewFromInt(p * q))
	breakdown := &domain.PresenceBreakdown{
		CurrentYear:             current,
		PriorYear:               prior,
		TwoYearsAgo:             twoAgo,
		WeightedPriorYear:       decimal.NewFromInt(int64(prior)).Div(decimal.NewFromInt(p)).Round(2),
		WeightedTwoYearsAgo:     decimal.NewFromInt(int64(twoAgo)).Div(decimal.NewFromInt(q)).Round(2),
		Threshold:               rules.Threshold,
		MinimumCurrentYearDays:  rules.MinimumCurrentYearDays,
		MeetsCurrentYearMinimum: meetsMinimum,
	}
	result := domain.ResidencyDetermination{
		Status:           domain.NonResident,
		Method:           domain.MethodSubstantialPresence,
		WeightedDayTotal: total.Round(2),
		Breakdown:        breakdown,
	}
	switch {
	case meetsTotal && meetsMinimum:
		result.Status = domain.Resident
		result.Reasoning = fmt.Sprintf("Meets substantial presence test (%s >= %d weighted days)", result.WeightedDayTotal.StringFixed(2), rules.Threshold)
	case meetsTotal:
		result.Reasoning = fmt.Sprintf("Weighted total %s reaches %d, but the %d-day current-year requirement is not met "+
			"(%d days in the U.S. in %d); the weighted total alone would make the filer resident",
			result.WeightedDayTotal.StringFixed(2), rules.Threshold, rules.MinimumCurrentYearDays, current, taxYear)
	default:
		result.Reasoning = fmt.Sprintf("Does not meet substantial presence test (%s < %d weighted days)", result.WeightedDayTotal.StringFixed(2), rules.Threshold)
	}
	return result
}
