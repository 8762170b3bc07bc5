package calculation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
)

// Engine runs the full determination pipeline for one filer. An Engine holds
// no per-computation state and may be shared between goroutines.
type Engine struct {
	logger Logger
}

// NewEngine creates an engine that logs nowhere.
func NewEngine() *Engine {
	return &Engine{logger: NopLogger{}}
}

// SetLogger sets the engine's logger; nil restores the no-op logger.
func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		e.logger = NopLogger{}
		return
	}
	e.logger = l
}

// ComputeCompleteTaxReturn is shorthand for NewEngine().ComputeCompleteTaxReturn.
func ComputeCompleteTaxReturn(ctx context.Context, rs *ruleset.Ruleset, facts domain.FilerFacts, income domain.IncomeAggregate, withholding domain.WithholdingAggregate, days domain.DayCounts) (*domain.ComputationResult, error) {
	return NewEngine().ComputeCompleteTaxReturn(ctx, rs, facts, income, withholding, days)
}

// ComputeCompleteTaxReturn determines residency, sources income, applies the
// filer's treaty, computes federal and state tax and settles the result
// against withholding. The result depends only on its arguments.
func (e *Engine) ComputeCompleteTaxReturn(ctx context.Context, rs *ruleset.Ruleset, facts domain.FilerFacts, income domain.IncomeAggregate, withholding domain.WithholdingAggregate, days domain.DayCounts) (*domain.ComputationResult, error) {
	if rs == nil {
		return nil, fmt.Errorf("failed to compute tax return: %w", domain.ErrInvalidRuleset)
	}
	if err := facts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filer facts: %w", err)
	}
	if err := days.Validate(); err != nil {
		return nil, fmt.Errorf("invalid day counts: %w", err)
	}
	if facts.TaxYear != rs.TaxYear() {
		return nil, domain.NewInputError("tax_year", strconv.Itoa(facts.TaxYear),
			fmt.Sprintf("does not match ruleset %s for tax year %d", rs.VersionID(), rs.TaxYear()))
	}

	id, err := ComputationID(rs.VersionID(), facts, income, withholding, days)
	if err != nil {
		return nil, err
	}
	e.logger.Debugf("computation %s: tax year %d, ruleset %s, visa %s, country %s", id, facts.TaxYear, rs.VersionID(), facts.VisaType, facts.CountryCode)

	result := &domain.ComputationResult{
		ComputationID:  id,
		TaxYear:        facts.TaxYear,
		RulesetVersion: rs.VersionID(),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if result.Residency, err = DetermineResidencyForFiler(rs, facts, days); err != nil {
		return nil, err
	}
	e.logger.Debugf("computation %s: residency %s via %s", id, result.Residency.Status, result.Residency.Method)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Sourcing = SourceIncome(income, facts.WorkDays)
	e.logger.Debugf("computation %s: U.S. source income %s across %d categories", id,
		result.Sourcing.TotalUSSource.StringFixed(2), len(result.Sourcing.Lines))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if result.Treaty, err = ApplyTreaty(rs, facts.CountryCode, facts.VisaType, result.Sourcing.USSourceByCategory(), facts.EffectiveYearsInStatus()); err != nil {
		return nil, err
	}
	e.logger.Debugf("computation %s: treaty exemptions %s", id, result.Treaty.TotalExemption.StringFixed(2))

	taxable := result.Sourcing.EffectivelyConnectedIncome.Sub(result.Treaty.TotalExemption)
	if taxable.IsNegative() {
		e.logger.Warnf("computation %s: treaty exemptions exceed U.S. source income; taxable income floored at zero", id)
	}
	result.TaxableIncome = domain.TaxableIncomeCalculation{
		USSourceIncome:   result.Sourcing.EffectivelyConnectedIncome.Round(2),
		TreatyExemptions: result.Treaty.TotalExemption.Round(2),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Federal = FederalTax(rs, taxable)
	result.TaxableIncome.TaxableIncome = result.Federal.TaxableIncome
	if facts.StateCode != "" {
		state := StateTax(rs, facts.StateCode, taxable)
		if !state.HasStateTable {
			e.logger.Warnf("computation %s: no state table for %s; state tax is zero", id, facts.StateCode)
		}
		result.State = &state
	}

	result.Credits = ComputeCredits(withholding)
	result.Final = Settle(result.Federal, result.State, result.Credits)
	result.FICA = domain.FICAStatus{
		Exempt:            withholding.FICAExempt(),
		IncorrectWithheld: withholding.IncorrectFICAWithheld(),
		RefundEligible:    withholding.FICARefundEligible(),
	}

	e.logger.Infof("computation %s: %s, taxable income %s, total tax %s, %s %s", id,
		result.Residency.Status, result.Federal.TaxableIncome.StringFixed(2), result.Final.TotalTax.StringFixed(2),
		result.Final.RefundOrOwed, result.Final.Amount.StringFixed(2))
	return result, nil
}
