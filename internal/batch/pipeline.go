// Package batch turns parsed return inputs into computation results, one at a
// time or many concurrently.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/rgehrsitz/nrtax/internal/aggregate"
	"github.com/rgehrsitz/nrtax/internal/calculation"
	"github.com/rgehrsitz/nrtax/internal/config"
	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
)

// Report is everything derived from one return input.
type Report struct {
	Name        string
	Income      domain.IncomeAggregate
	Withholding domain.WithholdingAggregate
	Findings    []aggregate.Finding
	Result      *domain.ComputationResult
}

// Pipeline aggregates a return's documents and runs the engine over them.
type Pipeline struct {
	registry   *ruleset.Registry
	override   *ruleset.Ruleset
	engine     *calculation.Engine
	aggregator *aggregate.Aggregator
	logger     calculation.Logger
	metrics    *Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sends engine and aggregator logs to l.
func WithLogger(l calculation.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRuleset uses rs for every return instead of looking up the tax year.
func WithRuleset(rs *ruleset.Ruleset) Option {
	return func(p *Pipeline) { p.override = rs }
}

// WithMetrics records each computation in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a pipeline resolving rulesets from registry.
func NewPipeline(registry *ruleset.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:   registry,
		engine:     calculation.NewEngine(),
		aggregator: aggregate.NewAggregator(),
		logger:     calculation.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.engine.SetLogger(p.logger)
	p.aggregator.SetLogger(p.logger)
	return p
}

// RulesetFor returns the ruleset a return for taxYear is computed under.
func (p *Pipeline) RulesetFor(taxYear int) (*ruleset.Ruleset, error) {
	if p.override != nil {
		if p.override.TaxYear() != taxYear {
			return nil, fmt.Errorf("ruleset %s covers tax year %d, not %d: %w",
				p.override.VersionID(), p.override.TaxYear(), taxYear, domain.ErrRulesetNotFound)
		}
		return p.override, nil
	}
	if p.registry == nil {
		return nil, fmt.Errorf("no ruleset registry configured: %w", domain.ErrRulesetNotFound)
	}
	return p.registry.ForYear(taxYear)
}

// Aggregate derives income, withholding and document findings without
// computing tax.
func (p *Pipeline) Aggregate(in *config.ReturnInput) (*Report, error) {
	rs, err := p.RulesetFor(in.Facts.TaxYear)
	if err != nil {
		return nil, err
	}
	return p.aggregate(rs, in)
}

func (p *Pipeline) aggregate(rs *ruleset.Ruleset, in *config.ReturnInput) (*Report, error) {
	income, err := p.aggregator.AggregateIncome(in.Documents)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate income: %w", err)
	}
	if len(in.IncomeOverrides) > 0 || len(in.USSourceHints) > 0 {
		income, err = income.With(in.IncomeOverrides, in.USSourceHints)
		if err != nil {
			return nil, fmt.Errorf("failed to apply income overrides: %w", err)
		}
	}
	withholding, err := p.aggregator.AggregateWithholding(in.Documents, in.Facts.VisaType, in.Facts.EntryDate, in.Facts.TaxYear, rs.FICAExemption())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate withholding: %w", err)
	}
	findings := aggregate.ValidateDocuments(in.Documents, rs.FICA())
	for _, f := range findings {
		p.logger.Warnf("%s: %s %s: %s", in.Name, f.DocumentID, f.Rule, f.Message)
	}
	return &Report{
		Name:        in.Name,
		Income:      income,
		Withholding: withholding,
		Findings:    findings,
	}, nil
}

// Compute aggregates and computes one return.
func (p *Pipeline) Compute(ctx context.Context, in *config.ReturnInput) (*Report, error) {
	start := time.Now()
	report, err := p.compute(ctx, in)
	residency := ""
	if report != nil && report.Result != nil {
		residency = string(report.Result.Residency.Status)
	}
	p.metrics.ObserveComputation(outcomeOf(err), residency, time.Since(start))
	if err == nil {
		p.metrics.ObserveSettlement(report.Result.Final)
	}
	return report, err
}

func (p *Pipeline) compute(ctx context.Context, in *config.ReturnInput) (*Report, error) {
	rs, err := p.RulesetFor(in.Facts.TaxYear)
	if err != nil {
		return nil, err
	}
	report, err := p.aggregate(rs, in)
	if err != nil {
		return nil, err
	}
	result, err := p.engine.ComputeCompleteTaxReturn(ctx, rs, in.Facts, report.Income, report.Withholding, in.Days)
	if err != nil {
		return nil, err
	}
	report.Result = result
	return report, nil
}
