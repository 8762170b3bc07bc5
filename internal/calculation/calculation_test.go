package calculation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func rules2024(t *testing.T) *ruleset.Ruleset {
	t.Helper()
	reg, err := ruleset.Default()
	require.NoError(t, err)
	rs, err := reg.ForYear(2024)
	require.NoError(t, err)
	return rs
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestYearsSinceEntry(t *testing.T) {
	assert.Equal(t, 1, YearsSinceEntry(date(2023, 1, 1), 2024))
	assert.Equal(t, 0, YearsSinceEntry(date(2024, 6, 1), 2024))
	assert.Equal(t, 6, YearsSinceEntry(date(2018, 1, 1), 2024))
	assert.Equal(t, 0, YearsSinceEntry(date(2025, 2, 1), 2024))
}

func TestDetermineResidency(t *testing.T) {
	rs := rules2024(t)
	tests := []struct {
		name       string
		visa       domain.VisaType
		entry      time.Time
		days       domain.DayCounts
		wantStatus domain.ResidencyStatus
		wantMethod domain.DeterminationMethod
		wantTotal  string
	}{
		{
			name:  "exempt student ignores days",
			visa:  domain.VisaF1,
			entry: date(2023, 1, 1),
			days:  domain.DayCounts{2024: 330, 2023: 340},
			wantStatus: domain.NonResident, wantMethod: domain.MethodExemptIndividual, wantTotal: "0",
		},
		{
			name:  "non-exempt visa over threshold",
			visa:  domain.VisaH1B,
			entry: date(2024, 1, 10),
			days:  domain.DayCounts{2024: 200},
			wantStatus: domain.Resident, wantMethod: domain.MethodSubstantialPresence, wantTotal: "200",
		},
		{
			name:  "weighted total just short",
			visa:  domain.VisaH1B,
			entry: date(2022, 1, 1),
			days:  domain.DayCounts{2024: 120, 2023: 120, 2022: 120},
			wantStatus: domain.NonResident, wantMethod: domain.MethodSubstantialPresence, wantTotal: "180",
		},
		{
			name:  "weighted total exactly at threshold",
			visa:  domain.VisaH1B,
			entry: date(2022, 1, 1),
			days:  domain.DayCounts{2024: 122, 2023: 120, 2022: 126},
			wantStatus: domain.Resident, wantMethod: domain.MethodSubstantialPresence, wantTotal: "183",
		},
		{
			name:  "exempt years exhausted",
			visa:  domain.VisaF1,
			entry: date(2018, 1, 1),
			days:  domain.DayCounts{2024: 250},
			wantStatus: domain.Resident, wantMethod: domain.MethodSubstantialPresence, wantTotal: "250",
		},
		{
			name:  "J-1 after two years",
			visa:  domain.VisaJ1,
			entry: date(2022, 6, 1),
			days:  domain.DayCounts{2024: 190},
			wantStatus: domain.Resident, wantMethod: domain.MethodSubstantialPresence, wantTotal: "190",
		},
		{
			name:  "unhyphenated F1 is still exempt",
			visa:  domain.VisaType("F1"),
			entry: date(2023, 1, 1),
			days:  domain.DayCounts{2024: 300},
			wantStatus: domain.NonResident, wantMethod: domain.MethodExemptIndividual, wantTotal: "0",
		},
		{
			name:  "lower-case j1 is still exempt",
			visa:  domain.VisaType(" j1 "),
			entry: date(2024, 1, 5),
			days:  domain.DayCounts{2024: 340},
			wantStatus: domain.NonResident, wantMethod: domain.MethodExemptIndividual, wantTotal: "0",
		},
		{
			name:  "current year below minimum",
			visa:  domain.VisaH1B,
			entry: date(2022, 1, 1),
			days:  domain.DayCounts{2024: 30, 2023: 365, 2022: 365},
			wantStatus: domain.NonResident, wantMethod: domain.MethodSubstantialPresence, wantTotal: "212.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetermineResidency(rs, tt.visa, tt.entry, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantMethod, got.Method)
			assertDecimal(t, tt.wantTotal, got.WeightedDayTotal)
			assert.NotEmpty(t, got.Reasoning)
			if tt.wantMethod == domain.MethodSubstantialPresence {
				require.NotNil(t, got.Breakdown)
				assert.Equal(t, 183, got.Breakdown.Threshold)
			} else {
				assert.Nil(t, got.Breakdown)
			}
		})
	}
}

func TestDetermineResidencyRejectsMalformedVisa(t *testing.T) {
	rs := rules2024(t)
	for _, visa := range []domain.VisaType{"", "F 1 !", "TOOLONGCODE"} {
		_, err := DetermineResidency(rs, visa, date(2023, 1, 1), domain.DayCounts{2024: 300})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "visa %q", visa)
	}
}

func TestDetermineResidencyCurrentYearMinimum(t *testing.T) {
	got, err := DetermineResidency(rules2024(t), domain.VisaH1B, date(2022, 1, 1), domain.DayCounts{2024: 30, 2023: 366, 2022: 366})
	require.NoError(t, err)
	assert.Equal(t, domain.NonResident, got.Status)
	assertDecimal(t, "213", got.WeightedDayTotal)
	require.NotNil(t, got.Breakdown)
	assert.False(t, got.Breakdown.MeetsCurrentYearMinimum)
	assert.Equal(t, 31, got.Breakdown.MinimumCurrentYearDays)
	assert.Contains(t, got.Reasoning, "31-day current-year requirement is not met")
	assert.Contains(t, got.Reasoning, "weighted total alone would make the filer resident")
}

func TestDetermineResidencyForFilerOverride(t *testing.T) {
	rs := rules2024(t)
	facts := domain.FilerFacts{VisaType: domain.VisaF1, EntryDate: date(2023, 1, 1), TaxYear: 2024}
	days := domain.DayCounts{2024: 300}

	got, err := DetermineResidencyForFiler(rs, facts, days)
	require.NoError(t, err)
	assert.Equal(t, domain.NonResident, got.Status)
	facts.SubstantialPresenceOverride = true
	got, err = DetermineResidencyForFiler(rs, facts, days)
	require.NoError(t, err)
	assert.Equal(t, domain.Resident, got.Status)
	assert.Equal(t, domain.MethodSubstantialPresence, got.Method)
}

func TestSourceIncome(t *testing.T) {
	income, err := domain.NewIncomeAggregate(map[domain.IncomeCategory]decimal.Decimal{
		domain.IncomeWages:              dec("60000"),
		domain.IncomeInterest:           dec("1000"),
		domain.IncomeCapitalGains:       dec("-500"),
		domain.IncomeQualifiedDividends: dec("200"),
		domain.IncomeDividends:          dec("300"),
	}, map[domain.IncomeCategory]decimal.Decimal{
		domain.IncomeInterest: dec("400"),
	})
	require.NoError(t, err)

	got := SourceIncome(income, domain.WorkDays{USWorkDays: 150, TotalWorkDays: 200})
	byCategory := map[domain.IncomeCategory]domain.SourcingLine{}
	for _, l := range got.Lines {
		byCategory[l.Category] = l
	}

	assertDecimal(t, "45000", byCategory[domain.IncomeWages].USSource)
	assertDecimal(t, "15000", byCategory[domain.IncomeWages].ForeignSource)
	assert.Equal(t, "IRC Section 861(a)(3) - Services performed in US", byCategory[domain.IncomeWages].Authority)
	assertDecimal(t, "400", byCategory[domain.IncomeInterest].USSource)
	assertDecimal(t, "600", byCategory[domain.IncomeInterest].ForeignSource)
	assertDecimal(t, "0", byCategory[domain.IncomeCapitalGains].USSource)
	assertDecimal(t, "0", byCategory[domain.IncomeQualifiedDividends].USSource)
	assert.Equal(t, domain.SourceInformational, byCategory[domain.IncomeQualifiedDividends].Rule)

	assertDecimal(t, "45700", got.TotalUSSource)
	assertDecimal(t, "15600", got.TotalForeignSource)
	assertDecimal(t, "45700", got.EffectivelyConnectedIncome)

	us := got.USSourceByCategory()
	_, hasQualified := us[domain.IncomeQualifiedDividends]
	assert.False(t, hasQualified)
}

func TestSourceIncomeWithoutWorkDays(t *testing.T) {
	income, err := domain.NewIncomeAggregate(map[domain.IncomeCategory]decimal.Decimal{
		domain.IncomeWages: dec("1000"),
	}, nil)
	require.NoError(t, err)

	got := SourceIncome(income, domain.WorkDays{})
	assertDecimal(t, "1000", got.EffectivelyConnectedIncome)

	empty := SourceIncome(domain.EmptyIncome(), domain.WorkDays{})
	assert.Empty(t, empty.Lines)
	assertDecimal(t, "0", empty.EffectivelyConnectedIncome)
}

func TestApplyTreaty(t *testing.T) {
	rs := rules2024(t)
	tests := []struct {
		name          string
		country       string
		visa          domain.VisaType
		income        domain.CategoryAmountMap
		yearsInStatus int
		wantTreaty    bool
		wantTotal     string
		wantTypes     []domain.TreatyCategory
	}{
		{
			name:    "India student capped",
			country: "IN", visa: domain.VisaF1,
			income:     domain.CategoryAmountMap{domain.IncomeScholarship: dec("8000")},
			wantTreaty: true, wantTotal: "5000",
			wantTypes: []domain.TreatyCategory{domain.TreatyStudent},
		},
		{
			name:    "China student uncapped",
			country: "CN", visa: domain.VisaF1,
			income:     domain.CategoryAmountMap{domain.IncomeScholarship: dec("6000"), domain.IncomeFellowship: dec("2000")},
			wantTreaty: true, wantTotal: "8000",
			wantTypes: []domain.TreatyCategory{domain.TreatyStudent},
		},
		{
			name:    "teacher within period",
			country: "IN", visa: domain.VisaJ1,
			income:        domain.CategoryAmountMap{domain.IncomeTeaching: dec("30000"), domain.IncomeScholarship: dec("1000")},
			yearsInStatus: 2,
			wantTreaty:    true, wantTotal: "31000",
			wantTypes: []domain.TreatyCategory{domain.TreatyStudent, domain.TreatyTeacher},
		},
		{
			name:    "teacher past period",
			country: "IN", visa: domain.VisaH1B,
			income:        domain.CategoryAmountMap{domain.IncomeTeaching: dec("30000")},
			yearsInStatus: 3,
			wantTreaty:    true, wantTotal: "0",
		},
		{
			name:    "visa not eligible",
			country: "IN", visa: domain.VisaH1B,
			income:     domain.CategoryAmountMap{domain.IncomeScholarship: dec("8000")},
			wantTreaty: true, wantTotal: "0",
		},
		{
			name:    "unhyphenated F1 student",
			country: "IN", visa: domain.VisaType("F1"),
			income:     domain.CategoryAmountMap{domain.IncomeScholarship: dec("8000")},
			wantTreaty: true, wantTotal: "5000",
			wantTypes: []domain.TreatyCategory{domain.TreatyStudent},
		},
		{
			name:    "unhyphenated J1 teacher",
			country: "CN", visa: domain.VisaType("J1"),
			income:        domain.CategoryAmountMap{domain.IncomeResearch: dec("40000")},
			yearsInStatus: 1,
			wantTreaty:    true, wantTotal: "40000",
			wantTypes: []domain.TreatyCategory{domain.TreatyTeacher},
		},
		{
			name:    "no treaty",
			country: "BR", visa: domain.VisaF1,
			income:    domain.CategoryAmountMap{domain.IncomeScholarship: dec("8000")},
			wantTotal: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyTreaty(rs, tt.country, tt.visa, tt.income, tt.yearsInStatus)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTreaty, got.HasTreaty)
			assertDecimal(t, tt.wantTotal, got.TotalExemption)
			var types []domain.TreatyCategory
			for _, e := range got.Exemptions {
				types = append(types, e.Type)
				assert.True(t, e.Amount.IsPositive())
			}
			assert.Equal(t, tt.wantTypes, types)
			assert.NotEmpty(t, got.Reasoning)
		})
	}
}

func TestApplyTreatyRejectsMalformedVisa(t *testing.T) {
	_, err := ApplyTreaty(rules2024(t), "IN", domain.VisaType("F/1"), domain.CategoryAmountMap{domain.IncomeScholarship: dec("8000")}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplyTreatyYearsRemaining(t *testing.T) {
	got, err := ApplyTreaty(rules2024(t), "CN", domain.VisaJ1, domain.CategoryAmountMap{domain.IncomeResearch: dec("40000")}, 1)
	require.NoError(t, err)
	require.Len(t, got.Exemptions, 1)
	require.NotNil(t, got.Exemptions[0].YearsRemaining)
	assert.Equal(t, 2, *got.Exemptions[0].YearsRemaining)
	assert.Equal(t, "Article 19", got.Exemptions[0].Article)
}

func TestFederalTax(t *testing.T) {
	rs := rules2024(t)
	tests := []struct {
		taxable   string
		wantTax   string
		wantRate  string
		wantLines int
	}{
		{"50000", "6307.50", "12.62", 3},
		{"11000", "1100", "10", 1},
		{"0", "0", "0", 0},
		{"-250", "0", "0", 0},
		{"1000000", "330332", "33.03", 7},
	}
	for _, tt := range tests {
		t.Run(tt.taxable, func(t *testing.T) {
			got := FederalTax(rs, dec(tt.taxable))
			assertDecimal(t, tt.wantTax, got.TotalTax)
			assertDecimal(t, tt.wantRate, got.EffectiveRate)
			assert.Len(t, got.Brackets, tt.wantLines)
		})
	}
}

func TestFederalTaxMonotonic(t *testing.T) {
	rs := rules2024(t)
	prev := decimal.Zero
	for income := int64(0); income <= 700000; income += 2500 {
		tax := FederalTax(rs, decimal.NewFromInt(income)).TotalTax
		assert.False(t, tax.LessThan(prev), "tax fell at %d", income)
		prev = tax
	}
}

func TestBracketTaxTopBracketUnbounded(t *testing.T) {
	brackets := []ruleset.TaxBracket{
		{Min: decimal.Zero, Max: decimal.NullDecimal{Decimal: dec("100"), Valid: true}, Rate: dec("0.1")},
		{Min: dec("100"), Rate: dec("0.5")},
	}
	got := BracketTax(dec("300"), brackets)
	assertDecimal(t, "110", got.TotalTax)
	require.Len(t, got.Brackets, 2)
	assert.False(t, got.Brackets[1].Max.Valid)
	assertDecimal(t, "200", got.Brackets[1].TaxableAmount)
}

func TestStateTax(t *testing.T) {
	rs := rules2024(t)

	tx := StateTax(rs, "TX", dec("50000"))
	assert.True(t, tx.HasStateTable)
	assert.False(t, tx.HasIncomeTax)
	assertDecimal(t, "0", tx.TotalTax)

	unknown := StateTax(rs, "ZZ", dec("50000"))
	assert.False(t, unknown.HasStateTable)
	assertDecimal(t, "0", unknown.TotalTax)

	ca := StateTax(rs, "CA", dec("33500"))
	assert.True(t, ca.HasIncomeTax)
	assertDecimal(t, "5202", ca.StandardDeduction)
	assertDecimal(t, "28298", ca.StateTaxableIncome)
	assertDecimal(t, "552.09", ca.TotalTax)
	assertDecimal(t, "1.65", ca.EffectiveRate)

	small := StateTax(rs, "CA", dec("3000"))
	assertDecimal(t, "0", small.StateTaxableIncome)
	assertDecimal(t, "0", small.TotalTax)
}

func TestSettle(t *testing.T) {
	withholding, err := domain.NewWithholdingAggregate(map[domain.WithholdingCategory]decimal.Decimal{
		domain.WithholdingFederalIncomeTax: dec("4000"),
		domain.WithholdingStateIncomeTax:   dec("600"),
		domain.WithholdingSocialSecurity:   dec("1860"),
	}, false, decimal.Zero)
	require.NoError(t, err)

	credits := ComputeCredits(withholding)
	require.Len(t, credits.Lines, 2)
	assert.Equal(t, CreditFederalWithholding, credits.Lines[0].Type)
	assertDecimal(t, "4600", credits.TotalCredits)

	federal := domain.TaxBracketResult{TotalTax: dec("3800")}
	state := &domain.StateTaxResult{TaxBracketResult: domain.TaxBracketResult{TotalTax: dec("552.09")}}

	final := Settle(federal, state, credits)
	assertDecimal(t, "4352.09", final.TotalTax)
	assertDecimal(t, "-247.91", final.TaxLiability)
	assert.Equal(t, domain.Refund, final.RefundOrOwed)
	assertDecimal(t, "247.91", final.Amount)

	owed := Settle(domain.TaxBracketResult{TotalTax: dec("5000")}, nil, ComputeCredits(domain.EmptyWithholding()))
	assert.Equal(t, domain.Owed, owed.RefundOrOwed)
	assertDecimal(t, "5000", owed.Amount)

	even := Settle(domain.TaxBracketResult{TotalTax: dec("4600")}, nil, credits)
	assert.Equal(t, domain.Owed, even.RefundOrOwed)
	assertDecimal(t, "0", even.Amount)
}

type scenario struct {
	facts       domain.FilerFacts
	income      domain.IncomeAggregate
	withholding domain.WithholdingAggregate
	days        domain.DayCounts
}

func indianStudent(t *testing.T) scenario {
	t.Helper()
	income, err := domain.NewIncomeAggregate(map[domain.IncomeCategory]decimal.Decimal{
		domain.IncomeWages:       dec("30000"),
		domain.IncomeScholarship: dec("8000"),
		domain.IncomeInterest:    dec("500"),
	}, nil)
	require.NoError(t, err)
	withholding, err := domain.NewWithholdingAggregate(map[domain.WithholdingCategory]decimal.Decimal{
		domain.WithholdingFederalIncomeTax: dec("4000"),
		domain.WithholdingStateIncomeTax:   dec("600"),
	}, true, dec("250"))
	require.NoError(t, err)
	return scenario{
		facts: domain.FilerFacts{
			VisaType:    domain.VisaF1,
			CountryCode: "IN",
			TaxYear:     2024,
			EntryDate:   date(2023, 8, 15),
			StateCode:   "CA",
		},
		income:      income,
		withholding: withholding,
		days:        domain.DayCounts{2024: 320, 2023: 130},
	}
}

func TestComputeCompleteTaxReturn(t *testing.T) {
	s := indianStudent(t)
	got, err := ComputeCompleteTaxReturn(context.Background(), rules2024(t), s.facts, s.income, s.withholding, s.days)
	require.NoError(t, err)

	assert.Equal(t, 2024, got.TaxYear)
	assert.Equal(t, "v2024.1", got.RulesetVersion)
	assert.NotEmpty(t, got.ComputationID)
	assert.Equal(t, domain.NonResident, got.Residency.Status)
	assertDecimal(t, "38500", got.TaxableIncome.USSourceIncome)
	assertDecimal(t, "5000", got.TaxableIncome.TreatyExemptions)
	assertDecimal(t, "33500", got.TaxableIncome.TaxableIncome)
	assertDecimal(t, "3800", got.Federal.TotalTax)
	require.NotNil(t, got.State)
	assertDecimal(t, "552.09", got.State.TotalTax)
	assertDecimal(t, "4352.09", got.Final.TotalTax)
	assert.Equal(t, domain.Refund, got.Final.RefundOrOwed)
	assertDecimal(t, "247.91", got.Final.Amount)
	assert.True(t, got.FICA.Exempt)
	assert.True(t, got.FICA.RefundEligible)
	assertDecimal(t, "250", got.FICA.IncorrectWithheld)
}

func TestComputeCompleteTaxReturnIsDeterministic(t *testing.T) {
	s := indianStudent(t)
	rs := rules2024(t)
	engine := NewEngine()

	first, err := engine.ComputeCompleteTaxReturn(context.Background(), rs, s.facts, s.income, s.withholding, s.days)
	require.NoError(t, err)
	second, err := engine.ComputeCompleteTaxReturn(context.Background(), rs, s.facts, s.income, s.withholding, s.days)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	s.facts.StateCode = "NY"
	third, err := engine.ComputeCompleteTaxReturn(context.Background(), rs, s.facts, s.income, s.withholding, s.days)
	require.NoError(t, err)
	assert.NotEqual(t, first.ComputationID, third.ComputationID)
}

func TestComputeCompleteTaxReturnWithoutState(t *testing.T) {
	s := indianStudent(t)
	s.facts.StateCode = ""
	got, err := ComputeCompleteTaxReturn(context.Background(), rules2024(t), s.facts, s.income, s.withholding, s.days)
	require.NoError(t, err)
	assert.Nil(t, got.State)
	assertDecimal(t, "3800", got.Final.TotalTax)
}

func TestComputeCompleteTaxReturnRejectsBadInput(t *testing.T) {
	rs := rules2024(t)
	s := indianStudent(t)

	_, err := ComputeCompleteTaxReturn(context.Background(), nil, s.facts, s.income, s.withholding, s.days)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleset)

	mismatched := s.facts
	mismatched.TaxYear = 2025
	_, err = ComputeCompleteTaxReturn(context.Background(), rs, mismatched, s.income, s.withholding, s.days)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	var inputErr *domain.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "tax_year", inputErr.Field)

	_, err = ComputeCompleteTaxReturn(context.Background(), rs, s.facts, s.income, s.withholding, domain.DayCounts{2024: 400})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noVisa := s.facts
	noVisa.VisaType = ""
	_, err = ComputeCompleteTaxReturn(context.Background(), rs, noVisa, s.income, s.withholding, s.days)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestComputeCompleteTaxReturnCancelled(t *testing.T) {
	s := indianStudent(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ComputeCompleteTaxReturn(ctx, rules2024(t), s.facts, s.income, s.withholding, s.days)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeCompleteTaxReturnEmptyIncome(t *testing.T) {
	s := indianStudent(t)
	got, err := ComputeCompleteTaxReturn(context.Background(), rules2024(t), s.facts, domain.EmptyIncome(), domain.EmptyWithholding(), s.days)
	require.NoError(t, err)
	assertDecimal(t, "0", got.Final.TotalTax)
	assert.Equal(t, domain.Owed, got.Final.RefundOrOwed)
	assert.False(t, got.Treaty.TotalExemption.IsPositive())
}
