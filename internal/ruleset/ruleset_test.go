package ruleset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bounded(lo, hi, rate string) TaxBracket {
	return TaxBracket{Min: d(lo), Max: decimal.NullDecimal{Decimal: d(hi), Valid: true}, Rate: d(rate)}
}

func top(lo, rate string) TaxBracket {
	return TaxBracket{Min: d(lo), Rate: d(rate)}
}

func minimalDefinition() Definition {
	return Definition{
		TaxYear:         2024,
		VersionID:       "test.1",
		FederalBrackets: []TaxBracket{bounded("0", "100", "0.1"), top("100", "0.2")},
		SubstantialPresence: SubstantialPresenceRules{
			Threshold: 183, PriorYearDivisor: 3, TwoYearsAgoDivisor: 6,
		},
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, reg.Years())

	rs, err := reg.ForYear(2024)
	require.NoError(t, err)
	assert.Equal(t, "v2024.1", rs.VersionID())

	brackets := rs.FederalBrackets()
	require.Len(t, brackets, 7)
	assert.True(t, brackets[1].Min.Equal(d("11000")))
	assert.True(t, brackets[1].Rate.Equal(d("0.12")))
	assert.True(t, brackets[6].Unbounded())

	single, ok := rs.StandardDeduction(domain.FilingSingle)
	require.True(t, ok)
	assert.True(t, single.Equal(d("13850")))

	student, ok := rs.TreatyProvision("IN", domain.TreatyStudent)
	require.True(t, ok)
	assert.True(t, student.Cap.Valid)
	assert.True(t, student.Cap.Decimal.Equal(d("5000")))
	assert.Equal(t, "Article 21", student.Article)

	teacher, ok := rs.TreatyProvision("CN", domain.TreatyTeacher)
	require.True(t, ok)
	assert.False(t, teacher.Cap.Valid)
	assert.Equal(t, 3, teacher.PeriodYears)

	tx, ok := rs.State("TX")
	require.True(t, ok)
	assert.False(t, tx.HasIncomeTax())

	limit, ok := rs.ExemptIndividualLimit(domain.VisaJ1)
	require.True(t, ok)
	assert.Equal(t, 2, limit)

	fica := rs.FICAExemption()
	assert.True(t, fica.Covers(domain.VisaQ2))
	assert.False(t, fica.Covers(domain.VisaF1OPT))
	assert.Equal(t, 5, fica.MaxCalendarYears)

	assert.True(t, rs.FICA().SocialSecurityRate.Equal(d("0.062")))
	assert.Equal(t, 31, rs.SubstantialPresence().MinimumCurrentYearDays)

	latest, err := reg.Latest()
	require.NoError(t, err)
	assert.Equal(t, 2025, latest.TaxYear())
}

func TestRegistryForYearMissing(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	_, err = reg.ForYear(1999)
	assert.ErrorIs(t, err, domain.ErrRulesetNotFound)
}

func TestNewRegistryRejectsDuplicateYears(t *testing.T) {
	a, err := New(minimalDefinition())
	require.NoError(t, err)
	b, err := New(minimalDefinition())
	require.NoError(t, err)
	_, err = NewRegistry(a, b)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleset)
}

func TestNewRejectsMalformedBrackets(t *testing.T) {
	tests := []struct {
		name     string
		brackets []TaxBracket
	}{
		{"gap", []TaxBracket{bounded("0", "100", "0.1"), top("101", "0.2")}},
		{"overlap", []TaxBracket{bounded("0", "100", "0.1"), top("90", "0.2")}},
		{"does not start at zero", []TaxBracket{bounded("10", "100", "0.1"), top("100", "0.2")}},
		{"bounded top", []TaxBracket{bounded("0", "100", "0.1"), bounded("100", "200", "0.2")}},
		{"unbounded middle", []TaxBracket{top("0", "0.1"), top("100", "0.2")}},
		{"empty bracket", []TaxBracket{bounded("0", "0", "0.1"), top("0", "0.2")}},
		{"rate above one", []TaxBracket{bounded("0", "100", "1.5"), top("100", "0.2")}},
		{"negative rate", []TaxBracket{bounded("0", "100", "-0.1"), top("100", "0.2")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := minimalDefinition()
			def.FederalBrackets = tt.brackets
			_, err := New(def)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidRuleset)
			var re *domain.RulesetError
			assert.True(t, errors.As(err, &re))
		})
	}
}

func TestNewRejectsBadStateTable(t *testing.T) {
	def := minimalDefinition()
	def.States = map[string]StateTable{
		"CA": {Brackets: []TaxBracket{bounded("0", "100", "0.01"), top("150", "0.02")}},
	}
	_, err := New(def)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleset)

	def.States = map[string]StateTable{"TX": {}}
	_, err = New(def)
	assert.NoError(t, err, "empty schedule means no income tax")
}

func TestNewRejectsUnboxedTeacherExemption(t *testing.T) {
	def := minimalDefinition()
	def.Treaties = map[string]map[domain.TreatyCategory]TreatyProvision{
		"IN": {domain.TreatyTeacher: {Article: "Article 21"}},
	}
	_, err := New(def)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleset)
}

func TestRulesetIsImmutable(t *testing.T) {
	def := minimalDefinition()
	def.StandardDeductions = map[domain.FilingStatus]decimal.Decimal{domain.FilingSingle: d("100")}
	rs, err := New(def)
	require.NoError(t, err)

	def.FederalBrackets[0].Rate = d("0.9")
	def.StandardDeductions[domain.FilingSingle] = d("1")
	got := rs.FederalBrackets()
	got[1].Rate = d("0.9")

	assert.True(t, rs.FederalBrackets()[0].Rate.Equal(d("0.1")))
	assert.True(t, rs.FederalBrackets()[1].Rate.Equal(d("0.2")))
	sd, _ := rs.StandardDeduction(domain.FilingSingle)
	assert.True(t, sd.Equal(d("100")))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse("inline", []byte("tax_year: 2024\nbracketz: []\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidRuleset)

	_, err = Parse("inline", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleset)
}

func TestLoadFile(t *testing.T) {
	doc := `
tax_year: 2030
federal_brackets:
  - { min: 0, max: 1000, rate: 0.1 }
  - { min: 1000, max: "", rate: 0.2 }
exempt_individual:
  f1: 4
substantial_presence:
  threshold: 183
  prior_year_divisor: 3
  two_years_ago_divisor: 6
`
	path := filepath.Join(t.TempDir(), "2030.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	rs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2030.1", rs.VersionID(), "version defaults from the tax year")
	limit, ok := rs.ExemptIndividualLimit(domain.VisaF1)
	assert.True(t, ok)
	assert.Equal(t, 4, limit)
	assert.Equal(t, 0, rs.SubstantialPresence().MinimumCurrentYearDays)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
