package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	in, err := NewInputParser().LoadFromFile(filepath.Join("testdata", "f1_india.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "f1_india", in.Name)
	assert.Equal(t, domain.VisaF1, in.Facts.VisaType)
	assert.Equal(t, "IN", in.Facts.CountryCode)
	assert.Equal(t, "CA", in.Facts.StateCode)
	assert.Equal(t, 2024, in.Facts.TaxYear)
	assert.Equal(t, time.Date(2023, time.August, 15, 0, 0, 0, 0, time.UTC), in.Facts.EntryDate)
	assert.Equal(t, domain.FilingSingle, in.Facts.FilingStatus)
	assert.Equal(t, 320, in.Days.For(2024))
	assert.Equal(t, 130, in.Days.For(2023))

	require.Len(t, in.Documents, 3)
	assert.Equal(t, domain.DocumentW2, in.Documents[0].Category)
	assert.Equal(t, domain.Document1042S, in.Documents[1].Category)
	assert.Equal(t, "500", in.Documents[2].Fields["interest_income"])
	assert.True(t, in.IncomeOverrides[domain.IncomeOther].Equal(decimal.RequireFromString("125")))
}

func TestLoadFromFileJSON(t *testing.T) {
	in, err := NewInputParser().LoadFromFile(filepath.Join("testdata", "h1b_texas.json"))
	require.NoError(t, err)

	assert.Equal(t, domain.VisaH1B, in.Facts.VisaType)
	assert.Equal(t, domain.WorkDays{USWorkDays: 230, TotalWorkDays: 240}, in.Facts.WorkDays)
	assert.Equal(t, 280, in.Days.For(2022))
	assert.Equal(t, "BR", in.Documents[1].PayerCountry)
	assert.Nil(t, in.IncomeOverrides)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := NewInputParser().LoadFromFile(filepath.Join("testdata", "does_not_exist.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestParseRejectsInvalidInput(t *testing.T) {
	valid := `
filer:
  visa_type: J-1
  country: CN
  tax_year: 2024
  entry_date: 2024-01-15
days_in_us:
  2024: 200
`
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{"empty document", "", "input"},
		{"missing visa", `
filer:
  country: CN
  tax_year: 2024
  entry_date: 2024-01-15
`, "visa_type"},
		{"bad country", `
filer:
  visa_type: J-1
  country: CHN
  tax_year: 2024
  entry_date: 2024-01-15
`, "country_code"},
		{"bad date", `
filer:
  visa_type: J-1
  country: CN
  tax_year: 2024
  entry_date: 15/01/2024
`, "entry_date"},
		{"too many days", valid + "  2023: 400\n", "days_in_us[2023]"},
		{"bad year key", valid + "  last: 10\n", "days_in_us"},
		{"unknown override", valid + "income_overrides:\n  lottery: 100\n", "income_category"},
		{"malformed override", valid + "income_overrides:\n  wages: lots\n", "income_overrides.wages"},
		{"negative override", valid + "income_overrides:\n  wages: \"-1000\"\n", "income_overrides.wages"},
		{"parenthesized negative override", valid + "income_overrides:\n  interest: \"(250.00)\"\n", "income_overrides.interest"},
		{"negative source hint", valid + "us_source_hints:\n  interest: \"-5\"\n", "us_source_hints.interest"},
		{"duplicate document", valid + `
documents:
  - {id: a, category: W-2, fields: {wages: "1"}}
  - {id: a, category: W-2, fields: {wages: "2"}}
`, "documents[1].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInputParser().Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			var inputErr *domain.InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.wantField, inputErr.Field)
		})
	}

	_, err := NewInputParser().Parse([]byte(valid))
	assert.NoError(t, err)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := NewInputParser().Parse([]byte("filer:\n  visa: F-1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestFindInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.json", "notes.txt", "c.YML"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o700))

	files, err := FindInputFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "c.YML"),
	}, files)
}
