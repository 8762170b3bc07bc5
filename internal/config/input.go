package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rgehrsitz/nrtax/internal/aggregate"
	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ReturnInput is one filer's return as read from an input file: the facts,
// day counts and documents the engine consumes.
type ReturnInput struct {
	Name            string
	Facts           domain.FilerFacts
	Days            domain.DayCounts
	Documents       []domain.Document
	IncomeOverrides map[domain.IncomeCategory]decimal.Decimal
	USSourceHints   map[domain.IncomeCategory]decimal.Decimal
}

type inputFile struct {
	Filer           filerInput        `yaml:"filer"`
	DaysInUS        map[string]int    `yaml:"days_in_us"`
	Documents       []documentInput   `yaml:"documents"`
	IncomeOverrides map[string]string `yaml:"income_overrides"`
	USSourceHints   map[string]string `yaml:"us_source_hints"`
}

type filerInput struct {
	VisaType                    string        `yaml:"visa_type"`
	Country                     string        `yaml:"country"`
	TaxYear                     int           `yaml:"tax_year"`
	EntryDate                   string        `yaml:"entry_date"`
	YearsInStatus               *int          `yaml:"years_in_status"`
	State                       string        `yaml:"state"`
	FilingStatus                string        `yaml:"filing_status"`
	WorkDays                    workDaysInput `yaml:"work_days"`
	SubstantialPresenceOverride bool          `yaml:"substantial_presence_override"`
}

type workDaysInput struct {
	US    int `yaml:"us"`
	Total int `yaml:"total"`
}

type documentInput struct {
	ID           string            `yaml:"id"`
	Category     string            `yaml:"category"`
	PayerCountry string            `yaml:"payer_country"`
	Fields       map[string]string `yaml:"fields"`
}

// InputParser handles parsing of return input files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a return from a YAML or JSON file
func (ip *InputParser) LoadFromFile(filename string) (*ReturnInput, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	in, err := ip.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	in.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return in, nil
}

// Parse decodes and validates one return. JSON input is accepted as YAML.
func (ip *InputParser) Parse(data []byte) (*ReturnInput, error) {
	var raw inputFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: %w", domain.NewInputError("input", "", "is empty"))
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	in, err := ip.mapInput(raw)
	if err != nil {
		return nil, err
	}
	if err := ip.ValidateInput(in); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}
	return in, nil
}

func (ip *InputParser) mapInput(raw inputFile) (*ReturnInput, error) {
	facts, err := ip.mapFiler(raw.Filer)
	if err != nil {
		return nil, fmt.Errorf("filer validation failed: %w", err)
	}
	days, err := parseDayCounts(raw.DaysInUS)
	if err != nil {
		return nil, err
	}
	in := &ReturnInput{Facts: facts, Days: days}
	for i, d := range raw.Documents {
		cat, ok := domain.ParseDocumentCategory(d.Category)
		if !ok {
			// Unknown categories are kept so the aggregator can report and skip them.
			cat = domain.DocumentCategory(d.Category)
		}
		if cat == "" {
			return nil, domain.NewInputError(fmt.Sprintf("documents[%d].category", i), "", "is required")
		}
		in.Documents = append(in.Documents, domain.Document{
			ID:           d.ID,
			Category:     cat,
			PayerCountry: domain.NormalizeCode(d.PayerCountry),
			Fields:       d.Fields,
		})
	}
	if in.IncomeOverrides, err = parseCategoryAmounts("income_overrides", raw.IncomeOverrides); err != nil {
		return nil, err
	}
	if in.USSourceHints, err = parseCategoryAmounts("us_source_hints", raw.USSourceHints); err != nil {
		return nil, err
	}
	return in, nil
}

func (ip *InputParser) mapFiler(f filerInput) (domain.FilerFacts, error) {
	visa, err := domain.ParseVisaType(f.VisaType)
	if err != nil {
		return domain.FilerFacts{}, err
	}
	country, err := domain.ParseCountryCode(f.Country)
	if err != nil {
		return domain.FilerFacts{}, err
	}
	state, err := domain.ParseStateCode(f.State)
	if err != nil {
		return domain.FilerFacts{}, err
	}
	if strings.TrimSpace(f.EntryDate) == "" {
		return domain.FilerFacts{}, domain.NewInputError("entry_date", "", "is required")
	}
	entry, err := domain.ParseEntryDate(strings.TrimSpace(f.EntryDate))
	if err != nil {
		return domain.FilerFacts{}, err
	}
	return domain.FilerFacts{
		VisaType:                    visa,
		CountryCode:                 country,
		TaxYear:                     f.TaxYear,
		EntryDate:                   entry,
		YearsInStatus:               f.YearsInStatus,
		StateCode:                   state,
		FilingStatus:                domain.FilingStatus(strings.ToLower(strings.TrimSpace(f.FilingStatus))),
		WorkDays:                    domain.WorkDays{USWorkDays: f.WorkDays.US, TotalWorkDays: f.WorkDays.Total},
		SubstantialPresenceOverride: f.SubstantialPresenceOverride,
	}, nil
}

// parseDayCounts accepts year keys as YAML integers or JSON strings.
func parseDayCounts(raw map[string]int) (domain.DayCounts, error) {
	days := make(domain.DayCounts, len(raw))
	for k, n := range raw {
		year, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, domain.NewInputError("days_in_us", k, "is not a calendar year")
		}
		days[year] = n
	}
	return days, nil
}

func parseCategoryAmounts(field string, raw map[string]string) (map[domain.IncomeCategory]decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[domain.IncomeCategory]decimal.Decimal, len(raw))
	for _, k := range keys {
		cat, err := domain.ParseIncomeCategory(k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		amt, err := aggregate.ParseAmount(raw[k], true)
		if err != nil {
			return nil, domain.NewInputError(field+"."+k, raw[k], "is not a valid amount")
		}
		if amt.IsNegative() && !cat.AllowsNegative() {
			return nil, domain.NewInputError(field+"."+k, raw[k], "must not be negative")
		}
		out[cat] = amt
	}
	return out, nil
}

// ValidateInput validates a mapped return
func (ip *InputParser) ValidateInput(in *ReturnInput) error {
	if err := in.Facts.Validate(); err != nil {
		return fmt.Errorf("filer validation failed: %w", err)
	}
	if err := in.Days.Validate(); err != nil {
		return fmt.Errorf("days_in_us validation failed: %w", err)
	}
	seen := make(map[string]bool, len(in.Documents))
	for i, d := range in.Documents {
		if d.ID == "" {
			continue
		}
		if seen[d.ID] {
			return domain.NewInputError(fmt.Sprintf("documents[%d].id", i), d.ID, "is duplicated")
		}
		seen[d.ID] = true
	}
	return nil
}

// FindInputFiles lists the YAML and JSON files directly under dir, sorted.
func FindInputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
