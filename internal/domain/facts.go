package domain

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// MaxDaysInYear bounds any per-year day count.
const MaxDaysInYear = 366

// FilingStatus selects a standard deduction row of the Ruleset.
type FilingStatus string

const (
	FilingSingle            FilingStatus = "single"
	FilingMarriedJointly    FilingStatus = "married_filing_jointly"
	FilingMarriedSeparately FilingStatus = "married_filing_separately"
	FilingHeadOfHousehold   FilingStatus = "head_of_household"

	DefaultFilingStatus = FilingSingle
)

const (
	dateLayout                   = "2006-01-02"
	maxReasonableYearsInStatus   = 100
	maxReasonableTaxYearDistance = 200
)

// Valid reports whether the filing status is one the rule tables know about.
func (s FilingStatus) Valid() bool {
	switch s {
	case FilingSingle, FilingMarriedJointly, FilingMarriedSeparately, FilingHeadOfHousehold:
		return true
	}
	return false
}

// WorkDays holds the service-day split used to source compensation.
type WorkDays struct {
	USWorkDays    int `yaml:"us_work_days" json:"us_work_days"`
	TotalWorkDays int `yaml:"total_work_days" json:"total_work_days"`
}

// Validate checks the work-day counts are non-negative and consistent.
func (w WorkDays) Validate() error {
	if w.USWorkDays < 0 {
		return NewInputError("us_work_days", strconv.Itoa(w.USWorkDays), "cannot be negative")
	}
	if w.TotalWorkDays < 0 {
		return NewInputError("total_work_days", strconv.Itoa(w.TotalWorkDays), "cannot be negative")
	}
	if w.TotalWorkDays > 0 && w.USWorkDays > w.TotalWorkDays {
		return NewInputError("us_work_days", strconv.Itoa(w.USWorkDays), "cannot exceed total_work_days")
	}
	return nil
}

// DayCounts maps a calendar year to the days physically present in the U.S.
// Years that are absent count as zero.
type DayCounts map[int]int

// For returns the days recorded for year, or zero.
func (d DayCounts) For(year int) int {
	return d[year]
}

// Years returns the recorded years in ascending order.
func (d DayCounts) Years() []int {
	years := make([]int, 0, len(d))
	for y := range d {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Validate checks every count lies within 0..366.
func (d DayCounts) Validate() error {
	for _, year := range d.Years() {
		days := d[year]
		if days < 0 || days > MaxDaysInYear {
			return NewInputError(fmt.Sprintf("days_in_us[%d]", year), strconv.Itoa(days),
				fmt.Sprintf("must be between 0 and %d", MaxDaysInYear))
		}
	}
	return nil
}

// Clone returns an independent copy.
func (d DayCounts) Clone() DayCounts {
	out := make(DayCounts, len(d))
	for y, n := range d {
		out[y] = n
	}
	return out
}

// FilerFacts are the personal facts a computation depends on.
type FilerFacts struct {
	VisaType      VisaType     `yaml:"visa_type" json:"visa_type"`
	CountryCode   string       `yaml:"country_code" json:"country_code"`
	TaxYear       int          `yaml:"tax_year" json:"tax_year"`
	EntryDate     time.Time    `yaml:"entry_date" json:"entry_date"`
	YearsInStatus *int         `yaml:"years_in_status,omitempty" json:"years_in_status,omitempty"`
	StateCode     string       `yaml:"state_code,omitempty" json:"state_code,omitempty"`
	FilingStatus  FilingStatus `yaml:"filing_status,omitempty" json:"filing_status,omitempty"`
	WorkDays      WorkDays     `yaml:"work_days" json:"work_days"`

	// SubstantialPresenceOverride forces the day-count test even for an
	// exempt individual, e.g. after the filer elected to be treated as resident.
	SubstantialPresenceOverride bool `yaml:"substantial_presence_override,omitempty" json:"substantial_presence_override,omitempty"`
}

// ParseEntryDate parses a YYYY-MM-DD entry date.
func ParseEntryDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, NewInputError("entry_date", s, "must be a YYYY-MM-DD date")
	}
	return t, nil
}

// Validate rejects missing or malformed facts. Day counts are validated separately.
func (f FilerFacts) Validate() error {
	if f.VisaType == "" {
		return NewInputError("visa_type", "", "is required")
	}
	if !f.VisaType.Valid() {
		return NewInputError("visa_type", string(f.VisaType), "is not a normalized visa code")
	}
	if _, err := ParseCountryCode(f.CountryCode); err != nil {
		return err
	}
	if NormalizeCode(f.CountryCode) != f.CountryCode {
		return NewInputError("country_code", f.CountryCode, "is not normalized")
	}
	if f.TaxYear <= 0 {
		return NewInputError("tax_year", strconv.Itoa(f.TaxYear), "is required")
	}
	if f.EntryDate.IsZero() {
		return NewInputError("entry_date", "", "is required")
	}
	if f.EntryDate.After(YearEnd(f.TaxYear)) {
		return NewInputError("entry_date", f.EntryDate.Format(dateLayout), fmt.Sprintf("is after the end of tax year %d", f.TaxYear))
	}
	if f.TaxYear-f.EntryDate.Year() > maxReasonableTaxYearDistance {
		return NewInputError("entry_date", f.EntryDate.Format(dateLayout), "is implausibly far before the tax year")
	}
	if f.YearsInStatus != nil && (*f.YearsInStatus < 0 || *f.YearsInStatus > maxReasonableYearsInStatus) {
		return NewInputError("years_in_status", strconv.Itoa(*f.YearsInStatus), "is out of range")
	}
	if f.StateCode != "" {
		code, err := ParseStateCode(f.StateCode)
		if err != nil {
			return err
		}
		if code != f.StateCode {
			return NewInputError("state_code", f.StateCode, "is not normalized")
		}
	}
	if f.FilingStatus != "" && !f.FilingStatus.Valid() {
		return NewInputError("filing_status", string(f.FilingStatus), "is not a recognized filing status")
	}
	return f.WorkDays.Validate()
}

// EffectiveYearsInStatus returns YearsInStatus when supplied, otherwise the
// number of calendar years from entry through the tax year inclusive.
func (f FilerFacts) EffectiveYearsInStatus() int {
	if f.YearsInStatus != nil {
		return *f.YearsInStatus
	}
	years := f.TaxYear - f.EntryDate.Year() + 1
	if years < 0 {
		return 0
	}
	return years
}

// EffectiveFilingStatus defaults an unset status to single.
func (f FilerFacts) EffectiveFilingStatus() FilingStatus {
	if f.FilingStatus == "" {
		return DefaultFilingStatus
	}
	return f.FilingStatus
}

// YearEnd returns December 31 of year at UTC midnight.
func YearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
