// Package output renders computation results for people and for machines.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/shopspring/decimal"
)

// Formatter renders a ComputationResult.
type Formatter interface {
	Name() string
	Format(result *domain.ComputationResult) ([]byte, error)
}

// FormatterFunc adapts a function to the Formatter interface.
type FormatterFunc struct {
	ID string
	F  func(result *domain.ComputationResult) ([]byte, error)
}

func (f FormatterFunc) Name() string { return f.ID }

func (f FormatterFunc) Format(result *domain.ComputationResult) ([]byte, error) {
	return f.F(result)
}

var formatters = map[string]Formatter{
	"console":      ConsoleFormatter{},
	"console-lite": ConsoleLiteFormatter{},
	"json":         JSONFormatter{},
	"yaml":         YAMLFormatter{},
	"csv":          CSVFormatter{},
	"html":         HTMLFormatter{},
}

var formatAliases = map[string]string{
	"text":    "console",
	"verbose": "console",
	"summary": "console-lite",
	"yml":     "yaml",
}

// GetFormatterByName resolves a formatter or alias, case-insensitively. It
// returns nil for unknown names.
func GetFormatterByName(name string) Formatter {
	key := strings.ToLower(strings.TrimSpace(name))
	if target, ok := formatAliases[key]; ok {
		key = target
	}
	return formatters[key]
}

func AvailableFormatterNames() []string {
	names := make([]string, 0, len(formatters))
	for n := range formatters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func AvailableFormatAliases() []string {
	names := make([]string, 0, len(formatAliases))
	for n := range formatAliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WriteFormatted writes the formatted result to nrtax_<year>_<id>.<ext> in the
// working directory and returns the file name.
func WriteFormatted(f Formatter, result *domain.ComputationResult, ext string) (string, error) {
	data, err := f.Format(result)
	if err != nil {
		return "", fmt.Errorf("failed to format result with %s: %w", f.Name(), err)
	}
	id := result.ComputationID
	if len(id) > 8 {
		id = id[:8]
	}
	filename := fmt.Sprintf("nrtax_%d_%s.%s", result.TaxYear, id, strings.TrimPrefix(ext, "."))
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return filename, nil
}

// FormatCurrency formats a decimal as currency
func FormatCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	whole, cents := fixed[:len(fixed)-3], fixed[len(fixed)-3:]
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + cents
}

// FormatPercentage formats a percentage value such as 12.62 as "12.62%".
func FormatPercentage(amount decimal.Decimal) string {
	return amount.StringFixed(2) + "%"
}
