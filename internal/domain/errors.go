package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification. Callers use errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidRuleset  = errors.New("invalid ruleset")
	ErrRulesetNotFound = errors.New("ruleset not found")
)

// InputError describes a single rejected field of filer input.
type InputError struct {
	Field  string
	Value  string
	Reason string
}

// NewInputError creates an InputError for the named field.
func NewInputError(field, value, reason string) *InputError {
	return &InputError{Field: field, Value: value, Reason: reason}
}

func (e *InputError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Value == "" {
		return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s %q %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) succeed.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// RulesetError reports a configuration defect found while constructing a Ruleset.
type RulesetError struct {
	TaxYear int
	Path    string
	Reason  string
}

func (e *RulesetError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("invalid ruleset %d", e.TaxYear)
	if e.Path != "" {
		base += ": " + e.Path
	}
	return base + ": " + e.Reason
}

func (e *RulesetError) Unwrap() error {
	return ErrInvalidRuleset
}
