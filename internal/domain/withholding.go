package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// WithholdingCategory names a bucket of tax already paid or withheld.
type WithholdingCategory string

const (
	WithholdingFederalIncomeTax WithholdingCategory = "federal_income_tax"
	WithholdingStateIncomeTax   WithholdingCategory = "state_income_tax"
	WithholdingSocialSecurity   WithholdingCategory = "social_security_tax"
	WithholdingMedicare         WithholdingCategory = "medicare_tax"
	WithholdingForeignTaxPaid   WithholdingCategory = "foreign_tax_paid"
)

var withholdingOrder = []WithholdingCategory{
	WithholdingFederalIncomeTax,
	WithholdingStateIncomeTax,
	WithholdingSocialSecurity,
	WithholdingMedicare,
	WithholdingForeignTaxPaid,
}

func (c WithholdingCategory) Valid() bool {
	for _, known := range withholdingOrder {
		if c == known {
			return true
		}
	}
	return false
}

// WithholdingAggregate totals withholding for one computation, along with the
// FICA exemption outcome. It is read-only after construction.
type WithholdingAggregate struct {
	amounts               map[WithholdingCategory]decimal.Decimal
	ficaExempt            bool
	incorrectFICAWithheld decimal.Decimal
}

// NewWithholdingAggregate validates and copies the totals. incorrectFICA is the
// Social Security and Medicare tax withheld from a FICA-exempt filer.
func NewWithholdingAggregate(amounts map[WithholdingCategory]decimal.Decimal, ficaExempt bool, incorrectFICA decimal.Decimal) (WithholdingAggregate, error) {
	agg := WithholdingAggregate{
		amounts:    make(map[WithholdingCategory]decimal.Decimal, len(amounts)),
		ficaExempt: ficaExempt,
	}
	for c, amt := range amounts {
		if !c.Valid() {
			return WithholdingAggregate{}, NewInputError("withholding_category", string(c), "is not a known withholding category")
		}
		if amt.IsNegative() {
			return WithholdingAggregate{}, NewInputError(string(c), amt.String(), "cannot be negative")
		}
		if amt.IsZero() {
			continue
		}
		agg.amounts[c] = amt
	}
	if incorrectFICA.IsNegative() {
		return WithholdingAggregate{}, NewInputError("incorrect_fica_withheld", incorrectFICA.String(), "cannot be negative")
	}
	if !ficaExempt && incorrectFICA.IsPositive() {
		return WithholdingAggregate{}, NewInputError("incorrect_fica_withheld", incorrectFICA.String(), "requires a FICA-exempt filer")
	}
	agg.incorrectFICAWithheld = incorrectFICA
	return agg, nil
}

// EmptyWithholding is the aggregate of zero documents.
func EmptyWithholding() WithholdingAggregate {
	return WithholdingAggregate{}
}

func (w WithholdingAggregate) Amount(c WithholdingCategory) decimal.Decimal {
	return w.amounts[c]
}

// Categories returns the non-zero categories in reporting order.
func (w WithholdingAggregate) Categories() []WithholdingCategory {
	var out []WithholdingCategory
	for _, c := range withholdingOrder {
		if _, ok := w.amounts[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (w WithholdingAggregate) FICAExempt() bool { return w.ficaExempt }

func (w WithholdingAggregate) IncorrectFICAWithheld() decimal.Decimal { return w.incorrectFICAWithheld }

// FICARefundEligible is true when an exempt filer had FICA tax withheld.
func (w WithholdingAggregate) FICARefundEligible() bool {
	return w.ficaExempt && w.incorrectFICAWithheld.IsPositive()
}

type withholdingAggregateJSON struct {
	Amounts               map[WithholdingCategory]decimal.Decimal `json:"amounts" yaml:"amounts"`
	FICAExempt            bool                                    `json:"fica_exempt" yaml:"fica_exempt"`
	IncorrectFICAWithheld decimal.Decimal                         `json:"incorrect_fica_withheld" yaml:"incorrect_fica_withheld"`
	FICARefundEligible    bool                                    `json:"fica_refund_eligible" yaml:"fica_refund_eligible"`
}

func (w WithholdingAggregate) view() withholdingAggregateJSON {
	amounts := make(map[WithholdingCategory]decimal.Decimal, len(w.amounts))
	for c, amt := range w.amounts {
		amounts[c] = amt
	}
	return withholdingAggregateJSON{
		Amounts:               amounts,
		FICAExempt:            w.ficaExempt,
		IncorrectFICAWithheld: w.incorrectFICAWithheld,
		FICARefundEligible:    w.FICARefundEligible(),
	}
}

func (w WithholdingAggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.view())
}

func (w WithholdingAggregate) MarshalYAML() (interface{}, error) {
	return w.view(), nil
}
