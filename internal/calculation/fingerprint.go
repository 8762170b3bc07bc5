package calculation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rgehrsitz/nrtax/internal/domain"
)

// computationNamespace scopes computation IDs to this engine.
var computationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/rgehrsitz/nrtax/computation"))

type fingerprintInput struct {
	RulesetVersion string                      `json:"ruleset_version"`
	Facts          domain.FilerFacts           `json:"facts"`
	Income         domain.IncomeAggregate      `json:"income"`
	Withholding    domain.WithholdingAggregate `json:"withholding"`
	Days           domain.DayCounts            `json:"days"`
}

// ComputationID derives a name-based UUID from the ruleset version and every
// input, so identical inputs always produce the same ID.
func ComputationID(version string, facts domain.FilerFacts, income domain.IncomeAggregate, withholding domain.WithholdingAggregate, days domain.DayCounts) (string, error) {
	payload, err := json.Marshal(fingerprintInput{
		RulesetVersion: version,
		Facts:          facts,
		Income:         income,
		Withholding:    withholding,
		Days:           days,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode computation inputs: %w", err)
	}
	return uuid.NewSHA1(computationNamespace, payload).String(), nil
}
