package output

import (
	"bytes"
	"encoding/json"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"gopkg.in/yaml.v3"
)

// JSONFormatter emits the result record callers persist.
type JSONFormatter struct{}

func (j JSONFormatter) Name() string { return "json" }

func (j JSONFormatter) Format(r *domain.ComputationResult) ([]byte, error) {
	return marshalJSON(r)
}

type YAMLFormatter struct{}

func (y YAMLFormatter) Name() string { return "yaml" }

func (y YAMLFormatter) Format(r *domain.ComputationResult) ([]byte, error) {
	return marshalYAML(r)
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func marshalYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
