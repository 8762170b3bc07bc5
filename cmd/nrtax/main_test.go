package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixtureDir = filepath.Join("..", "..", "internal", "config", "testdata")
	indiaInput = filepath.Join(fixtureDir, "f1_india.yaml")
	texasInput = filepath.Join(fixtureDir, "h1b_texas.json")
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "nrtax", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"compute", "aggregate", "residency", "validate", "rules", "batch", "version"} {
		assert.Contains(t, names, want)
	}

	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "compute")
}

func TestComputeCommand(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   []string
	}{
		{"console", "console", []string{"NON-RESIDENT TAX COMPUTATION 2024", "REFUND DUE: $227.91"}},
		{"summary alias", "summary", []string{"$33,625.00"}},
		{"csv", "csv", []string{"Section,Item,Detail,Amount,Tax", "final,refund"}},
		{"yaml", "yaml", []string{"ruleset_version: v2024.1"}},
		{"html", "html", []string{"<!DOCTYPE html>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "compute", indiaInput, "--format", tt.format)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestComputeCommandJSON(t *testing.T) {
	out, _, err := execute(t, "compute", indiaInput, "-f", "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	final := decoded["final_computation"].(map[string]any)
	assert.Equal(t, "refund", final["refund_or_owed"])
	assert.Equal(t, "227.91", final["amount"])

	again, _, err := execute(t, "compute", indiaInput, "-f", "json")
	require.NoError(t, err)
	assert.Equal(t, out, again, "identical inputs render byte-identical JSON")
}

func TestComputeCommandErrors(t *testing.T) {
	_, _, err := execute(t, "compute", indiaInput, "--format", "pdf")
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = execute(t, "compute", "missing.yaml")
	assert.ErrorContains(t, err, "failed to read file")

	_, _, err = execute(t, "compute", indiaInput, "--ruleset", filepath.Join("..", "..", "internal", "ruleset", "data", "2025.yaml"))
	assert.ErrorContains(t, err, "covers tax year 2025")

	_, _, err = execute(t, "compute")
	assert.Error(t, err)
}

func TestComputeCommandSave(t *testing.T) {
	input, err := filepath.Abs(indiaInput)
	require.NoError(t, err)
	t.Chdir(t.TempDir())

	out, _, err := execute(t, "compute", input, "--format", "csv", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Report written to nrtax_2024_")

	matches, err := filepath.Glob("nrtax_2024_*.csv")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestAggregateCommand(t *testing.T) {
	out, _, err := execute(t, "aggregate", texasInput)
	require.NoError(t, err)
	assert.Contains(t, out, "wages")
	assert.Contains(t, out, "$96,000.00")
	assert.Contains(t, out, "fica_exempt")

	out, _, err = execute(t, "aggregate", indiaInput, "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"findings": []`)
}

func TestResidencyCommand(t *testing.T) {
	out, _, err := execute(t, "residency", texasInput)
	require.NoError(t, err)
	assert.Contains(t, out, "Resident alien")
	assert.Contains(t, out, "Meets substantial presence test")

	out, _, err = execute(t, "residency", indiaInput, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "residency_status: non_resident")
}

func TestValidateCommand(t *testing.T) {
	out, _, err := execute(t, "validate", indiaInput)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	data, err := os.ReadFile(indiaInput)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte(`federal_income_tax_withheld: "4,000.00"`), []byte(`federal_income_tax_withheld: "40,000.00"`), 1)
	require.NoError(t, os.WriteFile(bad, data, 0o600))

	out, _, err = execute(t, "validate", bad)
	assert.ErrorContains(t, err, "1 document error(s)")
	assert.Contains(t, out, "withholding_exceeds_wages")
}

func TestRulesCommand(t *testing.T) {
	out, _, err := execute(t, "rules", "2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Ruleset v2024.1 (tax year 2024)")

	out, _, err = execute(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "tax year 2025")

	_, _, err = execute(t, "rules", "1999")
	assert.Error(t, err)

	_, _, err = execute(t, "rules", "next")
	assert.ErrorContains(t, err, "invalid tax year")
}

func TestBatchCommand(t *testing.T) {
	metrics := filepath.Join(t.TempDir(), "nrtax.prom")
	out, _, err := execute(t, "batch", fixtureDir, "--workers", "2", "--metrics-out", metrics)
	require.NoError(t, err)
	assert.Contains(t, out, "f1_india.yaml")
	assert.Contains(t, out, "h1b_texas.json")
	assert.Contains(t, out, "refund $227.91")
	assert.Contains(t, out, "owed $3,047.50")

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nrtax_batch_returns_total")

	_, _, err = execute(t, "batch", indiaInput, "missing.yaml")
	assert.ErrorContains(t, err, "failed to stat")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("filer: {visa_type: XX}\n"), 0o600))
	out, _, err = execute(t, "batch", indiaInput, bad)
	assert.ErrorContains(t, err, "1 of 2 returns failed")
	assert.Contains(t, out, "error")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nrtax dev")
}

func TestDebugLogging(t *testing.T) {
	_, stderr, err := execute(t, "compute", indiaInput, "--debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, "level=DEBUG")

	_, stderr, err = execute(t, "compute", indiaInput)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "level=DEBUG")
}
