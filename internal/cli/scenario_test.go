package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenarioDir = "../harness/testdata/scenarios"
	goldenDir   = "../harness/testdata/golden"
)

const failingScenario = `name: wrong_balance
steps:
  - op: open
    account: alice
    amount: 10
balances: { alice: 12 }
`

func TestScenario_PassesWithGolden(t *testing.T) {
	stdout, stderr, code := runCLI(t, "scenario", scenarioDir, "--golden", goldenDir)

	require.Equal(t, ExitSuccess, code, "stdout: %s\nstderr: %s", stdout, stderr)
	assert.Contains(t, stdout, "✓ transfer_survives_restart")
	assert.Contains(t, stdout, "Scenario Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestScenario_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wrong_balance.yaml"), failingScenario)

	stdout, stderr, code := runCLI(t, "scenario", dir)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ wrong_balance")
	assert.Contains(t, stdout, "final balances: expected {alice: 12}, got {alice: 10}")
	assert.Contains(t, stdout, "Scenario Summary: 0 passed, 1 failed, 1 total")
	assert.NotContains(t, stderr, "Error:")
}

func TestScenario_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wrong_balance.yaml"), failingScenario)

	stdout, _, code := runCLI(t, "--format", "json", "scenario", scenarioDir, dir)
	assert.Equal(t, ExitFailure, code)

	resp := decodeResponse(t, stdout)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(4), data["total"])
	assert.Equal(t, float64(3), data["passed"])
	assert.Equal(t, float64(1), data["failed"])
}

func TestScenario_UpdateThenDetectDrift(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	_, _, code := runCLI(t, "scenario", scenarioDir, "--golden", golden, "--update")
	require.Equal(t, ExitSuccess, code)

	fresh, err := os.ReadFile(filepath.Join(golden, "audit_veto_and_clock.golden"))
	require.NoError(t, err)
	committed, err := os.ReadFile(filepath.Join(goldenDir, "audit_veto_and_clock.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(fresh))

	writeFile(t, filepath.Join(golden, "audit_veto_and_clock.golden"), "{}\n")

	stdout, _, code := runCLI(t, "scenario", scenarioDir, "--golden", golden)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ audit_veto_and_clock")
	assert.Contains(t, stdout, "trace does not match golden file")
	assert.Contains(t, stdout, "✓ transfer_survives_restart")
}

func TestScenario_MissingGolden(t *testing.T) {
	stdout, _, code := runCLI(t, "scenario", scenarioDir, "--golden", t.TempDir())

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "run with --update to create it")
}

func TestScenario_Filter(t *testing.T) {
	stdout, _, code := runCLI(t, "scenario", scenarioDir, "--filter", "json_*")

	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "✓ json_snapshots_rotate")
	assert.NotContains(t, stdout, "transfer_survives_restart")
	assert.Contains(t, stdout, "1 total")
}

func TestScenario_BadFilter(t *testing.T) {
	stdout, _, code := runCLI(t, "scenario", scenarioDir, "--filter", "[")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout, "Error [E_USAGE]: invalid filter pattern")
}

func TestScenario_UpdateRequiresGolden(t *testing.T) {
	stdout, _, code := runCLI(t, "scenario", scenarioDir, "--update")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout, "--update requires --golden")
}

func TestScenario_MissingPath(t *testing.T) {
	stdout, _, code := runCLI(t, "scenario", filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout, "Error [E_NOT_FOUND]")
}

func TestScenario_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\nsteps: []\nbogus: 1\n")

	stdout, _, code := runCLI(t, "scenario", dir)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestFilterScenarios(t *testing.T) {
	files := []string{"a/transfer_one.yaml", "a/audit.yml", "b/transfer_two.yaml"}

	got, err := filterScenarios(files, "transfer_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/transfer_one.yaml", "b/transfer_two.yaml"}, got)

	got, err = filterScenarios(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)
}
