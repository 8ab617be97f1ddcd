package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

func TestTestCommand_HarnessScenariosPass(t *testing.T) {
	stdout, _, err := executeCommand(t, "test", harnessScenarios, "--golden-dir", harnessGolden)
	require.NoError(t, err, stdout)

	assert.Contains(t, stdout, "✓ sign_in_switches_to_admin")
	assert.Contains(t, stdout, "0 failed")
	assert.Contains(t, stdout, "All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	stdout, _, err := executeCommand(t, "--format", "json", "test", harnessScenarios,
		"--golden-dir", harnessGolden, "--filter", "rejected_*")
	require.NoError(t, err)

	result := decodeData[TestResult](t, stdout)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, "rejected_subscribe", result.Scenarios[0].Name)
	assert.Equal(t, "match", result.Scenarios[0].Golden)
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(harnessScenarios, "sign_in_switches_to_admin.yaml"))
	require.NoError(t, err)
	writeFile(t, dir, "sign_in_switches_to_admin.yaml", string(src))

	stdout, _, err := executeCommand(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(golden updated)")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "sign_in_switches_to_admin.golden"))
	require.NoError(t, err)
	expected, err := os.ReadFile(filepath.Join(harnessGolden, "sign_in_switches_to_admin.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(written))

	_, _, err = executeCommand(t, "test", dir)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "golden"), "sign_in_switches_to_admin.golden", "{}\n")
	stdout, _, err = executeCommand(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "trace does not match golden file")
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nsurprise: true\n")

	stdout, _, err := executeCommand(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	stdout, _, err := executeCommand(t, "test", harnessScenarios, "--filter", "nothing_matches_*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", stdout)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, _, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
