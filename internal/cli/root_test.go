package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns stdout and
// stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// useTempStore points the sqlite store at a fresh database for the test.
func useTempStore(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "storefront.db")
	t.Setenv("STOREFRONT_STORE_PATH", path)
	t.Setenv("STOREFRONT_BACKEND_KIND", "sqlite")
	t.Setenv("STOREFRONT_AUTH_BCRYPT_COST", "4")
	t.Setenv("STOREFRONT_LOG_LEVEL", "error")
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "storefront", cmd.Use)
	assert.Contains(t, cmd.Long, "STOREFRONT_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"},
		{"seed"},
		{"user", "add"},
		{"user", "list"},
		{"products"},
		{"view"},
		{"test"},
	}

	for _, path := range commands {
		t.Run(filepath.Join(path...), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestSubcommandFlags(t *testing.T) {
	tests := []struct {
		path  []string
		flag  string
		value string
	}{
		{[]string{"serve"}, "addr", ""},
		{[]string{"seed"}, "watch", "false"},
		{[]string{"seed"}, "debounce", "200ms"},
		{[]string{"user", "add"}, "password", ""},
		{[]string{"view"}, "mode", ""},
		{[]string{"view"}, "timeout", "5s"},
		{[]string{"test"}, "update", "false"},
		{[]string{"test"}, "filter", ""},
		{[]string{"test"}, "golden-dir", ""},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cmd := NewRootCommand()
			sub, _, err := cmd.Find(tt.path)
			require.NoError(t, err)

			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "flag --%s", tt.flag)
			assert.Equal(t, tt.value, f.DefValue)
		})
	}
}

func TestFormatValidation(t *testing.T) {
	_, _, err := executeCommand(t, "--format", "xml", "products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMissingConfigFile(t *testing.T) {
	useTempStore(t)

	_, _, err := executeCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "products")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUnknownBackendFromEnv(t *testing.T) {
	useTempStore(t)
	t.Setenv("STOREFRONT_BACKEND_KIND", "postgres")

	_, _, err := executeCommand(t, "products")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
