package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/engine"
	"github.com/roach88/storefront/internal/identity"
	"github.com/roach88/storefront/internal/store"
)

func decodeData[T any](t *testing.T, stdout string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func seedStore(t *testing.T) {
	t.Helper()
	path := writeFile(t, t.TempDir(), "seed.yaml", seedYAML)
	_, _, err := executeCommand(t, "seed", path)
	require.NoError(t, err)
}

func TestUserAddAndList(t *testing.T) {
	useTempStore(t)

	stdout, _, err := executeCommand(t, "--format", "json", "user", "add", " Admin@Campus.edu ", "--password", "secret")
	require.NoError(t, err)
	p := decodeData[identity.Principal](t, stdout)
	assert.Equal(t, "admin@campus.edu", p.Email)
	assert.NotEmpty(t, p.UID)

	stdout, _, err = executeCommand(t, "--format", "json", "user", "list")
	require.NoError(t, err)
	users := decodeData[[]store.User](t, stdout)
	require.Len(t, users, 1)
	assert.Equal(t, p.UID, users[0].UID)

	stdout, _, err = executeCommand(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "EMAIL")
	assert.Contains(t, stdout, "admin@campus.edu")
}

func TestUserAdd_Duplicate(t *testing.T) {
	useTempStore(t)

	_, _, err := executeCommand(t, "user", "add", "admin@campus.edu", "--password", "secret")
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "user", "add", "ADMIN@campus.edu", "--password", "other")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "account already exists")
}

func TestUserAdd_RequiresPassword(t *testing.T) {
	useTempStore(t)

	_, _, err := executeCommand(t, "user", "add", "admin@campus.edu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestProductsCommand_DisplayOrder(t *testing.T) {
	useTempStore(t)
	seedStore(t)

	stdout, _, err := executeCommand(t, "--format", "json", "products")
	require.NoError(t, err)
	result := decodeData[ProductsResult](t, stdout)

	assert.Equal(t, "sqlite", result.Backend)
	assert.Equal(t, []string{"mug", "pen", "hoodie"}, catalog.Snapshot(result.Products).IDs())

	stdout, _, err = executeCommand(t, "products")
	require.NoError(t, err)
	assert.Contains(t, stdout, "$8.00")
	assert.Contains(t, stdout, catalog.PlaceholderImageURL)
}

func TestProductsCommand_Empty(t *testing.T) {
	useTempStore(t)

	stdout, _, err := executeCommand(t, "products")
	require.NoError(t, err)
	assert.Equal(t, "No products.\n", stdout)
}

func TestViewCommand_Student(t *testing.T) {
	useTempStore(t)
	seedStore(t)

	stdout, _, err := executeCommand(t, "view")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Campus Store")
	assert.Contains(t, stdout, "Campus Mug  $8.00  [In Stock]")
	assert.Contains(t, stdout, "Hoodie  $35.50  [Out of Stock]")
}

func TestViewCommand_Admin(t *testing.T) {
	useTempStore(t)
	seedStore(t)
	_, _, err := executeCommand(t, "user", "add", "admin@campus.edu", "--password", "secret")
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "--format", "json", "view", "--email", "admin@campus.edu", "--password", "secret")
	require.NoError(t, err)
	v := decodeData[engine.ViewDescription](t, stdout)
	assert.Equal(t, engine.ModeAdminDashboard, v.Mode)
	assert.True(t, v.IsAuthenticated)
	assert.Equal(t, "admin@campus.edu", v.Principal)
	assert.Equal(t, []string{"mug", "pen", "hoodie"}, catalog.Snapshot(v.Products).IDs())

	stdout, _, err = executeCommand(t, "view", "--email", "admin@campus.edu", "--password", "secret", "--mode", "student_catalog")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Campus Store")
}

func TestViewCommand_Errors(t *testing.T) {
	useTempStore(t)
	_, _, err := executeCommand(t, "user", "add", "admin@campus.edu", "--password", "secret")
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"wrong password", []string{"view", "--email", "admin@campus.edu", "--password", "nope"}, ExitFailure},
		{"bad mode", []string{"view", "--mode", "kiosk"}, ExitCommandError},
		{"admin without credentials", []string{"view", "--mode", "admin_dashboard"}, ExitCommandError},
		{"email without password", []string{"view", "--email", "admin@campus.edu"}, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
		})
	}
}

func TestViewCommand_LoginFailedMessage(t *testing.T) {
	useTempStore(t)

	stdout, _, err := executeCommand(t, "view", "--email", "nobody@campus.edu", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, stdout, "Login failed: auth/invalid-credential")
}
