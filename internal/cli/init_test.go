package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BUDGET_TEST_FROM_FILE=file\nBUDGET_TEST_PRESET=file\n"), 0o600))

	t.Setenv("BUDGET_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("BUDGET_TEST_FROM_FILE") })

	LoadEnvFile(path)

	assert.Equal(t, "file", os.Getenv("BUDGET_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("BUDGET_TEST_PRESET"), "existing variables must win")

	// A missing file is not an error.
	LoadEnvFile(filepath.Join(dir, "missing.env"))
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DATA_BACKEND", "spreadsheet")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestGracefulShutdownStop(t *testing.T) {
	ctx, stop := GracefulShutdown(SetupLogger("error", "test"))
	stop()
	<-ctx.Done()
	assert.Error(t, ctx.Err())
}
