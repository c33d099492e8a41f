package transitopscli

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteUsage(t *testing.T) {
	assert.ErrorIs(t, Execute(nil), ErrUsage)
	assert.ErrorIs(t, Execute([]string{"serve"}), ErrUsage)

	var buf bytes.Buffer
	PrintUsage(&buf)
	assert.Contains(t, buf.String(), "transitops setup")
	assert.Contains(t, buf.String(), "transitops run")
}

func TestSetupWritesEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, Execute([]string{"setup", "--env-file", path, "--api-base-url", "https://rides.example.com"}))

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rides.example.com", values["API_BASE_URL"])
	assert.Equal(t, ":3000", values["CLIENT_ADDR"])

	key, err := hex.DecodeString(values["CSRF_KEY"])
	require.NoError(t, err)
	assert.Len(t, key, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetupRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KEEP=1\n"), 0o600))

	err := Execute([]string{"setup", "--env-file", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, Execute([]string{"setup", "--env-file", path, "--force"}))
	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.NotContains(t, values, "KEEP")
}

func TestSetupRejectsRelativeBaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	err := Execute([]string{"setup", "--env-file", path, "--api-base-url", "localhost:8000"})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
