package envutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestWriteThenLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, WriteDotEnv(path, map[string]string{
		"TRANSITOPS_TEST_BASE_URL": "http://backend.local:4000",
		"TRANSITOPS_TEST_ADDR":     ":3000",
	}, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Setenv("TRANSITOPS_TEST_ADDR", ":9999")
	os.Unsetenv("TRANSITOPS_TEST_BASE_URL")
	t.Cleanup(func() { os.Unsetenv("TRANSITOPS_TEST_BASE_URL") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "http://backend.local:4000", os.Getenv("TRANSITOPS_TEST_BASE_URL"))
	assert.Equal(t, ":9999", os.Getenv("TRANSITOPS_TEST_ADDR"), "existing variables win")
}

func TestWriteDotEnvRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, WriteDotEnv(path, map[string]string{"A": "1"}, false))

	err := WriteDotEnv(path, map[string]string{"A": "2"}, false)
	assert.Error(t, err)

	assert.NoError(t, WriteDotEnv(path, map[string]string{"A": "2"}, true))
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("TRANSITOPS_TEST_INT", "42")
	t.Setenv("TRANSITOPS_TEST_BOOL", "yes")
	t.Setenv("TRANSITOPS_TEST_DUR", "90s")
	t.Setenv("TRANSITOPS_TEST_BAD", "soon")

	assert.Equal(t, 42, Int("TRANSITOPS_TEST_INT", 1))
	assert.Equal(t, 1, Int("TRANSITOPS_TEST_BAD", 1))
	assert.True(t, Bool("TRANSITOPS_TEST_BOOL", false))
	assert.False(t, Bool("TRANSITOPS_TEST_UNSET", false))
	assert.Equal(t, 90*time.Second, Duration("TRANSITOPS_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, Duration("TRANSITOPS_TEST_BAD", time.Second))
	assert.Equal(t, "fallback", OrDefault("TRANSITOPS_TEST_UNSET", "fallback"))
}
