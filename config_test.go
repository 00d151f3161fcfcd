package frontier

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultConfig(t *testing.T) {
	Config.MaxNextRequests = 9999
	SetDefaultConfig()
	assert.Equal(t, 50, Config.MaxNextRequests)
	assert.Equal(t, 20, Config.BatchMultiplier)
	assert.Equal(t, 0.25, Config.RefreshCeilingFraction)
	assert.Equal(t, 10000, Config.WorkingSetCacheSize)
	assert.False(t, Config.InMemory)
}

func TestLoadConfigFileMissingUsesDefaults(t *testing.T) {
	err := LoadConfigFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50, Config.MaxNextRequests)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frontier.yaml")
	contents := []byte("in_memory: true\nmax_next_requests: 7\nbatch_multiplier: 3\n")
	require.NoError(t, ioutil.WriteFile(path, contents, 0o644))

	require.NoError(t, LoadConfigFile(path))
	assert.True(t, Config.InMemory)
	assert.Equal(t, 7, Config.MaxNextRequests)
	assert.Equal(t, 3, Config.BatchMultiplier)

	SetDefaultConfig()
}

func TestAssertConfigInvariantsRejectsBadValues(t *testing.T) {
	SetDefaultConfig()
	Config.RefreshCeilingFraction = 2.0
	err := assertConfigInvariants()
	require.Error(t, err)
	SetDefaultConfig()
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
