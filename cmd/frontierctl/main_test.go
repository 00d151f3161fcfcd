package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("http://a\n\nhttp://b\n"), 0o644))

	reqs, err := readSeeds(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "http://a", string(reqs[0].Fingerprint))
	assert.Equal(t, "http://b", string(reqs[1].Fingerprint))
}

func TestReadSeedsMissingFile(t *testing.T) {
	_, err := readSeeds(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
