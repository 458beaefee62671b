package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Items []string `json:"items"`
}

func TestLoad_Missing(t *testing.T) {
	var d doc
	err := Load(filepath.Join(t.TempDir(), "nope.json"), &d)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var d doc
	err := Load(path, &d)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotExist)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	require.NoError(t, EnsureDir(path))

	require.NoError(t, Save(path, doc{Items: []string{"a", "b"}}))
	require.NoError(t, Save(path, doc{Items: []string{"c"}}))

	var d doc
	require.NoError(t, Load(path, &d))
	assert.Equal(t, []string{"c"}, d.Items)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}
