package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFileMatchesHashString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello solver"), 0644))

	h, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashString("hello solver"), h)
}

func TestHashFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simpleFoam.log")
	_, err := HashFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), path)
}

func TestMD5String(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5String(""))
	assert.Len(t, MD5String("resolution"), 32)
}
