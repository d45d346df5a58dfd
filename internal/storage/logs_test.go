package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLogNamesFileAfterCommand(t *testing.T) {
	dir := t.TempDir()
	ls := NewLogStorage(dir)
	now := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)

	name, err := ls.SaveLog("/opt/of/bin/simpleFoam", "solving", now)
	require.NoError(t, err)
	assert.Equal(t, "simpleFoam_2024-03-01_12:30:05.log", name)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "solving", string(data))

	second, err := ls.SaveLog("simpleFoam", "again", now)
	require.NoError(t, err)
	assert.Equal(t, "simpleFoam_2024-03-01_12:30:05_1.log", second)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "blockMesh", sanitize("block Mesh"))
	assert.Equal(t, "step", sanitize("$$$"))
	assert.Equal(t, "run.sh", sanitize("run.sh"))
}
