package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
case:
  type: lidDrivenCavity
  solver: icoFoam
  origin: /cases/cavity
  pre_build: [blockMesh]
variation:
  - operation: refineMesh
    key: resolution
    values: [1, 2]
    variation:
      - operation: shell
        key: ./Allrun
        parent: {resolution: 2}
        values: ["-np 4"]
`))
	require.NoError(t, err)

	assert.Equal(t, "lidDrivenCavity", cfg.Case.Type)
	assert.Equal(t, "icoFoam", cfg.Case.Solver)
	assert.Equal(t, []string{"blockMesh"}, cfg.Case.PreBuild)
	assert.Equal(t, "/cases/cavity", cfg.Case.Parameters["origin"])

	require.Len(t, cfg.Variation, 1)
	node := cfg.Variation[0]
	assert.True(t, node.HasChild())
	assert.Equal(t, []any{1, 2}, node.Values)
	assert.Equal(t, map[string]any{"resolution": 2}, node.Variation[0].Parent)
	assert.False(t, node.Variation[0].HasChild())
}

func TestParseConfigAcceptsJSON(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"case": {"type": "pitzDaily"}, "variation": [{"operation": "decompose", "key": "np", "values": [2, 4]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "pitzDaily", cfg.Case.Type)
	assert.Len(t, cfg.Variation[0].Values, 2)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing type", "case: {}\n", "case.type is required"},
		{"missing operation", "case: {type: x}\nvariation:\n  - key: a\n    values: [1]\n", "variation[0]: operation is required"},
		{"nested missing operation", "case: {type: x}\nvariation:\n  - operation: a\n    variation:\n      - values: [1]\n", "variation[0].variation[0]"},
		{"bad yaml", "case: [", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigResolvesOrigin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte("case:\n  type: cavity\n  origin: cases/cavity\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	want := filepath.Join(dir, "cases", "cavity")
	assert.Equal(t, want, cfg.Case.Origin)
	assert.Equal(t, want, cfg.Case.Parameters["origin"])

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
