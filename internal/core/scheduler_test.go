package core

import (
	"testing"

	"benchtree/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(jobs []*storage.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func TestLevelsFollowBaseIDs(t *testing.T) {
	_, exp := expand(t, []VariationNode{
		{Operation: "refineMesh", Key: "resolution", Values: []any{1, 2}, Variation: []VariationNode{
			{Operation: "decompose", Key: "np", Values: []any{4}},
		}},
	})
	all := append([]*storage.Job{exp.Root}, exp.Jobs...)

	levels, err := NewScheduler().Levels(all, nil)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, []string{exp.Root.ID}, ids(levels[0]))
	assert.Len(t, levels[1], 2)
	assert.Len(t, levels[2], 2)
	for _, j := range levels[2] {
		assert.Equal(t, "decompose", j.Operation())
	}

	// excluded jobs keep the depth of the others
	levels, err = NewScheduler().Levels(all, func(j *storage.Job) bool {
		return j.Operation() == "decompose"
	})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Len(t, levels[0], 2)
}

func TestLevelsDetectsCycles(t *testing.T) {
	p, err := storage.Open(t.TempDir(), nil)
	require.NoError(t, err)
	a, err := p.OpenJob(storage.Statepoint{"name": "a"})
	require.NoError(t, err)
	b, err := p.OpenJob(storage.Statepoint{"name": "b"})
	require.NoError(t, err)
	a.Doc.BaseID = b.ID
	b.Doc.BaseID = a.ID

	_, err = NewScheduler().Levels([]*storage.Job{a, b}, nil)
	assert.ErrorContains(t, err, "cycle")
}

func TestOperationSteps(t *testing.T) {
	p, err := storage.Open(t.TempDir(), nil)
	require.NoError(t, err)
	s := NewScheduler()

	job := func(sp storage.Statepoint, keys []string, params any) *storage.Job {
		j, err := p.OpenJob(sp)
		require.NoError(t, err)
		j.Doc.Keys = keys
		j.Doc.Parameters = params
		return j
	}

	tests := []struct {
		name string
		job  *storage.Job
		want []string
	}{
		{
			name: "parameter list",
			job:  job(storage.Statepoint{"operation": "shell", "x": 1}, []string{"x"}, []any{"blockMesh", "checkMesh"}),
			want: []string{"blockMesh", "checkMesh"},
		},
		{
			name: "parameter string",
			job:  job(storage.Statepoint{"operation": "shell", "x": 2}, []string{"x"}, "blockMesh"),
			want: []string{"blockMesh"},
		},
		{
			name: "key as script",
			job:  job(storage.Statepoint{"operation": "shell", "_dot_/Allrun": "-np 4"}, []string{"_dot_/Allrun"}, nil),
			want: []string{"./Allrun -np 4"},
		},
		{
			name: "empty parameter list falls back to key",
			job:  job(storage.Statepoint{"operation": "shell", "_dot_/Allrun": "-np 8"}, []string{"_dot_/Allrun"}, []any{}),
			want: []string{"./Allrun -np 8"},
		},
		{
			name: "other operation",
			job:  job(storage.Statepoint{"operation": "linear_solver", "solver": "CG"}, []string{"solver"}, []any{"ignored"}),
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.OperationSteps(tt.job))
		})
	}
}
