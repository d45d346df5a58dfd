package patcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveValidity(t *testing.T) {
	tests := []struct {
		name                          string
		solver, pre, executor, domain string
		want                          bool
	}{
		{"gko cuda block jacobi", "CG", "BJ", "cuda", "GKO", true},
		{"gko backend name", "BiCGStab", "ILU", "OMP", "GKO", true},
		{"of reference dic", "CG", "DIC", "Reference", "OF", true},
		{"of mpi", "smooth", "none", "mpi", "OF", true},
		{"of has no cuda backend", "CG", "none", "cuda", "OF", false},
		{"gko has no mpi backend", "CG", "BJ", "mpi", "GKO", false},
		{"preconditioner not on backend", "CG", "IC", "cuda", "GKO", false},
		{"of preconditioner on gko", "CG", "DIC", "omp", "GKO", false},
		{"solver not in domain", "IR", "none", "Reference", "OF", false},
		{"smooth only in of", "smooth", "none", "omp", "GKO", false},
		{"unknown solver", "GMRES", "none", "Reference", "OF", false},
		{"unknown executor", "CG", "none", "sycl", "GKO", false},
		{"unknown domain", "CG", "none", "Reference", "PETSC", false},
		{"empty preconditioner means none", "CG", "", "Ref", "GKO", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Resolve(tt.solver, tt.pre, tt.executor, tt.domain)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestApplyRendersBlock(t *testing.T) {
	v, ok := Resolve("CG", "BJ", "cuda", "GKO")
	require.True(t, ok)

	block, err := Apply(v, DefaultParams())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(block, "\"p.*\"\n{\n"))
	for _, line := range []string{
		"solver GKOCG;",
		"tolerance 1e-06;",
		"relTol 0.0;",
		"smoother none;",
		"preconditioner BJ;",
		"minIter 0;",
		"maxIter 1000;",
		"updateSysMatrix no;",
		"sort yes;",
		"executor cuda;",
	} {
		assert.Contains(t, block, line)
	}
}

func TestApplyOFPrefix(t *testing.T) {
	v, ok := Resolve("CG", "DIC", "Reference", "OF")
	require.True(t, ok)
	assert.Equal(t, "PCG", v.MatrixSolver())

	s, ok := Resolve("smooth", "none", "Reference", "OF")
	require.True(t, ok)
	assert.Equal(t, "smooth", s.MatrixSolver())
}

func TestApplyValidatesBounds(t *testing.T) {
	v, ok := Resolve("CG", "none", "Reference", "OF")
	require.True(t, ok)

	_, err := Apply(v, Params{Tolerance: -1, MaxIters: 10})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = Apply(v, Params{Tolerance: 1e-3, MinIters: 20, MaxIters: 10})
	assert.ErrorIs(t, err, ErrInvalidParams)

	block, err := Apply(v, Params{Field: "U", Tolerance: 0, MinIters: 5, MaxIters: 5, UpdateSysMatrix: true})
	require.NoError(t, err)
	assert.Contains(t, block, "\"U.*\"")
	assert.Contains(t, block, "updateSysMatrix yes;")
}

func TestPatchReplacesFirstAnchorOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fvSolution")
	require.NoError(t, os.WriteFile(path, []byte("solvers\n{\n    p{}\n    p{}\n}\n"), 0640))

	require.NoError(t, Patch(path, DefaultAnchor, "BLOCK"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "solvers\n{\n    BLOCK\n    p{}\n}\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
}

func TestPatchMissingAnchor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fvSolution")
	require.NoError(t, os.WriteFile(path, []byte("solvers {}"), 0644))
	assert.ErrorIs(t, Patch(path, DefaultAnchor, "BLOCK"), ErrAnchorNotFound)
}

func TestCompletable(t *testing.T) {
	tests := []struct {
		solver, pre, executor, domain string
		want                          bool
	}{
		{"CG", "", "", "GKO", true},
		{"CG", "ISAI", "", "GKO", true},
		{"CG", "ISAI", "omp", "GKO", false},
		{"CG", "DIC", "", "OF", true},
		{"CG", "DIC", "", "GKO", false},
		{"IR", "", "", "OF", false},
		{"smooth", "", "cuda", "OF", false},
		{"CG", "", "bogus", "OF", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Completable(tt.solver, tt.pre, tt.executor, tt.domain),
			"%s/%s/%s/%s", tt.domain, tt.solver, tt.pre, tt.executor)
	}
}

func TestStatepointHelpers(t *testing.T) {
	assert.True(t, AcceptsStatepoint(map[string]any{"resolution": 2}))
	assert.True(t, AcceptsStatepoint(map[string]any{"solver": "CG", "preconditioner": "BJ", "executor": "cuda", "domain": "GKO"}))
	assert.False(t, AcceptsStatepoint(map[string]any{"solver": "CG", "preconditioner": "DIC", "executor": "cuda", "domain": "OF"}))
	assert.False(t, AcceptsStatepoint(map[string]any{"solver": "CG", "domain": "GKO", "executor": "omp", "preconditioner": "ISAI"}))

	// no domain yet, or a solver application rather than a linear solver
	assert.True(t, AcceptsStatepoint(map[string]any{"solver": "CG"}))
	assert.True(t, AcceptsStatepoint(map[string]any{"solver": "simpleFoam"}))
	_, present, ok := FromStatepoint(map[string]any{"solver": "simpleFoam"})
	assert.False(t, present)
	assert.True(t, ok)

	// executor varied further down the tree
	assert.True(t, AcceptsStatepoint(map[string]any{"solver": "CG", "domain": "GKO", "preconditioner": "ISAI", "has_child": true}))
	assert.False(t, AcceptsStatepoint(map[string]any{"solver": "CG", "domain": "GKO", "preconditioner": "ISAI", "has_child": false}))
	assert.False(t, AcceptsStatepoint(map[string]any{"solver": "IR", "domain": "OF", "has_child": true}))

	v, present, ok := FromStatepoint(map[string]any{"solver": "CG", "domain": "OF"})
	assert.True(t, present)
	assert.True(t, ok)
	assert.Equal(t, ExecutorReference, v.Executor)
	assert.Equal(t, "none", v.Preconditioner)

	p, err := ParamsFrom(map[string]any{"tolerance": "1e-8", "max_iters": float64(50), "update_sys_matrix": true})
	require.NoError(t, err)
	assert.Equal(t, 1e-8, p.Tolerance)
	assert.Equal(t, 50, p.MaxIters)
	assert.True(t, p.UpdateSysMatrix)

	_, err = ParamsFrom(map[string]any{"min_iters": "many"})
	assert.ErrorIs(t, err, ErrInvalidParams)
}
