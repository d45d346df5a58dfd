package core

import (
	"fmt"
	"path/filepath"

	"benchtree/internal/patcher"
	"benchtree/internal/storage"
)

const defaultSolverFile = "system/fvSolution"

// applyLinearSolver renders the solver block for the variant in the job's
// statepoint and patches it into the case. Node parameters may set file and
// anchor; numeric solver settings come from parameters or the statepoint.
func applyLinearSolver(job *storage.Job) error {
	v, present, ok := patcher.FromStatepoint(job.Statepoint)
	if !present {
		return fmt.Errorf("statepoint has no complete %s/%s choice", patcher.KeySolver, patcher.KeyDomain)
	}
	if !ok {
		return fmt.Errorf("unsupported solver variant %v", job.Statepoint)
	}

	params, _ := job.Doc.Parameters.(map[string]any)
	merged := make(map[string]any, len(params))
	for k, v := range params {
		merged[k] = v
	}
	// settings varied in the statepoint win over node parameters
	for _, k := range []string{"tolerance", "min_iters", "max_iters", "update_sys_matrix"} {
		if v, ok := job.Statepoint[k]; ok {
			merged[k] = v
		}
	}
	settings, err := patcher.ParamsFrom(merged)
	if err != nil {
		return err
	}
	block, err := patcher.Apply(v, settings)
	if err != nil {
		return err
	}

	file, _ := params["file"].(string)
	if file == "" {
		file = defaultSolverFile
	}
	anchor, _ := params["anchor"].(string)
	if anchor == "" {
		anchor = patcher.DefaultAnchor
	}
	return patcher.Patch(filepath.Join(job.CasePath(), filepath.FromSlash(file)), anchor, block)
}
