package core

import (
	"fmt"
	"sort"
	"strings"

	"benchtree/internal/storage"
)

// Operations with built-in behavior.
const (
	OperationShell        = "shell"
	OperationLinearSolver = "linear_solver"
	OperationFetchCase    = "fetch_case"
)

// Scheduler decides the order jobs run in and the steps each job runs.
type Scheduler struct{}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Levels groups jobs by their depth below the base job. A job's case is
// copied from its parent's, so each level has to finish before the next.
// Only jobs accepted by include are returned; depth is computed over all jobs.
func (s *Scheduler) Levels(all []*storage.Job, include func(*storage.Job) bool) ([][]*storage.Job, error) {
	byID := make(map[string]*storage.Job, len(all))
	for _, j := range all {
		byID[j.ID] = j
	}
	depth := make(map[string]int, len(all))
	var depthOf func(j *storage.Job, seen map[string]bool) (int, error)
	depthOf = func(j *storage.Job, seen map[string]bool) (int, error) {
		if d, ok := depth[j.ID]; ok {
			return d, nil
		}
		if seen[j.ID] {
			return 0, fmt.Errorf("job %s: base_id cycle", j.ID)
		}
		seen[j.ID] = true
		d := 0
		if parent, ok := byID[j.Doc.BaseID]; ok && j.Doc.BaseID != "" {
			pd, err := depthOf(parent, seen)
			if err != nil {
				return 0, err
			}
			d = pd + 1
		}
		depth[j.ID] = d
		return d, nil
	}

	var levels [][]*storage.Job
	for _, j := range all {
		d, err := depthOf(j, map[string]bool{})
		if err != nil {
			return nil, err
		}
		if include != nil && !include(j) {
			continue
		}
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], j)
	}

	out := levels[:0]
	for _, lvl := range levels {
		if len(lvl) == 0 {
			continue
		}
		sort.Slice(lvl, func(a, b int) bool { return lvl[a].ID < lvl[b].ID })
		out = append(out, lvl)
	}
	return out, nil
}

// OperationSteps returns the command steps an operation contributes for a
// job. shell runs the node parameters as commands, or without parameters the
// varied key as a script with the value as its arguments. Other operations
// have no commands of their own.
func (s *Scheduler) OperationSteps(job *storage.Job) []string {
	if job.Operation() != OperationShell {
		return nil
	}
	switch p := job.Doc.Parameters.(type) {
	case []any:
		steps := make([]string, 0, len(p))
		for _, v := range p {
			if str, ok := v.(string); ok {
				steps = append(steps, str)
			}
		}
		if len(steps) > 0 {
			return steps
		}
	case string:
		return []string{p}
	}
	if len(job.Doc.Keys) == 1 {
		key := job.Doc.Keys[0]
		if v, ok := job.Statepoint[key]; ok {
			script := strings.ReplaceAll(key, dotToken, ".")
			return []string{strings.TrimSpace(script + " " + formatValue(v))}
		}
	}
	return nil
}
