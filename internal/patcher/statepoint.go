package patcher

import (
	"fmt"
	"strconv"
)

// Statepoint keys describing a linear solver variant.
const (
	KeySolver         = "solver"
	KeyPreconditioner = "preconditioner"
	KeyExecutor       = "executor"
	KeyDomain         = "domain"
)

// DefaultAnchor is the placeholder a case's fvSolution carries for the pressure solver.
const DefaultAnchor = "p{}"

// FromStatepoint resolves the linear solver variant a statepoint describes.
// present is false unless the statepoint names both a solver and a domain.
func FromStatepoint(sp map[string]any) (v Variant, present, ok bool) {
	solver, domain, present := solverChoice(sp)
	if !present {
		return Variant{}, false, true
	}
	executor := str(sp[KeyExecutor])
	if executor == "" {
		executor = string(ExecutorReference)
	}
	v, ok = Resolve(solver, str(sp[KeyPreconditioner]), executor, domain)
	return v, true, ok
}

// AcceptsStatepoint keeps statepoints that do not name a complete solver
// choice or name a supported one. Statepoints with further variations below
// them (has_child) are kept while some executor and preconditioner could
// still complete the choice.
func AcceptsStatepoint(sp map[string]any) bool {
	solver, domain, present := solverChoice(sp)
	if !present {
		return true
	}
	if hasChild, _ := sp["has_child"].(bool); hasChild {
		return Completable(solver, str(sp[KeyPreconditioner]), str(sp[KeyExecutor]), domain)
	}
	_, _, ok := FromStatepoint(sp)
	return ok
}

func solverChoice(sp map[string]any) (solver, domain string, ok bool) {
	s, hasSolver := sp[KeySolver]
	d, hasDomain := sp[KeyDomain]
	if !hasSolver || !hasDomain {
		return "", "", false
	}
	return str(s), str(d), true
}

// ParamsFrom overlays tolerance/min_iters/max_iters/update_sys_matrix/field
// found in m onto the defaults.
func ParamsFrom(m map[string]any) (Params, error) {
	p := DefaultParams()
	if v, ok := m["field"]; ok {
		p.Field = str(v)
	}
	if v, ok := m["tolerance"]; ok {
		f, err := strconv.ParseFloat(str(v), 64)
		if err != nil {
			return p, fmt.Errorf("%w: tolerance %v", ErrInvalidParams, v)
		}
		p.Tolerance = f
	}
	for key, dst := range map[string]*int{"min_iters": &p.MinIters, "max_iters": &p.MaxIters} {
		v, ok := m[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(str(v))
		if err != nil {
			return p, fmt.Errorf("%w: %s %v", ErrInvalidParams, key, v)
		}
		*dst = n
	}
	if v, ok := m["update_sys_matrix"]; ok {
		switch str(v) {
		case "true", "yes":
			p.UpdateSysMatrix = true
		}
	}
	return p, nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
