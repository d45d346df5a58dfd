package patcher

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrAnchorNotFound = errors.New("anchor not found")
	ErrInvalidParams  = errors.New("invalid solver parameters")
)

// Variant is an accepted solver/domain/executor/preconditioner combination.
type Variant struct {
	Solver         SolverKind
	Domain         DomainKind
	Executor       ExecutorKind
	Preconditioner string
}

// Resolve checks a combination against the capability tables. Unknown names
// and unsupported combinations report false.
func Resolve(solver, preconditioner, executor, domain string) (Variant, bool) {
	s, ok := ParseSolver(solver)
	if !ok {
		return Variant{}, false
	}
	d, ok := ParseDomain(domain)
	if !ok {
		return Variant{}, false
	}
	if _, ok := solverDomains[s][d]; !ok {
		return Variant{}, false
	}
	e, ok := ParseExecutor(executor)
	if !ok {
		return Variant{}, false
	}
	if preconditioner == "" {
		preconditioner = "none"
	}
	if !d.Supports(e.Backend(), preconditioner) {
		return Variant{}, false
	}
	return Variant{Solver: s, Domain: d, Executor: e, Preconditioner: preconditioner}, true
}

// Completable reports whether a partial combination can still be supported.
// An empty executor or preconditioner matches any.
func Completable(solver, preconditioner, executor, domain string) bool {
	s, ok := ParseSolver(solver)
	if !ok {
		return false
	}
	d, ok := ParseDomain(domain)
	if !ok {
		return false
	}
	if _, ok := solverDomains[s][d]; !ok {
		return false
	}
	for e, b := range executorBackend {
		if executor != "" {
			if want, ok := ParseExecutor(executor); !ok || want != e {
				continue
			}
		}
		pres, ok := domainBackends[d][b]
		if !ok {
			continue
		}
		if preconditioner == "" || slices.Contains(pres, preconditioner) {
			return true
		}
	}
	return false
}

// MatrixSolver is the solver name as the domain spells it.
func (v Variant) MatrixSolver() string {
	return solverDomains[v.Solver][v.Domain] + string(v.Solver)
}

// Params are the numeric settings of the rendered block.
type Params struct {
	Field           string
	Tolerance       float64
	MinIters        int
	MaxIters        int
	UpdateSysMatrix bool
}

func DefaultParams() Params {
	return Params{Field: "p", Tolerance: 1e-06, MinIters: 0, MaxIters: 1000}
}

func (p Params) Validate() error {
	if p.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance %g is negative", ErrInvalidParams, p.Tolerance)
	}
	if p.MinIters < 0 {
		return fmt.Errorf("%w: minIter %d is negative", ErrInvalidParams, p.MinIters)
	}
	if p.MinIters > p.MaxIters {
		return fmt.Errorf("%w: minIter %d exceeds maxIter %d", ErrInvalidParams, p.MinIters, p.MaxIters)
	}
	return nil
}

// Apply renders the solver block for variant v.
func Apply(v Variant, p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	field := p.Field
	if field == "" {
		field = "p"
	}
	update := "no"
	if p.UpdateSysMatrix {
		update = "yes"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\"%s.*\"\n{\n", field)
	fmt.Fprintf(&b, "    solver %s;\n", v.MatrixSolver())
	fmt.Fprintf(&b, "    tolerance %s;\n", strconv.FormatFloat(p.Tolerance, 'g', -1, 64))
	b.WriteString("    relTol 0.0;\n")
	b.WriteString("    smoother none;\n")
	fmt.Fprintf(&b, "    preconditioner %s;\n", v.Preconditioner)
	fmt.Fprintf(&b, "    minIter %d;\n", p.MinIters)
	fmt.Fprintf(&b, "    maxIter %d;\n", p.MaxIters)
	fmt.Fprintf(&b, "    updateSysMatrix %s;\n", update)
	b.WriteString("    sort yes;\n")
	fmt.Fprintf(&b, "    executor %s;\n", v.Executor)
	b.WriteString("}")
	return b.String(), nil
}

// Patch replaces the first literal occurrence of anchor in the file at path with block.
func Patch(path, anchor, block string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := string(data)
	if !strings.Contains(content, anchor) {
		return fmt.Errorf("%s: %w: %q", path, ErrAnchorNotFound, anchor)
	}
	content = strings.Replace(content, anchor, block, 1)
	return os.WriteFile(path, []byte(content), info.Mode().Perm())
}
