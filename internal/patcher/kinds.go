// Package patcher renders linear solver settings for a solver/domain/executor
// combination and patches them into case configuration files.
package patcher

import (
	"slices"
	"strings"
)

type SolverKind string

const (
	SolverCG       SolverKind = "CG"
	SolverBiCGStab SolverKind = "BiCGStab"
	SolverSmooth   SolverKind = "smooth"
	SolverIR       SolverKind = "IR"
)

type DomainKind string

const (
	DomainOF  DomainKind = "OF"
	DomainGKO DomainKind = "GKO"
)

// Backend is the capability class an executor belongs to.
type Backend string

const (
	BackendRef  Backend = "Ref"
	BackendOMP  Backend = "OMP"
	BackendCUDA Backend = "CUDA"
	BackendMPI  Backend = "MPI"
)

type ExecutorKind string

const (
	ExecutorReference ExecutorKind = "Reference"
	ExecutorOMP       ExecutorKind = "omp"
	ExecutorCUDA      ExecutorKind = "cuda"
	ExecutorMPI       ExecutorKind = "mpi"
)

var executorBackend = map[ExecutorKind]Backend{
	ExecutorReference: BackendRef,
	ExecutorOMP:       BackendOMP,
	ExecutorCUDA:      BackendCUDA,
	ExecutorMPI:       BackendMPI,
}

// solverDomains maps each solver to the domains implementing it and the
// prefix the domain puts in front of the solver name.
var solverDomains = map[SolverKind]map[DomainKind]string{
	SolverCG:       {DomainOF: "P", DomainGKO: "GKO"},
	SolverBiCGStab: {DomainOF: "P", DomainGKO: "GKO"},
	SolverSmooth:   {DomainOF: ""},
	SolverIR:       {DomainGKO: "GKO"},
}

// domainBackends lists the preconditioners each backend of a domain supports.
var domainBackends = map[DomainKind]map[Backend][]string{
	DomainOF: {
		BackendRef: {"none", "DIC", "DILU", "FDIC", "GAMG"},
		BackendMPI: {"none", "DIC", "DILU", "FDIC", "GAMG"},
	},
	DomainGKO: {
		BackendRef:  {"none", "BJ", "ILU", "IC"},
		BackendOMP:  {"none", "BJ", "ILU", "IC"},
		BackendCUDA: {"none", "BJ", "ILU", "ISAI"},
	},
}

func ParseSolver(s string) (SolverKind, bool) {
	for k := range solverDomains {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return "", false
}

func ParseDomain(s string) (DomainKind, bool) {
	for k := range domainBackends {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return "", false
}

// ParseExecutor accepts an executor name ("cuda") or its backend name ("CUDA", "Ref").
func ParseExecutor(s string) (ExecutorKind, bool) {
	for k, b := range executorBackend {
		if strings.EqualFold(string(k), s) || strings.EqualFold(string(b), s) {
			return k, true
		}
	}
	return "", false
}

// Backend returns the capability class of the executor.
func (e ExecutorKind) Backend() Backend {
	return executorBackend[e]
}

// Supports reports whether the domain runs on backend b with preconditioner pre.
func (d DomainKind) Supports(b Backend, pre string) bool {
	pres, ok := domainBackends[d][b]
	if !ok {
		return false
	}
	return slices.Contains(pres, pre)
}
