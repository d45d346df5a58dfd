package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"benchtree/internal/logging"
	"benchtree/internal/patcher"
	"benchtree/internal/storage"

	"golang.org/x/sync/errgroup"
)

var ErrMissingPrerequisite = errors.New("missing prerequisite")

// Runner ties together expander, scheduler, engine and the project store.
type Runner struct {
	Project   *storage.Project
	Scheduler *Scheduler
	Engine    *Engine
	// Tasks bounds the jobs run in parallel; <= 0 means no bound.
	Tasks int
	// Force reruns jobs already in state success.
	Force bool

	logger *logging.Logger
}

func NewRunner(project *storage.Project, engine *Engine, tasks int, logger *logging.Logger) *Runner {
	return &Runner{
		Project:   project,
		Scheduler: NewScheduler(),
		Engine:    engine,
		Tasks:     tasks,
		logger:    logging.OrNop(logger),
	}
}

// CheckPrerequisites fails when a required environment variable is unset.
func CheckPrerequisites(required []string, getenv func(string) string) error {
	for _, name := range required {
		if getenv(name) == "" {
			return fmt.Errorf("%w: environment variable %s is not set", ErrMissingPrerequisite, name)
		}
	}
	return nil
}

// CreateTree creates the base job and every variant below it, then writes
// the view. Nothing is created when a prerequisite is missing.
func (r *Runner) CreateTree(cfg *CampaignConfig, requireEnv []string) (*Expansion, error) {
	if err := CheckPrerequisites(requireEnv, os.Getenv); err != nil {
		return nil, err
	}
	project := r.Project.Canonical()

	base, err := project.OpenJob(storage.Statepoint{"case": cfg.Case.Type, "has_child": true})
	if err != nil {
		return nil, fmt.Errorf("open base job: %w", err)
	}
	if base.Doc.State == "" {
		base.Doc.State = "ready"
	}
	base.Doc.IsBase = true
	base.Doc.Parameters = cfg.Case.Parameters
	base.Doc.PreBuild = cfg.Case.PreBuild
	base.Doc.PostBuild = cfg.Case.PostBuild
	if err := base.Save(); err != nil {
		return nil, fmt.Errorf("save base job: %w", err)
	}

	accept := func(sp storage.Statepoint) bool { return patcher.AcceptsStatepoint(sp) }
	exp, err := NewExpander(project, cfg.Case.Type, accept, r.logger).Expand(base, cfg.Variation)
	if err != nil {
		return nil, err
	}
	r.logger.Info("variation tree created", "jobs", len(exp.Jobs)+1, "operations", exp.Operations)

	created, err := WriteView(project.ViewDir(), exp)
	if err != nil {
		return exp, err
	}
	if created {
		r.logger.Info("view written", "dir", project.ViewDir())
	}
	return exp, nil
}

// Run executes the jobs whose operation is in operations (all jobs when
// empty), level by level. The base job always runs so its case exists.
func (r *Runner) Run(ctx context.Context, operations []string) error {
	jobs, err := r.Project.Jobs()
	if err != nil {
		return err
	}
	include := func(j *storage.Job) bool {
		if !r.Force && j.Doc.State == storage.StateSuccess {
			return false
		}
		return j.Doc.IsBase || len(operations) == 0 || slices.Contains(operations, j.Operation())
	}
	levels, err := r.Scheduler.Levels(jobs, include)
	if err != nil {
		return err
	}

	for i, level := range levels {
		r.logger.Info("running level", "level", i, "jobs", len(level))
		g, gctx := errgroup.WithContext(ctx)
		if r.Tasks > 0 {
			g.SetLimit(r.Tasks)
		}
		for _, job := range level {
			g.Go(func() error {
				return r.RunJob(gctx, job)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// RunJob fetches the job's case and runs its pre_build hooks, its
// operation and its post_build hooks. The job ends in state success only
// if every step of this run succeeded.
func (r *Runner) RunJob(ctx context.Context, job *storage.Job) error {
	logger := r.logger.With("job", job.ID, "operation", job.Operation())
	start := len(job.Doc.History)

	fetched, err := r.Engine.ExecuteFunc(job, OperationFetchCase, job.Doc.BaseID, func() error {
		return fetchCase(r.Project, job)
	})
	if err != nil {
		return err
	}
	if fetched {
		for _, steps := range [][]string{job.Doc.PreBuild, r.Scheduler.OperationSteps(job)} {
			if _, err := r.Engine.Execute(ctx, steps, job); err != nil {
				return err
			}
		}
		if job.Operation() == OperationLinearSolver {
			if _, err := r.Engine.ExecuteFunc(job, OperationLinearSolver, fmt.Sprint(job.Statepoint), func() error {
				return applyLinearSolver(job)
			}); err != nil {
				return err
			}
		}
		if _, err := r.Engine.Execute(ctx, job.Doc.PostBuild, job); err != nil {
			return err
		}
	}

	state := storage.StateSuccess
	for _, rec := range job.Doc.History[start:] {
		if rec.State != storage.StateSuccess {
			state = storage.StateFailure
			break
		}
	}
	job.SetState(state)
	if err := job.Save(); err != nil {
		return err
	}
	logger.Info("job finished", "state", state, "steps", len(job.Doc.History)-start)
	return nil
}
