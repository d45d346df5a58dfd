package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"benchtree/internal/ledger"
	"benchtree/internal/logging"
	"benchtree/internal/storage"
	"benchtree/pkg/utils"
)

// DefaultLogThreshold is the output size (in characters) above which step
// output is moved to a log file.
const DefaultLogThreshold = 1000

const continuation = `\`

var envToken = regexp.MustCompile(`\$\{env\.(\w+)\}`)

// OutcomeKind classifies how a step ended.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	CommandFailed
	CommandNotFound
	UnexpectedError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case CommandFailed:
		return "command failed"
	case CommandNotFound:
		return "command not found"
	default:
		return "unexpected error"
	}
}

// StepOutcome is the result of one command step.
type StepOutcome struct {
	Kind   OutcomeKind
	Output string
	Detail string
}

// State maps the outcome onto the history record state.
func (o StepOutcome) State() string {
	if o.Kind == Success {
		return storage.StateSuccess
	}
	return storage.StateFailure
}

// Engine runs command steps for a job and records them in its history.
type Engine struct {
	LogThreshold int
	// Ledger, when set, journals every history record.
	Ledger *ledger.Ledger
	Getenv func(string) string
	Now    func() time.Time

	logger *logging.Logger
}

func NewEngine(threshold int, l *ledger.Ledger, logger *logging.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultLogThreshold
	}
	return &Engine{
		LogThreshold: threshold,
		Ledger:       l,
		Getenv:       os.Getenv,
		Now:          time.Now,
		logger:       logging.OrNop(logger),
	}
}

// StitchSteps joins entries ending in a line continuation with the entry
// that follows. The marker becomes a space.
func StitchSteps(steps []string) []string {
	out := make([]string, 0, len(steps))
	pending := ""
	for _, step := range steps {
		step = pending + step
		pending = ""
		if strings.HasSuffix(step, continuation) {
			pending = strings.TrimSuffix(step, continuation) + " "
			continue
		}
		out = append(out, step)
	}
	if pending != "" {
		out = append(out, strings.TrimRight(pending, " "))
	}
	return out
}

// SubstituteEnv replaces ${env.NAME} tokens; unset variables become empty.
func SubstituteEnv(step string, getenv func(string) string) string {
	return envToken.ReplaceAllStringFunc(step, func(m string) string {
		return getenv(envToken.FindStringSubmatch(m)[1])
	})
}

// Execute runs steps in order inside the job's case directory and appends
// one history record per step. A failing step does not stop the remaining
// ones. It returns false when there was nothing to run; the error reports
// persistence problems only.
func (e *Engine) Execute(ctx context.Context, steps []string, job *storage.Job) (bool, error) {
	if len(steps) == 0 {
		return false, nil
	}
	dir := job.CasePath()
	if err := os.MkdirAll(filepath.Join(dir, ".store"), 0775); err != nil {
		return true, fmt.Errorf("prepare case dir: %w", err)
	}

	for _, step := range StitchSteps(steps) {
		fields := strings.Fields(SubstituteEnv(step, e.Getenv))
		if len(fields) == 0 {
			continue
		}
		name, flags := fields[0], fields[1:]

		outcome := e.run(ctx, name, flags, dir)
		if outcome.Kind != Success {
			e.logger.Error("step failed, check: 'benchtree status --state failure' for more info",
				"job", job.ID, "cmd", name, "outcome", outcome.Kind.String(), "detail", outcome.Detail)
		}
		rec, err := e.newRecord(dir, name, storage.TypeShell, outcome)
		if err != nil {
			return true, err
		}
		rec.Flags = append([]string{}, flags...)
		if err := e.append(job, rec); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (e *Engine) run(ctx context.Context, name string, args []string, dir string) StepOutcome {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return StepOutcome{Kind: Success, Output: out.String()}
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		return StepOutcome{Kind: CommandNotFound, Output: name + " not found", Detail: err.Error()}
	case errors.As(err, &exitErr):
		return StepOutcome{Kind: CommandFailed, Output: out.String(), Detail: err.Error()}
	default:
		return StepOutcome{Kind: UnexpectedError, Output: out.String(), Detail: err.Error()}
	}
}

// ExecuteFunc runs an in-process operation and records it as a logged_func
// entry. The operation's error is recorded, not returned.
func (e *Engine) ExecuteFunc(job *storage.Job, name, args string, fn func() error) (bool, error) {
	outcome := StepOutcome{Kind: Success}
	if err := fn(); err != nil {
		e.logger.Error("operation failed", "job", job.ID, "operation", name, "error", err)
		outcome = StepOutcome{Kind: UnexpectedError, Output: err.Error(), Detail: err.Error()}
	}
	rec, err := e.newRecord(job.CasePath(), name, storage.TypeLoggedFunc, outcome)
	if err != nil {
		return false, err
	}
	rec.Flags = []string{}
	rec.Args = args
	if err := e.append(job, rec); err != nil {
		return false, err
	}
	return outcome.Kind == Success, nil
}

// newRecord builds the history record, moving large output to a log file.
func (e *Engine) newRecord(dir, name, typ string, outcome StepOutcome) (storage.HistoryRecord, error) {
	now := e.Now()
	rec := storage.HistoryRecord{
		Cmd:       name,
		Type:      typ,
		State:     outcome.State(),
		Timestamp: now.Format(storage.TimestampFormat),
		User:      e.Getenv("USER"),
		Hostname:  e.hostname(),
	}
	if utf8.RuneCountInString(outcome.Output) > e.LogThreshold {
		fn, err := storage.NewLogStorage(dir).SaveLog(name, outcome.Output, now)
		if err != nil {
			return rec, fmt.Errorf("write step log: %w", err)
		}
		rec.Log = fn
		rec.LogKind = storage.LogKindFile
		rec.LogHash = utils.HashString(outcome.Output)
	} else {
		rec.Log = outcome.Output
	}
	return rec, nil
}

func (e *Engine) append(job *storage.Job, rec storage.HistoryRecord) error {
	job.AppendHistory(rec)
	if err := job.Save(); err != nil {
		return fmt.Errorf("save history of %s: %w", job.ID, err)
	}
	if e.Ledger != nil {
		if _, err := e.Ledger.Record(job.ID, rec); err != nil {
			e.logger.Warn("cannot journal history record", "job", job.ID, "error", err)
		}
	}
	return nil
}

func (e *Engine) hostname() string {
	if h := e.Getenv("HOST"); h != "" {
		return h
	}
	h, _ := os.Hostname()
	return h
}
