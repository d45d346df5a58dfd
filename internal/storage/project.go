package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"benchtree/internal/logging"
	"benchtree/pkg/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("job not found")

// Statepoint is the immutable identity input of a job.
type Statepoint map[string]any

// ID derives the job id from the canonical JSON encoding of the statepoint.
// encoding/json sorts map keys, so equal statepoints give equal ids.
func (sp Statepoint) ID() (string, error) {
	data, err := json.Marshal(map[string]any(sp))
	if err != nil {
		return "", fmt.Errorf("encode statepoint: %w", err)
	}
	return utils.MD5String(string(data)), nil
}

// Clone returns a shallow copy; values are treated as immutable.
func (sp Statepoint) Clone() Statepoint {
	out := make(Statepoint, len(sp))
	for k, v := range sp {
		out[k] = v
	}
	return out
}

// Normalize round-trips v through JSON so values decoded from YAML
// (int, map[string]interface{}) compare equal to values read back from disk.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Project is a directory holding one workspace of jobs.
type Project struct {
	root   string
	shard  string
	logger *logging.Logger
}

// Open creates (if needed) the project directory layout under root.
func Open(root string, logger *logging.Logger) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	p := &Project{root: abs, logger: logging.OrNop(logger)}
	for _, dir := range []string{p.Workspace(), p.StoreDir()} {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return p, nil
}

// WithShard returns a view of the project whose jobs persist their
// history to the shard file of the given suffix. An empty suffix picks a random one.
func (p *Project) WithShard(suffix string) *Project {
	if suffix == "" {
		suffix = uuid.NewString()[:8]
	}
	cp := *p
	cp.shard = suffix
	return &cp
}

func (p *Project) Root() string      { return p.root }
func (p *Project) Workspace() string { return filepath.Join(p.root, "workspace") }
func (p *Project) StoreDir() string  { return filepath.Join(p.root, ".store") }
func (p *Project) ViewDir() string   { return filepath.Join(p.root, "view") }
func (p *Project) Shard() string     { return p.shard }
func (p *Project) Logger() *logging.Logger {
	return p.logger
}

// OpenJob returns the job for sp, creating its directory on first use.
func (p *Project) OpenJob(sp Statepoint) (*Job, error) {
	norm, err := Normalize(map[string]any(sp))
	if err != nil {
		return nil, fmt.Errorf("normalize statepoint: %w", err)
	}
	m, _ := norm.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	nsp := Statepoint(m)
	id, err := nsp.ID()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(p.Workspace(), id)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	spPath := filepath.Join(dir, StatepointFile)
	if _, err := os.Stat(spPath); os.IsNotExist(err) {
		if err := writeJSON(spPath, nsp); err != nil {
			return nil, fmt.Errorf("write statepoint: %w", err)
		}
	}
	return p.load(id, nsp)
}

// JobByID opens an existing job.
func (p *Project) JobByID(id string) (*Job, error) {
	data, err := os.ReadFile(filepath.Join(p.Workspace(), id, StatepointFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	var sp Statepoint
	if err := json.Unmarshal(data, &sp); err != nil {
		return nil, fmt.Errorf("decode statepoint of %s: %w", id, err)
	}
	return p.load(id, sp)
}

func (p *Project) load(id string, sp Statepoint) (*Job, error) {
	j := &Job{ID: id, Statepoint: sp, project: p}
	if err := j.Reload(); err != nil {
		return nil, err
	}
	return j, nil
}

// Jobs returns every job in the workspace ordered by id.
func (p *Project) Jobs() ([]*Job, error) {
	entries, err := os.ReadDir(p.Workspace())
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		j, err := p.JobByID(e.Name())
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].ID < jobs[b].ID })
	return jobs, nil
}

// Find returns the jobs whose statepoint contains every filter entry.
func (p *Project) Find(filter map[string]any) ([]*Job, error) {
	norm, err := Normalize(filter)
	if err != nil {
		return nil, err
	}
	want, _ := norm.(map[string]any)
	jobs, err := p.Jobs()
	if err != nil {
		return nil, err
	}
	out := jobs[:0]
	for _, j := range jobs {
		if j.Matches(want) {
			out = append(out, j)
		}
	}
	return out, nil
}

// Matches reports whether every entry of filter (normalized) is present in the statepoint.
func (j *Job) Matches(filter map[string]any) bool {
	for k, v := range filter {
		got, ok := j.Statepoint[k]
		if !ok || !cmp.Equal(got, v) {
			return false
		}
	}
	return true
}

// Canonical returns a view of the project that writes canonical documents.
func (p *Project) Canonical() *Project {
	cp := *p
	cp.shard = ""
	return &cp
}
