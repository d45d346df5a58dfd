package core

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"benchtree/internal/logging"
	"benchtree/internal/storage"
	"benchtree/pkg/utils"

	"github.com/google/go-cmp/cmp"
)

// dotToken replaces '.' in statepoint keys, which may not contain dots.
const dotToken = "_dot_"

// PathMapping maps a job id to its path in the human readable view.
type PathMapping map[string]string

// Expansion is the result of walking a variation tree.
type Expansion struct {
	Root       *storage.Job
	Paths      PathMapping
	Operations []string
	// Jobs lists every job below Root in creation order.
	Jobs []*storage.Job
}

// Leaves returns the jobs without child variations.
func (e *Expansion) Leaves() []*storage.Job {
	var out []*storage.Job
	for _, j := range e.Jobs {
		if j.IsLeaf() {
			out = append(out, j)
		}
	}
	return out
}

// accumulator collects results across the recursive walk.
type accumulator struct {
	paths PathMapping
	ops   map[string]struct{}
	jobs  []*storage.Job
}

// Expander materializes jobs from a variation tree.
type Expander struct {
	Project  *storage.Project
	CaseType string
	// Accept prunes unsupported variants; nil accepts everything.
	Accept func(storage.Statepoint) bool

	logger *logging.Logger
}

func NewExpander(project *storage.Project, caseType string, accept func(storage.Statepoint) bool, logger *logging.Logger) *Expander {
	return &Expander{
		Project:  project.Canonical(),
		CaseType: caseType,
		Accept:   accept,
		logger:   logging.OrNop(logger),
	}
}

// Expand walks nodes below root. Branches that do not apply are pruned
// silently; only persistence failures abort the walk.
func (e *Expander) Expand(root *storage.Job, nodes []VariationNode) (*Expansion, error) {
	acc := &accumulator{
		paths: PathMapping{root.ID: "base/"},
		ops:   make(map[string]struct{}),
	}
	if err := e.expand(acc, root, nodes); err != nil {
		return nil, err
	}

	ops := make([]string, 0, len(acc.ops))
	for op := range acc.ops {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return &Expansion{Root: root, Paths: acc.paths, Operations: ops, Jobs: acc.jobs}, nil
}

func (e *Expander) expand(acc *accumulator, parent *storage.Job, nodes []VariationNode) error {
	for _, node := range nodes {
		if !parentMatches(node.Parent, parent.Statepoint) {
			e.logger.Debug("variation does not apply to parent", "operation", node.Operation, "parent", parent.ID)
			continue
		}

		key := strings.ReplaceAll(node.Key, ".", dotToken)
		for _, value := range node.Values {
			if !includeValue(value) {
				continue
			}

			var (
				args    map[string]any
				keys    []string
				segment string
			)
			if key == "" {
				fields, ok := value.(map[string]any)
				if !ok {
					e.logger.Warn("schema variation value is not a mapping, skipping",
						"operation", node.Operation, "value", value)
					continue
				}
				args = fields
				keys = sortedKeys(fields)
				segment = expandSchema(node.Schema, flatten(fields, "")) + "/"
			} else {
				args = map[string]any{key: value}
				keys = []string{key}
				pathKey := key
				if node.Operation == "shell" {
					pathKey = filepath.Base(strings.ReplaceAll(key, dotToken, "."))
				}
				segment = fmt.Sprintf("%s/%s/", pathKey, formatValue(value))
			}

			sp := parent.Statepoint.Clone()
			sp["case"] = e.CaseType
			sp["operation"] = node.Operation
			sp["has_child"] = node.HasChild()
			for k, v := range args {
				sp[k] = v
			}
			if e.Accept != nil && !e.Accept(sp) {
				e.logger.Debug("unsupported variant pruned", "operation", node.Operation, "value", value)
				continue
			}

			job, err := e.Project.OpenJob(sp)
			if err != nil {
				return fmt.Errorf("open job for %s: %w", node.Operation, err)
			}
			job.Doc.OperationHash = operationHash(node, value)
			job.Doc.BaseID = parent.ID
			job.Doc.Keys = keys
			job.Doc.Parameters = node.Parameters
			job.Doc.PreBuild = node.PreBuild
			job.Doc.PostBuild = node.PostBuild
			job.Doc.State = ""
			if err := job.Save(); err != nil {
				return fmt.Errorf("save job %s: %w", job.ID, err)
			}

			acc.paths[job.ID] = acc.paths[parent.ID] + sanitizeSegment(segment)
			acc.jobs = append(acc.jobs, job)

			if node.HasChild() {
				if err := e.expand(acc, job, node.Variation); err != nil {
					return err
				}
			}
		}
		acc.ops[node.Operation] = struct{}{}
	}
	return nil
}

// parentMatches applies a parent filter: at least one filter key must be
// present on the parent statepoint with an equal value.
func parentMatches(filter map[string]any, parent storage.Statepoint) bool {
	if len(filter) == 0 {
		return true
	}
	norm, err := storage.Normalize(filter)
	if err != nil {
		return false
	}
	want, _ := norm.(map[string]any)
	for k, v := range want {
		if got, ok := parent[k]; ok && cmp.Equal(got, v) {
			return true
		}
	}
	return false
}

// includeValue evaluates the optional "if" flag of a mapping value.
func includeValue(value any) bool {
	m, ok := value.(map[string]any)
	if !ok {
		return true
	}
	cond, ok := m["if"]
	if !ok {
		return true
	}
	return truthy(cond)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case int:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// operationHash identifies the node and value a job came from. It is
// independent of the job id.
func operationHash(node VariationNode, value any) string {
	n, _ := json.Marshal(node)
	v, _ := json.Marshal(value)
	return utils.MD5String(string(n) + string(v))
}

// flatten joins nested mapping keys with '/'.
func flatten(m map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "/" + k
		}
		if sub, ok := v.(map[string]any); ok {
			for fk, fv := range flatten(sub, key) {
				out[fk] = fv
			}
			continue
		}
		out[key] = v
	}
	return out
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// expandSchema fills {name} placeholders from fields. Without a schema the
// values are joined in key order. Unknown placeholders stay as written.
func expandSchema(schema string, fields map[string]any) string {
	if schema == "" {
		parts := make([]string, 0, len(fields))
		for _, k := range sortedKeys(fields) {
			if k == "if" {
				continue
			}
			parts = append(parts, formatValue(fields[k]))
		}
		return strings.Join(parts, "_")
	}
	return placeholder.ReplaceAllStringFunc(schema, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := fields[name]; ok {
			return formatValue(v)
		}
		return m
	})
}

// sanitizeSegment makes a view path segment: spaces become underscores,
// parentheses are dropped and only the part after the last '>' is kept.
func sanitizeSegment(segment string) string {
	segment = strings.ReplaceAll(segment, " ", "_")
	segment = strings.NewReplacer("(", "", ")", "").Replace(segment)
	if i := strings.LastIndex(segment, ">"); i >= 0 {
		segment = segment[i+1:]
	}
	return segment
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatFloat(t, 64)
	case float32:
		return formatFloat(float64(t), 32)
	default:
		return fmt.Sprint(t)
	}
}

// formatFloat spells floats the way campaign authors see them in view
// paths: exponent form below 1e-4 and from 1e16 on, a trailing ".0" on
// integral values.
func formatFloat(f float64, bitSize int) string {
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, bitSize)
	}
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
