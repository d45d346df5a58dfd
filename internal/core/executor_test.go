package core

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"benchtree/internal/ledger"
	"benchtree/internal/storage"
	"benchtree/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newEngine(t *testing.T, env map[string]string) *Engine {
	t.Helper()
	e := NewEngine(DefaultLogThreshold, nil, nil)
	e.Getenv = func(k string) string { return env[k] }
	e.Now = func() time.Time { return fixedNow }
	return e
}

func newJob(t *testing.T) *storage.Job {
	t.Helper()
	p, err := storage.Open(t.TempDir(), nil)
	require.NoError(t, err)
	j, err := p.OpenJob(storage.Statepoint{"case": "cavity", "operation": "shell", "has_child": false})
	require.NoError(t, err)
	return j
}

func historyCmds(j *storage.Job) []string {
	out := make([]string, 0, len(j.Doc.History))
	for _, r := range j.Doc.History {
		out = append(out, r.Cmd)
	}
	return out
}

func TestStitchSteps(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"plain", []string{"a", "b"}, []string{"a", "b"}},
		{"continuation", []string{`blockMesh -overwrite\`, "-case foo"}, []string{"blockMesh -overwrite -case foo"}},
		{"chain", []string{`a\`, `b\`, "c", "d"}, []string{"a b c", "d"}},
		{"dangling", []string{"a", `b\`}, []string{"a", "b"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StitchSteps(tt.in))
		})
	}
}

func TestSubstituteEnv(t *testing.T) {
	env := map[string]string{"FOAM_ETC": "/opt/foam/etc"}
	getenv := func(k string) string { return env[k] }

	assert.Equal(t, "ls /opt/foam/etc/caseDicts", SubstituteEnv("ls ${env.FOAM_ETC}/caseDicts", getenv))
	assert.Equal(t, "echo ", SubstituteEnv("echo ${env.UNSET}", getenv))
	assert.Equal(t, "echo $HOME", SubstituteEnv("echo $HOME", getenv))
}

func TestExecuteNothingToRun(t *testing.T) {
	j := newJob(t)
	ran, err := newEngine(t, nil).Execute(context.Background(), nil, j)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, j.Doc.History)
}

func TestExecuteAppendsHistoryInOrder(t *testing.T) {
	j := newJob(t)
	e := newEngine(t, map[string]string{"USER": "alice", "HOST": "node1"})

	ran, err := e.Execute(context.Background(), []string{"echo hello", "true"}, j)
	require.NoError(t, err)
	assert.True(t, ran)
	_, err = e.Execute(context.Background(), []string{"echo again"}, j)
	require.NoError(t, err)

	assert.Equal(t, []string{"echo", "true", "echo"}, historyCmds(j))
	first := j.Doc.History[0]
	assert.Equal(t, storage.TypeShell, first.Type)
	assert.Equal(t, storage.StateSuccess, first.State)
	assert.Equal(t, "hello\n", first.Log)
	assert.Equal(t, []string{"hello"}, first.Flags)
	assert.Equal(t, "alice", first.User)
	assert.Equal(t, "node1", first.Hostname)
	assert.Equal(t, fixedNow.Format(storage.TimestampFormat), first.Timestamp)
	assert.Equal(t, []string{}, j.Doc.History[1].Flags)

	// the document on disk has the same history
	reloaded, err := j.Project().JobByID(j.ID)
	require.NoError(t, err)
	assert.Equal(t, historyCmds(j), historyCmds(reloaded))
	assert.DirExists(t, filepath.Join(j.CasePath(), ".store"))
}

func TestExecuteClassifiesFailures(t *testing.T) {
	j := newJob(t)
	e := newEngine(t, nil)

	_, err := e.Execute(context.Background(), []string{
		"false",
		"benchtree-no-such-command-xyz --flag",
		"echo still running",
	}, j)
	require.NoError(t, err)

	require.Len(t, j.Doc.History, 3)
	assert.Equal(t, storage.StateFailure, j.Doc.History[0].State)

	notFound := j.Doc.History[1]
	assert.Equal(t, storage.StateFailure, notFound.State)
	assert.Equal(t, "benchtree-no-such-command-xyz not found", notFound.Log)
	assert.Equal(t, []string{"--flag"}, notFound.Flags)

	assert.Equal(t, storage.StateSuccess, j.Doc.History[2].State)
}

func TestRunOutcomeKinds(t *testing.T) {
	e := newEngine(t, nil)
	dir := t.TempDir()
	ctx := context.Background()

	assert.Equal(t, Success, e.run(ctx, "true", nil, dir).Kind)
	assert.Equal(t, CommandFailed, e.run(ctx, "false", nil, dir).Kind)
	assert.Equal(t, CommandNotFound, e.run(ctx, "benchtree-no-such-command-xyz", nil, dir).Kind)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	out := e.run(canceled, "true", nil, dir)
	assert.NotEqual(t, Success, out.Kind)
	assert.Equal(t, storage.StateFailure, out.State())
}

func TestExecuteSubstitutesEnvironment(t *testing.T) {
	j := newJob(t)
	e := newEngine(t, map[string]string{"GREETING": "hi"})

	_, err := e.Execute(context.Background(), []string{"echo ${env.GREETING}"}, j)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", j.Doc.History[0].Log)
	assert.Equal(t, []string{"hi"}, j.Doc.History[0].Flags)
}

func TestExecuteLogThreshold(t *testing.T) {
	j := newJob(t)
	e := newEngine(t, nil)

	atLimit := strings.Repeat("a", DefaultLogThreshold)
	overLimit := strings.Repeat("b", DefaultLogThreshold+1)
	_, err := e.Execute(context.Background(), []string{"printf " + atLimit, "printf " + overLimit}, j)
	require.NoError(t, err)
	require.Len(t, j.Doc.History, 2)

	inline := j.Doc.History[0]
	assert.Equal(t, atLimit, inline.Log)
	assert.Empty(t, inline.LogKind)
	assert.Empty(t, inline.LogRef())

	moved := j.Doc.History[1]
	name := "printf_" + fixedNow.Format(storage.TimestampFormat) + ".log"
	assert.Equal(t, name, moved.Log)
	assert.Equal(t, storage.LogKindFile, moved.LogKind)
	assert.Equal(t, utils.HashString(overLimit), moved.LogHash)
	assert.Equal(t, name, moved.LogRef())

	raw, err := json.Marshal(moved)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, name, fields["log"])
	assert.Equal(t, "file", fields["log_kind"])

	data, err := os.ReadFile(filepath.Join(j.CasePath(), name))
	require.NoError(t, err)
	assert.Equal(t, overLimit, string(data))
}

func TestExecuteFuncRecordsOutcome(t *testing.T) {
	j := newJob(t)
	e := newEngine(t, nil)
	require.NoError(t, os.MkdirAll(j.CasePath(), 0775))

	ok, err := e.ExecuteFunc(j, "fetch_case", "parent", func() error { return nil })
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.ExecuteFunc(j, "linear_solver", "{}", func() error { return errors.New("anchor missing") })
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, j.Doc.History, 2)
	assert.Equal(t, storage.TypeLoggedFunc, j.Doc.History[0].Type)
	assert.Equal(t, "parent", j.Doc.History[0].Args)
	assert.Equal(t, storage.StateSuccess, j.Doc.History[0].State)
	assert.Equal(t, storage.StateFailure, j.Doc.History[1].State)
	assert.Equal(t, "anchor missing", j.Doc.History[1].Log)
}

func TestExecuteJournalsToLedger(t *testing.T) {
	j := newJob(t)
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	e := newEngine(t, nil)
	e.Ledger = l

	_, err = e.Execute(context.Background(), []string{"true", "false"}, j)
	require.NoError(t, err)

	entries := l.ForJob(j.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "true", entries[0].Cmd)
	assert.Equal(t, storage.StateFailure, entries[1].State)
	require.NoError(t, l.VerifyChain())
}
