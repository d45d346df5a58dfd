package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Job is a unit of work: an immutable statepoint and a mutable document.
type Job struct {
	ID         string
	Statepoint Statepoint
	Doc        *Document

	// shard holds what this writer persisted to its own shard file.
	shard   *Document
	project *Project
}

// Path is the job's directory inside the workspace.
func (j *Job) Path() string {
	return filepath.Join(j.project.Workspace(), j.ID)
}

// CasePath is the working copy the job's commands run in.
func (j *Job) CasePath() string {
	return filepath.Join(j.Path(), "case")
}

func (j *Job) Project() *Project { return j.project }

func (j *Job) canonicalPath() string {
	return filepath.Join(j.Path(), DocumentFile)
}

func (j *Job) shardPath() string {
	return filepath.Join(j.Path(), ShardFileName(j.project.shard))
}

// Reload re-reads the job's documents from disk.
func (j *Job) Reload() error {
	doc, err := readDocument(j.canonicalPath())
	if err != nil {
		return fmt.Errorf("job %s: %w", j.ID, err)
	}
	j.Doc = doc
	j.shard = nil
	if j.project.shard == "" {
		return nil
	}
	shard, err := readDocument(j.shardPath())
	if err != nil {
		return fmt.Errorf("job %s: %w", j.ID, err)
	}
	j.shard = shard
	// records of this shard not yet merged are part of the job's view
	merged := doc.Merged[ShardFileName(j.project.shard)].History
	if merged < len(shard.History) {
		j.Doc.History = append(j.Doc.History, shard.History[merged:]...)
	}
	return nil
}

// AppendHistory adds a record to the end of the job's history.
func (j *Job) AppendHistory(rec HistoryRecord) {
	j.Doc.History = append(j.Doc.History, rec)
	if j.shard != nil {
		j.shard.History = append(j.shard.History, rec)
	}
}

// SetState updates the free-form job state.
func (j *Job) SetState(state string) {
	j.Doc.State = state
	if j.shard != nil {
		j.shard.State = state
	}
}

// Save persists the document. Shard writers only write their shard file;
// metadata (parameters, hooks, keys) is written by canonical writers.
func (j *Job) Save() error {
	if j.shard != nil {
		return writeJSON(j.shardPath(), j.shard)
	}
	return writeJSON(j.canonicalPath(), j.Doc)
}

// Exists reports whether the job's case directory has been created.
func (j *Job) Exists() bool {
	_, err := os.Stat(j.CasePath())
	return err == nil
}

// IsLeaf reports whether the job has no child variations.
func (j *Job) IsLeaf() bool {
	hasChild, _ := j.Statepoint["has_child"].(bool)
	return !hasChild
}

// Operation returns the operation name recorded in the statepoint.
func (j *Job) Operation() string {
	op, _ := j.Statepoint["operation"].(string)
	return op
}
