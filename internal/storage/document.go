package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DocumentFile   = "signac_job_document.json"
	StatepointFile = "signac_statepoint.json"

	shardPrefix = "signac_job_document_"
	shardSuffix = ".json"
)

// Record types
const (
	TypeShell      = "shell"
	TypeLoggedFunc = "logged_func"
)

// Record states
const (
	StateSuccess = "success"
	StateFailure = "failure"
)

// TimestampFormat is used for history records and step log file names.
const TimestampFormat = "2006-01-02_15:04:05"

// LogKindFile marks a history record whose Log names a file in the case directory.
const LogKindFile = "file"

// HistoryRecord is one executed step. Log holds the captured output, or the
// name of the step log file when LogKind is LogKindFile.
type HistoryRecord struct {
	Cmd       string   `json:"cmd"`
	Type      string   `json:"type"`
	Log       string   `json:"log"`
	LogKind   string   `json:"log_kind,omitempty"`
	LogHash   string   `json:"log_hash,omitempty"`
	State     string   `json:"state"`
	Flags     []string `json:"flags"`
	Args      string   `json:"args,omitempty"`
	Timestamp string   `json:"timestamp"`
	User      string   `json:"user"`
	Hostname  string   `json:"hostname"`
}

// LogRef returns the step log file name, or "" when the output is inline.
func (r HistoryRecord) LogRef() string {
	if r.LogKind == LogKindFile {
		return r.Log
	}
	return ""
}

// ShardMark records how much of a shard has been folded into the canonical document.
type ShardMark struct {
	History int `json:"history"`
	Data    int `json:"data"`
}

// Document is the mutable metadata of a job.
type Document struct {
	State         string               `json:"state"`
	IsBase        bool                 `json:"is_base,omitempty"`
	BaseID        string               `json:"base_id,omitempty"`
	Keys          []string             `json:"keys,omitempty"`
	OperationHash string               `json:"operation_hash,omitempty"`
	Parameters    any                  `json:"parameters,omitempty"`
	PreBuild      []string             `json:"pre_build,omitempty"`
	PostBuild     []string             `json:"post_build,omitempty"`
	History       []HistoryRecord      `json:"history"`
	Data          []any                `json:"data,omitempty"`
	Cache         any                  `json:"cache,omitempty"`
	Merged        map[string]ShardMark `json:"merged_shards,omitempty"`
}

func NewDocument() *Document {
	return &Document{History: make([]HistoryRecord, 0)}
}

// readDocument loads a document file. A missing file yields an empty document.
func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, err
	}
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if doc.History == nil {
		doc.History = make([]HistoryRecord, 0)
	}
	return doc, nil
}

// writeJSON writes v next to path and renames it into place, so readers
// see either the previous or the new file, never a partial one.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ShardFileName returns the document file name written by the shard writer suffix.
func ShardFileName(suffix string) string {
	return shardPrefix + suffix + shardSuffix
}
