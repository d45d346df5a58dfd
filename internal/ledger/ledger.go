// Package ledger keeps a hash-chained JSON lines journal of executed steps.
// Job documents are rewritten on every save; the journal is only ever appended
// to, so the step history of a campaign survives a crash mid-write.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"benchtree/internal/storage"
	"benchtree/pkg/utils"
)

type Ledger struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
}

// Open loads an existing journal or creates an empty one.
// A trailing line cut short by a crash is dropped.
func Open(path string) (*Ledger, error) {
	l := &Ledger{
		entries: make([]*Entry, 0),
		path:    path,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}

	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			if i == len(lines)-1 {
				// unterminated last line: an append interrupted by a crash
				if err := os.Truncate(path, int64(len(data)-len(lines[i]))); err != nil {
					return nil, fmt.Errorf("truncate partial ledger entry: %w", err)
				}
				break
			}
			return nil, fmt.Errorf("failed to decode ledger entry %d: %w", len(l.entries), err)
		}
		l.entries = append(l.entries, &e)
	}
	return l, nil
}

// Path returns the journal file.
func (l *Ledger) Path() string { return l.path }

// Record appends a history record of a job to the journal.
func (l *Ledger) Record(jobID string, rec storage.HistoryRecord) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	logHash := rec.LogHash
	if logHash == "" && rec.LogRef() == "" && rec.Log != "" {
		logHash = utils.HashString(rec.Log)
	}
	prev := ""
	if len(l.entries) > 0 {
		prev = l.entries[len(l.entries)-1].Hash
	}
	e, err := NewEntry(len(l.entries), jobID, rec.Cmd, rec.Type, rec.State, rec.LogRef(), logHash, prev)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return nil, fmt.Errorf("write ledger file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync ledger file: %w", err)
	}
	l.entries = append(l.entries, e)
	return e, nil
}

// Entries returns a snapshot of the journal.
func (l *Ledger) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForJob returns the entries recorded for one job in append order.
func (l *Ledger) ForJob(jobID string) []*Entry {
	var out []*Entry
	for _, e := range l.Entries() {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out
}

// LastHash returns the last entry hash (or empty if none)
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Hash
}
