package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a tamper-evident copy of one history record.
type Entry struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	JobID     string `json:"jobId"`
	Cmd       string `json:"cmd"`
	Type      string `json:"type"`
	State     string `json:"state"`
	LogRef    string `json:"logRef,omitempty"`
	LogHash   string `json:"logHash,omitempty"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
}

// canonicalData returns the JSON bytes used to compute the entry hash.
// It excludes Hash.
func (e *Entry) canonicalData() ([]byte, error) {
	view := struct {
		Index     int    `json:"index"`
		Timestamp string `json:"timestamp"`
		JobID     string `json:"jobId"`
		Cmd       string `json:"cmd"`
		Type      string `json:"type"`
		State     string `json:"state"`
		LogRef    string `json:"logRef"`
		LogHash   string `json:"logHash"`
		PrevHash  string `json:"prevHash"`
	}{
		Index:     e.Index,
		Timestamp: e.Timestamp,
		JobID:     e.JobID,
		Cmd:       e.Cmd,
		Type:      e.Type,
		State:     e.State,
		LogRef:    e.LogRef,
		LogHash:   e.LogHash,
		PrevHash:  e.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA256 over canonicalData
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewEntry constructs an entry and computes its hash.
func NewEntry(index int, jobID, cmd, typ, state, logRef, logHash, prevHash string) (*Entry, error) {
	e := &Entry{
		Index:     index,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		JobID:     jobID,
		Cmd:       cmd,
		Type:      typ,
		State:     state,
		LogRef:    logRef,
		LogHash:   logHash,
		PrevHash:  prevHash,
	}
	h, err := e.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h
	return e, nil
}
