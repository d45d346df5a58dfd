// Package inspect triages solver logs: tail checks for successful runs,
// lookup of the latest solver log of a job, and discovery of logs in a
// campaign directory tree.
package inspect

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"benchtree/internal/storage"
)

// Markers a solver prints once a run has completed.
var successMarkers = []string{"Finalising", "End"}

const tailChunk = 4096

// IsSuccessful reports whether the last two lines of the log contain a
// completion marker. Only the tail of the file is read.
func IsSuccessful(path string) (bool, error) {
	lines, err := tail(path, 2)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		for _, m := range successMarkers {
			if strings.Contains(line, m) {
				return true, nil
			}
		}
	}
	return false, nil
}

// tail returns up to n last lines of a file, reading backwards in chunks.
// A trailing newline does not start an extra empty line.
func tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	var buf []byte
	for offset := size; offset > 0; {
		step := int64(tailChunk)
		if offset < step {
			step = offset
		}
		offset -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, offset); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)
		if bytes.Count(bytes.TrimSuffix(buf, []byte("\n")), []byte("\n")) >= n {
			break
		}
	}

	text := strings.TrimSuffix(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// LatestRelevantLog returns the log of the first history record, excluding
// the most recent one, whose command mentions the solver application. File
// references are returned as paths inside the job's case directory. The result
// is empty when nothing matches or the case does not exist yet.
func LatestRelevantLog(job *storage.Job, solver string) string {
	if solver == "" || !job.Exists() {
		return ""
	}
	history := job.Doc.History
	if len(history) == 0 {
		return ""
	}
	for _, rec := range history[:len(history)-1] {
		if !strings.Contains(rec.Cmd, solver) {
			continue
		}
		if ref := rec.LogRef(); ref != "" {
			return filepath.Join(job.CasePath(), ref)
		}
		return rec.Log
	}
	return ""
}
