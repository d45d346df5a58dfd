package ledger

import (
	"fmt"

	"benchtree/pkg/utils"
)

// VerifyChain re-computes each entry hash and link to detect tampering
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", e.Index, err)
		}
		if h != e.Hash {
			return fmt.Errorf("hash mismatch at index %d", e.Index)
		}
		if i > 0 && e.PrevHash != l.entries[i-1].Hash {
			return fmt.Errorf("prev hash mismatch at index %d", e.Index)
		}
		if e.Index != i {
			return fmt.Errorf("index mismatch: expected %d got %d", i, e.Index)
		}
	}
	return nil
}

// VerifyLogs checks that every log file referenced by the journal still has
// the recorded content. resolve maps a job id and log reference to a path.
func (l *Ledger) VerifyLogs(resolve func(jobID, ref string) string) error {
	for _, e := range l.Entries() {
		if e.LogRef == "" || e.LogHash == "" {
			continue
		}
		h, err := utils.HashFile(resolve(e.JobID, e.LogRef))
		if err != nil {
			return fmt.Errorf("log of entry %d: %w", e.Index, err)
		}
		if h != e.LogHash {
			return fmt.Errorf("log hash mismatch at index %d (%s)", e.Index, e.LogRef)
		}
	}
	return nil
}
