package inspect

import (
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// LogFile is a solver log found below a case root.
type LogFile struct {
	Path     string
	Campaign string
	Tags     []string
}

type DiscoverOptions struct {
	// Marker must be part of the file name.
	Marker string
	// Suffix must end the file name.
	Suffix string
}

func (o DiscoverOptions) withDefaults() DiscoverOptions {
	if o.Marker == "" {
		o.Marker = "Foam"
	}
	if o.Suffix == "" {
		o.Suffix = ".log"
	}
	return o
}

// DiscoverLogs walks the campaigns directly below root and descends each
// through its tag directories down to leaf case directories (directories
// without subdirectories), yielding the solver logs found there. The walk
// happens while the sequence is consumed; unreadable directories are skipped.
func DiscoverLogs(root string, opts DiscoverOptions) iter.Seq[LogFile] {
	opts = opts.withDefaults()
	return func(yield func(LogFile) bool) {
		campaigns, err := os.ReadDir(root)
		if err != nil {
			return
		}
		for _, c := range campaigns {
			if !c.IsDir() {
				continue
			}
			if !walkTags(filepath.Join(root, c.Name()), c.Name(), nil, opts, yield) {
				return
			}
		}
	}
}

// walkTags returns false once the consumer stopped the iteration.
func walkTags(dir, campaign string, tags []string, opts DiscoverOptions, yield func(LogFile) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
		}
	}

	if len(subdirs) > 0 {
		for _, sub := range subdirs {
			next := append(append([]string(nil), tags...), sub)
			if !walkTags(filepath.Join(dir, sub), campaign, next, opts, yield) {
				return false
			}
		}
		return true
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.Contains(name, opts.Marker) || !strings.HasSuffix(name, opts.Suffix) {
			continue
		}
		lf := LogFile{
			Path:     filepath.Join(dir, name),
			Campaign: campaign,
			Tags:     append([]string(nil), tags...),
		}
		if !yield(lf) {
			return false
		}
	}
	return true
}
