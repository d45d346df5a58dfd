package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// shardFiles lists the shard document files of a job in name order.
// The canonical document is never part of the list.
func (j *Job) shardFiles() ([]string, error) {
	entries, err := os.ReadDir(j.Path())
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == DocumentFile {
			continue
		}
		if strings.HasPrefix(name, shardPrefix) && strings.HasSuffix(name, shardSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Merge folds every shard document of the job into the canonical document.
//
// data and history entries are appended in shard name order, the first
// non-nil cache is kept and the last non-empty shard state wins. The canonical
// document remembers how far each shard was merged, so merging again without
// new shard content leaves it unchanged.
func Merge(j *Job) error {
	logger := j.project.logger.With("job", j.ID)

	doc, err := readDocument(j.canonicalPath())
	if err != nil {
		return fmt.Errorf("merge %s: %w", j.ID, err)
	}
	names, err := j.shardFiles()
	if err != nil {
		return fmt.Errorf("merge %s: %w", j.ID, err)
	}
	if len(names) == 0 {
		return nil
	}
	if doc.Merged == nil {
		doc.Merged = make(map[string]ShardMark)
	}

	for _, name := range names {
		shard, err := readDocument(filepath.Join(j.Path(), name))
		if err != nil {
			// a shard is complete or absent, a broken one counts as absent
			logger.Warn("skipping unreadable shard", "shard", name, "error", err)
			continue
		}
		mark := doc.Merged[name]
		if mark.History > len(shard.History) || mark.Data > len(shard.Data) {
			logger.Warn("shard shrank since last merge, skipping", "shard", name)
			continue
		}
		doc.History = append(doc.History, shard.History[mark.History:]...)
		doc.Data = append(doc.Data, shard.Data[mark.Data:]...)
		doc.Merged[name] = ShardMark{History: len(shard.History), Data: len(shard.Data)}

		switch {
		case shard.Cache == nil:
		case doc.Cache == nil:
			doc.Cache = shard.Cache
		case !cmp.Equal(doc.Cache, shard.Cache):
			logger.Warn("shard cache diverges from merged cache, keeping the first", "shard", name)
		}
		if shard.State != "" {
			doc.State = shard.State
		}
	}

	if err := writeJSON(j.canonicalPath(), doc); err != nil {
		return fmt.Errorf("merge %s: %w", j.ID, err)
	}
	return j.Reload()
}

// MergeAll merges the shards of every job in the project.
func (p *Project) MergeAll() error {
	jobs, err := p.Jobs()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := Merge(j); err != nil {
			return err
		}
	}
	return nil
}
