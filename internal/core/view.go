package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"benchtree/internal/storage"
)

// WriteView builds a tree of symlinks from the view paths of the leaf jobs
// to their job directories. An existing view directory is left untouched.
func WriteView(viewDir string, exp *Expansion) (bool, error) {
	if _, err := os.Stat(viewDir); err == nil {
		return false, nil
	}
	for _, job := range exp.Leaves() {
		rel, ok := exp.Paths[job.ID]
		if !ok {
			continue
		}
		link := filepath.Join(viewDir, filepath.FromSlash(strings.TrimSuffix(rel, "/")))
		if err := os.MkdirAll(filepath.Dir(link), 0775); err != nil {
			return true, fmt.Errorf("create view dir: %w", err)
		}
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		if err := os.Symlink(job.Path(), link); err != nil {
			return true, fmt.Errorf("link %s: %w", rel, err)
		}
	}
	return true, nil
}

// ReadView maps job ids back to their paths relative to the view directory.
func ReadView(viewDir string) (map[string]string, error) {
	out := make(map[string]string)
	if _, err := os.Stat(viewDir); os.IsNotExist(err) {
		return out, nil
	}
	err := filepath.WalkDir(viewDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(viewDir, path)
		if err != nil {
			return err
		}
		out[filepath.Base(target)] = filepath.ToSlash(rel)
		return nil
	})
	return out, err
}

// copyTree copies a case directory, keeping file modes and symlinks.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(target, data, info.Mode().Perm())
		default:
			return nil
		}
	})
}

// fetchCase creates the job's case directory: the base job copies the
// configured origin, every other job copies its parent's case.
func fetchCase(project *storage.Project, job *storage.Job) error {
	if job.Exists() {
		return nil
	}
	var src string
	if job.Doc.IsBase {
		if params, ok := job.Doc.Parameters.(map[string]any); ok {
			src, _ = params["origin"].(string)
		}
		if src == "" {
			return os.MkdirAll(job.CasePath(), 0775)
		}
	} else {
		parent, err := project.JobByID(job.Doc.BaseID)
		if err != nil {
			return fmt.Errorf("parent of %s: %w", job.ID, err)
		}
		if !parent.Exists() {
			return fmt.Errorf("parent case %s does not exist", parent.ID)
		}
		src = parent.CasePath()
	}
	tmp := job.CasePath() + ".partial"
	_ = os.RemoveAll(tmp)
	if err := copyTree(src, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("copy case from %s: %w", src, err)
	}
	return os.Rename(tmp, job.CasePath())
}
