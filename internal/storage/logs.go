package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogStorage writes step output that is too large to keep inline.
type LogStorage struct {
	BaseDir string
}

func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveLog writes output to <cmd>_<timestamp>.log inside BaseDir and returns
// the file name relative to BaseDir. A numeric suffix keeps two logs of the
// same command within one second apart.
func (ls *LogStorage) SaveLog(cmd, output string, now time.Time) (string, error) {
	if err := os.MkdirAll(ls.BaseDir, 0775); err != nil {
		return "", err
	}

	stem := fmt.Sprintf("%s_%s", sanitize(filepath.Base(cmd)), now.Format(TimestampFormat))
	filename := stem + ".log"
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(ls.BaseDir, filename), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if os.IsExist(err) {
			filename = fmt.Sprintf("%s_%d.log", stem, i)
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.WriteString(output); err != nil {
			f.Close()
			return "", err
		}
		return filename, f.Close()
	}
}

// sanitize removes characters that do not belong in a file name
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "step"
	}
	return string(clean)
}
