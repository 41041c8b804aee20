package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Screenshots writes attempt screenshots under one directory.
type Screenshots struct {
	Dir string
}

// Save writes png for a posting attempt and returns its path.
func (s Screenshots) Save(postingID string, attempt int, png []byte) (string, error) {
	if len(png) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%d-%s.png", postingID, attempt, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(s.Dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, png, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}
