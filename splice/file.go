package splice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SourceStore loads and stores the full text of target files.
type SourceStore interface {
	Load(path string) (string, error)
	// Store fully replaces the content at path.
	Store(path string, text string) error
}

type osSourceStore struct{}

// NewFileSourceStore returns a SourceStore backed by the local filesystem.
// Stores are atomic: content is written to a sibling temp file and renamed over the target.
func NewFileSourceStore() SourceStore {
	return osSourceStore{}
}

func (osSourceStore) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source failed %s: %w", path, err)
	}
	return string(data), nil
}

func (osSourceStore) Store(path string, text string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return writeFileAtomic(path, []byte(text), mode)
}

func writeFileAtomic(dest string, data []byte, mode os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-splice-*")
	if err != nil {
		return fmt.Errorf("create temp file failed: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file failed: %w", err)
	} else if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file failed: %w", err)
	} else if err = tmp.Close(); err != nil {
		return err
	} else if err = os.Chmod(tmpPath, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}
