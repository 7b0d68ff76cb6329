// Package atomicfile writes files through a temporary sibling that is renamed
// into place, so readers never observe a partially written file.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultPerm = 0o644

// File is an in-progress write. Nothing is visible at the target path until
// Commit succeeds.
type File struct {
	*os.File
	path     string
	finished bool
}

// Create opens a temporary file next to path.
func Create(path string) (*File, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", path, err)
	}
	return &File{File: tmp, path: path}, nil
}

// Commit flushes the temporary file and renames it over the target path.
func (f *File) Commit() error {
	if f.finished {
		return fmt.Errorf("atomicfile: %s already finished", f.path)
	}
	f.finished = true
	tmp := f.File.Name()
	if err := f.File.Sync(); err != nil {
		f.File.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.File.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Chmod(tmp, defaultPerm); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", f.path, err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit, so it can be
// deferred unconditionally.
func (f *File) Abort() {
	if f.finished {
		return
	}
	f.finished = true
	f.File.Close()
	os.Remove(f.File.Name())
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	defer f.Abort()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Commit()
}

// CreateDir makes a private temporary directory next to path. Fill it and
// hand it to ReplaceDir, or remove it on failure.
func CreateDir(path string) (string, error) {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", path, err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp directory for %s: %w", path, err)
	}
	return tmp, nil
}

// ReplaceDir moves the directory tmp to path, removing whatever was there.
func ReplaceDir(tmp, path string) error {
	if err := os.Chmod(tmp, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove old %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
