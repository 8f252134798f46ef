// Package filestore persists small JSON documents on local disk with atomic
// replacement and optional timestamped backups.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrNotExist is returned by ReadJSON when the file is absent.
var ErrNotExist = errors.New("filestore: file does not exist")

// backupLayout is appended to backup file names.
const backupLayout = "20060102T150405.000000000"

// ReadJSON decodes the file at path into dest.
func ReadJSON(path string, dest any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotExist
		}
		return fmt.Errorf("filestore: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("filestore: decode %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v to path atomically: the document is written to a temp
// file in the same directory, synced, then renamed over the target.
func WriteJSON(path string, v any, perm os.FileMode) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("filestore: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(raw); err != nil {
		cleanup()
		return fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("filestore: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: replace %s: %w", path, err)
	}
	return nil
}

// Backup copies path to "<path>.<timestamp>.bak". A missing source is not an
// error; the returned name is empty in that case.
func Backup(path string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("filestore: open %s: %w", path, err)
	}
	defer func() {
		_ = src.Close()
	}()
	name := fmt.Sprintf("%s.%s.bak", path, now.UTC().Format(backupLayout))
	dst, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("filestore: create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("filestore: copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("filestore: close backup: %w", err)
	}
	return name, nil
}

// PruneBackups removes the oldest backups of path so that at most keep
// remain. keep <= 0 disables pruning.
func PruneBackups(path string, keep int) error {
	if keep <= 0 {
		return nil
	}
	names, err := filepath.Glob(path + ".*.bak")
	if err != nil {
		return fmt.Errorf("filestore: list backups: %w", err)
	}
	if len(names) <= keep {
		return nil
	}
	// The timestamp layout sorts lexically in time order.
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("filestore: remove backup %s: %w", name, err)
		}
	}
	return nil
}
