package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erp/icledger/internal/application/finance"
)

var _ finance.ReportArchive = (*LocalArchive)(nil)

// LocalArchive writes documents under a directory. For development and
// single-host installs.
type LocalArchive struct {
	Root string
}

// NewLocalArchive creates the root directory if needed
func NewLocalArchive(root string) (*LocalArchive, error) {
	if root == "" {
		return nil, errors.New("archive directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{Root: root}, nil
}

// Archive writes rows to Root/key and returns a file:// location.
// An existing file is replaced atomically.
func (a *LocalArchive) Archive(_ context.Context, key string, rows [][]string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	body, err := encodeCSV(rows)
	if err != nil {
		return "", err
	}

	target := filepath.Join(a.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body, 0o640); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", clean, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", clean, err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return "file://" + filepath.ToSlash(abs), nil
}
