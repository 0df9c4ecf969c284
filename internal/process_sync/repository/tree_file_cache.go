package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

const treeFilePrefix = "process_tree_"

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileTreeCache stores one JSON file per root process in a directory.
type FileTreeCache struct {
	dir string
}

// NewFileTreeCache creates the cache directory if needed.
func NewFileTreeCache(dir string) (*FileTreeCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileTreeCache{dir: dir}, nil
}

// Path returns the cache file of rootID.
func (c *FileTreeCache) Path(rootID string) string {
	return filepath.Join(c.dir, treeFilePrefix+unsafeFileChars.ReplaceAllString(rootID, "_")+".json")
}

// Load reads the cached tree of rootID.
func (c *FileTreeCache) Load(ctx context.Context, rootID string) (*domain.ProcessTree, error) {
	data, err := os.ReadFile(c.Path(rootID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached tree: %w", err)
	}

	var tree domain.ProcessTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached tree: %w", err)
	}
	return &tree, nil
}

// Save writes the tree to a temporary file and renames it into place.
func (c *FileTreeCache) Save(ctx context.Context, tree *domain.ProcessTree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, treeFilePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write tree: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(tree.RootID)); err != nil {
		return fmt.Errorf("failed to store tree: %w", err)
	}
	return nil
}

// Delete removes the cached tree. A missing file is not an error.
func (c *FileTreeCache) Delete(ctx context.Context, rootID string) error {
	err := os.Remove(c.Path(rootID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cached tree: %w", err)
	}
	return nil
}
