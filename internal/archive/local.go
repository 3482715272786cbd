package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores archived files below a base directory.
type Local struct {
	basePath string
}

// NewLocal creates basePath if needed.
func NewLocal(basePath string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory %s: %w", basePath, err)
	}
	return &Local{basePath: basePath}, nil
}

// Put writes content to basePath/key, creating parent directories.
func (l *Local) Put(ctx context.Context, key string, content []byte, _ Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := l.keyToPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write archive file %s: %w", key, err)
	}
	return nil
}

// keyToPath rejects keys that would escape basePath.
func (l *Local) keyToPath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash("/" + key))
	fullPath := filepath.Join(l.basePath, cleaned)
	base := filepath.Clean(l.basePath)
	if fullPath != base && !strings.HasPrefix(fullPath, base+string(filepath.Separator)) {
		return "", fmt.Errorf("archive key %q escapes base directory", key)
	}
	return fullPath, nil
}
