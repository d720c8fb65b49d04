package artifact

import (
	"context"
	"os"
	"path/filepath"
)

// FilesystemBackend writes artifact bytes to local disk, creating parent
// directories as needed. This is the default backend.
type FilesystemBackend struct{}

// NewFilesystemBackend constructs the default local-disk backend.
func NewFilesystemBackend() *FilesystemBackend { return &FilesystemBackend{} }

func (b *FilesystemBackend) Write(_ context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
