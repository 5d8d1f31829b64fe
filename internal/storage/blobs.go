package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
)

// SaveContext writes a page-context snapshot as an lz4-compressed blob
// under dir and returns its path. Full webmail pages run to hundreds of
// kilobytes each; compression keeps a long queue cheap.
func SaveContext(dir, html string) (string, error) {
	blobDir := filepath.Join(dir, "context")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	path := filepath.Join(blobDir, uuid.NewString()+".html.lz4")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}

	zw := lz4.NewWriter(f)
	if _, err := io.WriteString(zw, html); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close blob file: %w", err)
	}
	return path, nil
}

// LoadContext reads a blob written by SaveContext.
func LoadContext(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open blob: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(lz4.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	return string(data), nil
}
