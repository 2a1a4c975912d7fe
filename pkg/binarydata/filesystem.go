package binarydata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FilesystemManager stores payloads as files under
// <root>/<executionID>/<fileID>.
type FilesystemManager struct {
	root string
}

// NewFilesystemManager creates the storage root if needed.
func NewFilesystemManager(root string) (*FilesystemManager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "weft-binary-data")
	}

	root = strings.TrimPrefix(root, "file://")

	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create binary data directory: %w", err)
	}

	return &FilesystemManager{root: root}, nil
}

func (m *FilesystemManager) Store(_ context.Context, executionID string, data []byte) (string, error) {
	fileID := uuid.New().String()

	dir := filepath.Join(m.root, executionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create execution directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, fileID), data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write binary file: %w", err)
	}

	return executionID + "/" + fileID, nil
}

func (m *FilesystemManager) Retrieve(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(m.root, filepath.Clean(id)))
	if err != nil {
		return nil, fmt.Errorf("failed to read binary file %q: %w", id, err)
	}

	return data, nil
}

func (m *FilesystemManager) Copy(ctx context.Context, id, executionID string) (string, error) {
	data, err := m.Retrieve(ctx, id)
	if err != nil {
		return "", err
	}

	return m.Store(ctx, executionID, data)
}

func (m *FilesystemManager) DeleteByExecution(_ context.Context, executionID string) error {
	return os.RemoveAll(filepath.Join(m.root, executionID))
}
