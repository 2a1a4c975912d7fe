// Package binarydata stores large item payloads outside execution state and
// replaces them with opaque "mode:id" references.
package binarydata

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	"github.com/weftlabs/weft/pkg/models"
)

const (
	// ModeDefault keeps payloads base64-inlined in the item itself.
	ModeDefault    = "default"
	ModeFilesystem = "filesystem"
	ModeRedis      = "redis"
)

var (
	ErrInvalidMode    = errors.New("invalid binary data mode")
	ErrUnknownManager = errors.New("no binary data manager registered for mode")
)

// Manager is one storage backend for binary payloads.
type Manager interface {
	Store(ctx context.Context, executionID string, data []byte) (id string, err error)
	Retrieve(ctx context.Context, id string) ([]byte, error)
	Copy(ctx context.Context, id, executionID string) (newID string, err error)
	DeleteByExecution(ctx context.Context, executionID string) error
}

// Config selects the active mode and the modes available process-wide.
type Config struct {
	Mode             string
	AvailableModes   []string
	LocalStoragePath string
	RedisURL         string
}

// Service dispatches binary payload operations to the configured manager.
// With mode "default" (or no manager) payloads stay inline in the item.
type Service struct {
	mode     string
	managers map[string]Manager
}

// NewService validates the configured modes and constructs their managers.
func NewService(cfg Config) (*Service, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeDefault
	}

	if len(cfg.AvailableModes) == 0 {
		cfg.AvailableModes = []string{ModeDefault}
	}

	for _, mode := range cfg.AvailableModes {
		if mode != ModeDefault && mode != ModeFilesystem && mode != ModeRedis {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
		}
	}

	if !slices.Contains(cfg.AvailableModes, cfg.Mode) {
		return nil, fmt.Errorf("%w: %q is not among available modes", ErrInvalidMode, cfg.Mode)
	}

	service := &Service{
		mode:     cfg.Mode,
		managers: make(map[string]Manager),
	}

	if slices.Contains(cfg.AvailableModes, ModeFilesystem) {
		manager, err := NewFilesystemManager(cfg.LocalStoragePath)
		if err != nil {
			return nil, err
		}

		service.managers[ModeFilesystem] = manager
	}

	if slices.Contains(cfg.AvailableModes, ModeRedis) {
		manager, err := NewRedisManager(cfg.RedisURL)
		if err != nil {
			return nil, err
		}

		service.managers[ModeRedis] = manager
	}

	return service, nil
}

// Mode returns the active storage mode.
func (s *Service) Mode() string {
	return s.mode
}

// Store places data with the active manager and fills item with either a
// reference or the inline payload.
func (s *Service) Store(ctx context.Context, item *models.BinaryItem, data []byte, executionID string) error {
	manager, ok := s.managers[s.mode]
	if !ok {
		item.Data = base64.StdEncoding.EncodeToString(data)
		item.FileSize = int64(len(data))

		return nil
	}

	id, err := manager.Store(ctx, executionID, data)
	if err != nil {
		return fmt.Errorf("failed to store binary data: %w", err)
	}

	item.Ref = models.BinaryRef(s.mode + ":" + id)
	item.FileSize = int64(len(data))
	item.Data = ""

	return nil
}

// Retrieve returns the payload bytes of a binary item, resolving references
// through the matching manager.
func (s *Service) Retrieve(ctx context.Context, item models.BinaryItem) ([]byte, error) {
	if item.Ref == "" {
		return base64.StdEncoding.DecodeString(item.Data)
	}

	return s.RetrieveByRef(ctx, item.Ref)
}

// RetrieveByRef resolves a "mode:id" reference to its payload.
func (s *Service) RetrieveByRef(ctx context.Context, ref models.BinaryRef) ([]byte, error) {
	mode, id := ref.Split()
	if mode == "" {
		return nil, fmt.Errorf("%w: malformed reference %q", ErrInvalidMode, ref)
	}

	manager, ok := s.managers[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownManager, mode)
	}

	return manager.Retrieve(ctx, id)
}

// CopyForExecution duplicates every binary reference in the given item
// batches under a new execution id, so a sub-workflow owns its own copies.
func (s *Service) CopyForExecution(ctx context.Context, batches [][]models.ExecutionItem, executionID string) error {
	for _, items := range batches {
		for i := range items {
			for key, binary := range items[i].Binary {
				if binary.Ref == "" {
					continue
				}

				mode, id := binary.Ref.Split()

				manager, ok := s.managers[mode]
				if !ok {
					return fmt.Errorf("%w: %q", ErrUnknownManager, mode)
				}

				newID, err := manager.Copy(ctx, id, executionID)
				if err != nil {
					return fmt.Errorf("failed to copy binary data %q: %w", binary.Ref, err)
				}

				binary.Ref = models.BinaryRef(mode + ":" + newID)
				items[i].Binary[key] = binary
			}
		}
	}

	return nil
}

// DeleteByExecution removes all payloads stored for an execution.
func (s *Service) DeleteByExecution(ctx context.Context, executionID string) error {
	manager, ok := s.managers[s.mode]
	if !ok {
		return nil
	}

	return manager.DeleteByExecution(ctx, executionID)
}
