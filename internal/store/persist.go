package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"keyvisor/internal/supervisor"
)

// SaveFile writes the current snapshot to path as JSON. The write goes
// through a temporary file so a crash never leaves a truncated file behind.
func (s *Store[S]) SaveFile(path string) error {
	if path == "" {
		return nil
	}
	b, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot saved by SaveFile. A missing file yields an
// empty snapshot.
func LoadFile[S comparable](path string) (supervisor.Snapshot[S], error) {
	snap := supervisor.Snapshot[S]{}
	if path == "" {
		return snap, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", path, err)
	}
	return snap, nil
}
