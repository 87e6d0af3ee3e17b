package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
)

// ScratchStore is the ephemeral fast tier: one working directory per job id,
// exclusively owned by that job, discarded once its content is promoted.
type ScratchStore struct {
	root string
}

func NewScratchStore(root string) *ScratchStore {
	return &ScratchStore{root: root}
}

// Dir returns the job's working directory, creating it on first use.
func (s *ScratchStore) Dir(jobID string) (string, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteFile materializes one payload entry into the job's scratch directory.
// Binary entries are base64-decoded first.
func (s *ScratchStore) WriteFile(jobID string, f models.SourceFile) error {
	rel, err := safeRelPath(f.Path)
	if err != nil {
		return err
	}

	dir, err := s.Dir(jobID)
	if err != nil {
		return err
	}

	dest := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	data := []byte(f.Content)
	if f.Binary {
		data, err = base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			return fmt.Errorf("decode binary entry %s: %w", f.Path, err)
		}
	}
	return os.WriteFile(dest, data, 0o644)
}

// Remove discards the job's scratch directory.
func (s *ScratchStore) Remove(jobID string) error {
	return os.RemoveAll(filepath.Join(s.root, jobID))
}

// safeRelPath rejects entries that would escape the job directory.
func safeRelPath(p string) (string, error) {
	clean := filepath.Clean(strings.TrimPrefix(filepath.ToSlash(p), "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid source path: %s", p)
	}
	return clean, nil
}
