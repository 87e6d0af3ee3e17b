package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ArtifactStore is the durable tier: compiled output keyed by job id, read by
// preview consumers long after the scratch directory is gone.
type ArtifactStore struct {
	root string
}

func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

// Dir returns the job's durable directory without creating it.
func (a *ArtifactStore) Dir(jobID string) string {
	return filepath.Join(a.root, jobID)
}

// Promote copies the scratch tree recursively, byte for byte, into the
// durable directory for the job.
func (a *ArtifactStore) Promote(jobID, scratchDir string) error {
	dest := a.Dir(jobID)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	return filepath.WalkDir(scratchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(scratchDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// PatchFile overwrites exactly one named file inside the target job's
// promoted directory with the same file from the source job's directory.
// Used by side-module rebuilds; the target build must already be promoted.
func (a *ArtifactStore) PatchFile(sourceJobID, targetJobID, name string) error {
	rel, err := safeRelPath(name)
	if err != nil {
		return err
	}

	targetDir := a.Dir(targetJobID)
	if _, err := os.Stat(targetDir); err != nil {
		return fmt.Errorf("target build %s is not promoted: %w", targetJobID, err)
	}

	src := filepath.Join(a.Dir(sourceJobID), rel)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("side artifact %s missing from build %s: %w", name, sourceJobID, err)
	}
	return copyFile(src, filepath.Join(targetDir, rel))
}

// Open serves one artifact file by job id and project-relative path.
func (a *ArtifactStore) Open(jobID, rel string) (*os.File, error) {
	clean, err := safeRelPath(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(a.Dir(jobID), clean))
}

// Exists reports whether a job has a promoted artifact directory.
func (a *ArtifactStore) Exists(jobID string) bool {
	info, err := os.Stat(a.Dir(jobID))
	return err == nil && info.IsDir()
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
