// Package workspace materializes the isolated per-run directory an agent
// operates on: the sandbox's fixture tree plus the injected dataset. Every
// run gets a uniquely named directory; nothing is ever shared across runs.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/signalnine/archbench/internal/dataset"
)

type Options struct {
	BaseDir   string
	SandboxID string
	TaskID    string
	Fixtures  fs.FS
	Dataset   *dataset.Dataset
	// WriteCSV and ProvisionDB cover the exploration sandbox, which works
	// from flat exports and a pre-provisioned data.db instead of fixtures.
	WriteCSV    bool
	ProvisionDB bool
}

// Create builds the workspace and returns its path. Failure here is the one
// infrastructure error class that aborts a run.
func Create(opts Options) (string, error) {
	base := opts.BaseDir
	if base == "" {
		base = filepath.Join(os.TempDir(), "archbench")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace base %s: %w", base, err)
	}
	name := fmt.Sprintf("%s-%s-%s", opts.SandboxID, opts.TaskID, uuid.New().String()[:8])
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace %s: %w", dir, err)
	}

	if opts.Fixtures != nil {
		if err := copyFixtures(dir, opts.Fixtures); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}
	if opts.Dataset != nil {
		if err := opts.Dataset.WriteJSON(filepath.Join(dir, "data", "dataset.json")); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
		if opts.WriteCSV {
			if err := opts.Dataset.WriteCSVs(filepath.Join(dir, "data")); err != nil {
				os.RemoveAll(dir)
				return "", err
			}
		}
		if opts.ProvisionDB {
			if err := provisionDB(dir, opts.Dataset); err != nil {
				os.RemoveAll(dir)
				return "", err
			}
		}
	}
	return dir, nil
}

// Remove disposes a workspace. Ownership is the orchestrator's; validators
// never delete.
func Remove(dir string) error {
	if dir == "" || dir == "/" || dir == filepath.Dir(dir) {
		return fmt.Errorf("refusing to remove %q", dir)
	}
	return os.RemoveAll(dir)
}

func copyFixtures(dir string, fixtures fs.FS) error {
	return fs.WalkDir(fixtures, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking fixtures: %w", err)
		}
		dest := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			if path == "." {
				return nil
			}
			return os.MkdirAll(dest, 0o755)
		}
		data, err := fs.ReadFile(fixtures, path)
		if err != nil {
			return fmt.Errorf("reading fixture %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("writing fixture %s: %w", path, err)
		}
		return nil
	})
}

func provisionDB(dir string, ds *dataset.Dataset) error {
	db, err := dataset.OpenDB(filepath.Join(dir, "data.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	return dataset.LoadDB(db, ds)
}
