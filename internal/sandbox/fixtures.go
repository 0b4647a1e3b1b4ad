package sandbox

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Every architecture ships a seed tree the agent explores and extends. The
// trees live under _fixtures (underscored so the toolchain ignores them as
// source) and are embedded into the binary.

//go:embed all:_fixtures
var fixturesFS embed.FS

// Fixtures returns the seed tree for one architecture.
func Fixtures(id string) (fs.FS, error) {
	sub, err := fs.Sub(fixturesFS, "_fixtures/"+id)
	if err != nil {
		return nil, fmt.Errorf("fixtures for %s: %w", id, err)
	}
	return sub, nil
}

// stockNames lists the basenames an architecture ships, so artifact
// discovery can tell agent files from stock ones.
func stockNames(id string) map[string]bool {
	sub, err := Fixtures(id)
	if err != nil {
		return nil
	}
	names := make(map[string]bool)
	fs.WalkDir(sub, ".", func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			names[d.Name()] = true
		}
		return nil
	})
	return names
}

// readWorkspaceGo collects the contents of every .go file under dir inside
// the workspace, sorted by path so merge order is deterministic. Workspace
// copies are read rather than the embedded originals because agents may
// extend stock files.
func readWorkspaceGo(workspaceDir, dir string) ([]string, error) {
	root := filepath.Join(workspaceDir, dir)
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".go") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	sort.Strings(paths)
	sources := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		sources = append(sources, string(b))
	}
	return sources, nil
}
