package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (e *Executor) readFile(rel string) string {
	path, clean, err := e.resolve(rel)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("error: %s: no such file", rel)
	}
	if info.IsDir() {
		return fmt.Sprintf("error: %s is a directory, not a file; use list_files", rel)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("error: reading %s: %v", rel, err)
	}
	e.Trace.ReadFiles = append(e.Trace.ReadFiles, clean)
	return string(data)
}

func (e *Executor) writeFile(rel, content string) string {
	path, clean, err := e.resolve(rel)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Sprintf("error: creating directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("error: writing %s: %v", rel, err)
	}
	e.Trace.Writes = append(e.Trace.Writes, clean)
	return fmt.Sprintf("wrote %d bytes to %s", len(content), clean)
}

func (e *Executor) listFiles(rel string) string {
	if rel == "" {
		rel = "."
	}
	path, clean, err := e.resolve(rel)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Sprintf("error: listing %s: %v", rel, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return fmt.Sprintf("%s: (empty directory)", clean)
	}
	return strings.Join(names, "\n")
}
