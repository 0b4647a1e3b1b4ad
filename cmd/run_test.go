package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "app-typed", []string{"app-typed"}},
		{"csv", "app-typed,exploration", []string{"app-typed", "exploration"}},
		{"spaces and empties", " app-typed , ,exploration ", []string{"app-typed", "exploration"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadConfigDefaultWhenMissing(t *testing.T) {
	root := NewRootCmd()
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	cfg, err := loadConfig(root)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Runs != 1 || cfg.Parallel != 2 {
		t.Errorf("defaults not applied: runs=%d parallel=%d", cfg.Runs, cfg.Parallel)
	}
}

func TestLoadConfigExplicitMissingFails(t *testing.T) {
	root := NewRootCmd()
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if err := root.PersistentFlags().Set("config", path); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(root); err == nil {
		t.Fatal("expected error for explicit missing config")
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archbench.yaml")
	data := "runs: 3\nmodels:\n  - model-x\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	root := NewRootCmd()
	cfgFile = path
	cfg, err := loadConfig(root)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Runs != 3 {
		t.Errorf("runs = %d, want 3", cfg.Runs)
	}
	if len(cfg.Models) != 1 || cfg.Models[0] != "model-x" {
		t.Errorf("models = %v, want [model-x]", cfg.Models)
	}
	if cfg.Parallel != 2 {
		t.Errorf("parallel default not applied, got %d", cfg.Parallel)
	}
}
