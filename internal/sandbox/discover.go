package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Artifact discovery is deliberately tolerant: agents are told the canonical
// name but close misses still validate. A miss on the canonical name falls
// back to accepted spelling variants, then to a keyword score over candidate
// files. Ambiguity is treated as not found rather than guessed at.

// funcCandidates expands the canonical artifact function name into every
// spelling accepted at validation time.
func funcCandidates(base string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, stem := range []string{base, softenAcronym(base)} {
		add(stem)
		for _, prefix := range []string{"Get", "Compute", "Calc"} {
			add(prefix + stem)
		}
	}
	return out
}

// softenAcronym rewrites a trailing all-caps acronym to title case, so
// AvgOrgLTV also matches AvgOrgLtv.
func softenAcronym(name string) string {
	rs := []rune(name)
	i := len(rs)
	for i > 0 && rs[i-1] >= 'A' && rs[i-1] <= 'Z' {
		i--
	}
	if len(rs)-i < 2 {
		return name
	}
	return string(rs[:i+1]) + strings.ToLower(string(rs[i+1:]))
}

// findGoArtifact locates the file defining one of the candidate functions
// and reports which spelling it found. Stock files that ship with the
// architecture are skipped so an agent's artifact never loses to a fixture.
// The canonical path wins a tie; any other ambiguity is a miss.
func findGoArtifact(workspaceDir, dir, canonical string, candidates []string, stock map[string]bool) (string, string, error) {
	type match struct {
		path string
		fn   string
	}
	var matches []match
	root := filepath.Join(workspaceDir, dir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".go") || stock[d.Name()] {
			return err
		}
		src, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		for _, cand := range candidates {
			if strings.Contains(string(src), "func "+cand+"(") {
				matches = append(matches, match{path, cand})
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("no artifact: %s missing and %s unreadable: %v", canonical, dir, err)
	}
	switch len(matches) {
	case 1:
		return matches[0].path, matches[0].fn, nil
	case 0:
		return "", "", fmt.Errorf("no artifact: %s not written and no file under %s defines %s", canonical, dir, strings.Join(candidates, ", "))
	default:
		canonicalAbs := filepath.Join(workspaceDir, canonical)
		var paths []string
		for _, m := range matches {
			if m.path == canonicalAbs {
				return m.path, m.fn, nil
			}
			paths = append(paths, m.path)
		}
		sort.Strings(paths)
		return "", "", fmt.Errorf("ambiguous artifact: %d files define a candidate function: %s", len(matches), strings.Join(rel(workspaceDir, paths), ", "))
	}
}

// findSQLArtifact locates the model file for a task. The canonical filename
// wins anywhere under root; otherwise non-stock .sql files are scored by the
// task keywords their name contains, and a unique best score wins.
func findSQLArtifact(workspaceDir, root, canonical string, keywords []string, stock map[string]bool) (string, error) {
	base := filepath.Base(canonical)
	type scored struct {
		path  string
		score int
	}
	var exact []string
	var ranked []scored
	err := filepath.WalkDir(filepath.Join(workspaceDir, root), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") || stock[d.Name()] {
			return err
		}
		if d.Name() == base {
			exact = append(exact, path)
			return nil
		}
		if s := keywordScore(d.Name(), keywords); s > 0 {
			ranked = append(ranked, scored{path, s})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("no artifact: cannot walk %s: %v", root, err)
	}
	if len(exact) > 0 {
		sort.Strings(exact)
		return exact[0], nil
	}
	if len(ranked) == 0 {
		return "", fmt.Errorf("no artifact: %s not found under %s and no filename matches %v", base, root, keywords)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].path < ranked[j].path
	})
	if len(ranked) > 1 && ranked[0].score == ranked[1].score {
		return "", fmt.Errorf("ambiguous artifact: %s and %s match the task equally well",
			filepath.Base(ranked[0].path), filepath.Base(ranked[1].path))
	}
	return ranked[0].path, nil
}

// keywordScore favors longer keyword hits so "active_user" outranks "user".
func keywordScore(name string, keywords []string) int {
	lower := strings.ToLower(name)
	score := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			score += len(kw)
		}
	}
	return score
}

// normalizeName flattens a measure or function name for loose comparison.
func normalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, name)
}

func rel(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if r, err := filepath.Rel(base, p); err == nil {
			out[i] = r
		} else {
			out[i] = p
		}
	}
	return out
}
