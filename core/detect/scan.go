package detect

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgehq/forge/core/resolver"
)

// =============================================================================
// Workspace Scan
// =============================================================================

// skipDirs are directory names never descended into during a scan.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	"bin":          {},
	"obj":          {},
	"__pycache__":  {},
}

// Scan walks the workspace rooted at root and returns the task signal
// implied by the rules that matched. Domains and detected facts are sorted
// and deduplicated so a scan is deterministic for a fixed tree.
func Scan(root string, rules []Rule) (resolver.TaskSignal, error) {
	if root == "" {
		return resolver.TaskSignal{}, ErrInvalidPath
	}
	if len(rules) == 0 {
		return resolver.TaskSignal{}, ErrNoRules
	}

	compiled, err := compileRules(rules)
	if err != nil {
		return resolver.TaskSignal{}, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return resolver.TaskSignal{}, ErrInvalidPath
	}

	domains := make(map[string]struct{})
	detected := make(map[string]struct{})

	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if _, skip := skipDirs[entry.Name()]; skip && path != absRoot {
				return filepath.SkipDir
			}
			if strings.HasPrefix(entry.Name(), ".") && path != absRoot && entry.Name() != ".azuredevops" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		for _, cr := range compiled {
			if cr.matches(rel) {
				domains[cr.rule.Domain] = struct{}{}
				detected[cr.rule.Signal] = struct{}{}
			}
		}
		return nil
	})
	if walkErr != nil {
		return resolver.TaskSignal{}, walkErr
	}

	return resolver.TaskSignal{
		Domains:  sortedKeys(domains),
		Detected: sortedKeys(detected),
	}, nil
}

// Match applies the rules to a single relative path. Useful for hosts that
// stream file lists instead of walking a directory.
func Match(relPath string, rules []Rule) ([]Rule, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	var matched []Rule
	for _, cr := range compiled {
		if cr.matches(filepath.ToSlash(relPath)) {
			matched = append(matched, cr.rule)
		}
	}
	return matched, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
