// Package resolve locates the filesystem artifacts a deployment run
// operates on: the project definition file, the service-instance folder
// under the deployment area, the per-environment config and the target
// config file in the build output. All lookups are deterministic for a
// given file tree.
package resolve

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Project is a resolved project definition file.
type Project struct {
	// Name is the project name (basename without extension).
	Name string

	// File is the absolute path of the project definition file.
	File string

	// Dir is the directory containing the project file.
	Dir string
}

// Predicate is one disambiguation rule. It narrows a candidate set;
// resolution stops at the first predicate that narrows it to exactly
// one entry.
type Predicate struct {
	Name  string
	Apply func(pattern string, candidates []string) []string
}

// ProjectResolver finds a unique project file from a loose name
// pattern using an ordered, configuration-driven predicate list.
type ProjectResolver struct {
	ext        string
	prefix     string
	predicates []Predicate
	log        *zap.Logger
}

// NewProjectResolver builds a resolver from rule names. Known rules:
// exact, prefixed, shallowest.
func NewProjectResolver(ext, prefix string, rules []string, log *zap.Logger) (*ProjectResolver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &ProjectResolver{ext: ext, prefix: prefix, log: log}

	for _, name := range rules {
		switch name {
		case "exact":
			r.predicates = append(r.predicates, Predicate{Name: name, Apply: r.matchExact})
		case "prefixed":
			r.predicates = append(r.predicates, Predicate{Name: name, Apply: r.matchPrefixed})
		case "shallowest":
			r.predicates = append(r.predicates, Predicate{Name: name, Apply: matchShallowest})
		default:
			return nil, fmt.Errorf("unknown match predicate %q", name)
		}
	}
	return r, nil
}

// Resolve finds exactly one project file under root whose basename
// contains pattern (case-insensitive).
func (r *ProjectResolver) Resolve(root, pattern string) (*Project, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, &NotFoundError{Kind: KindWorkspace, Path: root}
	}

	candidates, err := r.collect(root, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if len(candidates) == 0 {
		return nil, &NotFoundError{Kind: KindProject, Pattern: pattern, Path: root}
	}

	chosen := candidates
	for _, pred := range r.predicates {
		narrowed := pred.Apply(pattern, chosen)
		if len(narrowed) == 1 {
			r.log.Info("resolved project",
				zap.String("pattern", pattern),
				zap.String("rule", pred.Name),
				zap.String("path", narrowed[0]),
				zap.Int("candidates", len(candidates)))
			return newProject(narrowed[0], r.ext), nil
		}
		if len(narrowed) > 1 {
			chosen = narrowed
		}
	}

	// No rule produced a unique winner. The candidate list is sorted,
	// so taking the head is still deterministic, but flag it loudly.
	r.log.Warn("project resolution ambiguous, taking first candidate",
		zap.String("pattern", pattern),
		zap.String("path", chosen[0]),
		zap.Int("remaining", len(chosen)))
	return newProject(chosen[0], r.ext), nil
}

func newProject(path, ext string) *Project {
	base := filepath.Base(path)
	return &Project{
		Name: strings.TrimSuffix(base, ext),
		File: path,
		Dir:  filepath.Dir(path),
	}
}

// collect gathers every project file under root whose basename contains
// pattern, case-insensitive, in sorted order. Dot-directories are
// skipped.
func (r *ProjectResolver) collect(root, pattern string) ([]string, error) {
	needle := strings.ToLower(pattern)

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.EqualFold(filepath.Ext(name), r.ext) {
			return nil
		}
		if strings.Contains(strings.ToLower(name), needle) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// matchExact keeps candidates whose basename equals the pattern.
func (r *ProjectResolver) matchExact(pattern string, candidates []string) []string {
	return filterBasename(candidates, pattern+r.ext)
}

// matchPrefixed keeps candidates whose basename equals the pattern with
// the organization namespace prefix applied.
func (r *ProjectResolver) matchPrefixed(pattern string, candidates []string) []string {
	if r.prefix == "" {
		return nil
	}
	return filterBasename(candidates, r.prefix+pattern+r.ext)
}

func filterBasename(candidates []string, want string) []string {
	var out []string
	for _, c := range candidates {
		if strings.EqualFold(filepath.Base(c), want) {
			out = append(out, c)
		}
	}
	return out
}

// matchShallowest keeps the candidate with the fewest path separators,
// ties broken lexicographically. Always yields exactly one entry, so a
// resolver ending with this rule always terminates. It is a heuristic:
// the shallowest path is taken as the most likely primary project when
// several nested projects share the substring.
func matchShallowest(_ string, candidates []string) []string {
	best := candidates[0]
	bestDepth := strings.Count(best, string(filepath.Separator))
	for _, c := range candidates[1:] {
		depth := strings.Count(c, string(filepath.Separator))
		if depth < bestDepth || (depth == bestDepth && c < best) {
			best, bestDepth = c, depth
		}
	}
	return []string{best}
}
