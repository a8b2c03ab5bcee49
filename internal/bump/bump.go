// Package bump rewrites package version strings across a project tree:
// versioned reference paths in project files and version attributes in
// packages.config-style documents. The rewrite is regex substitution
// over text; files are only written when their content changed.
package bump

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var versionShape = regexp.MustCompile(`^\d+(\.\d+)+$`)

// Options control one bump run.
type Options struct {
	// Root is the tree to rewrite.
	Root string

	// Package is the package identifier, e.g. "Newtonsoft.Json".
	Package string

	// Version is the new dotted version string.
	Version string

	// DryRun reports intended changes without writing.
	DryRun bool
}

// FileChange is one rewritten file.
type FileChange struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
}

// Result is the structured bump report.
type Result struct {
	FilesScanned int          `json:"files_scanned"`
	Changes      []FileChange `json:"changes"`
	Total        int          `json:"total_replacements"`
	DryRun       bool         `json:"dry_run"`
}

// candidateFile reports whether a file can carry a versioned package
// reference.
func candidateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csproj", ".config":
		return true
	}
	return false
}

// Run walks the tree and rewrites every versioned reference to the
// package.
func Run(opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Package == "" {
		return nil, fmt.Errorf("package is required")
	}
	if !versionShape.MatchString(opts.Version) {
		return nil, fmt.Errorf("version %q is not a dotted version string", opts.Version)
	}
	if _, err := os.Stat(opts.Root); err != nil {
		return nil, fmt.Errorf("root %s: %w", opts.Root, err)
	}

	// Versioned reference path: "Newtonsoft.Json.6.0.8" in HintPath
	// and packages-dir segments.
	pathRe := regexp.MustCompile(regexp.QuoteMeta(opts.Package) + `\.\d+(?:\.\d+)+`)
	// Version attribute on the package entry.
	attrRe := regexp.MustCompile(`(?i)(id="` + regexp.QuoteMeta(opts.Package) + `"\s+version=")([^"]+)(")`)

	res := &Result{DryRun: opts.DryRun}
	err := filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != opts.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !candidateFile(d.Name()) {
			return nil
		}
		res.FilesScanned++

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		content := string(data)

		count := 0
		next := pathRe.ReplaceAllStringFunc(content, func(old string) string {
			want := opts.Package + "." + opts.Version
			if old != want {
				count++
			}
			return want
		})
		next = attrRe.ReplaceAllStringFunc(next, func(old string) string {
			sub := attrRe.FindStringSubmatch(old)
			if sub[2] == opts.Version {
				return old
			}
			count++
			return sub[1] + opts.Version + sub[3]
		})

		if count == 0 {
			return nil
		}
		res.Changes = append(res.Changes, FileChange{Path: path, Replacements: count})
		res.Total += count

		if opts.DryRun {
			log.Info("would rewrite", zap.String("path", path), zap.Int("replacements", count))
			return nil
		}
		if err := os.WriteFile(path, []byte(next), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		log.Info("rewrote", zap.String("path", path), zap.Int("replacements", count))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res.Changes, func(i, j int) bool { return res.Changes[i].Path < res.Changes[j].Path })
	return res, nil
}
