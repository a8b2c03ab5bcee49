package resolve

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Instance is a resolved service-instance folder under the deployment
// directory.
type Instance struct {
	RequestedName string
	Dir           string
}

// ResolveInstance finds the service-instance folder under
// <projectDir>/<deployDir>. Exact case-insensitive name match wins;
// otherwise the first folder (sorted) containing the name as a
// substring.
func ResolveInstance(projectDir, deployDir, name string) (*Instance, error) {
	base := filepath.Join(projectDir, deployDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, &NotFoundError{Kind: KindDeployDir, Path: base}
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)

	for _, d := range dirs {
		if strings.EqualFold(d, name) {
			return &Instance{RequestedName: name, Dir: filepath.Join(base, d)}, nil
		}
	}
	needle := strings.ToLower(name)
	for _, d := range dirs {
		if strings.Contains(strings.ToLower(d), needle) {
			return &Instance{RequestedName: name, Dir: filepath.Join(base, d)}, nil
		}
	}

	return nil, &NotFoundError{Kind: KindInstance, Pattern: name, Path: base}
}

// ResolveEnvironmentConfig finds the file named <environment>.config
// (case-insensitive) anywhere under the instance folder. First match in
// lexicographic walk order wins.
func ResolveEnvironmentConfig(instanceDir, environment string) (string, error) {
	want := environment + ".config"

	found, err := findFile(instanceDir, func(name string) bool {
		return strings.EqualFold(name, want)
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", &NotFoundError{Kind: KindEnvironmentConfig, Pattern: want, Path: instanceDir}
	}
	return found, nil
}

// FindTargetConfig locates the well-known build-output config file:
// directly in the project directory first, then recursively.
func FindTargetConfig(projectDir, fileName string) (string, error) {
	direct := filepath.Join(projectDir, fileName)
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, nil
	}

	found, err := findFile(projectDir, func(name string) bool {
		return strings.EqualFold(name, fileName)
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", &NotFoundError{Kind: KindTargetConfig, Pattern: fileName, Path: projectDir}
	}
	return found, nil
}

// findFile walks dir and returns the first regular file whose basename
// satisfies match. WalkDir visits entries in lexical order, so the
// result is deterministic. Dot-directories are skipped: the deployment
// area holds per-environment templates, not build output.
func findFile(dir string, match func(name string) bool) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if match(d.Name()) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}
