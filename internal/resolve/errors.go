package resolve

import "fmt"

// Kind identifies which resolution stage failed.
type Kind string

const (
	KindWorkspace         Kind = "workspace root"
	KindProject           Kind = "project file"
	KindDeployDir         Kind = "deployment directory"
	KindInstance          Kind = "service instance"
	KindEnvironmentConfig Kind = "environment config"
	KindTargetConfig      Kind = "target config file"
)

// NotFoundError reports a failed lookup along with what was looked for
// and where. Each resolution stage fails with its own Kind so callers
// can tell "no such instance" apart from "no such environment config".
type NotFoundError struct {
	Kind    Kind
	Pattern string
	Path    string
}

func (e *NotFoundError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("%s not found under %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s matching %q not found under %s", e.Kind, e.Pattern, e.Path)
}
