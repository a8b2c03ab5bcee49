// Package ide talks to the developer's IDE to register the startup
// project. The IDE is an opaque external collaborator: registration
// goes through a configured helper command, every call is bounded by a
// timeout, and failures are reported as warnings upstream, never
// treated as fatal.
package ide

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable means no registration helper is configured.
var ErrUnavailable = errors.New("startup registration helper not configured")

// Registrar marks a project as the IDE's active startup target.
type Registrar interface {
	RegisterStartup(ctx context.Context, projectFile string) error
}

// CommandRegistrar shells out to a configured helper. The argument
// list may contain a {project} placeholder which is replaced with the
// project file path.
type CommandRegistrar struct {
	Command []string
	Timeout time.Duration
	Log     *zap.Logger
}

// RegisterStartup runs the helper with a bounded timeout. A timeout is
// reported as such so the operator can tell a hung IDE from a failing
// one.
func (r *CommandRegistrar) RegisterStartup(ctx context.Context, projectFile string) error {
	if len(r.Command) == 0 {
		return ErrUnavailable
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := make([]string, 0, len(r.Command)-1)
	for _, a := range r.Command[1:] {
		args = append(args, strings.ReplaceAll(a, "{project}", projectFile))
	}

	log.Debug("invoking startup registration helper",
		zap.String("command", r.Command[0]),
		zap.Strings("args", args))

	out, err := exec.CommandContext(ctx, r.Command[0], args...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("startup registration timed out after %s", r.Timeout)
	}
	if err != nil {
		return fmt.Errorf("startup registration failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NopRegistrar ignores registration requests. Used when the prompt was
// declined or in tests.
type NopRegistrar struct{}

func (NopRegistrar) RegisterStartup(context.Context, string) error { return nil }
