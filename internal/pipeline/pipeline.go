// Package pipeline wires the four deployment stages together: project
// resolution, deployment artifact resolution, config transformation
// and metadata update. Control flows strictly forward; any stage that
// fails to resolve aborts the run before a single file is mutated.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"envdeploy/internal/config"
	"envdeploy/internal/ide"
	"envdeploy/internal/msbuild"
	"envdeploy/internal/resolve"
	"envdeploy/internal/transform"
	"envdeploy/internal/ux"
)

// PreviewLimit bounds the dry-run content preview.
const PreviewLimit = 512

// backupStamp is the timestamp suffix format for pre-write backups.
const backupStamp = "20060102T150405Z"

// Request is one deployment invocation.
type Request struct {
	Project           string
	Environment       string
	Instance          string
	WorkspaceSelector string
	DryRun            bool
}

// StepResult reports one best-effort metadata sub-step.
type StepResult struct {
	Applied bool   `json:"applied"`
	Changed bool   `json:"changed"`
	Detail  string `json:"detail,omitempty"`
}

// Summary is the structured run report, usable by a caller or test
// harness.
type Summary struct {
	RunID             string `json:"run_id"`
	Environment       string `json:"environment"`
	WorkspaceRoot     string `json:"workspace_root"`
	ProjectFile       string `json:"project_file"`
	InstanceDir       string `json:"instance_dir"`
	EnvironmentConfig string `json:"environment_config"`
	Hostname          string `json:"hostname"`
	TargetFile        string `json:"target_file"`
	BackupFile        string `json:"backup_file,omitempty"`
	DryRun            bool   `json:"dry_run"`
	Preview           string `json:"preview,omitempty"`
	ConfigWritten     bool   `json:"config_written"`

	CopyDirective StepResult `json:"copy_directive"`
	DebugLaunch   StepResult `json:"debug_launch"`
	Startup       StepResult `json:"startup_registration"`

	Warnings []string `json:"warnings,omitempty"`
}

// Pipeline runs deployments. Construct with New.
type Pipeline struct {
	cfg       *config.Config
	log       *zap.Logger
	prompter  ux.Prompter
	registrar ide.Registrar
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPrompter injects the interactive prompt implementation.
func WithPrompter(p ux.Prompter) Option {
	return func(pl *Pipeline) { pl.prompter = p }
}

// WithRegistrar injects the startup-project registrar.
func WithRegistrar(r ide.Registrar) Option {
	return func(pl *Pipeline) { pl.registrar = r }
}

// WithClock injects the time source used for backup stamps.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.now = now }
}

// New builds a Pipeline. Unless overridden, the prompt is skipped
// (safe default answer) and the registrar comes from configuration.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		log:      log,
		prompter: ux.StaticPrompter{Answer: false},
		registrar: &ide.CommandRegistrar{
			Command: cfg.Startup.RegisterCommand,
			Timeout: cfg.GetCommandTimeout(),
			Log:     log,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one deployment. Resolution failures abort with no file
// mutated; corrupt metadata documents abort; every other metadata
// sub-step failure is collected as a warning.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Summary, error) {
	sum := &Summary{
		RunID:       uuid.NewString(),
		Environment: req.Environment,
		DryRun:      req.DryRun,
	}
	log := p.log.With(zap.String("run_id", sum.RunID), zap.String("environment", req.Environment))

	// Stage 1: resolution. Nothing is written until all of it succeeds.
	root := filepath.Join(p.cfg.Workspace.BasePath, req.WorkspaceSelector)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return sum, &resolve.NotFoundError{Kind: resolve.KindWorkspace, Path: root}
	}
	sum.WorkspaceRoot = root

	resolver, err := resolve.NewProjectResolver(
		p.cfg.Match.ProjectExtension, p.cfg.Match.NamespacePrefix, p.cfg.Match.Predicates, log)
	if err != nil {
		return sum, err
	}
	proj, err := resolver.Resolve(root, req.Project)
	if err != nil {
		return sum, err
	}
	sum.ProjectFile = proj.File

	inst, err := resolve.ResolveInstance(proj.Dir, p.cfg.Deploy.Dir, req.Instance)
	if err != nil {
		return sum, err
	}
	sum.InstanceDir = inst.Dir

	envConfig, err := resolve.ResolveEnvironmentConfig(inst.Dir, req.Environment)
	if err != nil {
		return sum, err
	}
	sum.EnvironmentConfig = envConfig

	target, err := resolve.FindTargetConfig(proj.Dir, p.cfg.Deploy.TargetFileName)
	if err != nil {
		return sum, err
	}
	sum.TargetFile = target

	// Preflight the project file so a corrupt document aborts before
	// the target config is overwritten.
	if _, err := msbuild.LoadDocument(proj.File); err != nil {
		return sum, err
	}

	// Stage 2: transform.
	raw, err := os.ReadFile(envConfig)
	if err != nil {
		return sum, fmt.Errorf("failed to read %s: %w", envConfig, err)
	}
	tr := transform.New(
		p.cfg.Transform.HostnamePlaceholder,
		p.cfg.Transform.DomainSuffix,
		p.cfg.Transform.TargetDrive)
	transformed := tr.Apply(string(raw), req.Environment)
	sum.Hostname = tr.Hostname(req.Environment)

	if req.DryRun {
		sum.Preview = transform.Preview(transformed, PreviewLimit)
		sum.CopyDirective.Detail = "skipped (dry-run)"
		sum.DebugLaunch.Detail = "skipped (dry-run)"
		sum.Startup.Detail = "skipped (dry-run)"
		log.Info("dry-run complete, no files written", zap.String("target", target))
		return sum, nil
	}

	// Stage 3: backup, then overwrite the target config.
	if p.cfg.Deploy.Backup {
		backup := target + "." + p.now().UTC().Format(backupStamp) + ".bak"
		if err := copyFile(target, backup); err != nil {
			return sum, fmt.Errorf("failed to back up %s: %w", target, err)
		}
		sum.BackupFile = backup
	}
	if err := os.WriteFile(target, []byte(transformed), 0644); err != nil {
		return sum, fmt.Errorf("failed to write %s: %w", target, err)
	}
	sum.ConfigWritten = true
	log.Info("target config written",
		zap.String("target", target),
		zap.String("source", envConfig),
		zap.String("hostname", sum.Hostname))

	// Stage 4: metadata updates. Corrupt documents are fatal; anything
	// else is a warning and the sibling sub-steps still run.
	if err := p.updateMetadata(sum, proj, req, log); err != nil {
		return sum, err
	}
	for _, w := range sum.Warnings {
		log.Warn(w)
	}

	p.registerStartup(ctx, sum, proj)
	return sum, nil
}

// updateMetadata runs the two independent metadata sub-operations. It
// returns an error only for corrupt documents.
func (p *Pipeline) updateMetadata(sum *Summary, proj *resolve.Project, req Request, log *zap.Logger) error {
	var corrupt *msbuild.CorruptMetadataError

	res, err := msbuild.EnsureCopyToOutput(proj.File, p.cfg.Deploy.TargetFileName)
	switch {
	case errors.As(err, &corrupt):
		return err
	case err != nil:
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("copy directive update failed: %v", err))
	case !res.Found:
		sum.CopyDirective = StepResult{Applied: true, Detail: "no project item for " + p.cfg.Deploy.TargetFileName}
	default:
		sum.CopyDirective = StepResult{Applied: true, Changed: res.Changed}
	}

	program, args := p.cfg.ExpandLaunch(proj.Name, req.Instance, req.Environment)
	changed, err := msbuild.EnsureDebugLaunch(proj.File+".user", msbuild.DebugLaunch{
		Program:   program,
		Arguments: args,
	})
	switch {
	case errors.As(err, &corrupt):
		return err
	case err != nil:
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("debug launch update failed: %v", err))
	default:
		sum.DebugLaunch = StepResult{Applied: true, Changed: changed}
		log.Info("debug launch settings ensured",
			zap.String("program", program),
			zap.String("arguments", args))
	}
	return nil
}

// registerStartup runs the optional interactive startup-project step.
// It is outside the hard-guarantee path: every failure is a warning.
func (p *Pipeline) registerStartup(ctx context.Context, sum *Summary, proj *resolve.Project) {
	if len(p.cfg.Startup.RegisterCommand) == 0 {
		// Prompting makes no sense when the default command registrar
		// has nothing to run. An injected registrar still gets asked.
		if _, isDefault := p.registrar.(*ide.CommandRegistrar); isDefault {
			sum.Startup.Detail = "helper not configured"
			return
		}
	}

	if !p.prompter.Confirm(ctx, "Register "+proj.Name+" as the startup project?", false) {
		sum.Startup.Detail = "declined"
		return
	}

	if err := p.registrar.RegisterStartup(ctx, proj.File); err != nil {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("startup registration failed: %v", err))
		return
	}
	sum.Startup = StepResult{Applied: true, Changed: true}
}

// copyFile copies src to dst, fsyncing the copy; the backup must be
// durable before the original is overwritten.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
