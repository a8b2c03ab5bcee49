package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"envdeploy/internal/config"
	"envdeploy/internal/msbuild"
	"envdeploy/internal/resolve"
	"envdeploy/internal/ux"
)

const testProjectFile = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="15.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <OutputType>Exe</OutputType>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="Program.cs" />
    <None Include="App.config" />
  </ItemGroup>
</Project>
`

const testEnvConfig = `Server=localhost;Drive=C:\data`

// testWorkspace builds base/ws1/Kernel.Service with a deploy area and
// returns (cfg, projectDir).
func testWorkspace(t *testing.T) (*config.Config, string) {
	t.Helper()
	base := t.TempDir()
	projectDir := filepath.Join(base, "ws1", "Kernel.Service")

	files := map[string]string{
		"Kernel.Service.csproj":          testProjectFile,
		"App.config":                     `Server=localhost;Drive=C:\data`,
		".Deploy/Portfolio/DEV1.config":  testEnvConfig,
		".Deploy/Portfolio/PROD.config":  `Server=localhost;Drive=C:\prod`,
		".Deploy/Settlement/DEV1.config": `Server=localhost`,
	}
	for rel, content := range files {
		path := filepath.Join(projectDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	cfg := config.DefaultConfig()
	cfg.Workspace.BasePath = base
	cfg.Transform.DomainSuffix = "corp.kernel.local"
	return cfg, projectDir
}

func testRequest() Request {
	return Request{
		Project:           "Service",
		Environment:       "DEV1",
		Instance:          "Portfolio",
		WorkspaceSelector: "ws1",
	}
}

func tickingClock() func() time.Time {
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestPipeline_Apply(t *testing.T) {
	cfg, projectDir := testWorkspace(t)
	p := New(cfg, zap.NewNop(), WithClock(tickingClock()))

	sum, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	t.Run("summary names the resolved artifacts", func(t *testing.T) {
		assert.NotEmpty(t, sum.RunID)
		assert.Equal(t, filepath.Join(projectDir, "Kernel.Service.csproj"), sum.ProjectFile)
		assert.Equal(t, filepath.Join(projectDir, ".Deploy", "Portfolio"), sum.InstanceDir)
		assert.Equal(t, filepath.Join(projectDir, ".Deploy", "Portfolio", "DEV1.config"), sum.EnvironmentConfig)
		assert.Equal(t, filepath.Join(projectDir, "App.config"), sum.TargetFile)
		assert.Equal(t, "DEV1.corp.kernel.local", sum.Hostname)
		assert.True(t, sum.ConfigWritten)
		assert.Empty(t, sum.Warnings)
	})

	t.Run("target rewritten with transformed content", func(t *testing.T) {
		data, err := os.ReadFile(sum.TargetFile)
		require.NoError(t, err)
		assert.Equal(t, `Server=DEV1.corp.kernel.local;Drive=D:\data`, string(data))
	})

	t.Run("backup holds the original content", func(t *testing.T) {
		require.NotEmpty(t, sum.BackupFile)
		data, err := os.ReadFile(sum.BackupFile)
		require.NoError(t, err)
		assert.Equal(t, `Server=localhost;Drive=C:\data`, string(data))
	})

	t.Run("copy directive ensured", func(t *testing.T) {
		assert.True(t, sum.CopyDirective.Applied)
		assert.True(t, sum.CopyDirective.Changed)
	})

	t.Run("debug launch written", func(t *testing.T) {
		assert.True(t, sum.DebugLaunch.Applied)
		assert.True(t, sum.DebugLaunch.Changed)

		doc, err := msbuild.LoadDocument(sum.ProjectFile + ".user")
		require.NoError(t, err)
		group := doc.Root.Child("PropertyGroup")
		require.NotNil(t, group)
		assert.Equal(t, `D:\Services\Portfolio\Portfolio.Host.exe`, group.Child("StartProgram").Text())
		assert.Equal(t, "--environment DEV1", group.Child("StartArguments").Text())
	})

	t.Run("startup prompt skipped without helper", func(t *testing.T) {
		assert.Equal(t, "helper not configured", sum.Startup.Detail)
	})
}

func TestPipeline_SecondApplyMetadataIsNoOp(t *testing.T) {
	cfg, _ := testWorkspace(t)
	p := New(cfg, zap.NewNop(), WithClock(tickingClock()))

	_, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	sum, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, sum.CopyDirective.Applied)
	assert.False(t, sum.CopyDirective.Changed)
	assert.True(t, sum.DebugLaunch.Applied)
	assert.False(t, sum.DebugLaunch.Changed)
}

func TestPipeline_DryRunWritesNothing(t *testing.T) {
	cfg, projectDir := testWorkspace(t)
	p := New(cfg, zap.NewNop())

	req := testRequest()
	req.DryRun = true
	sum, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, sum.DryRun)
	assert.Contains(t, sum.Preview, "DEV1.corp.kernel.local")
	assert.False(t, sum.ConfigWritten)
	assert.Empty(t, sum.BackupFile)

	data, err := os.ReadFile(filepath.Join(projectDir, "App.config"))
	require.NoError(t, err)
	assert.Equal(t, `Server=localhost;Drive=C:\data`, string(data))

	_, err = os.Stat(filepath.Join(projectDir, "Kernel.Service.csproj.user"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPipeline_MissingInstanceAbortsBeforeAnyWrite(t *testing.T) {
	cfg, projectDir := testWorkspace(t)
	p := New(cfg, zap.NewNop())

	req := testRequest()
	req.Instance = "Billing"
	_, err := p.Run(context.Background(), req)

	var nf *resolve.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, resolve.KindInstance, nf.Kind)

	data, readErr := os.ReadFile(filepath.Join(projectDir, "App.config"))
	require.NoError(t, readErr)
	assert.Equal(t, `Server=localhost;Drive=C:\data`, string(data))
}

func TestPipeline_MissingWorkspaceSelector(t *testing.T) {
	cfg, _ := testWorkspace(t)
	p := New(cfg, zap.NewNop())

	req := testRequest()
	req.WorkspaceSelector = "ws9"
	_, err := p.Run(context.Background(), req)

	var nf *resolve.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, resolve.KindWorkspace, nf.Kind)
}

func TestPipeline_MissingEnvironmentConfig(t *testing.T) {
	cfg, _ := testWorkspace(t)
	p := New(cfg, zap.NewNop())

	req := testRequest()
	req.Environment = "UAT7"
	_, err := p.Run(context.Background(), req)

	var nf *resolve.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, resolve.KindEnvironmentConfig, nf.Kind)
}

func TestPipeline_CorruptProjectAbortsBeforeTargetWrite(t *testing.T) {
	cfg, projectDir := testWorkspace(t)
	projectFile := filepath.Join(projectDir, "Kernel.Service.csproj")
	require.NoError(t, os.WriteFile(projectFile, []byte("<Project><ItemGroup>"), 0644))

	p := New(cfg, zap.NewNop())
	_, err := p.Run(context.Background(), testRequest())

	var corrupt *msbuild.CorruptMetadataError
	require.True(t, errors.As(err, &corrupt))

	data, readErr := os.ReadFile(filepath.Join(projectDir, "App.config"))
	require.NoError(t, readErr)
	assert.Equal(t, `Server=localhost;Drive=C:\data`, string(data), "target must not be overwritten")
}

type fakeRegistrar struct {
	got string
	err error
}

func (f *fakeRegistrar) RegisterStartup(_ context.Context, projectFile string) error {
	f.got = projectFile
	return f.err
}

func TestPipeline_StartupRegistration(t *testing.T) {
	t.Run("accepted prompt registers the project", func(t *testing.T) {
		cfg, projectDir := testWorkspace(t)
		reg := &fakeRegistrar{}
		p := New(cfg, zap.NewNop(),
			WithPrompter(ux.StaticPrompter{Answer: true}),
			WithRegistrar(reg))

		sum, err := p.Run(context.Background(), testRequest())
		require.NoError(t, err)

		assert.True(t, sum.Startup.Applied)
		assert.Equal(t, filepath.Join(projectDir, "Kernel.Service.csproj"), reg.got)
	})

	t.Run("declined prompt skips registration", func(t *testing.T) {
		cfg, _ := testWorkspace(t)
		reg := &fakeRegistrar{}
		p := New(cfg, zap.NewNop(),
			WithPrompter(ux.StaticPrompter{Answer: false}),
			WithRegistrar(reg))

		sum, err := p.Run(context.Background(), testRequest())
		require.NoError(t, err)

		assert.Equal(t, "declined", sum.Startup.Detail)
		assert.Empty(t, reg.got)
	})

	t.Run("registrar failure is a warning, not fatal", func(t *testing.T) {
		cfg, _ := testWorkspace(t)
		reg := &fakeRegistrar{err: fmt.Errorf("IDE not running")}
		p := New(cfg, zap.NewNop(),
			WithPrompter(ux.StaticPrompter{Answer: true}),
			WithRegistrar(reg))

		sum, err := p.Run(context.Background(), testRequest())
		require.NoError(t, err)

		assert.False(t, sum.Startup.Applied)
		require.Len(t, sum.Warnings, 1)
		assert.Contains(t, sum.Warnings[0], "IDE not running")
	})
}

func TestPipeline_BackupDisabled(t *testing.T) {
	cfg, _ := testWorkspace(t)
	cfg.Deploy.Backup = false
	p := New(cfg, zap.NewNop())

	sum, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, sum.BackupFile)
	assert.True(t, sum.ConfigWritten)
}
