package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T) *ProjectResolver {
	t.Helper()
	r, err := NewProjectResolver(".csproj", "Kernel.", []string{"exact", "prefixed", "shallowest"}, zap.NewNop())
	require.NoError(t, err)
	return r
}

func writeProject(t *testing.T, root string, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("<Project></Project>"), 0644))
	return path
}

func TestProjectResolver_ExactMatchWins(t *testing.T) {
	root := t.TempDir()
	want := writeProject(t, root, "Service/Service.csproj")
	writeProject(t, root, "Service.Tests/Service.Tests.csproj")
	writeProject(t, root, "Legacy/Old.Service.Contract/Old.Service.Contract.csproj")

	r := newTestResolver(t)
	p, err := r.Resolve(root, "Service")
	require.NoError(t, err)

	assert.Equal(t, want, p.File)
	assert.Equal(t, "Service", p.Name)
	assert.Equal(t, filepath.Dir(want), p.Dir)
}

func TestProjectResolver_ExactMatchIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	want := writeProject(t, root, "Service/SERVICE.csproj")
	writeProject(t, root, "Service.Tests/Service.Tests.csproj")

	r := newTestResolver(t)
	p, err := r.Resolve(root, "service")
	require.NoError(t, err)
	assert.Equal(t, want, p.File)
}

func TestProjectResolver_NamespacePrefixRule(t *testing.T) {
	root := t.TempDir()
	want := writeProject(t, root, "Kernel.Service/Kernel.Service.csproj")
	writeProject(t, root, "Kernel.Service.Tests/Kernel.Service.Tests.csproj")

	r := newTestResolver(t)
	p, err := r.Resolve(root, "Service")
	require.NoError(t, err)

	assert.Equal(t, want, p.File)
	assert.Equal(t, "Kernel.Service", p.Name)
}

func TestProjectResolver_ShallowestFallback(t *testing.T) {
	root := t.TempDir()
	want := writeProject(t, root, "Billing.Worker/Billing.Worker.csproj")
	writeProject(t, root, "modules/extra/Billing.Worker.Probe/Billing.Worker.Probe.csproj")

	r := newTestResolver(t)
	p, err := r.Resolve(root, "Billing")
	require.NoError(t, err)
	assert.Equal(t, want, p.File)
}

func TestProjectResolver_ShallowestTieBreaksLexicographically(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "b/Billing.Two.csproj")
	want := writeProject(t, root, "a/Billing.One.csproj")

	r := newTestResolver(t)
	p, err := r.Resolve(root, "Billing")
	require.NoError(t, err)
	assert.Equal(t, want, p.File)
}

func TestProjectResolver_NoCandidates(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "Other/Other.csproj")

	r := newTestResolver(t)
	_, err := r.Resolve(root, "Payments")

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, KindProject, nf.Kind)
	assert.Equal(t, "Payments", nf.Pattern)
	assert.Equal(t, root, nf.Path)
}

func TestProjectResolver_MissingWorkspace(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.Resolve(filepath.Join(t.TempDir(), "absent"), "Service")

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, KindWorkspace, nf.Kind)
}

func TestProjectResolver_SkipsDotDirectories(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, ".Deploy/Shadow.Service.csproj")
	want := writeProject(t, root, "Shadow.Service/Shadow.Service.csproj")

	r := newTestResolver(t)
	p, err := r.Resolve(root, "Shadow.Service")
	require.NoError(t, err)
	assert.Equal(t, want, p.File)
}

func TestProjectResolver_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "x/Report.Engine.csproj")
	writeProject(t, root, "y/Report.Viewer.csproj")

	r := newTestResolver(t)
	first, err := r.Resolve(root, "Report")
	require.NoError(t, err)

	for range 5 {
		again, err := r.Resolve(root, "Report")
		require.NoError(t, err)
		assert.Equal(t, first.File, again.File)
	}
}

func TestNewProjectResolver_RejectsUnknownRule(t *testing.T) {
	_, err := NewProjectResolver(".csproj", "", []string{"exact", "regex"}, nil)
	assert.Error(t, err)
}
