package ide

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRegistrar_Unconfigured(t *testing.T) {
	r := &CommandRegistrar{Timeout: time.Second}
	err := r.RegisterStartup(context.Background(), "Kernel.Service.csproj")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestCommandRegistrar_ExpandsProjectPlaceholder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell helper")
	}
	marker := filepath.Join(t.TempDir(), "marker")
	r := &CommandRegistrar{
		Command: []string{"sh", "-c", "echo {project} > " + marker},
		Timeout: 5 * time.Second,
	}

	require.NoError(t, r.RegisterStartup(context.Background(), "/ws/Kernel.Service.csproj"))

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "/ws/Kernel.Service.csproj", strings.TrimSpace(string(data)))
}

func TestCommandRegistrar_FailureIncludesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell helper")
	}
	r := &CommandRegistrar{
		Command: []string{"sh", "-c", "echo no IDE running >&2; exit 3"},
		Timeout: 5 * time.Second,
	}

	err := r.RegisterStartup(context.Background(), "p.csproj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no IDE running")
}

func TestCommandRegistrar_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell helper")
	}
	r := &CommandRegistrar{
		Command: []string{"sleep", "10"},
		Timeout: 50 * time.Millisecond,
	}

	start := time.Now()
	err := r.RegisterStartup(context.Background(), "p.csproj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNopRegistrar(t *testing.T) {
	assert.NoError(t, NopRegistrar{}.RegisterStartup(context.Background(), "p.csproj"))
}
