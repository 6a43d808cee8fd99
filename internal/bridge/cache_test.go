package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trb/internal/config"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func TestCache_ResolveExplicitPath(t *testing.T) {
	ws := t.TempDir()
	runner := filepath.Join(ws, "custom-runner")
	writeExecutable(t, runner)

	c := NewCache()
	cfg := &config.Config{WorkspaceRoot: ws, ConfigFile: filepath.Join(ws, "testrunner.yaml"), RunnerPath: runner}

	got, err := c.Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, runner, got)
}

func TestCache_ResolveExplicitPathMissing(t *testing.T) {
	ws := t.TempDir()
	c := NewCache()
	cfg := &config.Config{WorkspaceRoot: ws, ConfigFile: filepath.Join(ws, "testrunner.yaml"), RunnerPath: filepath.Join(ws, "gone")}

	_, err := c.Resolve(cfg)
	assert.ErrorIs(t, err, ErrRunnerNotFound)
}

func TestCache_ResolveWorkspaceBinDirs(t *testing.T) {
	tests := []struct {
		name string
		rel  string
	}{
		{"workspace bin", filepath.Join("bin", config.DefaultRunnerName)},
		{"node_modules bin", filepath.Join("node_modules", ".bin", config.DefaultRunnerName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := t.TempDir()
			runner := filepath.Join(ws, tt.rel)
			writeExecutable(t, runner)

			c := NewCache()
			c.lookPath = func(string) (string, error) { return "", errors.New("not on PATH") }
			cfg := &config.Config{WorkspaceRoot: ws, ConfigFile: filepath.Join(ws, "testrunner.yaml")}

			got, err := c.Resolve(cfg)
			require.NoError(t, err)
			assert.Equal(t, runner, got)
		})
	}
}

func TestCache_ResolveFallsBackToPath(t *testing.T) {
	ws := t.TempDir()
	c := NewCache()
	c.lookPath = func(name string) (string, error) {
		assert.Equal(t, config.DefaultRunnerName, name)
		return "/usr/local/bin/testrunner", nil
	}
	cfg := &config.Config{WorkspaceRoot: ws, ConfigFile: filepath.Join(ws, "testrunner.yaml")}

	got, err := c.Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/testrunner", got)
}

func TestCache_ResolveNotFound(t *testing.T) {
	ws := t.TempDir()
	c := NewCache()
	c.lookPath = func(string) (string, error) { return "", errors.New("nope") }
	cfg := &config.Config{WorkspaceRoot: ws, ConfigFile: filepath.Join(ws, "testrunner.yaml")}

	_, err := c.Resolve(cfg)
	assert.ErrorIs(t, err, ErrRunnerNotFound)
}

func TestCache_MemoizesUntilInvalidate(t *testing.T) {
	ws := t.TempDir()
	calls := 0
	c := NewCache()
	c.lookPath = func(string) (string, error) {
		calls++
		return "/usr/bin/testrunner", nil
	}
	cfg := &config.Config{WorkspaceRoot: ws, ConfigFile: filepath.Join(ws, "testrunner.yaml")}

	_, err := c.Resolve(cfg)
	require.NoError(t, err)
	_, err = c.Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	c.Invalidate()
	_, err = c.Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{"new enough", "Test Runner version 1.4.2\n", false},
		{"exactly minimum", "1.2.0", false},
		{"too old", "runner v1.1.9", true},
		{"unparseable output tolerated", "development build", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache()
			c.versionOutput = func(string) (string, error) { return tt.output, nil }

			err := c.CheckVersion("/usr/bin/testrunner")
			if tt.wantErr {
				var tooOld *ErrVersionTooOld
				assert.ErrorAs(t, err, &tooOld)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckVersion_Memoized(t *testing.T) {
	calls := 0
	c := NewCache()
	c.versionOutput = func(string) (string, error) {
		calls++
		return "1.3.0", nil
	}
	require.NoError(t, c.CheckVersion("/usr/bin/testrunner"))
	require.NoError(t, c.CheckVersion("/usr/bin/testrunner"))
	assert.Equal(t, 1, calls)
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 0, compareVersions("1.2.0", "1.2.0"))
	assert.Equal(t, -1, compareVersions("1.2.0", "1.10.0"))
	assert.Equal(t, 1, compareVersions("2.0.0", "1.9.9"))
	assert.Equal(t, -1, compareVersions("1.2", "1.2.1"))
}
