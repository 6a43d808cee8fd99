package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_Scan(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		"tests/auth/login.spec.ts",
		"tests/auth/logout.spec.ts",
		"tests/billing/invoice.test.js",
		"tests/helpers/util.ts",
		"node_modules/dep/dep.spec.ts",
		".cache/cached.spec.ts",
		"readme.md",
	}
	for _, file := range files {
		full := filepath.Join(tmpDir, file)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("test"), 0o644))
	}

	scanner := NewScanner([]string{"node_modules", "vendor"})

	t.Run("finds test files outside skipped and hidden dirs", func(t *testing.T) {
		results, err := scanner.Scan(tmpDir)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(tmpDir, "tests/auth/login.spec.ts"),
			filepath.Join(tmpDir, "tests/auth/logout.spec.ts"),
			filepath.Join(tmpDir, "tests/billing/invoice.test.js"),
		}, results)
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		_, err := scanner.Scan(filepath.Join(tmpDir, "missing"))
		assert.Error(t, err)
	})

	t.Run("returns error for file instead of directory", func(t *testing.T) {
		_, err := scanner.Scan(filepath.Join(tmpDir, "readme.md"))
		assert.Error(t, err)
	})
}

func TestIsTestFile(t *testing.T) {
	assert.True(t, IsTestFile("login.spec.ts"))
	assert.True(t, IsTestFile("api.test.js"))
	assert.False(t, IsTestFile("helper.ts"))
	assert.False(t, IsTestFile("spec.ts"))
}
