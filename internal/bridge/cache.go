package bridge

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"trb/internal/config"
)

// Cache memoizes resolved runner executables and their reported versions.
// It is owned by the caller and passed by reference; Invalidate drops all
// memoized state, e.g. after a file save changes the workspace layout.
type Cache struct {
	mu       sync.Mutex
	runners  map[string]string
	versions map[string]string

	// lookPath is swappable for tests.
	lookPath func(string) (string, error)
	// versionOutput is swappable for tests; defaults to running
	// `runner --version`.
	versionOutput func(runner string) (string, error)
}

// NewCache creates an empty resolver cache.
func NewCache() *Cache {
	return &Cache{
		runners:  make(map[string]string),
		versions: make(map[string]string),
		lookPath: exec.LookPath,
		versionOutput: func(runner string) (string, error) {
			out, err := exec.Command(runner, "--version").Output()
			return string(out), err
		},
	}
}

// Invalidate drops every memoized path and version.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runners = make(map[string]string)
	c.versions = make(map[string]string)
}

// Resolve locates the runner executable for a config: the explicitly
// configured path, then well-known workspace bin directories, then $PATH.
// Fails fast with ErrRunnerNotFound so nothing is spawned for a broken setup.
func (c *Cache) Resolve(cfg *config.Config) (string, error) {
	c.mu.Lock()
	if path, ok := c.runners[cfg.ConfigFile]; ok {
		c.mu.Unlock()
		return path, nil
	}
	c.mu.Unlock()

	path, err := c.resolve(cfg)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.runners[cfg.ConfigFile] = path
	c.mu.Unlock()
	return path, nil
}

func (c *Cache) resolve(cfg *config.Config) (string, error) {
	if cfg.RunnerPath != "" {
		if _, err := os.Stat(cfg.RunnerPath); err != nil {
			return "", ErrRunnerNotFound
		}
		return cfg.RunnerPath, nil
	}

	candidates := []string{
		filepath.Join(cfg.WorkspaceRoot, "bin", config.DefaultRunnerName),
		filepath.Join(cfg.WorkspaceRoot, "node_modules", ".bin", config.DefaultRunnerName),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if path, err := c.lookPath(config.DefaultRunnerName); err == nil {
		return path, nil
	}
	return "", ErrRunnerNotFound
}
