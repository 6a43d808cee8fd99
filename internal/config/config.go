package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config identifies one test-runner invocation context: a workspace root, the
// runner config file inside it, and optionally an explicit runner executable.
// A Config is immutable once discovered; one exists per located config file.
type Config struct {
	WorkspaceRoot string
	ConfigFile    string
	RunnerPath    string
	Projects      []*Project
}

// Project is a named grouping inside a Config (e.g. a browser or environment
// variant) with its own test directory. The first project is the default.
type Project struct {
	Name    string
	TestDir string
	Ordinal int
}

// Dir returns the directory containing the config file. Spawned runners use
// it as their working directory.
func (c *Config) Dir() string {
	return filepath.Dir(c.ConfigFile)
}

// Base returns the config file name passed to the runner via -c.
func (c *Config) Base() string {
	return filepath.Base(c.ConfigFile)
}

// DefaultProject returns the first declared project, or nil if none.
func (c *Config) DefaultProject() *Project {
	if len(c.Projects) == 0 {
		return nil
	}
	return c.Projects[0]
}

// ProjectByName returns the named project, or nil.
func (c *Config) ProjectByName(name string) *Project {
	for _, p := range c.Projects {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// configFile is the YAML shape of a runner config file.
type configFile struct {
	Runner   string `yaml:"runner"`
	TestDir  string `yaml:"testDir"`
	Projects []struct {
		Name    string `yaml:"name"`
		TestDir string `yaml:"testDir"`
	} `yaml:"projects"`
}

// Parse reads a runner config file and builds a Config for it. Relative
// test directories and runner paths are resolved against the config file's
// directory.
func Parse(workspaceRoot, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	cfg := &Config{
		WorkspaceRoot: workspaceRoot,
		ConfigFile:    abs,
		RunnerPath:    cf.Runner,
	}
	if cfg.RunnerPath != "" && !filepath.IsAbs(cfg.RunnerPath) {
		cfg.RunnerPath = filepath.Join(cfg.Dir(), cfg.RunnerPath)
	}

	dir := cfg.Dir()
	resolve := func(testDir string) string {
		if testDir == "" {
			testDir = cf.TestDir
		}
		if testDir == "" {
			testDir = "."
		}
		if !filepath.IsAbs(testDir) {
			testDir = filepath.Join(dir, testDir)
		}
		return filepath.Clean(testDir)
	}

	for i, p := range cf.Projects {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("project-%d", i)
		}
		cfg.Projects = append(cfg.Projects, &Project{
			Name:    name,
			TestDir: resolve(p.TestDir),
			Ordinal: i,
		})
	}

	// A config with no declared projects still has one implicit project
	// covering its test directory.
	if len(cfg.Projects) == 0 {
		cfg.Projects = []*Project{{Name: "", TestDir: resolve(""), Ordinal: 0}}
	}

	return cfg, nil
}
