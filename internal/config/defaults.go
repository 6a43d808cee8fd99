package config

const (
	// DefaultRunnerName is the executable searched on PATH when a config
	// does not name a runner explicitly.
	DefaultRunnerName = "testrunner"
	// DefaultConfigName is the primary config file name looked for in a
	// workspace. Variants match DefaultConfigPattern.
	DefaultConfigName = "testrunner.yaml"
	// DefaultConfigPattern matches named config variants such as
	// testrunner.ci.yaml.
	DefaultConfigPattern = "testrunner.*.yaml"
)

// DefaultSkipDirs are directories never descended into while locating config
// files or watching a workspace.
var DefaultSkipDirs = []string{
	"node_modules",
	"vendor",
	"dist",
	"build",
	"coverage",
	"test-results",
}
