package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv reads the workspace's .env file, if present, and returns its
// variables. These are layered onto the environment of every spawned runner
// so test suites see the same values they would under a local shell.
func LoadEnv(workspaceRoot string) map[string]string {
	path := filepath.Join(workspaceRoot, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil
	}
	return env
}
