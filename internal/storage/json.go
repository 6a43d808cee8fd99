package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"trb/internal/domain"
)

// resultsFile is the last-run results file name under the state directory.
const resultsFile = "last-run.json"

// JSONStorage stores run results in a JSON file under a state directory in
// the workspace (default .trb/).
type JSONStorage struct {
	dir string
}

// NewJSONStorage returns a Storage rooted at workspaceRoot/.trb.
func NewJSONStorage(workspaceRoot string) *JSONStorage {
	return &JSONStorage{dir: filepath.Join(workspaceRoot, ".trb")}
}

// Path returns the absolute results file path.
func (s *JSONStorage) Path() string {
	p := filepath.Join(s.dir, resultsFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Save writes the run output, creating the state directory as needed.
func (s *JSONStorage) Save(output *domain.RunOutput) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// Load reads the last saved run output.
func (s *JSONStorage) Load() (*domain.RunOutput, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var output domain.RunOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &output, nil
}
