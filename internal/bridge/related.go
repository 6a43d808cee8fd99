package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"trb/internal/config"
	"trb/internal/model"
)

// RelatedTestFiles asks the runner which test files are affected by edits to
// the given source files, translating e.g. a shared-helper change into the
// test files that exercise it. The runner answers on stdout with a single
// JSON object.
func (b *Bridge) RelatedTestFiles(ctx context.Context, cfg *config.Config, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	runner, err := b.cache.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	args := append([]string{"find-related-tests", "-c", cfg.Base()}, files...)
	cmd := exec.CommandContext(ctx, runner, args...)
	cmd.Dir = cfg.Dir()

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("related test files query: %w", err)
	}

	var payload struct {
		TestFiles []string `json:"testFiles"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("related test files response: %w", err)
	}

	related := make([]string, 0, len(payload.TestFiles))
	for _, f := range payload.TestFiles {
		related = append(related, model.NormalizePath(f))
	}
	return related, nil
}
