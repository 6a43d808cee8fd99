package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trb/internal/domain"
)

func TestJSONStorage_SaveLoad(t *testing.T) {
	ws := t.TempDir()
	s := NewJSONStorage(ws)

	output := &domain.RunOutput{
		Meta: domain.RunMeta{
			Total:       2,
			Passed:      1,
			Failed:      1,
			Duration:    "1.5s",
			Timestamp:   "2026-08-25T10:00:00Z",
			Interrupted: false,
		},
		Outcomes: []domain.TestOutcome{
			{TestID: "/ws/login.spec.ts:3", Title: "logs in", File: "/ws/login.spec.ts", Line: 3, Ok: true, Duration: 200 * time.Millisecond},
			{TestID: "/ws/login.spec.ts:8", Title: "rejects bad password", File: "/ws/login.spec.ts", Line: 8, Ok: false,
				Failure: &domain.TestFailure{Message: "expected error banner", File: "/ws/login.spec.ts", Line: 9}},
		},
	}

	require.NoError(t, s.Save(output))
	assert.Equal(t, filepath.Join(ws, ".trb", "last-run.json"), s.Path())

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, output.Meta, loaded.Meta)
	require.Len(t, loaded.Outcomes, 2)
	assert.Equal(t, output.Outcomes[1].Failure.Message, loaded.Outcomes[1].Failure.Message)
	assert.Equal(t, []string{"/ws/login.spec.ts:8"}, loaded.FailedIDs())
}

func TestJSONStorage_LoadMissing(t *testing.T) {
	s := NewJSONStorage(t.TempDir())
	_, err := s.Load()
	assert.Error(t, err)
}

func TestJSONStorage_SaveOverwrites(t *testing.T) {
	ws := t.TempDir()
	s := NewJSONStorage(ws)

	require.NoError(t, s.Save(&domain.RunOutput{Meta: domain.RunMeta{Total: 1}}))
	require.NoError(t, s.Save(&domain.RunOutput{Meta: domain.RunMeta{Total: 5}}))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Meta.Total)
}
