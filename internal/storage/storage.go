package storage

import "trb/internal/domain"

// Storage persists and loads run results (e.g. for re-running only the
// previously failed tests).
type Storage interface {
	Save(output *domain.RunOutput) error
	Load() (*domain.RunOutput, error)
}
