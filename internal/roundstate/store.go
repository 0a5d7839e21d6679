// Package roundstate keeps the per-task repository record between rounds.
package roundstate

import (
	"context"
	"errors"

	"app-deployer/internal/models"
)

var (
	ErrNotFound      = errors.New("round state: task not found")
	ErrInvalidRecord = errors.New("round state: record has no task id")
)

// Store is safe for concurrent use across tasks. Put keeps the first record
// written for a task; later puts for the same task are ignored.
type Store interface {
	Put(ctx context.Context, record *models.RepoRecord) error
	Get(ctx context.Context, taskID string) (*models.RepoRecord, error)
}

func validate(record *models.RepoRecord) error {
	if record == nil || record.Task == "" {
		return ErrInvalidRecord
	}
	return nil
}
