package services

import (
	"github.com/google/uuid"

	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
)

// RunFinishedEvent is published after the terminal write of an execute run.
type RunFinishedEvent struct {
	TenantID uuid.UUID
	RunID    uuid.UUID
	Status   migrationrun.Status
	Results  Results
}
