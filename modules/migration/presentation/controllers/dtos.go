package controllers

import (
	"time"

	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
)

type RunResponse struct {
	ID           string                     `json:"id"`
	SourceFile   string                     `json:"sourceFile"`
	SourceSystem string                     `json:"sourceSystem"`
	Status       migrationrun.Status        `json:"status"`
	StartedAt    time.Time                  `json:"startedAt"`
	CompletedAt  *time.Time                 `json:"completedAt"`
	Source       migrationrun.Counts        `json:"source"`
	Migrated     migrationrun.Counts        `json:"migrated"`
	ErrorLog     []migrationrun.EntityError `json:"errorLog"`
}

func toRunResponse(r migrationrun.Run) RunResponse {
	return RunResponse{
		ID:           r.ID().String(),
		SourceFile:   r.SourceFile(),
		SourceSystem: r.SourceSystem(),
		Status:       r.Status(),
		StartedAt:    r.StartedAt(),
		CompletedAt:  r.CompletedAt(),
		Source:       r.Source(),
		Migrated:     r.Migrated(),
		ErrorLog:     r.ErrorLog(),
	}
}
