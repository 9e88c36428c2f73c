package migrationrun

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusMigrating Status = "migrating"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound          = errors.New("migration run not found")
	ErrAlreadyTerminated = errors.New("migration run already terminated")
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusMigrating, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown migration run status %q", s)
	}
}

type Counts struct {
	Customers  int `json:"customers"`
	Packages   int `json:"packages"`
	MailPieces int `json:"mailPieces"`
	Invoices   int `json:"invoices"`
}

// EntityError is one entry of a run's error log. Entity "run" carries the
// message of a run-fatal failure.
type EntityError struct {
	Entity    string    `json:"entity"`
	SourceID  string    `json:"sourceId"`
	Row       int       `json:"row,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Run struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	sourceFile   string
	sourceSystem string
	status       Status
	startedAt    time.Time
	completedAt  *time.Time
	source       Counts
	migrated     Counts
	errorLog     []EntityError
}

// New starts a run in the migrating state.
func New(tenantID uuid.UUID, sourceFile, sourceSystem string, source Counts, startedAt time.Time) Run {
	return Run{
		id:           uuid.New(),
		tenantID:     tenantID,
		sourceFile:   sourceFile,
		sourceSystem: sourceSystem,
		status:       StatusMigrating,
		startedAt:    startedAt.UTC(),
		source:       source,
	}
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	sourceFile string,
	sourceSystem string,
	status Status,
	startedAt time.Time,
	completedAt *time.Time,
	source Counts,
	migrated Counts,
	errorLog []EntityError,
) Run {
	return Run{
		id:           id,
		tenantID:     tenantID,
		sourceFile:   sourceFile,
		sourceSystem: sourceSystem,
		status:       status,
		startedAt:    startedAt,
		completedAt:  completedAt,
		source:       source,
		migrated:     migrated,
		errorLog:     errorLog,
	}
}

func (r Run) ID() uuid.UUID             { return r.id }
func (r Run) TenantID() uuid.UUID       { return r.tenantID }
func (r Run) SourceFile() string        { return r.sourceFile }
func (r Run) SourceSystem() string      { return r.sourceSystem }
func (r Run) Status() Status            { return r.status }
func (r Run) StartedAt() time.Time      { return r.startedAt }
func (r Run) CompletedAt() *time.Time   { return r.completedAt }
func (r Run) Source() Counts            { return r.source }
func (r Run) Migrated() Counts          { return r.migrated }
func (r Run) ErrorLog() []EntityError   { return r.errorLog }
func (r Run) IsTerminal() bool          { return r.status != StatusMigrating }

// ShortID is the first block of the id, used in generated PMB numbers.
func (r Run) ShortID() string {
	return r.id.String()[:8]
}

// Complete moves a migrating run to completed.
func (r Run) Complete(migrated Counts, errorLog []EntityError, at time.Time) (Run, error) {
	return r.terminate(StatusCompleted, migrated, errorLog, at)
}

// Fail moves a migrating run to failed.
func (r Run) Fail(migrated Counts, errorLog []EntityError, at time.Time) (Run, error) {
	return r.terminate(StatusFailed, migrated, errorLog, at)
}

func (r Run) terminate(status Status, migrated Counts, errorLog []EntityError, at time.Time) (Run, error) {
	if r.IsTerminal() {
		return r, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminated, r.id, r.status)
	}
	at = at.UTC()
	r.status = status
	r.completedAt = &at
	r.migrated = migrated
	r.errorLog = errorLog
	return r, nil
}

// IsStale reports a run still migrating after the given age. Such a run was
// interrupted and its partial writes need a re-run.
func (r Run) IsStale(now time.Time, after time.Duration) bool {
	return r.status == StatusMigrating && now.Sub(r.startedAt) > after
}
