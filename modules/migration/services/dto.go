package services

import (
	"github.com/google/uuid"

	"github.com/shipos/shipos/modules/migration/domain/dataset"
	"github.com/shipos/shipos/modules/migration/domain/mapping"
	"github.com/shipos/shipos/modules/migration/domain/pmtools"
	"github.com/shipos/shipos/modules/migration/domain/source"
	"github.com/shipos/shipos/modules/migration/domain/validation"
)

type Mode string

const (
	ModeDryRun  Mode = "dry_run"
	ModeExecute Mode = "execute"
)

// Request is the invocation of a single migration. Files selects the
// PMTools variant; otherwise Source is read with Preset or Config.
type Request struct {
	Mode         Mode              `json:"mode" validate:"required,oneof=dry_run execute"`
	Source       string            `json:"source" validate:"required_without=Files"`
	Preset       string            `json:"preset" validate:"required_without_all=Config Files"`
	Config       *mapping.Config   `json:"config,omitempty" validate:"-"`
	Format       string            `json:"format,omitempty" validate:"omitempty,oneof=csv tsv json xlsx auto"`
	SourceFile   string            `json:"sourceFile,omitempty" validate:"max=255"`
	SourceSystem string            `json:"sourceSystem,omitempty" validate:"max=64"`
	Files        map[string]string `json:"files,omitempty"`
}

type PresetRequest struct {
	Preset string
	// Config overrides Preset.
	Config       *mapping.Config
	Source       []byte
	Format       source.Format
	SourceFile   string
	SourceSystem string
}

// Plan is a parsed and validated dataset ready for dry-run or execution.
type Plan struct {
	Dataset    dataset.Dataset
	ParseStats dataset.ParseStats
	Validation validation.Report
	Checks     *pmtools.CheckResult
}

type PresetInfo struct {
	Key            string              `json:"key"`
	TargetModel    mapping.TargetModel `json:"targetModel"`
	SourceFormat   source.Format       `json:"sourceFormat"`
	FieldCount     int                 `json:"fieldCount"`
	RequiredFields []string            `json:"requiredFields"`
}

type ExistingCounts struct {
	Customers  int `json:"customers"`
	Packages   int `json:"packages"`
	MailPieces int `json:"mailPieces"`
	Invoices   int `json:"invoices"`
}

type RowError struct {
	Entity   string `json:"entity"`
	SourceID string `json:"sourceId"`
	Row      int    `json:"row"`
	Message  string `json:"message"`
}

type Results struct {
	Customers  int            `json:"customers"`
	Packages   int            `json:"packages"`
	MailPieces int            `json:"mailPieces"`
	Invoices   int            `json:"invoices"`
	Existing   ExistingCounts `json:"existing"`
	Errors     []RowError     `json:"errors"`
	Notes      []string       `json:"notes"`
}

type DryRunResponse struct {
	Mode       Mode                 `json:"mode"`
	ParseStats dataset.ParseStats   `json:"parseStats"`
	Validation validation.Report    `json:"validation"`
	Checks     *pmtools.CheckResult `json:"checks,omitempty"`
}

type ExecuteResponse struct {
	Mode        Mode              `json:"mode"`
	MigrationID uuid.UUID         `json:"migrationId"`
	Results     Results           `json:"results"`
	Validation  validation.Report `json:"validation"`
}

// Response carries exactly one of DryRun and Execute.
type Response struct {
	DryRun  *DryRunResponse
	Execute *ExecuteResponse
}

func (r Response) Body() any {
	if r.Execute != nil {
		return r.Execute
	}
	return r.DryRun
}
