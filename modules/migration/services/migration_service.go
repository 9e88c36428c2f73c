package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shipos/shipos/modules/migration/domain/dataset"
	"github.com/shipos/shipos/modules/migration/domain/entities/customer"
	"github.com/shipos/shipos/modules/migration/domain/entities/invoice"
	"github.com/shipos/shipos/modules/migration/domain/entities/mailpiece"
	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/domain/entities/parcel"
	"github.com/shipos/shipos/modules/migration/domain/mapping"
	"github.com/shipos/shipos/modules/migration/domain/pmtools"
	"github.com/shipos/shipos/modules/migration/domain/source"
	"github.com/shipos/shipos/modules/migration/domain/validation"
	"github.com/shipos/shipos/modules/migration/infrastructure/progress"
	"github.com/shipos/shipos/pkg/composables"
	"github.com/shipos/shipos/pkg/constants"
	"github.com/shipos/shipos/pkg/eventbus"
)

const DefaultStaleAfter = time.Hour

// TxFunc runs fn in a tenant-scoped transaction.
type TxFunc func(ctx context.Context, fn func(context.Context) error) error

func tracer() trace.Tracer {
	return otel.Tracer("shipos/migration")
}

type Repositories struct {
	Runs       migrationrun.Repository
	Customers  customer.Repository
	Packages   parcel.Repository
	MailPieces mailpiece.Repository
	Invoices   invoice.Repository
}

type MigrationService struct {
	runs       migrationrun.Repository
	customers  customer.Repository
	packages   parcel.Repository
	mailPieces mailpiece.Repository
	invoices   invoice.Repository
	tracker    progress.Tracker
	publisher  eventbus.EventBus

	inTx       TxFunc
	now        func() time.Time
	staleAfter time.Duration
}

type Option func(*MigrationService)

func WithTxFunc(fn TxFunc) Option {
	return func(s *MigrationService) { s.inTx = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *MigrationService) { s.now = now }
}

func WithStaleAfter(d time.Duration) Option {
	return func(s *MigrationService) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func NewMigrationService(
	repos Repositories,
	tracker progress.Tracker,
	publisher eventbus.EventBus,
	opts ...Option,
) *MigrationService {
	if tracker == nil {
		tracker = progress.NewMemoryTracker()
	}
	s := &MigrationService{
		runs:       repos.Runs,
		customers:  repos.Customers,
		packages:   repos.Packages,
		mailPieces: repos.MailPieces,
		invoices:   repos.Invoices,
		tracker:    tracker,
		publisher:  publisher,
		inTx:       composables.InTenantTx,
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MigrationService) Presets() []PresetInfo {
	names := mapping.PresetNames()
	out := make([]PresetInfo, 0, len(names))
	for _, name := range names {
		cfg, _ := mapping.Preset(name)
		out = append(out, PresetInfo{
			Key:            name,
			TargetModel:    cfg.TargetModel,
			SourceFormat:   cfg.SourceFormat,
			FieldCount:     len(cfg.FieldMappings),
			RequiredFields: mapping.RequiredColumns(cfg),
		})
	}
	return out
}

func (s *MigrationService) Template(preset string) ([]byte, error) {
	cfg, ok := mapping.Preset(preset)
	if !ok {
		return nil, &UnknownPresetError{Name: preset, Suggestions: mapping.SuggestPreset(preset)}
	}
	return mapping.TemplateCSV(cfg)
}

func (s *MigrationService) resolveConfig(req PresetRequest) (mapping.Config, error) {
	if req.Config != nil {
		cfg := req.Config.Clone()
		if cfg.SourceFormat == "" {
			cfg.SourceFormat = source.Auto
		}
		if err := cfg.Validate(); err != nil {
			return mapping.Config{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return cfg, nil
	}
	cfg, ok := mapping.Preset(req.Preset)
	if !ok {
		return mapping.Config{}, &UnknownPresetError{Name: req.Preset, Suggestions: mapping.SuggestPreset(req.Preset)}
	}
	return cfg, nil
}

// PreparePreset parses and validates a single-model source. It has no side
// effects.
func (s *MigrationService) PreparePreset(req PresetRequest) (Plan, error) {
	cfg, err := s.resolveConfig(req)
	if err != nil {
		return Plan{}, err
	}
	format := req.Format
	if format == "" {
		format = cfg.SourceFormat
	}
	if format == source.Auto {
		format = source.Detect(req.Source, req.SourceFile)
	}
	records, err := source.Parse(req.Source, format)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	report := validation.ValidateBatch(records, cfg, nil)
	sourceSystem := req.SourceSystem
	if sourceSystem == "" {
		sourceSystem = cfg.Name
	}
	ds := dataset.FromReport(report, cfg.TargetModel, sourceSystem, req.SourceFile)
	return Plan{
		Dataset:    ds,
		ParseStats: ds.Stats(),
		Validation: report,
	}, nil
}

// PreparePMTools parses a PMTools export and checks its PMB numbers against
// the store. It only reads.
func (s *MigrationService) PreparePMTools(ctx context.Context, files map[string]string) (Plan, error) {
	exp, err := pmtools.Parse(files)
	if err != nil {
		if errors.Is(err, pmtools.ErrMissingCustomerTable) || errors.Is(err, pmtools.ErrUnknownTable) {
			return Plan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return Plan{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	existing, err := inTxResult(ctx, s.inTx, func(txCtx context.Context) (map[string]uuid.UUID, error) {
		return s.customers.FindIDsByPMB(txCtx, exp.PMBNumbers())
	})
	if err != nil {
		return Plan{}, err
	}
	pmbs := make(map[string]struct{}, len(existing))
	for k := range existing {
		pmbs[k] = struct{}{}
	}
	checks := exp.Check(pmbs)

	ds := exp.Dataset(pmtoolsSourceFile(files))
	return Plan{
		Dataset:    ds,
		ParseStats: ds.Stats(),
		Validation: mergeReports(exp.Customers, exp.Mailboxes, exp.Packages, exp.Billing),
		Checks:     &checks,
	}, nil
}

func pmtoolsSourceFile(files map[string]string) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func mergeReports(reports ...validation.Report) validation.Report {
	out := validation.Report{Errors: []mapping.ValidationError{}}
	for _, r := range reports {
		out.TotalRows += r.TotalRows
		out.ValidRows += r.ValidRows
		out.SkippedRows += r.SkippedRows
		out.DuplicateRows += r.DuplicateRows
		out.ExistingRows += r.ExistingRows
		out.Errors = append(out.Errors, r.Errors...)
	}
	return out
}

// DryRun reports what Execute would receive. It never touches the store.
func (s *MigrationService) DryRun(plan Plan) *DryRunResponse {
	return &DryRunResponse{
		Mode:       ModeDryRun,
		ParseStats: plan.ParseStats,
		Validation: plan.Validation,
		Checks:     plan.Checks,
	}
}

// Run validates req and dispatches it on its mode.
func (s *MigrationService) Run(ctx context.Context, req Request) (Response, error) {
	if err := constants.Validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return Response{}, &RequestError{Fields: fieldErrors(verrs)}
		}
		return Response{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var (
		plan Plan
		err  error
	)
	if len(req.Files) > 0 {
		plan, err = s.PreparePMTools(ctx, req.Files)
	} else {
		format := source.Format(req.Format)
		plan, err = s.PreparePreset(PresetRequest{
			Preset:       req.Preset,
			Config:       req.Config,
			Source:       []byte(req.Source),
			Format:       format,
			SourceFile:   req.SourceFile,
			SourceSystem: req.SourceSystem,
		})
	}
	if err != nil {
		return Response{}, err
	}
	if req.SourceSystem != "" {
		plan.Dataset.SourceSystem = req.SourceSystem
	}

	if req.Mode == ModeDryRun {
		return Response{DryRun: s.DryRun(plan)}, nil
	}
	resp, err := s.Execute(ctx, plan)
	return Response{Execute: resp}, err
}

func (s *MigrationService) GetRun(ctx context.Context, id uuid.UUID) (migrationrun.Run, error) {
	return inTxResult(ctx, s.inTx, func(txCtx context.Context) (migrationrun.Run, error) {
		return s.runs.GetByID(txCtx, id)
	})
}

func (s *MigrationService) ListRuns(ctx context.Context, params *migrationrun.FindParams) ([]migrationrun.Run, error) {
	if params == nil {
		params = &migrationrun.FindParams{}
	}
	return inTxResult(ctx, s.inTx, func(txCtx context.Context) ([]migrationrun.Run, error) {
		return s.runs.List(txCtx, params)
	})
}

// StaleRuns lists runs still migrating after olderThan, or the configured
// threshold when olderThan is zero. Such runs were interrupted.
func (s *MigrationService) StaleRuns(ctx context.Context, olderThan time.Duration) ([]migrationrun.Run, error) {
	if olderThan <= 0 {
		olderThan = s.staleAfter
	}
	runs, err := s.ListRuns(ctx, &migrationrun.FindParams{Status: migrationrun.StatusMigrating})
	if err != nil {
		return nil, err
	}
	now := s.now()
	stale := make([]migrationrun.Run, 0, len(runs))
	for _, r := range runs {
		if r.IsStale(now, olderThan) {
			stale = append(stale, r)
		}
	}
	return stale, nil
}

func (s *MigrationService) Progress(ctx context.Context, runID uuid.UUID) (progress.Snapshot, error) {
	return s.tracker.Get(ctx, runID)
}
