package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/infrastructure/progress"
	"github.com/shipos/shipos/modules/migration/services"
	"github.com/shipos/shipos/pkg/application"
	"github.com/shipos/shipos/pkg/composables"
	"github.com/shipos/shipos/pkg/httpapi"
	"github.com/shipos/shipos/pkg/middleware"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type ControllerOptions struct {
	TenantHeader string
	MaxBodySize  int64
}

type MigrationAPIController struct {
	migrations *services.MigrationService
	opts       ControllerOptions
	basePath   string
}

func NewMigrationAPIController(app application.Application, opts ControllerOptions) application.Controller {
	if opts.TenantHeader == "" {
		opts.TenantHeader = "X-Tenant-ID"
	}
	return &MigrationAPIController{
		migrations: app.Service(services.MigrationService{}).(*services.MigrationService),
		opts:       opts,
		basePath:   "/migration/api",
	}
}

func (c *MigrationAPIController) Key() string {
	return c.basePath
}

func (c *MigrationAPIController) Register(r *mux.Router) {
	public := r.PathPrefix(c.basePath).Subrouter()
	public.HandleFunc("/legacy-import", c.ListPresets).Methods(http.MethodGet)
	public.HandleFunc("/presets/{name}/template", c.Template).Methods(http.MethodGet)

	tenant := r.PathPrefix(c.basePath).Subrouter()
	tenant.Use(middleware.RequireTenantHeader(c.opts.TenantHeader))
	tenant.HandleFunc("/legacy-import", c.Import).Methods(http.MethodPost)
	tenant.HandleFunc("/runs", c.ListRuns).Methods(http.MethodGet)
	tenant.HandleFunc("/runs/{id}", c.GetRun).Methods(http.MethodGet)
	tenant.HandleFunc("/runs/{id}/progress", c.Progress).Methods(http.MethodGet)
}

func (c *MigrationAPIController) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": c.migrations.Presets()})
}

func (c *MigrationAPIController) Template(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	body, err := c.migrations.Template(name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`-template.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (c *MigrationAPIController) Import(w http.ResponseWriter, r *http.Request) {
	var req services.Request
	if err := httpapi.DecodeJSON(w, r, c.opts.MaxBodySize, &req); err != nil {
		if errors.Is(err, httpapi.ErrBodyTooLarge) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "MIGRATION_BODY_TOO_LARGE", err.Error(), nil)
			return
		}
		writeAPIError(w, http.StatusBadRequest, "MIGRATION_INVALID_JSON", "invalid json", nil)
		return
	}

	resp, err := c.migrations.Run(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Body())
}

func (c *MigrationAPIController) ListRuns(w http.ResponseWriter, r *http.Request) {
	params := &migrationrun.FindParams{Limit: defaultRunsLimit}
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= maxRunsLimit {
			params.Limit = parsed
		}
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status, err := migrationrun.ParseStatus(v)
		if err != nil {
			writeAPIError(w, http.StatusUnprocessableEntity, "MIGRATION_VALIDATION_FAILED", err.Error(), map[string]string{"field": "status"})
			return
		}
		params.Status = status
	}

	runs, err := c.migrations.ListRuns(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (c *MigrationAPIController) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := c.migrations.GetRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (c *MigrationAPIController) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	snap, err := c.migrations.Progress(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"progress": snap,
		"percent":  snap.Percent(),
	})
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "MIGRATION_INVALID_ID", "run id must be a uuid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr    *services.RequestError
		presetErr *services.UnknownPresetError
		runErr    *services.RunError
	)
	switch {
	case errors.As(err, &reqErr):
		writeAPIError(w, http.StatusUnprocessableEntity, "MIGRATION_VALIDATION_FAILED", err.Error(), reqErr.Fields)
	case errors.Is(err, services.ErrInvalidRequest):
		writeAPIError(w, http.StatusUnprocessableEntity, "MIGRATION_VALIDATION_FAILED", err.Error(), nil)
	case errors.As(err, &presetErr):
		var meta map[string]string
		if len(presetErr.Suggestions) > 0 {
			meta = map[string]string{"suggestions": strings.Join(presetErr.Suggestions, ",")}
		}
		writeAPIError(w, http.StatusBadRequest, "MIGRATION_UNKNOWN_PRESET", err.Error(), meta)
	case errors.Is(err, services.ErrParse):
		writeAPIError(w, http.StatusBadRequest, "MIGRATION_PARSE_FAILED", err.Error(), nil)
	case errors.Is(err, services.ErrNoValidRows):
		writeAPIError(w, http.StatusBadRequest, "MIGRATION_NO_VALID_ROWS", err.Error(), nil)
	case errors.Is(err, migrationrun.ErrNotFound), errors.Is(err, progress.ErrProgressNotFound):
		writeAPIError(w, http.StatusNotFound, "MIGRATION_NOT_FOUND", err.Error(), nil)
	case errors.As(err, &runErr):
		var meta map[string]string
		if runErr.MigrationID != uuid.Nil {
			meta = map[string]string{"migrationId": runErr.MigrationID.String()}
		}
		composables.UseLogger(r.Context()).WithError(err).Error("migration run failed")
		writeAPIError(w, http.StatusInternalServerError, "MIGRATION_RUN_FAILED", err.Error(), meta)
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("migration request failed")
		writeAPIError(w, http.StatusInternalServerError, "MIGRATION_INTERNAL", "internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeAPIError(w http.ResponseWriter, status int, code, message string, meta map[string]string) {
	if err := httpapi.WriteError(w, status, code, message, meta); err != nil {
		panic(err)
	}
}
