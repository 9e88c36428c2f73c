package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/shipos/shipos/modules/migration/domain/entities/customer"
	"github.com/shipos/shipos/modules/migration/domain/entities/invoice"
	"github.com/shipos/shipos/modules/migration/domain/entities/mailpiece"
	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/domain/entities/parcel"
	"github.com/shipos/shipos/modules/migration/infrastructure/progress"
	"github.com/shipos/shipos/modules/migration/services"
	"github.com/shipos/shipos/pkg/application"
	"github.com/shipos/shipos/pkg/composables"
	"github.com/shipos/shipos/pkg/eventbus"
)

type memRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]migrationrun.Run
}

func (m *memRuns) Create(_ context.Context, r migrationrun.Run) (migrationrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID()] = r
	return r, nil
}

func (m *memRuns) Update(_ context.Context, r migrationrun.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID()]; !ok {
		return migrationrun.ErrNotFound
	}
	m.runs[r.ID()] = r
	return nil
}

func (m *memRuns) GetByID(_ context.Context, id uuid.UUID) (migrationrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return migrationrun.Run{}, migrationrun.ErrNotFound
	}
	return r, nil
}

func (m *memRuns) List(_ context.Context, params *migrationrun.FindParams) ([]migrationrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]migrationrun.Run, 0, len(m.runs))
	for _, r := range m.runs {
		if params.Status != "" && r.Status() != params.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type memCustomers struct{ created []*customer.Customer }

func (m *memCustomers) Create(_ context.Context, c *customer.Customer) error {
	c.ID = uuid.New()
	m.created = append(m.created, c)
	return nil
}

func (m *memCustomers) FindIDsByPMB(context.Context, []string) (map[string]uuid.UUID, error) {
	return map[string]uuid.UUID{}, nil
}

func (m *memCustomers) ResolveRefs(context.Context, []string) (map[string]uuid.UUID, error) {
	return map[string]uuid.UUID{}, nil
}

func (m *memCustomers) Count(context.Context) (int64, error) { return int64(len(m.created)), nil }

type memPackages struct{}

func (memPackages) Create(context.Context, *parcel.Package) error { return nil }
func (memPackages) ExistingTrackingNumbers(context.Context, []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (memPackages) Count(context.Context) (int64, error) { return 0, nil }

type memMail struct{}

func (memMail) Create(context.Context, *mailpiece.MailPiece) error { return nil }
func (memMail) Count(context.Context) (int64, error)              { return 0, nil }

type memInvoices struct{}

func (memInvoices) Create(context.Context, *invoice.Invoice) error { return nil }
func (memInvoices) ExistingNumbers(context.Context, []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (memInvoices) Count(context.Context) (int64, error) { return 0, nil }

type testEnv struct {
	router    *mux.Router
	runs      *memRuns
	customers *memCustomers
	tenant    uuid.UUID
}

func newTestEnv(t *testing.T, opts ControllerOptions) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		runs:      &memRuns{runs: map[uuid.UUID]migrationrun.Run{}},
		customers: &memCustomers{},
		tenant:    uuid.New(),
	}
	bus := eventbus.NewEventPublisher(logger)
	app := application.New(&application.ApplicationOptions{EventBus: bus, Logger: logger})
	app.RegisterServices(services.NewMigrationService(services.Repositories{
		Runs:       env.runs,
		Customers:  env.customers,
		Packages:   memPackages{},
		MailPieces: memMail{},
		Invoices:   memInvoices{},
	}, progress.NewMemoryTracker(), bus, services.WithTxFunc(func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	})))

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := composables.WithLogger(req.Context(), logrus.NewEntry(logger))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewMigrationAPIController(app, opts).Register(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", e.tenant.String())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func importBody(t *testing.T, mode, source string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"mode": mode, "source": source, "preset": "postalmate"})
	require.NoError(t, err)
	return string(b)
}

const customersCSV = "FIRSTNAME,LASTNAME,EMAIL,BOX_NUM\nJane,Doe,jane@x.com,12\nJohn,Doe,,13"

func TestImport_DryRun(t *testing.T) {
	env := newTestEnv(t, ControllerOptions{MaxBodySize: 1 << 20})
	rec, out := env.do(t, http.MethodPost, "/migration/api/legacy-import", importBody(t, "dry_run", customersCSV))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "dry_run", out["mode"])

	validation := out["validation"].(map[string]any)
	require.EqualValues(t, 2, validation["totalRows"])
	require.EqualValues(t, 1, validation["validRows"])
	require.Empty(t, env.runs.runs)
}

func TestImport_Execute(t *testing.T) {
	env := newTestEnv(t, ControllerOptions{MaxBodySize: 1 << 20})
	rec, out := env.do(t, http.MethodPost, "/migration/api/legacy-import", importBody(t, "execute", customersCSV))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "execute", out["mode"])
	require.Len(t, env.customers.created, 1)

	id := out["migrationId"].(string)
	rec, run := env.do(t, http.MethodGet, "/migration/api/runs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(migrationrun.StatusCompleted), run["status"])
	require.EqualValues(t, 1, run["migrated"].(map[string]any)["customers"])

	rec, prog := env.do(t, http.MethodGet, "/migration/api/runs/"+id+"/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 100, prog["percent"])

	rec, list := env.do(t, http.MethodGet, "/migration/api/runs?status=completed&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list["runs"], 1)
}

func TestImport_ErrorCodes(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "malformed json", body: `{"mode":`, status: http.StatusBadRequest, code: "MIGRATION_INVALID_JSON"},
		{name: "invalid mode", body: `{"mode":"replay","source":"a","preset":"postalmate"}`, status: http.StatusUnprocessableEntity, code: "MIGRATION_VALIDATION_FAILED"},
		{name: "unknown preset", body: `{"mode":"dry_run","source":"a","preset":"postalmat"}`, status: http.StatusBadRequest, code: "MIGRATION_UNKNOWN_PRESET"},
		{name: "parse failure", body: `{"mode":"dry_run","source":"{\"a\":","preset":"postalmate","format":"json"}`, status: http.StatusBadRequest, code: "MIGRATION_PARSE_FAILED"},
		{name: "no valid rows", body: `{"mode":"execute","source":"FIRSTNAME,LASTNAME,EMAIL,BOX_NUM\nJohn,Doe,,13","preset":"postalmate"}`, status: http.StatusBadRequest, code: "MIGRATION_NO_VALID_ROWS"},
	}
	env := newTestEnv(t, ControllerOptions{MaxBodySize: 1 << 20})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := env.do(t, http.MethodPost, "/migration/api/legacy-import", tc.body)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.code, out["code"])
		})
	}
}

func TestImport_UnknownPresetMeta(t *testing.T) {
	env := newTestEnv(t, ControllerOptions{MaxBodySize: 1 << 20})
	_, out := env.do(t, http.MethodPost, "/migration/api/legacy-import", `{"mode":"dry_run","source":"a","preset":"postalmat"}`)
	meta := out["meta"].(map[string]any)
	require.Contains(t, meta["suggestions"], "postalmate")
}

func TestImport_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, ControllerOptions{MaxBodySize: 16})
	rec, out := env.do(t, http.MethodPost, "/migration/api/legacy-import", importBody(t, "dry_run", customersCSV))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "MIGRATION_BODY_TOO_LARGE", out["code"])
}

func TestImport_RequiresTenant(t *testing.T) {
	env := newTestEnv(t, ControllerOptions{MaxBodySize: 1 << 20})
	req := httptest.NewRequest(http.MethodPost, "/migration/api/legacy-import", strings.NewReader(importBody(t, "dry_run", customersCSV)))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "TENANT_REQUIRED")
}

func TestPresetsAndTemplate(t *testing.T) {
	env := newTestEnv(t, ControllerOptions{})
	rec, out := env.do(t, http.MethodGet, "/migration/api/legacy-import", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, out["presets"])

	rec, _ = env.do(t, http.MethodGet, "/migration/api/presets/generic_packages/template", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "generic_packages-template.csv")
	require.True(t, strings.HasPrefix(rec.Body.String(), "tracking_number,carrier"))

	rec, out = env.do(t, http.MethodGet, "/migration/api/presets/nope/template", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MIGRATION_UNKNOWN_PRESET", out["code"])
}

func TestRuns_NotFoundAndBadInput(t *testing.T) {
	env := newTestEnv(t, ControllerOptions{})
	rec, out := env.do(t, http.MethodGet, "/migration/api/runs/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "MIGRATION_NOT_FOUND", out["code"])

	rec, out = env.do(t, http.MethodGet, "/migration/api/runs/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MIGRATION_INVALID_ID", out["code"])

	rec, out = env.do(t, http.MethodGet, "/migration/api/runs?status=bogus", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "MIGRATION_VALIDATION_FAILED", out["code"])
}
