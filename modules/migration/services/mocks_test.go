package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shipos/shipos/modules/migration/domain/entities/customer"
	"github.com/shipos/shipos/modules/migration/domain/entities/invoice"
	"github.com/shipos/shipos/modules/migration/domain/entities/mailpiece"
	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/domain/entities/parcel"
)

type mockRunRepo struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]migrationrun.Run
	creates   int
	updates   []migrationrun.Run
	createErr error
	updateCtx []context.Context
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[uuid.UUID]migrationrun.Run)}
}

func (m *mockRunRepo) Create(ctx context.Context, r migrationrun.Run) (migrationrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return migrationrun.Run{}, m.createErr
	}
	m.creates++
	m.runs[r.ID()] = r
	return r, nil
}

func (m *mockRunRepo) Update(ctx context.Context, r migrationrun.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, r)
	m.updateCtx = append(m.updateCtx, ctx)
	m.runs[r.ID()] = r
	return nil
}

func (m *mockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (migrationrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return migrationrun.Run{}, migrationrun.ErrNotFound
	}
	return r, nil
}

func (m *mockRunRepo) List(ctx context.Context, params *migrationrun.FindParams) ([]migrationrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []migrationrun.Run
	for _, r := range m.runs {
		if params != nil && params.Status != "" && r.Status() != params.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type mockCustomerRepo struct {
	created   []*customer.Customer
	byPMB     map[string]uuid.UUID
	bySource  map[string]uuid.UUID
	createErr map[string]error
	lookupErr error
	pmbCalls  int
	refCalls  [][]string
}

func newMockCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{
		byPMB:     make(map[string]uuid.UUID),
		bySource:  make(map[string]uuid.UUID),
		createErr: make(map[string]error),
	}
}

func (m *mockCustomerRepo) Create(ctx context.Context, c *customer.Customer) error {
	if err := m.createErr[c.SourceID]; err != nil {
		return err
	}
	c.ID = uuid.New()
	m.created = append(m.created, c)
	m.byPMB[strings.ToLower(c.PmbNumber)] = c.ID
	m.bySource[c.SourceID] = c.ID
	return nil
}

func (m *mockCustomerRepo) FindIDsByPMB(ctx context.Context, pmbs []string) (map[string]uuid.UUID, error) {
	m.pmbCalls++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := make(map[string]uuid.UUID)
	for _, p := range pmbs {
		if id, ok := m.byPMB[strings.ToLower(p)]; ok {
			out[strings.ToLower(p)] = id
		}
	}
	return out, nil
}

func (m *mockCustomerRepo) ResolveRefs(ctx context.Context, refs []string) (map[string]uuid.UUID, error) {
	m.refCalls = append(m.refCalls, refs)
	out := make(map[string]uuid.UUID)
	for _, r := range refs {
		if id, ok := m.bySource[r]; ok {
			out[r] = id
		} else if id, ok := m.byPMB[strings.ToLower(r)]; ok {
			out[r] = id
		}
	}
	return out, nil
}

func (m *mockCustomerRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.created)), nil
}

type mockPackageRepo struct {
	created  []*parcel.Package
	existing map[string]struct{}
	failOn   map[string]error
}

func newMockPackageRepo() *mockPackageRepo {
	return &mockPackageRepo{existing: make(map[string]struct{}), failOn: make(map[string]error)}
}

func (m *mockPackageRepo) Create(ctx context.Context, p *parcel.Package) error {
	if err := m.failOn[p.SourceID]; err != nil {
		return err
	}
	p.ID = uuid.New()
	m.created = append(m.created, p)
	return nil
}

func (m *mockPackageRepo) ExistingTrackingNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, n := range numbers {
		if _, ok := m.existing[strings.ToLower(n)]; ok {
			out[strings.ToLower(n)] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockPackageRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.created)), nil
}

type mockMailRepo struct {
	created []*mailpiece.MailPiece
}

func (m *mockMailRepo) Create(ctx context.Context, mp *mailpiece.MailPiece) error {
	mp.ID = uuid.New()
	m.created = append(m.created, mp)
	return nil
}

func (m *mockMailRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.created)), nil
}

type mockInvoiceRepo struct {
	created  []*invoice.Invoice
	existing map[string]struct{}
}

func (m *mockInvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv.InvoiceNumber == "" {
		return errors.New("invoice number required")
	}
	inv.ID = uuid.New()
	m.created = append(m.created, inv)
	return nil
}

func (m *mockInvoiceRepo) ExistingNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, n := range numbers {
		if _, ok := m.existing[strings.ToLower(n)]; ok {
			out[strings.ToLower(n)] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockInvoiceRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.created)), nil
}
