package patient

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	items map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.items[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("patient not found")
	}
	return p, nil
}

func (m *mockRepo) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	for _, p := range m.items {
		if p.MRN == mrn {
			return p, nil
		}
	}
	return nil, fmt.Errorf("patient not found")
}

func (m *mockRepo) Update(ctx context.Context, p *Patient) error {
	if _, ok := m.items[p.ID]; !ok {
		return fmt.Errorf("patient not found")
	}
	m.items[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.items {
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockServiceRepo struct {
	items map[uuid.UUID]*PatientService
}

func newMockServiceRepo() *mockServiceRepo {
	return &mockServiceRepo{items: make(map[uuid.UUID]*PatientService)}
}

func (m *mockServiceRepo) Create(ctx context.Context, s *PatientService) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.items[s.ID] = s
	return nil
}

func (m *mockServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*PatientService, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("service not found")
	}
	return s, nil
}

func (m *mockServiceRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, uninvoicedOnly bool) ([]*PatientService, error) {
	var out []*PatientService
	for _, s := range m.items {
		if s.PatientID != patientID {
			continue
		}
		if uninvoicedOnly && s.Invoiced {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockServiceRepo) MarkInvoiced(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if s, ok := m.items[id]; ok {
			s.Invoiced = true
		}
	}
	return nil
}

func newTestService() (*Service, *mockRepo, *mockServiceRepo) {
	patients := newMockRepo()
	services := newMockServiceRepo()
	return NewService(patients, services), patients, services
}

func TestCreatePatientRequiresMRN(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.CreatePatient(context.Background(), &Patient{FirstName: "Asha"})
	if err == nil {
		t.Fatal("expected error for missing MRN")
	}
}

func TestCreatePatientRequiresName(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.CreatePatient(context.Background(), &Patient{MRN: "MRN-0001"})
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestCreateAndFetchByMRN(t *testing.T) {
	svc, _, _ := newTestService()
	p := &Patient{MRN: "MRN-0001", FirstName: "Asha", LastName: "Rao"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.GetPatientByMRN(context.Background(), "MRN-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected patient %s, got %s", p.ID, got.ID)
	}
	if got.FullName() != "Asha Rao" {
		t.Errorf("unexpected full name %q", got.FullName())
	}
}

func TestAddServiceDefaultsQuantity(t *testing.T) {
	svc, _, services := newTestService()
	ps := &PatientService{PatientID: uuid.New(), ServiceName: "X-Ray", UnitPrice: 500}
	if err := svc.AddService(context.Background(), ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if services.items[ps.ID].Quantity != 1 {
		t.Errorf("expected quantity defaulted to 1, got %d", ps.Quantity)
	}
}

func TestAddServiceRejectsNegativePrice(t *testing.T) {
	svc, _, _ := newTestService()
	ps := &PatientService{PatientID: uuid.New(), ServiceName: "X-Ray", UnitPrice: -1}
	if err := svc.AddService(context.Background(), ps); err == nil {
		t.Fatal("expected error for negative unit price")
	}
}

func TestListServicesUninvoicedOnly(t *testing.T) {
	svc, _, _ := newTestService()
	pid := uuid.New()

	billed := &PatientService{PatientID: pid, ServiceName: "Blood Test", UnitPrice: 300}
	open := &PatientService{PatientID: pid, ServiceName: "X-Ray", UnitPrice: 500}
	if err := svc.AddService(context.Background(), billed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.AddService(context.Background(), open); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.MarkServicesInvoiced(context.Background(), []uuid.UUID{billed.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.ListServices(context.Background(), pid, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Fatalf("expected only the uninvoiced service, got %d", len(got))
	}
}

func TestServiceAmountDerivation(t *testing.T) {
	total := 1200.0
	withTotal := PatientService{UnitPrice: 500, Quantity: 3, TotalPrice: &total}
	if withTotal.Amount() != 1200 {
		t.Errorf("expected recorded total to win, got %v", withTotal.Amount())
	}

	derived := PatientService{UnitPrice: 500, Quantity: 3}
	if derived.Amount() != 1500 {
		t.Errorf("expected unit price x quantity, got %v", derived.Amount())
	}

	zeroQty := PatientService{UnitPrice: 500}
	if zeroQty.Amount() != 500 {
		t.Errorf("expected quantity floor of 1, got %v", zeroQty.Amount())
	}
}
