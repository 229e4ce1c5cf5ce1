package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repositories --

type mockInvoiceRepo struct {
	items map[uuid.UUID]*Invoice
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{items: make(map[uuid.UUID]*Invoice)}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	for _, item := range inv.Items {
		item.ID = uuid.New()
		item.InvoiceID = inv.ID
	}
	m.items[inv.ID] = inv
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return inv, nil
}

func (m *mockInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	if _, ok := m.items[inv.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.items[inv.ID] = inv
	return nil
}

func (m *mockInvoiceRepo) List(_ context.Context, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.items {
		result = append(result, inv)
	}
	return result, len(result), nil
}

func (m *mockInvoiceRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.items {
		if inv.PatientID == patientID {
			result = append(result, inv)
		}
	}
	return result, len(result), nil
}

func (m *mockInvoiceRepo) ListUnpaidByPatient(_ context.Context, patientID uuid.UUID) ([]*Invoice, error) {
	var result []*Invoice
	for _, inv := range m.items {
		if inv.PatientID == patientID && inv.Status != StatusPaid {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (m *mockInvoiceRepo) GetItems(_ context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	inv, ok := m.items[invoiceID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return inv.Items, nil
}

type mockPaymentRepo struct {
	items   map[uuid.UUID]*Payment
	created chan struct{} // when set, Create signals and then blocks on release
	release chan struct{}
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{items: make(map[uuid.UUID]*Payment)}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	if m.created != nil {
		m.created <- struct{}{}
		<-m.release
	}
	p.ID = uuid.New()
	m.items[p.ID] = p
	return nil
}

func (m *mockPaymentRepo) List(_ context.Context, limit, offset int) ([]*Payment, int, error) {
	var result []*Payment
	for _, p := range m.items {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockPaymentRepo) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	var result []*Payment
	for _, p := range m.items {
		if p.InvoiceID == invoiceID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPaymentRepo) ListByDay(_ context.Context, day time.Time) ([]*Payment, error) {
	key := DayKey(day)
	var result []*Payment
	for _, p := range m.items {
		if DayKey(p.PaymentDate) == key {
			result = append(result, p)
		}
	}
	return result, nil
}

type mockClaimRepo struct {
	items map[uuid.UUID]*InsuranceClaim
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{items: make(map[uuid.UUID]*InsuranceClaim)}
}

func (m *mockClaimRepo) Create(_ context.Context, c *InsuranceClaim) error {
	c.ID = uuid.New()
	m.items[c.ID] = c
	return nil
}

func (m *mockClaimRepo) GetByID(_ context.Context, id uuid.UUID) (*InsuranceClaim, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (m *mockClaimRepo) Update(_ context.Context, c *InsuranceClaim) error {
	m.items[c.ID] = c
	return nil
}

func (m *mockClaimRepo) List(_ context.Context, limit, offset int) ([]*InsuranceClaim, int, error) {
	var result []*InsuranceClaim
	for _, c := range m.items {
		result = append(result, c)
	}
	return result, len(result), nil
}

func (m *mockClaimRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*InsuranceClaim, int, error) {
	var result []*InsuranceClaim
	for _, c := range m.items {
		if c.PatientID == patientID {
			result = append(result, c)
		}
	}
	return result, len(result), nil
}

type mockServiceSource struct {
	services map[uuid.UUID][]BillableService
	invoiced []uuid.UUID
}

func newMockServiceSource() *mockServiceSource {
	return &mockServiceSource{services: make(map[uuid.UUID][]BillableService)}
}

func (m *mockServiceSource) ListUninvoiced(_ context.Context, patientID uuid.UUID) ([]BillableService, error) {
	return m.services[patientID], nil
}

func (m *mockServiceSource) MarkInvoiced(_ context.Context, ids []uuid.UUID) error {
	m.invoiced = append(m.invoiced, ids...)
	return nil
}

type mockNumberer struct{ n int }

func (m *mockNumberer) Next(_ context.Context) (string, error) {
	m.n++
	return fmt.Sprintf("INV-TEST-%05d", m.n), nil
}

type mockVisitCompleter struct {
	completed      []uuid.UUID
	billingMarked  []uuid.UUID
	completeErr    error
	markPendingErr error
}

func (m *mockVisitCompleter) CompleteForPayment(_ context.Context, patientID uuid.UUID) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	m.completed = append(m.completed, patientID)
	return nil
}

func (m *mockVisitCompleter) MarkBillingPending(_ context.Context, patientID uuid.UUID) error {
	if m.markPendingErr != nil {
		return m.markPendingErr
	}
	m.billingMarked = append(m.billingMarked, patientID)
	return nil
}

type testEnv struct {
	svc      *Service
	invoices *mockInvoiceRepo
	payments *mockPaymentRepo
	claims   *mockClaimRepo
	services *mockServiceSource
	visits   *mockVisitCompleter
}

func newTestEnv() *testEnv {
	env := &testEnv{
		invoices: newMockInvoiceRepo(),
		payments: newMockPaymentRepo(),
		claims:   newMockClaimRepo(),
		services: newMockServiceSource(),
		visits:   &mockVisitCompleter{},
	}
	env.svc = NewService(env.invoices, env.payments, env.claims,
		env.services, &mockNumberer{}, env.visits, zerolog.Nop())
	return env
}

func floatPtr(f float64) *float64 { return &f }

// -- Invoice creation --

func TestCreateInvoiceExcludesConsultations(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	env.services.services[patientID] = []BillableService{
		{ID: uuid.New(), ServiceType: "Consultation", ServiceName: "General Consultation", TotalPrice: floatPtr(5000)},
		{ID: uuid.New(), ServiceType: "Lab Test", ServiceName: "CBC", TotalPrice: floatPtr(3000)},
	}

	inv, err := env.svc.CreateInvoiceFromServices(context.Background(), patientID, nil, nil)
	if err != nil {
		t.Fatalf("CreateInvoiceFromServices failed: %v", err)
	}
	if inv.TotalAmount != 3000 {
		t.Errorf("expected invoice total 3000, got %v", inv.TotalAmount)
	}
	if len(inv.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(inv.Items))
	}
	if inv.Items[0].Description != "CBC" {
		t.Errorf("expected CBC item, got %s", inv.Items[0].Description)
	}
	if inv.Status != StatusUnpaid {
		t.Errorf("expected Unpaid, got %s", inv.Status)
	}
}

func TestCreateInvoiceConsultationMatchIsCaseInsensitive(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	env.services.services[patientID] = []BillableService{
		{ID: uuid.New(), ServiceType: "SPECIALIST CONSULTATION", ServiceName: "Cardiology", TotalPrice: floatPtr(8000)},
		{ID: uuid.New(), ServiceType: "X-Ray", ServiceName: "Chest X-Ray", TotalPrice: floatPtr(2000)},
	}

	inv, err := env.svc.CreateInvoiceFromServices(context.Background(), patientID, nil, nil)
	if err != nil {
		t.Fatalf("CreateInvoiceFromServices failed: %v", err)
	}
	if inv.TotalAmount != 2000 {
		t.Errorf("expected total 2000 with consultation excluded, got %v", inv.TotalAmount)
	}
}

func TestCreateInvoiceDerivesPriceFromUnitAndQuantity(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	env.services.services[patientID] = []BillableService{
		{ID: uuid.New(), ServiceType: "Medication", ServiceName: "Amoxicillin", UnitPrice: 150, Quantity: 3},
	}

	inv, err := env.svc.CreateInvoiceFromServices(context.Background(), patientID, nil, nil)
	if err != nil {
		t.Fatalf("CreateInvoiceFromServices failed: %v", err)
	}
	if inv.TotalAmount != 450 {
		t.Errorf("expected total 450 derived from unit price, got %v", inv.TotalAmount)
	}
}

func TestCreateInvoiceNoBillableServices(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	env.services.services[patientID] = []BillableService{
		{ID: uuid.New(), ServiceType: "Consultation", ServiceName: "Visit", TotalPrice: floatPtr(5000)},
	}

	if _, err := env.svc.CreateInvoiceFromServices(context.Background(), patientID, nil, nil); err == nil {
		t.Fatal("expected error when only consultation services exist")
	}
	if len(env.invoices.items) != 0 {
		t.Error("no invoice should be created")
	}
}

func TestCreateInvoiceMarksServicesInvoiced(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	labID := uuid.New()
	env.services.services[patientID] = []BillableService{
		{ID: uuid.New(), ServiceType: "Consultation", ServiceName: "Visit", TotalPrice: floatPtr(5000)},
		{ID: labID, ServiceType: "Lab Test", ServiceName: "CBC", TotalPrice: floatPtr(3000)},
	}

	if _, err := env.svc.CreateInvoiceFromServices(context.Background(), patientID, nil, nil); err != nil {
		t.Fatalf("CreateInvoiceFromServices failed: %v", err)
	}
	if len(env.services.invoiced) != 1 || env.services.invoiced[0] != labID {
		t.Errorf("expected only the billed service marked invoiced, got %v", env.services.invoiced)
	}
	if len(env.visits.billingMarked) != 1 {
		t.Errorf("expected billing stage marked pending once, got %d", len(env.visits.billingMarked))
	}
}

func TestCreateInvoiceSurvivesVisitUpdateFailure(t *testing.T) {
	env := newTestEnv()
	env.visits.markPendingErr = fmt.Errorf("visit service down")
	patientID := uuid.New()
	env.services.services[patientID] = []BillableService{
		{ID: uuid.New(), ServiceType: "Lab Test", ServiceName: "CBC", TotalPrice: floatPtr(3000)},
	}

	inv, err := env.svc.CreateInvoiceFromServices(context.Background(), patientID, nil, nil)
	if err != nil {
		t.Fatalf("invoice creation must not fail on visit update failure: %v", err)
	}
	if _, ok := env.invoices.items[inv.ID]; !ok {
		t.Error("invoice should still be persisted")
	}
}

// -- Payments --

func seedInvoice(env *testEnv, total, paid float64) *Invoice {
	inv := &Invoice{
		PatientID:   uuid.New(),
		TotalAmount: total,
		PaidAmount:  paid,
		Status:      DeriveStatus(total, paid),
		InvoiceDate: time.Now(),
	}
	_ = env.invoices.Create(context.Background(), inv)
	return inv
}

func TestRecordPaymentFullBalanceCompletesVisit(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 3000, 0)

	out, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 3000})
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if out.Status != StatusPaid {
		t.Errorf("expected Paid, got %s", out.Status)
	}
	if out.PaidAmount != 3000 {
		t.Errorf("expected paid 3000, got %v", out.PaidAmount)
	}
	if len(env.visits.completed) != 1 || env.visits.completed[0] != inv.PatientID {
		t.Errorf("expected visit completion for patient, got %v", env.visits.completed)
	}
}

func TestRecordPaymentPartialNoVisitCompletion(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 3000, 0)

	out, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 1000})
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if out.Status != StatusPartiallyPaid {
		t.Errorf("expected Partially Paid, got %s", out.Status)
	}
	if len(env.visits.completed) != 0 {
		t.Error("partial payment must not complete the visit")
	}
}

func TestRecordPaymentExceedsBalance(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 3000, 2500)

	if _, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 1000}); err == nil {
		t.Fatal("expected error when amount exceeds remaining balance")
	}
	if len(env.payments.items) != 0 {
		t.Error("no payment should be recorded")
	}
}

func TestRecordPaymentToleratesFloatNoise(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 0.3, 0)

	// A client that summed 0.1+0.2 itself sends marginally more than the
	// stored balance. The half-cent tolerance accepts it; a clearly
	// excessive amount is still rejected.
	if _, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 0.1 + 0.2}); err != nil {
		t.Fatalf("float-noise overshoot should be accepted: %v", err)
	}
	if inv.Status != StatusPaid {
		t.Errorf("expected invoice Paid, got %s", inv.Status)
	}

	env2 := newTestEnv()
	inv2 := seedInvoice(env2, 0.3, 0)
	if _, err := env2.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv2.ID, Amount: 0.31}); err == nil {
		t.Fatal("expected rejection beyond the tolerance")
	}
}

func TestRecordPaymentRejectsZeroAmount(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 3000, 0)
	if _, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 0}); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestRecordPaymentDefaultsPatientFromInvoice(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 3000, 0)

	p := &Payment{InvoiceID: inv.ID, Amount: 500}
	if _, err := env.svc.RecordPayment(context.Background(), p); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if p.PatientID != inv.PatientID {
		t.Error("expected patient_id defaulted from invoice")
	}
	if p.PaymentDate.IsZero() {
		t.Error("expected payment date defaulted")
	}
}

// A second submission for the same invoice while the first is still being
// processed must be rejected before any write.
func TestRecordPaymentInFlightGuard(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 3000, 0)
	env.payments.created = make(chan struct{})
	env.payments.release = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 1000})
		errCh <- err
	}()
	<-env.payments.created // first request is mid-flight

	_, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 1000})
	if err != ErrPaymentInFlight {
		t.Errorf("expected ErrPaymentInFlight, got %v", err)
	}

	close(env.payments.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if len(env.payments.items) != 1 {
		t.Errorf("expected exactly 1 payment recorded, got %d", len(env.payments.items))
	}

	// After the first resolves the guard is released.
	env.payments.created = nil
	if _, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 500}); err != nil {
		t.Errorf("expected payment to succeed after guard release: %v", err)
	}
}

// -- Pay all --

func TestPayAllSettlesEveryUnpaidInvoice(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	for _, amounts := range [][2]float64{{3000, 0}, {2000, 500}, {1000, 1000}} {
		inv := &Invoice{
			PatientID:   patientID,
			TotalAmount: amounts[0],
			PaidAmount:  amounts[1],
			Status:      DeriveStatus(amounts[0], amounts[1]),
		}
		_ = env.invoices.Create(context.Background(), inv)
	}

	result, err := env.svc.PayAll(context.Background(), patientID, "Cash", nil)
	if err != nil {
		t.Fatalf("PayAll failed: %v", err)
	}
	if result.InvoicesPaid != 2 {
		t.Errorf("expected 2 invoices paid, got %d", result.InvoicesPaid)
	}
	if result.TotalPaid != 4500 {
		t.Errorf("expected total 4500, got %v", result.TotalPaid)
	}
	for _, inv := range env.invoices.items {
		if inv.Status != StatusPaid {
			t.Errorf("expected all invoices Paid, found %s", inv.Status)
		}
	}
	if len(env.visits.completed) != 1 {
		t.Errorf("expected exactly one visit completion, got %d", len(env.visits.completed))
	}
}

func TestPayAllNoUnpaidInvoices(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.PayAll(context.Background(), uuid.New(), "Cash", nil); err == nil {
		t.Fatal("expected error when nothing is unpaid")
	}
}

func TestPayAllInFlightGuard(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	inv := &Invoice{PatientID: patientID, TotalAmount: 3000, Status: StatusUnpaid}
	_ = env.invoices.Create(context.Background(), inv)
	env.payments.created = make(chan struct{})
	env.payments.release = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := env.svc.PayAll(context.Background(), patientID, "Cash", nil)
		errCh <- err
	}()
	<-env.payments.created

	if _, err := env.svc.PayAll(context.Background(), patientID, "Cash", nil); err != ErrPaymentInFlight {
		t.Errorf("expected ErrPaymentInFlight, got %v", err)
	}

	close(env.payments.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first pay-all failed: %v", err)
	}
}

// -- Aggregation endpoints --

func TestRevenueToday(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 5000, 0)
	if _, err := env.svc.RecordPayment(context.Background(), &Payment{InvoiceID: inv.ID, Amount: 2000}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	total, err := env.svc.RevenueToday(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RevenueToday failed: %v", err)
	}
	if total != 2000 {
		t.Errorf("expected revenue 2000, got %v", total)
	}
}

// -- Claims --

func TestCreateClaimDefaults(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 5000, 0)

	claim := &InsuranceClaim{
		InvoiceID:          inv.ID,
		InsuranceCompanyID: uuid.New(),
		ClaimNumber:        "NHIF-001",
		ClaimAmount:        5000,
	}
	if err := env.svc.CreateClaim(context.Background(), claim); err != nil {
		t.Fatalf("CreateClaim failed: %v", err)
	}
	if claim.Status != ClaimPending {
		t.Errorf("expected Pending, got %s", claim.Status)
	}
	if claim.PatientID != inv.PatientID {
		t.Error("expected patient_id defaulted from invoice")
	}
	if claim.SubmissionDate.IsZero() {
		t.Error("expected submission date defaulted")
	}
}

func TestUpdateClaimStatus(t *testing.T) {
	env := newTestEnv()
	inv := seedInvoice(env, 5000, 0)
	claim := &InsuranceClaim{InvoiceID: inv.ID, InsuranceCompanyID: uuid.New(), ClaimAmount: 5000}
	if err := env.svc.CreateClaim(context.Background(), claim); err != nil {
		t.Fatalf("CreateClaim failed: %v", err)
	}

	out, err := env.svc.UpdateClaimStatus(context.Background(), claim.ID, ClaimApproved)
	if err != nil {
		t.Fatalf("UpdateClaimStatus failed: %v", err)
	}
	if out.Status != ClaimApproved {
		t.Errorf("expected Approved, got %s", out.Status)
	}

	if _, err := env.svc.UpdateClaimStatus(context.Background(), claim.ID, "Escalated"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
