package visit

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*Visit
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Visit)}
}

func (m *mockRepo) Create(_ context.Context, v *Visit) error {
	v.ID = uuid.New()
	m.items[v.ID] = v
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	v, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return v, nil
}

func (m *mockRepo) Update(_ context.Context, v *Visit) error {
	if _, ok := m.items[v.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.items[v.ID] = v
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Visit, int, error) {
	var result []*Visit
	for _, v := range m.items {
		result = append(result, v)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByStage(_ context.Context, stage string, limit, offset int) ([]*Visit, int, error) {
	var result []*Visit
	for _, v := range m.items {
		if v.CurrentStage == stage && v.OverallStatus == OverallActive {
			result = append(result, v)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var result []*Visit
	for _, v := range m.items {
		if v.PatientID == patientID {
			result = append(result, v)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) FindByPatientAndStage(_ context.Context, patientID uuid.UUID, stage string) (*Visit, error) {
	for _, v := range m.items {
		if v.PatientID == patientID && v.CurrentStage == stage && v.OverallStatus == OverallActive {
			return v, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) FindActiveByPatient(_ context.Context, patientID uuid.UUID) (*Visit, error) {
	for _, v := range m.items {
		if v.PatientID == patientID && v.OverallStatus == OverallActive {
			return v, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func strPtr(s string) *string { return &s }

// -- Routing rule --

func TestNextStageAfterLabRoutesToDoctor(t *testing.T) {
	doctorID := uuid.New()
	v := &Visit{DoctorID: &doctorID, DoctorStatus: strPtr(StatusInProgress)}
	stage, status := NextStageAfterLab(v)
	if stage != StageDoctor {
		t.Errorf("expected stage %s, got %s", StageDoctor, stage)
	}
	if status != StatusPendingReview {
		t.Errorf("expected status %s, got %s", StatusPendingReview, status)
	}
}

func TestNextStageAfterLabRoutesToBillingWithoutDoctor(t *testing.T) {
	v := &Visit{}
	stage, status := NextStageAfterLab(v)
	if stage != StageBilling {
		t.Errorf("expected stage %s, got %s", StageBilling, stage)
	}
	if status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, status)
	}
}

func TestNextStageAfterLabRoutesToBillingWhenDoctorNotRequired(t *testing.T) {
	doctorID := uuid.New()
	v := &Visit{DoctorID: &doctorID, DoctorStatus: strPtr(StatusNotRequired)}
	stage, _ := NextStageAfterLab(v)
	if stage != StageBilling {
		t.Errorf("expected stage %s when doctor marked not required, got %s", StageBilling, stage)
	}
}

// -- Visit lifecycle --

func TestCreateVisitDefaults(t *testing.T) {
	svc, _ := newTestService()
	v := &Visit{PatientID: uuid.New()}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}
	if v.CurrentStage != StageReception {
		t.Errorf("expected reception stage, got %s", v.CurrentStage)
	}
	if v.OverallStatus != OverallActive {
		t.Errorf("expected Active, got %s", v.OverallStatus)
	}
	if v.StageStatus(StageReception) != StatusInProgress {
		t.Errorf("expected reception In Progress, got %q", v.StageStatus(StageReception))
	}
}

func TestCreateVisitRequiresPatient(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.CreateVisit(context.Background(), &Visit{}); err == nil {
		t.Fatal("expected error for missing patient_id")
	}
}

func TestAdvanceStageCompletesCurrent(t *testing.T) {
	svc, _ := newTestService()
	v := &Visit{PatientID: uuid.New()}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}
	out, err := svc.AdvanceStage(context.Background(), v.ID, StageNurse)
	if err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}
	if out.CurrentStage != StageNurse {
		t.Errorf("expected nurse stage, got %s", out.CurrentStage)
	}
	if out.StageStatus(StageReception) != StatusCompleted {
		t.Errorf("expected reception Completed, got %q", out.StageStatus(StageReception))
	}
	if out.ReceptionCompletedAt == nil {
		t.Error("expected reception completion timestamp")
	}
	if out.StageStatus(StageNurse) != StatusPending {
		t.Errorf("expected nurse Pending, got %q", out.StageStatus(StageNurse))
	}
}

func TestAdvanceStageToCompletedClosesVisit(t *testing.T) {
	svc, _ := newTestService()
	v := &Visit{PatientID: uuid.New(), CurrentStage: StageBilling}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}
	out, err := svc.AdvanceStage(context.Background(), v.ID, StageCompleted)
	if err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}
	if out.OverallStatus != OverallCompleted {
		t.Errorf("expected Completed overall status, got %s", out.OverallStatus)
	}
}

func TestAdvanceStageRejectsInvalidStage(t *testing.T) {
	svc, _ := newTestService()
	v := &Visit{PatientID: uuid.New()}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}
	if _, err := svc.AdvanceStage(context.Background(), v.ID, "triage"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestAdvanceStageRejectsCompletedVisit(t *testing.T) {
	svc, repo := newTestService()
	v := &Visit{ID: uuid.New(), PatientID: uuid.New(), CurrentStage: StageCompleted, OverallStatus: OverallCompleted}
	repo.items[v.ID] = v
	if _, err := svc.AdvanceStage(context.Background(), v.ID, StageBilling); err == nil {
		t.Fatal("expected error advancing a completed visit")
	}
}

// -- Lab completion routing --

func TestCompleteLabStageRoutesBackToDoctor(t *testing.T) {
	svc, _ := newTestService()
	doctorID := uuid.New()
	patientID := uuid.New()
	v := &Visit{
		PatientID:    patientID,
		DoctorID:     &doctorID,
		CurrentStage: StageLab,
		DoctorStatus: strPtr(StatusInProgress),
	}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}

	out, err := svc.CompleteLabStage(context.Background(), patientID)
	if err != nil {
		t.Fatalf("CompleteLabStage failed: %v", err)
	}
	if out.CurrentStage != StageDoctor {
		t.Errorf("expected doctor stage, got %s", out.CurrentStage)
	}
	if out.StageStatus(StageDoctor) != StatusPendingReview {
		t.Errorf("expected doctor Pending Review, got %q", out.StageStatus(StageDoctor))
	}
	if out.StageStatus(StageLab) != StatusCompleted {
		t.Errorf("expected lab Completed, got %q", out.StageStatus(StageLab))
	}
}

func TestCompleteLabStageRoutesToBilling(t *testing.T) {
	svc, _ := newTestService()
	patientID := uuid.New()
	v := &Visit{PatientID: patientID, CurrentStage: StageLab}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}

	out, err := svc.CompleteLabStage(context.Background(), patientID)
	if err != nil {
		t.Fatalf("CompleteLabStage failed: %v", err)
	}
	if out.CurrentStage != StageBilling {
		t.Errorf("expected billing stage, got %s", out.CurrentStage)
	}
	if out.StageStatus(StageBilling) != StatusPending {
		t.Errorf("expected billing Pending, got %q", out.StageStatus(StageBilling))
	}
}

func TestCompleteLabStageNoVisit(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.CompleteLabStage(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error when patient has no active visit")
	}
}

// -- Payment completion --

func TestCompleteForPaymentClosesBillingVisit(t *testing.T) {
	svc, _ := newTestService()
	patientID := uuid.New()
	v := &Visit{PatientID: patientID, CurrentStage: StageBilling}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}

	out, err := svc.CompleteForPayment(context.Background(), patientID)
	if err != nil {
		t.Fatalf("CompleteForPayment failed: %v", err)
	}
	if out.ID != v.ID {
		t.Error("expected the billing-stage visit to be completed")
	}
	if out.CurrentStage != StageCompleted || out.OverallStatus != OverallCompleted {
		t.Errorf("expected completed visit, got stage=%s status=%s", out.CurrentStage, out.OverallStatus)
	}
	if out.BillingCompletedAt == nil {
		t.Error("expected billing completion timestamp")
	}
}

func TestCompleteForPaymentFallsBackToActiveVisit(t *testing.T) {
	svc, _ := newTestService()
	patientID := uuid.New()
	v := &Visit{PatientID: patientID, CurrentStage: StageDoctor}
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit failed: %v", err)
	}

	out, err := svc.CompleteForPayment(context.Background(), patientID)
	if err != nil {
		t.Fatalf("CompleteForPayment failed: %v", err)
	}
	if out.ID != v.ID {
		t.Error("expected the active visit to be completed")
	}
	if out.OverallStatus != OverallCompleted {
		t.Errorf("expected Completed, got %s", out.OverallStatus)
	}
}

func TestCompleteForPaymentSynthesizesVisit(t *testing.T) {
	svc, repo := newTestService()
	patientID := uuid.New()

	out, err := svc.CompleteForPayment(context.Background(), patientID)
	if err != nil {
		t.Fatalf("CompleteForPayment failed: %v", err)
	}
	if out.ID == uuid.Nil {
		t.Fatal("expected synthesized visit to be persisted")
	}
	if len(repo.items) != 1 {
		t.Fatalf("expected 1 visit record, got %d", len(repo.items))
	}
	if out.CurrentStage != StageCompleted || out.OverallStatus != OverallCompleted {
		t.Errorf("expected synthesized visit completed, got stage=%s status=%s", out.CurrentStage, out.OverallStatus)
	}
}
