package appointment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	items map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return a, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.items[a.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.items {
		result = append(result, a)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, day *time.Time, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.items {
		if a.DoctorID == doctorID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.items {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func scheduled(t *testing.T, svc *Service) *Appointment {
	t.Helper()
	a := &Appointment{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		AppointmentDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		AppointmentTime: "10:30",
	}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}
	return a
}

func TestCreateAppointmentDefaults(t *testing.T) {
	svc := NewService(newMockRepo())
	a := scheduled(t, svc)
	if a.Status != StatusScheduled {
		t.Errorf("expected Scheduled, got %s", a.Status)
	}
}

func TestChangeStatusTransitions(t *testing.T) {
	svc := NewService(newMockRepo())
	a := scheduled(t, svc)

	out, err := svc.ChangeStatus(context.Background(), a.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if out.Status != StatusConfirmed {
		t.Errorf("expected Confirmed, got %s", out.Status)
	}

	if _, err := svc.ChangeStatus(context.Background(), a.ID, StatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Completed is terminal.
	if _, err := svc.ChangeStatus(context.Background(), a.ID, StatusConfirmed); err == nil {
		t.Error("expected error reopening a completed appointment")
	}
}

func TestChangeStatusCancelFromScheduled(t *testing.T) {
	svc := NewService(newMockRepo())
	a := scheduled(t, svc)
	out, err := svc.ChangeStatus(context.Background(), a.ID, StatusCancelled)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Errorf("expected Cancelled, got %s", out.Status)
	}
}

func TestChangeStatusUnknown(t *testing.T) {
	svc := NewService(newMockRepo())
	a := scheduled(t, svc)
	if _, err := svc.ChangeStatus(context.Background(), a.ID, "Rescheduled"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	a := &Appointment{DoctorID: uuid.New(), AppointmentDate: time.Now()}
	if err := svc.CreateAppointment(context.Background(), a); err == nil {
		t.Error("expected error for missing patient_id")
	}
	a = &Appointment{PatientID: uuid.New(), DoctorID: uuid.New()}
	if err := svc.CreateAppointment(context.Background(), a); err == nil {
		t.Error("expected error for missing date")
	}
}
