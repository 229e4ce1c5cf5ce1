package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	prescriptions Repository
}

func NewService(prescriptions Repository) *Service {
	return &Service{prescriptions: prescriptions}
}

// CreatePrescription stores a prescription together with its items in one
// operation.
func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("prescription must have at least one item")
	}
	for i, item := range p.Items {
		if item.MedicationID == uuid.Nil {
			return fmt.Errorf("item %d: medication_id is required", i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i+1)
		}
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	return s.prescriptions.Create(ctx, p)
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}
	return s.prescriptions.UpdateStatus(ctx, id, status)
}

func (s *Service) ListPrescriptions(ctx context.Context, patientID, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	if patientID != uuid.Nil {
		return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
	}
	if doctorID != uuid.Nil {
		return s.prescriptions.ListByDoctor(ctx, doctorID, limit, offset)
	}
	return s.prescriptions.List(ctx, limit, offset)
}
