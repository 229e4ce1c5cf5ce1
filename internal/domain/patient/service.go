package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	patients Repository
	services ServiceRepository
}

func NewService(patients Repository, services ServiceRepository) *Service {
	return &Service{patients: patients, services: services}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.FirstName == "" && p.LastName == "" {
		return fmt.Errorf("patient name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.patients.GetByMRN(ctx, mrn)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" && p.LastName == "" {
		return fmt.Errorf("patient name is required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, search, limit, offset)
}

// -- Patient services --

func (s *Service) AddService(ctx context.Context, ps *PatientService) error {
	if ps.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if ps.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if ps.Quantity <= 0 {
		ps.Quantity = 1
	}
	if ps.UnitPrice < 0 {
		return fmt.Errorf("unit_price must not be negative")
	}
	return s.services.Create(ctx, ps)
}

func (s *Service) ListServices(ctx context.Context, patientID uuid.UUID, uninvoicedOnly bool) ([]*PatientService, error) {
	return s.services.ListByPatient(ctx, patientID, uninvoicedOnly)
}

func (s *Service) MarkServicesInvoiced(ctx context.Context, ids []uuid.UUID) error {
	return s.services.MarkInvoiced(ctx, ids)
}
