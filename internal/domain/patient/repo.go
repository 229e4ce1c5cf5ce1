package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
}

type ServiceRepository interface {
	Create(ctx context.Context, s *PatientService) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientService, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, uninvoicedOnly bool) ([]*PatientService, error)
	MarkInvoiced(ctx context.Context, ids []uuid.UUID) error
}
