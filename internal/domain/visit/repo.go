package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	List(ctx context.Context, limit, offset int) ([]*Visit, int, error)
	ListByStage(ctx context.Context, stage string, limit, offset int) ([]*Visit, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	FindByPatientAndStage(ctx context.Context, patientID uuid.UUID, stage string) (*Visit, error)
	FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Visit, error)
}
