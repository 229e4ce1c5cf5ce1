package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, limit, offset int) ([]*Invoice, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	ListUnpaidByPatient(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error)
	GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	List(ctx context.Context, limit, offset int) ([]*Payment, int, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	ListByDay(ctx context.Context, day time.Time) ([]*Payment, error)
}

type ClaimRepository interface {
	Create(ctx context.Context, c *InsuranceClaim) error
	GetByID(ctx context.Context, id uuid.UUID) (*InsuranceClaim, error)
	Update(ctx context.Context, c *InsuranceClaim) error
	List(ctx context.Context, limit, offset int) ([]*InsuranceClaim, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*InsuranceClaim, int, error)
}
