package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MRN       string     `db:"mrn" json:"mrn"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Gender    *string    `db:"gender" json:"gender,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the patient's display name.
func (p *Patient) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// PatientService maps to the patient_services table. Each row is one
// billable service rendered during a visit (consultation, lab test,
// procedure).
type PatientService struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID     *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	ServiceType string     `db:"service_type" json:"service_type"`
	ServiceName string     `db:"service_name" json:"service_name"`
	UnitPrice   float64    `db:"unit_price" json:"unit_price"`
	Quantity    int        `db:"quantity" json:"quantity"`
	TotalPrice  *float64   `db:"total_price" json:"total_price,omitempty"`
	Invoiced    bool       `db:"invoiced" json:"invoiced"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Amount returns the billable amount for the service, deriving it from
// unit price and quantity when total_price is absent.
func (s *PatientService) Amount() float64 {
	if s.TotalPrice != nil {
		return *s.TotalPrice
	}
	qty := s.Quantity
	if qty <= 0 {
		qty = 1
	}
	return s.UnitPrice * float64(qty)
}
