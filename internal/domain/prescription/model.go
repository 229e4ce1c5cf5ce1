package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "Active"
	StatusDispensed = "Dispensed"
	StatusCancelled = "Cancelled"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusDispensed: true, StatusCancelled: true,
}

// Prescription maps to the prescriptions table. Items are created together
// with the prescription in a single request.
type Prescription struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	VisitID   *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	Diagnosis string     `db:"diagnosis" json:"diagnosis"`
	Status    string     `db:"status" json:"status"`
	Items     []*Item    `db:"-" json:"items,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Item maps to the prescription_items table.
type Item struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	Duration       string    `db:"duration" json:"duration"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
}
