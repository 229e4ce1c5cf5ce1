package billing

import (
	"time"

	"github.com/google/uuid"
)

// Invoice payment statuses. Status is derived from paid_amount vs
// total_amount, never set directly by clients.
const (
	StatusUnpaid        = "Unpaid"
	StatusPartiallyPaid = "Partially Paid"
	StatusPaid          = "Paid"
)

// Insurance claim statuses.
const (
	ClaimPending  = "Pending"
	ClaimApproved = "Approved"
	ClaimRejected = "Rejected"
)

// Invoice maps to the invoices table.
type Invoice struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	PatientID     uuid.UUID      `db:"patient_id" json:"patient_id"`
	InvoiceNumber string         `db:"invoice_number" json:"invoice_number"`
	TotalAmount   float64        `db:"total_amount" json:"total_amount"`
	PaidAmount    float64        `db:"paid_amount" json:"paid_amount"`
	Status        string         `db:"status" json:"status"`
	InvoiceDate   time.Time      `db:"invoice_date" json:"invoice_date"`
	DueDate       *time.Time     `db:"due_date" json:"due_date,omitempty"`
	Notes         *string        `db:"notes" json:"notes,omitempty"`
	Items         []*InvoiceItem `db:"-" json:"items,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// RemainingBalance returns the unpaid portion. Can go negative when the
// server-side invariant 0 <= paid_amount <= total_amount was violated
// upstream; callers display it as-is.
func (i *Invoice) RemainingBalance() float64 {
	return i.TotalAmount - i.PaidAmount
}

// DeriveStatus recomputes the payment status from the amounts. Exact
// comparison, no rounding.
func DeriveStatus(totalAmount, paidAmount float64) string {
	switch {
	case paidAmount == 0:
		return StatusUnpaid
	case paidAmount >= totalAmount:
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}

// InvoiceItem maps to the invoice_items table. Items mirror the patient
// services the invoice was raised from.
type InvoiceItem struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	InvoiceID   uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	ServiceID   *uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	ServiceType string     `db:"service_type" json:"service_type"`
	Description string     `db:"description" json:"description"`
	UnitPrice   float64    `db:"unit_price" json:"unit_price"`
	Quantity    int        `db:"quantity" json:"quantity"`
	TotalPrice  float64    `db:"total_price" json:"total_price"`
}

// Payment maps to the payments table. Rows model completed transactions
// only; there is no pending payment state.
type Payment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	InvoiceID       uuid.UUID `db:"invoice_id" json:"invoice_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	Amount          float64   `db:"amount" json:"amount"`
	PaymentMethod   string    `db:"payment_method" json:"payment_method"`
	PaymentDate     time.Time `db:"payment_date" json:"payment_date"`
	ReferenceNumber *string   `db:"reference_number" json:"reference_number,omitempty"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// InsuranceClaim maps to the insurance_claims table (NHIF and private
// insurer claims raised against an invoice).
type InsuranceClaim struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	InvoiceID          uuid.UUID `db:"invoice_id" json:"invoice_id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	InsuranceCompanyID uuid.UUID `db:"insurance_company_id" json:"insurance_company_id"`
	ClaimNumber        string    `db:"claim_number" json:"claim_number"`
	ClaimAmount        float64   `db:"claim_amount" json:"claim_amount"`
	Status             string    `db:"status" json:"status"`
	SubmissionDate     time.Time `db:"submission_date" json:"submission_date"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
