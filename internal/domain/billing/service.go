package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrPaymentInFlight is returned when a payment for the same invoice or
// patient is already being processed. Callers map it to 409.
var ErrPaymentInFlight = errors.New("a payment for this target is already being processed")

// balanceEpsilon absorbs float accumulation error when a client settles an
// invoice with an amount it summed itself. Status classification stays
// exact; only the balance-exceeded rejection is softened.
const balanceEpsilon = 0.005

// InvoiceNumberer issues unique invoice numbers.
type InvoiceNumberer interface {
	Next(ctx context.Context) (string, error)
}

// VisitCompleter lets billing drive the visit workflow without importing
// the visit package. Wired by the composition root.
type VisitCompleter interface {
	CompleteForPayment(ctx context.Context, patientID uuid.UUID) error
	MarkBillingPending(ctx context.Context, patientID uuid.UUID) error
}

// BillableService is a patient service as billing sees it.
type BillableService struct {
	ID          uuid.UUID
	ServiceType string
	ServiceName string
	UnitPrice   float64
	Quantity    int
	TotalPrice  *float64
}

// Amount returns total_price when recorded, unit_price x quantity otherwise.
func (s BillableService) Amount() float64 {
	if s.TotalPrice != nil {
		return *s.TotalPrice
	}
	qty := s.Quantity
	if qty <= 0 {
		qty = 1
	}
	return s.UnitPrice * float64(qty)
}

// ServiceSource supplies the uninvoiced patient services an invoice is
// raised from.
type ServiceSource interface {
	ListUninvoiced(ctx context.Context, patientID uuid.UUID) ([]BillableService, error)
	MarkInvoiced(ctx context.Context, ids []uuid.UUID) error
}

type Service struct {
	invoices InvoiceRepository
	payments PaymentRepository
	claims   ClaimRepository
	services ServiceSource
	numberer InvoiceNumberer
	visits   VisitCompleter
	inflight *inflightRegistry
	log      zerolog.Logger
}

func NewService(inv InvoiceRepository, pay PaymentRepository, cl ClaimRepository,
	services ServiceSource, numberer InvoiceNumberer, visits VisitCompleter, log zerolog.Logger) *Service {
	return &Service{
		invoices: inv,
		payments: pay,
		claims:   cl,
		services: services,
		numberer: numberer,
		visits:   visits,
		inflight: newInflightRegistry(),
		log:      log,
	}
}

// -- Invoices --

// isConsultation reports whether a service type names a consultation.
// Consultations are pre-paid at registration and must never be invoiced
// again.
func isConsultation(serviceType string) bool {
	return strings.Contains(strings.ToLower(serviceType), "consultation")
}

// CreateInvoiceFromServices converts a patient's uninvoiced services into a
// single invoice. Consultation services are excluded. On success it makes a
// best-effort attempt to mark the patient's visit billing stage pending;
// failure there is logged, not rolled back.
func (s *Service) CreateInvoiceFromServices(ctx context.Context, patientID uuid.UUID, dueDate *time.Time, notes *string) (*Invoice, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	services, err := s.services.ListUninvoiced(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var billable []BillableService
	for _, svc := range services {
		if isConsultation(svc.ServiceType) {
			continue
		}
		billable = append(billable, svc)
	}
	if len(billable) == 0 {
		return nil, fmt.Errorf("patient has no billable services")
	}

	number, err := s.numberer.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("generating invoice number: %w", err)
	}

	inv := &Invoice{
		PatientID:     patientID,
		InvoiceNumber: number,
		Status:        StatusUnpaid,
		InvoiceDate:   time.Now(),
		DueDate:       dueDate,
		Notes:         notes,
	}
	serviceIDs := make([]uuid.UUID, 0, len(billable))
	for _, svc := range billable {
		svc := svc
		qty := svc.Quantity
		if qty <= 0 {
			qty = 1
		}
		inv.Items = append(inv.Items, &InvoiceItem{
			ServiceID:   &svc.ID,
			ServiceType: svc.ServiceType,
			Description: svc.ServiceName,
			UnitPrice:   svc.UnitPrice,
			Quantity:    qty,
			TotalPrice:  svc.Amount(),
		})
		inv.TotalAmount += svc.Amount()
		serviceIDs = append(serviceIDs, svc.ID)
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.services.MarkInvoiced(ctx, serviceIDs); err != nil {
		s.log.Error().Err(err).Str("invoice_id", inv.ID.String()).
			Msg("failed to mark services invoiced")
	}
	if s.visits != nil {
		if err := s.visits.MarkBillingPending(ctx, patientID); err != nil {
			s.log.Warn().Err(err).Str("patient_id", patientID.String()).
				Msg("invoice created but visit billing stage update failed")
		}
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	if patientID != uuid.Nil {
		return s.invoices.ListByPatient(ctx, patientID, limit, offset)
	}
	return s.invoices.List(ctx, limit, offset)
}

// -- Payments --

// RecordPayment posts a payment against an invoice, updates the invoice's
// paid amount and derived status, and completes the patient's visit when
// the invoice becomes fully settled. A concurrent payment against the same
// invoice is rejected with ErrPaymentInFlight before any write.
func (s *Service) RecordPayment(ctx context.Context, p *Payment) (*Invoice, error) {
	if p.InvoiceID == uuid.Nil {
		return nil, fmt.Errorf("invoice_id is required")
	}
	if p.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	key := "invoice:" + p.InvoiceID.String()
	if !s.inflight.begin(key) {
		return nil, ErrPaymentInFlight
	}
	defer s.inflight.end(key)

	inv, err := s.invoices.GetByID(ctx, p.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoice not found")
	}
	remaining := inv.RemainingBalance()
	if p.Amount > remaining+balanceEpsilon {
		return nil, fmt.Errorf("amount %.2f exceeds remaining balance %.2f", p.Amount, remaining)
	}

	if p.PatientID == uuid.Nil {
		p.PatientID = inv.PatientID
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = "Cash"
	}
	if p.Status == "" {
		p.Status = "Completed"
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	inv.PaidAmount += p.Amount
	inv.Status = DeriveStatus(inv.TotalAmount, inv.PaidAmount)
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}

	if inv.Status == StatusPaid {
		s.completeVisit(ctx, inv.PatientID)
	}
	return inv, nil
}

// PayAllResult summarizes a bulk settlement.
type PayAllResult struct {
	InvoicesPaid int     `json:"invoices_paid"`
	TotalPaid    float64 `json:"total_paid"`
}

// PayAll settles every unpaid invoice of one patient in a single action.
// A concurrent pay-all (or a replayed double-click) for the same patient is
// rejected with ErrPaymentInFlight before any write.
func (s *Service) PayAll(ctx context.Context, patientID uuid.UUID, method string, reference *string) (*PayAllResult, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if method == "" {
		method = "Cash"
	}

	key := "patient:" + patientID.String()
	if !s.inflight.begin(key) {
		return nil, ErrPaymentInFlight
	}
	defer s.inflight.end(key)

	unpaid, err := s.invoices.ListUnpaidByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(unpaid) == 0 {
		return nil, fmt.Errorf("patient has no unpaid invoices")
	}

	result := &PayAllResult{}
	now := time.Now()
	for _, inv := range unpaid {
		remaining := inv.RemainingBalance()
		if remaining <= 0 {
			continue
		}
		p := &Payment{
			InvoiceID:       inv.ID,
			PatientID:       patientID,
			Amount:          remaining,
			PaymentMethod:   method,
			PaymentDate:     now,
			ReferenceNumber: reference,
			Status:          "Completed",
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return nil, err
		}
		inv.PaidAmount += remaining
		inv.Status = DeriveStatus(inv.TotalAmount, inv.PaidAmount)
		if err := s.invoices.Update(ctx, inv); err != nil {
			return nil, err
		}
		result.InvoicesPaid++
		result.TotalPaid += remaining
	}

	if result.InvoicesPaid > 0 {
		s.completeVisit(ctx, patientID)
	}
	return result, nil
}

// completeVisit closes out the visit behind a settled balance. Failure is
// logged and accepted; the next dashboard poll re-derives state.
func (s *Service) completeVisit(ctx context.Context, patientID uuid.UUID) {
	if s.visits == nil {
		return
	}
	if err := s.visits.CompleteForPayment(ctx, patientID); err != nil {
		s.log.Warn().Err(err).Str("patient_id", patientID.String()).
			Msg("payment recorded but visit completion failed")
	}
}

func (s *Service) ListPayments(ctx context.Context, limit, offset int) ([]*Payment, int, error) {
	return s.payments.List(ctx, limit, offset)
}

func (s *Service) ListInvoicePayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	return s.payments.ListByInvoice(ctx, invoiceID)
}

// -- Aggregation --

// PatientSummaries derives the per-patient billing groups for the billing
// dashboard.
func (s *Service) PatientSummaries(ctx context.Context, limit, offset int) ([]*PatientGroup, error) {
	invoices, _, err := s.invoices.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return SortedGroups(GroupByPatient(invoices)), nil
}

// RevenueToday sums payments recorded today.
func (s *Service) RevenueToday(ctx context.Context, now time.Time) (float64, error) {
	payments, err := s.payments.ListByDay(ctx, now)
	if err != nil {
		return 0, err
	}
	return TodayRevenue(payments, now), nil
}

// -- Insurance claims --

var validClaimStatuses = map[string]bool{
	ClaimPending: true, ClaimApproved: true, ClaimRejected: true,
}

func (s *Service) CreateClaim(ctx context.Context, c *InsuranceClaim) error {
	if c.InvoiceID == uuid.Nil {
		return fmt.Errorf("invoice_id is required")
	}
	if c.InsuranceCompanyID == uuid.Nil {
		return fmt.Errorf("insurance_company_id is required")
	}
	if c.ClaimAmount <= 0 {
		return fmt.Errorf("claim_amount must be positive")
	}
	inv, err := s.invoices.GetByID(ctx, c.InvoiceID)
	if err != nil {
		return fmt.Errorf("invoice not found")
	}
	if c.PatientID == uuid.Nil {
		c.PatientID = inv.PatientID
	}
	if c.Status == "" {
		c.Status = ClaimPending
	}
	if !validClaimStatuses[c.Status] {
		return fmt.Errorf("invalid claim status: %s", c.Status)
	}
	if c.SubmissionDate.IsZero() {
		c.SubmissionDate = time.Now()
	}
	return s.claims.Create(ctx, c)
}

func (s *Service) UpdateClaimStatus(ctx context.Context, id uuid.UUID, status string) (*InsuranceClaim, error) {
	if !validClaimStatuses[status] {
		return nil, fmt.Errorf("invalid claim status: %s", status)
	}
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claim not found")
	}
	c.Status = status
	if err := s.claims.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListClaims(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*InsuranceClaim, int, error) {
	if patientID != uuid.Nil {
		return s.claims.ListByPatient(ctx, patientID, limit, offset)
	}
	return s.claims.List(ctx, limit, offset)
}
