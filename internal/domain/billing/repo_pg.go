package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invoiceCols = `id, patient_id, invoice_number, total_amount, paid_amount, status,
	invoice_date, due_date, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.InvoiceNumber, &inv.TotalAmount, &inv.PaidAmount,
		&inv.Status, &inv.InvoiceDate, &inv.DueDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	conn := connFor(ctx, r.pool)
	_, err := conn.Exec(ctx, `
		INSERT INTO invoices (id, patient_id, invoice_number, total_amount, paid_amount, status, invoice_date, due_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inv.ID, inv.PatientID, inv.InvoiceNumber, inv.TotalAmount, inv.PaidAmount, inv.Status,
		inv.InvoiceDate, inv.DueDate, inv.Notes)
	if err != nil {
		return err
	}
	for _, item := range inv.Items {
		item.ID = uuid.New()
		item.InvoiceID = inv.ID
		_, err = conn.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, service_id, service_type, description, unit_price, quantity, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, item.InvoiceID, item.ServiceID, item.ServiceType, item.Description,
			item.UnitPrice, item.Quantity, item.TotalPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	inv.Items, err = r.GetItems(ctx, inv.ID)
	return inv, err
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE invoices SET total_amount=$2, paid_amount=$3, status=$4, due_date=$5, notes=$6, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.TotalAmount, inv.PaidAmount, inv.Status, inv.DueDate, inv.Notes)
	return err
}

func (r *invoiceRepoPG) List(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices ORDER BY invoice_date DESC, created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectInvoices(rows)
	return items, total, err
}

func (r *invoiceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE patient_id = $1 ORDER BY invoice_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectInvoices(rows)
	return items, total, err
}

func (r *invoiceRepoPG) ListUnpaidByPatient(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices
		 WHERE patient_id = $1 AND status != $2
		 ORDER BY invoice_date`,
		patientID, StatusPaid)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (r *invoiceRepoPG) GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT id, invoice_id, service_id, service_type, description, unit_price, quantity, total_price
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY description`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ServiceID, &it.ServiceType, &it.Description,
			&it.UnitPrice, &it.Quantity, &it.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, nil
}

func collectInvoices(rows pgx.Rows) ([]*Invoice, error) {
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, nil
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

const paymentCols = `id, invoice_id, patient_id, amount, payment_method, payment_date, reference_number, status, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.InvoiceID, &p.PatientID, &p.Amount, &p.PaymentMethod,
		&p.PaymentDate, &p.ReferenceNumber, &p.Status, &p.CreatedAt)
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO payments (id, invoice_id, patient_id, amount, payment_method, payment_date, reference_number, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.InvoiceID, p.PatientID, p.Amount, p.PaymentMethod, p.PaymentDate, p.ReferenceNumber, p.Status)
	return err
}

func (r *paymentRepoPG) List(ctx context.Context, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+paymentCols+` FROM payments ORDER BY payment_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectPayments(rows)
	return items, total, err
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE invoice_id = $1 ORDER BY payment_date`, invoiceID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *paymentRepoPG) ListByDay(ctx context.Context, day time.Time) ([]*Payment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE payment_date >= $1 AND payment_date < $2`,
		start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*Payment, error) {
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

// =========== Insurance Claim Repository ===========

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewClaimRepoPG(pool *pgxpool.Pool) ClaimRepository { return &claimRepoPG{pool: pool} }

const claimCols = `id, invoice_id, patient_id, insurance_company_id, claim_number, claim_amount,
	status, submission_date, created_at, updated_at`

func scanClaim(row pgx.Row) (*InsuranceClaim, error) {
	var c InsuranceClaim
	err := row.Scan(&c.ID, &c.InvoiceID, &c.PatientID, &c.InsuranceCompanyID, &c.ClaimNumber,
		&c.ClaimAmount, &c.Status, &c.SubmissionDate, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *claimRepoPG) Create(ctx context.Context, c *InsuranceClaim) error {
	c.ID = uuid.New()
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO insurance_claims (id, invoice_id, patient_id, insurance_company_id, claim_number, claim_amount, status, submission_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.InvoiceID, c.PatientID, c.InsuranceCompanyID, c.ClaimNumber, c.ClaimAmount, c.Status, c.SubmissionDate)
	return err
}

func (r *claimRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InsuranceClaim, error) {
	return scanClaim(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+claimCols+` FROM insurance_claims WHERE id = $1`, id))
}

func (r *claimRepoPG) Update(ctx context.Context, c *InsuranceClaim) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE insurance_claims SET status=$2, claim_amount=$3, updated_at=NOW() WHERE id = $1`,
		c.ID, c.Status, c.ClaimAmount)
	return err
}

func (r *claimRepoPG) List(ctx context.Context, limit, offset int) ([]*InsuranceClaim, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM insurance_claims`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+claimCols+` FROM insurance_claims ORDER BY submission_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectClaims(rows)
	return items, total, err
}

func (r *claimRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*InsuranceClaim, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM insurance_claims WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+claimCols+` FROM insurance_claims WHERE patient_id = $1 ORDER BY submission_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectClaims(rows)
	return items, total, err
}

func collectClaims(rows pgx.Rows) ([]*InsuranceClaim, error) {
	defer rows.Close()
	var items []*InsuranceClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

// =========== Invoice Numberer ===========

type numbererPG struct{ pool *pgxpool.Pool }

// NewNumbererPG returns an InvoiceNumberer backed by a database sequence.
func NewNumbererPG(pool *pgxpool.Pool) InvoiceNumberer { return &numbererPG{pool: pool} }

func (n *numbererPG) Next(ctx context.Context) (string, error) {
	var seq int64
	if err := connFor(ctx, n.pool).QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return formatInvoiceNumber(time.Now(), seq), nil
}

func formatInvoiceNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%05d", t.UTC().Format("20060102"), seq)
}
