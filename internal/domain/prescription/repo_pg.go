package prescription

import (
	"context"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const rxCols = `id, patient_id, doctor_id, visit_id, diagnosis, status, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.VisitID, &p.Diagnosis,
		&p.Status, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	conn := r.conn(ctx)
	_, err := conn.Exec(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, visit_id, diagnosis, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.PatientID, p.DoctorID, p.VisitID, p.Diagnosis, p.Status)
	if err != nil {
		return err
	}
	for _, item := range p.Items {
		item.ID = uuid.New()
		item.PrescriptionID = p.ID
		_, err = conn.Exec(ctx, `
			INSERT INTO prescription_items (id, prescription_id, medication_id, dosage, frequency, duration, quantity, instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, item.PrescriptionID, item.MedicationID, item.Dosage, item.Frequency,
			item.Duration, item.Quantity, item.Instructions)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	p.Items, err = r.getItems(ctx, p.ID)
	return p, err
}

func (r *repoPG) getItems(ctx context.Context, prescriptionID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, prescription_id, medication_id, dosage, frequency, duration, quantity, instructions
		 FROM prescription_items WHERE prescription_id = $1`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicationID, &it.Dosage,
			&it.Frequency, &it.Duration, &it.Quantity, &it.Instructions); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Prescription, int, error) {
	return r.listWhere(ctx, ``, nil, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.listWhere(ctx, ` WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.listWhere(ctx, ` WHERE doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *repoPG) listWhere(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Prescription, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	var (
		rows pgx.Rows
		err  error
	)
	if len(args) == 0 {
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+rxCols+` FROM prescriptions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+rxCols+` FROM prescriptions`+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			append(args, limit, offset)...)
	}
	if err != nil {
		return nil, 0, err
	}
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, p)
	}
	rows.Close()
	for _, p := range items {
		p.Items, err = r.getItems(ctx, p.ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}
