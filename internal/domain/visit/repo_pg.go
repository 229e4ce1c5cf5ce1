package visit

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

const visitCols = `id, patient_id, doctor_id, current_stage, overall_status,
	reception_status, reception_completed_at, nurse_status, nurse_completed_at,
	doctor_status, doctor_completed_at, lab_status, lab_completed_at,
	pharmacy_status, pharmacy_completed_at, billing_status, billing_completed_at,
	created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.CurrentStage, &v.OverallStatus,
		&v.ReceptionStatus, &v.ReceptionCompletedAt, &v.NurseStatus, &v.NurseCompletedAt,
		&v.DoctorStatus, &v.DoctorCompletedAt, &v.LabStatus, &v.LabCompletedAt,
		&v.PharmacyStatus, &v.PharmacyCompletedAt, &v.BillingStatus, &v.BillingCompletedAt,
		&v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visits (id, patient_id, doctor_id, current_stage, overall_status,
			reception_status, reception_completed_at, nurse_status, nurse_completed_at,
			doctor_status, doctor_completed_at, lab_status, lab_completed_at,
			pharmacy_status, pharmacy_completed_at, billing_status, billing_completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		v.ID, v.PatientID, v.DoctorID, v.CurrentStage, v.OverallStatus,
		v.ReceptionStatus, v.ReceptionCompletedAt, v.NurseStatus, v.NurseCompletedAt,
		v.DoctorStatus, v.DoctorCompletedAt, v.LabStatus, v.LabCompletedAt,
		v.PharmacyStatus, v.PharmacyCompletedAt, v.BillingStatus, v.BillingCompletedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE visits SET doctor_id=$2, current_stage=$3, overall_status=$4,
			reception_status=$5, reception_completed_at=$6, nurse_status=$7, nurse_completed_at=$8,
			doctor_status=$9, doctor_completed_at=$10, lab_status=$11, lab_completed_at=$12,
			pharmacy_status=$13, pharmacy_completed_at=$14, billing_status=$15, billing_completed_at=$16,
			updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.DoctorID, v.CurrentStage, v.OverallStatus,
		v.ReceptionStatus, v.ReceptionCompletedAt, v.NurseStatus, v.NurseCompletedAt,
		v.DoctorStatus, v.DoctorCompletedAt, v.LabStatus, v.LabCompletedAt,
		v.PharmacyStatus, v.PharmacyCompletedAt, v.BillingStatus, v.BillingCompletedAt)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visits`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collect(rows, total)
}

func (r *repoPG) ListByStage(ctx context.Context, stage string, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visits WHERE current_stage = $1 AND overall_status = $2`,
		stage, OverallActive).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits WHERE current_stage = $1 AND overall_status = $2
		 ORDER BY created_at LIMIT $3 OFFSET $4`,
		stage, OverallActive, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collect(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visits WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collect(rows, total)
}

func (r *repoPG) FindByPatientAndStage(ctx context.Context, patientID uuid.UUID, stage string) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visits
		 WHERE patient_id = $1 AND current_stage = $2 AND overall_status = $3
		 ORDER BY created_at DESC LIMIT 1`,
		patientID, stage, OverallActive))
}

func (r *repoPG) FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visits
		 WHERE patient_id = $1 AND overall_status = $2
		 ORDER BY created_at DESC LIMIT 1`,
		patientID, OverallActive))
}

func collect(rows pgx.Rows, total int) ([]*Visit, int, error) {
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, nil
}
