package visit

import (
	"time"

	"github.com/google/uuid"
)

// Workflow stages a visit moves through. Exactly one stage is current at a
// time; "completed" is terminal.
const (
	StageReception = "reception"
	StageNurse     = "nurse"
	StageDoctor    = "doctor"
	StageLab       = "lab"
	StagePharmacy  = "pharmacy"
	StageBilling   = "billing"
	StageCompleted = "completed"
)

const (
	OverallActive    = "Active"
	OverallCompleted = "Completed"
)

// Stage sub-statuses.
const (
	StatusPending       = "Pending"
	StatusInProgress    = "In Progress"
	StatusCompleted     = "Completed"
	StatusPendingReview = "Pending Review"
	StatusNotRequired   = "Not Required"
)

// Visit maps to the visits table. Each per-stage status pair records that
// station's progress independently of current_stage.
type Visit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	CurrentStage  string     `db:"current_stage" json:"current_stage"`
	OverallStatus string     `db:"overall_status" json:"overall_status"`

	ReceptionStatus      *string    `db:"reception_status" json:"reception_status,omitempty"`
	ReceptionCompletedAt *time.Time `db:"reception_completed_at" json:"reception_completed_at,omitempty"`
	NurseStatus          *string    `db:"nurse_status" json:"nurse_status,omitempty"`
	NurseCompletedAt     *time.Time `db:"nurse_completed_at" json:"nurse_completed_at,omitempty"`
	DoctorStatus         *string    `db:"doctor_status" json:"doctor_status,omitempty"`
	DoctorCompletedAt    *time.Time `db:"doctor_completed_at" json:"doctor_completed_at,omitempty"`
	LabStatus            *string    `db:"lab_status" json:"lab_status,omitempty"`
	LabCompletedAt       *time.Time `db:"lab_completed_at" json:"lab_completed_at,omitempty"`
	PharmacyStatus       *string    `db:"pharmacy_status" json:"pharmacy_status,omitempty"`
	PharmacyCompletedAt  *time.Time `db:"pharmacy_completed_at" json:"pharmacy_completed_at,omitempty"`
	BillingStatus        *string    `db:"billing_status" json:"billing_status,omitempty"`
	BillingCompletedAt   *time.Time `db:"billing_completed_at" json:"billing_completed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

var validStages = map[string]bool{
	StageReception: true, StageNurse: true, StageDoctor: true,
	StageLab: true, StagePharmacy: true, StageBilling: true, StageCompleted: true,
}

// ValidStage reports whether s names a workflow stage.
func ValidStage(s string) bool { return validStages[s] }

// StageStatus returns the sub-status recorded for the given stage, or ""
// when none has been set.
func (v *Visit) StageStatus(stage string) string {
	var p *string
	switch stage {
	case StageReception:
		p = v.ReceptionStatus
	case StageNurse:
		p = v.NurseStatus
	case StageDoctor:
		p = v.DoctorStatus
	case StageLab:
		p = v.LabStatus
	case StagePharmacy:
		p = v.PharmacyStatus
	case StageBilling:
		p = v.BillingStatus
	}
	if p == nil {
		return ""
	}
	return *p
}

// SetStageStatus records a sub-status for the given stage; when completedAt
// is non-nil the stage's completion timestamp is set as well.
func (v *Visit) SetStageStatus(stage, status string, completedAt *time.Time) {
	s := status
	switch stage {
	case StageReception:
		v.ReceptionStatus = &s
		if completedAt != nil {
			v.ReceptionCompletedAt = completedAt
		}
	case StageNurse:
		v.NurseStatus = &s
		if completedAt != nil {
			v.NurseCompletedAt = completedAt
		}
	case StageDoctor:
		v.DoctorStatus = &s
		if completedAt != nil {
			v.DoctorCompletedAt = completedAt
		}
	case StageLab:
		v.LabStatus = &s
		if completedAt != nil {
			v.LabCompletedAt = completedAt
		}
	case StagePharmacy:
		v.PharmacyStatus = &s
		if completedAt != nil {
			v.PharmacyCompletedAt = completedAt
		}
	case StageBilling:
		v.BillingStatus = &s
		if completedAt != nil {
			v.BillingCompletedAt = completedAt
		}
	}
}

// NextStageAfterLab decides where a visit goes once its lab work is done.
// A visit with a doctor assigned whose doctor station is still in play
// returns to the doctor for result review; everything else proceeds to
// billing. This is the only place the rule lives.
func NextStageAfterLab(v *Visit) (stage, status string) {
	if v.DoctorID != nil && v.StageStatus(StageDoctor) != StatusNotRequired {
		return StageDoctor, StatusPendingReview
	}
	return StageBilling, StatusPending
}
