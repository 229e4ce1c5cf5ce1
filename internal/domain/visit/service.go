package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	visits Repository
	log    zerolog.Logger
}

func NewService(visits Repository, log zerolog.Logger) *Service {
	return &Service{visits: visits, log: log}
}

// CreateVisit opens a new visit at the reception stage.
func (s *Service) CreateVisit(ctx context.Context, v *Visit) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if v.CurrentStage == "" {
		v.CurrentStage = StageReception
	}
	if !ValidStage(v.CurrentStage) {
		return fmt.Errorf("invalid stage: %s", v.CurrentStage)
	}
	if v.OverallStatus == "" {
		v.OverallStatus = OverallActive
	}
	if v.StageStatus(v.CurrentStage) == "" && v.CurrentStage != StageCompleted {
		v.SetStageStatus(v.CurrentStage, StatusInProgress, nil)
	}
	return s.visits.Create(ctx, v)
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

func (s *Service) UpdateVisit(ctx context.Context, v *Visit) error {
	if !ValidStage(v.CurrentStage) {
		return fmt.Errorf("invalid stage: %s", v.CurrentStage)
	}
	return s.visits.Update(ctx, v)
}

func (s *Service) ListVisits(ctx context.Context, stage string, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	if stage != "" {
		if !ValidStage(stage) {
			return nil, 0, fmt.Errorf("invalid stage: %s", stage)
		}
		return s.visits.ListByStage(ctx, stage, limit, offset)
	}
	if patientID != uuid.Nil {
		return s.visits.ListByPatient(ctx, patientID, limit, offset)
	}
	return s.visits.List(ctx, limit, offset)
}

// AdvanceStage completes the visit's current stage and moves it to toStage.
// Moving to billing-completed territory (toStage == completed) also closes
// the visit overall.
func (s *Service) AdvanceStage(ctx context.Context, id uuid.UUID, toStage string) (*Visit, error) {
	if !ValidStage(toStage) {
		return nil, fmt.Errorf("invalid stage: %s", toStage)
	}
	v, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.OverallStatus == OverallCompleted {
		return nil, fmt.Errorf("visit is already completed")
	}

	now := time.Now()
	if v.CurrentStage != StageCompleted {
		v.SetStageStatus(v.CurrentStage, StatusCompleted, &now)
	}
	v.CurrentStage = toStage
	if toStage == StageCompleted {
		v.OverallStatus = OverallCompleted
	} else if v.StageStatus(toStage) == "" || v.StageStatus(toStage) == StatusNotRequired {
		v.SetStageStatus(toStage, StatusPending, nil)
	}
	if err := s.visits.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// CompleteLabStage is invoked once per patient after a lab result batch is
// filed. It marks the patient's lab stage done and routes the visit per
// NextStageAfterLab.
func (s *Service) CompleteLabStage(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	v, err := s.visits.FindByPatientAndStage(ctx, patientID, StageLab)
	if err != nil {
		v, err = s.visits.FindActiveByPatient(ctx, patientID)
		if err != nil {
			return nil, fmt.Errorf("no active visit for patient %s", patientID)
		}
	}

	now := time.Now()
	v.SetStageStatus(StageLab, StatusCompleted, &now)

	stage, status := NextStageAfterLab(v)
	v.CurrentStage = stage
	v.SetStageStatus(stage, status, nil)

	if err := s.visits.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// MarkBillingPending moves a visit's billing station to Pending after an
// invoice has been raised. Callers treat failure as non-fatal.
func (s *Service) MarkBillingPending(ctx context.Context, patientID uuid.UUID) error {
	v, err := s.visits.FindActiveByPatient(ctx, patientID)
	if err != nil {
		return fmt.Errorf("no active visit for patient %s", patientID)
	}
	if v.StageStatus(StageBilling) == "" {
		v.SetStageStatus(StageBilling, StatusPending, nil)
	}
	return s.visits.Update(ctx, v)
}

// CompleteForPayment closes out the visit behind a fully settled invoice.
// It prefers the visit currently at the billing stage, falls back to any
// active visit, and as a last resort synthesizes a completed visit record
// so the payment event is never orphaned. The synthesized visit carries no
// clinical history.
func (s *Service) CompleteForPayment(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	now := time.Now()

	v, err := s.visits.FindByPatientAndStage(ctx, patientID, StageBilling)
	if err != nil {
		v, err = s.visits.FindActiveByPatient(ctx, patientID)
	}
	if err != nil {
		s.log.Warn().Str("patient_id", patientID.String()).
			Msg("no active visit found for paid invoice, synthesizing completed visit")
		v = &Visit{
			PatientID:     patientID,
			CurrentStage:  StageCompleted,
			OverallStatus: OverallCompleted,
		}
		v.SetStageStatus(StageBilling, StatusCompleted, &now)
		if err := s.visits.Create(ctx, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	v.SetStageStatus(StageBilling, StatusCompleted, &now)
	v.CurrentStage = StageCompleted
	v.OverallStatus = OverallCompleted
	if err := s.visits.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}
