package lab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// VisitRouter routes a patient's visit onward once lab work is finished.
// Wired by the composition root.
type VisitRouter interface {
	CompleteLabStage(ctx context.Context, patientID uuid.UUID) error
}

// ResultEntry is one test's filled-in result as submitted from the results
// dialog. Entries with an empty ResultValue are skipped.
type ResultEntry struct {
	ResultValue    string `json:"result_value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
	AbnormalFlag   string `json:"abnormal_flag,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type Service struct {
	tests  Repository
	visits VisitRouter
	log    zerolog.Logger
}

func NewService(tests Repository, visits VisitRouter, log zerolog.Logger) *Service {
	return &Service{tests: tests, visits: visits, log: log}
}

func (s *Service) OrderTest(ctx context.Context, t *LabTest) error {
	if t.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if t.TestName == "" {
		return fmt.Errorf("test_name is required")
	}
	if t.Status == "" {
		t.Status = StatusOrdered
	}
	if !validStatuses[t.Status] {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if t.Priority == "" {
		t.Priority = PriorityRoutine
	}
	if !validPriorities[t.Priority] {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	return s.tests.Create(ctx, t)
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.tests.GetByID(ctx, id)
}

func (s *Service) UpdateTest(ctx context.Context, t *LabTest) error {
	if !validStatuses[t.Status] {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if t.Priority != "" && !validPriorities[t.Priority] {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	return s.tests.Update(ctx, t)
}

func (s *Service) ListTests(ctx context.Context, status string, patientID uuid.UUID, limit, offset int) ([]*LabTest, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	if patientID != uuid.Nil {
		return s.tests.ListByPatient(ctx, patientID, limit, offset)
	}
	return s.tests.List(ctx, status, limit, offset)
}

// PendingCount reports how many of a patient's tests still await results.
// The lab dashboard badges the patient queue with it.
func (s *Service) PendingCount(ctx context.Context, patientID uuid.UUID) (int, error) {
	if patientID == uuid.Nil {
		return 0, fmt.Errorf("patient_id is required")
	}
	return s.tests.CountPendingByPatient(ctx, patientID)
}

// SubmitResultsBatch files results for all of a patient's tests in one
// action. Only entries with a non-empty result value are written; when none
// qualify the batch is rejected before any write. Tests that receive a
// result move to Completed. The visit's lab stage is completed exactly once
// per batch, not once per test.
func (s *Service) SubmitResultsBatch(ctx context.Context, patientID uuid.UUID, entries map[uuid.UUID]ResultEntry, performedBy string) ([]*LabTest, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	qualifying := make(map[uuid.UUID]ResultEntry)
	for id, e := range entries {
		if e.ResultValue != "" {
			qualifying[id] = e
		}
	}
	if len(qualifying) == 0 {
		return nil, fmt.Errorf("at least one test must have a result value")
	}

	now := time.Now()
	var updated []*LabTest
	for id, entry := range qualifying {
		t, err := s.tests.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lab test %s not found", id)
		}
		if t.PatientID != patientID {
			s.log.Warn().Str("test_id", id.String()).Str("patient_id", patientID.String()).
				Msg("lab test belongs to a different patient, skipping")
			continue
		}

		envelope := ResultEnvelope{
			TestDate:    now.Format("2006-01-02"),
			PerformedBy: performedBy,
			Results: map[string]ResultValue{
				t.TestName: {
					Value:       entry.ResultValue,
					Unit:        entry.Unit,
					NormalRange: entry.ReferenceRange,
					Status:      entry.AbnormalFlag,
				},
			},
			Interpretation: entry.Notes,
		}
		raw, err := json.Marshal(envelope)
		if err != nil {
			return nil, err
		}
		encoded := string(raw)

		t.Results = &encoded
		t.Status = StatusCompleted
		t.CompletedAt = &now
		if err := s.tests.Update(ctx, t); err != nil {
			return nil, err
		}
		updated = append(updated, t)
	}
	if len(updated) == 0 {
		return nil, fmt.Errorf("no submitted test belongs to patient %s", patientID)
	}

	if s.visits != nil {
		if err := s.visits.CompleteLabStage(ctx, patientID); err != nil {
			s.log.Warn().Err(err).Str("patient_id", patientID.String()).
				Msg("results filed but visit lab-stage routing failed")
		}
	}
	return updated, nil
}

// TestResults reads a test's results column tolerantly.
func (s *Service) TestResults(ctx context.Context, id uuid.UUID) (ParsedResults, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return ParsedResults{}, err
	}
	if t.Results == nil {
		return ParsedResults{}, nil
	}
	return ParseResults(*t.Results), nil
}
