package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

type ProgressStore interface {
	InsertProgress(ctx context.Context, u *ProgressUpdate) error
	ListProgress(ctx context.Context, patientID string) ([]*ProgressUpdate, error)
	AddAudit(entry AuditEntry)
}

// ProgressService keeps the append-only log of patient self-reports.
type ProgressService struct {
	store  ProgressStore
	events Publisher
	now    func() time.Time
	idGen  func() string
}

func NewProgressService(store ProgressStore, events Publisher) *ProgressService {
	return &ProgressService{
		store:  store,
		events: events,
		now:    utcNow,
		idGen:  func() string { return shortID(12) },
	}
}

func validateProgress(u *ProgressUpdate) error {
	if u.PainLevel < MinPainLevel || u.PainLevel > MaxPainLevel {
		return NewValidationError(ReasonPainLevelOutOfRange,
			fmt.Sprintf("pain level must be between %d and %d", MinPainLevel, MaxPainLevel))
	}
	if u.Weight < 0 || math.IsNaN(u.Weight) || math.IsInf(u.Weight, 0) {
		return NewValidationError(ReasonNegativeWeight, "weight must be a non-negative number")
	}
	return nil
}

// Submit appends update to patientID's log and returns the new id. Nothing
// is written when validation fails.
func (s *ProgressService) Submit(ctx context.Context, actor Actor, patientID string, update *ProgressUpdate) (string, error) {
	if err := actor.Authorize(ActionSubmitProgress, patientID); err != nil {
		return "", err
	}
	if update == nil {
		return "", NewInvalidError("progress update required")
	}
	if err := validateProgress(update); err != nil {
		return "", err
	}
	update.Mood = strings.TrimSpace(update.Mood)
	update.ID = s.idGen()
	update.PatientID = patientID
	update.CreatedAt = s.now()
	if err := s.store.InsertProgress(ctx, update); err != nil {
		return "", err
	}
	s.store.AddAudit(AuditEntry{Time: update.CreatedAt, Actor: actor.ID, Action: "progress.submit", Target: update.ID})
	publish(ctx, s.events, Event{Type: EventProgressSubmitted, Actor: actor.ID, Target: update.ID, PatientID: patientID, At: update.CreatedAt})
	return update.ID, nil
}

// ListForPatient returns the log in insertion order. Patients see their own
// log; care providers and admins see any patient's.
func (s *ProgressService) ListForPatient(ctx context.Context, actor Actor, patientID string) ([]*ProgressUpdate, error) {
	if actor.Authorize(ActionViewOwnProgress, patientID) != nil {
		if err := actor.Authorize(ActionViewPatientProgress, patientID); err != nil {
			return nil, err
		}
	}
	return s.store.ListProgress(ctx, patientID)
}

// ExportCSV renders patientID's log most recent first. Only care providers
// and admins may export.
func (s *ProgressService) ExportCSV(ctx context.Context, actor Actor, patientID string) ([]byte, error) {
	if err := actor.Authorize(ActionViewPatientProgress, patientID); err != nil {
		return nil, err
	}
	updates, err := s.store.ListProgress(ctx, patientID)
	if err != nil {
		return nil, err
	}
	SortMostRecentFirst(updates)
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor.ID, Action: "progress.export", Target: patientID})
	return ExportProgressCSV(updates)
}
