package api

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/soaringjerry/Vitals/internal/services"
)

// MemoryStore keeps every collection in process. With a snapshot path it
// writes the whole store to disk after each mutation and rolls the mutation
// back when the write fails.
type MemoryStore struct {
	mu       sync.RWMutex
	path     string
	users    []*services.Identity
	exercise []*services.ExercisePlan
	diet     []*services.DietPlan
	progress []*services.ProgressUpdate
	sessions []*services.SessionRecord
	audit    []services.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// OpenMemoryStore loads path when it exists and persists there afterwards.
func OpenMemoryStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{path: path}
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		s.users = snap.Users
		s.exercise = snap.ExercisePlans
		s.diet = snap.DietPlans
		s.progress = snap.ProgressUpdates
		s.sessions = snap.Sessions
		s.audit = snap.Audit
		log.Printf("memory store: loaded %d users from %s", len(s.users), path)
	}
	return s, nil
}

func cloneAll[T any](in []T, clone func(T) T) []T {
	return lo.Map(in, func(v T, _ int) T { return clone(v) })
}

func cloneSession(r *services.SessionRecord) *services.SessionRecord {
	c := *r
	return &c
}

func (s *MemoryStore) snapshotLocked() *Snapshot {
	return &Snapshot{
		Users:           cloneAll(s.users, (*services.Identity).Clone),
		ExercisePlans:   cloneAll(s.exercise, (*services.ExercisePlan).Clone),
		DietPlans:       cloneAll(s.diet, (*services.DietPlan).Clone),
		ProgressUpdates: cloneAll(s.progress, (*services.ProgressUpdate).Clone),
		Sessions:        cloneAll(s.sessions, cloneSession),
		Audit:           append([]services.AuditEntry(nil), s.audit...),
	}
}

// commitLocked persists the current state. On failure undo reverts the
// mutation that was just applied.
func (s *MemoryStore) commitLocked(op string, undo func()) error {
	if s.path == "" {
		return nil
	}
	if err := WriteSnapshot(s.path, s.snapshotLocked()); err != nil {
		undo()
		log.Printf("memory store: %s: persist snapshot: %v", op, err)
		return services.NewUnavailableError("snapshot write failed", err)
	}
	return nil
}

func (s *MemoryStore) AddUser(ctx context.Context, u *services.Identity) error {
	if u == nil {
		return services.NewInvalidError("user required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.users {
		if cur.ID == u.ID {
			return services.NewDuplicateError(services.ReasonDuplicateID, "id exists")
		}
		if strings.EqualFold(cur.Email, u.Email) {
			return services.NewDuplicateError(services.ReasonDuplicateEmail, "email exists")
		}
	}
	prev := s.users
	s.users = append(s.users[:len(s.users):len(s.users)], u.Clone())
	return s.commitLocked("add user", func() { s.users = prev })
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*services.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := lo.Find(s.users, func(u *services.Identity) bool { return u.ID == id })
	if !ok {
		return nil, nil
	}
	return u.Clone(), nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*services.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := lo.Find(s.users, func(u *services.Identity) bool { return strings.EqualFold(u.Email, email) })
	if !ok {
		return nil, nil
	}
	return u.Clone(), nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*services.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.users, (*services.Identity).Clone), nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.users
	kept := lo.Reject(s.users, func(u *services.Identity, _ int) bool { return u.ID == id })
	if len(kept) == len(prev) {
		return false, nil
	}
	s.users = kept
	if err := s.commitLocked("delete user", func() { s.users = prev }); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) SeedUsers(ctx context.Context, seeds []*services.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.users) > 0 {
		return false, nil
	}
	s.users = cloneAll(seeds, (*services.Identity).Clone)
	if err := s.commitLocked("seed users", func() { s.users = nil }); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) AddExercisePlan(ctx context.Context, p *services.ExercisePlan) error {
	if p == nil {
		return services.NewInvalidError("plan required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.exercise
	s.exercise = append(s.exercise[:len(s.exercise):len(s.exercise)], p.Clone())
	return s.commitLocked("add exercise plan", func() { s.exercise = prev })
}

func (s *MemoryStore) GetExercisePlan(ctx context.Context, id string) (*services.ExercisePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := lo.Find(s.exercise, func(p *services.ExercisePlan) bool { return p.ID == id })
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (s *MemoryStore) UpdateExercisePlan(ctx context.Context, p *services.ExercisePlan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, ok := lo.FindIndexOf(s.exercise, func(cur *services.ExercisePlan) bool { return cur.ID == p.ID })
	if !ok {
		return false, nil
	}
	old := s.exercise[idx]
	s.exercise[idx] = p.Clone()
	if err := s.commitLocked("update exercise plan", func() { s.exercise[idx] = old }); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) ListExercisePlans(ctx context.Context, patientID string) ([]*services.ExercisePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mine := lo.Filter(s.exercise, func(p *services.ExercisePlan, _ int) bool { return p.PatientID == patientID })
	return cloneAll(mine, (*services.ExercisePlan).Clone), nil
}

func (s *MemoryStore) AddDietPlan(ctx context.Context, p *services.DietPlan) error {
	if p == nil {
		return services.NewInvalidError("plan required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.diet
	s.diet = append(s.diet[:len(s.diet):len(s.diet)], p.Clone())
	return s.commitLocked("add diet plan", func() { s.diet = prev })
}

func (s *MemoryStore) GetDietPlan(ctx context.Context, id string) (*services.DietPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := lo.Find(s.diet, func(p *services.DietPlan) bool { return p.ID == id })
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (s *MemoryStore) UpdateDietPlan(ctx context.Context, p *services.DietPlan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, ok := lo.FindIndexOf(s.diet, func(cur *services.DietPlan) bool { return cur.ID == p.ID })
	if !ok {
		return false, nil
	}
	old := s.diet[idx]
	s.diet[idx] = p.Clone()
	if err := s.commitLocked("update diet plan", func() { s.diet[idx] = old }); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) ListDietPlans(ctx context.Context, patientID string) ([]*services.DietPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mine := lo.Filter(s.diet, func(p *services.DietPlan, _ int) bool { return p.PatientID == patientID })
	return cloneAll(mine, (*services.DietPlan).Clone), nil
}

func (s *MemoryStore) AddProgressUpdate(ctx context.Context, u *services.ProgressUpdate) error {
	if u == nil {
		return services.NewInvalidError("progress update required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.progress
	s.progress = append(s.progress[:len(s.progress):len(s.progress)], u.Clone())
	return s.commitLocked("add progress", func() { s.progress = prev })
}

func (s *MemoryStore) ListProgressUpdates(ctx context.Context, patientID string) ([]*services.ProgressUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mine := lo.Filter(s.progress, func(u *services.ProgressUpdate, _ int) bool { return u.PatientID == patientID })
	return cloneAll(mine, (*services.ProgressUpdate).Clone), nil
}

func (s *MemoryStore) AddSession(ctx context.Context, rec *services.SessionRecord) error {
	if rec == nil {
		return services.NewInvalidError("session required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sessions
	s.sessions = append(s.sessions[:len(s.sessions):len(s.sessions)], cloneSession(rec))
	return s.commitLocked("add session", func() { s.sessions = prev })
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*services.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := lo.Find(s.sessions, func(r *services.SessionRecord) bool { return r.ID == id })
	if !ok {
		return nil, nil
	}
	return cloneSession(rec), nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sessions
	kept := lo.Reject(s.sessions, func(r *services.SessionRecord, _ int) bool { return r.ID == id })
	if len(kept) == len(prev) {
		return false, nil
	}
	s.sessions = kept
	if err := s.commitLocked("delete session", func() { s.sessions = prev }); err != nil {
		return false, err
	}
	return true, nil
}

// AddAudit never fails the caller; a failed snapshot write is logged and the
// entry is kept in memory.
func (s *MemoryStore) AddAudit(e services.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	_ = s.commitLocked("add audit", func() {})
}

func (s *MemoryStore) ListAudit(ctx context.Context) ([]services.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]services.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out, nil
}

func (s *MemoryStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *MemoryStore) Close() error { return nil }
