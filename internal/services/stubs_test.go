package services

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type stubIdentityStore struct {
	order    []string
	byID     map[string]*Identity
	audits   []AuditEntry
	sessions map[string]*SessionRecord
	findErr  error
}

func newStubIdentityStore() *stubIdentityStore {
	return &stubIdentityStore{byID: map[string]*Identity{}, sessions: map[string]*SessionRecord{}}
}

func (s *stubIdentityStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	return s.byID[id].Clone(), nil
}

func (s *stubIdentityStore) FindIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, id := range s.order {
		if s.byID[id].Email == email {
			return s.byID[id].Clone(), nil
		}
	}
	return nil, nil
}

func (s *stubIdentityStore) ListIdentities(ctx context.Context) ([]*Identity, error) {
	out := make([]*Identity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *stubIdentityStore) AddIdentity(ctx context.Context, i *Identity) error {
	if _, ok := s.byID[i.ID]; ok {
		return NewDuplicateError(ReasonDuplicateID, "id exists")
	}
	s.byID[i.ID] = i.Clone()
	s.order = append(s.order, i.ID)
	return nil
}

func (s *stubIdentityStore) DeleteIdentity(ctx context.Context, id string) (bool, error) {
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *stubIdentityStore) SeedIdentities(ctx context.Context, seeds []*Identity) (bool, error) {
	if len(s.order) > 0 {
		return false, nil
	}
	for _, sd := range seeds {
		if err := s.AddIdentity(ctx, sd); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *stubIdentityStore) AddAudit(entry AuditEntry) { s.audits = append(s.audits, entry) }

func (s *stubIdentityStore) AddSession(ctx context.Context, rec *SessionRecord) error {
	c := *rec
	s.sessions[rec.ID] = &c
	return nil
}

func (s *stubIdentityStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	if rec, ok := s.sessions[id]; ok {
		c := *rec
		return &c, nil
	}
	return nil, nil
}

func (s *stubIdentityStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *stubIdentityStore) put(id, email string, role Role) *Identity {
	i := &Identity{ID: id, Email: email, Name: id, Role: role, CreatedAt: time.Unix(0, 0).UTC()}
	s.byID[id] = i
	s.order = append(s.order, id)
	return i
}

type stubPlanStore[P Plan] struct {
	plans  []P
	audits []AuditEntry
}

func (s *stubPlanStore[P]) InsertPlan(ctx context.Context, p P) error {
	s.plans = append(s.plans, p)
	return nil
}

func (s *stubPlanStore[P]) GetPlan(ctx context.Context, id string) (P, error) {
	for _, p := range s.plans {
		if p.Header().ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (s *stubPlanStore[P]) UpdatePlan(ctx context.Context, p P) (bool, error) {
	for i, cur := range s.plans {
		if cur.Header().ID == p.Header().ID {
			s.plans[i] = p
			return true, nil
		}
	}
	return false, nil
}

func (s *stubPlanStore[P]) ListPlans(ctx context.Context, patientID string) ([]P, error) {
	var out []P
	for _, p := range s.plans {
		if p.Header().PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPlanStore[P]) AddAudit(entry AuditEntry) { s.audits = append(s.audits, entry) }

type stubProgressStore struct {
	updates []*ProgressUpdate
	audits  []AuditEntry
}

func (s *stubProgressStore) InsertProgress(ctx context.Context, u *ProgressUpdate) error {
	s.updates = append(s.updates, u.Clone())
	return nil
}

func (s *stubProgressStore) ListProgress(ctx context.Context, patientID string) ([]*ProgressUpdate, error) {
	var out []*ProgressUpdate
	for _, u := range s.updates {
		if u.PatientID == patientID {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (s *stubProgressStore) AddAudit(entry AuditEntry) { s.audits = append(s.audits, entry) }

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func cheapHash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
}
