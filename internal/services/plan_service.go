package services

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
)

type PlanStore[P Plan] interface {
	InsertPlan(ctx context.Context, p P) error
	GetPlan(ctx context.Context, id string) (P, error)
	UpdatePlan(ctx context.Context, p P) (bool, error)
	ListPlans(ctx context.Context, patientID string) ([]P, error)
	AddAudit(entry AuditEntry)
}

// PlanService manages one plan kind. Exercise and diet plans share every
// rule except which roles may author them.
type PlanService[P Plan] struct {
	kind    PlanKind
	create  Action
	update  Action
	store   PlanStore[P]
	owners  IdentityReader
	events  Publisher
	newBody func() P
	now     func() time.Time
	idGen   func() string
}

func NewExercisePlanService(store PlanStore[*ExercisePlan], owners IdentityReader, events Publisher) *PlanService[*ExercisePlan] {
	return &PlanService[*ExercisePlan]{
		kind:    PlanKindExercise,
		create:  ActionCreateExercisePlan,
		update:  ActionUpdateExercisePlan,
		store:   store,
		owners:  owners,
		events:  events,
		newBody: func() *ExercisePlan { return &ExercisePlan{} },
		now:     utcNow,
		idGen:   func() string { return shortID(12) },
	}
}

func NewDietPlanService(store PlanStore[*DietPlan], owners IdentityReader, events Publisher) *PlanService[*DietPlan] {
	return &PlanService[*DietPlan]{
		kind:    PlanKindDiet,
		create:  ActionCreateDietPlan,
		update:  ActionUpdateDietPlan,
		store:   store,
		owners:  owners,
		events:  events,
		newBody: func() *DietPlan { return &DietPlan{} },
		now:     utcNow,
		idGen:   func() string { return shortID(12) },
	}
}

func (s *PlanService[P]) Kind() PlanKind { return s.kind }

// NewBody returns an empty plan of this service's kind, ready to decode into.
func (s *PlanService[P]) NewBody() P { return s.newBody() }

// Create stores plan for patientID and returns its id. The plan's header is
// filled in place with the assigned id, owner and timestamps.
func (s *PlanService[P]) Create(ctx context.Context, actor Actor, patientID string, plan P) (string, error) {
	if err := actor.Authorize(s.create, patientID); err != nil {
		return "", err
	}
	if plan == nil {
		return "", NewInvalidError("plan required")
	}
	plan.normalize()
	h := plan.Header()
	if h.Title == "" {
		return "", NewValidationError(ReasonTitleRequired, "title required")
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return "", err
	}
	now := s.now()
	h.ID = s.idGen()
	h.PatientID = patientID
	h.CreatedAt = now
	h.UpdatedAt = now
	if err := s.store.InsertPlan(ctx, plan); err != nil {
		return "", err
	}
	s.store.AddAudit(AuditEntry{Time: now, Actor: actor.ID, Action: string(s.create), Target: h.ID, Note: patientID})
	publish(ctx, s.events, Event{Type: EventPlanCreated, Actor: actor.ID, Target: h.ID, PatientID: patientID, Kind: string(s.kind), At: now})
	return h.ID, nil
}

// ListForPatient returns every plan owned by patientID in storage order.
func (s *PlanService[P]) ListForPatient(ctx context.Context, actor Actor, patientID string) ([]P, error) {
	if err := actor.Authorize(ActionViewPlans, patientID); err != nil {
		return nil, err
	}
	return s.store.ListPlans(ctx, patientID)
}

// Current is the most recently created plan for patientID, or nil when the
// patient has none.
func (s *PlanService[P]) Current(ctx context.Context, actor Actor, patientID string) (P, error) {
	plans, err := s.ListForPatient(ctx, actor, patientID)
	if err != nil || len(plans) == 0 {
		return nil, err
	}
	return LatestPlan(plans), nil
}

// Update replaces the body of plan id. Owner and creation time never change.
func (s *PlanService[P]) Update(ctx context.Context, actor Actor, id string, body P) error {
	if err := actor.Authorize(s.update, ""); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return NewValidationError(ReasonIDRequired, "id required")
	}
	if body == nil {
		return NewInvalidError("plan required")
	}
	body.normalize()
	if body.Header().Title == "" {
		return NewValidationError(ReasonTitleRequired, "title required")
	}
	existing, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return NewNotFoundError("plan not found")
	}
	prev := existing.Header()
	h := body.Header()
	h.ID = prev.ID
	h.PatientID = prev.PatientID
	h.CreatedAt = prev.CreatedAt
	h.UpdatedAt = s.now()
	ok, err := s.store.UpdatePlan(ctx, body)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("plan not found")
	}
	s.store.AddAudit(AuditEntry{Time: h.UpdatedAt, Actor: actor.ID, Action: string(s.update), Target: id, Note: h.PatientID})
	publish(ctx, s.events, Event{Type: EventPlanUpdated, Actor: actor.ID, Target: id, PatientID: h.PatientID, Kind: string(s.kind), At: h.UpdatedAt})
	return nil
}

func (s *PlanService[P]) requirePatient(ctx context.Context, patientID string) error {
	if strings.TrimSpace(patientID) == "" {
		return NewValidationError(ReasonIDRequired, "patient id required")
	}
	owner, err := s.owners.GetIdentity(ctx, patientID)
	if err != nil {
		return err
	}
	if owner == nil || owner.Role != RolePatient {
		return NewNotFoundError("patient not found")
	}
	return nil
}

// LatestPlan picks the plan with the newest CreatedAt, breaking ties on
// UpdatedAt. plans must not be empty.
func LatestPlan[P Plan](plans []P) P {
	return lo.MaxBy(plans, func(a, b P) bool {
		ha, hb := a.Header(), b.Header()
		if !ha.CreatedAt.Equal(hb.CreatedAt) {
			return ha.CreatedAt.After(hb.CreatedAt)
		}
		return ha.UpdatedAt.After(hb.UpdatedAt)
	})
}
