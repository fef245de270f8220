package services

import (
	"strings"
	"time"
)

type Role string

const (
	RolePatient      Role = "patient"
	RoleDoctor       Role = "doctor"
	RoleNutritionist Role = "nutritionist"
	RoleTrainer      Role = "trainer"
	RoleAdmin        Role = "admin"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RolePatient, RoleDoctor, RoleNutritionist, RoleTrainer}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", NewValidationError(ReasonUnknownRole, "unknown role "+s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleNutritionist, RoleTrainer, RoleAdmin:
		return true
	}
	return false
}

// IsProvider reports whether the role authors care plans.
func (r Role) IsProvider() bool {
	switch r {
	case RoleDoctor, RoleNutritionist, RoleTrainer:
		return true
	}
	return false
}

type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	PassHash  []byte    `json:"pass_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.PassHash = append([]byte(nil), i.PassHash...)
	return &c
}

type ScheduleEntry struct {
	Day        string `json:"day"`
	Activities string `json:"activities"`
}

type Meal struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PlanHeader holds the fields shared by every plan kind.
type PlanHeader struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ExercisePlan struct {
	PlanHeader
	Schedule []ScheduleEntry `json:"schedule"`
}

func (p *ExercisePlan) Header() *PlanHeader { return &p.PlanHeader }

func (p *ExercisePlan) Clone() *ExercisePlan {
	if p == nil {
		return nil
	}
	c := *p
	if p.Schedule != nil {
		c.Schedule = append(make([]ScheduleEntry, 0, len(p.Schedule)), p.Schedule...)
	}
	return &c
}

func (p *ExercisePlan) normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	out := make([]ScheduleEntry, 0, len(p.Schedule))
	for _, e := range p.Schedule {
		e.Day = strings.TrimSpace(e.Day)
		if e.Day == "" && strings.TrimSpace(e.Activities) == "" {
			continue
		}
		out = append(out, e)
	}
	p.Schedule = out
}

type DietPlan struct {
	PlanHeader
	Meals           []Meal `json:"meals"`
	Restrictions    string `json:"restrictions"`
	Recommendations string `json:"recommendations"`
}

func (p *DietPlan) Header() *PlanHeader { return &p.PlanHeader }

func (p *DietPlan) Clone() *DietPlan {
	if p == nil {
		return nil
	}
	c := *p
	if p.Meals != nil {
		c.Meals = append(make([]Meal, 0, len(p.Meals)), p.Meals...)
	}
	return &c
}

func (p *DietPlan) normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	out := make([]Meal, 0, len(p.Meals))
	for _, m := range p.Meals {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" && strings.TrimSpace(m.Description) == "" {
			continue
		}
		out = append(out, m)
	}
	p.Meals = out
}

// Plan is the set of plan kinds a PlanService can manage.
type Plan interface {
	*ExercisePlan | *DietPlan
	Header() *PlanHeader
	normalize()
}

type PlanKind string

const (
	PlanKindExercise PlanKind = "exercise"
	PlanKindDiet     PlanKind = "diet"
)

const (
	MinPainLevel = 1
	MaxPainLevel = 10
)

type ProgressUpdate struct {
	ID                 string    `json:"id"`
	PatientID          string    `json:"patient_id"`
	Weight             float64   `json:"weight"`
	Mood               string    `json:"mood"`
	PainLevel          int       `json:"pain_level"`
	Notes              string    `json:"notes"`
	CompletedExercises string    `json:"completed_exercises"`
	FollowedDiet       string    `json:"followed_diet"`
	CreatedAt          time.Time `json:"created_at"`
}

func (u *ProgressUpdate) Clone() *ProgressUpdate {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}

// SessionRecord is the persisted half of an authenticated session.
type SessionRecord struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Actor is the identity on whose behalf an operation runs.
type Actor struct {
	ID   string
	Role Role
}

func ActorOf(i *Identity) Actor {
	if i == nil {
		return Actor{}
	}
	return Actor{ID: i.ID, Role: i.Role}
}
