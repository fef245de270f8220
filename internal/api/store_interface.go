package api

import (
	"context"

	"github.com/soaringjerry/Vitals/internal/services"
)

// Store is the persistence contract shared by every backend. Lists come back
// in insertion order. Missing records are reported as nil without error.
type Store interface {
	AddUser(ctx context.Context, u *services.Identity) error
	GetUser(ctx context.Context, id string) (*services.Identity, error)
	FindUserByEmail(ctx context.Context, email string) (*services.Identity, error)
	ListUsers(ctx context.Context) ([]*services.Identity, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	SeedUsers(ctx context.Context, seeds []*services.Identity) (bool, error)

	AddExercisePlan(ctx context.Context, p *services.ExercisePlan) error
	GetExercisePlan(ctx context.Context, id string) (*services.ExercisePlan, error)
	UpdateExercisePlan(ctx context.Context, p *services.ExercisePlan) (bool, error)
	ListExercisePlans(ctx context.Context, patientID string) ([]*services.ExercisePlan, error)

	AddDietPlan(ctx context.Context, p *services.DietPlan) error
	GetDietPlan(ctx context.Context, id string) (*services.DietPlan, error)
	UpdateDietPlan(ctx context.Context, p *services.DietPlan) (bool, error)
	ListDietPlans(ctx context.Context, patientID string) ([]*services.DietPlan, error)

	AddProgressUpdate(ctx context.Context, u *services.ProgressUpdate) error
	ListProgressUpdates(ctx context.Context, patientID string) ([]*services.ProgressUpdate, error)

	AddSession(ctx context.Context, rec *services.SessionRecord) error
	GetSession(ctx context.Context, id string) (*services.SessionRecord, error)
	DeleteSession(ctx context.Context, id string) (bool, error)

	AddAudit(e services.AuditEntry)
	ListAudit(ctx context.Context) ([]services.AuditEntry, error)

	Snapshot(ctx context.Context) (*Snapshot, error)
	Close() error
}

var _ Store = (*MemoryStore)(nil)
