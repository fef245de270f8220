package api

import (
	"context"

	"github.com/soaringjerry/Vitals/internal/services"
)

type exercisePlanStoreAdapter struct {
	store Store
}

func newExercisePlanStoreAdapter(store Store) services.PlanStore[*services.ExercisePlan] {
	return &exercisePlanStoreAdapter{store: store}
}

func (a *exercisePlanStoreAdapter) InsertPlan(ctx context.Context, p *services.ExercisePlan) error {
	return retryErr(ctx, "add exercise plan", func(ctx context.Context) error {
		return a.store.AddExercisePlan(ctx, p)
	})
}

func (a *exercisePlanStoreAdapter) GetPlan(ctx context.Context, id string) (*services.ExercisePlan, error) {
	return withRetry(ctx, "get exercise plan", func(ctx context.Context) (*services.ExercisePlan, error) {
		return a.store.GetExercisePlan(ctx, id)
	})
}

func (a *exercisePlanStoreAdapter) UpdatePlan(ctx context.Context, p *services.ExercisePlan) (bool, error) {
	return withRetry(ctx, "update exercise plan", func(ctx context.Context) (bool, error) {
		return a.store.UpdateExercisePlan(ctx, p)
	})
}

func (a *exercisePlanStoreAdapter) ListPlans(ctx context.Context, patientID string) ([]*services.ExercisePlan, error) {
	return withRetry(ctx, "list exercise plans", func(ctx context.Context) ([]*services.ExercisePlan, error) {
		return a.store.ListExercisePlans(ctx, patientID)
	})
}

func (a *exercisePlanStoreAdapter) AddAudit(entry services.AuditEntry) { a.store.AddAudit(entry) }

type dietPlanStoreAdapter struct {
	store Store
}

func newDietPlanStoreAdapter(store Store) services.PlanStore[*services.DietPlan] {
	return &dietPlanStoreAdapter{store: store}
}

func (a *dietPlanStoreAdapter) InsertPlan(ctx context.Context, p *services.DietPlan) error {
	return retryErr(ctx, "add diet plan", func(ctx context.Context) error {
		return a.store.AddDietPlan(ctx, p)
	})
}

func (a *dietPlanStoreAdapter) GetPlan(ctx context.Context, id string) (*services.DietPlan, error) {
	return withRetry(ctx, "get diet plan", func(ctx context.Context) (*services.DietPlan, error) {
		return a.store.GetDietPlan(ctx, id)
	})
}

func (a *dietPlanStoreAdapter) UpdatePlan(ctx context.Context, p *services.DietPlan) (bool, error) {
	return withRetry(ctx, "update diet plan", func(ctx context.Context) (bool, error) {
		return a.store.UpdateDietPlan(ctx, p)
	})
}

func (a *dietPlanStoreAdapter) ListPlans(ctx context.Context, patientID string) ([]*services.DietPlan, error) {
	return withRetry(ctx, "list diet plans", func(ctx context.Context) ([]*services.DietPlan, error) {
		return a.store.ListDietPlans(ctx, patientID)
	})
}

func (a *dietPlanStoreAdapter) AddAudit(entry services.AuditEntry) { a.store.AddAudit(entry) }

var (
	_ services.PlanStore[*services.ExercisePlan] = (*exercisePlanStoreAdapter)(nil)
	_ services.PlanStore[*services.DietPlan]     = (*dietPlanStoreAdapter)(nil)
)
