package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Vitals/internal/services"
)

func sampleIdentity(id, email string, role services.Role) *services.Identity {
	return &services.Identity{ID: id, Email: email, Name: id, Role: role, PassHash: []byte("hash"), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestMemoryStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.AddUser(ctx, sampleIdentity("1", "a@example.com", services.RoleAdmin)))
	require.NoError(t, s.AddUser(ctx, sampleIdentity("2", "p@example.com", services.RolePatient)))

	err := s.AddUser(ctx, sampleIdentity("3", "P@example.com", services.RoleDoctor))
	assert.True(t, services.IsCode(err, services.ErrorConflict))

	u, err := s.FindUserByEmail(ctx, "P@EXAMPLE.COM")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "2", u.ID)

	u.Name = "mutated"
	again, _ := s.GetUser(ctx, "2")
	assert.Equal(t, "2", again.Name, "store must not alias returned records")

	missing, err := s.GetUser(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := s.DeleteUser(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeleteUser(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	all, _ := s.ListUsers(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "2", all[0].ID)
}

func TestMemoryStoreSeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seeds := []*services.Identity{sampleIdentity("1", "a@example.com", services.RoleAdmin)}
	ok, err := s.SeedUsers(ctx, seeds)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SeedUsers(ctx, seeds)
	require.NoError(t, err)
	assert.False(t, ok)
	all, _ := s.ListUsers(ctx)
	assert.Len(t, all, 1)
}

func TestMemoryStorePlansAndProgressOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"e1", "e2", "e3"} {
		owner := "p1"
		if id == "e2" {
			owner = "p2"
		}
		require.NoError(t, s.AddExercisePlan(ctx, &services.ExercisePlan{PlanHeader: services.PlanHeader{ID: id, PatientID: owner, Title: id}}))
	}
	plans, err := s.ListExercisePlans(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "e1", plans[0].ID)
	assert.Equal(t, "e3", plans[1].ID)

	ok, err := s.UpdateExercisePlan(ctx, &services.ExercisePlan{PlanHeader: services.PlanHeader{ID: "e3", PatientID: "p1", Title: "new"}})
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := s.GetExercisePlan(ctx, "e3")
	assert.Equal(t, "new", got.Title)
	ok, _ = s.UpdateExercisePlan(ctx, &services.ExercisePlan{PlanHeader: services.PlanHeader{ID: "zz"}})
	assert.False(t, ok)

	require.NoError(t, s.AddDietPlan(ctx, &services.DietPlan{PlanHeader: services.PlanHeader{ID: "d1", PatientID: "p1", Title: "d"}, Meals: []services.Meal{{Name: "Lunch"}}}))
	diets, _ := s.ListDietPlans(ctx, "p1")
	require.Len(t, diets, 1)
	assert.Equal(t, "Lunch", diets[0].Meals[0].Name)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.AddProgressUpdate(ctx, &services.ProgressUpdate{ID: string(rune('a' + i)), PatientID: "p1", PainLevel: i}))
	}
	ups, _ := s.ListProgressUpdates(ctx, "p1")
	require.Len(t, ups, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{ups[0].PainLevel, ups[1].PainLevel, ups[2].PainLevel})
}

func TestMemoryStoreKeepsEmptySequences(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.AddUser(ctx, sampleIdentity("2", "p@example.com", services.RolePatient)))
	doctor := services.Actor{ID: "3", Role: services.RoleDoctor}

	exercise := services.NewExercisePlanService(newExercisePlanStoreAdapter(s), newIdentityStoreAdapter(s), nil)
	in := &services.ExercisePlan{PlanHeader: services.PlanHeader{Title: "Rest week"}, Schedule: []services.ScheduleEntry{}}
	_, err := exercise.Create(ctx, doctor, "2", in)
	require.NoError(t, err)
	got, err := exercise.Current(ctx, doctor, "2")
	require.NoError(t, err)
	assert.Equal(t, in, got)
	require.NotNil(t, got.Schedule)

	diet := services.NewDietPlanService(newDietPlanStoreAdapter(s), newIdentityStoreAdapter(s), nil)
	dietIn := &services.DietPlan{PlanHeader: services.PlanHeader{Title: "Fasting"}, Meals: []services.Meal{}}
	_, err = diet.Create(ctx, doctor, "2", dietIn)
	require.NoError(t, err)
	gotDiet, err := diet.Current(ctx, doctor, "2")
	require.NoError(t, err)
	assert.Equal(t, dietIn, gotDiet)
	require.NotNil(t, gotDiet.Meals)

	b, err := json.Marshal(gotDiet)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"meals":[]`)
	b, err = json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"schedule":[]`)
}

func TestMemoryStoreSeparatesIDAndEmailConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.AddUser(ctx, sampleIdentity("1", "a@example.com", services.RoleAdmin)))

	err := s.AddUser(ctx, sampleIdentity("1", "fresh@example.com", services.RolePatient))
	se, ok := services.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, services.ErrorConflict, se.Code)
	assert.Equal(t, services.ReasonDuplicateID, se.Reason)

	err = s.AddUser(ctx, sampleIdentity("9", "A@example.com", services.RolePatient))
	se, ok = services.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, services.ReasonDuplicateEmail, se.Reason)
}

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "vitals.json")
	s, err := OpenMemoryStore(path)
	require.NoError(t, err)
	require.NoError(t, s.AddUser(ctx, sampleIdentity("2", "p@example.com", services.RolePatient)))
	require.NoError(t, s.AddProgressUpdate(ctx, &services.ProgressUpdate{ID: "u1", PatientID: "2", PainLevel: 4, Weight: 70.5}))
	require.NoError(t, s.AddSession(ctx, &services.SessionRecord{ID: "s1", IdentityID: "2"}))
	s.AddAudit(services.AuditEntry{Action: "progress.submit", Target: "u1"})

	reopened, err := OpenMemoryStore(path)
	require.NoError(t, err)
	u, _ := reopened.GetUser(ctx, "2")
	require.NotNil(t, u)
	assert.Equal(t, []byte("hash"), u.PassHash)
	ups, _ := reopened.ListProgressUpdates(ctx, "2")
	require.Len(t, ups, 1)
	assert.Equal(t, 70.5, ups[0].Weight)
	rec, _ := reopened.GetSession(ctx, "s1")
	require.NotNil(t, rec)
	audit, _ := reopened.ListAudit(ctx)
	require.Len(t, audit, 1)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"progressUpdates"`)
	assert.Contains(t, string(b), `"exercisePlans"`)
}

func TestMemoryStoreRollsBackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, os.Mkdir(path, 0o755))
	s := &MemoryStore{path: path}

	err := s.AddUser(ctx, sampleIdentity("1", "a@example.com", services.RoleAdmin))
	assert.True(t, services.IsCode(err, services.ErrorUnavailable))
	all, _ := s.ListUsers(ctx)
	assert.Empty(t, all)
}

func TestRestoreRequiresEmptyTarget(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryStore()
	require.NoError(t, src.AddUser(ctx, sampleIdentity("2", "p@example.com", services.RolePatient)))
	require.NoError(t, src.AddDietPlan(ctx, &services.DietPlan{PlanHeader: services.PlanHeader{ID: "d1", PatientID: "2", Title: "x"}}))
	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)

	dst := NewMemoryStore()
	require.NoError(t, Restore(ctx, dst, snap))
	diets, _ := dst.ListDietPlans(ctx, "2")
	assert.Len(t, diets, 1)

	err = Restore(ctx, dst, snap)
	assert.True(t, services.IsCode(err, services.ErrorConflict))
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join(t.TempDir(), "none.json"))
	assert.NoError(t, err)
	assert.Nil(t, snap)
}
