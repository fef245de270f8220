package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Vitals/internal/api"
	"github.com/soaringjerry/Vitals/internal/services"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "vitals.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var at = time.Date(2024, 2, 3, 4, 5, 6, 789000000, time.UTC)

func TestSQLiteUsers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u := &services.Identity{ID: "2", Email: "p@example.com", Name: "Pat", Role: services.RolePatient, PassHash: []byte{1, 2, 3}, CreatedAt: at}
	require.NoError(t, s.AddUser(ctx, u))

	err := s.AddUser(ctx, &services.Identity{ID: "3", Email: "P@Example.com", Name: "Dup", Role: services.RoleDoctor, CreatedAt: at})
	assert.True(t, services.IsCode(err, services.ErrorConflict), "got %v", err)

	got, err := s.FindUserByEmail(ctx, "P@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	missing, err := s.GetUser(ctx, "404")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := s.DeleteUser(ctx, "2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeleteUser(ctx, "2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteRejectsUnknownRole(t *testing.T) {
	s := openTestStore(t)
	err := s.AddUser(context.Background(), &services.Identity{ID: "9", Email: "x@example.com", Name: "X", Role: "pilot", CreatedAt: at})
	assert.True(t, services.IsCode(err, services.ErrorInvalid), "got %v", err)
}

func TestSQLiteSeedUsersOnce(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seeds := []*services.Identity{
		{ID: "1", Email: "a@example.com", Name: "A", Role: services.RoleAdmin, CreatedAt: at},
		{ID: "2", Email: "p@example.com", Name: "P", Role: services.RolePatient, CreatedAt: at},
	}
	ok, err := s.SeedUsers(ctx, seeds)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SeedUsers(ctx, seeds)
	require.NoError(t, err)
	assert.False(t, ok)
	all, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ID)
}

func TestSQLitePlansRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ex := &services.ExercisePlan{
		PlanHeader: services.PlanHeader{ID: "e1", PatientID: "2", Title: "Rehab", Description: "Knee", CreatedAt: at, UpdatedAt: at},
		Schedule:   []services.ScheduleEntry{{Day: "Monday", Activities: "Stretch"}, {Day: "Friday", Activities: "Swim"}},
	}
	require.NoError(t, s.AddExercisePlan(ctx, ex))
	require.NoError(t, s.AddExercisePlan(ctx, &services.ExercisePlan{PlanHeader: services.PlanHeader{ID: "e2", PatientID: "2", Title: "Later", CreatedAt: at, UpdatedAt: at}}))
	err := s.AddExercisePlan(ctx, ex)
	assert.True(t, services.IsCode(err, services.ErrorConflict))

	plans, err := s.ListExercisePlans(ctx, "2")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, ex, plans[0])
	assert.Equal(t, "e2", plans[1].ID)

	ex.Title = "Rehab v2"
	ex.UpdatedAt = at.Add(time.Hour)
	ok, err := s.UpdateExercisePlan(ctx, ex)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.GetExercisePlan(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Rehab v2", got.Title)
	assert.True(t, got.CreatedAt.Equal(at))

	diet := &services.DietPlan{
		PlanHeader:      services.PlanHeader{ID: "d1", PatientID: "2", Title: "Low salt", CreatedAt: at, UpdatedAt: at},
		Meals:           []services.Meal{{Name: "Breakfast", Description: "Oats"}},
		Restrictions:    "salt",
		Recommendations: "water",
	}
	require.NoError(t, s.AddDietPlan(ctx, diet))
	gotDiet, err := s.GetDietPlan(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, diet, gotDiet)
	ok, err = s.UpdateDietPlan(ctx, &services.DietPlan{PlanHeader: services.PlanHeader{ID: "nope"}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteProgressConstraints(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ok := &services.ProgressUpdate{ID: "u1", PatientID: "2", Weight: 71.5, Mood: "good", PainLevel: 10, Notes: "n", CreatedAt: at}
	require.NoError(t, s.AddProgressUpdate(ctx, ok))
	err := s.AddProgressUpdate(ctx, &services.ProgressUpdate{ID: "u2", PatientID: "2", PainLevel: 11, CreatedAt: at})
	assert.True(t, services.IsCode(err, services.ErrorInvalid), "got %v", err)
	err = s.AddProgressUpdate(ctx, &services.ProgressUpdate{ID: "u3", PatientID: "2", PainLevel: 0, CreatedAt: at})
	assert.True(t, services.IsCode(err, services.ErrorInvalid), "got %v", err)

	list, err := s.ListProgressUpdates(ctx, "2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ok, list[0])
}

func TestSQLiteSessionsAndAudit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	rec := &services.SessionRecord{ID: "s1", IdentityID: "2", CreatedAt: at, ExpiresAt: at.Add(time.Hour)}
	require.NoError(t, s.AddSession(ctx, rec))
	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	deleted, err := s.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, deleted)
	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	s.AddAudit(services.AuditEntry{Time: at, Actor: "1", Action: "identity.remove", Target: "5"})
	audit, err := s.ListAudit(ctx)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "identity.remove", audit[0].Action)
}

func TestSQLiteRestoreFromSnapshot(t *testing.T) {
	ctx := context.Background()
	mem := api.NewMemoryStore()
	require.NoError(t, mem.AddUser(ctx, &services.Identity{ID: "2", Email: "p@example.com", Name: "P", Role: services.RolePatient, CreatedAt: at}))
	require.NoError(t, mem.AddProgressUpdate(ctx, &services.ProgressUpdate{ID: "u1", PatientID: "2", PainLevel: 3, CreatedAt: at}))
	snap, err := mem.Snapshot(ctx)
	require.NoError(t, err)

	s := openTestStore(t)
	require.NoError(t, api.Restore(ctx, s, snap))
	back, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, back.Users, 1)
	assert.Len(t, back.ProgressUpdates, 1)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, RunMigrations(ctx, s.db, ""))
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteUnavailableAfterClose(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "closed.db"), time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.ListUsers(context.Background())
	assert.True(t, services.IsCode(err, services.ErrorUnavailable), "got %v", err)
}
