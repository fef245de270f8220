package pgstore

import (
	"time"

	"gorm.io/datatypes"

	"github.com/soaringjerry/Vitals/internal/services"
)

type userRow struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Email     string    `gorm:"type:varchar(320);uniqueIndex;not null"`
	Name      string    `gorm:"type:varchar(200);not null"`
	Role      string    `gorm:"type:varchar(20);not null;check:chk_users_role,role IN ('patient','doctor','nutritionist','trainer','admin')"`
	PassHash  []byte    `gorm:"type:bytea"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
}

func (userRow) TableName() string { return "users" }

type exercisePlanRow struct {
	Seq         int64                                       `gorm:"primaryKey;autoIncrement"`
	ID          string                                      `gorm:"type:varchar(64);uniqueIndex;not null"`
	PatientID   string                                      `gorm:"type:varchar(64);index;not null"`
	Title       string                                      `gorm:"type:text;not null"`
	Description string                                      `gorm:"type:text;not null;default:''"`
	Schedule    datatypes.JSONSlice[services.ScheduleEntry] `gorm:"type:jsonb"`
	CreatedAt   time.Time                                   `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time                                   `gorm:"not null;autoUpdateTime:false"`
}

func (exercisePlanRow) TableName() string { return "exercise_plans" }

type dietPlanRow struct {
	Seq             int64                              `gorm:"primaryKey;autoIncrement"`
	ID              string                             `gorm:"type:varchar(64);uniqueIndex;not null"`
	PatientID       string                             `gorm:"type:varchar(64);index;not null"`
	Title           string                             `gorm:"type:text;not null"`
	Description     string                             `gorm:"type:text;not null;default:''"`
	Meals           datatypes.JSONSlice[services.Meal] `gorm:"type:jsonb"`
	Restrictions    string                             `gorm:"type:text;not null;default:''"`
	Recommendations string                             `gorm:"type:text;not null;default:''"`
	CreatedAt       time.Time                          `gorm:"not null;autoCreateTime:false"`
	UpdatedAt       time.Time                          `gorm:"not null;autoUpdateTime:false"`
}

func (dietPlanRow) TableName() string { return "diet_plans" }

type progressRow struct {
	Seq                int64     `gorm:"primaryKey;autoIncrement"`
	ID                 string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	PatientID          string    `gorm:"type:varchar(64);index;not null"`
	Weight             float64   `gorm:"not null;default:0;check:chk_progress_weight,weight >= 0"`
	Mood               string    `gorm:"type:text;not null;default:''"`
	PainLevel          int       `gorm:"not null;check:chk_progress_pain,pain_level BETWEEN 1 AND 10"`
	Notes              string    `gorm:"type:text;not null;default:''"`
	CompletedExercises string    `gorm:"type:text;not null;default:''"`
	FollowedDiet       string    `gorm:"type:text;not null;default:''"`
	CreatedAt          time.Time `gorm:"not null;autoCreateTime:false"`
}

func (progressRow) TableName() string { return "progress_updates" }

type sessionRow struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement"`
	ID         string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	IdentityID string    `gorm:"type:varchar(64);index;not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime:false"`
	ExpiresAt  time.Time `gorm:"not null"`
}

func (sessionRow) TableName() string { return "sessions" }

type auditRow struct {
	Seq    int64     `gorm:"primaryKey;autoIncrement"`
	Time   time.Time `gorm:"column:at;not null"`
	Actor  string    `gorm:"type:varchar(64);not null"`
	Action string    `gorm:"type:varchar(64);not null"`
	Target string    `gorm:"type:varchar(64);not null;default:''"`
	Note   string    `gorm:"type:text;not null;default:''"`
}

func (auditRow) TableName() string { return "audit" }

func allModels() []any {
	return []any{&userRow{}, &exercisePlanRow{}, &dietPlanRow{}, &progressRow{}, &sessionRow{}, &auditRow{}}
}

func toUserRow(u *services.Identity) userRow {
	return userRow{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role), PassHash: u.PassHash, CreatedAt: u.CreatedAt.UTC()}
}

func (r userRow) toIdentity() *services.Identity {
	return &services.Identity{ID: r.ID, Email: r.Email, Name: r.Name, Role: services.Role(r.Role), PassHash: r.PassHash, CreatedAt: r.CreatedAt.UTC()}
}

func header(id, patientID, title, desc string, created, updated time.Time) services.PlanHeader {
	return services.PlanHeader{ID: id, PatientID: patientID, Title: title, Description: desc, CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

func toExerciseRow(p *services.ExercisePlan) exercisePlanRow {
	return exercisePlanRow{
		ID: p.ID, PatientID: p.PatientID, Title: p.Title, Description: p.Description,
		Schedule:  datatypes.JSONSlice[services.ScheduleEntry](p.Schedule),
		CreatedAt: p.CreatedAt.UTC(), UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (r exercisePlanRow) toPlan() *services.ExercisePlan {
	return &services.ExercisePlan{
		PlanHeader: header(r.ID, r.PatientID, r.Title, r.Description, r.CreatedAt, r.UpdatedAt),
		Schedule:   []services.ScheduleEntry(r.Schedule),
	}
}

func toDietRow(p *services.DietPlan) dietPlanRow {
	return dietPlanRow{
		ID: p.ID, PatientID: p.PatientID, Title: p.Title, Description: p.Description,
		Meals:        datatypes.JSONSlice[services.Meal](p.Meals),
		Restrictions: p.Restrictions, Recommendations: p.Recommendations,
		CreatedAt: p.CreatedAt.UTC(), UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (r dietPlanRow) toPlan() *services.DietPlan {
	return &services.DietPlan{
		PlanHeader:      header(r.ID, r.PatientID, r.Title, r.Description, r.CreatedAt, r.UpdatedAt),
		Meals:           []services.Meal(r.Meals),
		Restrictions:    r.Restrictions,
		Recommendations: r.Recommendations,
	}
}

func toProgressRow(u *services.ProgressUpdate) progressRow {
	return progressRow{
		ID: u.ID, PatientID: u.PatientID, Weight: u.Weight, Mood: u.Mood, PainLevel: u.PainLevel, Notes: u.Notes,
		CompletedExercises: u.CompletedExercises, FollowedDiet: u.FollowedDiet, CreatedAt: u.CreatedAt.UTC(),
	}
}

func (r progressRow) toUpdate() *services.ProgressUpdate {
	return &services.ProgressUpdate{
		ID: r.ID, PatientID: r.PatientID, Weight: r.Weight, Mood: r.Mood, PainLevel: r.PainLevel, Notes: r.Notes,
		CompletedExercises: r.CompletedExercises, FollowedDiet: r.FollowedDiet, CreatedAt: r.CreatedAt.UTC(),
	}
}

func toSessionRow(rec *services.SessionRecord) sessionRow {
	return sessionRow{ID: rec.ID, IdentityID: rec.IdentityID, CreatedAt: rec.CreatedAt.UTC(), ExpiresAt: rec.ExpiresAt.UTC()}
}

func (r sessionRow) toRecord() *services.SessionRecord {
	return &services.SessionRecord{ID: r.ID, IdentityID: r.IdentityID, CreatedAt: r.CreatedAt.UTC(), ExpiresAt: r.ExpiresAt.UTC()}
}

func toAuditRow(e services.AuditEntry) auditRow {
	return auditRow{Time: e.Time.UTC(), Actor: e.Actor, Action: e.Action, Target: e.Target, Note: e.Note}
}

func (r auditRow) toEntry() services.AuditEntry {
	return services.AuditEntry{Time: r.Time.UTC(), Actor: r.Actor, Action: r.Action, Target: r.Target, Note: r.Note}
}
