package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/Vitals/internal/api"
	"github.com/soaringjerry/Vitals/internal/services"
)

const defaultTimeout = 5 * time.Second

type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string, timeout time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db, timeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, db, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func NewSQLiteStore(db *sql.DB, timeout time.Duration) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SQLiteStore{db: db, timeout: timeout}, nil
}

var _ api.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		log.Printf("sqlite store: %s: %v", prefix, err)
	}
}

func (s *SQLiteStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// wrap turns driver errors into service errors: constraint violations are
// caller mistakes, everything else is the store being unavailable.
func (s *SQLiteStore) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return services.NewConflictError(op + ": already exists")
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return services.NewInvalidError(op + ": " + se.Error())
		}
	}
	s.logErr(op, err)
	return services.NewUnavailableError(op+" failed", err)
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		log.Printf("sqlite store: parse time %q: %v", v, err)
		return time.Time{}
	}
	return t
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON[T any](raw string) []T {
	var out []T
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("sqlite store: decode json column: %v", err)
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

// --- users ---

const userColumns = `id, email, name, role, pass_hash, created_at`

func scanUser(row scanner) (*services.Identity, error) {
	var u services.Identity
	var role, created string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.PassHash, &created); err != nil {
		return nil, err
	}
	u.Role = services.Role(role)
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (s *SQLiteStore) AddUser(ctx context.Context, u *services.Identity) error {
	if u == nil {
		return services.NewInvalidError("user required")
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.insertUser(ctx, s.db, u)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insertUser(ctx context.Context, ex execer, u *services.Identity) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, string(u.Role), u.PassHash, fmtTime(u.CreatedAt))
	if err == nil {
		return nil
	}
	werr := s.wrap("add user", err)
	if services.IsCode(werr, services.ErrorConflict) {
		return services.NewConflictError("email exists")
	}
	return werr
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*services.Identity, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get user", err)
	}
	return u, nil
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*services.Identity, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("find user", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*services.Identity, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY rowid`)
	if err != nil {
		return nil, s.wrap("list users", err)
	}
	defer rows.Close()
	out := []*services.Identity{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.wrap("scan user", err)
		}
		out = append(out, u)
	}
	return out, s.wrap("list users", rows.Err())
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.deleteByID(ctx, "delete user", `DELETE FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) deleteByID(ctx context.Context, op, query, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, s.wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.wrap(op, err)
	}
	return n > 0, nil
}

// SeedUsers inserts seeds in one transaction, only when users is empty.
func (s *SQLiteStore) SeedUsers(ctx context.Context, seeds []*services.Identity) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, s.wrap("seed users", err)
	}
	defer func() { _ = tx.Rollback() }()
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, s.wrap("seed users", err)
	}
	if n > 0 {
		return false, nil
	}
	for _, u := range seeds {
		if err := s.insertUser(ctx, tx, u); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, s.wrap("seed users", err)
	}
	return true, nil
}

// --- exercise plans ---

const exerciseColumns = `id, patient_id, title, description, schedule, created_at, updated_at`

func scanExercisePlan(row scanner) (*services.ExercisePlan, error) {
	var p services.ExercisePlan
	var schedule, created, updated string
	if err := row.Scan(&p.ID, &p.PatientID, &p.Title, &p.Description, &schedule, &created, &updated); err != nil {
		return nil, err
	}
	p.Schedule = decodeJSON[services.ScheduleEntry](schedule)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func (s *SQLiteStore) AddExercisePlan(ctx context.Context, p *services.ExercisePlan) error {
	if p == nil {
		return services.NewInvalidError("plan required")
	}
	schedule, err := encodeJSON(p.Schedule)
	if err != nil {
		return services.NewInvalidError("encode schedule: " + err.Error())
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `INSERT INTO exercise_plans (`+exerciseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PatientID, p.Title, p.Description, schedule, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	return s.wrap("add exercise plan", err)
}

func (s *SQLiteStore) GetExercisePlan(ctx context.Context, id string) (*services.ExercisePlan, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	p, err := scanExercisePlan(s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercise_plans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get exercise plan", err)
	}
	return p, nil
}

func (s *SQLiteStore) UpdateExercisePlan(ctx context.Context, p *services.ExercisePlan) (bool, error) {
	schedule, err := encodeJSON(p.Schedule)
	if err != nil {
		return false, services.NewInvalidError("encode schedule: " + err.Error())
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `UPDATE exercise_plans SET title = ?, description = ?, schedule = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Description, schedule, fmtTime(p.UpdatedAt), p.ID)
	if err != nil {
		return false, s.wrap("update exercise plan", err)
	}
	n, err := res.RowsAffected()
	return n > 0, s.wrap("update exercise plan", err)
}

func (s *SQLiteStore) ListExercisePlans(ctx context.Context, patientID string) ([]*services.ExercisePlan, error) {
	return s.listExercisePlans(ctx, `WHERE patient_id = ?`, patientID)
}

func (s *SQLiteStore) listExercisePlans(ctx context.Context, where string, args ...any) ([]*services.ExercisePlan, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT `+exerciseColumns+` FROM exercise_plans `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, s.wrap("list exercise plans", err)
	}
	defer rows.Close()
	out := []*services.ExercisePlan{}
	for rows.Next() {
		p, err := scanExercisePlan(rows)
		if err != nil {
			return nil, s.wrap("scan exercise plan", err)
		}
		out = append(out, p)
	}
	return out, s.wrap("list exercise plans", rows.Err())
}

// --- diet plans ---

const dietColumns = `id, patient_id, title, description, meals, restrictions, recommendations, created_at, updated_at`

func scanDietPlan(row scanner) (*services.DietPlan, error) {
	var p services.DietPlan
	var meals, created, updated string
	if err := row.Scan(&p.ID, &p.PatientID, &p.Title, &p.Description, &meals, &p.Restrictions, &p.Recommendations, &created, &updated); err != nil {
		return nil, err
	}
	p.Meals = decodeJSON[services.Meal](meals)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func (s *SQLiteStore) AddDietPlan(ctx context.Context, p *services.DietPlan) error {
	if p == nil {
		return services.NewInvalidError("plan required")
	}
	meals, err := encodeJSON(p.Meals)
	if err != nil {
		return services.NewInvalidError("encode meals: " + err.Error())
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `INSERT INTO diet_plans (`+dietColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PatientID, p.Title, p.Description, meals, p.Restrictions, p.Recommendations, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	return s.wrap("add diet plan", err)
}

func (s *SQLiteStore) GetDietPlan(ctx context.Context, id string) (*services.DietPlan, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	p, err := scanDietPlan(s.db.QueryRowContext(ctx, `SELECT `+dietColumns+` FROM diet_plans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get diet plan", err)
	}
	return p, nil
}

func (s *SQLiteStore) UpdateDietPlan(ctx context.Context, p *services.DietPlan) (bool, error) {
	meals, err := encodeJSON(p.Meals)
	if err != nil {
		return false, services.NewInvalidError("encode meals: " + err.Error())
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `UPDATE diet_plans SET title = ?, description = ?, meals = ?, restrictions = ?, recommendations = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Description, meals, p.Restrictions, p.Recommendations, fmtTime(p.UpdatedAt), p.ID)
	if err != nil {
		return false, s.wrap("update diet plan", err)
	}
	n, err := res.RowsAffected()
	return n > 0, s.wrap("update diet plan", err)
}

func (s *SQLiteStore) ListDietPlans(ctx context.Context, patientID string) ([]*services.DietPlan, error) {
	return s.listDietPlans(ctx, `WHERE patient_id = ?`, patientID)
}

func (s *SQLiteStore) listDietPlans(ctx context.Context, where string, args ...any) ([]*services.DietPlan, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT `+dietColumns+` FROM diet_plans `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, s.wrap("list diet plans", err)
	}
	defer rows.Close()
	out := []*services.DietPlan{}
	for rows.Next() {
		p, err := scanDietPlan(rows)
		if err != nil {
			return nil, s.wrap("scan diet plan", err)
		}
		out = append(out, p)
	}
	return out, s.wrap("list diet plans", rows.Err())
}

// --- progress ---

const progressColumns = `id, patient_id, weight, mood, pain_level, notes, completed_exercises, followed_diet, created_at`

func scanProgress(row scanner) (*services.ProgressUpdate, error) {
	var u services.ProgressUpdate
	var created string
	if err := row.Scan(&u.ID, &u.PatientID, &u.Weight, &u.Mood, &u.PainLevel, &u.Notes, &u.CompletedExercises, &u.FollowedDiet, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (s *SQLiteStore) AddProgressUpdate(ctx context.Context, u *services.ProgressUpdate) error {
	if u == nil {
		return services.NewInvalidError("progress update required")
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO progress_updates (`+progressColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.PatientID, u.Weight, u.Mood, u.PainLevel, u.Notes, u.CompletedExercises, u.FollowedDiet, fmtTime(u.CreatedAt))
	return s.wrap("add progress", err)
}

func (s *SQLiteStore) ListProgressUpdates(ctx context.Context, patientID string) ([]*services.ProgressUpdate, error) {
	return s.listProgress(ctx, `WHERE patient_id = ?`, patientID)
}

func (s *SQLiteStore) listProgress(ctx context.Context, where string, args ...any) ([]*services.ProgressUpdate, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT `+progressColumns+` FROM progress_updates `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, s.wrap("list progress", err)
	}
	defer rows.Close()
	out := []*services.ProgressUpdate{}
	for rows.Next() {
		u, err := scanProgress(rows)
		if err != nil {
			return nil, s.wrap("scan progress", err)
		}
		out = append(out, u)
	}
	return out, s.wrap("list progress", rows.Err())
}

// --- sessions ---

func (s *SQLiteStore) AddSession(ctx context.Context, rec *services.SessionRecord) error {
	if rec == nil {
		return services.NewInvalidError("session required")
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (id, identity_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.IdentityID, fmtTime(rec.CreatedAt), fmtTime(rec.ExpiresAt))
	return s.wrap("add session", err)
}

func scanSession(row scanner) (*services.SessionRecord, error) {
	var rec services.SessionRecord
	var created, expires string
	if err := row.Scan(&rec.ID, &rec.IdentityID, &created, &expires); err != nil {
		return nil, err
	}
	rec.CreatedAt = parseTime(created)
	rec.ExpiresAt = parseTime(expires)
	return &rec, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*services.SessionRecord, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rec, err := scanSession(s.db.QueryRowContext(ctx, `SELECT id, identity_id, created_at, expires_at FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get session", err)
	}
	return rec, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.deleteByID(ctx, "delete session", `DELETE FROM sessions WHERE id = ?`, id)
}

func (s *SQLiteStore) listSessions(ctx context.Context) ([]*services.SessionRecord, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT id, identity_id, created_at, expires_at FROM sessions ORDER BY rowid`)
	if err != nil {
		return nil, s.wrap("list sessions", err)
	}
	defer rows.Close()
	out := []*services.SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, s.wrap("scan session", err)
		}
		out = append(out, rec)
	}
	return out, s.wrap("list sessions", rows.Err())
}

// --- audit ---

func (s *SQLiteStore) AddAudit(e services.AuditEntry) {
	ctx, cancel := s.opCtx(context.Background())
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit (time, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		fmtTime(e.Time), e.Actor, e.Action, e.Target, e.Note)
	s.logErr("add audit", err)
}

func (s *SQLiteStore) ListAudit(ctx context.Context) ([]services.AuditEntry, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT time, actor, action, target, note FROM audit ORDER BY seq`)
	if err != nil {
		return nil, s.wrap("list audit", err)
	}
	defer rows.Close()
	out := []services.AuditEntry{}
	for rows.Next() {
		var e services.AuditEntry
		var at string
		if err := rows.Scan(&at, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			return nil, s.wrap("scan audit", err)
		}
		e.Time = parseTime(at)
		out = append(out, e)
	}
	return out, s.wrap("list audit", rows.Err())
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (*api.Snapshot, error) {
	var snap api.Snapshot
	var err error
	if snap.Users, err = s.ListUsers(ctx); err != nil {
		return nil, err
	}
	if snap.ExercisePlans, err = s.listExercisePlans(ctx, ""); err != nil {
		return nil, err
	}
	if snap.DietPlans, err = s.listDietPlans(ctx, ""); err != nil {
		return nil, err
	}
	if snap.ProgressUpdates, err = s.listProgress(ctx, ""); err != nil {
		return nil, err
	}
	if snap.Sessions, err = s.listSessions(ctx); err != nil {
		return nil, err
	}
	if snap.Audit, err = s.ListAudit(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
