package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soaringjerry/Vitals/internal/api"
	"github.com/soaringjerry/Vitals/internal/services"
)

const defaultTimeout = 5 * time.Second

// PGStore keeps every collection in Postgres through gorm.
type PGStore struct {
	db      *gorm.DB
	timeout time.Duration
}

var _ api.Store = (*PGStore)(nil)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log.New(os.Stdout, "pgstore: ", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, dsn string, timeout time.Duration) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := New(db, timeout)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB, timeout time.Duration) *PGStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &PGStore{db: db, timeout: timeout}
}

func (s *PGStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *PGStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PGStore) with(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// wrap maps gorm and driver errors onto service errors.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return services.NewConflictError(op + ": already exists")
		case "23514", "23502":
			return services.NewInvalidError(op + ": " + pgErr.Message)
		}
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return services.NewConflictError(op + ": already exists")
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return services.NewInvalidError(op + ": " + err.Error())
	}
	log.Printf("pgstore: %s: %v", op, err)
	return services.NewUnavailableError(op+" failed", err)
}

// take loads one row by id; a missing row is (false, nil).
func take[T any](db *gorm.DB, op string, row *T, id string) (bool, error) {
	err := db.Where("id = ?", id).Take(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrap(op, err)
	}
	return true, nil
}

// --- users ---

func (s *PGStore) AddUser(ctx context.Context, u *services.Identity) error {
	db, cancel := s.with(ctx)
	defer cancel()
	if !u.Role.Valid() {
		return services.NewInvalidError("add user: unknown role " + string(u.Role))
	}
	row := toUserRow(u)
	row.Email = strings.ToLower(row.Email)
	return wrap("add user", db.Create(&row).Error)
}

func (s *PGStore) GetUser(ctx context.Context, id string) (*services.Identity, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var row userRow
	ok, err := take(db, "get user", &row, id)
	if !ok || err != nil {
		return nil, err
	}
	return row.toIdentity(), nil
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (*services.Identity, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var row userRow
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find user", err)
	}
	return row.toIdentity(), nil
}

func (s *PGStore) ListUsers(ctx context.Context) ([]*services.Identity, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var rows []userRow
	if err := db.Order("seq").Find(&rows).Error; err != nil {
		return nil, wrap("list users", err)
	}
	out := make([]*services.Identity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toIdentity())
	}
	return out, nil
}

func (s *PGStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	res := db.Where("id = ?", id).Delete(&userRow{})
	if res.Error != nil {
		return false, wrap("delete user", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SeedUsers inserts seeds only into an empty users table. The table lock
// serialises concurrent seeders.
func (s *PGStore) SeedUsers(ctx context.Context, seeds []*services.Identity) (bool, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	inserted := false
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&userRow{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 || len(seeds) == 0 {
			return nil
		}
		rows := make([]userRow, 0, len(seeds))
		for _, u := range seeds {
			r := toUserRow(u)
			r.Email = strings.ToLower(r.Email)
			rows = append(rows, r)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, wrap("seed users", err)
	}
	return inserted, nil
}

// --- plans ---

func (s *PGStore) AddExercisePlan(ctx context.Context, p *services.ExercisePlan) error {
	db, cancel := s.with(ctx)
	defer cancel()
	row := toExerciseRow(p)
	return wrap("add exercise plan", db.Create(&row).Error)
}

func (s *PGStore) GetExercisePlan(ctx context.Context, id string) (*services.ExercisePlan, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var row exercisePlanRow
	ok, err := take(db, "get exercise plan", &row, id)
	if !ok || err != nil {
		return nil, err
	}
	return row.toPlan(), nil
}

func (s *PGStore) UpdateExercisePlan(ctx context.Context, p *services.ExercisePlan) (bool, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	row := toExerciseRow(p)
	res := db.Model(&exercisePlanRow{}).Where("id = ?", p.ID).
		Select("title", "description", "schedule", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return false, wrap("update exercise plan", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *PGStore) ListExercisePlans(ctx context.Context, patientID string) ([]*services.ExercisePlan, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var rows []exercisePlanRow
	if err := db.Where("patient_id = ?", patientID).Order("seq").Find(&rows).Error; err != nil {
		return nil, wrap("list exercise plans", err)
	}
	out := make([]*services.ExercisePlan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPlan())
	}
	return out, nil
}

func (s *PGStore) AddDietPlan(ctx context.Context, p *services.DietPlan) error {
	db, cancel := s.with(ctx)
	defer cancel()
	row := toDietRow(p)
	return wrap("add diet plan", db.Create(&row).Error)
}

func (s *PGStore) GetDietPlan(ctx context.Context, id string) (*services.DietPlan, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var row dietPlanRow
	ok, err := take(db, "get diet plan", &row, id)
	if !ok || err != nil {
		return nil, err
	}
	return row.toPlan(), nil
}

func (s *PGStore) UpdateDietPlan(ctx context.Context, p *services.DietPlan) (bool, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	row := toDietRow(p)
	res := db.Model(&dietPlanRow{}).Where("id = ?", p.ID).
		Select("title", "description", "meals", "restrictions", "recommendations", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return false, wrap("update diet plan", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *PGStore) ListDietPlans(ctx context.Context, patientID string) ([]*services.DietPlan, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var rows []dietPlanRow
	if err := db.Where("patient_id = ?", patientID).Order("seq").Find(&rows).Error; err != nil {
		return nil, wrap("list diet plans", err)
	}
	out := make([]*services.DietPlan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPlan())
	}
	return out, nil
}

// --- progress ---

func (s *PGStore) AddProgressUpdate(ctx context.Context, u *services.ProgressUpdate) error {
	db, cancel := s.with(ctx)
	defer cancel()
	row := toProgressRow(u)
	return wrap("add progress update", db.Create(&row).Error)
}

func (s *PGStore) ListProgressUpdates(ctx context.Context, patientID string) ([]*services.ProgressUpdate, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var rows []progressRow
	if err := db.Where("patient_id = ?", patientID).Order("seq").Find(&rows).Error; err != nil {
		return nil, wrap("list progress updates", err)
	}
	out := make([]*services.ProgressUpdate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toUpdate())
	}
	return out, nil
}

// --- sessions ---

func (s *PGStore) AddSession(ctx context.Context, rec *services.SessionRecord) error {
	db, cancel := s.with(ctx)
	defer cancel()
	row := toSessionRow(rec)
	return wrap("add session", db.Create(&row).Error)
}

func (s *PGStore) GetSession(ctx context.Context, id string) (*services.SessionRecord, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var row sessionRow
	ok, err := take(db, "get session", &row, id)
	if !ok || err != nil {
		return nil, err
	}
	return row.toRecord(), nil
}

func (s *PGStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	res := db.Where("id = ?", id).Delete(&sessionRow{})
	if res.Error != nil {
		return false, wrap("delete session", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// --- audit ---

func (s *PGStore) AddAudit(e services.AuditEntry) {
	db, cancel := s.with(context.Background())
	defer cancel()
	row := toAuditRow(e)
	if err := db.Create(&row).Error; err != nil {
		log.Printf("pgstore: add audit %s: %v", e.Action, err)
	}
}

func (s *PGStore) ListAudit(ctx context.Context) ([]services.AuditEntry, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var rows []auditRow
	if err := db.Order("seq").Find(&rows).Error; err != nil {
		return nil, wrap("list audit", err)
	}
	out := make([]services.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}

// Snapshot reads every collection inside one repeatable-read transaction.
func (s *PGStore) Snapshot(ctx context.Context) (*api.Snapshot, error) {
	db, cancel := s.with(ctx)
	defer cancel()
	var (
		users    []userRow
		exercise []exercisePlanRow
		diet     []dietPlanRow
		progress []progressRow
		sessions []sessionRow
		audit    []auditRow
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL REPEATABLE READ READ ONLY").Error; err != nil {
			return err
		}
		for _, dest := range []any{&users, &exercise, &diet, &progress, &sessions, &audit} {
			if err := tx.Order("seq").Find(dest).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap("snapshot", err)
	}
	snap := &api.Snapshot{}
	for _, r := range users {
		snap.Users = append(snap.Users, r.toIdentity())
	}
	for _, r := range exercise {
		snap.ExercisePlans = append(snap.ExercisePlans, r.toPlan())
	}
	for _, r := range diet {
		snap.DietPlans = append(snap.DietPlans, r.toPlan())
	}
	for _, r := range progress {
		snap.ProgressUpdates = append(snap.ProgressUpdates, r.toUpdate())
	}
	for _, r := range sessions {
		snap.Sessions = append(snap.Sessions, r.toRecord())
	}
	for _, r := range audit {
		snap.Audit = append(snap.Audit, r.toEntry())
	}
	return snap, nil
}
