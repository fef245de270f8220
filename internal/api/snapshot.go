package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soaringjerry/Vitals/internal/services"
)

// Snapshot is the JSON document form of a whole store.
type Snapshot struct {
	Users           []*services.Identity       `json:"users"`
	ExercisePlans   []*services.ExercisePlan   `json:"exercisePlans"`
	DietPlans       []*services.DietPlan       `json:"dietPlans"`
	ProgressUpdates []*services.ProgressUpdate `json:"progressUpdates"`
	Sessions        []*services.SessionRecord  `json:"sessions,omitempty"`
	Audit           []services.AuditEntry      `json:"audit,omitempty"`
}

// LoadSnapshot reads a snapshot file. A missing file yields nil, nil.
func LoadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// WriteSnapshot writes snap to path through a temp file and rename.
func WriteSnapshot(path string, snap *Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Restore copies snap into dst, which must hold no users yet.
func Restore(ctx context.Context, dst Store, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	existing, err := dst.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return services.NewConflictError("target store already has data")
	}
	for _, u := range snap.Users {
		if err := dst.AddUser(ctx, u); err != nil {
			return fmt.Errorf("restore user %s: %w", u.ID, err)
		}
	}
	for _, p := range snap.ExercisePlans {
		if err := dst.AddExercisePlan(ctx, p); err != nil {
			return fmt.Errorf("restore exercise plan %s: %w", p.ID, err)
		}
	}
	for _, p := range snap.DietPlans {
		if err := dst.AddDietPlan(ctx, p); err != nil {
			return fmt.Errorf("restore diet plan %s: %w", p.ID, err)
		}
	}
	for _, u := range snap.ProgressUpdates {
		if err := dst.AddProgressUpdate(ctx, u); err != nil {
			return fmt.Errorf("restore progress %s: %w", u.ID, err)
		}
	}
	for _, rec := range snap.Sessions {
		if err := dst.AddSession(ctx, rec); err != nil {
			return fmt.Errorf("restore session %s: %w", rec.ID, err)
		}
	}
	for _, e := range snap.Audit {
		dst.AddAudit(e)
	}
	return nil
}
