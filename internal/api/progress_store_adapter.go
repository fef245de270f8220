package api

import (
	"context"

	"github.com/soaringjerry/Vitals/internal/services"
)

type progressStoreAdapter struct {
	store Store
}

func newProgressStoreAdapter(store Store) services.ProgressStore {
	return &progressStoreAdapter{store: store}
}

func (a *progressStoreAdapter) InsertProgress(ctx context.Context, u *services.ProgressUpdate) error {
	return retryErr(ctx, "add progress", func(ctx context.Context) error {
		return a.store.AddProgressUpdate(ctx, u)
	})
}

func (a *progressStoreAdapter) ListProgress(ctx context.Context, patientID string) ([]*services.ProgressUpdate, error) {
	return withRetry(ctx, "list progress", func(ctx context.Context) ([]*services.ProgressUpdate, error) {
		return a.store.ListProgressUpdates(ctx, patientID)
	})
}

func (a *progressStoreAdapter) AddAudit(entry services.AuditEntry) { a.store.AddAudit(entry) }

var _ services.ProgressStore = (*progressStoreAdapter)(nil)
