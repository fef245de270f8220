package api

import (
	"context"

	"github.com/soaringjerry/Vitals/internal/services"
)

type identityStoreAdapter struct {
	store Store
}

func newIdentityStoreAdapter(store Store) *identityStoreAdapter {
	return &identityStoreAdapter{store: store}
}

func (a *identityStoreAdapter) GetIdentity(ctx context.Context, id string) (*services.Identity, error) {
	return withRetry(ctx, "get user", func(ctx context.Context) (*services.Identity, error) {
		return a.store.GetUser(ctx, id)
	})
}

func (a *identityStoreAdapter) FindIdentityByEmail(ctx context.Context, email string) (*services.Identity, error) {
	return withRetry(ctx, "find user", func(ctx context.Context) (*services.Identity, error) {
		return a.store.FindUserByEmail(ctx, email)
	})
}

func (a *identityStoreAdapter) ListIdentities(ctx context.Context) ([]*services.Identity, error) {
	return withRetry(ctx, "list users", a.store.ListUsers)
}

func (a *identityStoreAdapter) AddIdentity(ctx context.Context, i *services.Identity) error {
	if i == nil {
		return services.NewInvalidError("identity required")
	}
	return retryErr(ctx, "add user", func(ctx context.Context) error {
		return a.store.AddUser(ctx, i)
	})
}

func (a *identityStoreAdapter) DeleteIdentity(ctx context.Context, id string) (bool, error) {
	return withRetry(ctx, "delete user", func(ctx context.Context) (bool, error) {
		return a.store.DeleteUser(ctx, id)
	})
}

func (a *identityStoreAdapter) SeedIdentities(ctx context.Context, seeds []*services.Identity) (bool, error) {
	return withRetry(ctx, "seed users", func(ctx context.Context) (bool, error) {
		return a.store.SeedUsers(ctx, seeds)
	})
}

func (a *identityStoreAdapter) AddSession(ctx context.Context, rec *services.SessionRecord) error {
	return retryErr(ctx, "add session", func(ctx context.Context) error {
		return a.store.AddSession(ctx, rec)
	})
}

func (a *identityStoreAdapter) GetSession(ctx context.Context, id string) (*services.SessionRecord, error) {
	return withRetry(ctx, "get session", func(ctx context.Context) (*services.SessionRecord, error) {
		return a.store.GetSession(ctx, id)
	})
}

func (a *identityStoreAdapter) DeleteSession(ctx context.Context, id string) (bool, error) {
	return withRetry(ctx, "delete session", func(ctx context.Context) (bool, error) {
		return a.store.DeleteSession(ctx, id)
	})
}

func (a *identityStoreAdapter) AddAudit(entry services.AuditEntry) {
	a.store.AddAudit(entry)
}

var (
	_ services.IdentityStore = (*identityStoreAdapter)(nil)
	_ services.SessionStore  = (*identityStoreAdapter)(nil)
)
