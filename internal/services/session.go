package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds the authenticated identity for one login. It is discarded
// on logout and never shared across logins.
type Session struct {
	mu        sync.RWMutex
	id        string
	identity  *Identity
	expiresAt time.Time
}

func NewSession(id string, identity *Identity, expiresAt time.Time) *Session {
	return &Session{id: id, identity: identity.Clone(), expiresAt: expiresAt}
}

func (s *Session) ID() string { return s.id }

func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// CurrentIdentity returns the session's identity, or false after End.
func (s *Session) CurrentIdentity() (*Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, false
	}
	return s.identity.Clone(), true
}

func (s *Session) Actor() (Actor, error) {
	id, ok := s.CurrentIdentity()
	if !ok {
		return Actor{}, NewUnauthorizedError("not signed in")
	}
	return ActorOf(id), nil
}

func (s *Session) End() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
}

type SessionStore interface {
	IdentityReader
	AddSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
}

type TokenSigner func(sessionID, identityID string, role Role, ttl time.Duration) (string, error)

// TokenVerifier checks a token's signature and expiry and returns the
// session id it was issued for.
type TokenVerifier func(token string) (string, error)

type SessionService struct {
	store  SessionStore
	sign   TokenSigner
	verify TokenVerifier
	now    func() time.Time
	idGen  func() string
	ttl    time.Duration
}

func NewSessionService(store SessionStore, signer TokenSigner, verifier TokenVerifier, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionService{
		store:  store,
		sign:   signer,
		verify: verifier,
		now:    utcNow,
		idGen:  uuid.NewString,
		ttl:    ttl,
	}
}

func (s *SessionService) TTL() time.Duration { return s.ttl }

// Begin opens a session for identity and returns its bearer token.
func (s *SessionService) Begin(ctx context.Context, identity *Identity) (string, *Session, error) {
	if identity == nil {
		return "", nil, NewInvalidError("identity required")
	}
	if s.sign == nil {
		return "", nil, NewInvalidError("token signer not configured")
	}
	now := s.now()
	rec := &SessionRecord{ID: s.idGen(), IdentityID: identity.ID, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	token, err := s.sign(rec.ID, identity.ID, identity.Role, s.ttl)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.AddSession(ctx, rec); err != nil {
		return "", nil, err
	}
	return token, NewSession(rec.ID, identity, rec.ExpiresAt), nil
}

// Resolve turns a bearer token back into a live session. The identity is
// re-read so that removed identities lose access immediately.
func (s *SessionService) Resolve(ctx context.Context, token string) (*Session, error) {
	rec, err := s.record(ctx, token)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(rec.ExpiresAt) {
		return nil, NewUnauthorizedError("session expired")
	}
	identity, err := s.store.GetIdentity(ctx, rec.IdentityID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, NewUnauthorizedError("identity removed")
	}
	return NewSession(rec.ID, identity, rec.ExpiresAt), nil
}

// End closes the session behind token. Ending an already closed session is
// not an error.
func (s *SessionService) End(ctx context.Context, token string) error {
	rec, err := s.record(ctx, token)
	if err != nil {
		if IsCode(err, ErrorUnauthorized) {
			return nil
		}
		return err
	}
	_, err = s.store.DeleteSession(ctx, rec.ID)
	return err
}

func (s *SessionService) record(ctx context.Context, token string) (*SessionRecord, error) {
	token = strings.TrimSpace(token)
	if token == "" || s.verify == nil {
		return nil, NewUnauthorizedError("not signed in")
	}
	sid, err := s.verify(token)
	if err != nil {
		return nil, NewUnauthorizedError("invalid token")
	}
	rec, err := s.store.GetSession(ctx, sid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewUnauthorizedError("session ended")
	}
	return rec, nil
}
