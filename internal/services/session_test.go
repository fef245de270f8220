package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fakeTokens() (TokenSigner, TokenVerifier) {
	sign := func(sid, uid string, role Role, ttl time.Duration) (string, error) {
		return "tok." + sid, nil
	}
	verify := func(token string) (string, error) {
		if !strings.HasPrefix(token, "tok.") {
			return "", errors.New("bad token")
		}
		return strings.TrimPrefix(token, "tok."), nil
	}
	return sign, verify
}

func newTestSessionService(store *stubIdentityStore) (*SessionService, *time.Time) {
	sign, verify := fakeTokens()
	svc := NewSessionService(store, sign, verify, time.Hour)
	clock := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	svc.idGen = func() string { return "s1" }
	return svc, &clock
}

func TestSessionLifecycle(t *testing.T) {
	store := newStubIdentityStore()
	p := store.put("p1", "p1@example.com", RolePatient)
	svc, _ := newTestSessionService(store)
	ctx := context.Background()

	token, sess, err := svc.Begin(ctx, p)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if token != "tok.s1" || sess.ID() != "s1" {
		t.Fatalf("unexpected session: %s %s", token, sess.ID())
	}
	cur, ok := sess.CurrentIdentity()
	if !ok || cur.ID != "p1" {
		t.Fatalf("current identity: %+v %v", cur, ok)
	}

	resolved, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	actor, err := resolved.Actor()
	if err != nil || actor.ID != "p1" || actor.Role != RolePatient {
		t.Fatalf("actor: %+v %v", actor, err)
	}

	if err := svc.End(ctx, token); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := svc.End(ctx, token); err != nil {
		t.Fatalf("second end should be a no-op: %v", err)
	}
	if _, err := svc.Resolve(ctx, token); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("resolve after end: expected unauthorized, got %v", err)
	}
}

func TestSessionEndClearsIdentity(t *testing.T) {
	s := NewSession("s1", &Identity{ID: "d1", Role: RoleDoctor}, time.Now().Add(time.Hour))
	s.End()
	if _, ok := s.CurrentIdentity(); ok {
		t.Fatalf("identity still present after End")
	}
	if _, err := s.Actor(); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("actor after End: expected unauthorized, got %v", err)
	}
}

func TestSessionResolveRejects(t *testing.T) {
	store := newStubIdentityStore()
	p := store.put("p1", "p1@example.com", RolePatient)
	svc, clock := newTestSessionService(store)
	ctx := context.Background()

	token, _, err := svc.Begin(ctx, p)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.Resolve(ctx, ""); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("empty token: expected unauthorized, got %v", err)
	}
	if _, err := svc.Resolve(ctx, "garbage"); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("bad token: expected unauthorized, got %v", err)
	}

	_, _ = store.DeleteIdentity(ctx, "p1")
	if _, err := svc.Resolve(ctx, token); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("removed identity: expected unauthorized, got %v", err)
	}

	store.put("p1", "p1@example.com", RolePatient)
	*clock = clock.Add(2 * time.Hour)
	if _, err := svc.Resolve(ctx, token); !IsCode(err, ErrorUnauthorized) {
		t.Fatalf("expired session: expected unauthorized, got %v", err)
	}
}

func TestSessionServiceDefaultTTL(t *testing.T) {
	svc := NewSessionService(newStubIdentityStore(), nil, nil, 0)
	if svc.TTL() != 12*time.Hour {
		t.Fatalf("default ttl = %v", svc.TTL())
	}
	if _, _, err := svc.Begin(context.Background(), &Identity{ID: "x"}); err == nil {
		t.Fatalf("begin without signer should fail")
	}
}
