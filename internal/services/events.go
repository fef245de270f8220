package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventIdentityRegistered = "identity.registered"
	EventIdentityRemoved    = "identity.removed"
	EventPlanCreated        = "plan.created"
	EventPlanUpdated        = "plan.updated"
	EventProgressSubmitted  = "progress.submitted"
)

// Event is a notification about a committed change.
type Event struct {
	Type      string    `json:"type"`
	Actor     string    `json:"actor"`
	Target    string    `json:"target"`
	PatientID string    `json:"patient_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// publish never fails the caller: the write it describes is already stored.
func publish(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Printf("services: publish %s for %s: %v", ev.Type, ev.Target, err)
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func utcNow() time.Time {
	// Postgres keeps microseconds; truncating keeps round trips exact.
	return time.Now().UTC().Truncate(time.Microsecond)
}
