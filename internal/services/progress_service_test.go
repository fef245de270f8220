package services

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestProgressService() (*ProgressService, *stubProgressStore, *recordingPublisher) {
	store := &stubProgressStore{}
	pub := &recordingPublisher{}
	svc := NewProgressService(store, pub)
	n := 0
	svc.idGen = func() string {
		n++
		return fmt.Sprintf("pr%d", n)
	}
	clock := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}
	return svc, store, pub
}

func TestSubmitProgressPainLevelBounds(t *testing.T) {
	svc, store, _ := newTestProgressService()
	ctx := context.Background()
	me := Actor{ID: "p1", Role: RolePatient}

	for _, pain := range []int{0, 11, -3} {
		_, err := svc.Submit(ctx, me, "p1", &ProgressUpdate{Weight: 70, PainLevel: pain})
		se, ok := AsServiceError(err)
		if !ok || se.Reason != ReasonPainLevelOutOfRange {
			t.Fatalf("pain %d: expected out of range, got %v", pain, err)
		}
	}
	if len(store.updates) != 0 {
		t.Fatalf("rejected submissions wrote %d updates", len(store.updates))
	}
	for _, pain := range []int{MinPainLevel, MaxPainLevel} {
		if _, err := svc.Submit(ctx, me, "p1", &ProgressUpdate{Weight: 70, PainLevel: pain}); err != nil {
			t.Fatalf("pain %d: %v", pain, err)
		}
	}
	if len(store.updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(store.updates))
	}
}

func TestSubmitProgressRejectsBadWeight(t *testing.T) {
	svc, store, _ := newTestProgressService()
	me := Actor{ID: "p1", Role: RolePatient}
	for _, w := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := svc.Submit(context.Background(), me, "p1", &ProgressUpdate{Weight: w, PainLevel: 3})
		if se, ok := AsServiceError(err); !ok || se.Reason != ReasonNegativeWeight {
			t.Fatalf("weight %v: expected rejection, got %v", w, err)
		}
	}
	if len(store.updates) != 0 {
		t.Fatalf("rejected submissions wrote %d updates", len(store.updates))
	}
}

func TestSubmitProgressOnlyForSelf(t *testing.T) {
	svc, store, _ := newTestProgressService()
	ctx := context.Background()
	cases := []Actor{
		{ID: "p2", Role: RolePatient},
		{ID: "d1", Role: RoleDoctor},
		{ID: "a1", Role: RoleAdmin},
	}
	for _, a := range cases {
		if _, err := svc.Submit(ctx, a, "p1", &ProgressUpdate{PainLevel: 2}); !IsCode(err, ErrorForbidden) {
			t.Fatalf("%s %s submitting for p1: expected forbidden, got %v", a.Role, a.ID, err)
		}
	}
	if len(store.updates) != 0 {
		t.Fatalf("forbidden submissions wrote %d updates", len(store.updates))
	}
}

func TestProgressRoundTripAndVisibility(t *testing.T) {
	svc, store, pub := newTestProgressService()
	ctx := context.Background()
	me := Actor{ID: "p1", Role: RolePatient}
	in := &ProgressUpdate{
		Weight:             72.5,
		Mood:               " good ",
		PainLevel:          4,
		Notes:              "knee better",
		CompletedExercises: "yes",
		FollowedDiet:       "mostly",
	}
	id, err := svc.Submit(ctx, me, "p1", in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, _ = svc.Submit(ctx, me, "p1", &ProgressUpdate{Weight: 72, PainLevel: 3})

	list, err := svc.ListForPatient(ctx, me, "p1")
	if err != nil || len(list) != 2 {
		t.Fatalf("own list: %d %v", len(list), err)
	}
	want := &ProgressUpdate{
		ID: id, PatientID: "p1", Weight: 72.5, Mood: "good", PainLevel: 4, Notes: "knee better",
		CompletedExercises: "yes", FollowedDiet: "mostly", CreatedAt: list[0].CreatedAt,
	}
	if !reflect.DeepEqual(list[0], want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", list[0], want)
	}
	if !list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Fatalf("list not in insertion order")
	}

	for _, a := range []Actor{{ID: "d1", Role: RoleDoctor}, {ID: "n1", Role: RoleNutritionist}, {ID: "t1", Role: RoleTrainer}, {ID: "a1", Role: RoleAdmin}} {
		got, err := svc.ListForPatient(ctx, a, "p1")
		if err != nil || len(got) != 2 {
			t.Fatalf("%s list: %d %v", a.Role, len(got), err)
		}
	}
	if _, err := svc.ListForPatient(ctx, Actor{ID: "p2", Role: RolePatient}, "p1"); !IsCode(err, ErrorForbidden) {
		t.Fatalf("other patient: expected forbidden, got %v", err)
	}
	if len(pub.events) != 2 || pub.events[0].Type != EventProgressSubmitted {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
	if store.audits[0].Action != "progress.submit" {
		t.Fatalf("unexpected audit: %+v", store.audits[0])
	}
}

func TestExportCSVMostRecentFirst(t *testing.T) {
	svc, _, _ := newTestProgressService()
	ctx := context.Background()
	me := Actor{ID: "p1", Role: RolePatient}
	first, _ := svc.Submit(ctx, me, "p1", &ProgressUpdate{Weight: 80, PainLevel: 5, Notes: "start"})
	second, _ := svc.Submit(ctx, me, "p1", &ProgressUpdate{Weight: 79.5, PainLevel: 4, Notes: "a, b"})

	out, err := svc.ExportCSV(ctx, Actor{ID: "d1", Role: RoleDoctor}, "p1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(out), "\ufeff")), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "id,patient_id,created_at") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], second+",") || !strings.HasPrefix(lines[2], first+",") {
		t.Fatalf("rows not most recent first: %q", lines[1:])
	}
	if !strings.HasSuffix(lines[1], `"a, b"`) {
		t.Fatalf("notes not quoted: %s", lines[1])
	}
	if _, err := svc.ExportCSV(ctx, Actor{ID: "p2", Role: RolePatient}, "p1"); !IsCode(err, ErrorForbidden) {
		t.Fatalf("other patient export: expected forbidden, got %v", err)
	}
}

func TestExportCSVIsForProviders(t *testing.T) {
	svc, _, _ := newTestProgressService()
	ctx := context.Background()
	me := Actor{ID: "p1", Role: RolePatient}
	if _, err := svc.Submit(ctx, me, "p1", &ProgressUpdate{PainLevel: 2}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.ExportCSV(ctx, me, "p1"); !IsCode(err, ErrorForbidden) {
		t.Fatalf("patient self export: expected forbidden, got %v", err)
	}
	for _, role := range []Role{RoleDoctor, RoleNutritionist, RoleTrainer, RoleAdmin} {
		if _, err := svc.ExportCSV(ctx, Actor{ID: "x", Role: role}, "p1"); err != nil {
			t.Fatalf("%s export: %v", role, err)
		}
	}
}
