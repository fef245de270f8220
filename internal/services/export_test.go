package services

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"
)

func readCSV(b []byte) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(b), "\ufeff")))
	return r.ReadAll()
}

func TestExportProgressCSV(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := []*ProgressUpdate{
		{ID: "a", PatientID: "p1", Weight: 70.25, Mood: "ok", PainLevel: 3, Notes: "line1\nline2", CompletedExercises: "yes", FollowedDiet: "no", CreatedAt: at},
		{ID: "b", PatientID: "p1", Weight: 70, PainLevel: 10, CreatedAt: at.Add(time.Hour)},
	}
	b, err := ExportProgressCSV(rows)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(string(b), "\ufeff") {
		t.Fatalf("missing BOM")
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 1+len(rows) {
		t.Fatalf("want %d rows, got %d", 1+len(rows), len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "id,patient_id,created_at,weight,mood,pain_level,completed_exercises,followed_diet,notes" {
		t.Fatalf("bad header: %s", got)
	}
	if recs[1][2] != "2024-01-02T03:04:05Z" || recs[1][3] != "70.25" || recs[1][8] != "line1\nline2" {
		t.Fatalf("bad first row: %q", recs[1])
	}
	if recs[2][3] != "70" || recs[2][5] != "10" {
		t.Fatalf("bad second row: %q", recs[2])
	}
}

func TestExportProgressCSVNeutralisesFormulas(t *testing.T) {
	rows := []*ProgressUpdate{{
		ID:                 "a",
		PatientID:          "p1",
		PainLevel:          1,
		Mood:               "+1 great",
		CompletedExercises: "-all",
		FollowedDiet:       "@SUM(A1)",
		Notes:              `=HYPERLINK("http://evil","x")`,
	}, {
		ID:        "b",
		PatientID: "p1",
		PainLevel: 2,
		Mood:      "fine = ok",
		Notes:     "\tindented",
	}}
	b, err := ExportProgressCSV(rows)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := map[int]string{4: "'+1 great", 6: "'-all", 7: "'@SUM(A1)", 8: `'=HYPERLINK("http://evil","x")`}
	for col, v := range want {
		if recs[1][col] != v {
			t.Fatalf("column %d: got %q, want %q", col, recs[1][col], v)
		}
	}
	if recs[2][4] != "fine = ok" || recs[2][8] != "'\tindented" {
		t.Fatalf("unexpected second row: %q", recs[2])
	}
}

func TestSortMostRecentFirst(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []*ProgressUpdate{
		{ID: "old", CreatedAt: at},
		{ID: "new", CreatedAt: at.Add(2 * time.Hour)},
		{ID: "mid", CreatedAt: at.Add(time.Hour)},
	}
	SortMostRecentFirst(rows)
	if rows[0].ID != "new" || rows[1].ID != "mid" || rows[2].ID != "old" {
		t.Fatalf("unexpected order: %s %s %s", rows[0].ID, rows[1].ID, rows[2].ID)
	}
}
