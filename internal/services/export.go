package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
	"time"
)

var progressCSVHeader = []string{
	"id", "patient_id", "created_at", "weight", "mood", "pain_level",
	"completed_exercises", "followed_diet", "notes",
}

// SortMostRecentFirst orders updates by creation time, newest first.
func SortMostRecentFirst(updates []*ProgressUpdate) {
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].CreatedAt.After(updates[j].CreatedAt)
	})
}

// sanitizeCell keeps spreadsheet apps from evaluating patient text as a formula.
func sanitizeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

// ExportProgressCSV renders one row per update in the given order.
func ExportProgressCSV(updates []*ProgressUpdate) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	// UTF-8 BOM so spreadsheet tools pick the right encoding.
	buf.WriteString("\ufeff")
	if err := w.Write(progressCSVHeader); err != nil {
		return nil, err
	}
	for _, u := range updates {
		rec := []string{
			u.ID,
			u.PatientID,
			u.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(u.Weight, 'f', -1, 64),
			sanitizeCell(u.Mood),
			strconv.Itoa(u.PainLevel),
			sanitizeCell(u.CompletedExercises),
			sanitizeCell(u.FollowedDiet),
			sanitizeCell(u.Notes),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
