package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"ttharvest/pkg/models"
)

func TestWriteProcessed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata_2024-01-03_processed.csv")

	records := []models.PostRecord{testRecord("a", 3), testRecord("b", 3), testRecord("c", 3)}
	results := map[string]models.MediaValidationResult{
		"a": {RecordID: "a", IsPublic: true, Determined: true, MediaValid: true},
		"b": {RecordID: "b", IsPublic: false, Determined: true, MediaValid: false},
		// c has no result entry: written as not public, not valid.
	}

	if err := WriteProcessed(path, records, results); err != nil {
		t.Fatalf("WriteProcessed failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected header plus 3 rows, got %d", len(rows))
	}

	header := rows[0]
	publicIdx, validIdx := -1, -1
	idIdx := -1
	for i, col := range header {
		switch col {
		case "is_public":
			publicIdx = i
		case "mp4_is_valid":
			validIdx = i
		case "id":
			idIdx = i
		}
	}
	if publicIdx < 0 || validIdx < 0 {
		t.Fatalf("Expected is_public and mp4_is_valid columns, got %v", header)
	}
	if publicIdx != len(header)-2 || validIdx != len(header)-1 {
		t.Errorf("Expected outcome columns last, got header %v", header)
	}

	expect := map[string][2]string{
		"a": {"true", "true"},
		"b": {"false", "false"},
		"c": {"false", "false"},
	}
	for _, row := range rows[1:] {
		id := row[idIdx]
		want := expect[id]
		if row[publicIdx] != want[0] || row[validIdx] != want[1] {
			t.Errorf("Record %s: got (%s, %s), want (%s, %s)",
				id, row[publicIdx], row[validIdx], want[0], want[1])
		}
	}

	// Input row order is preserved.
	if rows[1][idIdx] != "a" || rows[2][idIdx] != "b" || rows[3][idIdx] != "c" {
		t.Error("Expected input row order to be preserved")
	}
}

func TestLoadRecordsMissingFile(t *testing.T) {
	records, err := LoadRecords(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if records != nil {
		t.Error("Expected nil records for missing file")
	}
}
