package harvest

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
)

// publicRunner marks every record public with valid media, except ids
// listed in broken.
type publicRunner struct {
	broken map[string]bool
	seen   []string
}

func (r *publicRunner) Fetch(ctx context.Context, rec models.PostRecord) models.MediaValidationResult {
	r.seen = append(r.seen, rec.ID)
	if r.broken[rec.ID] {
		return models.MediaValidationResult{RecordID: rec.ID}
	}
	return models.MediaValidationResult{
		RecordID:   rec.ID,
		IsPublic:   true,
		Determined: true,
		MediaValid: true,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return rows
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestProcessPartition(t *testing.T) {
	st := newTestStore(t)
	if err := st.MergeDay("20240101", []models.PostRecord{
		recordAt("a", jan1),
		recordAt("b", jan1),
		recordAt("c", jan1),
	}); err != nil {
		t.Fatalf("seeding partition: %v", err)
	}

	processedDir := t.TempDir()
	runner := &publicRunner{broken: map[string]bool{"b": true}}
	batch, err := NewBatchProcessor(st, runner, processedDir, 2, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("creating batch processor: %v", err)
	}

	if err := batch.ProcessPartition(context.Background(), "2024-01-01"); err != nil {
		t.Fatalf("ProcessPartition() error: %v", err)
	}

	if len(runner.seen) != 3 {
		t.Errorf("runner saw %d records, want 3", len(runner.seen))
	}

	rows := readCSV(t, filepath.Join(processedDir, "metadata_2024-01-01_processed.csv"))
	if len(rows) != 4 {
		t.Fatalf("processed file has %d rows, want header plus 3", len(rows))
	}

	header := rows[0]
	idCol := column(header, "id")
	publicCol := column(header, "is_public")
	validCol := column(header, "mp4_is_valid")
	if idCol < 0 || publicCol < 0 || validCol < 0 {
		t.Fatalf("missing outcome columns in header %v", header)
	}

	outcomes := make(map[string][2]string)
	for _, row := range rows[1:] {
		outcomes[row[idCol]] = [2]string{row[publicCol], row[validCol]}
	}
	if outcomes["a"] != [2]string{"true", "true"} {
		t.Errorf("record a = %v, want public and valid", outcomes["a"])
	}
	if outcomes["b"] != [2]string{"false", "false"} {
		t.Errorf("record b = %v, want both false", outcomes["b"])
	}
	if outcomes["c"] != [2]string{"true", "true"} {
		t.Errorf("record c = %v, want public and valid", outcomes["c"])
	}
}

func TestProcessFileMissingInput(t *testing.T) {
	st := newTestStore(t)
	batch, err := NewBatchProcessor(st, &publicRunner{}, t.TempDir(), 1, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("creating batch processor: %v", err)
	}

	// A partition that never merged loads as empty and is not an error.
	if err := batch.ProcessPartition(context.Background(), "2099-12-31"); err != nil {
		t.Errorf("missing partition should be a no-op, got %v", err)
	}
}

func TestProcessFileStandaloneCSV(t *testing.T) {
	st := newTestStore(t)
	if err := st.MergeDay("20240101", []models.PostRecord{recordAt("a", jan1)}); err != nil {
		t.Fatalf("seeding partition: %v", err)
	}

	processedDir := t.TempDir()
	batch, err := NewBatchProcessor(st, &publicRunner{}, processedDir, 1, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("creating batch processor: %v", err)
	}

	// Any record CSV can be processed by path, not just partitions.
	if err := batch.ProcessFile(context.Background(), st.CombinedPath()); err != nil {
		t.Fatalf("ProcessFile() error: %v", err)
	}

	rows := readCSV(t, filepath.Join(processedDir, "combined_processed.csv"))
	if len(rows) != 2 {
		t.Errorf("processed file has %d rows, want header plus 1", len(rows))
	}
}
