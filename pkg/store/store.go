package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
)

// Store owns the on-disk partition and combined-dataset state. One file
// per calendar date named metadata_<date>.csv, plus a single combined
// file. No two merges run concurrently; the orchestrator serializes.
type Store struct {
	metadataDir  string
	combinedPath string
	logger       logger.Logger
}

// NewStore creates a partitioned store rooted at metadataDir.
func NewStore(metadataDir, combinedPath string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(metadataDir, 0755); err != nil {
		return nil, errs.NewIOError(fmt.Sprintf("failed to create metadata directory: %v", err))
	}
	if dir := filepath.Dir(combinedPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.NewIOError(fmt.Sprintf("failed to create combined dataset directory: %v", err))
		}
	}

	return &Store{
		metadataDir:  metadataDir,
		combinedPath: combinedPath,
		logger:       log,
	}, nil
}

// PartitionPath returns the file backing one date partition.
func (s *Store) PartitionPath(dateString string) string {
	return filepath.Join(s.metadataDir, fmt.Sprintf("metadata_%s.csv", dateString))
}

// CombinedPath returns the combined dataset file.
func (s *Store) CombinedPath() string {
	return s.combinedPath
}

// MergeDay merges a day's freshly fetched records into the per-date
// partitions and the combined dataset. Records partition by their derived
// utc_date_string, not by the query date. Previously persisted rows win
// over fresh ones for the same id, so the merge is idempotent and a later
// fetch returning transient or incomplete fields cannot clobber data.
func (s *Store) MergeDay(queryDate string, newRecords []models.PostRecord) error {
	if len(newRecords) == 0 {
		s.logger.DebugWithFields("nothing to merge", map[string]interface{}{
			"query_date": queryDate,
		})
		return nil
	}

	byDate := make(map[string][]models.PostRecord)
	var dateOrder []string
	for _, rec := range newRecords {
		key := rec.UTC.DateString
		if _, seen := byDate[key]; !seen {
			dateOrder = append(dateOrder, key)
		}
		byDate[key] = append(byDate[key], rec)
	}

	for _, date := range dateOrder {
		if err := s.mergePartition(date, byDate[date]); err != nil {
			return err
		}
	}

	if err := s.mergeCombined(newRecords); err != nil {
		return err
	}

	s.logger.InfoWithFields("day merged", map[string]interface{}{
		"query_date": queryDate,
		"records":    len(newRecords),
		"partitions": len(byDate),
	})
	return nil
}

// mergePartition loads one date partition if present, appends the new
// records, dedups keep-first and writes the result back atomically.
func (s *Store) mergePartition(dateString string, records []models.PostRecord) error {
	path := s.PartitionPath(dateString)

	existing, err := readRecordsCSV(path)
	if err != nil {
		return err
	}

	merged := mergeKeepFirst(existing, records)
	return writeRecordsCSV(path, merged)
}

// mergeCombined folds the day's records into the combined dataset.
// The combined file is a materialized view; it can always be rebuilt
// from the partitions.
func (s *Store) mergeCombined(records []models.PostRecord) error {
	existing, err := readRecordsCSV(s.combinedPath)
	if err != nil {
		return err
	}

	merged := mergeKeepFirst(existing, records)

	s.logger.InfoWithFields("combined dataset updated", map[string]interface{}{
		"total_records": len(merged),
	})
	return writeRecordsCSV(s.combinedPath, merged)
}

// Rebuild regenerates the combined dataset from every partition on disk.
func (s *Store) Rebuild() error {
	entries, err := os.ReadDir(s.metadataDir)
	if err != nil {
		return errs.NewIOError(fmt.Sprintf("failed to read metadata directory: %v", err))
	}

	var all []models.PostRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".csv" {
			continue
		}
		if len(name) < len("metadata_") || name[:len("metadata_")] != "metadata_" {
			continue
		}
		records, err := readRecordsCSV(filepath.Join(s.metadataDir, name))
		if err != nil {
			return err
		}
		all = mergeKeepFirst(all, records)
	}

	return writeRecordsCSV(s.combinedPath, all)
}

// LoadPartition returns the persisted records for one date.
func (s *Store) LoadPartition(dateString string) ([]models.PostRecord, error) {
	return readRecordsCSV(s.PartitionPath(dateString))
}

// LoadCombined returns the combined dataset.
func (s *Store) LoadCombined() ([]models.PostRecord, error) {
	return readRecordsCSV(s.combinedPath)
}

// DumpRawPages writes the raw API payloads for a date window alongside
// the partitions, for later reprocessing.
func (s *Store) DumpRawPages(startDate, endDate string, videos []map[string]interface{}) error {
	if len(videos) == 0 {
		return nil
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"videos": videos,
		},
	}
	data, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		return errs.NewIOError(fmt.Sprintf("failed to encode raw page dump: %v", err))
	}

	path := filepath.Join(s.metadataDir, fmt.Sprintf("%s_%s_metadata.json", startDate, endDate))
	return atomicWrite(path, data)
}

// mergeKeepFirst concatenates existing then incoming records and drops
// every later occurrence of an already seen id, preserving order.
func mergeKeepFirst(existing, incoming []models.PostRecord) []models.PostRecord {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]models.PostRecord, 0, len(existing)+len(incoming))

	for _, rec := range existing {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		merged = append(merged, rec)
	}
	for _, rec := range incoming {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		merged = append(merged, rec)
	}

	return merged
}

// atomicWrite writes data through a temp file and renames it into place,
// so a crash mid-write cannot corrupt the prior state.
func atomicWrite(path string, data []byte) error {
	tempFile := path + ".tmp"

	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return errs.NewIOError(fmt.Sprintf("failed to write %s: %v", tempFile, err))
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return errs.NewIOError(fmt.Sprintf("failed to rename %s: %v", tempFile, err))
	}

	return nil
}
