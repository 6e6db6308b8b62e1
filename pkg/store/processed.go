package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/models"
)

// processedColumns are appended after the record columns in batch
// outputs. is_public reflects the visibility probe; mp4_is_valid is
// whether a structurally valid container landed on disk.
var processedColumns = []string{"is_public", "mp4_is_valid"}

// LoadRecords reads any record CSV, partition or otherwise. A missing
// file yields an empty set.
func LoadRecords(path string) ([]models.PostRecord, error) {
	return readRecordsCSV(path)
}

// WriteProcessed writes a batch output: every input record in order,
// annotated with its media validation outcome. Records with no result
// entry are written as not public and not valid.
func WriteProcessed(path string, records []models.PostRecord, results map[string]models.MediaValidationResult) error {
	extraSet := make(map[string]bool)
	for _, rec := range records {
		for key := range rec.Raw {
			if !canonicalSet[key] {
				extraSet[key] = true
			}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for key := range extraSet {
		extras = append(extras, key)
	}
	sort.Strings(extras)

	header := append(append([]string{}, canonicalColumns...), extras...)
	header = append(header, processedColumns...)

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return errs.NewIOError(fmt.Sprintf("failed to write header for %s: %v", path, err))
	}

	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row,
			rec.ID,
			rec.Username,
			strconv.FormatInt(rec.CreateTime, 10),
			rec.URL,
			strconv.Itoa(rec.UTC.Year),
			strconv.Itoa(rec.UTC.Month),
			strconv.Itoa(rec.UTC.Day),
			strconv.Itoa(rec.UTC.Hour),
			strconv.Itoa(rec.UTC.Minute),
			strconv.Itoa(rec.UTC.Second),
			rec.UTC.DateString,
			rec.UTC.TimeString,
		)
		for _, col := range extras {
			row = append(row, rec.Raw[col])
		}

		result := results[rec.ID]
		row = append(row,
			strconv.FormatBool(result.IsPublic),
			strconv.FormatBool(result.MediaValid),
		)
		if err := writer.Write(row); err != nil {
			return errs.NewIOError(fmt.Sprintf("failed to write row for %s: %v", path, err))
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errs.NewIOError(fmt.Sprintf("failed to flush %s: %v", path, err))
	}

	return atomicWrite(path, buf.Bytes())
}
