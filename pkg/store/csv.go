package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/models"
)

// canonicalColumns are always present, in this order. Any other
// API-returned attribute becomes an extra column appended in sorted order.
var canonicalColumns = []string{
	"id",
	"username",
	"create_time",
	"tiktokurl",
	"utc_year",
	"utc_month",
	"utc_day",
	"utc_hour",
	"utc_minute",
	"utc_second",
	"utc_date_string",
	"utc_time_string",
}

var canonicalSet = func() map[string]bool {
	set := make(map[string]bool, len(canonicalColumns))
	for _, col := range canonicalColumns {
		set[col] = true
	}
	return set
}()

// readRecordsCSV loads a record file. A missing file yields an empty set.
func readRecordsCSV(path string) ([]models.PostRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.NewIOError(fmt.Sprintf("failed to read %s: %v", path, err))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errs.NewIOError(fmt.Sprintf("failed to parse %s: %v", path, err))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]models.PostRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, errs.NewIOError(fmt.Sprintf("malformed row in %s: %d columns, want %d", path, len(row), len(header)))
		}

		var rec models.PostRecord
		rec.Raw = make(map[string]string)
		for i, col := range header {
			value := row[i]
			switch col {
			case "id":
				rec.ID = value
			case "username":
				rec.Username = value
			case "create_time":
				rec.CreateTime, _ = strconv.ParseInt(value, 10, 64)
			case "tiktokurl",
				"utc_year", "utc_month", "utc_day",
				"utc_hour", "utc_minute", "utc_second",
				"utc_date_string", "utc_time_string":
				// Derived below from create_time.
			default:
				if value != "" {
					rec.Raw[col] = value
				}
			}
		}
		rec.Derive()
		records = append(records, rec)
	}

	return records, nil
}

// writeRecordsCSV persists records atomically with a stable column layout.
func writeRecordsCSV(path string, records []models.PostRecord) error {
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
