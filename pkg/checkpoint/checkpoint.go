package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"ttharvest/pkg/logger"
)

// Checkpoint records how far a collection run got through its date range,
// so an interrupted run can resume and partial days can be retried.
type Checkpoint struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	// CompletedDates are query dates whose ingestion and merge finished.
	CompletedDates map[string]bool `json:"completed_dates"`
	// PartialDates are query dates where a page permanently failed;
	// their already-fetched records were merged but the day should be
	// re-run.
	PartialDates map[string]bool `json:"partial_dates"`
	TotalRecords int             `json:"total_records"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager keyed by the run's date range.
func NewManager(startDate, endDate string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	checkpointPath := filepath.Join(checkpointsDir, fmt.Sprintf("%s_%s.checkpoint.json", startDate, endDate))

	return &Manager{
		checkpointPath: checkpointPath,
		logger:         logger.GetLogger(),
	}, nil
}

// Create creates a new checkpoint for a run
func (m *Manager) Create(startDate, endDate string) (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		StartDate:      startDate,
		EndDate:        endDate,
		CompletedDates: make(map[string]bool),
		PartialDates:   make(map[string]bool),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
		Version:        1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"start_date": startDate,
		"end_date":   endDate,
		"path":       m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.CompletedDates == nil {
		checkpoint.CompletedDates = make(map[string]bool)
	}
	if checkpoint.PartialDates == nil {
		checkpoint.PartialDates = make(map[string]bool)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"start_date":    checkpoint.StartDate,
		"end_date":      checkpoint.EndDate,
		"completed":     len(checkpoint.CompletedDates),
		"partial":       len(checkpoint.PartialDates),
		"total_records": checkpoint.TotalRecords,
		"updated_at":    checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// MarkDay records one query date's outcome and persists the checkpoint.
func (m *Manager) MarkDay(checkpoint *Checkpoint, date string, records int, partial bool) error {
	checkpoint.CompletedDates[date] = true
	if partial {
		checkpoint.PartialDates[date] = true
	} else {
		delete(checkpoint.PartialDates, date)
	}
	checkpoint.TotalRecords += records
	return m.Save(checkpoint)
}

// IsDayDone reports whether a query date already completed cleanly.
func (checkpoint *Checkpoint) IsDayDone(date string) bool {
	return checkpoint.CompletedDates[date] && !checkpoint.PartialDates[date]
}

// getDataDirectory returns the platform data directory for run state.
func getDataDirectory() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(home, "Library", "Application Support", "ttharvest")
	case "windows":
		baseDir = filepath.Join(os.Getenv("APPDATA"), "ttharvest")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			baseDir = filepath.Join(xdg, "ttharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(home, ".local", "share", "ttharvest")
		}
	}

	return baseDir, nil
}
