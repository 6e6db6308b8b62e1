package harvest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ttharvest/pkg/checkpoint"
	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
	"ttharvest/pkg/store"
	"ttharvest/pkg/tiktok"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewStore(filepath.Join(dir, "metadata"), filepath.Join(dir, "combined.csv"), logger.NewTestLogger())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return st
}

func newTestCheckpoints(t *testing.T, startDate, endDate string) *checkpoint.Manager {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	manager, err := checkpoint.NewManager(startDate, endDate)
	if err != nil {
		t.Fatalf("creating checkpoint manager: %v", err)
	}
	return manager
}

func newOrchestratorWithStore(source *fakePageSource, st *store.Store, cp *checkpoint.Manager, batch BatchRunner) *Orchestrator {
	log := logger.NewTestLogger()
	ingestor := NewDayIngestor(source, nil, []string{"storm"}, nil, 100, log)
	return NewOrchestrator(ingestor, st, cp, batch, log)
}

func recordAt(id string, epoch int64) models.PostRecord {
	rec := models.PostRecord{
		ID:         id,
		Username:   "user_" + id,
		CreateTime: epoch,
		Raw:        map[string]string{"like_count": "42"},
	}
	rec.Derive()
	return rec
}

func pageOf(records ...models.PostRecord) *tiktok.Page {
	p := &tiktok.Page{HasMore: false}
	for _, rec := range records {
		p.Records = append(p.Records, rec)
		p.Raw = append(p.Raw, map[string]interface{}{"id": rec.ID})
	}
	return p
}

// epochs on distinct UTC days
const (
	jan1 int64 = 1704067200
	jan2 int64 = 1704153600
)

type fakeBatch struct {
	dates []string
	err   error
}

func (f *fakeBatch) ProcessPartition(ctx context.Context, dateString string) error {
	f.dates = append(f.dates, dateString)
	return f.err
}

func TestRunMergesEveryDay(t *testing.T) {
	source := &fakePageSource{
		pages: []*tiktok.Page{
			pageOf(recordAt("a", jan1), recordAt("b", jan1)),
			pageOf(recordAt("c", jan1)),
		},
	}
	st := newTestStore(t)
	orch := newOrchestratorWithStore(source, st, nil, nil)

	if err := orch.Run(context.Background(), "20240101", "20240102", false); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(source.requests) != 2 {
		t.Errorf("expected one page per day, got %d requests", len(source.requests))
	}

	// All three posts were created on 2024-01-01, so both query days
	// merged into the same partition.
	partition, err := st.LoadPartition("2024-01-01")
	if err != nil {
		t.Fatalf("loading partition: %v", err)
	}
	if len(partition) != 3 {
		t.Errorf("partition has %d records, want 3", len(partition))
	}

	combined, err := st.LoadCombined()
	if err != nil {
		t.Fatalf("loading combined: %v", err)
	}
	if len(combined) != 3 {
		t.Errorf("combined has %d records, want 3", len(combined))
	}
}

func TestRunRejectsBadDates(t *testing.T) {
	st := newTestStore(t)
	orch := newOrchestratorWithStore(&fakePageSource{}, st, nil, nil)

	if err := orch.Run(context.Background(), "2024-01-01", "20240102", false); err == nil {
		t.Error("malformed start date should fail")
	}
	if err := orch.Run(context.Background(), "20240102", "20240101", false); err == nil {
		t.Error("inverted range should fail")
	}
}

func TestRunSurfacesPartialDays(t *testing.T) {
	source := &fakePageSource{
		pages: []*tiktok.Page{nil, pageOf(recordAt("a", jan1))},
		errs:  []error{errs.NewPageFetchError("page fetch failed", 0), nil},
	}
	st := newTestStore(t)
	orch := newOrchestratorWithStore(source, st, nil, nil)

	err := orch.Run(context.Background(), "20240101", "20240102", false)
	if err == nil {
		t.Fatal("a partial day must surface as an error")
	}
	if !strings.Contains(err.Error(), "1 day(s) ended partial") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "20240101") {
		t.Errorf("error should name the partial day: %v", err)
	}

	// The second day still ran and merged.
	combined, _ := st.LoadCombined()
	if len(combined) != 1 {
		t.Errorf("combined has %d records, want 1 from the healthy day", len(combined))
	}
}

func TestRunAbortsOnAuthFailure(t *testing.T) {
	// No token means no day can succeed, so the run must stop at the
	// first failed exchange instead of replaying it for every date.
	source := &fakePageSource{
		pages: []*tiktok.Page{nil},
		errs:  []error{errs.NewAuthError("client credentials rejected", 401)},
	}
	st := newTestStore(t)
	orch := newOrchestratorWithStore(source, st, nil, nil)

	err := orch.Run(context.Background(), "20240101", "20240103", false)
	if err == nil {
		t.Fatal("a rejected credential pair must fail the run")
	}
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Type != errs.ErrorTypeAuth {
		t.Errorf("Run() = %v, want an auth error", err)
	}
	if len(source.requests) != 1 {
		t.Errorf("run issued %d fetches after the auth failure, want 1", len(source.requests))
	}
}

func TestRunQueriesThroughFollowingDay(t *testing.T) {
	source := &fakePageSource{
		pages: []*tiktok.Page{pageOf(recordAt("a", jan1))},
	}
	dir := t.TempDir()
	metadataDir := filepath.Join(dir, "metadata")
	st, err := store.NewStore(metadataDir, filepath.Join(dir, "combined.csv"), logger.NewTestLogger())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	orch := newOrchestratorWithStore(source, st, nil, nil)

	if err := orch.Run(context.Background(), "20240101", "20240101", false); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	req := source.requests[0]
	if req.StartDate != "20240101" || req.EndDate != "20240102" {
		t.Errorf("query window = %s..%s, want 20240101..20240102", req.StartDate, req.EndDate)
	}

	// The raw dump carries the same window in its name.
	dump := filepath.Join(metadataDir, "20240101_20240102_metadata.json")
	if _, err := os.Stat(dump); err != nil {
		t.Errorf("raw dump not written at %s: %v", dump, err)
	}
}

func TestRunResumeSkipsCompletedDays(t *testing.T) {
	cp := newTestCheckpoints(t, "20240101", "20240102")
	st := newTestStore(t)

	first := &fakePageSource{
		pages: []*tiktok.Page{
			pageOf(recordAt("a", jan1)),
			pageOf(recordAt("b", jan2)),
		},
	}
	if err := newOrchestratorWithStore(first, st, cp, nil).Run(context.Background(), "20240101", "20240102", false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Any fetch on the resumed run would hit the empty script and fail.
	second := &fakePageSource{}
	if err := newOrchestratorWithStore(second, st, cp, nil).Run(context.Background(), "20240101", "20240102", true); err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if len(second.requests) != 0 {
		t.Errorf("resume re-fetched %d completed days", len(second.requests))
	}
}

func TestRunResumeRetriesPartialDay(t *testing.T) {
	cp := newTestCheckpoints(t, "20240101", "20240102")
	st := newTestStore(t)

	first := &fakePageSource{
		pages: []*tiktok.Page{pageOf(recordAt("a", jan1)), nil},
		errs:  []error{nil, errs.NewPageFetchError("page fetch failed", 0)},
	}
	err := newOrchestratorWithStore(first, st, cp, nil).Run(context.Background(), "20240101", "20240102", false)
	if err == nil {
		t.Fatal("first run should report the partial day")
	}

	second := &fakePageSource{
		pages: []*tiktok.Page{pageOf(recordAt("b", jan2))},
	}
	if err := newOrchestratorWithStore(second, st, cp, nil).Run(context.Background(), "20240101", "20240102", true); err != nil {
		t.Fatalf("resumed run: %v", err)
	}

	if len(second.requests) != 1 {
		t.Fatalf("resume should retry only the partial day, got %d requests", len(second.requests))
	}
	if second.requests[0].StartDate != "20240102" {
		t.Errorf("resume retried %s, want 20240102", second.requests[0].StartDate)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakePageSource{}
	st := newTestStore(t)
	orch := newOrchestratorWithStore(source, st, nil, nil)

	err := orch.Run(ctx, "20240101", "20240102", false)
	if err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if len(source.requests) != 0 {
		t.Error("cancelled run should not fetch")
	}
}

func TestRunDayInvokesBatchPerPartition(t *testing.T) {
	// One query day whose records were created on two different days.
	source := &fakePageSource{
		pages: []*tiktok.Page{
			pageOf(recordAt("a", jan2), recordAt("b", jan1), recordAt("c", jan2)),
		},
	}
	st := newTestStore(t)
	batch := &fakeBatch{}
	orch := newOrchestratorWithStore(source, st, nil, batch)

	if err := orch.Run(context.Background(), "20240102", "20240102", false); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(batch.dates) != 2 {
		t.Fatalf("batch ran for %d partitions, want 2", len(batch.dates))
	}
	if batch.dates[0] != "2024-01-02" || batch.dates[1] != "2024-01-01" {
		t.Errorf("batch dates = %v, want first-seen order [2024-01-02 2024-01-01]", batch.dates)
	}
}

func TestRunBatchFailureDoesNotFailDay(t *testing.T) {
	source := &fakePageSource{
		pages: []*tiktok.Page{pageOf(recordAt("a", jan1))},
	}
	st := newTestStore(t)
	batch := &fakeBatch{err: errs.NewMediaError("browser unavailable")}
	orch := newOrchestratorWithStore(source, st, nil, batch)

	if err := orch.Run(context.Background(), "20240101", "20240101", false); err != nil {
		t.Errorf("a failed media phase must not fail the run: %v", err)
	}
	if len(batch.dates) != 1 {
		t.Errorf("batch should still have been invoked")
	}
}
