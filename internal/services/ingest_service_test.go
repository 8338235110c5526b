package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hilbertp/hypermvp/internal/models"
	"gorm.io/gorm"
)

// stubExtractor serves canned payloads keyed by file path so ingest
// tests do not need real workbooks on disk.
type stubExtractor struct {
	payloads map[string][]TabularPayload
	errs     map[string]error
}

func (s *stubExtractor) ExtractPayloads(ctx context.Context, path string) ([]TabularPayload, error) {
	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	return s.payloads[path], nil
}

func newTestIngestService(t *testing.T, db *gorm.DB, xlsx WorkbookExtractor, logWriter LogWriter) *IngestService {
	t.Helper()

	afrr, err := NewAfrrService(newTestLogger())
	if err != nil {
		t.Fatalf("NewAfrrService: %v", err)
	}
	clean, err := NewCleanService([]string{"2006-01-02", "01/02/2006"}, newTestLogger())
	if err != nil {
		t.Fatalf("NewCleanService: %v", err)
	}
	service, err := NewIngestService(db, xlsx, afrr, clean, logWriter, newTestLogger())
	if err != nil {
		t.Fatalf("NewIngestService: %v", err)
	}
	return service
}

func bidPayload(sourceFile string, sheet string, rows [][]string) TabularPayload {
	return TabularPayload{
		SourceFile: sourceFile,
		Sheet:      sheet,
		Headers: []string{
			ColDeliveryDate, ColProduct, ColEnergyPrice,
			ColPaymentDirection, ColAllocatedCapacity, ColNote,
		},
		Rows: rows,
	}
}

func TestIngestProviderFilesCommitsBatch(t *testing.T) {
	db := openTestDB(t)
	logWriter := &stubLogWriter{}
	extractor := &stubExtractor{payloads: map[string][]TabularPayload{
		"/in/bids.xlsx": {
			bidPayload("bids.xlsx", "001", [][]string{
				{"2024-09-01", "NEG_001", "10,00", PaymentGridToProvider, "5", ""},
				{"2024-09-03", "NEG_002", "20,00", PaymentGridToProvider, "5", ""},
			}),
		},
	}}
	service := newTestIngestService(t, db, extractor, logWriter)

	summary, err := service.IngestProviderFiles(context.Background(), []string{"/in/bids.xlsx"}, nil)
	if err != nil {
		t.Fatalf("IngestProviderFiles: %v", err)
	}

	if summary.RowsImported != 2 {
		t.Fatalf("rows imported = %d, want 2", summary.RowsImported)
	}
	if !summary.MinDate.Equal(day(2024, 9, 1)) || !summary.MaxDate.Equal(day(2024, 9, 3)) {
		t.Fatalf("envelope = %s..%s", summary.MinDate, summary.MaxDate)
	}

	var count int64
	if err := db.Model(&models.Bid{}).Count(&count).Error; err != nil {
		t.Fatalf("count bids: %v", err)
	}
	if count != 2 {
		t.Fatalf("stored bids = %d, want 2", count)
	}

	var batch models.ImportBatch
	if err := db.First(&batch).Error; err != nil {
		t.Fatalf("load import batch: %v", err)
	}
	if batch.VersionID != 1 || batch.OperationType != OperationProviderImport {
		t.Fatalf("batch = %+v", batch)
	}
	if batch.SourceFiles != "bids.xlsx" || batch.RowCount != 2 {
		t.Fatalf("batch = %+v", batch)
	}

	last := logWriter.entries[len(logWriter.entries)-1]
	if last.action != LogActionProviderIngest || last.outcome != LogOutcomeSuccess {
		t.Fatalf("audit entry = %+v", last)
	}
}

func TestIngestProviderFilesReplacesEnvelope(t *testing.T) {
	db := openTestDB(t)

	// A row from an earlier delivery sits inside the new batch's date
	// envelope and one sits outside it.
	inside := testBid(day(2024, 9, 2), "NEG_010", 99, 5, "old.xlsx")
	outside := testBid(day(2024, 9, 10), "NEG_010", 99, 5, "old.xlsx")
	if err := db.Create([]*models.Bid{&inside, &outside}).Error; err != nil {
		t.Fatalf("seed bids: %v", err)
	}

	extractor := &stubExtractor{payloads: map[string][]TabularPayload{
		"/in/bids.xlsx": {
			bidPayload("bids.xlsx", "001", [][]string{
				{"2024-09-01", "NEG_001", "10,00", PaymentGridToProvider, "5", ""},
				{"2024-09-03", "NEG_001", "20,00", PaymentGridToProvider, "5", ""},
			}),
		},
	}}
	service := newTestIngestService(t, db, extractor, &stubLogWriter{})

	if _, err := service.IngestProviderFiles(context.Background(), []string{"/in/bids.xlsx"}, nil); err != nil {
		t.Fatalf("IngestProviderFiles: %v", err)
	}

	var survivors []models.Bid
	if err := db.Where("source_file = ?", "old.xlsx").Find(&survivors).Error; err != nil {
		t.Fatalf("load old bids: %v", err)
	}
	if len(survivors) != 1 {
		t.Fatalf("old rows remaining = %d, want 1", len(survivors))
	}
	if !survivors[0].DeliveryDate.Equal(day(2024, 9, 10)) {
		t.Fatalf("wrong survivor: %s", survivors[0].DeliveryDate)
	}
}

func TestIngestProviderFilesIdempotent(t *testing.T) {
	db := openTestDB(t)
	extractor := &stubExtractor{payloads: map[string][]TabularPayload{
		"/in/bids.xlsx": {
			bidPayload("bids.xlsx", "001", [][]string{
				{"2024-09-01", "NEG_001", "10,00", PaymentGridToProvider, "5", ""},
				{"2024-09-01", "NEG_002", "20,00", PaymentGridToProvider, "5", ""},
			}),
		},
	}}
	service := newTestIngestService(t, db, extractor, &stubLogWriter{})

	for run := 0; run < 2; run++ {
		if _, err := service.IngestProviderFiles(context.Background(), []string{"/in/bids.xlsx"}, nil); err != nil {
			t.Fatalf("IngestProviderFiles run %d: %v", run, err)
		}
	}

	var count int64
	if err := db.Model(&models.Bid{}).Count(&count).Error; err != nil {
		t.Fatalf("count bids: %v", err)
	}
	if count != 2 {
		t.Fatalf("stored bids = %d after two runs, want 2", count)
	}

	var batches []models.ImportBatch
	if err := db.Order("version_id").Find(&batches).Error; err != nil {
		t.Fatalf("load import batches: %v", err)
	}
	if len(batches) != 2 || batches[0].VersionID != 1 || batches[1].VersionID != 2 {
		t.Fatalf("batches = %+v", batches)
	}
}

func TestIngestProviderFilesAllOrNothing(t *testing.T) {
	db := openTestDB(t)
	logWriter := &stubLogWriter{}
	extractor := &stubExtractor{payloads: map[string][]TabularPayload{
		"/in/good.xlsx": {
			bidPayload("good.xlsx", "001", [][]string{
				{"2024-09-01", "NEG_001", "10,00", PaymentGridToProvider, "5", ""},
			}),
		},
		"/in/bad.xlsx": {
			{
				SourceFile: "bad.xlsx",
				Sheet:      "001",
				Headers:    []string{ColDeliveryDate, ColProduct},
				Rows:       [][]string{{"2024-09-01", "NEG_001"}},
			},
		},
	}}
	service := newTestIngestService(t, db, extractor, logWriter)

	_, err := service.IngestProviderFiles(context.Background(), []string{"/in/good.xlsx", "/in/bad.xlsx"}, nil)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Bid{}).Count(&count).Error; err != nil {
		t.Fatalf("count bids: %v", err)
	}
	if count != 0 {
		t.Fatalf("stored bids = %d, want 0 after aborted batch", count)
	}

	last := logWriter.entries[len(logWriter.entries)-1]
	if last.action != LogActionProviderIngest || last.outcome != LogOutcomeFail {
		t.Fatalf("audit entry = %+v", last)
	}
}

func TestIngestProviderFilesNoInput(t *testing.T) {
	db := openTestDB(t)
	service := newTestIngestService(t, db, &stubExtractor{}, &stubLogWriter{})

	_, err := service.IngestProviderFiles(context.Background(), nil, nil)
	if !errors.Is(err, ErrNoInputFiles) {
		t.Fatalf("err = %v, want ErrNoInputFiles", err)
	}
}

func writeActivationCSV(t *testing.T, dir string, name string, rows []string) string {
	t.Helper()

	content := "Datum;von;bis;50Hertz (Negativ)\n"
	for _, row := range rows {
		content += row + "\n"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestActivationFilesCommitsBatch(t *testing.T) {
	db := openTestDB(t)
	service := newTestIngestService(t, db, &stubExtractor{}, &stubLogWriter{})
	dir := t.TempDir()

	path := writeActivationCSV(t, dir, "afrr.csv", []string{
		"01.09.2024;00:00;00:15;7,5",
		"01.09.2024;00:15;00:30;0",
		"02.09.2024;00:00;00:15;3",
	})

	summary, err := service.IngestActivationFiles(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("IngestActivationFiles: %v", err)
	}

	if summary.RowsImported != 3 {
		t.Fatalf("rows imported = %d, want 3", summary.RowsImported)
	}
	if !summary.MinDate.Equal(day(2024, 9, 1)) || !summary.MaxDate.Equal(day(2024, 9, 2)) {
		t.Fatalf("envelope = %s..%s", summary.MinDate, summary.MaxDate)
	}

	var intervals []models.ActivationInterval
	if err := db.Order("date, quarter_hour_index").Find(&intervals).Error; err != nil {
		t.Fatalf("load intervals: %v", err)
	}
	if len(intervals) != 3 {
		t.Fatalf("stored intervals = %d, want 3", len(intervals))
	}
	if intervals[0].QuarterHourIndex != 1 || intervals[1].QuarterHourIndex != 2 {
		t.Fatalf("indices = %d, %d", intervals[0].QuarterHourIndex, intervals[1].QuarterHourIndex)
	}
	if intervals[0].ActivatedVolumeMW != 7.5 {
		t.Fatalf("volume = %v, want 7.5", intervals[0].ActivatedVolumeMW)
	}
}

func TestIngestActivationFilesReplacesEnvelope(t *testing.T) {
	db := openTestDB(t)
	service := newTestIngestService(t, db, &stubExtractor{}, &stubLogWriter{})
	dir := t.TempDir()

	first := writeActivationCSV(t, dir, "first.csv", []string{
		"01.09.2024;00:00;00:15;7,5",
	})
	if _, err := service.IngestActivationFiles(context.Background(), []string{first}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	second := writeActivationCSV(t, dir, "second.csv", []string{
		"01.09.2024;00:00;00:15;9",
	})
	if _, err := service.IngestActivationFiles(context.Background(), []string{second}, nil); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	var intervals []models.ActivationInterval
	if err := db.Find(&intervals).Error; err != nil {
		t.Fatalf("load intervals: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("stored intervals = %d, want 1", len(intervals))
	}
	if intervals[0].ActivatedVolumeMW != 9 || intervals[0].SourceFile != "second.csv" {
		t.Fatalf("interval = %+v", intervals[0])
	}
}

func TestIngestActivationFilesBadDateAborts(t *testing.T) {
	db := openTestDB(t)
	service := newTestIngestService(t, db, &stubExtractor{}, &stubLogWriter{})
	dir := t.TempDir()

	path := writeActivationCSV(t, dir, "afrr.csv", []string{
		"01.09.2024;00:00;00:15;7,5",
		"not-a-date;00:15;00:30;3",
	})

	_, err := service.IngestActivationFiles(context.Background(), []string{path}, nil)
	var dateErr *DateParseError
	if !errors.As(err, &dateErr) {
		t.Fatalf("expected DateParseError, got %v", err)
	}
	if dateErr.Value != "not-a-date" {
		t.Fatalf("offending value = %q", dateErr.Value)
	}

	var count int64
	if err := db.Model(&models.ActivationInterval{}).Count(&count).Error; err != nil {
		t.Fatalf("count intervals: %v", err)
	}
	if count != 0 {
		t.Fatalf("stored intervals = %d, want 0", count)
	}
}

func TestQuarterHourIndexMapping(t *testing.T) {
	cases := []struct {
		start string
		want  int
	}{
		{"00:00", 1},
		{"00:15", 2},
		{"12:00", 49},
		{"23:45", 96},
	}
	for _, tc := range cases {
		got, err := QuarterHourIndex(tc.start)
		if err != nil {
			t.Fatalf("QuarterHourIndex(%q): %v", tc.start, err)
		}
		if got != tc.want {
			t.Fatalf("QuarterHourIndex(%q) = %d, want %d", tc.start, got, tc.want)
		}
	}

	if _, err := QuarterHourIndex("00:07"); err == nil {
		t.Fatalf("expected error for off-boundary start")
	}
	if _, err := QuarterHourIndex("nope"); err == nil {
		t.Fatalf("expected error for unparsable start")
	}
}
