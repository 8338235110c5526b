package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const insertBatchSize = 500

var ErrNoInputFiles = errors.New("no input files")

// IngestService imports bid workbooks and activation CSVs with
// all-or-nothing date-range replacement. Bids are anonymized, so
// re-ingesting an overlapping range without first deleting it would
// double-count capacity and corrupt every downstream merit order.
type IngestService struct {
	mu         sync.Mutex
	db         *gorm.DB
	xlsx       WorkbookExtractor
	afrr       *AfrrService
	clean      *CleanService
	logService LogWriter
	log        *logrus.Logger
}

func NewIngestService(db *gorm.DB, xlsx WorkbookExtractor, afrr *AfrrService, clean *CleanService, logService LogWriter, log *logrus.Logger) (*IngestService, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if xlsx == nil {
		return nil, errors.New("xlsx service is nil")
	}
	if afrr == nil {
		return nil, errors.New("afrr service is nil")
	}
	if clean == nil {
		return nil, errors.New("clean service is nil")
	}
	if logService == nil {
		return nil, errors.New("log service is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}

	return &IngestService{
		db:         db,
		xlsx:       xlsx,
		afrr:       afrr,
		clean:      clean,
		logService: logService,
		log:        log,
	}, nil
}

// IngestProviderFiles runs the replacement protocol for a batch of bid
// workbooks: extract and validate everything first, then delete the
// covered [minDate, maxDate] envelope and insert the batch in a single
// transaction. Any validation failure anywhere aborts the whole batch
// with zero rows committed.
func (s *IngestService) IngestProviderFiles(ctx context.Context, paths []string, eventID *string) (IngestSummary, error) {
	if s == nil {
		return IngestSummary{}, errors.New("ingest service is nil")
	}

	// Batches must not interleave their delete and insert phases, so
	// the whole validate+replace span is single-writer in-process.
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(paths) == 0 {
		return IngestSummary{}, ErrNoInputFiles
	}

	loadTimestamp := time.Now().UTC()

	payloadsByFile, err := s.extractWorkbooks(ctx, paths)
	if err != nil {
		return s.failIngest(ctx, LogActionProviderIngest, eventID, err)
	}

	var bids []models.Bid
	var validationErrs []error
	sheetCount := 0
	for _, payloads := range payloadsByFile {
		for _, payload := range payloads {
			sheetCount++
			cleaned, err := s.clean.CleanProviderPayload(payload, loadTimestamp)
			if err != nil {
				validationErrs = append(validationErrs, err)
				continue
			}
			bids = append(bids, cleaned...)
		}
	}
	if len(validationErrs) > 0 {
		return s.failIngest(ctx, LogActionProviderIngest, eventID, errors.Join(validationErrs...))
	}
	if len(bids) == 0 {
		return s.failIngest(ctx, LogActionProviderIngest, eventID, errors.New("batch contains no usable bid rows"))
	}

	minDate, maxDate := bidDateRange(bids)
	sourceFiles := baseNames(paths)

	summary := IngestSummary{
		RowsImported: len(bids),
		FileCount:    len(paths),
		SheetCount:   sheetCount,
		MinDate:      minDate,
		MaxDate:      maxDate,
		SourceFiles:  sourceFiles,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s.warnEnvelopeOverlap(tx, minDate, maxDate, sourceFiles)

		if err := tx.Where("delivery_date >= ? AND delivery_date <= ?", minDate, maxDate).Delete(&models.Bid{}).Error; err != nil {
			return fmt.Errorf("delete bids in envelope: %w", err)
		}
		if err := tx.CreateInBatches(bids, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert bids: %w", err)
		}
		return appendImportBatch(tx, OperationProviderImport, sourceFiles, len(paths), len(bids), minDate, maxDate)
	})
	if err != nil {
		return s.failIngest(ctx, LogActionProviderIngest, eventID, fmt.Errorf("replace bid range: %w", err))
	}

	s.logIngestSuccess(ctx, LogActionProviderIngest, eventID, summary)
	return summary, nil
}

// IngestActivationFiles applies the same replacement protocol to the
// activation feed so re-delivered files stay idempotent.
func (s *IngestService) IngestActivationFiles(ctx context.Context, paths []string, eventID *string) (IngestSummary, error) {
	if s == nil {
		return IngestSummary{}, errors.New("ingest service is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(paths) == 0 {
		return IngestSummary{}, ErrNoInputFiles
	}

	loadTimestamp := time.Now().UTC()

	var intervals []models.ActivationInterval
	var validationErrs []error
	for _, path := range paths {
		payload, err := s.afrr.ExtractPayload(ctx, path)
		if err != nil {
			validationErrs = append(validationErrs, err)
			continue
		}
		cleaned, err := s.afrr.CleanActivationPayload(payload, loadTimestamp)
		if err != nil {
			validationErrs = append(validationErrs, err)
			continue
		}
		intervals = append(intervals, cleaned...)
	}
	if len(validationErrs) > 0 {
		return s.failIngest(ctx, LogActionAfrrIngest, eventID, errors.Join(validationErrs...))
	}
	if len(intervals) == 0 {
		return s.failIngest(ctx, LogActionAfrrIngest, eventID, errors.New("batch contains no activation rows"))
	}

	minDate, maxDate := intervalDateRange(intervals)
	sourceFiles := baseNames(paths)

	summary := IngestSummary{
		RowsImported: len(intervals),
		FileCount:    len(paths),
		SheetCount:   len(paths),
		MinDate:      minDate,
		MaxDate:      maxDate,
		SourceFiles:  sourceFiles,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date >= ? AND date <= ?", minDate, maxDate).Delete(&models.ActivationInterval{}).Error; err != nil {
			return fmt.Errorf("delete activation intervals in envelope: %w", err)
		}
		if err := tx.CreateInBatches(intervals, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert activation intervals: %w", err)
		}
		return appendImportBatch(tx, OperationAfrrImport, sourceFiles, len(paths), len(intervals), minDate, maxDate)
	})
	if err != nil {
		return s.failIngest(ctx, LogActionAfrrIngest, eventID, fmt.Errorf("replace activation range: %w", err))
	}

	s.logIngestSuccess(ctx, LogActionAfrrIngest, eventID, summary)
	return summary, nil
}

// extractWorkbooks reads all files of a batch concurrently. Extraction
// is pure per file, only the shared result slice is written, each
// goroutine to its own index.
func (s *IngestService) extractWorkbooks(ctx context.Context, paths []string) ([][]TabularPayload, error) {
	results := make([][]TabularPayload, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			results[i], errs[i] = s.xlsx.ExtractPayloads(ctx, path)
		}(i, path)
	}
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return nil, errors.Join(failed...)
	}

	return results, nil
}

// warnEnvelopeOverlap flags the documented over-deletion: the envelope
// delete also removes rows inside [minDate, maxDate] that came from
// files not part of this batch.
func (s *IngestService) warnEnvelopeOverlap(tx *gorm.DB, minDate time.Time, maxDate time.Time, sourceFiles []string) {
	var count int64
	err := tx.Model(&models.Bid{}).
		Where("delivery_date >= ? AND delivery_date <= ?", minDate, maxDate).
		Where("source_file NOT IN ?", sourceFiles).
		Count(&count).Error
	if err != nil || count == 0 {
		return
	}

	s.log.WithFields(logrus.Fields{
		"rows": count,
		"min":  minDate.Format("2006-01-02"),
		"max":  maxDate.Format("2006-01-02"),
	}).Warn("envelope replacement deletes rows from sources outside this batch")
}

func (s *IngestService) failIngest(ctx context.Context, action string, eventID *string, err error) (IngestSummary, error) {
	failMsg := fmt.Sprintf("batch aborted, zero rows imported: %v", err)
	_ = s.logService.CreateLog(ctx, eventID, action, LogOutcomeFail, &failMsg)
	return IngestSummary{}, err
}

func (s *IngestService) logIngestSuccess(ctx context.Context, action string, eventID *string, summary IngestSummary) {
	successMsg := fmt.Sprintf(
		"imported rows=%d files=%d sheets=%d range=%s..%s",
		summary.RowsImported, summary.FileCount, summary.SheetCount,
		summary.MinDate.Format("2006-01-02"), summary.MaxDate.Format("2006-01-02"),
	)
	_ = s.logService.CreateLog(ctx, eventID, action, LogOutcomeSuccess, &successMsg)

	s.log.WithFields(logrus.Fields{
		"rows":  summary.RowsImported,
		"files": summary.FileCount,
		"min":   summary.MinDate.Format("2006-01-02"),
		"max":   summary.MaxDate.Format("2006-01-02"),
	}).Info("replacement batch committed")
}

// appendImportBatch writes the audit row inside the same transaction
// that mutates the data tables. The version id is max+1 so the history
// stays monotonic without a sequence.
func appendImportBatch(tx *gorm.DB, operationType string, sourceFiles []string, fileCount int, rowCount int, minDate time.Time, maxDate time.Time) error {
	var nextID int64
	if err := tx.Raw("SELECT COALESCE(MAX(version_id), 0) + 1 FROM import_batches").Scan(&nextID).Error; err != nil {
		return fmt.Errorf("next import batch version: %w", err)
	}

	actor := os.Getenv("USER")
	if actor == "" {
		actor = "unknown"
	}

	batch := models.ImportBatch{
		VersionID:     nextID,
		Timestamp:     time.Now().UTC(),
		OperationType: operationType,
		SourceFiles:   strings.Join(sourceFiles, ","),
		FileCount:     fileCount,
		RowCount:      rowCount,
		MinDate:       minDate,
		MaxDate:       maxDate,
		Actor:         actor,
	}
	if err := tx.Create(&batch).Error; err != nil {
		return fmt.Errorf("append import batch: %w", err)
	}

	return nil
}

func baseNames(paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}
	return names
}

func bidDateRange(bids []models.Bid) (time.Time, time.Time) {
	minDate := bids[0].DeliveryDate
	maxDate := bids[0].DeliveryDate
	for _, bid := range bids[1:] {
		if bid.DeliveryDate.Before(minDate) {
			minDate = bid.DeliveryDate
		}
		if bid.DeliveryDate.After(maxDate) {
			maxDate = bid.DeliveryDate
		}
	}
	return minDate, maxDate
}

func intervalDateRange(intervals []models.ActivationInterval) (time.Time, time.Time) {
	minDate := intervals[0].Date
	maxDate := intervals[0].Date
	for _, interval := range intervals[1:] {
		if interval.Date.Before(minDate) {
			minDate = interval.Date
		}
		if interval.Date.After(maxDate) {
			maxDate = interval.Date
		}
	}
	return minDate, maxDate
}
