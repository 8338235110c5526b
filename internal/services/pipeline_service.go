package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PipelineService runs one end-to-end pass: discover input files,
// ingest both feeds, resolve marginal prices for the union of the
// imported envelopes, then archive the consumed files.
type PipelineService struct {
	ingestService DataIngestor
	resolver      PriceResolver
	archive       FileArchiver
	logService    LogWriter
	log           *logrus.Logger
	providerDir   string
	afrrDir       string
}

func NewPipelineService(ingestService DataIngestor, resolver PriceResolver, archive FileArchiver, logService LogWriter, log *logrus.Logger, providerDir string, afrrDir string) (*PipelineService, error) {
	if ingestService == nil {
		return nil, errors.New("ingest service is nil")
	}
	if resolver == nil {
		return nil, errors.New("resolver service is nil")
	}
	if archive == nil {
		return nil, errors.New("archive service is nil")
	}
	if logService == nil {
		return nil, errors.New("log service is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	if providerDir == "" {
		return nil, errors.New("provider dir is empty")
	}
	if afrrDir == "" {
		return nil, errors.New("afrr dir is empty")
	}

	return &PipelineService{
		ingestService: ingestService,
		resolver:      resolver,
		archive:       archive,
		logService:    logService,
		log:           log,
		providerDir:   providerDir,
		afrrDir:       afrrDir,
	}, nil
}

// Run executes one pipeline pass. Stage failures are logged and stop
// their dependents; the first error is returned after the remaining
// independent stages had their chance.
func (s *PipelineService) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("pipeline service is nil")
	}

	eventID := uuid.NewString()

	providerFiles, err := filepath.Glob(filepath.Join(s.providerDir, "*.xlsx"))
	if err != nil {
		return fmt.Errorf("discover provider files: %w", err)
	}
	afrrFiles, err := filepath.Glob(filepath.Join(s.afrrDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("discover activation files: %w", err)
	}

	if len(providerFiles) == 0 && len(afrrFiles) == 0 {
		s.log.Debug("no input files, skipping pipeline run")
		return nil
	}

	startMsg := fmt.Sprintf("pipeline run started provider_files=%d afrr_files=%d", len(providerFiles), len(afrrFiles))
	_ = s.logService.CreateLog(ctx, &eventID, LogActionPipelineRun, LogOutcomeSuccess, &startMsg)

	var runErr error
	var minDate, maxDate time.Time
	var archivable []string

	if len(providerFiles) > 0 {
		summary, err := s.ingestService.IngestProviderFiles(ctx, providerFiles, &eventID)
		if err != nil {
			s.log.WithField("event_id", eventID).Errorf("provider ingest: %v", err)
			runErr = fmt.Errorf("provider ingest: %w", err)
		} else {
			minDate, maxDate = widenRange(minDate, maxDate, summary.MinDate, summary.MaxDate)
			archivable = append(archivable, providerFiles...)
		}
	}

	if len(afrrFiles) > 0 {
		summary, err := s.ingestService.IngestActivationFiles(ctx, afrrFiles, &eventID)
		if err != nil {
			s.log.WithField("event_id", eventID).Errorf("activation ingest: %v", err)
			if runErr == nil {
				runErr = fmt.Errorf("activation ingest: %w", err)
			}
		} else {
			minDate, maxDate = widenRange(minDate, maxDate, summary.MinDate, summary.MaxDate)
			archivable = append(archivable, afrrFiles...)
		}
	}

	// Price replacement must happen after the bid data is committed;
	// both ingests above have either committed or been skipped by now.
	if !minDate.IsZero() {
		if _, err := s.resolver.ResolveAndSave(ctx, minDate, maxDate, &eventID); err != nil {
			s.log.WithField("event_id", eventID).Errorf("resolve: %v", err)
			if runErr == nil {
				runErr = fmt.Errorf("resolve: %w", err)
			}
		}
	}

	if len(archivable) > 0 {
		if _, err := s.archive.Archive(ctx, archivable, &eventID); err != nil {
			s.log.WithField("event_id", eventID).Warnf("archive: %v", err)
		}
	}

	outcome := LogOutcomeSuccess
	finishMsg := "pipeline run finished"
	if runErr != nil {
		outcome = LogOutcomeFail
		finishMsg = fmt.Sprintf("pipeline run finished with error: %v", runErr)
	}
	_ = s.logService.CreateLog(ctx, &eventID, LogActionPipelineRun, outcome, &finishMsg)

	return runErr
}

func widenRange(minDate, maxDate, newMin, newMax time.Time) (time.Time, time.Time) {
	if minDate.IsZero() || newMin.Before(minDate) {
		minDate = newMin
	}
	if maxDate.IsZero() || newMax.After(maxDate) {
		maxDate = newMax
	}
	return minDate, maxDate
}
