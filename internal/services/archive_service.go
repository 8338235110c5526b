package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ArchiveService moves ingested source files out of the input
// directories after a successful commit and records them. Archiving
// sits outside the ingestion transaction and is best-effort: a failed
// move is logged, never rolled back against.
type ArchiveService struct {
	db         *gorm.DB
	archiveDir string
	logService LogWriter
	log        *logrus.Logger
}

func NewArchiveService(db *gorm.DB, archiveDir string, logService LogWriter, log *logrus.Logger) (*ArchiveService, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if archiveDir == "" {
		return nil, errors.New("archive dir is empty")
	}
	if logService == nil {
		return nil, errors.New("log service is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}

	return &ArchiveService{
		db:         db,
		archiveDir: archiveDir,
		logService: logService,
		log:        log,
	}, nil
}

// Archive moves each file into the archive directory and marks it
// processed. It returns the files that were actually archived; files
// that fail to move stay in place for the next run.
func (s *ArchiveService) Archive(ctx context.Context, paths []string, eventID *string) ([]string, error) {
	if s == nil {
		return nil, errors.New("archive service is nil")
	}
	if len(paths) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(s.archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	var archived []string
	for _, path := range paths {
		target := filepath.Join(s.archiveDir, filepath.Base(path))
		if err := os.Rename(path, target); err != nil {
			failMsg := fmt.Sprintf("archive %s: %v", path, err)
			_ = s.logService.CreateLog(ctx, eventID, LogActionFileArchive, LogOutcomeFail, &failMsg)
			s.log.WithFields(logrus.Fields{"file": path}).Warn("could not archive file, leaving in place")
			continue
		}

		if err := s.markProcessed(ctx, filepath.Base(path), target); err != nil {
			s.log.WithFields(logrus.Fields{"file": path}).Warnf("mark processed: %v", err)
		}
		archived = append(archived, target)
	}

	if len(archived) > 0 {
		successMsg := fmt.Sprintf("archived files=%d", len(archived))
		_ = s.logService.CreateLog(ctx, eventID, LogActionFileArchive, LogOutcomeSuccess, &successMsg)
	}

	return archived, nil
}

func (s *ArchiveService) IsProcessed(ctx context.Context, filename string) (bool, error) {
	if s == nil {
		return false, errors.New("archive service is nil")
	}
	if filename == "" {
		return false, errors.New("filename is empty")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ProcessedFile{}).Where("filename = ?", filename).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check processed file: %w", err)
	}

	return count > 0, nil
}

func (s *ArchiveService) markProcessed(ctx context.Context, filename string, archivePath string) error {
	entry := models.ProcessedFile{
		Filename:    filename,
		ArchivePath: archivePath,
		ProcessedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Where("filename = ?", filename).FirstOrCreate(&entry).Error; err != nil {
		return fmt.Errorf("mark processed file: %w", err)
	}

	return nil
}
