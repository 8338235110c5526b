package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"gorm.io/gorm"
)

// LogQuery narrows an audit log read. Limit is required; the other
// fields are optional filters. EventID groups the entries of one
// pipeline run, Action and Outcome select by stage and result, so
// "every failed ingest" is Action=PROVIDER_INGEST, Outcome=FAIL.
type LogQuery struct {
	Limit   int
	EventID string
	Action  string
	Outcome string
}

// LogService is the DB-backed audit trail of the ingestion and
// pricing pipeline. Every batch, resolve pass and archive step writes
// an entry; reads serve the operational log endpoint.
type LogService struct {
	db *gorm.DB
}

func NewLogService(db *gorm.DB) (*LogService, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}

	return &LogService{db: db}, nil
}

func (s *LogService) CreateLog(ctx context.Context, eventID *string, action string, outcome string, message *string) error {
	if s == nil {
		return errors.New("log service is nil")
	}
	if s.db == nil {
		return errors.New("db is nil")
	}
	if action == "" {
		return errors.New("action is empty")
	}
	if outcome == "" {
		return errors.New("outcome is empty")
	}

	entry := models.Log{
		EventID:  eventID,
		Datetime: time.Now().UTC(),
		Action:   action,
		Outcome:  outcome,
		Message:  message,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("create log: %w", err)
	}

	return nil
}

// GetLogs returns the newest audit entries matching the query.
func (s *LogService) GetLogs(ctx context.Context, query LogQuery) ([]models.Log, error) {
	if s == nil {
		return nil, errors.New("log service is nil")
	}
	if s.db == nil {
		return nil, errors.New("db is nil")
	}
	if query.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	q := s.db.WithContext(ctx).Order("datetime desc").Limit(query.Limit)
	if query.EventID != "" {
		q = q.Where("event_id = ?", query.EventID)
	}
	if query.Action != "" {
		q = q.Where("action = ?", query.Action)
	}
	if query.Outcome != "" {
		q = q.Where("outcome = ?", query.Outcome)
	}

	var logs []models.Log
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("get logs: %w", err)
	}

	return logs, nil
}

// PurgeLogs deletes audit entries older than the cutoff and reports
// how many were removed. A zero cutoff empties the whole trail.
func (s *LogService) PurgeLogs(ctx context.Context, before time.Time) (int, error) {
	if s == nil {
		return 0, errors.New("log service is nil")
	}
	if s.db == nil {
		return 0, errors.New("db is nil")
	}

	q := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if !before.IsZero() {
		q = q.Where("datetime < ?", before)
	}

	result := q.Delete(&models.Log{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge logs: %w", result.Error)
	}

	return int(result.RowsAffected), nil
}
