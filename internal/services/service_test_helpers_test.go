package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Bid{},
		&models.ActivationInterval{},
		&models.MarginalPrice{},
		&models.ImportBatch{},
		&models.ProcessedFile{},
		&models.Log{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type loggedEntry struct {
	action  string
	outcome string
	message *string
}

type stubLogWriter struct {
	entries []loggedEntry
}

func (s *stubLogWriter) CreateLog(ctx context.Context, eventID *string, action string, outcome string, message *string) error {
	var copied *string
	if message != nil {
		value := *message
		copied = &value
	}

	s.entries = append(s.entries, loggedEntry{
		action:  action,
		outcome: outcome,
		message: copied,
	})
	return nil
}

func day(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func floatPtr(value float64) *float64 {
	return &value
}

func testBid(date time.Time, product string, price float64, capacity float64, sourceFile string) models.Bid {
	return models.Bid{
		DeliveryDate:        date,
		ProductCode:         product,
		PriceEURPerMWh:      floatPtr(price),
		AllocatedCapacityMW: capacity,
		SourceFile:          sourceFile,
		LoadTimestamp:       time.Now().UTC(),
	}
}
