package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hilbertp/hypermvp/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the analytical store. A postgres DSN selects the
// postgres driver; anything else is treated as a sqlite file path,
// which is the embedded single-file deployment the pipeline normally
// runs against.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates the data, price, audit and archive tables. Running
// it before any ingestion makes the range delete in the replacement
// protocol safe even on a fresh store.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if err := db.AutoMigrate(
		&models.Bid{},
		&models.ActivationInterval{},
		&models.MarginalPrice{},
		&models.ImportBatch{},
		&models.ProcessedFile{},
		&models.Log{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
