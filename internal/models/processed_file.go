package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProcessedFile struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Filename    string    `gorm:"type:text;not null;uniqueIndex" json:"filename"`
	ArchivePath string    `gorm:"type:text;not null" json:"archive_path"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (p *ProcessedFile) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
