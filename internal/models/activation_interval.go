package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivationInterval is one 15-minute regulation settlement window.
// QuarterHourIndex runs 1..96 within a calendar day.
type ActivationInterval struct {
	ID                string    `gorm:"type:uuid;primaryKey" json:"id"`
	Date              time.Time `gorm:"type:date;not null;index" json:"date"`
	IntervalStart     string    `gorm:"type:text;not null" json:"interval_start"`
	IntervalEnd       string    `gorm:"type:text;not null" json:"interval_end"`
	ActivatedVolumeMW float64   `gorm:"type:double precision;not null" json:"activated_volume_mw"`
	QuarterHourIndex  int       `gorm:"type:int;not null" json:"quarter_hour_index"`
	SourceFile        string    `gorm:"type:text;not null" json:"source_file"`
	LoadTimestamp     time.Time `gorm:"not null" json:"load_timestamp"`
}

func (a *ActivationInterval) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
