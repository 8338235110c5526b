package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MarginalPrice is the resolved clearing price for one settlement
// interval. MarginalPriceEURPerMWh is nil when the interval had no
// activation or no matching offers.
type MarginalPrice struct {
	ID                     string    `gorm:"type:uuid;primaryKey" json:"id"`
	Date                   time.Time `gorm:"type:date;not null;index" json:"date"`
	Timestamp              time.Time `gorm:"not null" json:"timestamp"`
	QuarterHourStart       string    `gorm:"type:text;not null" json:"quarter_hour_start"`
	QuarterHourEnd         string    `gorm:"type:text;not null" json:"quarter_hour_end"`
	ActivatedVolumeMW      float64   `gorm:"type:double precision;not null" json:"activated_volume_mw"`
	AvailableCapacityMW    float64   `gorm:"type:double precision;not null" json:"available_capacity_mw"`
	MarginalPriceEURPerMWh *float64  `gorm:"type:double precision" json:"marginal_price_eur_per_mwh,omitempty"`
	ProductCode            string    `gorm:"type:text;not null" json:"product_code"`
}

func (m *MarginalPrice) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
