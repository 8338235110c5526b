package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid is one anonymized capacity offer for a quarter-hour product.
// PriceEURPerMWh is nil when the source value could not be parsed; such
// rows are kept for audit but never enter the merit order.
type Bid struct {
	ID                  string    `gorm:"type:uuid;primaryKey" json:"id"`
	DeliveryDate        time.Time `gorm:"type:date;not null;index" json:"delivery_date"`
	ProductCode         string    `gorm:"type:text;not null;index" json:"product_code"`
	PriceEURPerMWh      *float64  `gorm:"type:double precision" json:"price_eur_per_mwh,omitempty"`
	AllocatedCapacityMW float64   `gorm:"type:double precision;not null" json:"allocated_capacity_mw"`
	SourceFile          string    `gorm:"type:text;not null" json:"source_file"`
	LoadTimestamp       time.Time `gorm:"not null" json:"load_timestamp"`
}

func (b *Bid) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
