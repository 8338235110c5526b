package models

import "time"

// ImportBatch is one append-only audit row per ingestion or resolve
// pass. VersionID is assigned as max+1 inside the same transaction
// that mutates the data tables.
type ImportBatch struct {
	VersionID     int64     `gorm:"primaryKey;autoIncrement:false" json:"version_id"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
	OperationType string    `gorm:"type:text;not null" json:"operation_type"`
	SourceFiles   string    `gorm:"type:text;not null" json:"source_files"`
	FileCount     int       `gorm:"type:int;not null" json:"file_count"`
	RowCount      int       `gorm:"type:int;not null" json:"row_count"`
	MinDate       time.Time `gorm:"type:date;not null" json:"min_date"`
	MaxDate       time.Time `gorm:"type:date;not null" json:"max_date"`
	Actor         string    `gorm:"type:text;not null" json:"actor"`
}
