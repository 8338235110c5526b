package services

import "time"

// TabularPayload is one extracted sheet: a header row plus string
// cells, normalized to the header width. Parsing into typed records
// happens in the cleaning services, never past them.
type TabularPayload struct {
	SourceFile string
	Sheet      string
	Headers    []string
	Rows       [][]string
}

// IngestSummary describes one committed replacement batch.
type IngestSummary struct {
	RowsImported int
	FileCount    int
	SheetCount   int
	MinDate      time.Time
	MaxDate      time.Time
	SourceFiles  []string
}

// ResolveSummary aggregates one resolve pass over a date range.
type ResolveSummary struct {
	RecordsWritten   int
	Resolved         int
	NoActivation     int
	NoOffers         int
	CapacityExceeded int
	MinDate          time.Time
	MaxDate          time.Time
}
