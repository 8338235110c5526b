package services

import (
	"context"
	"time"
)

type LogWriter interface {
	CreateLog(ctx context.Context, eventID *string, action string, outcome string, message *string) error
}

type WorkbookExtractor interface {
	ExtractPayloads(ctx context.Context, path string) ([]TabularPayload, error)
}

type DataIngestor interface {
	IngestProviderFiles(ctx context.Context, paths []string, eventID *string) (IngestSummary, error)
	IngestActivationFiles(ctx context.Context, paths []string, eventID *string) (IngestSummary, error)
}

type PriceResolver interface {
	ResolveAndSave(ctx context.Context, startDate time.Time, endDate time.Time, eventID *string) (ResolveSummary, error)
}

type FileArchiver interface {
	Archive(ctx context.Context, paths []string, eventID *string) ([]string, error)
}
