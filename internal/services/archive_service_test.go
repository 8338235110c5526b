package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestArchiveService(t *testing.T, archiveDir string, logWriter LogWriter) *ArchiveService {
	t.Helper()

	service, err := NewArchiveService(openTestDB(t), archiveDir, logWriter, newTestLogger())
	if err != nil {
		t.Fatalf("NewArchiveService: %v", err)
	}
	return service
}

func TestArchiveMovesFilesAndMarksProcessed(t *testing.T) {
	inputDir := t.TempDir()
	archiveDir := filepath.Join(t.TempDir(), "archive")
	logWriter := &stubLogWriter{}
	service := newTestArchiveService(t, archiveDir, logWriter)

	source := filepath.Join(inputDir, "bids.xlsx")
	if err := os.WriteFile(source, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	archived, err := service.Archive(context.Background(), []string{source}, nil)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("archived = %d, want 1", len(archived))
	}

	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("source file should be gone, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(archiveDir, "bids.xlsx")); err != nil {
		t.Fatalf("archived file missing: %v", err)
	}

	processed, err := service.IsProcessed(context.Background(), "bids.xlsx")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Fatalf("file should be marked processed")
	}

	last := logWriter.entries[len(logWriter.entries)-1]
	if last.action != LogActionFileArchive || last.outcome != LogOutcomeSuccess {
		t.Fatalf("audit entry = %+v", last)
	}
}

func TestArchiveLeavesUnmovableFilesInPlace(t *testing.T) {
	inputDir := t.TempDir()
	archiveDir := filepath.Join(t.TempDir(), "archive")
	logWriter := &stubLogWriter{}
	service := newTestArchiveService(t, archiveDir, logWriter)

	present := filepath.Join(inputDir, "good.csv")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	missing := filepath.Join(inputDir, "gone.csv")

	archived, err := service.Archive(context.Background(), []string{missing, present}, nil)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("archived = %d, want 1", len(archived))
	}
	if filepath.Base(archived[0]) != "good.csv" {
		t.Fatalf("archived wrong file: %s", archived[0])
	}

	var sawFailure bool
	for _, entry := range logWriter.entries {
		if entry.action == LogActionFileArchive && entry.outcome == LogOutcomeFail {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("expected a failure audit entry for the missing file")
	}
}

func TestArchiveEmptyInputIsNoop(t *testing.T) {
	service := newTestArchiveService(t, filepath.Join(t.TempDir(), "archive"), &stubLogWriter{})

	archived, err := service.Archive(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if archived != nil {
		t.Fatalf("archived = %v, want nil", archived)
	}
}

func TestIsProcessedUnknownFile(t *testing.T) {
	service := newTestArchiveService(t, filepath.Join(t.TempDir(), "archive"), &stubLogWriter{})

	processed, err := service.IsProcessed(context.Background(), "never-seen.xlsx")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatalf("unknown file reported processed")
	}
}
