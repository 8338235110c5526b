package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type XlsxService struct{}

func NewXlsxService() (*XlsxService, error) {
	return &XlsxService{}, nil
}

// ExtractPayloads reads every sheet of a provider workbook into a
// tabular payload. The first non-empty row of a sheet is its header;
// sheets without any data rows are returned with empty Rows so that
// validation can reject them with a precise diagnostic.
func (s *XlsxService) ExtractPayloads(ctx context.Context, path string) ([]TabularPayload, error) {
	if s == nil {
		return nil, errors.New("xlsx service is nil")
	}
	if path == "" {
		return nil, errors.New("path is empty")
	}

	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		if closeErr := workbook.Close(); closeErr != nil {
			return nil, fmt.Errorf("close workbook: %w", closeErr)
		}
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	sourceFile := filepath.Base(path)
	var payloads []TabularPayload
	for _, sheet := range sheets {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			if closeErr := workbook.Close(); closeErr != nil {
				return nil, fmt.Errorf("close workbook: %w", closeErr)
			}
			return nil, fmt.Errorf("get rows for %s: %w", sheet, err)
		}

		payload := buildPayload(sourceFile, sheet, rows)
		payloads = append(payloads, payload)
	}

	if closeErr := workbook.Close(); closeErr != nil {
		return nil, fmt.Errorf("close workbook: %w", closeErr)
	}

	return payloads, nil
}

func buildPayload(sourceFile string, sheet string, rows [][]string) TabularPayload {
	headerIndex := -1
	for i, row := range rows {
		if !rowIsEmpty(row) {
			headerIndex = i
			break
		}
	}
	if headerIndex == -1 {
		return TabularPayload{SourceFile: sourceFile, Sheet: sheet}
	}

	headers := trimCells(rows[headerIndex])
	var data [][]string
	for _, row := range rows[headerIndex+1:] {
		normalized := normalizeRow(row, len(headers))
		if rowIsEmpty(normalized) {
			continue
		}
		data = append(data, normalized)
	}

	return TabularPayload{
		SourceFile: sourceFile,
		Sheet:      sheet,
		Headers:    headers,
		Rows:       data,
	}
}

func trimCells(row []string) []string {
	trimmed := make([]string, len(row))
	for i, cell := range row {
		trimmed[i] = strings.TrimSpace(cell)
	}
	return trimmed
}

func normalizeRow(row []string, length int) []string {
	if len(row) >= length {
		return row
	}
	normalized := make([]string, length)
	copy(normalized, row)
	return normalized
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
