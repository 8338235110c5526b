package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	AfrrColDate     = "Datum"
	AfrrColFrom     = "von"
	AfrrColTo       = "bis"
	AfrrColNegative = "50Hertz (Negativ)"

	afrrDateFormat  = "02.01.2006"
	intervalsPerDay = 96
	intervalMinutes = 15
	timeOfDayFormat = "15:04"
	afrrFieldSep    = ';'
)

var requiredAfrrColumns = []string{AfrrColDate, AfrrColFrom, AfrrColTo, AfrrColNegative}

// AfrrService reads and cleans the regulation-activation CSV feed:
// semicolon separated, decimal comma, dd.mm.yyyy dates, one row per
// quarter-hour with the negative-regulation volume.
type AfrrService struct {
	log *logrus.Logger
}

func NewAfrrService(log *logrus.Logger) (*AfrrService, error) {
	if log == nil {
		return nil, errors.New("logger is nil")
	}

	return &AfrrService{log: log}, nil
}

func (s *AfrrService) ExtractPayload(ctx context.Context, path string) (TabularPayload, error) {
	if s == nil {
		return TabularPayload{}, errors.New("afrr service is nil")
	}
	if path == "" {
		return TabularPayload{}, errors.New("path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return TabularPayload{}, fmt.Errorf("open activation file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = afrrFieldSep
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return TabularPayload{}, fmt.Errorf("read activation file %s: %w", path, err)
	}
	if len(records) == 0 {
		return TabularPayload{SourceFile: filepath.Base(path)}, nil
	}

	headers := trimCells(records[0])
	var rows [][]string
	for _, record := range records[1:] {
		normalized := normalizeRow(record, len(headers))
		if rowIsEmpty(normalized) {
			continue
		}
		rows = append(rows, normalized)
	}

	return TabularPayload{
		SourceFile: filepath.Base(path),
		Sheet:      "",
		Headers:    headers,
		Rows:       rows,
	}, nil
}

// CleanActivationPayload validates and types the activation rows.
// Every day in the payload should carry 96 contiguous quarter-hours;
// violations are logged but do not fail the batch, the resolver emits
// one record per interval that actually exists.
func (s *AfrrService) CleanActivationPayload(payload TabularPayload, loadTimestamp time.Time) ([]models.ActivationInterval, error) {
	if s == nil {
		return nil, errors.New("afrr service is nil")
	}

	if len(payload.Rows) == 0 {
		return nil, &SchemaError{File: payload.SourceFile, Sheet: payload.Sheet, Detail: "file has no data rows"}
	}

	columns, missing := columnIndex(payload.Headers, requiredAfrrColumns)
	if len(missing) > 0 {
		return nil, &SchemaError{File: payload.SourceFile, Sheet: payload.Sheet, Missing: missing}
	}

	intervals := make([]models.ActivationInterval, 0, len(payload.Rows))
	for _, row := range payload.Rows {
		rawDate := strings.TrimSpace(row[columns[AfrrColDate]])
		date, err := time.Parse(afrrDateFormat, rawDate)
		if err != nil {
			return nil, &DateParseError{File: payload.SourceFile, Sheet: payload.Sheet, Value: rawDate}
		}

		start := strings.TrimSpace(row[columns[AfrrColFrom]])
		end := strings.TrimSpace(row[columns[AfrrColTo]])
		index, err := QuarterHourIndex(start)
		if err != nil {
			return nil, &SchemaError{
				File:   payload.SourceFile,
				Sheet:  payload.Sheet,
				Detail: fmt.Sprintf("unparsable interval start %q", start),
			}
		}

		volume, err := parseDecimal(row[columns[AfrrColNegative]])
		if err != nil {
			return nil, &SchemaError{
				File:   payload.SourceFile,
				Sheet:  payload.Sheet,
				Detail: fmt.Sprintf("unparsable activated volume %q on %s %s", row[columns[AfrrColNegative]], rawDate, start),
			}
		}

		intervals = append(intervals, models.ActivationInterval{
			Date:              date,
			IntervalStart:     start,
			IntervalEnd:       end,
			ActivatedVolumeMW: volume,
			QuarterHourIndex:  index,
			SourceFile:        payload.SourceFile,
			LoadTimestamp:     loadTimestamp,
		})
	}

	s.checkDayCompleteness(payload.SourceFile, intervals)
	return intervals, nil
}

// QuarterHourIndex maps an HH:MM interval start to its 1..96 slot.
func QuarterHourIndex(start string) (int, error) {
	parsed, err := time.Parse(timeOfDayFormat, start)
	if err != nil {
		return 0, fmt.Errorf("parse interval start %q: %w", start, err)
	}
	if parsed.Minute()%intervalMinutes != 0 {
		return 0, fmt.Errorf("interval start %q is not on a quarter-hour boundary", start)
	}
	return parsed.Hour()*4 + parsed.Minute()/intervalMinutes + 1, nil
}

// dayViolation describes a day whose quarter-hours do not form one
// complete set: Intervals counts the distinct slots present and
// Duplicates the slots that appear more than once.
type dayViolation struct {
	Day        string
	Intervals  int
	Duplicates int
}

func activationDayViolations(intervals []models.ActivationInterval) []dayViolation {
	seen := make(map[string]map[int]int)
	for _, interval := range intervals {
		day := interval.Date.Format("2006-01-02")
		if seen[day] == nil {
			seen[day] = make(map[int]int)
		}
		seen[day][interval.QuarterHourIndex]++
	}

	days := make([]string, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Strings(days)

	var violations []dayViolation
	for _, day := range days {
		indices := seen[day]
		duplicates := 0
		for _, count := range indices {
			if count > 1 {
				duplicates++
			}
		}
		if len(indices) != intervalsPerDay || duplicates > 0 {
			violations = append(violations, dayViolation{Day: day, Intervals: len(indices), Duplicates: duplicates})
		}
	}
	return violations
}

func (s *AfrrService) checkDayCompleteness(sourceFile string, intervals []models.ActivationInterval) {
	for _, violation := range activationDayViolations(intervals) {
		s.log.WithFields(logrus.Fields{
			"file":       sourceFile,
			"day":        violation.Day,
			"intervals":  violation.Intervals,
			"duplicates": violation.Duplicates,
			"expected":   intervalsPerDay,
		}).Warn("activation day is not a complete contiguous set of quarter-hours")
	}
}
