package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Volumes below this magnitude count as no activation at all.
const ActivationEpsilonMW = 0.001

var ErrInvalidDateRange = errors.New("invalid date range")

type ResolutionStatus string

const (
	StatusResolved     ResolutionStatus = "RESOLVED"
	StatusNoActivation ResolutionStatus = "NO_ACTIVATION"
	StatusNoOffers     ResolutionStatus = "NO_OFFERS"
)

// Resolution is the outcome for one interval. NO_ACTIVATION and
// NO_OFFERS are valid terminal states carrying a null-price record,
// not errors.
type Resolution struct {
	Status           ResolutionStatus
	Record           models.MarginalPrice
	CapacityExceeded bool
	MatchedProduct   string
}

type ResolverService struct {
	db         *gorm.DB
	books      *BidBookService
	logService LogWriter
	log        *logrus.Logger
}

func NewResolverService(db *gorm.DB, books *BidBookService, logService LogWriter, log *logrus.Logger) (*ResolverService, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if books == nil {
		return nil, errors.New("bid book service is nil")
	}
	if logService == nil {
		return nil, errors.New("log service is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}

	return &ResolverService{db: db, books: books, logService: logService, log: log}, nil
}

// ResolveInterval walks the merit order for one activation interval.
// The marginal price is the price of the first offer whose inclusion
// covers the activated volume; if the stack runs out the last offer's
// price is used and the interval is flagged as capacity-exceeded.
func (s *ResolverService) ResolveInterval(interval models.ActivationInterval, book *BidBook) (Resolution, error) {
	if s == nil {
		return Resolution{}, errors.New("resolver service is nil")
	}
	if book == nil {
		return Resolution{}, errors.New("bid book is nil")
	}

	index := interval.QuarterHourIndex
	if index == 0 {
		parsed, err := QuarterHourIndex(interval.IntervalStart)
		if err != nil {
			return Resolution{}, err
		}
		index = parsed
	}
	productCode := fmt.Sprintf("NEG_%03d", index)

	record := models.MarginalPrice{
		Date:              interval.Date,
		Timestamp:         combineDateAndTime(interval.Date, interval.IntervalStart),
		QuarterHourStart:  interval.IntervalStart,
		QuarterHourEnd:    interval.IntervalEnd,
		ActivatedVolumeMW: interval.ActivatedVolumeMW,
		ProductCode:       productCode,
	}

	// The feed signs volumes by regulation direction; the merit order
	// only cares about the magnitude.
	target := math.Abs(interval.ActivatedVolumeMW)
	if target < ActivationEpsilonMW {
		return Resolution{Status: StatusNoActivation, Record: record}, nil
	}

	_, matched, found := s.books.Resolve(book, productCode)
	if !found {
		s.log.WithFields(logrus.Fields{
			"date":       interval.Date.Format("2006-01-02"),
			"product":    productCode,
			"candidates": strings.Join(book.Products(), ","),
		}).Warn("no offers for product, emitting null price")
		return Resolution{Status: StatusNoOffers, Record: record}, nil
	}

	next := book.CumulativeCapacity(matched)
	var lastPoint CumulativePoint
	cleared := false
	for {
		point, ok := next()
		if !ok {
			break
		}
		lastPoint = point
		if point.CumulativeMW >= target {
			cleared = true
			break
		}
	}

	price := lastPoint.PriceEURPerMWh
	record.MarginalPriceEURPerMWh = &price

	if cleared {
		record.AvailableCapacityMW = lastPoint.CumulativeMW
		return Resolution{Status: StatusResolved, Record: record, MatchedProduct: matched}, nil
	}

	record.AvailableCapacityMW = book.TotalCapacity(matched)
	s.log.WithFields(logrus.Fields{
		"date":      interval.Date.Format("2006-01-02"),
		"product":   matched,
		"activated": target,
		"available": record.AvailableCapacityMW,
	}).Warn("activated volume exceeds available capacity")

	return Resolution{
		Status:           StatusResolved,
		Record:           record,
		CapacityExceeded: true,
		MatchedProduct:   matched,
	}, nil
}

// ResolveAndSave resolves every stored activation interval in the
// inclusive date range and replaces the price records for the whole
// requested range in one transaction, so prices from a previous pass
// over days that no longer carry activation data do not linger.
// Per-interval data-quality conditions never abort the pass.
func (s *ResolverService) ResolveAndSave(ctx context.Context, startDate time.Time, endDate time.Time, eventID *string) (ResolveSummary, error) {
	if s == nil {
		return ResolveSummary{}, errors.New("resolver service is nil")
	}
	if s.db == nil {
		return ResolveSummary{}, errors.New("db is nil")
	}
	if startDate.IsZero() || endDate.IsZero() || endDate.Before(startDate) {
		return ResolveSummary{}, ErrInvalidDateRange
	}

	var intervals []models.ActivationInterval
	if err := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", startDate, endDate).
		Order("date, quarter_hour_index").
		Find(&intervals).Error; err != nil {
		return ResolveSummary{}, fmt.Errorf("load activation intervals: %w", err)
	}

	if len(intervals) == 0 {
		s.log.WithFields(logrus.Fields{
			"start": startDate.Format("2006-01-02"),
			"end":   endDate.Format("2006-01-02"),
		}).Warn("no activation data in date range, nothing to resolve")
		return ResolveSummary{}, nil
	}

	summary := ResolveSummary{}
	records := make([]models.MarginalPrice, 0, len(intervals))
	books := make(map[string]*BidBook)

	for _, interval := range intervals {
		day := interval.Date.Format("2006-01-02")
		book, ok := books[day]
		if !ok {
			built, err := s.buildBook(ctx, interval.Date)
			if err != nil {
				return ResolveSummary{}, err
			}
			book = built
			books[day] = book
		}

		resolution, err := s.ResolveInterval(interval, book)
		if err != nil {
			return ResolveSummary{}, fmt.Errorf("resolve interval %s %s: %w", day, interval.IntervalStart, err)
		}

		switch resolution.Status {
		case StatusResolved:
			summary.Resolved++
		case StatusNoActivation:
			summary.NoActivation++
		case StatusNoOffers:
			summary.NoOffers++
		}
		if resolution.CapacityExceeded {
			summary.CapacityExceeded++
		}

		records = append(records, resolution.Record)
	}

	minDate, maxDate := recordDateRange(records)
	summary.MinDate = minDate
	summary.MaxDate = maxDate

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date >= ? AND date <= ?", startDate, endDate).Delete(&models.MarginalPrice{}).Error; err != nil {
			return fmt.Errorf("delete existing price records: %w", err)
		}
		if err := tx.CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert price records: %w", err)
		}
		return appendImportBatch(tx, OperationPriceResolve, nil, 0, len(records), minDate, maxDate)
	})
	if err != nil {
		failMsg := fmt.Sprintf("resolve %s..%s: %v", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"), err)
		_ = s.logService.CreateLog(ctx, eventID, LogActionPriceResolve, LogOutcomeFail, &failMsg)
		return ResolveSummary{}, fmt.Errorf("save marginal prices: %w", err)
	}

	summary.RecordsWritten = len(records)

	successMsg := fmt.Sprintf(
		"resolved=%d no_activation=%d no_offers=%d capacity_exceeded=%d range=%s..%s",
		summary.Resolved, summary.NoActivation, summary.NoOffers, summary.CapacityExceeded,
		minDate.Format("2006-01-02"), maxDate.Format("2006-01-02"),
	)
	_ = s.logService.CreateLog(ctx, eventID, LogActionPriceResolve, LogOutcomeSuccess, &successMsg)

	s.log.WithFields(logrus.Fields{
		"records":           summary.RecordsWritten,
		"resolved":          summary.Resolved,
		"no_activation":     summary.NoActivation,
		"no_offers":         summary.NoOffers,
		"capacity_exceeded": summary.CapacityExceeded,
	}).Info("marginal price resolve pass complete")

	return summary, nil
}

// GetPrices returns stored price records, optionally narrowed by date
// range and product code.
func (s *ResolverService) GetPrices(ctx context.Context, startDate time.Time, endDate time.Time, productCode string) ([]models.MarginalPrice, error) {
	if s == nil {
		return nil, errors.New("resolver service is nil")
	}
	if s.db == nil {
		return nil, errors.New("db is nil")
	}

	query := s.db.WithContext(ctx).Model(&models.MarginalPrice{})
	if !startDate.IsZero() {
		query = query.Where("date >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("date <= ?", endDate)
	}
	if productCode != "" {
		query = query.Where("product_code = ?", productCode)
	}

	var prices []models.MarginalPrice
	if err := query.Order("date, quarter_hour_start").Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}

	return prices, nil
}

func (s *ResolverService) buildBook(ctx context.Context, date time.Time) (*BidBook, error) {
	var bids []models.Bid
	if err := s.db.WithContext(ctx).
		Where("delivery_date = ?", date).
		Order("product_code, price_eur_per_m_wh").
		Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("load bids for %s: %w", date.Format("2006-01-02"), err)
	}

	return s.books.Build(date, bids)
}

func combineDateAndTime(date time.Time, start string) time.Time {
	parsed, err := time.Parse(timeOfDayFormat, start)
	if err != nil {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, date.Location())
}

func recordDateRange(records []models.MarginalPrice) (time.Time, time.Time) {
	minDate := records[0].Date
	maxDate := records[0].Date
	for _, record := range records[1:] {
		if record.Date.Before(minDate) {
			minDate = record.Date
		}
		if record.Date.After(maxDate) {
			maxDate = record.Date
		}
	}
	return minDate, maxDate
}
