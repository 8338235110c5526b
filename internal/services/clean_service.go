package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	ColDeliveryDate      = "DELIVERY_DATE"
	ColProduct           = "PRODUCT"
	ColEnergyPrice       = "ENERGY_PRICE_[EUR/MWh]"
	ColPaymentDirection  = "ENERGY_PRICE_PAYMENT_DIRECTION"
	ColAllocatedCapacity = "ALLOCATED_CAPACITY_[MW]"
	ColNote              = "NOTE"

	// Payment direction values as delivered by the market operator.
	// PROVIDER_TO_GRID means the provider pays the grid, so its price
	// ranks below zero in the merit order.
	PaymentProviderToGrid = "PROVIDER_TO_GRID"
	PaymentGridToProvider = "GRID_TO_PROVIDER"

	oppositeSidePrefix = "POS_"
)

var requiredProviderColumns = []string{
	ColDeliveryDate,
	ColProduct,
	ColEnergyPrice,
	ColPaymentDirection,
	ColAllocatedCapacity,
}

// CleanService turns raw provider sheets into typed bids: schema
// validation, opposite-side filtering, locale number conversion and
// the payment-direction sign flip.
type CleanService struct {
	dateFormats []string
	log         *logrus.Logger
}

func NewCleanService(dateFormats []string, log *logrus.Logger) (*CleanService, error) {
	if len(dateFormats) == 0 {
		return nil, errors.New("date formats are empty")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}

	return &CleanService{dateFormats: dateFormats, log: log}, nil
}

// CleanProviderPayload validates and cleans one sheet. A missing
// required column or an unparsable delivery date fails the sheet; an
// unparsable price does not, the bid is kept with a nil price so the
// row stays visible for audit while staying out of the merit order.
func (s *CleanService) CleanProviderPayload(payload TabularPayload, loadTimestamp time.Time) ([]models.Bid, error) {
	if s == nil {
		return nil, errors.New("clean service is nil")
	}

	if len(payload.Rows) == 0 {
		return nil, &SchemaError{File: payload.SourceFile, Sheet: payload.Sheet, Detail: "sheet has no data rows"}
	}

	columns, missing := columnIndex(payload.Headers, requiredProviderColumns)
	if len(missing) > 0 {
		return nil, &SchemaError{File: payload.SourceFile, Sheet: payload.Sheet, Missing: missing}
	}
	noteIndex := indexOf(payload.Headers, ColNote)

	bids := make([]models.Bid, 0, len(payload.Rows))
	for _, row := range payload.Rows {
		product := strings.TrimSpace(row[columns[ColProduct]])
		if product == "" {
			continue
		}
		if strings.HasPrefix(product, oppositeSidePrefix) {
			// Positive-regulation products belong to the other market
			// side and never enter the negative book.
			continue
		}

		rawDate := strings.TrimSpace(row[columns[ColDeliveryDate]])
		deliveryDate, err := s.parseDeliveryDate(rawDate)
		if err != nil {
			return nil, &DateParseError{File: payload.SourceFile, Sheet: payload.Sheet, Value: rawDate}
		}

		capacity, err := parseDecimal(row[columns[ColAllocatedCapacity]])
		if err != nil {
			return nil, &SchemaError{
				File:   payload.SourceFile,
				Sheet:  payload.Sheet,
				Detail: fmt.Sprintf("unparsable allocated capacity %q", row[columns[ColAllocatedCapacity]]),
			}
		}
		if capacity < 0 {
			return nil, &SchemaError{
				File:   payload.SourceFile,
				Sheet:  payload.Sheet,
				Detail: fmt.Sprintf("negative allocated capacity %v for product %s", capacity, product),
			}
		}

		price, err := s.signedPrice(row[columns[ColEnergyPrice]], row[columns[ColPaymentDirection]])
		if err != nil {
			return nil, &SchemaError{File: payload.SourceFile, Sheet: payload.Sheet, Detail: err.Error()}
		}
		if price == nil {
			s.log.WithFields(logrus.Fields{
				"file":    payload.SourceFile,
				"sheet":   payload.Sheet,
				"product": product,
				"value":   row[columns[ColEnergyPrice]],
			}).Warn("unparsable energy price, bid kept for audit only")
		}

		if noteIndex >= 0 && noteIndex < len(row) && strings.TrimSpace(row[noteIndex]) != "" {
			s.log.WithFields(logrus.Fields{
				"file":    payload.SourceFile,
				"product": product,
				"note":    strings.TrimSpace(row[noteIndex]),
			}).Warn("bid row carries a note")
		}

		bids = append(bids, models.Bid{
			DeliveryDate:        deliveryDate,
			ProductCode:         product,
			PriceEURPerMWh:      price,
			AllocatedCapacityMW: capacity,
			SourceFile:          payload.SourceFile,
			LoadTimestamp:       loadTimestamp,
		})
	}

	sortBids(bids)
	return bids, nil
}

func (s *CleanService) parseDeliveryDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("delivery date is empty")
	}
	for _, format := range s.dateFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("no format matched %q", value)
}

// signedPrice converts a decimal-comma price string and applies the
// payment-direction sign convention. A nil result with nil error means
// the price was unparsable.
func (s *CleanService) signedPrice(rawPrice string, rawDirection string) (*float64, error) {
	direction := strings.TrimSpace(rawDirection)
	switch direction {
	case PaymentGridToProvider, PaymentProviderToGrid:
	default:
		return nil, fmt.Errorf("unknown payment direction %q", rawDirection)
	}

	price, err := parseDecimal(rawPrice)
	if err != nil {
		return nil, nil
	}

	if direction == PaymentProviderToGrid {
		price = -price
	}
	return &price, nil
}

// parseDecimal accepts both decimal-comma and decimal-point numbers.
func parseDecimal(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, errors.New("value is empty")
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", value, err)
	}
	return parsed, nil
}

// sortBids orders by (delivery date, product, price) for deterministic
// downstream processing; bids without a usable price sort last within
// their product.
func sortBids(bids []models.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].DeliveryDate.Equal(bids[j].DeliveryDate) {
			return bids[i].DeliveryDate.Before(bids[j].DeliveryDate)
		}
		if bids[i].ProductCode != bids[j].ProductCode {
			return bids[i].ProductCode < bids[j].ProductCode
		}
		left, right := bids[i].PriceEURPerMWh, bids[j].PriceEURPerMWh
		switch {
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return *left < *right
		}
	})
}

func columnIndex(headers []string, required []string) (map[string]int, []string) {
	columns := make(map[string]int, len(required))
	var missing []string
	for _, name := range required {
		index := indexOf(headers, name)
		if index == -1 {
			missing = append(missing, name)
			continue
		}
		columns[name] = index
	}
	return columns, missing
}

func indexOf(headers []string, name string) int {
	for i, header := range headers {
		if strings.EqualFold(strings.TrimSpace(header), name) {
			return i
		}
	}
	return -1
}
