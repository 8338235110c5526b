package services

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"

	"github.com/sirupsen/logrus"
)

// BookEntry is one merit-order offer. Entries are always price-sorted
// ascending within a product; ties keep their original row order.
type BookEntry struct {
	PriceEURPerMWh float64
	CapacityMW     float64
	SourceFile     string
}

// CumulativePoint is one step of the merit-order walk.
type CumulativePoint struct {
	CumulativeMW   float64
	PriceEURPerMWh float64
}

// BidBook holds the offers of one delivery date grouped by product
// code. It is rebuilt from the store whenever the date's bids change,
// never mutated in place.
type BidBook struct {
	Date   time.Time
	offers map[string][]BookEntry
}

type BidBookService struct {
	log *logrus.Logger
}

func NewBidBookService(log *logrus.Logger) (*BidBookService, error) {
	if log == nil {
		return nil, errors.New("logger is nil")
	}

	return &BidBookService{log: log}, nil
}

// Build groups the date's bids by product and stable-sorts each group
// ascending by price. Bids without a parsable price are skipped here;
// they exist for audit only.
func (s *BidBookService) Build(date time.Time, bids []models.Bid) (*BidBook, error) {
	if s == nil {
		return nil, errors.New("bid book service is nil")
	}

	book := &BidBook{
		Date:   date,
		offers: make(map[string][]BookEntry),
	}

	for _, bid := range bids {
		if bid.PriceEURPerMWh == nil {
			continue
		}
		if !sameDay(bid.DeliveryDate, date) {
			continue
		}
		book.offers[bid.ProductCode] = append(book.offers[bid.ProductCode], BookEntry{
			PriceEURPerMWh: *bid.PriceEURPerMWh,
			CapacityMW:     bid.AllocatedCapacityMW,
			SourceFile:     bid.SourceFile,
		})
	}

	for product := range book.offers {
		entries := book.offers[product]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].PriceEURPerMWh < entries[j].PriceEURPerMWh
		})
		book.offers[product] = entries
	}

	return book, nil
}

// Offers returns the sorted merit order for an exact product code.
func (b *BidBook) Offers(productCode string) []BookEntry {
	if b == nil {
		return nil
	}
	return b.offers[productCode]
}

// Products lists every product code with at least one priced offer.
func (b *BidBook) Products() []string {
	if b == nil {
		return nil
	}
	products := make([]string, 0, len(b.offers))
	for product := range b.offers {
		products = append(products, product)
	}
	sort.Strings(products)
	return products
}

// CumulativeCapacity returns a lazy walk over a product's merit order.
// Each call to the returned function yields the next cumulative
// capacity point; the consumer stops as soon as the target volume is
// covered.
func (b *BidBook) CumulativeCapacity(productCode string) func() (CumulativePoint, bool) {
	entries := b.Offers(productCode)
	index := 0
	cumulative := 0.0
	return func() (CumulativePoint, bool) {
		if index >= len(entries) {
			return CumulativePoint{}, false
		}
		entry := entries[index]
		index++
		cumulative += entry.CapacityMW
		return CumulativePoint{CumulativeMW: cumulative, PriceEURPerMWh: entry.PriceEURPerMWh}, true
	}
}

// TotalCapacity sums a product's offered capacity.
func (b *BidBook) TotalCapacity(productCode string) float64 {
	total := 0.0
	for _, entry := range b.Offers(productCode) {
		total += entry.CapacityMW
	}
	return total
}

// productCodeVariants are the fallback normalizations tried in order
// when an exact product code has no offers. Each is a pure function so
// it can be tested on its own.
var productCodeVariants = []func(string) string{
	HyphenVariant,
	NoSeparatorVariant,
	LowerVariant,
	UnpaddedVariant,
}

func HyphenVariant(code string) string {
	return strings.ReplaceAll(code, "_", "-")
}

func NoSeparatorVariant(code string) string {
	return strings.ReplaceAll(code, "_", "")
}

func LowerVariant(code string) string {
	return strings.ToLower(code)
}

// UnpaddedVariant strips leading zeros from the numeric suffix:
// NEG_007 becomes NEG_7.
func UnpaddedVariant(code string) string {
	prefix, number, ok := splitNumericSuffix(code)
	if !ok {
		return code
	}
	return prefix + strconv.Itoa(number)
}

// Resolve finds the merit order for a product code, applying the
// fallback variants and finally a wildcard match on the numeric
// suffix. It returns the offers, the code that matched and whether
// anything was found.
func (s *BidBookService) Resolve(book *BidBook, productCode string) ([]BookEntry, string, bool) {
	if s == nil || book == nil || productCode == "" {
		return nil, "", false
	}

	if offers := book.Offers(productCode); len(offers) > 0 {
		return offers, productCode, true
	}

	for _, variant := range productCodeVariants {
		candidate := variant(productCode)
		if candidate == productCode {
			continue
		}
		if offers := book.Offers(candidate); len(offers) > 0 {
			s.log.WithFields(logrus.Fields{
				"requested": productCode,
				"matched":   candidate,
				"date":      book.Date.Format("2006-01-02"),
			}).Info("product code matched through fallback normalization")
			return offers, candidate, true
		}
	}

	if offers, matched := s.wildcardNumericMatch(book, productCode); len(offers) > 0 {
		s.log.WithFields(logrus.Fields{
			"requested": productCode,
			"matched":   matched,
			"date":      book.Date.Format("2006-01-02"),
		}).Info("product code matched through numeric wildcard")
		return offers, matched, true
	}

	return nil, "", false
}

// wildcardNumericMatch compares only the numeric suffix, ignoring
// separators and case, restricted to the same market side.
func (s *BidBookService) wildcardNumericMatch(book *BidBook, productCode string) ([]BookEntry, string) {
	_, wanted, ok := splitNumericSuffix(productCode)
	if !ok {
		return nil, ""
	}
	side := sidePrefix(productCode)

	for _, product := range book.Products() {
		if sidePrefix(product) != side {
			continue
		}
		_, number, ok := splitNumericSuffix(product)
		if !ok || number != wanted {
			continue
		}
		return book.Offers(product), product
	}

	return nil, ""
}

// splitNumericSuffix separates the trailing digits of a product code
// from its prefix: "NEG_014" yields ("NEG_", 14, true).
func splitNumericSuffix(code string) (string, int, bool) {
	i := len(code)
	for i > 0 && code[i-1] >= '0' && code[i-1] <= '9' {
		i--
	}
	if i == len(code) {
		return code, 0, false
	}
	number, err := strconv.Atoi(code[i:])
	if err != nil {
		return code, 0, false
	}
	return code[:i], number, true
}

func sidePrefix(code string) string {
	normalized := strings.ToUpper(code)
	if strings.HasPrefix(normalized, "NEG") {
		return "NEG"
	}
	if strings.HasPrefix(normalized, "POS") {
		return "POS"
	}
	return ""
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
