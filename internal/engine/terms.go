package engine

import (
	"math"
	"regexp"
	"strconv"

	"github.com/econexus/parley/internal/models"
)

var (
	termsPricePattern    = regexp.MustCompile(`\$(\d+\.?\d*)`)
	termsDeliveryPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:day|days)`)
)

// Terms are the concrete values extracted from a finished negotiation.
type Terms struct {
	Price            float64
	DeliveryDays     int
	OriginalPrice    float64
	OriginalDelivery int
	PriceChanged     bool
	DeliveryChanged  bool
}

// ExtractTerms scans agent messages for the final negotiated price and
// delivery window, defaulting to the quote's values when nothing usable was
// said. The most recent mention wins. Prices outside (0, 2x quote] and
// delivery outside (0, 365] days are treated as noise.
func ExtractTerms(msgs []models.ChatMessage, quote models.SellerQuote) Terms {
	terms := Terms{
		Price:            quote.Price,
		DeliveryDays:     quote.DeliveryDays,
		OriginalPrice:    quote.Price,
		OriginalDelivery: quote.DeliveryDays,
	}

	for _, m := range msgs {
		if !m.FromAgent() {
			continue
		}
		for _, match := range termsPricePattern.FindAllStringSubmatch(m.Content, -1) {
			price, err := strconv.ParseFloat(match[1], 64)
			if err == nil && price > 0 && price < 10000 {
				terms.Price = price
			}
		}
		for _, match := range termsDeliveryPattern.FindAllStringSubmatch(m.Content, -1) {
			days, err := strconv.Atoi(match[1])
			if err == nil && days > 0 && days < 365 {
				terms.DeliveryDays = days
			}
		}
	}

	if terms.Price <= 0 || terms.Price > quote.Price*2 {
		terms.Price = quote.Price
	}
	if terms.DeliveryDays <= 0 || terms.DeliveryDays > 365 {
		terms.DeliveryDays = quote.DeliveryDays
	}

	terms.PriceChanged = math.Abs(terms.Price-quote.Price) > 0.01
	terms.DeliveryChanged = terms.DeliveryDays != quote.DeliveryDays
	return terms
}
