package analysis

import (
	"fmt"
	"math"

	"github.com/econexus/parley/internal/models"
)

// Leverage strength classifications.
const (
	LeverageNone     = "none"
	LeverageWeak     = "weak"
	LeverageModerate = "moderate"
	LeverageStrong   = "strong"
)

// Leverage is the negotiating strength a side gains from competing quotes on
// the same request. A buyer benefits from cheaper alternatives, a seller
// from pricier ones.
type Leverage struct {
	HasLeverage     bool
	Strength        string
	Statement       string
	BestAlternative float64
	BetterQuotes    int
}

// analyzeLeverage compares competing quotes to the price under negotiation
// from the given side's perspective. Strength classifies the differential of
// the best alternative: strong above 15%, moderate above 5%, weak otherwise.
func analyzeLeverage(competing []models.SellerQuote, currentPrice float64, side Side) Leverage {
	if len(competing) == 0 {
		return Leverage{Strength: LeverageNone}
	}

	isBuyer := side == Buyer
	better := 0
	best := competing[0].Price
	for _, q := range competing {
		if isBuyer {
			if q.Price < currentPrice {
				better++
			}
			best = math.Min(best, q.Price)
		} else {
			if q.Price > currentPrice {
				better++
			}
			best = math.Max(best, q.Price)
		}
	}
	if better == 0 {
		return Leverage{Strength: LeverageNone}
	}

	percentDiff := 0.0
	if currentPrice > 0 {
		percentDiff = math.Abs(best-currentPrice) / currentPrice * 100
	}

	lev := Leverage{
		HasLeverage:     true,
		BestAlternative: best,
		BetterQuotes:    better,
	}
	switch {
	case percentDiff > 15:
		lev.Strength = LeverageStrong
		if isBuyer {
			lev.Statement = fmt.Sprintf("There are %d better offers available (best: $%.2f)", better, best)
		} else {
			lev.Statement = fmt.Sprintf("There are %d competing offers (best: $%.2f)", better, best)
		}
	case percentDiff > 5:
		lev.Strength = LeverageModerate
		if isBuyer {
			lev.Statement = fmt.Sprintf("There are %d similar offers available", better)
		} else {
			lev.Statement = fmt.Sprintf("There are %d competing offers in similar range", better)
		}
	default:
		lev.Strength = LeverageWeak
		lev.Statement = fmt.Sprintf("There are %d alternative options", better)
	}
	return lev
}
