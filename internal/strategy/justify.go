package strategy

import (
	"fmt"
	"math"

	"github.com/econexus/parley/internal/analysis"
)

// Justification types.
const (
	JustifyPrice      = "price"
	JustifyMarket     = "market"
	JustifyFairness   = "fairness"
	JustifyGuidelines = "guidelines"
)

// Justification is one human-readable reason backing an offer.
type Justification struct {
	Type     string
	Reason   string
	Fairness string
}

// Justify builds the reasons an agent can cite for proposing offerPrice.
func Justify(pos analysis.Position, offerPrice float64) []Justification {
	var out []Justification
	isBuyer := pos.Side == analysis.Buyer

	if offerPrice > 0 {
		original := pos.OriginalPrice
		percentDiff := 0.0
		if original > 0 {
			percentDiff = math.Abs(offerPrice-original) / original * 100
		}

		var j Justification
		j.Type = JustifyPrice
		switch {
		case isBuyer && offerPrice < original:
			j.Reason = fmt.Sprintf("My offer of $%.2f is %.1f%% below your original quote of $%.2f.", offerPrice, percentDiff, original)
			j.Fairness = "This is a reasonable starting point for negotiation."
		case isBuyer:
			j.Reason = fmt.Sprintf("I'm offering $%.2f, which is close to your original quote.", offerPrice)
			j.Fairness = "This shows my commitment to reaching a fair agreement."
		case offerPrice >= original:
			j.Reason = fmt.Sprintf("My price of $%.2f reflects the quality and sustainability of the product.", offerPrice)
			j.Fairness = "This is a fair market price for the value provided."
		default:
			j.Reason = fmt.Sprintf("I'm willing to offer $%.2f, which is a competitive price.", offerPrice)
			j.Fairness = "This demonstrates my commitment to working with you."
		}
		out = append(out, j)
	}

	if pos.Leverage.HasLeverage {
		out = append(out, Justification{
			Type:     JustifyMarket,
			Reason:   pos.Leverage.Statement,
			Fairness: "This reflects current market conditions and competitive pricing.",
		})
	}

	if pos.FairPrice > 0 {
		percentFromFair := math.Abs(offerPrice-pos.FairPrice) / pos.FairPrice * 100
		if percentFromFair < 10 {
			out = append(out, Justification{
				Type:     JustifyFairness,
				Reason:   fmt.Sprintf("This offer is close to the fair market price of $%.2f.", pos.FairPrice),
				Fairness: "It represents a balanced and fair agreement for both parties.",
			})
		}
	}

	if pos.Guidelines != "" {
		out = append(out, Justification{
			Type:     JustifyGuidelines,
			Reason:   "This offer aligns with the negotiation guidelines we established.",
			Fairness: "It respects both parties' stated preferences and constraints.",
		})
	}

	return out
}
