package strategy

import (
	"math"

	"github.com/econexus/parley/internal/analysis"
)

// maxStep caps how far an offer moves toward the anchor in one round.
const maxStep = 50.0

// stepFraction is the share of the remaining gap conceded per round.
const stepFraction = 0.15

// NextOffer computes the next price this side should propose. The result is
// always inside the side's [Floor, Ceiling] interval; buyers' offers never
// decrease round-over-round and sellers' never increase.
func NextOffer(pos analysis.Position) float64 {
	isBuyer := pos.Side == analysis.Buyer
	clamp := func(v float64) float64 {
		return math.Min(math.Max(v, pos.Floor), pos.Ceiling)
	}

	// Close the remaining distance when settlement is near.
	if pos.Progress.Stage == analysis.StageNearSettlement && pos.OtherLastOffer != nil {
		if pos.LastOffer == nil {
			return clamp(pos.FairPrice)
		}
		mid := (pos.LastOffer.Price + pos.OtherLastOffer.Price) / 2
		return monotonic(clamp(mid), clamp(pos.LastOffer.Price), isBuyer)
	}

	if pos.LastOffer != nil {
		own := pos.LastOffer.Price
		var next float64
		if isBuyer {
			gap := pos.FairPrice - own
			if gap <= 0 {
				// Already at or past the anchor: hold.
				return clamp(own)
			}
			next = own + math.Min(maxStep, stepFraction*gap)
		} else {
			gap := own - pos.FairPrice
			if gap <= 0 {
				return clamp(own)
			}
			next = own - math.Min(maxStep, stepFraction*gap)
		}
		return monotonic(clamp(next), clamp(own), isBuyer)
	}

	// Opening move.
	if isBuyer {
		open := math.Min(0.7*pos.FairPrice, 0.6*pos.OriginalPrice)
		return clamp(math.Max(pos.Floor, open))
	}
	// Sellers open at their own quoted price.
	return clamp(pos.OriginalPrice)
}

// monotonic enforces the round-over-round direction invariant: buyers never
// move below their previous offer, sellers never above. Both inputs must
// already be clamped so the result stays inside the interval.
func monotonic(next, prev float64, isBuyer bool) float64 {
	if isBuyer {
		return math.Max(next, prev)
	}
	return math.Min(next, prev)
}
