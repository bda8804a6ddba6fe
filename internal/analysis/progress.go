package analysis

import (
	"math"

	"github.com/econexus/parley/internal/offer"
)

// Negotiation stages.
const (
	StageInitial        = "initial"
	StageEarly          = "early"
	StageNegotiating    = "negotiating"
	StageNearSettlement = "near_settlement"
)

// Offer movement directions.
const (
	DirectionNone         = "none"
	DirectionConverging   = "converging"
	DirectionBuyerLower   = "buyer_lower"
	DirectionSellerHigher = "seller_higher"
)

// Progress describes how far a negotiation has converged toward the fair
// anchor. Convergence is 0-100; 100 means both sides sit exactly on the
// anchor.
type Progress struct {
	Stage       string
	Convergence float64
	Direction   string
	MyPrice     float64
	TheirPrice  float64
}

// computeProgress derives the convergence score and stage from both sides'
// last offers. Sides that haven't offered yet are assumed to stand at the
// original quoted price.
func computeProgress(originalPrice, fairPrice float64, lastOffer, otherOffer *offer.Offer) Progress {
	if lastOffer == nil && otherOffer == nil {
		return Progress{Stage: StageInitial, Convergence: 0, Direction: DirectionNone}
	}

	myPrice := originalPrice
	if lastOffer != nil {
		myPrice = lastOffer.Price
	}
	theirPrice := originalPrice
	if otherOffer != nil {
		theirPrice = otherOffer.Price
	}

	myDistance := math.Abs(myPrice - fairPrice)
	theirDistance := math.Abs(theirPrice - fairPrice)
	totalRange := math.Abs(originalPrice-fairPrice) * 2

	var convergence float64
	switch {
	case totalRange > 0:
		convergence = math.Max(0, 100-(myDistance+theirDistance)/totalRange*100)
	case myDistance+theirDistance == 0:
		convergence = 100
	}

	direction := DirectionNone
	if lastOffer != nil && otherOffer != nil {
		diff := math.Abs(myPrice - theirPrice)
		switch {
		case diff < originalPrice*0.05:
			direction = DirectionConverging
		case myPrice < theirPrice:
			direction = DirectionBuyerLower
		default:
			direction = DirectionSellerHigher
		}
	}

	stage := StageEarly
	switch {
	case convergence > 80:
		stage = StageNearSettlement
	case convergence > 20:
		stage = StageNegotiating
	}

	return Progress{
		Stage:       stage,
		Convergence: convergence,
		Direction:   direction,
		MyPrice:     myPrice,
		TheirPrice:  theirPrice,
	}
}
