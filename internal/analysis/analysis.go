// Package analysis computes a negotiation side's position from the full
// thread history. The analyzer is a pure function of its inputs: nothing is
// cached or stored, so recomputing on an unchanged history yields identical
// output and the engine stays trivially resumable.
package analysis

import (
	"math"

	"github.com/econexus/parley/internal/models"
	"github.com/econexus/parley/internal/offer"
	"github.com/econexus/parley/internal/pricing"
)

// Side identifies which party an analysis is computed for.
type Side string

// Negotiation sides.
const (
	Buyer  Side = "BUYER"
	Seller Side = "SELLER"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Buyer {
		return Seller
	}
	return Buyer
}

// AgentSender returns the ChatMessage sender type for this side's agent.
func (s Side) AgentSender() string {
	if s == Buyer {
		return models.SenderAgentBuyer
	}
	return models.SenderAgentSeller
}

// Input bundles everything the analyzer reads.
type Input struct {
	Side            Side
	Request         models.BuyerRequest
	Quote           models.SellerQuote
	History         []models.ChatMessage
	CompetingQuotes []models.SellerQuote
	Guidelines      string
}

// Position is the analyzer's output for one side. It is ephemeral and
// recomputed every round.
type Position struct {
	Side          Side
	OriginalPrice float64 // seller's opening quote
	MaxBudget     float64 // buyer's stated maximum
	Floor         float64 // this side's lowest acceptable price
	Ceiling       float64 // this side's highest acceptable price
	FairPrice     float64 // fair-market anchor
	ProductKnown  bool    // whether the anchor came from the reference table

	OwnOffers      []offer.Offer
	LastOffer      *offer.Offer
	OtherLastOffer *offer.Offer

	Progress Progress
	Leverage Leverage

	Guidelines string
	Rounds     int // completed agent rounds so far
}

// Analyze computes the position for one side of a thread.
func Analyze(in Input) Position {
	originalPrice := in.Quote.Price
	maxBudget := in.Request.MaxPrice

	fair, rangeMin, rangeMax, known := anchor(in.Request, originalPrice)

	pos := Position{
		Side:          in.Side,
		OriginalPrice: originalPrice,
		MaxBudget:     maxBudget,
		FairPrice:     fair,
		ProductKnown:  known,
		Guidelines:    in.Guidelines,
		Rounds:        countRounds(in.History),
	}

	switch in.Side {
	case Buyer:
		// A buyer never offers below half their stated budget, nor above
		// either their budget or the product's market ceiling.
		pos.Floor = math.Max(rangeMin, maxBudget*0.5)
		pos.Ceiling = math.Min(rangeMax, maxBudget)
	case Seller:
		// A seller won't go below the market floor, and their negotiating
		// ceiling is their own opening price: sellers only move down.
		pos.Floor = rangeMin
		pos.Ceiling = originalPrice
	}
	if pos.Floor > pos.Ceiling {
		pos.Floor = pos.Ceiling
	}

	pos.OwnOffers = offer.History(in.History, in.Side.AgentSender())
	if last, ok := offer.Last(pos.OwnOffers); ok {
		pos.LastOffer = &last
	}
	otherOffers := offer.History(in.History, in.Side.Opponent().AgentSender())
	if last, ok := offer.Last(otherOffers); ok {
		pos.OtherLastOffer = &last
	}

	pos.Progress = computeProgress(originalPrice, fair, pos.LastOffer, pos.OtherLastOffer)
	pos.Leverage = analyzeLeverage(in.CompetingQuotes, originalPrice, in.Side)

	return pos
}

// anchor resolves the fair-market anchor and the quantity-scaled reference
// range. When the product is absent from the reference table, the anchor
// falls back to the midpoint of (buyer's budget, seller's original quote)
// and the range degrades to [half the budget, max(quote, budget)].
func anchor(req models.BuyerRequest, originalPrice float64) (fair, rangeMin, rangeMax float64, known bool) {
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}
	if r, ok := pricing.Lookup(req.ProductName); ok {
		rangeMin = r.Min * float64(qty)
		rangeMax = r.Max * float64(qty)
		return (rangeMin + rangeMax) / 2, rangeMin, rangeMax, true
	}
	fair = (req.MaxPrice + originalPrice) / 2
	rangeMin = req.MaxPrice * 0.5
	rangeMax = math.Max(originalPrice, req.MaxPrice)
	return fair, rangeMin, rangeMax, false
}

// countRounds counts completed agent rounds (one buyer message plus one
// seller message) in the history.
func countRounds(msgs []models.ChatMessage) int {
	agentMsgs := 0
	for _, m := range msgs {
		if m.SenderType == models.SenderAgentBuyer || m.SenderType == models.SenderAgentSeller {
			agentMsgs++
		}
	}
	return agentMsgs / 2
}
