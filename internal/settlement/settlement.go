// Package settlement decides whether a negotiation round has produced an
// agreement.
package settlement

import (
	"math"
	"strings"

	"github.com/econexus/parley/internal/analysis"
	"github.com/econexus/parley/internal/offer"
)

// Settlement reason tags.
const (
	ReasonExplicit        = "explicit_agreement"
	ReasonBuyerDemandMet  = "buyer_demand_met"
	ReasonSellerDemandMet = "seller_demand_met"
	ReasonConvergence     = "price_convergence"
	ReasonPriceClose      = "price_close"
	ReasonNone            = "no_settlement"
)

// agreementKeywords are phrases whose presence in both agents' messages
// constitutes an explicit agreement.
var agreementKeywords = []string{
	"accept", "agreed", "deal", "accepted", "agreement",
	"we have a deal", "i accept", "sounds good", "agreed to",
	"final price", "final terms", "we agree", "mutually agreed",
	"let's proceed", "confirmed", "settled",
}

// Result describes the outcome of a settlement check.
type Result struct {
	Settled     bool
	Reason      string
	BuyerPrice  float64
	SellerPrice float64
	BuyerOk     bool // whether a price was extracted from the buyer message
	SellerOk    bool
	PriceDiff   float64
	FinalPrice  float64
}

// Check examines the two most recent agent messages against both sides'
// analyses and decides whether the round settled. Any one condition
// suffices: explicit agreement keywords in both messages, the seller's
// offer at or below the buyer's budget, the buyer's offer at or above the
// seller's floor, or near-identical prices while convergence is high.
//
// Note the seller-demand rule fires whenever the buyer's offer reaches the
// seller's floor, even if the seller's own latest message asked for more.
// This mirrors the marketplace's documented behavior.
func Check(buyerMessage, sellerMessage string, buyerPos, sellerPos analysis.Position) Result {
	buyerLower := strings.ToLower(buyerMessage)
	sellerLower := strings.ToLower(sellerMessage)

	buyerAgrees := containsAny(buyerLower, agreementKeywords)
	sellerAgrees := containsAny(sellerLower, agreementKeywords)

	res := Result{Reason: ReasonNone}
	res.BuyerPrice, res.BuyerOk = offer.Extract(buyerMessage)
	res.SellerPrice, res.SellerOk = offer.Extract(sellerMessage)

	if res.BuyerOk && res.SellerOk {
		res.PriceDiff = math.Abs(res.BuyerPrice - res.SellerPrice)
	}
	switch {
	case res.BuyerOk:
		res.FinalPrice = res.BuyerPrice
	case res.SellerOk:
		res.FinalPrice = res.SellerPrice
	}

	switch {
	case buyerAgrees && sellerAgrees:
		res.Settled = true
		res.Reason = ReasonExplicit

	case res.SellerOk && res.SellerPrice <= buyerPos.MaxBudget:
		res.Settled = true
		res.Reason = ReasonBuyerDemandMet
		res.FinalPrice = res.SellerPrice

	case res.BuyerOk && res.BuyerPrice >= sellerPos.Floor:
		res.Settled = true
		res.Reason = ReasonSellerDemandMet
		res.FinalPrice = res.BuyerPrice

	case res.BuyerOk && res.SellerOk && pricesClose(res.BuyerPrice, res.SellerPrice):
		if buyerPos.Progress.Convergence > 85 {
			res.Settled = true
			res.Reason = ReasonConvergence
		} else {
			// Close prices without high convergence: not settled yet.
			res.Reason = ReasonPriceClose
		}
	}

	return res
}

// pricesClose reports whether two prices differ by under 2% or under $5.
func pricesClose(a, b float64) bool {
	diff := math.Abs(a - b)
	percent := diff / math.Max(a, b) * 100
	return percent < 2 || diff < 5
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
