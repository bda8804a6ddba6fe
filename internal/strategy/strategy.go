// Package strategy turns a position analysis into a negotiation posture, a
// concrete next offer, and human-readable justifications. Everything here is
// pure and deterministic: no randomness, no learned weights.
package strategy

import (
	"math"

	"github.com/econexus/parley/internal/analysis"
)

// Strategy types.
const (
	TypeOpening    = "opening"
	TypeSettlement = "settlement"
	TypeLeverage   = "leverage"
	TypeAccept     = "accept"
	TypeMovement   = "movement"
	TypeStandard   = "standard"
)

// Strategy approaches.
const (
	ApproachFlexible    = "flexible"
	ApproachCompromise  = "compromise"
	ApproachAssertive   = "assertive"
	ApproachCooperative = "cooperative"
	ApproachBalanced    = "balanced"
)

// Strategy is one recommended negotiation posture.
type Strategy struct {
	Type     string
	Approach string
	Note     string
}

// Selection holds all strategies that matched, in rule order. Primary is the
// first match; the rest are secondary.
type Selection struct {
	Primary             Strategy
	Secondary           []Strategy
	RecommendedApproach string
}

// Select evaluates the rule table in order and returns every matching
// strategy.
func Select(pos analysis.Position) Selection {
	var matched []Strategy

	if pos.Progress.Stage == analysis.StageInitial || pos.Progress.Stage == analysis.StageEarly {
		matched = append(matched, Strategy{
			Type:     TypeOpening,
			Approach: ApproachFlexible,
			Note:     "Start with a reasonable opening offer that shows willingness to negotiate",
		})
	}

	if pos.Progress.Stage == analysis.StageNearSettlement {
		matched = append(matched, Strategy{
			Type:     TypeSettlement,
			Approach: ApproachCompromise,
			Note:     "We are close to agreement. Consider making a final reasonable offer to close the deal.",
		})
	}

	if pos.Leverage.HasLeverage && pos.Leverage.Strength == analysis.LeverageStrong {
		matched = append(matched, Strategy{
			Type:     TypeLeverage,
			Approach: ApproachAssertive,
			Note:     pos.Leverage.Statement + ". Use this to negotiate better terms.",
		})
	}

	if pos.OtherLastOffer != nil && pos.OtherLastOffer.Price > 0 {
		target := NextOffer(pos)
		percentDiff := math.Abs(target-pos.OtherLastOffer.Price) / pos.OtherLastOffer.Price * 100
		if percentDiff < 5 {
			matched = append(matched, Strategy{
				Type:     TypeAccept,
				Approach: ApproachCooperative,
				Note:     "The other party's offer is very close to your position. Consider accepting or making a small final counter-offer.",
			})
		}
	}

	if pos.Rounds > 3 && pos.Progress.Convergence < 50 {
		matched = append(matched, Strategy{
			Type:     TypeMovement,
			Approach: ApproachFlexible,
			Note:     "We've been negotiating for several rounds. Consider making a more significant move to show good faith.",
		})
	}

	if len(matched) == 0 {
		matched = append(matched, Strategy{
			Type:     TypeStandard,
			Approach: ApproachBalanced,
			Note:     "Continue negotiating with a balanced approach, considering both parties' interests.",
		})
	}

	return Selection{
		Primary:             matched[0],
		Secondary:           matched[1:],
		RecommendedApproach: matched[0].Approach,
	}
}
