package engine

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/econexus/parley/internal/analysis"
	"github.com/econexus/parley/internal/llm"
	"github.com/econexus/parley/internal/models"
	"github.com/econexus/parley/internal/strategy"
)

// turnTemplate is the user prompt for one agent turn.
const turnTemplate = `You are {{ .AgentName }}, the {{ .Role }} Negotiation Agent. Your PRIMARY OBJECTIVE is to maximize profit for your {{ .RoleLower }}.

{{ .Goal }}

BUYER REQUEST:
- Product: {{ .Product }}
- Quantity: {{ .Quantity }}
- Max Budget: ${{ printf "%.2f" .MaxBudget }}
- Desired Carbon Score: {{ .CarbonScore }}

CURRENT QUOTE:
- Price: ${{ printf "%.2f" .QuotePrice }}
- Carbon Score: {{ .QuoteCarbonScore }}
- Delivery Days: {{ .DeliveryDays }}
{{ if .Competing }}
COMPETING QUOTES (for reference):
{{ range .Competing }}- ${{ printf "%.2f" .Price }} ({{ .DeliveryDays }} days)
{{ end }}{{ end }}
{{ if .Guidelines }}YOUR USER'S ADDITIONAL GUIDELINES: {{ .Guidelines }}
{{ end }}
NEGOTIATION STATUS:
- Current Round: {{ .Round }} of {{ .MaxRounds }}
- {{ if .FinalRound }}THIS IS THE FINAL ROUND - Try to reach an agreement now!{{ else }}You have {{ .RoundsLeft }} round(s) left. Make progress toward agreement.{{ end }}

YOUR POSITION ANALYSIS:
- Fair market anchor: ${{ printf "%.2f" .FairPrice }}
- Your acceptable range: ${{ printf "%.2f" .Floor }} to ${{ printf "%.2f" .Ceiling }}
- Recommended strategy: {{ .StrategyType }} ({{ .Approach }}). {{ .StrategyNote }}
- Calculated next offer: ${{ printf "%.2f" .TargetOffer }}
{{ if .Justifications }}
REASONS YOU CAN CITE:
{{ range .Justifications }}- {{ . }}
{{ end }}{{ end }}
RECENT NEGOTIATION MESSAGES (last 6 messages):
{{ if .RecentMessages }}{{ range .RecentMessages }}{{ . }}
{{ end }}{{ else }}No previous messages
{{ end }}{{ if .OtherAgentMessage }}
LATEST MESSAGE FROM {{ .OtherRole }} AGENT:
"{{ .OtherAgentMessage }}"

Respond directly to this message.
{{ end }}
INSTRUCTIONS:
- Be assertive and profit-focused
- Use SPECIFIC numbers (prices, delivery days)
- Make concrete offers or counter-offers, staying inside your acceptable range
- CRITICAL: If the other agent's price matches your offer (within $1), you MUST immediately respond with: "I accept! We have a deal at $[price]. Let's proceed."
- If prices are equal or very close, explicitly state "I agree" or "We have a deal"
- If you agree to terms, clearly state "I accept" or "We have a deal" - don't just imply it
- {{ if .FinalRound }}This is the final round - be willing to compromise to reach agreement{{ else }}Make reasonable progress toward agreement{{ end }}
- Keep messages to 2-4 sentences, direct and specific
{{ if .Diverge }}- Your previous message repeated itself. Say something NEW this round and state a different number than last time.
{{ end }}
Write your negotiation message:`

// confirmationTemplate is the user prompt for an agreement confirmation.
const confirmationTemplate = `You are {{ .AgentName }}, the {{ .Role }} Negotiation Agent.

You have just reached an AGREEMENT with the {{ .OtherRoleLower }}!

AGREED TERMS:
- Price: ${{ printf "%.2f" .AgreedPrice }}
- Product: {{ .Product }}
- Quantity: {{ .Quantity }}

BUYER'S LAST MESSAGE: "{{ .BuyerMessage }}"
SELLER'S LAST MESSAGE: "{{ .SellerMessage }}"

Write a brief confirmation message (1-2 sentences) acknowledging the agreement. Be professional and positive. Examples:
- "Excellent! I accept. We have a deal at ${{ printf "%.2f" .AgreedPrice }}. Looking forward to working together."
- "Perfect! We're in agreement. The deal is confirmed at ${{ printf "%.2f" .AgreedPrice }}."

Write your confirmation message:`

var (
	turnTmpl         = template.Must(template.New("turn").Parse(turnTemplate))
	confirmationTmpl = template.Must(template.New("confirmation").Parse(confirmationTemplate))
)

// turnPromptData carries the raw inputs for one turn prompt.
type turnPromptData struct {
	Input          turnInput
	Position       analysis.Position
	Selection      strategy.Selection
	TargetOffer    float64
	Justifications []strategy.Justification
	MaxRounds      int
	Diverge        bool
}

// turnView is the flattened template payload.
type turnView struct {
	AgentName         string
	Role              string
	RoleLower         string
	Goal              string
	Product           string
	Quantity          int
	MaxBudget         float64
	CarbonScore       string
	QuotePrice        float64
	QuoteCarbonScore  string
	DeliveryDays      int
	Competing         []models.SellerQuote
	Guidelines        string
	Round             int
	MaxRounds         int
	RoundsLeft        int
	FinalRound        bool
	FairPrice         float64
	Floor             float64
	Ceiling           float64
	StrategyType      string
	Approach          string
	StrategyNote      string
	TargetOffer       float64
	Justifications    []string
	RecentMessages    []string
	OtherRole         string
	OtherAgentMessage string
	Diverge           bool
}

// renderTurnPrompt builds the system and user prompt for one agent turn.
func renderTurnPrompt(d turnPromptData) (llm.Prompt, error) {
	in := d.Input
	isBuyer := in.side == analysis.Buyer
	role := string(in.side)

	goal := fmt.Sprintf("YOUR GOAL: Maximize seller profit by negotiating the HIGHEST possible price. The current quote is $%.2f. DO NOT go below $%.2f. Try to maintain or increase this price while offering reasonable delivery terms. Protect your profit margins.",
		in.quote.Price, d.Position.Floor)
	if isBuyer {
		goal = fmt.Sprintf("YOUR GOAL: Maximize buyer profit by negotiating the LOWEST possible price. Your buyer's maximum budget is $%.2f. DO NOT go above $%.2f. Try to get the price as low as possible while staying within budget. Also negotiate for faster delivery and better terms.",
			in.request.MaxPrice, d.Position.Ceiling)
	}

	var reasons []string
	for _, j := range d.Justifications {
		reasons = append(reasons, j.Reason+" "+j.Fairness)
	}

	competing := in.competing
	if len(competing) > 3 {
		competing = competing[:3]
	}

	v := turnView{
		AgentName:         in.agentName,
		Role:              role,
		RoleLower:         strings.ToLower(role),
		Goal:              goal,
		Product:           in.request.ProductName,
		Quantity:          in.request.Quantity,
		MaxBudget:         in.request.MaxPrice,
		CarbonScore:       formatScore(in.request.DesiredCarbonScore),
		QuotePrice:        in.quote.Price,
		QuoteCarbonScore:  formatScore(in.quote.CarbonScore),
		DeliveryDays:      in.quote.DeliveryDays,
		Competing:         competing,
		Guidelines:        d.Position.Guidelines,
		Round:             in.round,
		MaxRounds:         d.MaxRounds,
		RoundsLeft:        d.MaxRounds - in.round,
		FinalRound:        in.round >= d.MaxRounds,
		FairPrice:         d.Position.FairPrice,
		Floor:             d.Position.Floor,
		Ceiling:           d.Position.Ceiling,
		StrategyType:      d.Selection.Primary.Type,
		Approach:          d.Selection.RecommendedApproach,
		StrategyNote:      d.Selection.Primary.Note,
		TargetOffer:       d.TargetOffer,
		Justifications:    reasons,
		RecentMessages:    recentMessages(in.history, 6),
		OtherRole:         string(in.side.Opponent()),
		OtherAgentMessage: lastOpponentContent(in.history, in.side),
		Diverge:           d.Diverge,
	}

	var buf bytes.Buffer
	if err := turnTmpl.Execute(&buf, v); err != nil {
		return llm.Prompt{}, fmt.Errorf("engine: render turn prompt: %w", err)
	}

	posture := "You defend your prices and negotiate favorable terms."
	if isBuyer {
		posture = "You push for lower prices and better terms."
	}
	system := fmt.Sprintf("You are %s, a professional %s negotiation agent focused on maximizing profit. You are assertive, use specific numbers, and make concrete offers. %s",
		in.agentName, strings.ToLower(role), posture)

	return llm.Prompt{System: system, User: buf.String()}, nil
}

// confirmationPromptData carries the inputs for a confirmation prompt.
type confirmationPromptData struct {
	Side          analysis.Side
	AgentName     string
	Request       models.BuyerRequest
	AgreedPrice   float64
	BuyerMessage  string
	SellerMessage string
}

// renderConfirmationPrompt builds the prompt for an agreement confirmation.
func renderConfirmationPrompt(d confirmationPromptData) (llm.Prompt, error) {
	v := struct {
		AgentName      string
		Role           string
		OtherRoleLower string
		Product        string
		Quantity       int
		AgreedPrice    float64
		BuyerMessage   string
		SellerMessage  string
	}{
		AgentName:      d.AgentName,
		Role:           string(d.Side),
		OtherRoleLower: strings.ToLower(string(d.Side.Opponent())),
		Product:        d.Request.ProductName,
		Quantity:       d.Request.Quantity,
		AgreedPrice:    d.AgreedPrice,
		BuyerMessage:   d.BuyerMessage,
		SellerMessage:  d.SellerMessage,
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, v); err != nil {
		return llm.Prompt{}, fmt.Errorf("engine: render confirmation prompt: %w", err)
	}

	system := fmt.Sprintf("You are %s, a professional %s negotiation agent. You have just reached an agreement and need to confirm it formally.",
		d.AgentName, strings.ToLower(string(d.Side)))
	return llm.Prompt{System: system, User: buf.String()}, nil
}

// recentMessages formats the last n messages as "Sender: content" lines.
func recentMessages(history []models.ChatMessage, n int) []string {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	var out []string
	for _, m := range history[start:] {
		name := m.SenderName
		if name == "" {
			name = m.SenderType
		}
		out = append(out, fmt.Sprintf("%s: %s", name, m.Content))
	}
	return out
}

// lastOpponentContent returns the opposing agent's most recent message.
func lastOpponentContent(history []models.ChatMessage, side analysis.Side) string {
	if m, ok := lastBySender(history, side.Opponent().AgentSender()); ok {
		return m.Content
	}
	return ""
}

// formatScore renders an optional carbon score, using N/A when unset.
func formatScore(score float64) string {
	if score <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", score)
}
