// Package engine runs agent-to-agent negotiation rounds. A round is one
// buyer-agent message followed by one seller-agent message, a settlement
// check, and, on agreement, confirmation messages and a recorded
// transaction. All state lives in the message log; the engine itself holds
// nothing between rounds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/econexus/parley/internal/analysis"
	"github.com/econexus/parley/internal/ids"
	"github.com/econexus/parley/internal/llm"
	"github.com/econexus/parley/internal/models"
	"github.com/econexus/parley/internal/notify"
	"github.com/econexus/parley/internal/offer"
	"github.com/econexus/parley/internal/settlement"
	"github.com/econexus/parley/internal/strategy"
)

// Sentinel errors returned by RunRound.
var (
	ErrThreadNotFound    = errors.New("engine: thread not found")
	ErrThreadClosed      = errors.New("engine: thread is closed")
	ErrGuidelinesMissing = errors.New("engine: both parties must provide guidelines before starting negotiation")
	ErrMaxRounds         = errors.New("engine: maximum negotiation rounds reached")
	ErrDataInconsistent  = errors.New("engine: thread references missing data")
)

// Deps holds the engine's collaborators and tuning knobs.
type Deps struct {
	DB        *gorm.DB
	Generator llm.Generator
	Notifier  notify.Notifier
	Timeout   time.Duration // per-generation deadline
	MaxRounds int
	TurnDelay time.Duration // pause between the two agent turns
	Out       io.Writer     // progress output; defaults to io.Discard
}

// Engine orchestrates negotiation rounds.
type Engine struct {
	deps Deps
}

// New creates an Engine, applying defaults for unset knobs.
func New(deps Deps) *Engine {
	if deps.Timeout == 0 {
		deps.Timeout = 30 * time.Second
	}
	if deps.MaxRounds == 0 {
		deps.MaxRounds = 3
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Engine{deps: deps}
}

// RoundResult is the outcome of one completed round.
type RoundResult struct {
	Round              int
	BuyerMessage       models.ChatMessage
	SellerMessage      models.ChatMessage
	BuyerConfirmation  *models.ChatMessage
	SellerConfirmation *models.ChatMessage
	Settlement         settlement.Result
	ShouldContinue     bool
}

// MissingGuidelines reports which sides of a thread have not yet provided
// negotiation guidelines.
func MissingGuidelines(thread models.NegotiationThread) (buyer, seller bool) {
	return thread.BuyerGuidelines == "", thread.SellerGuidelines == ""
}

// RunRound executes one agent-to-agent round on a thread. Precondition
// failures leave the message log untouched.
func (e *Engine) RunRound(ctx context.Context, threadID string) (*RoundResult, error) {
	var thread models.NegotiationThread
	if err := e.deps.DB.First(&thread, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("engine: load thread: %w", err)
	}
	if thread.Status == models.ThreadClosed {
		return nil, ErrThreadClosed
	}
	if buyerMissing, sellerMissing := MissingGuidelines(thread); buyerMissing || sellerMissing {
		return nil, ErrGuidelinesMissing
	}

	var request models.BuyerRequest
	if err := e.deps.DB.First(&request, "id = ?", thread.RequestID).Error; err != nil {
		return nil, fmt.Errorf("%w: request %s", ErrDataInconsistent, thread.RequestID)
	}
	var quote models.SellerQuote
	if err := e.deps.DB.First(&quote, "id = ?", thread.QuoteID).Error; err != nil {
		return nil, fmt.Errorf("%w: quote %s", ErrDataInconsistent, thread.QuoteID)
	}

	var competing []models.SellerQuote
	if err := e.deps.DB.
		Where("request_id = ? AND id <> ? AND status <> ?", thread.RequestID, quote.ID, models.QuoteRejected).
		Find(&competing).Error; err != nil {
		return nil, fmt.Errorf("engine: load competing quotes: %w", err)
	}

	history, err := e.loadHistory(threadID)
	if err != nil {
		return nil, err
	}

	round := countAgentRounds(history) + 1
	if round > e.deps.MaxRounds {
		return nil, ErrMaxRounds
	}
	fmt.Fprintf(e.deps.Out, "thread %s: round %d of %d\n", threadID, round, e.deps.MaxRounds)

	buyerName, sellerName := e.participantNames(thread)

	buyerMsg, err := e.agentTurn(ctx, turnInput{
		thread:    thread,
		side:      analysis.Buyer,
		agentName: buyerName,
		request:   request,
		quote:     quote,
		history:   history,
		competing: competing,
		round:     round,
	})
	if err != nil {
		return nil, err
	}

	if err := e.pause(ctx); err != nil {
		return nil, err
	}

	sellerMsg, err := e.agentTurn(ctx, turnInput{
		thread:    thread,
		side:      analysis.Seller,
		agentName: sellerName,
		request:   request,
		quote:     quote,
		history:   append(append([]models.ChatMessage{}, history...), buyerMsg),
		competing: competing,
		round:     round,
	})
	if err != nil {
		return nil, err
	}

	updated := append(append([]models.ChatMessage{}, history...), buyerMsg, sellerMsg)
	buyerPos := analysis.Analyze(analysis.Input{
		Side: analysis.Buyer, Request: request, Quote: quote,
		History: updated, CompetingQuotes: competing, Guidelines: thread.BuyerGuidelines,
	})
	sellerPos := analysis.Analyze(analysis.Input{
		Side: analysis.Seller, Request: request, Quote: quote,
		History: updated, CompetingQuotes: competing, Guidelines: thread.SellerGuidelines,
	})

	result := &RoundResult{
		Round:         round,
		BuyerMessage:  buyerMsg,
		SellerMessage: sellerMsg,
		Settlement:    settlement.Check(buyerMsg.Content, sellerMsg.Content, buyerPos, sellerPos),
	}
	result.ShouldContinue = !result.Settlement.Settled && round < e.deps.MaxRounds

	if result.Settlement.Settled {
		if err := e.settle(ctx, thread, request, quote, result, updated, buyerName, sellerName); err != nil {
			return nil, err
		}
	} else if thread.Status == models.ThreadOpen {
		if err := e.deps.DB.Model(&models.NegotiationThread{}).Where("id = ?", thread.ID).
			Update("status", models.ThreadNegotiating).Error; err != nil {
			return nil, fmt.Errorf("engine: mark thread negotiating: %w", err)
		}
	}

	return result, nil
}

// turnInput bundles everything one agent turn needs.
type turnInput struct {
	thread    models.NegotiationThread
	side      analysis.Side
	agentName string
	request   models.BuyerRequest
	quote     models.SellerQuote
	history   []models.ChatMessage
	competing []models.SellerQuote
	round     int
}

// agentTurn analyzes, generates, and persists one agent message.
func (e *Engine) agentTurn(ctx context.Context, in turnInput) (models.ChatMessage, error) {
	guidelines := in.thread.BuyerGuidelines
	if in.side == analysis.Seller {
		guidelines = in.thread.SellerGuidelines
	}
	pos := analysis.Analyze(analysis.Input{
		Side:            in.side,
		Request:         in.request,
		Quote:           in.quote,
		History:         in.history,
		CompetingQuotes: in.competing,
		Guidelines:      guidelines,
	})
	sel := strategy.Select(pos)
	target := strategy.NextOffer(pos)
	reasons := strategy.Justify(pos, target)

	content := e.generateTurn(ctx, in, pos, sel, target, reasons)

	content = e.avoidRepetition(ctx, in, pos, sel, target, reasons, content)

	// A message without a concrete number stalls the negotiation, so the
	// calculated offer is appended when the model produced none.
	if !containsPrice(content) {
		content = content + fmt.Sprintf(" To be concrete: I propose $%.2f.", target)
	}

	msg := models.ChatMessage{
		ID:         ids.New(),
		ThreadID:   in.thread.ID,
		SenderType: in.side.AgentSender(),
		SenderName: fmt.Sprintf("%s Agent (%s)", string(in.side), in.agentName),
		Content:    content,
		Hint:       sel.Primary.Note,
	}
	if err := e.deps.DB.Create(&msg).Error; err != nil {
		return models.ChatMessage{}, fmt.Errorf("engine: save %s message: %w", strings.ToLower(string(in.side)), err)
	}
	return msg, nil
}

// generateTurn calls the generator with a bounded context, falling back to a
// deterministic message on any failure.
func (e *Engine) generateTurn(ctx context.Context, in turnInput, pos analysis.Position, sel strategy.Selection, target float64, reasons []strategy.Justification) string {
	prompt, err := renderTurnPrompt(turnPromptData{
		Input:          in,
		Position:       pos,
		Selection:      sel,
		TargetOffer:    target,
		Justifications: reasons,
		MaxRounds:      e.deps.MaxRounds,
	})
	if err != nil {
		fmt.Fprintf(e.deps.Out, "thread %s: render prompt: %v\n", in.thread.ID, err)
		return fallbackMessage(in.side, target, in.quote, reasons)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.deps.Timeout)
	defer cancel()
	content, err := e.deps.Generator.Generate(genCtx, prompt)
	if err != nil {
		fmt.Fprintf(e.deps.Out, "thread %s: %s generation failed: %v\n", in.thread.ID, strings.ToLower(string(in.side)), err)
		return fallbackMessage(in.side, target, in.quote, reasons)
	}
	return strings.TrimSpace(content)
}

// avoidRepetition regenerates once when the agent's message is identical to
// its previous one, then forces divergence by restating the calculated offer.
func (e *Engine) avoidRepetition(ctx context.Context, in turnInput, pos analysis.Position, sel strategy.Selection, target float64, reasons []strategy.Justification, content string) string {
	prev, ok := lastBySender(in.history, in.side.AgentSender())
	if !ok || !sameMessage(content, prev.Content) {
		return content
	}

	prompt, err := renderTurnPrompt(turnPromptData{
		Input:          in,
		Position:       pos,
		Selection:      sel,
		TargetOffer:    target,
		Justifications: reasons,
		MaxRounds:      e.deps.MaxRounds,
		Diverge:        true,
	})
	if err == nil {
		genCtx, cancel := context.WithTimeout(ctx, e.deps.Timeout)
		defer cancel()
		if regen, err := e.deps.Generator.Generate(genCtx, prompt); err == nil {
			regen = strings.TrimSpace(regen)
			if !sameMessage(regen, prev.Content) {
				return regen
			}
		}
	}
	return content + fmt.Sprintf(" Moving things forward, my updated offer is $%.2f.", target)
}

// settle records confirmations, the transaction, and status transitions, and
// announces the deal.
func (e *Engine) settle(ctx context.Context, thread models.NegotiationThread, request models.BuyerRequest, quote models.SellerQuote, result *RoundResult, history []models.ChatMessage, buyerName, sellerName string) error {
	fmt.Fprintf(e.deps.Out, "thread %s: settled (%s) at $%.2f\n", thread.ID, result.Settlement.Reason, result.Settlement.FinalPrice)

	buyerConf := e.confirmation(ctx, thread, analysis.Buyer, buyerName, result, request)
	if err := e.pause(ctx); err != nil {
		return err
	}
	sellerConf := e.confirmation(ctx, thread, analysis.Seller, sellerName, result, request)
	result.BuyerConfirmation = &buyerConf
	result.SellerConfirmation = &sellerConf

	terms := ExtractTerms(append(history, buyerConf, sellerConf), quote)
	price := result.Settlement.FinalPrice
	if price <= 0 {
		price = terms.Price
	}

	tx := models.Transaction{
		ID:           ids.New(),
		ThreadID:     thread.ID,
		RequestID:    thread.RequestID,
		QuoteID:      thread.QuoteID,
		BuyerID:      thread.BuyerID,
		SellerID:     thread.SellerID,
		Price:        price,
		DeliveryDays: terms.DeliveryDays,
		Reason:       result.Settlement.Reason,
	}
	err := e.deps.DB.Transaction(func(db *gorm.DB) error {
		if err := db.Create(&tx).Error; err != nil {
			return err
		}
		if err := db.Model(&models.NegotiationThread{}).Where("id = ?", thread.ID).
			Update("status", models.ThreadClosed).Error; err != nil {
			return err
		}
		if err := db.Model(&models.SellerQuote{}).Where("id = ?", thread.QuoteID).
			Update("status", models.QuoteAccepted).Error; err != nil {
			return err
		}
		return db.Model(&models.BuyerRequest{}).Where("id = ?", thread.RequestID).
			Update("status", models.RequestClosed).Error
	})
	if err != nil {
		return fmt.Errorf("engine: record settlement: %w", err)
	}

	ev := notify.Event{
		ThreadID:     thread.ID,
		Product:      request.ProductName,
		Quantity:     request.Quantity,
		FinalPrice:   price,
		DeliveryDays: terms.DeliveryDays,
		Reason:       result.Settlement.Reason,
		Rounds:       result.Round,
	}
	if err := e.deps.Notifier.SettlementReached(ctx, ev); err != nil {
		// Announcement failure never fails the round.
		fmt.Fprintf(e.deps.Out, "thread %s: notify: %v\n", thread.ID, err)
	}
	return nil
}

// confirmation generates and persists one side's agreement confirmation,
// falling back to a fixed acceptance line on failure.
func (e *Engine) confirmation(ctx context.Context, thread models.NegotiationThread, side analysis.Side, agentName string, result *RoundResult, request models.BuyerRequest) models.ChatMessage {
	content := fmt.Sprintf("I accept! We have a deal at $%.2f. Let's proceed.", result.Settlement.FinalPrice)

	prompt, err := renderConfirmationPrompt(confirmationPromptData{
		Side:          side,
		AgentName:     agentName,
		Request:       request,
		AgreedPrice:   result.Settlement.FinalPrice,
		BuyerMessage:  result.BuyerMessage.Content,
		SellerMessage: result.SellerMessage.Content,
	})
	if err == nil {
		genCtx, cancel := context.WithTimeout(ctx, e.deps.Timeout)
		defer cancel()
		if generated, err := e.deps.Generator.Generate(genCtx, prompt); err == nil {
			content = strings.TrimSpace(generated)
		}
	}

	msg := models.ChatMessage{
		ID:         ids.New(),
		ThreadID:   thread.ID,
		SenderType: side.AgentSender(),
		SenderName: fmt.Sprintf("%s Agent (%s)", string(side), agentName),
		Content:    content,
	}
	if err := e.deps.DB.Create(&msg).Error; err != nil {
		fmt.Fprintf(e.deps.Out, "thread %s: save confirmation: %v\n", thread.ID, err)
	}
	return msg
}

// loadHistory returns the thread's messages in chronological order.
func (e *Engine) loadHistory(threadID string) ([]models.ChatMessage, error) {
	var history []models.ChatMessage
	if err := e.deps.DB.
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("engine: load history: %w", err)
	}
	return history, nil
}

// participantNames resolves display names, defaulting to the role when a
// user record is missing.
func (e *Engine) participantNames(thread models.NegotiationThread) (buyer, seller string) {
	buyer, seller = "Buyer", "Seller"
	var u models.User
	if err := e.deps.DB.First(&u, "id = ?", thread.BuyerID).Error; err == nil && u.Name != "" {
		buyer = u.Name
	}
	if err := e.deps.DB.First(&u, "id = ?", thread.SellerID).Error; err == nil && u.Name != "" {
		seller = u.Name
	}
	return buyer, seller
}

// pause waits the configured turn delay, honoring cancellation.
func (e *Engine) pause(ctx context.Context) error {
	if e.deps.TurnDelay <= 0 {
		return nil
	}
	t := time.NewTimer(e.deps.TurnDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fallbackMessage is the deterministic turn used when generation fails. It
// states the side's own calculated offer, not the opening quote, so the
// settlement check reads each side's actual position during an outage. The
// justification comes first: the last dollar amount in a message is the one
// the extractor treats as the offer.
func fallbackMessage(side analysis.Side, target float64, quote models.SellerQuote, reasons []strategy.Justification) string {
	lead := ""
	if len(reasons) > 0 {
		lead = reasons[0].Reason + " "
	}
	if side == analysis.Buyer {
		return fmt.Sprintf("%sI'd like to offer $%.2f with %d-day delivery. Can we find terms that work for both of us?", lead, target, quote.DeliveryDays)
	}
	return fmt.Sprintf("%sI can offer $%.2f with %d-day delivery. I'm open to discussing adjustments.", lead, target, quote.DeliveryDays)
}

// countAgentRounds counts completed rounds (a buyer plus a seller agent
// message) in the history.
func countAgentRounds(msgs []models.ChatMessage) int {
	n := 0
	for _, m := range msgs {
		if m.SenderType == models.SenderAgentBuyer || m.SenderType == models.SenderAgentSeller {
			n++
		}
	}
	return n / 2
}

// lastBySender returns the most recent message from a sender type.
func lastBySender(msgs []models.ChatMessage, senderType string) (models.ChatMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].SenderType == senderType {
			return msgs[i], true
		}
	}
	return models.ChatMessage{}, false
}

// sameMessage compares message content ignoring surrounding whitespace.
func sameMessage(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// containsPrice reports whether the message states a dollar amount.
func containsPrice(s string) bool {
	_, ok := offer.Extract(s)
	return ok
}
