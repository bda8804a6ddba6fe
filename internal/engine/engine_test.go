package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/econexus/parley/internal/ids"
	"github.com/econexus/parley/internal/llm"
	"github.com/econexus/parley/internal/models"
	"github.com/econexus/parley/internal/notify"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.BuyerRequest{},
		&models.SellerQuote{},
		&models.NegotiationThread{},
		&models.ChatMessage{},
		&models.Transaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fixture seeds a keyboard negotiation: budget $180 against a $200 quote.
type fixture struct {
	db      *gorm.DB
	thread  models.NegotiationThread
	request models.BuyerRequest
	quote   models.SellerQuote
}

func seed(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)

	buyer := models.User{ID: ids.New(), Name: "Ada", Email: "ada@example.com", PasswordHash: "x", Role: models.RoleBuyer}
	seller := models.User{ID: ids.New(), Name: "Grace", Email: "grace@example.com", PasswordHash: "x", Role: models.RoleSeller}
	if err := db.Create(&buyer).Error; err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}

	request := models.BuyerRequest{
		ID: ids.New(), BuyerID: buyer.ID, ProductName: "Keyboard",
		Quantity: 1, MaxPrice: 180, Status: models.RequestNegotiating,
	}
	quote := models.SellerQuote{
		ID: ids.New(), RequestID: request.ID, SellerID: seller.ID,
		Price: 200, DeliveryDays: 7, Status: models.QuoteNegotiating,
	}
	thread := models.NegotiationThread{
		ID: ids.New(), RequestID: request.ID, QuoteID: quote.ID,
		BuyerID: buyer.ID, SellerID: seller.ID,
		BuyerGuidelines:  "Stay under budget",
		SellerGuidelines: "Protect margin",
		Status:           models.ThreadNegotiating,
	}
	for _, rec := range []interface{}{&request, &quote, &thread} {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return &fixture{db: db, thread: thread, request: request, quote: quote}
}

// scriptedStub returns canned replies in call order, repeating the last one.
func scriptedStub(replies ...string) *llm.Stub {
	i := 0
	return &llm.Stub{Reply: func(p llm.Prompt) string {
		r := replies[i]
		if i < len(replies)-1 {
			i++
		}
		return r
	}}
}

func newEngine(f *fixture, gen llm.Generator) *Engine {
	return New(Deps{DB: f.db, Generator: gen, MaxRounds: 3})
}

func TestRunRound_ThreadNotFound(t *testing.T) {
	f := seed(t)
	e := newEngine(f, &llm.Stub{})
	if _, err := e.RunRound(context.Background(), "missing"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("err = %v, want ErrThreadNotFound", err)
	}
}

func TestRunRound_ClosedThread(t *testing.T) {
	f := seed(t)
	f.db.Model(&models.NegotiationThread{}).Where("id = ?", f.thread.ID).
		Update("status", models.ThreadClosed)
	e := newEngine(f, &llm.Stub{})
	if _, err := e.RunRound(context.Background(), f.thread.ID); !errors.Is(err, ErrThreadClosed) {
		t.Fatalf("err = %v, want ErrThreadClosed", err)
	}
}

func TestRunRound_GuidelinesPrecondition(t *testing.T) {
	f := seed(t)
	f.db.Model(&models.NegotiationThread{}).Where("id = ?", f.thread.ID).
		Update("seller_guidelines", "")
	e := newEngine(f, &llm.Stub{})
	if _, err := e.RunRound(context.Background(), f.thread.ID); !errors.Is(err, ErrGuidelinesMissing) {
		t.Fatalf("err = %v, want ErrGuidelinesMissing", err)
	}

	// Precondition failures must leave the log untouched.
	var count int64
	f.db.Model(&models.ChatMessage{}).Where("thread_id = ?", f.thread.ID).Count(&count)
	if count != 0 {
		t.Errorf("message count = %d, want 0", count)
	}
}

func TestRunRound_FirstRoundNoSettlement(t *testing.T) {
	f := seed(t)
	gen := scriptedStub(
		"The market suggests a much lower number. I can offer $120 for the keyboard.",
		"Quality costs money. My price stands at $200.",
	)
	e := newEngine(f, gen)

	res, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if res.Round != 1 {
		t.Errorf("round = %d, want 1", res.Round)
	}
	if res.Settlement.Settled {
		t.Fatalf("should not settle: %+v", res.Settlement)
	}
	if !res.ShouldContinue {
		t.Error("round 1 of 3 without settlement should continue")
	}
	if res.BuyerMessage.SenderType != models.SenderAgentBuyer {
		t.Errorf("buyer sender = %q", res.BuyerMessage.SenderType)
	}
	if res.SellerMessage.SenderType != models.SenderAgentSeller {
		t.Errorf("seller sender = %q", res.SellerMessage.SenderType)
	}
	if !strings.Contains(res.BuyerMessage.SenderName, "Ada") {
		t.Errorf("buyer sender name = %q, want user name", res.BuyerMessage.SenderName)
	}
	if res.BuyerMessage.Hint == "" {
		t.Error("buyer message should carry a strategy hint")
	}

	var count int64
	f.db.Model(&models.ChatMessage{}).Where("thread_id = ?", f.thread.ID).Count(&count)
	if count != 2 {
		t.Errorf("message count = %d, want 2", count)
	}

	// The seller's prompt must include the buyer's fresh message.
	stub := gen
	if len(stub.Calls) != 2 {
		t.Fatalf("generator calls = %d, want 2", len(stub.Calls))
	}
	if !strings.Contains(stub.Calls[1].User, "$120") {
		t.Error("seller prompt should reference the buyer's offer")
	}
}

func TestRunRound_ConsecutiveRoundsFollowCalculatedOffers(t *testing.T) {
	f := seed(t)

	// The seller agent echoes the calculated offer from its own prompt. The
	// buyer concedes in steps that stay below the seller's $150 floor, so
	// the demand-met rules cannot fire and the thread reaches round two.
	targetPattern := regexp.MustCompile(`Calculated next offer: \$(\d+\.\d{2})`)
	buyerReplies := []string{
		"The market rate is well below your ask. I can offer $120.00.",
		"I can stretch a little further to $130.00 for the keyboard.",
	}
	var buyerTargets, sellerTargets []float64
	gen := &llm.Stub{Reply: func(p llm.Prompt) string {
		m := targetPattern.FindStringSubmatch(p.User)
		if m == nil {
			t.Fatalf("prompt is missing the calculated offer: %s", p.User)
		}
		target, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			t.Fatalf("parse calculated offer: %v", err)
		}
		if strings.Contains(p.System, "buyer negotiation agent") {
			buyerTargets = append(buyerTargets, target)
			r := buyerReplies[0]
			buyerReplies = buyerReplies[1:]
			return r
		}
		sellerTargets = append(sellerTargets, target)
		return fmt.Sprintf("Quality like this holds its value. My price is $%.2f.", target)
	}}
	e := newEngine(f, gen)

	first, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("round 1: %v", err)
	}
	second, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("round 2: %v", err)
	}

	if first.Round != 1 || second.Round != 2 {
		t.Fatalf("rounds = %d, %d, want 1, 2", first.Round, second.Round)
	}
	if first.Settlement.Settled || second.Settlement.Settled {
		t.Fatal("neither round should settle")
	}
	if !second.ShouldContinue {
		t.Error("round 2 of 3 without settlement should continue")
	}

	// The seller opens at the quote and steps strictly toward the $162.50
	// anchor on the next round.
	if len(sellerTargets) != 2 || len(buyerTargets) != 2 {
		t.Fatalf("targets = %v / %v, want two per side", buyerTargets, sellerTargets)
	}
	if sellerTargets[0] != 200 {
		t.Errorf("seller opening = %v, want the original quote 200", sellerTargets[0])
	}
	if !(sellerTargets[1] < sellerTargets[0] && sellerTargets[1] > 162.5) {
		t.Errorf("seller round 2 = %v, want strictly between the anchor and %v", sellerTargets[1], sellerTargets[0])
	}
	if !strings.Contains(second.SellerMessage.Content, "$194.38") {
		t.Errorf("seller round 2 message = %q, want the stepped offer", second.SellerMessage.Content)
	}

	// Every calculated offer stays inside its side's interval.
	for i, v := range buyerTargets {
		if v < 150 || v > 175 {
			t.Errorf("buyer target %d = %v outside [150, 175]", i, v)
		}
	}
	for i, v := range sellerTargets {
		if v < 150 || v > 200 {
			t.Errorf("seller target %d = %v outside [150, 200]", i, v)
		}
	}
}

func TestRunRound_OfferInjectedWhenModelOmitsPrice(t *testing.T) {
	f := seed(t)
	gen := scriptedStub(
		"I believe we can find common ground on this keyboard.",
		"My price stands at $200, firm for now.",
	)
	e := newEngine(f, gen)

	res, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if !strings.Contains(res.BuyerMessage.Content, "I propose $") {
		t.Errorf("priceless message should get the calculated offer appended: %q", res.BuyerMessage.Content)
	}
}

func TestRunRound_ExplicitAgreementSettles(t *testing.T) {
	f := seed(t)
	gen := scriptedStub(
		"I accept! We have a deal at $170 with delivery in 5 days. Let's proceed.",
		"Agreed, the deal is confirmed at $170.",
		"Excellent! Confirmed at $170.",
		"Perfect, we are agreed at $170.",
	)
	e := newEngine(f, gen)

	res, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if !res.Settlement.Settled {
		t.Fatalf("expected settlement: %+v", res.Settlement)
	}
	if res.Settlement.Reason != "explicit_agreement" {
		t.Errorf("reason = %q", res.Settlement.Reason)
	}
	if res.Settlement.FinalPrice != 170 {
		t.Errorf("final price = %v, want buyer's 170", res.Settlement.FinalPrice)
	}
	if res.ShouldContinue {
		t.Error("settled round must not continue")
	}
	if res.BuyerConfirmation == nil || res.SellerConfirmation == nil {
		t.Fatal("expected confirmation messages")
	}

	var thread models.NegotiationThread
	f.db.First(&thread, "id = ?", f.thread.ID)
	if thread.Status != models.ThreadClosed {
		t.Errorf("thread status = %q, want CLOSED", thread.Status)
	}
	var quote models.SellerQuote
	f.db.First(&quote, "id = ?", f.quote.ID)
	if quote.Status != models.QuoteAccepted {
		t.Errorf("quote status = %q, want ACCEPTED", quote.Status)
	}
	var request models.BuyerRequest
	f.db.First(&request, "id = ?", f.request.ID)
	if request.Status != models.RequestClosed {
		t.Errorf("request status = %q, want CLOSED", request.Status)
	}

	var tx models.Transaction
	if err := f.db.First(&tx, "thread_id = ?", f.thread.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if tx.Price != 170 {
		t.Errorf("transaction price = %v, want 170", tx.Price)
	}
	if tx.DeliveryDays != 5 {
		t.Errorf("transaction delivery = %d, want 5", tx.DeliveryDays)
	}
}

func TestRunRound_NotifiesOnSettlement(t *testing.T) {
	f := seed(t)
	gen := scriptedStub(
		"I accept! We have a deal at $170. Let's proceed.",
		"Agreed, confirmed at $170.",
	)
	var got notify.Event
	e := New(Deps{DB: f.db, Generator: gen, MaxRounds: 3, Notifier: notifierFunc(func(ctx context.Context, ev notify.Event) error {
		got = ev
		return nil
	})})

	if _, err := e.RunRound(context.Background(), f.thread.ID); err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if got.Product != "Keyboard" || got.FinalPrice != 170 {
		t.Errorf("event = %+v", got)
	}
}

type notifierFunc func(ctx context.Context, ev notify.Event) error

func (f notifierFunc) SettlementReached(ctx context.Context, ev notify.Event) error {
	return f(ctx, ev)
}

func TestRunRound_NotifyFailureDoesNotFailRound(t *testing.T) {
	f := seed(t)
	gen := scriptedStub(
		"I accept! We have a deal at $170. Let's proceed.",
		"Agreed, confirmed at $170.",
	)
	var out bytes.Buffer
	e := New(Deps{DB: f.db, Generator: gen, MaxRounds: 3, Out: &out,
		Notifier: notifierFunc(func(ctx context.Context, ev notify.Event) error {
			return errors.New("webhook down")
		})})

	res, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("RunRound should succeed despite notify failure: %v", err)
	}
	if !res.Settlement.Settled {
		t.Fatal("expected settlement")
	}
	if !strings.Contains(out.String(), "notify") {
		t.Error("notify failure should be logged")
	}
}

func TestRunRound_GeneratorFailureUsesFallback(t *testing.T) {
	f := seed(t)
	e := newEngine(f, &llm.Stub{Err: errors.New("model unavailable")})

	res, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}

	// Each fallback states its side's own calculated offer: the buyer's
	// opening ($150, the floor) and the seller's opening ($200, the quote).
	if !strings.Contains(res.BuyerMessage.Content, "I'd like to offer $150.00") {
		t.Errorf("buyer fallback = %q", res.BuyerMessage.Content)
	}
	if !strings.Contains(res.SellerMessage.Content, "I can offer $200.00") {
		t.Errorf("seller fallback = %q", res.SellerMessage.Content)
	}

	// An outage must never settle the thread above the buyer's budget. The
	// buyer's $150 offer sits on the seller's floor, so this round settles
	// at the buyer's price, not the quote.
	if res.Settlement.Settled {
		if res.Settlement.FinalPrice > f.request.MaxPrice {
			t.Fatalf("settled at $%.2f, above budget $%.2f", res.Settlement.FinalPrice, f.request.MaxPrice)
		}
		if res.Settlement.FinalPrice != 150 {
			t.Errorf("final price = %.2f, want the buyer's calculated offer 150", res.Settlement.FinalPrice)
		}
	}
}

func TestRunRound_MaxRoundsExhausted(t *testing.T) {
	f := seed(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		for _, sender := range []string{models.SenderAgentBuyer, models.SenderAgentSeller} {
			msg := models.ChatMessage{
				ID: ids.New(), ThreadID: f.thread.ID, SenderType: sender,
				Content:   fmt.Sprintf("Round filler %d from %s at $120", i, sender),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}
			if err := f.db.Create(&msg).Error; err != nil {
				t.Fatalf("seed message: %v", err)
			}
		}
	}
	e := newEngine(f, &llm.Stub{})
	if _, err := e.RunRound(context.Background(), f.thread.ID); !errors.Is(err, ErrMaxRounds) {
		t.Fatalf("err = %v, want ErrMaxRounds", err)
	}
}

func TestRunRound_RepetitionForcesDivergence(t *testing.T) {
	f := seed(t)
	repeated := "I can offer $120 for the keyboard, final answer."
	base := time.Now().Add(-time.Hour)
	for i, m := range []models.ChatMessage{
		{ID: ids.New(), ThreadID: f.thread.ID, SenderType: models.SenderAgentBuyer, Content: repeated},
		{ID: ids.New(), ThreadID: f.thread.ID, SenderType: models.SenderAgentSeller, Content: "My price stands at $200."},
	} {
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := f.db.Create(&m).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	// The stub repeats itself even after the divergence retry.
	e := newEngine(f, &llm.Stub{Reply: func(p llm.Prompt) string { return repeated }})
	res, err := e.RunRound(context.Background(), f.thread.ID)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if res.BuyerMessage.Content == repeated {
		t.Error("identical message should have been forced to diverge")
	}
	if !strings.Contains(res.BuyerMessage.Content, "updated offer is $") {
		t.Errorf("buyer message = %q", res.BuyerMessage.Content)
	}
}

func TestRunRound_MarksOpenThreadNegotiating(t *testing.T) {
	f := seed(t)
	f.db.Model(&models.NegotiationThread{}).Where("id = ?", f.thread.ID).
		Update("status", models.ThreadOpen)
	gen := scriptedStub(
		"The market suggests a lower number. I can offer $120.",
		"Quality costs money. My price stands at $200.",
	)
	e := newEngine(f, gen)
	if _, err := e.RunRound(context.Background(), f.thread.ID); err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	var thread models.NegotiationThread
	f.db.First(&thread, "id = ?", f.thread.ID)
	if thread.Status != models.ThreadNegotiating {
		t.Errorf("thread status = %q, want NEGOTIATING", thread.Status)
	}
}

func TestMissingGuidelines(t *testing.T) {
	thread := models.NegotiationThread{BuyerGuidelines: "x"}
	buyer, seller := MissingGuidelines(thread)
	if buyer || !seller {
		t.Errorf("missing = (%v, %v), want (false, true)", buyer, seller)
	}
}
