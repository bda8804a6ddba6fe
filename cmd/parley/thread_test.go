package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/econexus/parley/internal/ids"
	"github.com/econexus/parley/internal/models"
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
		&models.User{}, &models.BuyerRequest{}, &models.SellerQuote{},
		&models.NegotiationThread{}, &models.ChatMessage{}, &models.Transaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedThread(t *testing.T, db *gorm.DB) models.NegotiationThread {
	t.Helper()
	request := models.BuyerRequest{
		ID: ids.New(), BuyerID: ids.New(), ProductName: "Keyboard",
		Quantity: 2, MaxPrice: 360, Status: models.RequestNegotiating,
	}
	quote := models.SellerQuote{
		ID: ids.New(), RequestID: request.ID, SellerID: ids.New(),
		Price: 400, DeliveryDays: 7, Status: models.QuoteNegotiating,
	}
	thread := models.NegotiationThread{
		ID: ids.New(), RequestID: request.ID, QuoteID: quote.ID,
		BuyerID: request.BuyerID, SellerID: quote.SellerID,
		Status: models.ThreadNegotiating,
	}
	for _, rec := range []interface{}{&request, &quote, &thread} {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return thread
}

func captureCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd, buf
}

func TestRunThreadList(t *testing.T) {
	db := testDB(t)
	thread := seedThread(t, db)

	cmd, buf := captureCmd()
	if err := runThreadList(cmd, db, ""); err != nil {
		t.Fatalf("runThreadList: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, thread.ID) {
		t.Errorf("output missing thread ID: %s", out)
	}
	if !strings.Contains(out, "Keyboard x2") {
		t.Errorf("output missing product summary: %s", out)
	}

	cmd, buf = captureCmd()
	if err := runThreadList(cmd, db, models.ThreadClosed); err != nil {
		t.Fatalf("runThreadList: %v", err)
	}
	if !strings.Contains(buf.String(), "No threads found.") {
		t.Errorf("status filter should exclude the thread: %s", buf.String())
	}
}

func TestRunThreadShow(t *testing.T) {
	db := testDB(t)
	thread := seedThread(t, db)
	msg := models.ChatMessage{
		ID: ids.New(), ThreadID: thread.ID,
		SenderType: models.SenderAgentBuyer, SenderName: "BUYER Agent (Ada)",
		Content: "I can offer $320.",
	}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	cmd, buf := captureCmd()
	if err := runThreadShow(cmd, db, thread.ID); err != nil {
		t.Fatalf("runThreadShow: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "BUYER Agent (Ada): I can offer $320.") {
		t.Errorf("output missing message: %s", out)
	}

	if err := runThreadShow(cmd, db, "missing"); err == nil {
		t.Error("unknown thread should error")
	}
}

func TestRunGuidelinesSet(t *testing.T) {
	db := testDB(t)
	thread := seedThread(t, db)

	cmd, _ := captureCmd()
	if err := runGuidelinesSet(cmd, db, thread.ID, "seller", "Protect margin"); err != nil {
		t.Fatalf("runGuidelinesSet: %v", err)
	}
	var got models.NegotiationThread
	db.First(&got, "id = ?", thread.ID)
	if got.SellerGuidelines != "Protect margin" {
		t.Errorf("seller guidelines = %q", got.SellerGuidelines)
	}
	if got.BuyerGuidelines != "" {
		t.Errorf("buyer guidelines touched: %q", got.BuyerGuidelines)
	}

	db.Model(&models.NegotiationThread{}).Where("id = ?", thread.ID).
		Update("status", models.ThreadClosed)
	if err := runGuidelinesSet(cmd, db, thread.ID, "buyer", "x"); err == nil {
		t.Error("closed thread should reject guideline updates")
	}
}
