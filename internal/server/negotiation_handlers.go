package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/econexus/parley/internal/auth"
	"github.com/econexus/parley/internal/engine"
	"github.com/econexus/parley/internal/ids"
	"github.com/econexus/parley/internal/models"
)

type createThreadRequest struct {
	RequestID string `json:"requestId" binding:"required"`
	QuoteID   string `json:"quoteId" binding:"required"`
}

type guidelinesRequest struct {
	Guidelines *string `json:"guidelines" binding:"required"`
}

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

// loadThread resolves a thread by ID, falling back to quote ID, and checks
// that the caller participates. It writes the error response itself and
// returns ok=false when the request should not proceed.
func (h *handlers) loadThread(c *gin.Context) (models.NegotiationThread, bool) {
	id := c.Param("id")
	var thread models.NegotiationThread
	err := h.db.First(&thread, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = h.db.First(&thread, "quote_id = ?", id).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Thread not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch thread"})
		}
		return models.NegotiationThread{}, false
	}
	userID := auth.UserID(c)
	if thread.BuyerID != userID && thread.SellerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return models.NegotiationThread{}, false
	}
	return thread, true
}

func (h *handlers) createThread(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request ID and quote ID are required"})
		return
	}
	userID := auth.UserID(c)

	var request models.BuyerRequest
	if err := h.db.First(&request, "id = ?", req.RequestID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	var quote models.SellerQuote
	if err := h.db.First(&quote, "id = ?", req.QuoteID).Error; err != nil || quote.RequestID != req.RequestID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		return
	}
	if request.BuyerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the original buyer can start negotiations"})
		return
	}
	if request.BuyerID == quote.SellerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot negotiate with yourself. Buyer and seller must be different users."})
		return
	}

	// Thread creation is idempotent per quote.
	var existing models.NegotiationThread
	if err := h.db.First(&existing, "quote_id = ?", req.QuoteID).Error; err == nil {
		c.JSON(http.StatusOK, existing)
		return
	}

	thread := models.NegotiationThread{
		ID:        ids.New(),
		RequestID: request.ID,
		QuoteID:   quote.ID,
		BuyerID:   request.BuyerID,
		SellerID:  quote.SellerID,
		Status:    models.ThreadOpen,
	}
	err := h.db.Transaction(func(db *gorm.DB) error {
		if err := db.Create(&thread).Error; err != nil {
			return err
		}
		if err := db.Model(&models.BuyerRequest{}).Where("id = ?", request.ID).
			Update("status", models.RequestNegotiating).Error; err != nil {
			return err
		}
		return db.Model(&models.SellerQuote{}).Where("id = ?", quote.ID).
			Update("status", models.QuoteNegotiating).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create negotiation thread"})
		return
	}
	c.JSON(http.StatusCreated, thread)
}

func (h *handlers) listThreads(c *gin.Context) {
	userID := auth.UserID(c)
	var threads []models.NegotiationThread
	if err := h.db.
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&threads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch threads"})
		return
	}

	out := make([]gin.H, 0, len(threads))
	for _, thread := range threads {
		item := gin.H{"thread": thread}
		var request models.BuyerRequest
		if err := h.db.First(&request, "id = ?", thread.RequestID).Error; err == nil {
			item["request"] = gin.H{
				"id":          request.ID,
				"productName": request.ProductName,
				"quantity":    request.Quantity,
			}
		}
		var quote models.SellerQuote
		if err := h.db.First(&quote, "id = ?", thread.QuoteID).Error; err == nil {
			item["quote"] = gin.H{
				"id":           quote.ID,
				"price":        quote.Price,
				"carbonScore":  quote.CarbonScore,
				"deliveryDays": quote.DeliveryDays,
			}
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getThread(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	var messages []models.ChatMessage
	if err := h.db.
		Where("thread_id = ?", thread.ID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch thread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": thread, "messages": messages})
}

func (h *handlers) updateGuidelines(c *gin.Context) {
	var req guidelinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Guidelines are required"})
		return
	}
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	if thread.Status == models.ThreadClosed {
		c.JSON(http.StatusConflict, gin.H{"error": "Thread is closed"})
		return
	}

	column := "buyer_guidelines"
	if auth.UserID(c) == thread.SellerID {
		column = "seller_guidelines"
	}
	if err := h.db.Model(&models.NegotiationThread{}).Where("id = ?", thread.ID).
		Update(column, *req.Guidelines).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update guidelines"})
		return
	}
	h.db.First(&thread, "id = ?", thread.ID)
	c.JSON(http.StatusOK, thread)
}

func (h *handlers) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content is required"})
		return
	}
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	if thread.Status == models.ThreadClosed {
		c.JSON(http.StatusConflict, gin.H{"error": "Thread is closed"})
		return
	}

	userID := auth.UserID(c)
	senderType := models.SenderBuyer
	if userID == thread.SellerID {
		senderType = models.SenderSeller
	}
	senderName := "Buyer"
	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err == nil {
		senderName = user.Name
	} else if senderType == models.SenderSeller {
		senderName = "Seller"
	}

	msg := models.ChatMessage{
		ID:         ids.New(),
		ThreadID:   thread.ID,
		SenderID:   userID,
		SenderType: senderType,
		SenderName: senderName,
		Content:    req.Content,
	}
	if err := h.db.Create(&msg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *handlers) runRound(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}

	res, err := h.engine.RunRound(c.Request.Context(), thread.ID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrGuidelinesMissing):
			buyerMissing, sellerMissing := engine.MissingGuidelines(thread)
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Both parties must provide guidelines before starting negotiation",
				"missingGuidelines": gin.H{
					"buyer":  buyerMissing,
					"seller": sellerMissing,
				},
			})
		case errors.Is(err, engine.ErrThreadClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Thread is closed"})
		case errors.Is(err, engine.ErrMaxRounds):
			c.JSON(http.StatusConflict, gin.H{"error": "Maximum negotiation rounds reached"})
		case errors.Is(err, engine.ErrThreadNotFound), errors.Is(err, engine.ErrDataInconsistent):
			c.JSON(http.StatusNotFound, gin.H{"error": "Thread data not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger agent negotiation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"round":              res.Round,
		"buyerAgentMessage":  res.BuyerMessage,
		"sellerAgentMessage": res.SellerMessage,
		"buyerConfirmation":  res.BuyerConfirmation,
		"sellerConfirmation": res.SellerConfirmation,
		"settlement": gin.H{
			"settled":    res.Settlement.Settled,
			"reason":     res.Settlement.Reason,
			"finalPrice": res.Settlement.FinalPrice,
		},
		"agreementReached": res.Settlement.Settled,
		"shouldContinue":   res.ShouldContinue,
	})
}

func (h *handlers) getTerms(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	var quote models.SellerQuote
	if err := h.db.First(&quote, "id = ?", thread.QuoteID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		return
	}
	var messages []models.ChatMessage
	if err := h.db.
		Where("thread_id = ?", thread.ID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to extract negotiated terms"})
		return
	}

	terms := engine.ExtractTerms(messages, quote)
	c.JSON(http.StatusOK, gin.H{
		"negotiatedPrice":    terms.Price,
		"negotiatedDelivery": terms.DeliveryDays,
		"originalPrice":      terms.OriginalPrice,
		"originalDelivery":   terms.OriginalDelivery,
		"priceChanged":       terms.PriceChanged,
		"deliveryChanged":    terms.DeliveryChanged,
	})
}
