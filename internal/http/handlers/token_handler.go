package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thankatech/backend/internal/dto"
	"github.com/thankatech/backend/internal/http/handlers/common"
	"github.com/thankatech/backend/internal/service"
)

// TokenHandler — покупка и передача токенов благодарности.
type TokenHandler struct {
	ledger *service.LedgerService
}

func NewTokenHandler(ledger *service.LedgerService) *TokenHandler {
	return &TokenHandler{ledger: ledger}
}

// StartPurchase POST /tokens/purchase — создаёт Stripe Checkout сессию.
func (h *TokenHandler) StartPurchase(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Tokens int64 `json:"tokens" binding:"required,gt=0"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	session, err := h.ledger.StartPurchase(c.Request.Context(), userID, req.Tokens)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}

// VerifyPurchase GET /tokens/purchase/:session_id — проверяет оплату после редиректа.
// Зачисление идемпотентно: вебхук мог успеть раньше.
func (h *TokenHandler) VerifyPurchase(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		common.RespondBadRequest(c, "session_id обязателен")
		return
	}

	balance, err := h.ledger.VerifyPurchase(c.Request.Context(), userID, sessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// SendTokens POST /tokens/send — передаёт токены мастеру.
func (h *TokenHandler) SendTokens(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		TechnicianID string `json:"technician_id" binding:"required"`
		Tokens       int64  `json:"tokens" binding:"required,gt=0"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	technicianID, err := uuid.Parse(req.TechnicianID)
	if err != nil {
		common.RespondBadRequest(c, "неверный technician_id")
		return
	}

	txn, err := h.ledger.SendTokens(c.Request.Context(), userID, technicianID, req.Tokens)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}

// SendThankYou POST /tokens/thank-you — бесплатная благодарность.
func (h *TokenHandler) SendThankYou(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		TechnicianID string `json:"technician_id" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	technicianID, err := uuid.Parse(req.TechnicianID)
	if err != nil {
		common.RespondBadRequest(c, "неверный technician_id")
		return
	}

	txn, err := h.ledger.SendThankYou(c.Request.Context(), userID, technicianID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}

// GetBalance GET /tokens/balance.
func (h *TokenHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// ListTransactions GET /tokens/transactions — история операций пользователя.
func (h *TokenHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.ledger.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "limit": limit, "offset": offset})
}
