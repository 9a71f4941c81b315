package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thankatech/backend/internal/http/handlers/common"
	"github.com/thankatech/backend/internal/service"
)

// PayoutHandler — онбординг Stripe Connect и выплаты техника.
type PayoutHandler struct {
	payouts *service.PayoutService
}

func NewPayoutHandler(payouts *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// EnsureAccount POST /payouts/account — создаёт Express аккаунт и ссылку онбординга.
func (h *PayoutHandler) EnsureAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	result, err := h.payouts.EnsureExpressAccount(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAccountStatus GET /payouts/account — статус онбординга из нашей БД.
func (h *PayoutHandler) GetAccountStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	status, err := h.payouts.GetAccountStatus(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// AttachBank POST /payouts/bank — привязывает банковский счёт по токену.
func (h *PayoutHandler) AttachBank(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		BankToken string `json:"bank_token" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	account, err := h.payouts.AttachBank(c.Request.Context(), userID, req.BankToken)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// RequestPayout POST /payouts — запрашивает выплату заработанного.
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount int64 `json:"amount" binding:"required,gt=0"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payout, err := h.payouts.RequestPayout(c.Request.Context(), userID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, payout)
}

// ListPayouts GET /payouts — история выплат техника.
func (h *PayoutHandler) ListPayouts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	payouts, err := h.payouts.ListPayouts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payouts": payouts, "limit": limit, "offset": offset})
}
