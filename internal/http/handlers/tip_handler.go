package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thankatech/backend/internal/dto"
	"github.com/thankatech/backend/internal/http/handlers/common"
	"github.com/thankatech/backend/internal/service"
)

// TipHandler — приём чаевых и их история.
type TipHandler struct {
	tips *service.TipService
}

func NewTipHandler(tips *service.TipService) *TipHandler {
	return &TipHandler{tips: tips}
}

// CreateIntent POST /tips — создаёт PaymentIntent для чаевых.
// Авторизация не обязательна: прохожий может оставить чаевые анонимно.
func (h *TipHandler) CreateIntent(c *gin.Context) {
	var req struct {
		TechnicianID string  `json:"technician_id" binding:"required"`
		Amount       int64   `json:"amount" binding:"required,gt=0"`
		Message      *string `json:"message"`
		CustomerName *string `json:"customer_name"`
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

	in := service.TipInput{
		TechnicianID: technicianID,
		Amount:       req.Amount,
		Message:      req.Message,
		CustomerName: req.CustomerName,
	}
	if userID, ok := common.OptionalUserID(c); ok {
		in.CustomerID = &userID
	}

	intent, err := h.tips.CreateTipIntent(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewTipIntentResponse(intent.Tip, intent.ClientSecret))
}

// ListReceived GET /tips/received — чаевые, полученные техником.
func (h *TipHandler) ListReceived(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	tips, err := h.tips.ListForTechnician(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tips": tips, "limit": limit, "offset": offset})
}

// ListSent GET /tips/sent — чаевые, отправленные клиентом.
func (h *TipHandler) ListSent(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	tips, err := h.tips.ListForCustomer(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tips": tips, "limit": limit, "offset": offset})
}
