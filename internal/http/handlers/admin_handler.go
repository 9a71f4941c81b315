package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thankatech/backend/internal/http/handlers/common"
	"github.com/thankatech/backend/internal/service"
)

// AdminHandler — возвраты и удаление аккаунтов.
type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// RefundTip POST /admin/tips/:id/refund.
func (h *AdminHandler) RefundTip(c *gin.Context) {
	tipID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// Причина опциональна, тело может отсутствовать.
	_ = c.ShouldBindJSON(&req)

	tip, err := h.admin.RefundTip(c.Request.Context(), tipID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tip": tip, "message": "возврат инициирован"})
}

// DeleteUser DELETE /admin/users/:id.
// Частичный сбой (например, Stripe недоступен) возвращает 207 со списком шагов.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.admin.DeleteUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if result.Partial {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}
