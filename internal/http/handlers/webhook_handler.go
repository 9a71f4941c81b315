package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thankatech/backend/internal/http/handlers/common"
	"github.com/thankatech/backend/internal/service"
)

// Stripe шлёт тела до 64KB, лимит с запасом.
const maxWebhookBody = 1 << 20

// WebhookHandler принимает события Stripe.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleStripe POST /webhooks/stripe.
// После успешной проверки подписи всегда возвращает 200: ошибки обработчиков
// логируются, но Stripe не должен ретраить принятое событие.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	event, err := h.webhooks.VerifyAndParse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		common.RespondBadRequest(c, "подпись вебхука невалидна")
		return
	}

	h.webhooks.Dispatch(c.Request.Context(), event)

	c.JSON(http.StatusOK, gin.H{"received": true})
}
