package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/jobmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
)

// Лимит тела вебхука.
const maxWebhookBody = 64 * 1024

type WebhookHandler struct {
	reconcile *service.ReconcileService
}

func NewWebhookHandler(reconcile *service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconcile: reconcile}
}

// HandleGatewayEvent POST /webhooks/gateway
// Тело читается сырым: подпись считается от байтов запроса, любая
// перекодировка её сломает.
func (h *WebhookHandler) HandleGatewayEvent(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.reconcile.HandleEvent(c.Request.Context(), payload, signature); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "событие обработано", nil)
}
