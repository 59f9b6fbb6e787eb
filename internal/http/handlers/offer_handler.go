package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
)

type OfferHandler struct {
	offers *service.OfferService
}

func NewOfferHandler(offers *service.OfferService) *OfferHandler {
	return &OfferHandler{offers: offers}
}

// Send POST /offers
func (h *OfferHandler) Send(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		EngagementID string  `json:"engagement_id" binding:"required"`
		Amount       float64 `json:"amount" binding:"required,gt=0"`
		Timeline     *string `json:"timeline"`
		Description  *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "engagement_id и положительная сумма обязательны")
		return
	}

	engagementID, err := uuid.Parse(req.EngagementID)
	if err != nil {
		common.RespondBadRequest(c, "неверный engagement_id")
		return
	}

	offer, err := h.offers.Send(c.Request.Context(), userID, service.SendOfferInput{
		EngagementID: engagementID,
		Amount:       req.Amount,
		Timeline:     req.Timeline,
		Description:  req.Description,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "оффер отправлен", offer)
}

// Get GET /offers/:id
func (h *OfferHandler) Get(c *gin.Context) {
	userID, role, offerID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	offer, err := h.offers.Get(c.Request.Context(), userID, role, offerID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", offer)
}

// ListMy GET /offers/my
func (h *OfferHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	offers, err := h.offers.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", offers)
}

// Accept POST /offers/:id/accept
func (h *OfferHandler) Accept(c *gin.Context) {
	userID, role, offerID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	offer, err := h.offers.Accept(c.Request.Context(), userID, role, offerID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "оффер принят", offer)
}

// Reject POST /offers/:id/reject
func (h *OfferHandler) Reject(c *gin.Context) {
	userID, role, offerID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	offer, err := h.offers.Reject(c.Request.Context(), userID, role, offerID, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "оффер отклонён", offer)
}

// Cancel POST /offers/:id/cancel
func (h *OfferHandler) Cancel(c *gin.Context) {
	userID, role, offerID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	offer, err := h.offers.Cancel(c.Request.Context(), userID, role, offerID, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "оффер отозван", offer)
}

// Complete POST /offers/:id/complete
func (h *OfferHandler) Complete(c *gin.Context) {
	userID, role, offerID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	offer, err := h.offers.Complete(c.Request.Context(), userID, role, offerID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "работа принята, выплата проведена", offer)
}

// actorAndID достаёт пользователя и id оффера из запроса.
func (h *OfferHandler) actorAndID(c *gin.Context) (uuid.UUID, string, uuid.UUID, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return uuid.Nil, "", uuid.Nil, false
	}
	role, _ := common.CurrentUserRole(c)

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return uuid.Nil, "", uuid.Nil, false
	}
	return userID, role, offerID, true
}
