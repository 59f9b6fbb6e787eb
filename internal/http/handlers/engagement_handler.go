package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
)

type EngagementHandler struct {
	engagements *service.EngagementService
}

func NewEngagementHandler(engagements *service.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagements: engagements}
}

// Apply POST /jobs/:id/apply
func (h *EngagementHandler) Apply(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Message *string `json:"message"`
	}
	_ = c.ShouldBindJSON(&req)

	engagement, err := h.engagements.Apply(c.Request.Context(), userID, jobID, req.Message)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "отклик отправлен", engagement)
}

// Invite POST /jobs/:id/invite
func (h *EngagementHandler) Invite(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		ContractorID string  `json:"contractor_id" binding:"required"`
		Message      *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "contractor_id обязателен")
		return
	}

	contractorID, err := uuid.Parse(req.ContractorID)
	if err != nil {
		common.RespondBadRequest(c, "неверный contractor_id")
		return
	}

	engagement, err := h.engagements.Invite(c.Request.Context(), userID, jobID, contractorID, req.Message)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "приглашение отправлено", engagement)
}

// Get GET /engagements/:id
func (h *EngagementHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	engagement, err := h.engagements.Get(c.Request.Context(), userID, role, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", engagement)
}

// ListByJob GET /jobs/:id/engagements
func (h *EngagementHandler) ListByJob(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	engagements, err := h.engagements.ListByJob(c.Request.Context(), userID, role, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", engagements)
}

// ListMy GET /engagements/my
func (h *EngagementHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	engagements, err := h.engagements.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", engagements)
}
