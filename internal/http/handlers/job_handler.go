package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/jobmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Create POST /jobs
func (h *JobHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Title       string   `json:"title" binding:"required"`
		Description string   `json:"description" binding:"required"`
		Budget      *float64 `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "заголовок и описание обязательны")
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), userID, service.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "задание опубликовано", job)
}

// Get GET /jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", job)
}

// ListOpen GET /jobs
func (h *JobHandler) ListOpen(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	jobs, err := h.jobs.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", jobs)
}

// ListMy GET /jobs/my
func (h *JobHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	jobs, err := h.jobs.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", jobs)
}
