package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/jobmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
)

type AdminHandler struct {
	wallet *service.WalletService
}

func NewAdminHandler(wallet *service.WalletService) *AdminHandler {
	return &AdminHandler{wallet: wallet}
}

// FreezeWallet POST /admin/wallets/:id/freeze
func (h *AdminHandler) FreezeWallet(c *gin.Context) {
	h.setFrozen(c, true, "кошелёк заморожен")
}

// UnfreezeWallet POST /admin/wallets/:id/unfreeze
func (h *AdminHandler) UnfreezeWallet(c *gin.Context) {
	h.setFrozen(c, false, "кошелёк разморожен")
}

func (h *AdminHandler) setFrozen(c *gin.Context, frozen bool, message string) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.wallet.SetFrozen(c.Request.Context(), userID, frozen); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, message, nil)
}
