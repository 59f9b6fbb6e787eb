package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/jobmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
)

type WalletHandler struct {
	wallet *service.WalletService
	users  service.AuthRepository
}

func NewWalletHandler(wallet *service.WalletService, users service.AuthRepository) *WalletHandler {
	return &WalletHandler{wallet: wallet, users: users}
}

// Balance GET /wallet
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	wallet, err := h.wallet.Balance(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", wallet)
}

// Transactions GET /wallet/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	txns, err := h.wallet.Transactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "", txns)
}

// Deposit POST /wallet/deposit
// Заголовок Idempotency-Key обязателен: повтор запроса с тем же ключом
// возвращает исходную транзакцию.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "сумма должна быть положительной")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	txn, err := h.wallet.Deposit(c.Request.Context(), userID, user.Email, req.Amount, c.GetHeader("Idempotency-Key"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusAccepted, "пополнение инициировано", txn)
}

// Withdraw POST /wallet/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "сумма должна быть положительной")
		return
	}

	txn, err := h.wallet.Withdraw(c.Request.Context(), userID, req.Amount, c.GetHeader("Idempotency-Key"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusAccepted, "вывод инициирован", txn)
}

// ConnectPayoutAccount POST /wallet/payout-account
func (h *WalletHandler) ConnectPayoutAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		AccountRef string `json:"account_ref" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "account_ref обязателен")
		return
	}

	wallet, err := h.wallet.VerifyPayoutAccount(c.Request.Context(), userID, req.AccountRef)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "аккаунт для выплат подключён", wallet)
}
