package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWalletHandler_Balance_Unauthorized(t *testing.T) {
	r := gin.New()
	handler := &WalletHandler{}
	r.GET("/wallet", handler.Balance)

	req, _ := http.NewRequest("GET", "/wallet", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletHandler_Deposit_Unauthorized(t *testing.T) {
	r := gin.New()
	handler := &WalletHandler{}
	r.POST("/wallet/deposit", handler.Deposit)

	req, _ := http.NewRequest("POST", "/wallet/deposit", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletHandler_Deposit_InvalidAmount(t *testing.T) {
	r := gin.New()
	handler := &WalletHandler{}
	r.POST("/wallet/deposit", func(c *gin.Context) {
		c.Set("userID", uuid.New())
		handler.Deposit(c)
	})

	body := bytes.NewBufferString(`{"amount": -100}`)
	req, _ := http.NewRequest("POST", "/wallet/deposit", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletHandler_Withdraw_InvalidBody(t *testing.T) {
	r := gin.New()
	handler := &WalletHandler{}
	r.POST("/wallet/withdraw", func(c *gin.Context) {
		c.Set("userID", uuid.New())
		handler.Withdraw(c)
	})

	body := bytes.NewBufferString(`{}`)
	req, _ := http.NewRequest("POST", "/wallet/withdraw", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletHandler_ConnectPayoutAccount_MissingRef(t *testing.T) {
	r := gin.New()
	handler := &WalletHandler{}
	r.POST("/wallet/payout-account", func(c *gin.Context) {
		c.Set("userID", uuid.New())
		handler.ConnectPayoutAccount(c)
	})

	body := bytes.NewBufferString(`{}`)
	req, _ := http.NewRequest("POST", "/wallet/payout-account", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
