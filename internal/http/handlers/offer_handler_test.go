package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init("fatal")
	m.Run()
}

func TestOfferHandler_Send_Unauthorized(t *testing.T) {
	r := gin.New()
	handler := &OfferHandler{offers: nil}
	r.POST("/offers", handler.Send)

	req, _ := http.NewRequest("POST", "/offers", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOfferHandler_Accept_Unauthorized(t *testing.T) {
	r := gin.New()
	handler := &OfferHandler{offers: nil}
	r.POST("/offers/:id/accept", handler.Accept)

	req, _ := http.NewRequest("POST", "/offers/11111111-1111-1111-1111-111111111111/accept", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOfferHandler_Get_InvalidID(t *testing.T) {
	r := gin.New()
	handler := &OfferHandler{offers: nil}
	r.GET("/offers/:id", func(c *gin.Context) {
		c.Set("userID", uuid.New())
		c.Set("role", "customer")
		handler.Get(c)
	})

	req, _ := http.NewRequest("GET", "/offers/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
