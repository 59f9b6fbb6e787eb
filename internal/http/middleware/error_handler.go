package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

// ErrorHandler перехватывает паники обработчиков и ошибки, накопленные
// в контексте, и превращает их в ответ в едином конверте. Детали
// внутренних ошибок наружу не уходят.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithFields(logrus.Fields{
					"panic":  r,
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Errorf("api: паника в обработчике\n%s", debug.Stack())

				if !c.Writer.Written() {
					abortWithError(c, http.StatusInternalServerError, "внутренняя ошибка сервера")
				} else {
					c.Abort()
				}
			}
		}()

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("api: необработанная ошибка запроса")

		abortWithError(c, http.StatusInternalServerError, "внутренняя ошибка сервера")
	}
}
