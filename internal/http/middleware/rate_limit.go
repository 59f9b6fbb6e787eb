package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

// RateLimitMiddleware ограничивает количество запросов с одного IP.
// Счётчики живут в памяти процесса, у каждой группы маршрутов своё
// хранилище.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: period,
		Limit:  limit,
	})

	return func(c *gin.Context) {
		state, err := instance.Get(c, c.ClientIP())
		if err != nil {
			logger.Log.WithError(err).Error("rate limit: ошибка хранилища")
			abortWithError(c, http.StatusInternalServerError, "внутренняя ошибка сервера")
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(state.Reset, 10))

		if state.Reached {
			abortWithError(c, http.StatusTooManyRequests, "слишком много запросов, попробуйте позже")
			return
		}

		c.Next()
	}
}
