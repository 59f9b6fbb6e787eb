package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/jobmarket-backend/internal/config"
	"github.com/ignatzorin/jobmarket-backend/internal/http/handlers"
	"github.com/ignatzorin/jobmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/service"
)

// Handlers собирает обработчики для маршрутизатора.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Job          *handlers.JobHandler
	Engagement   *handlers.EngagementHandler
	Offer        *handlers.OfferHandler
	Wallet       *handlers.WalletHandler
	Webhook      *handlers.WebhookHandler
	Notification *handlers.NotificationHandler
	WS           *handlers.WSHandler
	Health       *handlers.HealthHandler
	Admin        *handlers.AdminHandler
}

// SetupRouter настраивает все маршруты API.
func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")

	// Вебхук шлюза аутентифицируется подписью, не JWT.
	api.POST("/webhooks/gateway", h.Webhook.HandleGatewayEvent)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	// Публичные маршруты.
	api.GET("/jobs", h.Job.ListOpen)
	api.GET("/jobs/:id", middleware.UUIDValidator("id"), h.Job.Get)
	api.GET("/ws", h.WS.Handle)

	// Защищённые маршруты.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/jobs", h.Job.Create)
		protected.GET("/jobs/my", h.Job.ListMy)
		protected.POST("/jobs/:id/apply", middleware.UUIDValidator("id"), h.Engagement.Apply)
		protected.POST("/jobs/:id/invite", middleware.UUIDValidator("id"), h.Engagement.Invite)
		protected.GET("/jobs/:id/engagements", middleware.UUIDValidator("id"), h.Engagement.ListByJob)

		protected.GET("/engagements/my", h.Engagement.ListMy)
		protected.GET("/engagements/:id", middleware.UUIDValidator("id"), h.Engagement.Get)

		protected.POST("/offers", h.Offer.Send)
		protected.GET("/offers/my", h.Offer.ListMy)
		protected.GET("/offers/:id", middleware.UUIDValidator("id"), h.Offer.Get)
		protected.POST("/offers/:id/accept", middleware.UUIDValidator("id"), h.Offer.Accept)
		protected.POST("/offers/:id/reject", middleware.UUIDValidator("id"), h.Offer.Reject)
		protected.POST("/offers/:id/cancel", middleware.UUIDValidator("id"), h.Offer.Cancel)
		protected.POST("/offers/:id/complete", middleware.UUIDValidator("id"), h.Offer.Complete)

		// Денежные маршруты ограничены строже остальных.
		money := protected.Group("/wallet")
		money.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
		{
			money.GET("", h.Wallet.Balance)
			money.GET("/transactions", h.Wallet.Transactions)
			money.POST("/deposit", h.Wallet.Deposit)
			money.POST("/withdraw", h.Wallet.Withdraw)
			money.POST("/payout-account", h.Wallet.ConnectPayoutAccount)
		}

		protected.GET("/notifications", h.Notification.List)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkRead)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/wallets/:id/freeze", middleware.UUIDValidator("id"), h.Admin.FreezeWallet)
			admin.POST("/wallets/:id/unfreeze", middleware.UUIDValidator("id"), h.Admin.UnfreezeWallet)
		}
	}

	return r
}
