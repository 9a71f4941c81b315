package router

import (
	"github.com/gin-gonic/gin"

	"github.com/thankatech/backend/internal/config"
	"github.com/thankatech/backend/internal/http/handlers"
	"github.com/thankatech/backend/internal/http/middleware"
	"github.com/thankatech/backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	technicianHandler *handlers.TechnicianHandler,
	tipHandler *handlers.TipHandler,
	tokenHandler *handlers.TokenHandler,
	payoutHandler *handlers.PayoutHandler,
	notificationHandler *handlers.NotificationHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Вебхуки Stripe: без авторизации, подпись проверяется в хэндлере.
	api.POST("/webhooks/stripe", webhookHandler.HandleStripe)

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/technicians", technicianHandler.List)
	api.GET("/technicians/:unique_id", technicianHandler.GetPublicProfile)
	api.GET("/media/:id", middleware.UUIDValidator("id"), technicianHandler.GetPhoto)

	// Чаевые можно оставить анонимно, поэтому авторизация опциональна.
	tipRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	api.POST("/tips", tipRateLimit, middleware.OptionalAuthMiddleware(tokenManager), tipHandler.CreateIntent)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", technicianHandler.GetMyProfile)
		protected.PUT("/profile", technicianHandler.UpdateMyProfile)
		protected.POST("/profile/photo", technicianHandler.UploadPhoto)

		protected.GET("/tips/received", tipHandler.ListReceived)
		protected.GET("/tips/sent", tipHandler.ListSent)

		protected.POST("/tokens/purchase", tokenHandler.StartPurchase)
		protected.GET("/tokens/purchase/:session_id", tokenHandler.VerifyPurchase)
		protected.POST("/tokens/send", tokenHandler.SendTokens)
		protected.POST("/tokens/thank-you", tokenHandler.SendThankYou)
		protected.GET("/tokens/balance", tokenHandler.GetBalance)
		protected.GET("/tokens/transactions", tokenHandler.ListTransactions)

		protected.POST("/payouts/account", payoutHandler.EnsureAccount)
		protected.GET("/payouts/account", payoutHandler.GetAccountStatus)
		protected.POST("/payouts/bank", payoutHandler.AttachBank)
		protected.POST("/payouts", payoutHandler.RequestPayout)
		protected.GET("/payouts", payoutHandler.ListPayouts)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
	}

	// Администрирование
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireAdmin())
	{
		admin.POST("/tips/:id/refund", middleware.UUIDValidator("id"), adminHandler.RefundTip)
		admin.DELETE("/users/:id", middleware.UUIDValidator("id"), adminHandler.DeleteUser)
	}

	return r
}
