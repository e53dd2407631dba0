package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bybench/internal/config"
	"bybench/internal/middleware"
	"bybench/internal/models"
	"bybench/internal/realtime"
	"bybench/internal/service"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type Services struct {
	Auth        *service.AuthService
	Chat        *service.ChatService
	Attachments *service.AttachmentService
	Profiles    *service.ProfileService
	Admin       *service.AdminService
	Hub         *realtime.Hub
	Checks      map[string]HealthCheck
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	auth        *service.AuthService
	chat        *service.ChatService
	attachments *service.AttachmentService
	profiles    *service.ProfileService
	admin       *service.AdminService
	hub         *realtime.Hub
	checks      map[string]HealthCheck
	limiter     *middleware.RateLimiter
	upgrader    websocket.Upgrader
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, svc Services) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		auth:        svc.Auth,
		chat:        svc.Chat,
		attachments: svc.Attachments,
		profiles:    svc.Profiles,
		admin:       svc.Admin,
		hub:         svc.Hub,
		checks:      svc.Checks,
		limiter:     middleware.NewRateLimiter(cfg.RateLimit.AuthRequestsPerMinute),
		upgrader:    newUpgrader(cfg.Realtime.AllowedOrigins),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	requireAuth := middleware.Auth(h.auth, h.cfg.Security.CookieName, h.log)

	auth := router.Group("/auth")
	{
		credentials := auth.Group("", h.limiter.Handler())
		credentials.POST("/register", h.RegisterUser)
		credentials.POST("/verify", h.Verify)
		credentials.POST("/resend-otp", h.ResendOTP)
		credentials.POST("/login", h.Login)
		credentials.POST("/forgot-password", h.ForgotPassword)
		credentials.POST("/reset-password", h.ResetPassword)

		auth.POST("/logout", h.Logout)

		protected := auth.Group("", requireAuth)
		protected.POST("/change-password", h.ChangePassword)
		protected.GET("/me", h.Me)
	}

	chat := router.Group("/chat", requireAuth)
	{
		chat.POST("/start", h.StartConversation)
		chat.POST("/message", h.SendMessage)
		chat.GET("/conversations", h.ListConversations)
		chat.GET("/messages/:conversationId", h.ListMessages)
		chat.PATCH("/block/:conversationId", h.BlockConversation)
		chat.PATCH("/unblock/:conversationId", h.UnblockConversation)
		chat.DELETE("/:conversationId", h.DeleteConversation)
		chat.GET("/online-users", h.OnlineUsers)
		chat.GET("/ws", h.ChatSocket)
	}

	users := router.Group("/users", requireAuth)
	users.POST("/seller-profile", h.CreateSellerProfile)
	users.PATCH("/profile", h.UpdateProfile)

	admin := router.Group("/admin", requireAuth, middleware.RequireRoles(models.UserRoleAdmin))
	admin.PATCH("/users/:id/suspension", h.AdminToggleSuspension)
	admin.PATCH("/sellers/:id", h.AdminUpdateSeller)
	admin.PATCH("/sellers/:id/status", h.AdminSetSellerStatus)
	admin.DELETE("/users/:id", h.AdminDeleteUser)
}

func (h HandlerSet) respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, h.log, err)
}

func (h HandlerSet) bindError(c *gin.Context, err error) {
	middleware.Fail(c, http.StatusBadRequest, "validation_error", err.Error())
}

func ok(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func currentUser(c *gin.Context) models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}
