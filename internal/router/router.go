package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/handler"
	"github.com/mbeoliero/ringlink/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Contact *handler.ContactHandler
	Message *handler.MessageHandler
	Call    *handler.CallHandler
	Profile *handler.ProfileHandler
	Webhook *handler.WebhookHandler
}

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, cfg *config.Config, handlers *Handlers) {
	h.Use(middleware.Metrics())
	h.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	// Provider callbacks (no auth, the provider signs nothing we can check)
	h.POST("/callback/ytx", handlers.Webhook.Callback)

	auth := middleware.JWTAuth(cfg.JWT.Secret)

	profileGroup := h.Group("/profile", auth)
	{
		profileGroup.GET("/info", handlers.Profile.GetProfile)
		profileGroup.PUT("/update", handlers.Profile.UpdateProfile)
	}

	contactGroup := h.Group("/contact", auth)
	{
		contactGroup.GET("/list", handlers.Contact.ListContacts)
		contactGroup.GET("/info", handlers.Contact.GetContact)
		contactGroup.GET("/unread_count", handlers.Contact.GetUnreadCount)
		contactGroup.POST("/link", handlers.Contact.LinkContact)
		contactGroup.POST("/open", handlers.Contact.OpenConversation)
		contactGroup.POST("/block", handlers.Contact.SetBlock)
		contactGroup.POST("/remark", handlers.Contact.SetRemark)
	}

	msgGroup := h.Group("/msg", auth)
	{
		msgGroup.POST("/trigger", handlers.Message.Trigger)
		msgGroup.POST("/stay", handlers.Message.Stay)
		msgGroup.GET("/latest", handlers.Message.Latest)
		msgGroup.GET("/after", handlers.Message.After)
		msgGroup.GET("/reach", handlers.Message.Reach)
	}

	callGroup := h.Group("/call", auth)
	{
		callGroup.POST("/start", handlers.Call.StartCall)
		callGroup.GET("/info", handlers.Call.GetCall)
		callGroup.POST("/poll", handlers.Call.PollCall)
		callGroup.POST("/check", handlers.Call.CheckCallMessages)
	}
}
