package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thrillee/bulksms/internal/auth"
	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/dispatch"
	"github.com/thrillee/bulksms/internal/payment"
	"github.com/thrillee/bulksms/internal/queue"
	"github.com/thrillee/bulksms/internal/reconcile"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Campaigns  *campaign.Service
	Dispatcher *dispatch.Orchestrator
	Ledger     BalanceReader
	Jobs       queue.Enqueuer // nil disables ?async=true
	Reconciler *reconcile.Reconciler
	Payments   *payment.Service
	WebhookKey *auth.KeyVerifier
	Gatherer   prometheus.Gatherer
	Checks     map[string]HealthCheck
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", Health(d.Checks))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	SetupRoutes(router.Group("/api/v1"), d)
	return router
}

// SetupRoutes configures the API routes on router.
func SetupRoutes(router gin.IRouter, d Deps) {
	messageHandler := NewMessageHandler(d.Dispatcher)
	contactHandler := NewContactHandler(d.Campaigns)
	campaignHandler := NewCampaignHandler(d.Campaigns, d.Dispatcher, d.Jobs)
	balanceHandler := NewBalanceHandler(d.Ledger)
	webhookHandler := NewWebhookHandler(d.Reconciler, d.Payments)

	// --- Webhooks (gateway and payment providers) ---
	hooks := router.Group("/webhooks", RequireWebhookKey(d.WebhookKey))
	{
		hooks.POST("/delivery", webhookHandler.DeliveryReport)
		hooks.POST("/payments/:provider", webhookHandler.PaymentCallback)
	}

	// --- User routes ---
	user := router.Group("", RequireUser())
	{
		user.POST("/messages", messageHandler.SendMessage)
		user.GET("/balance", balanceHandler.GetBalance)

		user.POST("/contacts", contactHandler.CreateContact)
		user.POST("/contacts/import", contactHandler.ImportContacts)
		user.GET("/contacts", contactHandler.ListContacts)

		user.POST("/campaigns", campaignHandler.CreateCampaign)
		user.GET("/campaigns/:id", campaignHandler.GetCampaign)
		user.PUT("/campaigns/:id", campaignHandler.UpdateCampaign)
		user.POST("/campaigns/:id/duplicate", campaignHandler.DuplicateCampaign)
		user.POST("/campaigns/:id/send", campaignHandler.SendCampaign)
		user.POST("/campaigns/:id/cancel", campaignHandler.CancelCampaign)
		user.GET("/campaigns/:id/records", campaignHandler.ListRecords)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.InfoContext(c.Request.Context(), "HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)),
		)
	}
}
