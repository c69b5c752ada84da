// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ekurt/tour-operator-core/internal/config"
	"github.com/ekurt/tour-operator-core/internal/handler"
	"github.com/ekurt/tour-operator-core/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers every authenticated endpoint under /v1.  The
// whole group runs behind the organization auth middleware, the rate
// limiter and the response cache, in that order: the limiter and the
// cache both key by the organization the token carries.
func RegisterAPI(
	e *echo.Echo,
	jwtSecret string,
	rdb *redis.Client,
	catalog *handler.CatalogHandler,
	quotes *handler.QuoteHandler,
	agents *handler.AgentHandler,
	invoices *handler.InvoiceHandler,
	reports *handler.ReportHandler,
) {
	v1 := e.Group("/v1")
	v1.Use(middleware.OrgAuth(jwtSecret))
	v1.Use(middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb))
	v1.Use(middleware.NewResponseCache(config.LoadCacheConfig(), rdb))

	// service catalog
	v1.POST("/services", catalog.CreateService)
	v1.GET("/services", catalog.ListServices)
	v1.GET("/services/:id", catalog.GetService)
	v1.PUT("/services/:id", catalog.UpdateService)
	v1.PATCH("/services/:id/active", catalog.SetServiceActive)

	// seasonal price variations
	v1.POST("/services/:id/variations", catalog.CreateVariation)
	v1.GET("/services/:id/variations", catalog.ListVariations)
	v1.PUT("/variations/:id", catalog.UpdateVariation)
	v1.POST("/variations/:id/archive", catalog.ArchiveVariation)

	// price resolution
	v1.POST("/prices/resolve", catalog.ResolvePrice)

	// itineraries
	v1.POST("/itineraries", quotes.CreateItinerary)
	v1.GET("/itineraries", quotes.ListItineraries)
	v1.GET("/itineraries/:id", quotes.GetItinerary)
	v1.POST("/itineraries/:id/confirm", quotes.ConfirmItinerary)
	v1.POST("/itineraries/:id/days/:day/items", quotes.AddItem)
	v1.PATCH("/itineraries/:id/days/:day/items/:pos", quotes.UpdateItem)
	v1.DELETE("/itineraries/:id/days/:day/items/:pos", quotes.RemoveItem)

	// agent accounts
	v1.POST("/agents", agents.CreateAgent)
	v1.GET("/agents", agents.ListAgents)
	v1.GET("/agents/summary", agents.Summary)
	v1.GET("/agents/:id", agents.GetAgent)
	v1.POST("/agents/:id/transactions", agents.RecordTransaction)
	v1.GET("/agents/:id/transactions", agents.ListTransactions)
	v1.PUT("/agent-transactions/:id", agents.UpdateTransaction)
	v1.DELETE("/agent-transactions/:id", agents.DeleteTransaction)

	// invoices and payments
	v1.POST("/invoices", invoices.CreateInvoice)
	v1.GET("/invoices", invoices.ListInvoices)
	v1.GET("/invoices/stats", invoices.InvoiceStats)
	v1.GET("/invoices/:id", invoices.GetInvoice)
	v1.POST("/invoices/:id/send", invoices.SendInvoice)
	v1.POST("/invoices/:id/cancel", invoices.CancelInvoice)
	v1.POST("/invoices/:id/payments", invoices.RecordPayment)
	v1.GET("/invoices/:id/payments", invoices.ListPayments)
	v1.DELETE("/invoices/:id/payments/:pid", invoices.DeletePayment)

	// reports
	v1.GET("/reports/financial-summary", reports.FinancialSummary)
}
