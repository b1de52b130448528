package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/gocomet/rider-service/internal/api/handlers"
	"github.com/gocomet/rider-service/pkg/auth"
)

// CORSConfig lists what browsers may send
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application, cors CORSConfig) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}
	r.Use(corsMiddleware(cors))

	// Health check
	r.GET("/health", h.HealthCheck)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// WebSocket connection, authenticated by the handler itself
		v1.GET("/ws", h.HandleWebSocket)

		// Rider self-service endpoints
		self := v1.Group("/rider", auth.RequireAuth(h.Tokens), auth.RequireRole(auth.RoleRider, auth.RoleAdmin))
		{
			self.GET("/profile", h.GetProfile)
			self.PUT("/profile/personal", h.UpdatePersonalInfo)
			self.PUT("/profile/vehicle", h.UpdateVehicle)
			self.PUT("/profile/bank", h.UpdateBankDetails)
			self.GET("/profile/bank/last4", h.GetOwnBankLastFour)
			self.POST("/documents/:type", h.UploadDocument)
			self.GET("/documents/status", h.GetDocumentsStatus)
			self.PUT("/availability", h.UpdateAvailability)
			self.PUT("/location", h.UpdateLocation)
		}

		// Admin review and dispatch endpoints
		admin := v1.Group("/admin/riders", auth.RequireAuth(h.Tokens), auth.RequireRole(auth.RoleAdmin))
		{
			admin.GET("/available", h.FindAvailableRiders)
			admin.GET("/area", h.FindByServiceArea)
			admin.GET("/top", h.GetTopPerformers)
			admin.GET("/:userId", h.GetRider)
			admin.GET("/:userId/documents", h.GetRiderDocuments)
			admin.POST("/:userId/documents/:type/verify", h.VerifyDocument)
			admin.POST("/:userId/documents/:type/reject", h.RejectDocument)
			admin.POST("/:userId/suspend", h.SuspendRider)
			admin.POST("/:userId/approve", h.ApproveRider)
			admin.POST("/:userId/deliveries", h.RecordDelivery)
			admin.GET("/:userId/bank/last4", h.GetBankLastFour)
		}
	}
}

// corsMiddleware runs go-chi/cors inside gin. Preflight requests are answered
// by the cors handler and never reach the router.
func corsMiddleware(cfg CORSConfig) gin.HandlerFunc {
	policy := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
		MaxAge:         300,
	})

	return func(c *gin.Context) {
		passed := false
		policy.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
