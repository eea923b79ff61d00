package handlers

import (
	"time"

	"go-hospitality/internal/logging"
	"go-hospitality/internal/middleware"
	"go-hospitality/internal/models"
	"go-hospitality/internal/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterOptions are the deployment switches of the HTTP surface.
type RouterOptions struct {
	AllowedOrigins    []string
	AllowRegistration bool
	Limiter           *ratelimit.Limiter

	// TrustedProxies may set X-Forwarded-For. Empty means the peer address is the client.
	TrustedProxies []string
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		h.log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", opts.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(logging.RequestLogger(h.log), logging.Recovery(h.log))

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", IdempotencyHeader},
			ExposeHeaders:    []string{"Content-Length", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	limit := func(scope string) gin.HandlerFunc {
		if opts.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return opts.Limiter.Middleware(scope, h.log)
	}

	r.GET("/health", h.Health)
	r.POST("/api/auth/login", limit("login"), h.Login)
	r.POST("/api/realpay/webhook", h.RealPayWebhook)

	// Only opens if we explicitly allow it in .env
	if opts.AllowRegistration {
		r.POST("/api/auth/register", h.Register)
		h.log.Warn("registration route is OPEN, disable this in production")
	} else {
		h.log.Info("registration route is disabled")
	}

	// --- PROTECTED ROUTES ---
	api := r.Group("/api/secure")
	api.Use(middleware.AuthMiddleware(h.tokens))
	{
		// STAFF & ADMIN
		api.GET("/cart", h.GetCart)
		api.POST("/cart", h.UpsertCart)
		api.DELETE("/cart", h.ClearCart)
		api.POST("/checkout", limit("checkout"), h.Checkout)

		api.GET("/orders", h.GetOrders)
		api.GET("/orders/:orderNumber", h.GetOrder)
		api.POST("/orders/:orderNumber/cancel", h.CancelOrder)
		api.POST("/payments/:id/confirm", h.ConfirmPayment)

		api.POST("/discounts/validate", h.ValidateDiscount)

		api.GET("/properties", h.GetProperties)
		api.GET("/properties/:id", h.GetProperty)
		api.GET("/properties/:id/menu-items", h.GetMenuItems)

		// ADMIN ONLY
		admin := api.Group("")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/users", h.CreateUser)

			admin.GET("/discounts", h.GetDiscounts)
			admin.POST("/discounts", h.CreateDiscount)

			admin.POST("/properties", h.CreateProperty)
			admin.PUT("/properties/:id/bank-account", h.PutBankAccount)
			admin.POST("/properties/:id/menu-items", h.AddMenuItem)
			admin.PUT("/properties/:id/menu-items/:itemId", h.UpdateMenuItem)
			admin.DELETE("/properties/:id/menu-items/:itemId", h.DeleteMenuItem)

			admin.POST("/disbursements", h.ProcessDisbursement)
			admin.GET("/disbursements", h.GetDisbursements)
			admin.GET("/disbursements/:id", h.GetDisbursement)

			admin.GET("/reports/sales", h.GetSalesReport)
		}
	}

	return r
}
