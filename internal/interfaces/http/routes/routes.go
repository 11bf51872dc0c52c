// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/domain/cart"
	"github.com/your-org/coursekit-backend/internal/domain/catalog"
	"github.com/your-org/coursekit-backend/internal/domain/checkout"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"github.com/your-org/coursekit-backend/internal/domain/order"
	"github.com/your-org/coursekit-backend/internal/domain/payment"
	"github.com/your-org/coursekit-backend/internal/interfaces/http/handlers"
	"github.com/your-org/coursekit-backend/internal/interfaces/http/middleware"
	"github.com/your-org/coursekit-backend/internal/pkg/auth"
	"github.com/your-org/coursekit-backend/internal/pkg/metrics"
	"gorm.io/gorm"
)

// Dependencies carries everything the route handlers are built from
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    redis.UniversalClient
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
	Provider payment.Provider
	// Locker may be nil, in which case settlement relies on session uniqueness alone
	Locker payment.Locker
}

type handlerSet struct {
	catalog   *handlers.CatalogHandler
	cart      *handlers.CartHandler
	checkout  *handlers.CheckoutHandler
	payment   *handlers.PaymentHandler
	order     *handlers.OrderHandler
	inventory *handlers.InventoryHandler
}

func newHandlerSet(deps Dependencies) *handlerSet {
	catalogService := catalog.NewService(deps.DB)
	ledger := inventory.NewLedger(deps.DB)
	txManager := checkout.NewTxManager(deps.DB, ledger)

	cartService := cart.NewService(deps.DB, catalogService)
	orderService := order.NewService(deps.DB, deps.Logger)
	checkoutService := checkout.NewService(txManager, deps.Config, deps.Logger, deps.Metrics)
	gateway := payment.NewGateway(deps.DB, txManager, deps.Provider, deps.Locker, deps.Config, deps.Logger, deps.Metrics)

	return &handlerSet{
		catalog:   handlers.NewCatalogHandler(catalogService, deps.Logger),
		cart:      handlers.NewCartHandler(cartService, deps.Logger),
		checkout:  handlers.NewCheckoutHandler(checkoutService, deps.Logger),
		payment:   handlers.NewPaymentHandler(gateway, deps.Logger),
		order:     handlers.NewOrderHandler(orderService, deps.Logger),
		inventory: handlers.NewInventoryHandler(ledger, deps.Logger),
	}
}

// SetupRoutes registers every /api/v1 route
func SetupRoutes(rg *gin.RouterGroup, deps Dependencies) {
	h := newHandlerSet(deps)
	jwtManager := auth.NewJWTManager(deps.Config)

	SetupCatalogRoutes(rg, h)
	SetupCartRoutes(rg, h, jwtManager)
	SetupOrderRoutes(rg, h, jwtManager)
	SetupPaymentRoutes(rg, h, jwtManager)
	SetupAdminRoutes(rg, h, jwtManager)
}

// SetupCatalogRoutes sets up public catalog routes
func SetupCatalogRoutes(rg *gin.RouterGroup, h *handlerSet) {
	items := rg.Group("/catalog/items")
	{
		items.GET("", h.catalog.ListItems)
		items.GET("/:id", h.catalog.GetItem)
	}
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, h *handlerSet, jwtManager *auth.JWTManager) {
	cartGroup := rg.Group("/cart")
	cartGroup.Use(middleware.AuthMiddleware(jwtManager))
	{
		cartGroup.GET("", h.cart.GetCart)
		cartGroup.DELETE("", h.cart.ClearCart)
		cartGroup.POST("/items", h.cart.AddItem)
		cartGroup.PUT("/items/:itemId", h.cart.UpdateItem)
		cartGroup.DELETE("/items/:itemId", h.cart.RemoveItem)
	}
}

// SetupOrderRoutes sets up checkout and order history routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *handlerSet, jwtManager *auth.JWTManager) {
	rg.POST("/checkout", middleware.AuthMiddleware(jwtManager), h.checkout.Checkout)

	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(jwtManager))
	{
		orders.GET("", h.order.GetOrders)
		orders.GET("/:id", h.order.GetOrder)
	}
}

// SetupPaymentRoutes sets up hosted payment routes. The webhook is
// authenticated by its signature, not by a bearer token.
func SetupPaymentRoutes(rg *gin.RouterGroup, h *handlerSet, jwtManager *auth.JWTManager) {
	paymentGroup := rg.Group("/payment")
	{
		paymentGroup.POST("/webhook", h.payment.Webhook)

		protected := paymentGroup.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager))
		{
			protected.POST("/create-checkout-session", h.payment.CreateCheckoutSession)
			protected.GET("/verify-session/:sessionId", h.payment.VerifySession)
		}
	}
}

// SetupAdminRoutes sets up admin related routes
func SetupAdminRoutes(rg *gin.RouterGroup, h *handlerSet, jwtManager *auth.JWTManager) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager)) // Require authentication
	admin.Use(middleware.AdminMiddleware())          // Require admin privileges
	{
		orders := admin.Group("/orders")
		{
			orders.GET("", h.order.AdminGetOrders)
			orders.GET("/:id", h.order.AdminGetOrder)
			orders.PUT("/:id/status", h.order.AdminUpdateOrderStatus)
		}

		items := admin.Group("/items")
		{
			items.POST("/:id/restock", h.inventory.Restock)
			items.GET("/:id/movements", h.inventory.GetMovements)
		}
	}
}
