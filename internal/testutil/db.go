// internal/testutil/db.go
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/domain/cart"
	"github.com/your-org/coursekit-backend/internal/domain/catalog"
	"github.com/your-org/coursekit-backend/internal/domain/order"
	"github.com/your-org/coursekit-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/coursekit-backend/internal/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a private in-memory database with the full schema.
// A single connection keeps every query on the same database and
// serializes transactions the way row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, postgres.NewMigration(db, logger.Discard()).RunAutoMigrations())
	return db
}

// Config returns a valid configuration for tests
func Config() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "CourseKit Test",
			Version:     "test",
			Environment: "test",
		},
		Server: config.ServerConfig{
			Port:           "0",
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		JWT: config.JWTConfig{
			Secret:            "test-secret-key-that-is-long-enough-1234",
			AccessTokenExpiry: time.Hour,
		},
		Security: config.SecurityConfig{
			RateLimitPerMinute: 1000,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		},
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_123",
			WebhookSecret: "whsec_test_secret",
			Currency:      "usd",
			SuccessURL:    "http://localhost:3000/payment/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:     "http://localhost:3000/cart",
			Timeout:       2 * time.Second,
		},
		Checkout: config.CheckoutConfig{
			MinAddressLength: 10,
		},
		Payment: config.PaymentConfig{
			SettleLockTTL:     5 * time.Second,
			SettleLockWait:    2 * time.Second,
			LegacyAmountMatch: true,
			LegacyMatchWindow: 24 * time.Hour,
		},
		Logging: config.LoggingConfig{
			Level:  "panic",
			Format: "text",
		},
	}
}

// CreateCourse inserts an active course
func CreateCourse(t testing.TB, db *gorm.DB, slug string) *catalog.Course {
	t.Helper()

	course := &catalog.Course{Title: slug, Slug: slug, IsActive: true}
	require.NoError(t, db.Create(course).Error)
	return course
}

// CreateItem inserts an active item with the given price and stock
func CreateItem(t testing.TB, db *gorm.DB, sku, price string, stock int, courseID *uint) *catalog.Item {
	t.Helper()

	kind := catalog.ItemKindKit
	if courseID != nil {
		kind = catalog.ItemKindCourse
	}
	item := &catalog.Item{
		SKU:           sku,
		Name:          sku,
		Kind:          kind,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		CourseID:      courseID,
		IsActive:      true,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// AddToCart puts a line straight into a user's cart
func AddToCart(t testing.TB, db *gorm.DB, userID, itemID uint, quantity int) {
	t.Helper()

	require.NoError(t, db.Create(&cart.CartItem{UserID: userID, ItemID: itemID, Quantity: quantity}).Error)
}

// Stock reads an item's current stock level
func Stock(t testing.TB, db *gorm.DB, itemID uint) int {
	t.Helper()

	var item catalog.Item
	require.NoError(t, db.First(&item, itemID).Error)
	return item.StockQuantity
}

// CartSize counts the lines in a user's cart
func CartSize(t testing.TB, db *gorm.DB, userID uint) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&cart.CartItem{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

// Orders lists a user's orders with their lines, oldest first
func Orders(t testing.TB, db *gorm.DB, userID uint) []order.Order {
	t.Helper()

	var orders []order.Order
	require.NoError(t, db.Preload("Items").Where("user_id = ?", userID).Order("id ASC").Find(&orders).Error)
	return orders
}
