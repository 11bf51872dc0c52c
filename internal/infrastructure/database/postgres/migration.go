// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/coursekit-backend/internal/domain/cart"
	"github.com/your-org/coursekit-backend/internal/domain/catalog"
	"github.com/your-org/coursekit-backend/internal/domain/enrollment"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"github.com/your-org/coursekit-backend/internal/domain/order"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger logrus.FieldLogger) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("🔄 Running database auto-migrations...")

	// Dependency order
	models := []interface{}{
		// Catalog
		&catalog.Course{},
		&catalog.Item{},

		&inventory.StockMovement{},
		&cart.CartItem{},
		&enrollment.Enrollment{},

		// Orders
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
	}

	for _, model := range models {
		m.logger.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for the hot query paths
func (m *Migration) CreateIndexes() error {
	m.logger.Info("🔄 Creating additional database indexes...")

	indexes := []string{
		// Catalog
		"CREATE INDEX IF NOT EXISTS idx_items_kind_active ON items(kind, is_active)",

		// Orders
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_order_date ON orders(user_id, order_date DESC)",

		// History and audit trails
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_reference ON stock_movements(reference_type, reference_id)",
	}

	failCount := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).Warn("⚠️ Failed to create index")
			failCount++
		}
	}

	m.logger.Infof("✅ Created %d indexes successfully (%d failed)", len(indexes)-failCount, failCount)
	return nil
}

// SeedInitialData inserts a small catalog for development
func (m *Migration) SeedInitialData() error {
	m.logger.Info("🌱 Seeding initial data...")

	courses := []catalog.Course{
		{Title: "Embedded Systems Fundamentals", Slug: "embedded-systems-fundamentals", IsActive: true},
		{Title: "Robotics with Microcontrollers", Slug: "robotics-with-microcontrollers", IsActive: true},
	}
	for i := range courses {
		if err := m.db.Where("slug = ?", courses[i].Slug).FirstOrCreate(&courses[i]).Error; err != nil {
			return fmt.Errorf("failed to seed course %s: %w", courses[i].Slug, err)
		}
	}

	items := []catalog.Item{
		{
			SKU:           "COURSE-EMB-101",
			Name:          "Embedded Systems Fundamentals (course)",
			Kind:          catalog.ItemKindCourse,
			Price:         decimal.RequireFromString("49.00"),
			StockQuantity: 1000,
			CourseID:      &courses[0].ID,
			IsActive:      true,
		},
		{
			SKU:           "KIT-ROBO-STARTER",
			Name:          "Robotics Starter Kit",
			Kind:          catalog.ItemKindKit,
			Price:         decimal.RequireFromString("89.99"),
			StockQuantity: 25,
			CourseID:      &courses[1].ID,
			IsActive:      true,
		},
		{
			SKU:           "KIT-SENSOR-PACK",
			Name:          "Sensor Expansion Pack",
			Kind:          catalog.ItemKindKit,
			Price:         decimal.RequireFromString("24.50"),
			StockQuantity: 60,
			IsActive:      true,
		},
	}

	for _, item := range items {
		var existing catalog.Item
		err := m.db.Where("sku = ?", item.SKU).First(&existing).Error
		switch {
		case err == nil:
			m.logger.Debugf("⏭️ Item already exists: %s", item.SKU)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := m.db.Create(&item).Error; err != nil {
				m.logger.WithError(err).Warnf("⚠️ Failed to create item %s", item.SKU)
			}
		default:
			return fmt.Errorf("failed to look up item %s: %w", item.SKU, err)
		}
	}

	m.logger.Info("✅ Initial data seeded successfully")
	return nil
}
