package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/your-org/coursekit-backend/internal/domain/checkout"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"github.com/your-org/coursekit-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/coursekit-backend/internal/pkg/logger"
	"github.com/your-org/coursekit-backend/internal/pkg/metrics"
	"github.com/your-org/coursekit-backend/internal/testutil"
	"gorm.io/gorm"
)

const address = "12 Harbour Road, Springfield"

func setupPostgres(t *testing.T) *gorm.DB {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("coursekit"),
		tcpostgres.WithUsername("coursekit"),
		tcpostgres.WithPassword("coursekit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := testutil.Config()
	cfg.Database.Host = host
	cfg.Database.Port = port.Port()
	cfg.Database.Name = "coursekit"
	cfg.Database.User = "coursekit"
	cfg.Database.Password = "coursekit"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxOpenConns = 16
	cfg.Database.MaxIdleConns = 4
	cfg.Database.MaxLifetime = time.Minute

	log := logger.Discard()
	conn, err := postgres.NewConnection(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.Health())

	migration := postgres.NewMigration(conn.GetDB(), log)
	require.NoError(t, migration.RunAutoMigrations())
	require.NoError(t, migration.CreateIndexes())

	return conn.GetDB()
}

func TestPostgres_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	db := setupPostgres(t)

	const buyers = 10
	item := testutil.CreateItem(t, db, "KIT-LAST", "25.00", 3, nil)
	for uid := uint(1); uid <= buyers; uid++ {
		testutil.AddToCart(t, db, uid, item.ID, 1)
	}

	txManager := checkout.NewTxManager(db, inventory.NewLedger(db))
	svc := checkout.NewService(txManager, testutil.Config(), logger.Discard(), metrics.New())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for uid := uint(1); uid <= buyers; uid++ {
		wg.Add(1)
		go func(uid uint) {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), uid, address)

			mu.Lock()
			defer mu.Unlock()
			var stockErr *inventory.InsufficientStockError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &stockErr):
				rejected++
			default:
				t.Errorf("unexpected checkout error: %v", err)
			}
		}(uid)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, buyers-3, rejected)
	assert.Equal(t, 0, testutil.Stock(t, db, item.ID))

	var movements int64
	require.NoError(t, db.Model(&inventory.StockMovement{}).Where("item_id = ?", item.ID).Count(&movements).Error)
	assert.Equal(t, int64(3), movements)
}

func TestPostgres_MigrationsAreRepeatable(t *testing.T) {
	db := setupPostgres(t)

	migration := postgres.NewMigration(db, logger.Discard())
	require.NoError(t, migration.RunAutoMigrations())
	require.NoError(t, migration.SeedInitialData())
	require.NoError(t, migration.SeedInitialData())

	var items int64
	require.NoError(t, db.Table("items").Count(&items).Error)
	assert.Equal(t, int64(3), items)
}
