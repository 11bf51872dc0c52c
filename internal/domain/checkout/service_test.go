package checkout_test

import (
	"context"
	"errors"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/coursekit-backend/internal/domain/checkout"
	"github.com/your-org/coursekit-backend/internal/domain/enrollment"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"github.com/your-org/coursekit-backend/internal/domain/order"
	"github.com/your-org/coursekit-backend/internal/pkg/logger"
	"github.com/your-org/coursekit-backend/internal/pkg/metrics"
	"github.com/your-org/coursekit-backend/internal/testutil"
	"gorm.io/gorm"
)

const address = "12 Harbour Road, Springfield"

func setupCheckout(t *testing.T) (*checkout.Service, *gorm.DB) {
	db := testutil.NewDB(t)
	txManager := checkout.NewTxManager(db, inventory.NewLedger(db))
	return checkout.NewService(txManager, testutil.Config(), logger.Discard(), metrics.New()), db
}

func TestCheckout_PlacesPendingOrder(t *testing.T) {
	svc, db := setupCheckout(t)
	k1 := testutil.CreateItem(t, db, "K1", "50.00", 5, nil)
	testutil.AddToCart(t, db, 1, k1.ID, 2)

	placed, err := svc.Checkout(context.Background(), 1, address)
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, placed.Status)
	assert.Equal(t, "100.00", placed.TotalAmount.StringFixed(2))
	assert.Equal(t, address, placed.ShippingAddress)
	assert.Nil(t, placed.PaymentSessionID)
	require.Len(t, placed.Items, 1)
	assert.Equal(t, 2, placed.Items[0].Quantity)
	assert.Equal(t, "50.00", placed.Items[0].PriceAtPurchase.StringFixed(2))

	assert.Equal(t, 3, testutil.Stock(t, db, k1.ID))
	assert.Equal(t, int64(0), testutil.CartSize(t, db, 1))

	orders := testutil.Orders(t, db, 1)
	require.Len(t, orders, 1)
	assert.Equal(t, "100.00", orders[0].TotalAmount.StringFixed(2))
	assert.Equal(t, "100.00", order.SumLines(orders[0].Items).StringFixed(2))
}

func TestCheckout_InsufficientStockChangesNothing(t *testing.T) {
	svc, db := setupCheckout(t)
	k1 := testutil.CreateItem(t, db, "K1", "50.00", 10, nil)
	k2 := testutil.CreateItem(t, db, "K2", "30.00", 1, nil)
	testutil.AddToCart(t, db, 1, k1.ID, 2)
	testutil.AddToCart(t, db, 1, k2.ID, 3)

	_, err := svc.Checkout(context.Background(), 1, address)
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, k2.ID, stockErr.ItemID)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	assert.Equal(t, 10, testutil.Stock(t, db, k1.ID))
	assert.Equal(t, 1, testutil.Stock(t, db, k2.ID))
	assert.Equal(t, int64(2), testutil.CartSize(t, db, 1))
	assert.Empty(t, testutil.Orders(t, db, 1))
}

func TestCheckout_RejectsShortAddress(t *testing.T) {
	svc, db := setupCheckout(t)
	k1 := testutil.CreateItem(t, db, "K1", "50.00", 5, nil)
	testutil.AddToCart(t, db, 1, k1.ID, 1)

	for _, addr := range []string{"123 AB", "", "          ", "  123 AB   "} {
		_, err := svc.Checkout(context.Background(), 1, addr)
		assert.ErrorIs(t, err, checkout.ErrInvalidAddress, "address %q", addr)
	}

	assert.Equal(t, 5, testutil.Stock(t, db, k1.ID))
	assert.Equal(t, int64(1), testutil.CartSize(t, db, 1))
}

func TestCheckout_TrimsAddress(t *testing.T) {
	svc, db := setupCheckout(t)
	k1 := testutil.CreateItem(t, db, "K1", "50.00", 5, nil)
	testutil.AddToCart(t, db, 1, k1.ID, 1)

	placed, err := svc.Checkout(context.Background(), 1, "   "+address+"\n")
	require.NoError(t, err)
	assert.Equal(t, address, placed.ShippingAddress)
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, db := setupCheckout(t)

	_, err := svc.Checkout(context.Background(), 1, address)
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Empty(t, testutil.Orders(t, db, 1))
}

func TestCheckout_Unauthenticated(t *testing.T) {
	svc, _ := setupCheckout(t)

	_, err := svc.Checkout(context.Background(), 0, address)
	assert.ErrorIs(t, err, checkout.ErrUnauthenticated)
}

func TestCheckout_EnrollsOnceForCourseItems(t *testing.T) {
	svc, db := setupCheckout(t)
	course := testutil.CreateCourse(t, db, "robotics")
	courseItem := testutil.CreateItem(t, db, "C1", "49.00", 100, &course.ID)
	kit := testutil.CreateItem(t, db, "K1", "20.00", 100, nil)

	testutil.AddToCart(t, db, 1, courseItem.ID, 1)
	testutil.AddToCart(t, db, 1, kit.ID, 1)
	_, err := svc.Checkout(context.Background(), 1, address)
	require.NoError(t, err)

	// Buying the same course again must not duplicate the enrollment
	testutil.AddToCart(t, db, 1, courseItem.ID, 1)
	_, err = svc.Checkout(context.Background(), 1, address)
	require.NoError(t, err)

	enrollments, err := enrollment.NewService(db).ListForUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, course.ID, enrollments[0].CourseID)
	assert.Equal(t, 0, enrollments[0].ProgressPercentage)
}

func TestCheckout_PriceCapturedAtPurchase(t *testing.T) {
	svc, db := setupCheckout(t)
	k1 := testutil.CreateItem(t, db, "K1", "50.00", 5, nil)
	testutil.AddToCart(t, db, 1, k1.ID, 1)

	placed, err := svc.Checkout(context.Background(), 1, address)
	require.NoError(t, err)

	require.NoError(t, db.Model(k1).Update("price", "75.00").Error)

	orders := testutil.Orders(t, db, 1)
	require.Len(t, orders, 1)
	assert.Equal(t, placed.ID, orders[0].ID)
	assert.Equal(t, "50.00", orders[0].Items[0].PriceAtPurchase.StringFixed(2))
	assert.Equal(t, "50.00", orders[0].TotalAmount.StringFixed(2))
}

func TestCheckout_StorageFailureRollsBack(t *testing.T) {
	svc, db := setupCheckout(t)
	k1 := testutil.CreateItem(t, db, "K1", "50.00", 5, nil)
	testutil.AddToCart(t, db, 1, k1.ID, 2)

	diskFull := errors.New("disk full")
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_order_items", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "order_items" {
			_ = tx.AddError(diskFull)
		}
	}))

	_, err := svc.Checkout(context.Background(), 1, address)
	require.Error(t, err)
	assert.ErrorIs(t, err, checkout.ErrStorageFailure)
	assert.ErrorIs(t, err, diskFull)

	assert.Equal(t, 5, testutil.Stock(t, db, k1.ID))
	assert.Equal(t, int64(1), testutil.CartSize(t, db, 1))
	assert.Empty(t, testutil.Orders(t, db, 1))

	var movements int64
	require.NoError(t, db.Model(&inventory.StockMovement{}).Count(&movements).Error)
	assert.Zero(t, movements)
}

func TestCheckout_UnknownItem(t *testing.T) {
	svc, db := setupCheckout(t)
	testutil.AddToCart(t, db, 1, 4242, 1)

	_, err := svc.Checkout(context.Background(), 1, address)
	assert.ErrorIs(t, err, inventory.ErrItemNotFound)
	assert.Equal(t, int64(1), testutil.CartSize(t, db, 1))
}

func TestValidateAddress(t *testing.T) {
	got, err := checkout.ValidateAddress("  ten chars!  ", 10)
	require.NoError(t, err)
	assert.Equal(t, "ten chars!", got)

	// Length counts characters, not bytes
	_, err = checkout.ValidateAddress("ÄÖÜäöü", 10)
	assert.ErrorIs(t, err, checkout.ErrInvalidAddress)
}

func TestCheckout_LogsAndCountsOutcomes(t *testing.T) {
	db := testutil.NewDB(t)
	log, hook := logtest.NewNullLogger()
	m := metrics.New()
	txManager := checkout.NewTxManager(db, inventory.NewLedger(db))
	svc := checkout.NewService(txManager, testutil.Config(), log, m)

	k1 := testutil.CreateItem(t, db, "K1", "50.00", 1, nil)
	testutil.AddToCart(t, db, 1, k1.ID, 2)

	_, err := svc.Checkout(context.Background(), 1, address)
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, k1.ID, entry.Data["item_id"])
	assert.Equal(t, 1, entry.Data["available"])
	assert.Equal(t, 2, entry.Data["requested"])
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.Checkouts.WithLabelValues("insufficient_stock")))

	hook.Reset()
	testutil.AddToCart(t, db, 2, k1.ID, 1)
	placed, err := svc.Checkout(context.Background(), 2, address)
	require.NoError(t, err)

	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Checkout completed", entry.Message)
	assert.Equal(t, placed.OrderNumber, entry.Data["order_number"])
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.Checkouts.WithLabelValues("placed")))
}
