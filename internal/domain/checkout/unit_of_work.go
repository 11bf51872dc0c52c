// internal/domain/checkout/unit_of_work.go
package checkout

import (
	"context"
	"sort"

	"github.com/your-org/coursekit-backend/internal/domain/cart"
	"github.com/your-org/coursekit-backend/internal/domain/catalog"
	"github.com/your-org/coursekit-backend/internal/domain/enrollment"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"gorm.io/gorm"
)

// UnitOfWork is one database transaction shared by every step of placing an
// order. Either all of its writes commit or none do.
type UnitOfWork struct {
	tx     *gorm.DB
	ledger *inventory.Ledger
}

// Tx exposes the underlying transaction
func (u *UnitOfWork) Tx() *gorm.DB {
	return u.tx
}

// LockCart reads and locks the user's cart lines
func (u *UnitOfWork) LockCart(userID uint) ([]cart.CartItem, error) {
	return cart.LockLines(u.tx, userID)
}

// ClearCart empties the user's cart
func (u *UnitOfWork) ClearCart(userID uint) error {
	return cart.ClearLines(u.tx, userID)
}

// LockItems locks every item referenced by the cart lines, in item id order,
// and checks each has enough stock for its line.
func (u *UnitOfWork) LockItems(lines []cart.CartItem) (map[uint]*catalog.Item, error) {
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make(map[uint]*catalog.Item, len(ids))
	for _, id := range ids {
		item, err := u.ledger.LockItem(u.tx, id)
		if err != nil {
			return nil, err
		}
		items[id] = item
	}

	for _, line := range lines {
		if err := inventory.EnsureAvailable(items[line.ItemID], line.Quantity); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Decrement takes stock for an order line
func (u *UnitOfWork) Decrement(itemID uint, quantity int, orderID uint) error {
	return u.ledger.Decrement(u.tx, itemID, quantity, orderID)
}

// Enroll grants course access, tolerating an existing enrollment
func (u *UnitOfWork) Enroll(userID, courseID uint) (bool, error) {
	return enrollment.EnsureEnrolled(u.tx, userID, courseID)
}

// Nested runs fn under a savepoint. Its writes are discarded if fn fails
// while the enclosing unit of work carries on.
func (u *UnitOfWork) Nested(fn func(inner *UnitOfWork) error) error {
	return u.tx.Transaction(func(tx *gorm.DB) error {
		return fn(&UnitOfWork{tx: tx, ledger: u.ledger})
	})
}

// TxManager opens units of work against the database
type TxManager struct {
	db     *gorm.DB
	ledger *inventory.Ledger
}

// NewTxManager creates a new transaction manager
func NewTxManager(db *gorm.DB, ledger *inventory.Ledger) *TxManager {
	return &TxManager{
		db:     db,
		ledger: ledger,
	}
}

// WithUnitOfWork runs fn in a transaction. A returned error or panic rolls back.
func (m *TxManager) WithUnitOfWork(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UnitOfWork{tx: tx, ledger: m.ledger})
	})
}
