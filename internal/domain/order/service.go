// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Service handles order queries and admin status changes
type Service struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewService creates a new order service
func NewService(db *gorm.DB, logger logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// ListRequest represents order list query parameters
type ListRequest struct {
	Page      int    `form:"page,default=1"`
	Limit     int    `form:"limit,default=20"`
	Status    Status `form:"status"`
	UserID    uint   `form:"user_id"`
	SortBy    string `form:"sort_by,default=created_at"`
	SortOrder string `form:"sort_order,default=desc"`
}

// ListResponse represents orders with pagination
type ListResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// UpdateStatusRequest represents an admin status change
type UpdateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

// ListOrders retrieves orders with filtering and pagination
func (s *Service) ListOrders(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = defaultPageLimit
	}
	if req.Limit > maxPageLimit {
		req.Limit = maxPageLimit
	}

	query := s.db.WithContext(ctx).Model(&Order{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	offset := (req.Page - 1) * req.Limit
	err := query.Preload("Items").
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Offset(offset).Limit(req.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &ListResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}, nil
}

// ListUserOrders retrieves orders for a specific user
func (s *Service) ListUserOrders(ctx context.Context, userID uint, page, limit int) (*ListResponse, error) {
	return s.ListOrders(ctx, &ListRequest{
		Page:      page,
		Limit:     limit,
		UserID:    userID,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
}

// GetOrder retrieves a single order by ID
func (s *Service) GetOrder(ctx context.Context, id uint) (*Order, error) {
	return s.findOrder(ctx, s.db.Where("id = ?", id))
}

// GetUserOrder retrieves an order only if it belongs to the user
func (s *Service) GetUserOrder(ctx context.Context, userID, id uint) (*Order, error) {
	return s.findOrder(ctx, s.db.Where("id = ? AND user_id = ?", id, userID))
}

func (s *Service) findOrder(ctx context.Context, scope *gorm.DB) (*Order, error) {
	var order Order
	err := scope.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("id DESC")
		}).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

// UpdateStatus moves an order to a new status on behalf of an admin.
// Cancelling does not return stock.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, req *UpdateStatusRequest, updatedBy uint) (*Order, error) {
	status, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to retrieve order: %w", err)
		}

		if !CanTransition(order.Status, status) {
			return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, order.Status, status)
		}

		updates := map[string]interface{}{
			"status": status,
		}

		// Set timestamps based on status
		now := time.Now().UTC()
		switch status {
		case StatusProcessing:
			updates["processed_at"] = now
		case StatusShipped:
			updates["shipped_at"] = now
		case StatusDelivered:
			updates["delivered_at"] = now
		case StatusCancelled:
			updates["cancelled_at"] = now
		}

		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		return RecordStatus(tx, order.ID, status, req.Comment, updatedBy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   orderID,
		"status":     status,
		"updated_by": updatedBy,
	}).Info("Order status updated")

	return s.GetOrder(ctx, orderID)
}

// Insert writes a new order header and its first status history row.
// Lines are added separately with InsertLine.
func Insert(tx *gorm.DB, order *Order, comment string, createdBy uint) error {
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return RecordStatus(tx, order.ID, order.Status, comment, createdBy)
}

// InsertLine appends a line to an existing order
func InsertLine(tx *gorm.DB, orderID uint, line *OrderItem) error {
	line.OrderID = orderID
	if err := tx.Create(line).Error; err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

// UpdateTotal stores the final total of an order being assembled
func UpdateTotal(tx *gorm.DB, orderID uint, total decimal.Decimal) error {
	if err := tx.Model(&Order{}).Where("id = ?", orderID).Update("total_amount", total).Error; err != nil {
		return fmt.Errorf("failed to update order total: %w", err)
	}
	return nil
}

// RecordStatus appends a status history row
func RecordStatus(tx *gorm.DB, orderID uint, status Status, comment string, createdBy uint) error {
	history := OrderStatusHistory{
		OrderID:   orderID,
		Status:    status,
		Comment:   comment,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}
	return nil
}

// FindBySessionID returns the order recorded for a payment session, or nil
func FindBySessionID(tx *gorm.DB, sessionID string) (*Order, error) {
	var order Order
	err := tx.Where("payment_session_id = ?", sessionID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up order by session: %w", err)
	}
	return &order, nil
}

// FindLegacyPaidOrder looks for a paid order without a session reference whose
// total is within one minor unit of amountMinor and that was placed at or after since.
func FindLegacyPaidOrder(tx *gorm.DB, userID uint, amountMinor int64, since time.Time) (*Order, error) {
	var candidates []Order
	err := tx.Where("user_id = ? AND payment_session_id IS NULL AND status = ?", userID, StatusCompleted).
		Order("id DESC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up paid orders: %w", err)
	}

	target := decimal.NewFromInt(amountMinor)
	one := decimal.NewFromInt(1)
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.OrderDate.Before(since) {
			continue
		}
		if candidate.TotalAmount.Shift(2).Sub(target).Abs().LessThan(one) {
			return candidate, nil
		}
	}
	return nil, nil
}

func buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"created_at":   true,
		"order_date":   true,
		"total_amount": true,
		"status":       true,
		"order_number": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, id %s", sortBy, sortOrder, sortOrder)
}
