// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrItemNotFound = errors.New("item not found")

// Service provides read access to the catalog
type Service struct {
	db *gorm.DB
}

// NewService creates a new catalog service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetItem retrieves an active item by ID
func (s *Service) GetItem(ctx context.Context, id uint) (*Item, error) {
	var item Item
	err := s.db.WithContext(ctx).Preload("Course").
		Where("id = ? AND is_active = ?", id, true).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to retrieve item: %w", err)
	}
	return &item, nil
}

// GetItemsByIDs loads items keyed by ID, inactive ones included
func (s *Service) GetItemsByIDs(ctx context.Context, ids []uint) (map[uint]Item, error) {
	result := make(map[uint]Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var items []Item
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve items: %w", err)
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

// ListItems lists active items, optionally filtered by kind
func (s *Service) ListItems(ctx context.Context, kind ItemKind) ([]Item, error) {
	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var items []Item
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}
