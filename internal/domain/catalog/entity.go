// internal/domain/catalog/entity.go
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes purchasable courses from hardware kits
type ItemKind string

const (
	ItemKindCourse ItemKind = "course"
	ItemKindKit    ItemKind = "kit"
)

// Course is the learning content an enrollment grants access to
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null;size:255" json:"title"`
	Slug      string    `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a sellable catalog entry. Stock is decremented only by checkout.
type Item struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	SKU           string          `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name          string          `gorm:"not null;size:255" json:"name"`
	Kind          ItemKind        `gorm:"not null;size:20;default:'kit'" json:"kind"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	StockQuantity int             `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	CourseID      *uint           `gorm:"index" json:"course_id,omitempty"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Course *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// TableName overrides
func (Course) TableName() string { return "courses" }
func (Item) TableName() string   { return "items" }

// IsCourseLinked reports whether buying the item grants a course enrollment
func (i *Item) IsCourseLinked() bool {
	return i.CourseID != nil
}

// HasStock checks if there's enough stock for the requested quantity
func (i *Item) HasStock(quantity int) bool {
	return i.StockQuantity >= quantity
}
