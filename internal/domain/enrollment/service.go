// internal/domain/enrollment/service.go
package enrollment

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureEnrolled creates the (user, course) enrollment if it does not exist yet.
// It reports whether a new row was written. Safe to call concurrently.
func EnsureEnrolled(tx *gorm.DB, userID, courseID uint) (bool, error) {
	enrollment := &Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(enrollment)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create enrollment: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// Service provides enrollment queries
type Service struct {
	db *gorm.DB
}

// NewService creates a new enrollment service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ListForUser returns the user's enrollments, oldest first
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]Enrollment, error) {
	var enrollments []Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("enrolled_at ASC").
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}

// IsEnrolled reports whether the user can access the course
func (s *Service) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}
