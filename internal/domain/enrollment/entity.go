// internal/domain/enrollment/entity.go
package enrollment

import "time"

// Enrollment grants a user access to a course
type Enrollment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"user_id"`
	CourseID           uint       `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"course_id"`
	ProgressPercentage int        `gorm:"not null;default:0" json:"progress_percentage"`
	IsCompleted        bool       `gorm:"not null;default:false" json:"is_completed"`
	EnrolledAt         time.Time  `gorm:"not null" json:"enrolled_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName override
func (Enrollment) TableName() string { return "enrollments" }
