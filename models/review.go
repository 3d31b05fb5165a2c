package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	CompanionID string    `gorm:"type:varchar(64);not null;index" json:"companion_id"`
	PatientID   string    `gorm:"type:varchar(64);not null" json:"patient_id"`
	Rating      int       `gorm:"not null" json:"rating"` // 1..5
	Comment     string    `gorm:"type:varchar(1024)" json:"comment"`
	TagsJSON    string    `gorm:"type:jsonb" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReviewStats is the aggregated rating view for one companion.
type ReviewStats struct {
	CompanionID        string      `json:"companion_id"`
	Rating             float64     `json:"rating"`
	ReviewCount        int64       `json:"review_count"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}
