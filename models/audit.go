package models

import (
	"time"

	"github.com/google/uuid"
)

// Service milestone step types, in progress order.
const (
	StepAccepted   = "accepted"
	StepArrived    = "arrived"
	StepRegistered = "registered"
	StepConsulting = "consulting"
	StepCompleted  = "completed"

	// Recorded when the deposit callback confirms an order. Not part of the
	// ordered progress vocabulary; stored but not rendered as a step.
	StepConfirmed = "confirmed"
)

// MilestoneRank orders the rendered progress steps. Step types outside this
// map are stored for forward compatibility but skipped by the progress view.
var MilestoneRank = map[string]int{
	StepAccepted:   1,
	StepArrived:    2,
	StepRegistered: 3,
	StepConsulting: 4,
	StepCompleted:  5,
}

// ServiceLog is one immutable audit-trail entry. Rows are only ever inserted.
type ServiceLog struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	StepType    string    `gorm:"type:varchar(32);not null" json:"step_type"`
	Description string    `gorm:"type:varchar(512)" json:"description"`
	EvidenceRef string    `gorm:"type:varchar(256)" json:"evidence_ref,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
