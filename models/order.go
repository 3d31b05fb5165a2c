package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusBrowsing       OrderStatus = "browsing"
	StatusConsulting     OrderStatus = "consulting"
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusInService      OrderStatus = "in_service"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

type DepositStatus string

const (
	DepositUnpaid   DepositStatus = "unpaid"
	DepositPaid     DepositStatus = "paid"
	DepositRefunded DepositStatus = "refunded"
)

// SystemActor is the sentinel principal used for transitions driven by
// verified payment callbacks and the expiry reaper. It is never read from a
// client-supplied header.
const SystemActor = "system"

type Order struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PatientID     string        `gorm:"type:varchar(64);not null;index" json:"patient_id"`
	CompanionID   string        `gorm:"type:varchar(64);not null;index" json:"companion_id"`
	Hospital      string        `gorm:"type:varchar(128);not null" json:"hospital"`
	Department    string        `gorm:"type:varchar(128);not null" json:"department"`
	ServiceTime   time.Time     `gorm:"not null" json:"service_time"`
	Status        OrderStatus   `gorm:"type:varchar(20);not null;default:'pending_payment';index" json:"status"`
	DepositStatus DepositStatus `gorm:"type:varchar(20);not null;default:'unpaid'" json:"deposit_status"`
	DepositAmount int           `gorm:"not null" json:"deposit_amount"` // minor units

	// Linkage to the latest payment attempt, set when the intent is created.
	PaymentID  *string `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	PaymentRef *string `gorm:"type:varchar(128)" json:"payment_ref,omitempty"`

	PatientInfoJSON string `gorm:"type:jsonb" json:"patient_info,omitempty"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`
	RefundReason string     `gorm:"type:varchar(256)" json:"refund_reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsParty reports whether the actor is one of the order's two parties.
func (o *Order) IsParty(actorID string) bool {
	return actorID == o.PatientID || actorID == o.CompanionID
}

// Terminal reports whether the order admits no further transitions.
func (o *Order) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}
