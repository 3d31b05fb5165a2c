package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentState string

const (
	PaymentCreated   PaymentState = "created"
	PaymentSucceeded PaymentState = "succeeded"
	PaymentFailed    PaymentState = "failed"
)

// Payment is one deposit attempt for an order. At most one attempt is in the
// "created" state at a time; a later attempt supersedes a failed one.
type Payment struct {
	ID                uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID           uuid.UUID    `gorm:"type:uuid;not null;index" json:"order_id"`
	PatientID         string       `gorm:"type:varchar(64);not null" json:"patient_id"`
	Amount            int          `gorm:"not null" json:"amount"` // minor units
	Currency          string       `gorm:"type:varchar(10);not null" json:"currency"`
	Reference         string       `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference"`
	ProviderPaymentID *string      `gorm:"uniqueIndex" json:"provider_payment_id,omitempty"`
	State             PaymentState `gorm:"type:varchar(20);not null" json:"state"`
	ProviderPayload   *string      `gorm:"type:jsonb" json:"-"` // last raw callback, kept for audit
	SucceededAt       *time.Time   `json:"succeeded_at,omitempty"`
	FailedAt          *time.Time   `json:"failed_at,omitempty"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type RefundState string

const (
	RefundRequested RefundState = "requested"
	RefundSucceeded RefundState = "succeeded"
	RefundFailed    RefundState = "failed"
)

type Refund struct {
	ID               uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID          uuid.UUID   `gorm:"type:uuid;not null;index" json:"order_id"`
	PaymentID        uuid.UUID   `gorm:"type:uuid;not null" json:"payment_id"`
	Amount           int         `gorm:"not null" json:"amount"`
	Reason           string      `gorm:"type:varchar(256)" json:"reason"`
	State            RefundState `gorm:"type:varchar(20);not null" json:"state"`
	ProviderRefundID *string     `gorm:"type:varchar(128)" json:"provider_refund_id,omitempty"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}
