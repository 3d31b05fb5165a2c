package models

import "time"

// Event types published to Kafka for downstream consumers (notifications,
// companion dashboard). Delivery is best-effort; order state never depends
// on a publish succeeding.
const (
	EventOrderConfirmed  = "order_confirmed"
	EventOrderInService  = "order_in_service"
	EventOrderCompleted  = "order_completed"
	EventOrderCancelled  = "order_cancelled"
	EventPaymentFailed   = "payment_failed"
	EventDepositRefunded = "deposit_refunded"
)

type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	PatientID   string    `json:"patient_id"`
	CompanionID string    `json:"companion_id"`
	Status      string    `json:"status,omitempty"`
	Amount      int       `json:"amount,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
