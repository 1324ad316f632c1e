package models

// DeliveryStatus classifies the outcome of handing a message to one
// recipient.
type DeliveryStatus string

const (
	StatusDelivered   DeliveryStatus = "delivered"
	StatusFailed      DeliveryStatus = "failed"
	StatusUserOffline DeliveryStatus = "user_offline"
	StatusQueued      DeliveryStatus = "queued"
)

// DeliveryResult is produced per (message, recipient) pair. It is
// returned and logged, never persisted.
type DeliveryResult struct {
	Status DeliveryStatus `json:"status"`
	UserID string         `json:"user_id"`
	Error  string         `json:"error,omitempty"`
}

// Delivered reports whether at least one of the recipient's connections
// accepted the send.
func (r DeliveryResult) Delivered() bool {
	return r.Status == StatusDelivered
}
