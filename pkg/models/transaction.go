package models

import "time"

// Transaction is one validated ledger row: a point-to-point transfer between
// two accounts. Records are immutable once ingested; the upload layer
// guarantees all fields are present, the amount is numeric and non-negative,
// and the timestamp parsed.
type Transaction struct {
	ID         string    `json:"transaction_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}
