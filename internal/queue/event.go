// Package queue publishes inventory events to the message broker.
package queue

import "time"

// Inventory event types.
const (
	EventBorrowApproved  = "borrowing.approved"
	EventBorrowRejected  = "borrowing.rejected"
	EventReturnConfirmed = "return.confirmed"
	EventRepairCompleted = "repair.completed"
)

// InventoryEvent is published after a committed inventory transition. It
// carries enough for downstream consumers to notify or audit without
// querying the portal database.
type InventoryEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	RequestID  int64          `json:"request_id,omitempty"`
	ItemID     int64          `json:"item_id,omitempty"`
	Quantity   int            `json:"quantity,omitempty"`
	Campus     string         `json:"campus,omitempty"`
	ActorEmail string         `json:"actor_email"`
	Available  map[int64]int  `json:"available,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
