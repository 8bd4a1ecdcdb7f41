package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// LineItem is one {id, quantity} entry of a borrowing request.
type LineItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// BorrowingRequest is a student's request to borrow inventory items.
type BorrowingRequest struct {
	ID             int64      `json:"id"`
	StudentID      int64      `json:"student_id"`
	StudentCampus  string     `json:"student_campus"`
	RequestedItems []LineItem `json:"requested_items"`
	ApprovedItems  []LineItem `json:"approved_items"`
	Status         string     `json:"status"`
	CurrentStatus  string     `json:"current_status,omitempty"`
	Purpose        string     `json:"purpose,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	RejectReason   string     `json:"reject_reason,omitempty"`
	DecidedBy      *int64     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Joined fields (not always populated).
	StudentName string `json:"student_name,omitempty"`
}

// Borrowing request statuses.
const (
	BorrowStatusPending  = "pending"
	BorrowStatusApproved = "approved"
	BorrowStatusRejected = "rejected"
)

// Borrowing lifecycle (current_status) values.
const (
	CurrentActive        = "active"
	CurrentPendingReturn = "pending_return"
	CurrentReturned      = "returned"
)

// QuantityFor returns the quantity of itemID in items, 0 if absent.
func QuantityFor(items []LineItem, itemID int64) int {
	total := 0
	for _, it := range items {
		if it.ID == itemID {
			total += it.Quantity
		}
	}
	return total
}

// MergeLineItems validates items and folds duplicate ids together.
func MergeLineItems(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}
	index := make(map[int64]int, len(items))
	var merged []LineItem
	for _, it := range items {
		if it.ID <= 0 {
			return nil, fmt.Errorf("item id must be positive")
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for item %d must be positive", it.ID)
		}
		if i, ok := index[it.ID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

// EncodeLineItems serialises items for a JSON column.
func EncodeLineItems(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeLineItems parses a JSON column. Empty or NULL columns decode to nil.
// Entries may carry the id and quantity as JSON strings, as older rows do.
func DecodeLineItems(raw string) ([]LineItem, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var loose []struct {
		ID       json.Number `json:"id"`
		Quantity json.Number `json:"quantity"`
	}
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, fmt.Errorf("decoding line items: %w", err)
	}
	items := make([]LineItem, 0, len(loose))
	for _, l := range loose {
		id, err := l.ID.Int64()
		if err != nil {
			return nil, fmt.Errorf("decoding line item id %q: %w", l.ID, err)
		}
		qty, err := l.Quantity.Int64()
		if err != nil {
			return nil, fmt.Errorf("decoding line item quantity %q: %w", l.Quantity, err)
		}
		items = append(items, LineItem{ID: id, Quantity: int(qty)})
	}
	return items, nil
}

// ReturnRequest records returned quantity of one item for a borrowing request.
type ReturnRequest struct {
	ID                 int64      `json:"id"`
	BorrowingRequestID int64      `json:"borrowing_request_id"`
	ItemID             int64      `json:"item_id"`
	Quantity           int        `json:"quantity"`
	Condition          string     `json:"condition"`
	Status             string     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy        *int64     `json:"confirmed_by,omitempty"`

	// Joined fields (not always populated).
	ItemName      string `json:"item_name,omitempty"`
	StudentCampus string `json:"student_campus,omitempty"`
}

// Return request statuses.
const (
	ReturnStatusPending   = "pending"
	ReturnStatusConfirmed = "confirmed"
)

// ReturnLine is one returned item in a return submission.
type ReturnLine struct {
	ID        int64  `json:"id"`
	Quantity  int    `json:"quantity"`
	Condition string `json:"condition"`
	Notes     string `json:"notes"`
}

// RepairRecord is a damaged return waiting to be repaired.
type RepairRecord struct {
	ID                 int64     `json:"id"`
	ItemID             int64     `json:"item_id"`
	BorrowingRequestID int64     `json:"borrowing_request_id"`
	ReturnRequestID    int64     `json:"return_request_id"`
	Quantity           int       `json:"quantity"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`

	// Joined fields (not always populated).
	ItemName   string `json:"item_name,omitempty"`
	ItemCampus string `json:"item_campus,omitempty"`
}
