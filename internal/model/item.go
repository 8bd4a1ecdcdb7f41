package model

import "time"

// Item is a costume or piece of equipment tracked by quantity.
type Item struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Description       string    `json:"description,omitempty"`
	Campus            string    `json:"campus"`
	Quantity          int       `json:"quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	Status            string    `json:"status"`
	ConditionStatus   string    `json:"condition_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Item statuses.
const (
	ItemStatusAvailable   = "available"
	ItemStatusBorrowed    = "borrowed"
	ItemStatusMaintenance = "maintenance"
	ItemStatusArchived    = "archived"
	ItemStatusUnavailable = "unavailable"
)

// Item categories.
const (
	ItemCategoryCostume   = "costume"
	ItemCategoryEquipment = "equipment"
)

// Item conditions.
const (
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionDamaged = "damaged"
)

// ValidItemStatus reports whether s is a settable item status.
func ValidItemStatus(s string) bool {
	switch s {
	case ItemStatusAvailable, ItemStatusBorrowed, ItemStatusMaintenance, ItemStatusArchived, ItemStatusUnavailable:
		return true
	}
	return false
}

// ValidItemCategory reports whether c is a known category.
func ValidItemCategory(c string) bool {
	return c == ItemCategoryCostume || c == ItemCategoryEquipment
}

// ValidCondition reports whether c is a known condition.
func ValidCondition(c string) bool {
	return c == ConditionGood || c == ConditionFair || c == ConditionDamaged
}

// Reconciliation is the computed quantity breakdown of an item.
// Available + Borrowed always equals Total; InRepair is the part of
// Borrowed waiting in the repair queue.
type Reconciliation struct {
	ItemID          int64 `json:"item_id"`
	Total           int   `json:"total_quantity"`
	Available       int   `json:"available_quantity"`
	Borrowed        int   `json:"borrowed_quantity"`
	InRepair        int   `json:"in_repair_quantity"`
	StoredAvailable int   `json:"stored_available_quantity"`
	Drift           bool  `json:"drift"`
}

// ItemWithQuantities pairs an item with its reconciliation.
type ItemWithQuantities struct {
	Item
	Quantities Reconciliation `json:"quantities"`
}
