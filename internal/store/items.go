package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

// ItemInput holds the editable fields of an inventory item.
type ItemInput struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	Campus          string `json:"campus"`
	Quantity        *int   `json:"quantity"`
	Status          string `json:"status"`
	ConditionStatus string `json:"condition_status"`
}

// Validate fills defaults and checks the input.
func (in *ItemInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalidf("name is required")
	}
	if !model.ValidItemCategory(in.Category) {
		return invalidf("category must be %q or %q", model.ItemCategoryCostume, model.ItemCategoryEquipment)
	}
	if in.Campus == "" {
		return invalidf("campus is required")
	}
	if in.Quantity == nil {
		return invalidf("quantity is required")
	}
	if *in.Quantity < 0 {
		return invalidf("quantity must not be negative")
	}
	if in.Status == "" {
		in.Status = model.ItemStatusAvailable
	}
	if !model.ValidItemStatus(in.Status) || in.Status == model.ItemStatusArchived {
		return invalidf("invalid status %q", in.Status)
	}
	if in.ConditionStatus == "" {
		in.ConditionStatus = model.ConditionGood
	}
	if !model.ValidCondition(in.ConditionStatus) {
		return invalidf("invalid condition %q", in.ConditionStatus)
	}
	return nil
}

// ItemFilter narrows ListItems. Archived items are only listed when
// Status asks for them.
type ItemFilter struct {
	Status   string
	Category string
	Query    string
}

const itemColumns = `id, name, category, description, campus, quantity, available_quantity,
	status, condition_status, created_at, updated_at`

func scanItem(s interface{ Scan(...any) error }, item *model.Item) error {
	return s.Scan(&item.ID, &item.Name, &item.Category, &item.Description, &item.Campus,
		&item.Quantity, &item.AvailableQuantity, &item.Status, &item.ConditionStatus,
		&item.CreatedAt, &item.UpdatedAt)
}

// CreateItem creates a new item with all of its quantity available.
func CreateItem(ctx context.Context, db *sql.DB, in ItemInput) (*model.Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	status := in.Status
	if status == model.ItemStatusBorrowed {
		status = model.ItemStatusAvailable
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO inventory_items (name, category, description, campus, quantity, available_quantity, status, condition_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.Category, in.Description, in.Campus, *in.Quantity, *in.Quantity, status, in.ConditionStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q querier, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id,
	), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemWithQuantities returns an item visible to acc together with its
// reconciliation.
func GetItemWithQuantities(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.ItemWithQuantities, error) {
	item, err := GetItem(ctx, db, id)
	if err != nil || item == nil {
		return nil, err
	}
	if !acc.Allows(item.Campus) {
		return nil, nil
	}
	rec, err := Reconcile(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return &model.ItemWithQuantities{Item: *item, Quantities: *rec}, nil
}

// ListItems returns the items visible to acc with reconciled quantities.
func ListItems(ctx context.Context, db *sql.DB, acc access.Access, f ItemFilter) ([]model.ItemWithQuantities, error) {
	scope, args := acc.Filter("campus")
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE ` + scope

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	} else {
		query += ` AND status <> ?`
		args = append(args, model.ItemStatusArchived)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query += ` AND (name LIKE ? OR description LIKE ?)`
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	recs, err := reconcileItems(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.ItemWithQuantities, 0, len(items))
	for _, item := range items {
		rec := recs[item.ID]
		logDrift(rec)
		out = append(out, model.ItemWithQuantities{Item: item, Quantities: rec})
	}
	return out, nil
}

// loadScopedItem locks and loads an item inside tx, checking campus scope.
func loadScopedItem(ctx context.Context, tx *sql.Tx, acc access.Access, id int64) (*model.Item, error) {
	if err := lockItems(ctx, tx, []int64{id}); err != nil {
		return nil, err
	}
	item, err := getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if !acc.Allows(item.Campus) {
		return nil, fmt.Errorf("item %d: %w", id, ErrForbidden)
	}
	return item, nil
}

// UpdateItem edits an item. The new total may not drop below the quantity
// currently borrowed.
func UpdateItem(ctx context.Context, db *sql.DB, acc access.Access, id int64, in ItemInput) (*model.Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !acc.Allows(in.Campus) {
		return nil, fmt.Errorf("moving item to %q: %w", in.Campus, ErrForbidden)
	}

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		item, err := loadScopedItem(ctx, tx, acc, id)
		if err != nil {
			return err
		}
		if item.Status == model.ItemStatusArchived {
			return fmt.Errorf("item %d is archived: %w", id, ErrNotFound)
		}

		recs, err := reconcileItems(ctx, tx, []int64{id})
		if err != nil {
			return err
		}
		if borrowed := recs[id].Borrowed; *in.Quantity < borrowed {
			return invalidf("quantity %d is below the %d currently borrowed", *in.Quantity, borrowed)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE inventory_items
			 SET name = ?, category = ?, description = ?, campus = ?, quantity = ?,
			     status = ?, condition_status = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			in.Name, in.Category, in.Description, in.Campus, *in.Quantity,
			in.Status, in.ConditionStatus, id,
		); err != nil {
			return fmt.Errorf("updating item: %w", err)
		}

		_, err = refreshAvailability(ctx, tx, []int64{id})
		return err
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// ArchiveItem hides an item, remembering its status for RestoreItem.
func ArchiveItem(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Item, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		item, err := loadScopedItem(ctx, tx, acc, id)
		if err != nil {
			return err
		}
		if item.Status == model.ItemStatusArchived {
			return fmt.Errorf("item %d already archived: %w", id, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE inventory_items SET archived_from_status = status, status = ? WHERE id = ?`,
			model.ItemStatusArchived, id,
		)
		if err != nil {
			return fmt.Errorf("archiving item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// RestoreItem returns an archived item to the status it had before.
func RestoreItem(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Item, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		item, err := loadScopedItem(ctx, tx, acc, id)
		if err != nil {
			return err
		}
		if item.Status != model.ItemStatusArchived {
			return fmt.Errorf("item %d is not archived: %w", id, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE inventory_items
			 SET status = COALESCE(archived_from_status, ?), archived_from_status = NULL
			 WHERE id = ?`,
			model.ItemStatusAvailable, id,
		)
		if err != nil {
			return fmt.Errorf("restoring item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// DeleteItem permanently removes an item. Items listed on an active loan,
// or with any return or repair history, cannot be deleted and should be
// archived instead.
func DeleteItem(ctx context.Context, db *sql.DB, acc access.Access, id int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := loadScopedItem(ctx, tx, acc, id); err != nil {
			return err
		}
		if err := lockItems(ctx, tx, []int64{id}); err != nil {
			return err
		}

		loans, err := activeLoans(ctx, tx)
		if err != nil {
			return err
		}
		for _, loan := range loans {
			if model.QuantityFor(loan.approved, id) > 0 {
				return &InUseError{Msg: fmt.Sprintf("item is on active borrowing request %d", loan.id)}
			}
		}

		var history int
		if err := tx.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM return_requests WHERE item_id = ?)
			      + (SELECT COUNT(*) FROM repair_queue WHERE item_id = ?)`,
			id, id,
		).Scan(&history); err != nil {
			return fmt.Errorf("checking item history: %w", err)
		}
		if history > 0 {
			return &InUseError{Msg: "item has return history, archive it instead"}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return nil
	})
}
