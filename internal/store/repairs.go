package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

const repairColumns = `rq.id, rq.item_id, rq.borrowing_request_id, rq.return_request_id, rq.quantity,
	rq.notes, rq.created_at, i.name, i.campus`

func scanRepair(s interface{ Scan(...any) error }, rep *model.RepairRecord) error {
	return s.Scan(&rep.ID, &rep.ItemID, &rep.BorrowingRequestID, &rep.ReturnRequestID, &rep.Quantity,
		&rep.Notes, &rep.CreatedAt, &rep.ItemName, &rep.ItemCampus)
}

// ListRepairs returns the repair queue for items visible to acc.
func ListRepairs(ctx context.Context, db *sql.DB, acc access.Access) ([]model.RepairRecord, error) {
	scope, args := acc.Filter("i.campus")
	rows, err := db.QueryContext(ctx,
		`SELECT `+repairColumns+`
		 FROM repair_queue rq JOIN inventory_items i ON i.id = rq.item_id
		 WHERE `+scope+` ORDER BY rq.created_at, rq.id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing repairs: %w", err)
	}
	defer rows.Close()

	var out []model.RepairRecord
	for rows.Next() {
		var rep model.RepairRecord
		if err := scanRepair(rows, &rep); err != nil {
			return nil, fmt.Errorf("scanning repair: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func getRepair(ctx context.Context, q querier, id int64) (*model.RepairRecord, error) {
	rep := &model.RepairRecord{}
	err := scanRepair(q.QueryRowContext(ctx,
		`SELECT `+repairColumns+`
		 FROM repair_queue rq JOIN inventory_items i ON i.id = rq.item_id
		 WHERE rq.id = ?`, id,
	), rep)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting repair: %w", err)
	}
	return rep, nil
}

// CompleteRepair removes a repair record and returns its quantity to
// circulation.
func CompleteRepair(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.RepairRecord, *model.Reconciliation, error) {
	var rep *model.RepairRecord
	var rec model.Reconciliation

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		if rep, err = getRepair(ctx, tx, id); err != nil {
			return err
		}
		if rep == nil {
			return fmt.Errorf("repair %d: %w", id, ErrNotFound)
		}
		if _, err := loadScopedItem(ctx, tx, acc, rep.ItemID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM repair_queue WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("completing repair: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("repair %d: %w", id, ErrNotFound)
		}

		recs, err := refreshAvailability(ctx, tx, []int64{rep.ItemID})
		if err != nil {
			return err
		}
		rec = recs[rep.ItemID]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return rep, &rec, nil
}
