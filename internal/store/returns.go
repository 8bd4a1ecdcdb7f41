package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

const returnColumns = `rr.id, rr.borrowing_request_id, rr.item_id, rr.quantity, rr.condition_status,
	rr.status, rr.notes, rr.created_at, rr.confirmed_at, rr.confirmed_by,
	COALESCE(i.name, ''), br.student_campus`

const returnFrom = ` FROM return_requests rr
	JOIN borrowing_requests br ON br.id = rr.borrowing_request_id
	LEFT JOIN inventory_items i ON i.id = rr.item_id`

func scanReturn(s interface{ Scan(...any) error }, rr *model.ReturnRequest) error {
	return s.Scan(&rr.ID, &rr.BorrowingRequestID, &rr.ItemID, &rr.Quantity, &rr.Condition,
		&rr.Status, &rr.Notes, &rr.CreatedAt, &rr.ConfirmedAt, &rr.ConfirmedBy,
		&rr.ItemName, &rr.StudentCampus)
}

// GetReturn returns a return request by ID.
func GetReturn(ctx context.Context, db *sql.DB, id int64) (*model.ReturnRequest, error) {
	return getReturn(ctx, db, id)
}

func getReturn(ctx context.Context, q querier, id int64) (*model.ReturnRequest, error) {
	rr := &model.ReturnRequest{}
	err := scanReturn(q.QueryRowContext(ctx,
		`SELECT `+returnColumns+returnFrom+` WHERE rr.id = ?`, id,
	), rr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting return request: %w", err)
	}
	return rr, nil
}

// ListReturns returns return requests for borrowings visible to acc,
// optionally filtered by status and borrowing request.
func ListReturns(ctx context.Context, db *sql.DB, acc access.Access, status string, requestID int64) ([]model.ReturnRequest, error) {
	scope, args := acc.Filter("br.student_campus")
	query := `SELECT ` + returnColumns + returnFrom + ` WHERE ` + scope

	if status != "" {
		query += ` AND rr.status = ?`
		args = append(args, status)
	}
	if requestID > 0 {
		query += ` AND rr.borrowing_request_id = ?`
		args = append(args, requestID)
	}
	query += ` ORDER BY rr.created_at DESC, rr.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing return requests: %w", err)
	}
	defer rows.Close()

	var out []model.ReturnRequest
	for rows.Next() {
		var rr model.ReturnRequest
		if err := scanReturn(rows, &rr); err != nil {
			return nil, fmt.Errorf("scanning return request: %w", err)
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// ConfirmReturn confirms a pending return. Undamaged quantity becomes
// available again; damaged quantity moves to the repair queue. The parent
// request becomes returned once nothing is pending or outstanding, or
// active again if items are still out.
func ConfirmReturn(ctx context.Context, db *sql.DB, acc access.Access, id, confirmedBy int64) (*model.ReturnRequest, *model.Reconciliation, error) {
	var rec model.Reconciliation

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		rr, err := getReturn(ctx, tx, id)
		if err != nil {
			return err
		}
		if rr == nil {
			return fmt.Errorf("return request %d: %w", id, ErrNotFound)
		}

		// Lock order matches ApproveBorrowing: request, then items.
		r, err := loadScopedBorrowing(ctx, tx, acc, rr.BorrowingRequestID)
		if err != nil {
			return err
		}
		if err := lockItems(ctx, tx, []int64{rr.ItemID}); err != nil {
			return err
		}

		// Re-read under lock.
		if rr, err = getReturn(ctx, tx, id); err != nil {
			return err
		}
		if rr.Status != model.ReturnStatusPending {
			return fmt.Errorf("return request %d is %s: %w", id, rr.Status, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE return_requests SET status = ?, confirmed_at = CURRENT_TIMESTAMP, confirmed_by = ? WHERE id = ?`,
			model.ReturnStatusConfirmed, confirmedBy, id,
		); err != nil {
			return fmt.Errorf("confirming return: %w", err)
		}

		if rr.Condition == model.ConditionDamaged {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO repair_queue (item_id, borrowing_request_id, return_request_id, quantity, notes)
				 VALUES (?, ?, ?, ?, ?)`,
				rr.ItemID, rr.BorrowingRequestID, rr.ID, rr.Quantity, rr.Notes,
			); err != nil {
				return fmt.Errorf("queueing repair: %w", err)
			}
		}

		out, pending, err := outstanding(ctx, tx, r)
		if err != nil {
			return err
		}
		pendingTotal, outTotal := 0, 0
		for _, n := range pending {
			pendingTotal += n
		}
		for _, n := range out {
			if n > 0 {
				outTotal += n
			}
		}
		if pendingTotal == 0 {
			next := model.CurrentActive
			if outTotal == 0 {
				next = model.CurrentReturned
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE borrowing_requests SET current_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				next, r.ID,
			); err != nil {
				return fmt.Errorf("updating borrowing status: %w", err)
			}
		}

		recs, err := refreshAvailability(ctx, tx, []int64{rr.ItemID})
		if err != nil {
			return err
		}
		rec = recs[rr.ItemID]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	rr, err := GetReturn(ctx, db, id)
	if err != nil {
		return nil, nil, err
	}
	return rr, &rec, nil
}
