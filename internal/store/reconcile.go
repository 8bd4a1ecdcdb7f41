package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/culturearts/portal/internal/model"
)

// Reconcile computes the quantity breakdown of one item from the borrowing
// ledger. Drift between the stored available_quantity and the computed
// value is logged and reported, never corrected here.
func Reconcile(ctx context.Context, db *sql.DB, itemID int64) (*model.Reconciliation, error) {
	recs, err := reconcileItems(ctx, db, []int64{itemID})
	if err != nil {
		return nil, err
	}
	rec, ok := recs[itemID]
	if !ok {
		return nil, nil
	}
	logDrift(rec)
	return &rec, nil
}

// activeLoan is an approved request still holding items.
type activeLoan struct {
	id       int64
	approved []model.LineItem
}

// reconcileItems reconciles every id in ids. Unknown ids are absent from
// the result.
func reconcileItems(ctx context.Context, q querier, ids []int64) (map[int64]model.Reconciliation, error) {
	recs := make(map[int64]model.Reconciliation, len(ids))
	if len(ids) == 0 {
		return recs, nil
	}

	for _, id := range sortedIDs(ids) {
		var total, stored int
		err := q.QueryRowContext(ctx,
			`SELECT quantity, available_quantity FROM inventory_items WHERE id = ?`, id,
		).Scan(&total, &stored)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading item %d quantities: %w", id, err)
		}
		recs[id] = model.Reconciliation{ItemID: id, Total: total, StoredAvailable: stored}
	}

	loans, err := activeLoans(ctx, q)
	if err != nil {
		return nil, err
	}
	returned, err := confirmedReturns(ctx, q)
	if err != nil {
		return nil, err
	}
	repairs, err := repairTotals(ctx, q)
	if err != nil {
		return nil, err
	}

	for id, rec := range recs {
		for _, loan := range loans {
			approved := model.QuantityFor(loan.approved, id)
			if approved == 0 {
				continue
			}
			out := approved - returned[returnKey{loan.id, id}]
			if out > 0 {
				rec.Borrowed += out
			}
		}
		rec.InRepair = repairs[id]
		rec.Borrowed += rec.InRepair
		rec.Available = rec.Total - rec.Borrowed
		rec.Drift = rec.Available != rec.StoredAvailable
		recs[id] = rec
	}
	return recs, nil
}

func activeLoans(ctx context.Context, q querier) ([]activeLoan, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, approved_items FROM borrowing_requests
		 WHERE status = ? AND current_status IN (?, ?)`,
		model.BorrowStatusApproved, model.CurrentActive, model.CurrentPendingReturn,
	)
	if err != nil {
		return nil, fmt.Errorf("listing active loans: %w", err)
	}
	defer rows.Close()

	var loans []activeLoan
	for rows.Next() {
		var loan activeLoan
		var raw sql.NullString
		if err := rows.Scan(&loan.id, &raw); err != nil {
			return nil, fmt.Errorf("scanning active loan: %w", err)
		}
		loan.approved, err = model.DecodeLineItems(raw.String)
		if err != nil {
			// Logged and skipped so the other loans still reconcile.
			slog.Error("skipping borrowing request with malformed approved items",
				"request_id", loan.id, "error", err)
			continue
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

type returnKey struct {
	requestID int64
	itemID    int64
}

func confirmedReturns(ctx context.Context, q querier) (map[returnKey]int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT rr.borrowing_request_id, rr.item_id, SUM(rr.quantity)
		 FROM return_requests rr
		 JOIN borrowing_requests br ON br.id = rr.borrowing_request_id
		 WHERE rr.status = ? AND br.status = ? AND br.current_status IN (?, ?)
		 GROUP BY rr.borrowing_request_id, rr.item_id`,
		model.ReturnStatusConfirmed, model.BorrowStatusApproved, model.CurrentActive, model.CurrentPendingReturn,
	)
	if err != nil {
		return nil, fmt.Errorf("summing confirmed returns: %w", err)
	}
	defer rows.Close()

	out := make(map[returnKey]int)
	for rows.Next() {
		var k returnKey
		var qty int
		if err := rows.Scan(&k.requestID, &k.itemID, &qty); err != nil {
			return nil, fmt.Errorf("scanning confirmed return: %w", err)
		}
		out[k] = qty
	}
	return out, rows.Err()
}

func repairTotals(ctx context.Context, q querier) (map[int64]int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT item_id, SUM(quantity) FROM repair_queue GROUP BY item_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("summing repairs: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("scanning repair total: %w", err)
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// writeAvailability rewrites the cached available_quantity and flips the
// item between available and borrowed. Other statuses are left alone.
func writeAvailability(ctx context.Context, tx *sql.Tx, rec model.Reconciliation) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory_items
		 SET available_quantity = ?,
		     status = CASE
		         WHEN status NOT IN (?, ?) THEN status
		         WHEN ? <= 0 AND quantity > 0 THEN ?
		         ELSE ?
		     END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		rec.Available,
		model.ItemStatusAvailable, model.ItemStatusBorrowed,
		rec.Available, model.ItemStatusBorrowed,
		model.ItemStatusAvailable,
		rec.ItemID,
	)
	if err != nil {
		return fmt.Errorf("updating availability of item %d: %w", rec.ItemID, err)
	}
	return nil
}

// refreshAvailability reconciles ids inside tx and writes the result back.
func refreshAvailability(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]model.Reconciliation, error) {
	recs, err := reconcileItems(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(ids) {
		rec, ok := recs[id]
		if !ok {
			continue
		}
		if err := writeAvailability(ctx, tx, rec); err != nil {
			return nil, err
		}
		rec.StoredAvailable = rec.Available
		rec.Drift = false
		recs[id] = rec
	}
	return recs, nil
}

func logDrift(rec model.Reconciliation) {
	if !rec.Drift {
		return
	}
	slog.Warn("available quantity drift",
		"item_id", rec.ItemID,
		"stored", rec.StoredAvailable,
		"computed", rec.Available,
		"total", rec.Total,
		"borrowed", rec.Borrowed,
	)
}

// sortedIDs returns a sorted copy of ids without duplicates.
func sortedIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
