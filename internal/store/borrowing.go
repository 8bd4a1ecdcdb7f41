package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

// BorrowingInput is a new borrowing request.
type BorrowingInput struct {
	StudentID int64            `json:"student_id"`
	Items     []model.LineItem `json:"items"`
	Purpose   string           `json:"purpose"`
	DueDate   *time.Time       `json:"due_date"`
}

// BorrowingFilter narrows ListBorrowing.
type BorrowingFilter struct {
	Status        string
	CurrentStatus string
	StudentID     int64
}

const borrowingColumns = `br.id, br.student_id, br.student_campus, br.requested_items, br.approved_items,
	br.status, br.current_status, br.purpose, br.due_date, br.reject_reason, br.decided_by, br.decided_at,
	br.created_at, br.updated_at, COALESCE(s.name, '')`

const borrowingFrom = ` FROM borrowing_requests br LEFT JOIN students s ON s.id = br.student_id`

func scanBorrowing(s interface{ Scan(...any) error }) (*model.BorrowingRequest, error) {
	r := &model.BorrowingRequest{}
	var requested string
	var approved sql.NullString
	if err := s.Scan(&r.ID, &r.StudentID, &r.StudentCampus, &requested, &approved,
		&r.Status, &r.CurrentStatus, &r.Purpose, &r.DueDate, &r.RejectReason, &r.DecidedBy, &r.DecidedAt,
		&r.CreatedAt, &r.UpdatedAt, &r.StudentName); err != nil {
		return nil, err
	}
	var err error
	if r.RequestedItems, err = model.DecodeLineItems(requested); err != nil {
		return nil, fmt.Errorf("borrowing request %d: %w", r.ID, err)
	}
	if r.ApprovedItems, err = model.DecodeLineItems(approved.String); err != nil {
		return nil, fmt.Errorf("borrowing request %d: %w", r.ID, err)
	}
	return r, nil
}

// CreateBorrowing files a pending request for a student visible to acc.
func CreateBorrowing(ctx context.Context, db *sql.DB, acc access.Access, in BorrowingInput) (*model.BorrowingRequest, error) {
	items, err := model.MergeLineItems(in.Items)
	if err != nil {
		return nil, invalidf("%s", err.Error())
	}
	if in.StudentID <= 0 {
		return nil, invalidf("student_id is required")
	}

	student, err := GetStudent(ctx, db, in.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil || !acc.Allows(student.Campus) {
		return nil, invalidf("unknown student %d", in.StudentID)
	}
	if student.Status != model.StudentStatusActive {
		return nil, invalidf("student %d is not active", in.StudentID)
	}

	for _, li := range items {
		item, err := GetItem(ctx, db, li.ID)
		if err != nil {
			return nil, err
		}
		if item == nil || !acc.Allows(item.Campus) {
			return nil, invalidf("unknown item %d", li.ID)
		}
		if li.Quantity > item.Quantity {
			return nil, invalidf("item %d has only %d in total", li.ID, item.Quantity)
		}
	}

	encoded, err := model.EncodeLineItems(items)
	if err != nil {
		return nil, fmt.Errorf("encoding items: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO borrowing_requests (student_id, student_campus, requested_items, status, current_status, purpose, due_date, reject_reason)
		 VALUES (?, ?, ?, ?, '', ?, ?, '')`,
		student.ID, student.Campus, encoded, model.BorrowStatusPending, strings.TrimSpace(in.Purpose), in.DueDate,
	)
	if err != nil {
		return nil, fmt.Errorf("creating borrowing request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting borrowing request id: %w", err)
	}
	return GetBorrowing(ctx, db, id)
}

// GetBorrowing returns a borrowing request by ID.
func GetBorrowing(ctx context.Context, db *sql.DB, id int64) (*model.BorrowingRequest, error) {
	return getBorrowing(ctx, db, id)
}

func getBorrowing(ctx context.Context, q querier, id int64) (*model.BorrowingRequest, error) {
	r, err := scanBorrowing(q.QueryRowContext(ctx,
		`SELECT `+borrowingColumns+borrowingFrom+` WHERE br.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrowing request: %w", err)
	}
	return r, nil
}

// ListBorrowing returns the requests whose student campus is visible to acc.
func ListBorrowing(ctx context.Context, db *sql.DB, acc access.Access, f BorrowingFilter) ([]model.BorrowingRequest, error) {
	scope, args := acc.Filter("br.student_campus")
	query := `SELECT ` + borrowingColumns + borrowingFrom + ` WHERE ` + scope

	if f.Status != "" {
		query += ` AND br.status = ?`
		args = append(args, f.Status)
	}
	if f.CurrentStatus != "" {
		query += ` AND br.current_status = ?`
		args = append(args, f.CurrentStatus)
	}
	if f.StudentID > 0 {
		query += ` AND br.student_id = ?`
		args = append(args, f.StudentID)
	}
	query += ` ORDER BY br.created_at DESC, br.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrowing requests: %w", err)
	}
	defer rows.Close()

	var out []model.BorrowingRequest
	for rows.Next() {
		r, err := scanBorrowing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrowing request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// loadScopedBorrowing locks and loads a request inside tx.
func loadScopedBorrowing(ctx context.Context, tx *sql.Tx, acc access.Access, id int64) (*model.BorrowingRequest, error) {
	if err := lockBorrowing(ctx, tx, id); err != nil {
		return nil, err
	}
	r, err := getBorrowing(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("borrowing request %d: %w", id, ErrNotFound)
	}
	if !acc.Allows(r.StudentCampus) {
		return nil, fmt.Errorf("borrowing request %d: %w", id, ErrForbidden)
	}
	return r, nil
}

// ApproveBorrowing approves a pending request. items narrows the approval;
// nil approves everything requested. The request row and every item row are
// locked before availability is recomputed, so two approvals competing for
// the same stock cannot both succeed.
func ApproveBorrowing(ctx context.Context, db *sql.DB, acc access.Access, id, decidedBy int64, items []model.LineItem) (*model.BorrowingRequest, map[int64]model.Reconciliation, error) {
	var recs map[int64]model.Reconciliation

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		r, err := loadScopedBorrowing(ctx, tx, acc, id)
		if err != nil {
			return err
		}
		if r.Status != model.BorrowStatusPending {
			return fmt.Errorf("borrowing request %d is %s: %w", id, r.Status, ErrNotFound)
		}

		approved := r.RequestedItems
		if items != nil {
			if approved, err = model.MergeLineItems(items); err != nil {
				return invalidf("%s", err.Error())
			}
			for _, li := range approved {
				if req := model.QuantityFor(r.RequestedItems, li.ID); li.Quantity > req {
					return invalidf("item %d: approved %d exceeds requested %d", li.ID, li.Quantity, req)
				}
			}
		}
		if len(approved) == 0 {
			return invalidf("nothing to approve")
		}

		ids := make([]int64, len(approved))
		for i, li := range approved {
			ids[i] = li.ID
		}
		if err := lockItems(ctx, tx, ids); err != nil {
			return err
		}

		before, err := reconcileItems(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, li := range approved {
			rec, ok := before[li.ID]
			if !ok {
				return invalidf("item %d no longer exists", li.ID)
			}
			logDrift(rec)
			item, err := getItem(ctx, tx, li.ID)
			if err != nil {
				return err
			}
			if item.Status == model.ItemStatusArchived || item.Status == model.ItemStatusMaintenance || item.Status == model.ItemStatusUnavailable {
				return invalidf("item %d is %s", li.ID, item.Status)
			}
			if li.Quantity > rec.Available {
				return &InsufficientError{ItemID: li.ID, Requested: li.Quantity, Available: rec.Available}
			}
		}

		encoded, err := model.EncodeLineItems(approved)
		if err != nil {
			return fmt.Errorf("encoding items: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE borrowing_requests
			 SET approved_items = ?, status = ?, current_status = ?, decided_by = ?,
			     decided_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			encoded, model.BorrowStatusApproved, model.CurrentActive, decidedBy, id,
		); err != nil {
			return fmt.Errorf("approving borrowing request: %w", err)
		}

		recs, err = refreshAvailability(ctx, tx, ids)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	r, err := GetBorrowing(ctx, db, id)
	return r, recs, err
}

// RejectBorrowing rejects a pending request.
func RejectBorrowing(ctx context.Context, db *sql.DB, acc access.Access, id, decidedBy int64, reason string) (*model.BorrowingRequest, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		r, err := loadScopedBorrowing(ctx, tx, acc, id)
		if err != nil {
			return err
		}
		if r.Status != model.BorrowStatusPending {
			return fmt.Errorf("borrowing request %d is %s: %w", id, r.Status, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE borrowing_requests
			 SET status = ?, reject_reason = ?, decided_by = ?,
			     decided_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			model.BorrowStatusRejected, strings.TrimSpace(reason), decidedBy, id,
		)
		if err != nil {
			return fmt.Errorf("rejecting borrowing request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetBorrowing(ctx, db, id)
}

// outstanding returns, per item, the approved quantity not yet confirmed
// returned and the quantity in pending returns.
func outstanding(ctx context.Context, q querier, r *model.BorrowingRequest) (out, pending map[int64]int, err error) {
	out = make(map[int64]int, len(r.ApprovedItems))
	pending = make(map[int64]int)
	for _, li := range r.ApprovedItems {
		out[li.ID] += li.Quantity
	}

	rows, err := q.QueryContext(ctx,
		`SELECT item_id, status, SUM(quantity) FROM return_requests
		 WHERE borrowing_request_id = ? GROUP BY item_id, status`, r.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("summing returns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID int64
		var status string
		var qty int
		if err := rows.Scan(&itemID, &status, &qty); err != nil {
			return nil, nil, fmt.Errorf("scanning return sum: %w", err)
		}
		switch status {
		case model.ReturnStatusConfirmed:
			out[itemID] -= qty
		case model.ReturnStatusPending:
			pending[itemID] += qty
		}
	}
	return out, pending, rows.Err()
}

// SubmitReturn records returned items as pending returns and moves the
// request to pending_return. Quantities may not exceed what is still out.
func SubmitReturn(ctx context.Context, db *sql.DB, acc access.Access, id int64, lines []model.ReturnLine) ([]model.ReturnRequest, error) {
	if len(lines) == 0 {
		return nil, invalidf("at least one item is required")
	}

	var created []int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		r, err := loadScopedBorrowing(ctx, tx, acc, id)
		if err != nil {
			return err
		}
		if r.Status != model.BorrowStatusApproved ||
			(r.CurrentStatus != model.CurrentActive && r.CurrentStatus != model.CurrentPendingReturn) {
			return fmt.Errorf("borrowing request %d has nothing out: %w", id, ErrNotFound)
		}

		out, pending, err := outstanding(ctx, tx, r)
		if err != nil {
			return err
		}

		for _, line := range lines {
			if line.Quantity <= 0 {
				return invalidf("quantity for item %d must be positive", line.ID)
			}
			if line.Condition == "" {
				line.Condition = model.ConditionGood
			}
			if !model.ValidCondition(line.Condition) {
				return invalidf("invalid condition %q", line.Condition)
			}
			left := out[line.ID] - pending[line.ID]
			if line.Quantity > left {
				return invalidf("item %d: returning %d but only %d outstanding", line.ID, line.Quantity, left)
			}
			pending[line.ID] += line.Quantity

			result, err := tx.ExecContext(ctx,
				`INSERT INTO return_requests (borrowing_request_id, item_id, quantity, condition_status, status, notes)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				id, line.ID, line.Quantity, line.Condition, model.ReturnStatusPending, strings.TrimSpace(line.Notes),
			)
			if err != nil {
				return fmt.Errorf("creating return request: %w", err)
			}
			rid, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting return request id: %w", err)
			}
			created = append(created, rid)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE borrowing_requests SET current_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			model.CurrentPendingReturn, id,
		)
		if err != nil {
			return fmt.Errorf("marking pending return: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	returns := make([]model.ReturnRequest, 0, len(created))
	for _, rid := range created {
		rr, err := GetReturn(ctx, db, rid)
		if err != nil {
			return nil, err
		}
		if rr != nil {
			returns = append(returns, *rr)
		}
	}
	return returns, nil
}
