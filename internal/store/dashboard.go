package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

// Dashboard holds campus-scoped counts for the landing page.
type Dashboard struct {
	Students            int `json:"students"`
	UpcomingEvents      int `json:"upcoming_events"`
	Items               int `json:"items"`
	PendingBorrows      int `json:"pending_borrowing_requests"`
	ActiveBorrows       int `json:"active_borrowing_requests"`
	PendingReturns      int `json:"pending_returns"`
	Repairs             int `json:"repairs"`
	PendingApplications int `json:"pending_applications"`
}

// GetDashboard counts the records visible to acc.
func GetDashboard(ctx context.Context, db *sql.DB, acc access.Access, now time.Time) (*Dashboard, error) {
	d := &Dashboard{}

	counts := []struct {
		dst    *int
		column string
		query  string
		args   []any
	}{
		{&d.Students, "campus", `SELECT COUNT(*) FROM students WHERE status <> ?`, []any{model.StudentStatusArchived}},
		{&d.Items, "campus", `SELECT COUNT(*) FROM inventory_items WHERE status <> ?`, []any{model.ItemStatusArchived}},
		{&d.PendingBorrows, "student_campus", `SELECT COUNT(*) FROM borrowing_requests WHERE status = ?`, []any{model.BorrowStatusPending}},
		{&d.ActiveBorrows, "student_campus", `SELECT COUNT(*) FROM borrowing_requests WHERE status = ? AND current_status IN (?, ?)`,
			[]any{model.BorrowStatusApproved, model.CurrentActive, model.CurrentPendingReturn}},
		{&d.PendingReturns, "br.student_campus", `SELECT COUNT(*) FROM return_requests rr
			JOIN borrowing_requests br ON br.id = rr.borrowing_request_id WHERE rr.status = ?`, []any{model.ReturnStatusPending}},
		{&d.Repairs, "i.campus", `SELECT COUNT(*) FROM repair_queue rq
			JOIN inventory_items i ON i.id = rq.item_id WHERE 1=1`, nil},
		{&d.PendingApplications, "campus", `SELECT COUNT(*) FROM applications WHERE status = ?`, []any{model.ApplicationPending}},
	}

	for _, c := range counts {
		scope, scopeArgs := acc.Filter(c.column)
		args := append(append([]any{}, c.args...), scopeArgs...)
		if err := db.QueryRowContext(ctx, c.query+` AND `+scope, args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting dashboard (%s): %w", c.column, err)
		}
	}

	var err error
	if d.UpcomingEvents, err = CountUpcomingEvents(ctx, db, acc, now); err != nil {
		return nil, err
	}
	return d, nil
}
