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

// EventInput holds the editable fields of an event.
type EventInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Campus      string    `json:"campus"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Status      string    `json:"status"`
}

// Validate fills defaults and checks the input.
func (in *EventInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalidf("title is required")
	}
	if in.Campus == "" {
		return invalidf("campus is required")
	}
	if in.StartDate.IsZero() {
		return invalidf("start_date is required")
	}
	if in.EndDate.IsZero() {
		in.EndDate = in.StartDate
	}
	if in.EndDate.Before(in.StartDate) {
		return invalidf("end_date must not be before start_date")
	}
	if in.Status == "" {
		in.Status = model.EventStatusPublished
	}
	if !model.ValidEventStatus(in.Status) {
		return invalidf("invalid status %q", in.Status)
	}
	in.StartDate = in.StartDate.UTC()
	in.EndDate = in.EndDate.UTC()
	return nil
}

// EventFilter narrows ListEvents. From and To bound start_date inclusively.
type EventFilter struct {
	Status string
	Query  string
	From   *time.Time
	To     *time.Time
}

const eventColumns = `id, title, description, location, campus, start_date, end_date, status,
	created_by, created_at, updated_at`

func scanEvent(s interface{ Scan(...any) error }, e *model.Event) error {
	return s.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Campus, &e.StartDate, &e.EndDate,
		&e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
}

// CreateEvent creates an event.
func CreateEvent(ctx context.Context, db *sql.DB, in EventInput, createdBy int64) (*model.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO events (title, description, location, campus, start_date, end_date, status, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Location, in.Campus, in.StartDate, in.EndDate, in.Status, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting event id: %w", err)
	}
	return GetEvent(ctx, db, id)
}

// GetEvent returns an event by ID.
func GetEvent(ctx context.Context, db *sql.DB, id int64) (*model.Event, error) {
	e := &model.Event{}
	err := scanEvent(db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id,
	), e)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return e, nil
}

// ListEvents returns events visible to acc, soonest first.
func ListEvents(ctx context.Context, db *sql.DB, acc access.Access, f EventFilter) ([]model.Event, error) {
	scope, args := acc.Filter("campus")
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + scope

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	} else {
		query += ` AND status <> ?`
		args = append(args, model.EventStatusArchived)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query += ` AND (title LIKE ? OR location LIKE ?)`
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	if f.From != nil {
		query += ` AND start_date >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		query += ` AND start_date <= ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY start_date, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scopedEvent loads an event and checks it is visible to acc.
func scopedEvent(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Event, error) {
	e, err := GetEvent(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if !acc.Allows(e.Campus) {
		return nil, fmt.Errorf("event %d: %w", id, ErrForbidden)
	}
	return e, nil
}

// UpdateEvent edits an event that is not archived.
func UpdateEvent(ctx context.Context, db *sql.DB, acc access.Access, id int64, in EventInput) (*model.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !acc.Allows(in.Campus) {
		return nil, fmt.Errorf("moving event to %q: %w", in.Campus, ErrForbidden)
	}
	if _, err := scopedEvent(ctx, db, acc, id); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, description = ?, location = ?, campus = ?, start_date = ?, end_date = ?,
		     status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status <> ?`,
		in.Title, in.Description, in.Location, in.Campus, in.StartDate, in.EndDate, in.Status,
		id, model.EventStatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("updating event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("event %d is archived: %w", id, ErrNotFound)
	}
	return GetEvent(ctx, db, id)
}

// ArchiveEvent archives an event, remembering its status.
func ArchiveEvent(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Event, error) {
	if _, err := scopedEvent(ctx, db, acc, id); err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx,
		`UPDATE events SET archived_from_status = status, status = ? WHERE id = ? AND status <> ?`,
		model.EventStatusArchived, id, model.EventStatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("archiving event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("event %d already archived: %w", id, ErrNotFound)
	}
	return GetEvent(ctx, db, id)
}

// RestoreEvent restores an archived event to its previous status.
func RestoreEvent(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Event, error) {
	if _, err := scopedEvent(ctx, db, acc, id); err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx,
		`UPDATE events SET status = COALESCE(archived_from_status, ?), archived_from_status = NULL
		 WHERE id = ? AND status = ?`,
		model.EventStatusPublished, id, model.EventStatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("restoring event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("event %d is not archived: %w", id, ErrNotFound)
	}
	return GetEvent(ctx, db, id)
}

// DeleteEvent permanently removes an event.
func DeleteEvent(ctx context.Context, db *sql.DB, acc access.Access, id int64) error {
	if _, err := scopedEvent(ctx, db, acc, id); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

// CountUpcomingEvents counts non-archived, non-cancelled events visible to
// acc that start at or after now.
func CountUpcomingEvents(ctx context.Context, db *sql.DB, acc access.Access, now time.Time) (int, error) {
	scope, args := acc.Filter("campus")
	args = append(args, now.UTC(), model.EventStatusArchived, model.EventStatusCancelled)
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE `+scope+` AND start_date >= ? AND status NOT IN (?, ?)`, args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting upcoming events: %w", err)
	}
	return n, nil
}
