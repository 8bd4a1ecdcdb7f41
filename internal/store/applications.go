package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

// ApplicationInput is a new membership application.
type ApplicationInput struct {
	SRCode          string `json:"sr_code"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Campus          string `json:"campus"`
	Program         string `json:"program"`
	PerformanceType string `json:"performance_type"`
}

const applicationColumns = `id, sr_code, name, email, campus, program, performance_type, status,
	student_id, decided_by, decided_at, created_at`

func scanApplication(s interface{ Scan(...any) error }, a *model.Application) error {
	return s.Scan(&a.ID, &a.SRCode, &a.Name, &a.Email, &a.Campus, &a.Program, &a.PerformanceType,
		&a.Status, &a.StudentID, &a.DecidedBy, &a.DecidedAt, &a.CreatedAt)
}

// CreateApplication files a pending application.
func CreateApplication(ctx context.Context, db *sql.DB, in ApplicationInput) (*model.Application, error) {
	in.SRCode = strings.TrimSpace(in.SRCode)
	in.Name = strings.TrimSpace(in.Name)
	in.PerformanceType = strings.TrimSpace(in.PerformanceType)
	switch {
	case in.SRCode == "":
		return nil, invalidf("sr_code is required")
	case in.Name == "":
		return nil, invalidf("name is required")
	case in.Campus == "":
		return nil, invalidf("campus is required")
	case in.PerformanceType == "":
		return nil, invalidf("performance_type is required")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO applications (sr_code, name, email, campus, program, performance_type, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.SRCode, in.Name, strings.TrimSpace(in.Email), in.Campus, in.Program, in.PerformanceType,
		model.ApplicationPending,
	)
	if err != nil {
		return nil, fmt.Errorf("creating application: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting application id: %w", err)
	}
	return GetApplication(ctx, db, id)
}

// GetApplication returns an application by ID.
func GetApplication(ctx context.Context, db *sql.DB, id int64) (*model.Application, error) {
	return getApplication(ctx, db, id)
}

func getApplication(ctx context.Context, q querier, id int64) (*model.Application, error) {
	a := &model.Application{}
	err := scanApplication(q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id,
	), a)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting application: %w", err)
	}
	return a, nil
}

// ListApplications returns applications visible to acc, newest first.
func ListApplications(ctx context.Context, db *sql.DB, acc access.Access, status string) ([]model.Application, error) {
	scope, args := acc.Filter("campus")
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ` + scope
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		var a model.Application
		if err := scanApplication(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func loadPendingApplication(ctx context.Context, tx *sql.Tx, acc access.Access, id int64) (*model.Application, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE applications SET status = status WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("locking application: %w", err)
	}
	a, err := getApplication(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	if !acc.Allows(a.Campus) {
		return nil, fmt.Errorf("application %d: %w", id, ErrForbidden)
	}
	if a.Status != model.ApplicationPending {
		return nil, fmt.Errorf("application %d is %s: %w", id, a.Status, ErrNotFound)
	}
	return a, nil
}

// ApproveApplication approves a pending application and adds the applicant
// to the roster in the same transaction. An applicant already on the roster
// is linked instead of duplicated.
func ApproveApplication(ctx context.Context, db *sql.DB, acc access.Access, id, decidedBy int64) (*model.Application, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		a, err := loadPendingApplication(ctx, tx, acc, id)
		if err != nil {
			return err
		}

		var studentID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM students WHERE sr_code = ?`, a.SRCode).Scan(&studentID)
		if err == sql.ErrNoRows {
			studentID, err = insertStudent(ctx, tx, StudentInput{
				SRCode:          a.SRCode,
				Name:            a.Name,
				Email:           a.Email,
				Campus:          a.Campus,
				Program:         a.Program,
				PerformanceType: a.PerformanceType,
				Status:          model.StudentStatusActive,
			})
		}
		if err != nil {
			return fmt.Errorf("resolving student: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE applications SET status = ?, student_id = ?, decided_by = ?, decided_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			model.ApplicationApproved, studentID, decidedBy, id,
		)
		if err != nil {
			return fmt.Errorf("approving application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetApplication(ctx, db, id)
}

// RejectApplication rejects a pending application.
func RejectApplication(ctx context.Context, db *sql.DB, acc access.Access, id, decidedBy int64) (*model.Application, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := loadPendingApplication(ctx, tx, acc, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE applications SET status = ?, decided_by = ?, decided_at = CURRENT_TIMESTAMP WHERE id = ?`,
			model.ApplicationRejected, decidedBy, id,
		)
		if err != nil {
			return fmt.Errorf("rejecting application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetApplication(ctx, db, id)
}
