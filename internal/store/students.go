package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

// StudentInput holds the editable fields of a student.
type StudentInput struct {
	SRCode          string `json:"sr_code"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Campus          string `json:"campus"`
	Program         string `json:"program"`
	PerformanceType string `json:"performance_type"`
	Status          string `json:"status"`
}

// Validate fills defaults and checks the input.
func (in *StudentInput) Validate() error {
	in.SRCode = strings.TrimSpace(in.SRCode)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.SRCode == "" {
		return invalidf("sr_code is required")
	}
	if in.Name == "" {
		return invalidf("name is required")
	}
	if in.Campus == "" {
		return invalidf("campus is required")
	}
	if in.Status == "" {
		in.Status = model.StudentStatusActive
	}
	if !model.ValidStudentStatus(in.Status) {
		return invalidf("invalid status %q", in.Status)
	}
	return nil
}

// StudentFilter narrows ListStudents.
type StudentFilter struct {
	Status string
	Query  string
}

const studentColumns = `id, sr_code, name, email, campus, program, performance_type, status,
	created_at, updated_at`

func scanStudent(s interface{ Scan(...any) error }, st *model.Student) error {
	return s.Scan(&st.ID, &st.SRCode, &st.Name, &st.Email, &st.Campus, &st.Program,
		&st.PerformanceType, &st.Status, &st.CreatedAt, &st.UpdatedAt)
}

// CreateStudent adds a student to a campus roster.
func CreateStudent(ctx context.Context, db *sql.DB, in StudentInput) (*model.Student, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	id, err := insertStudent(ctx, db, in)
	if err != nil {
		return nil, err
	}
	return GetStudent(ctx, db, id)
}

func insertStudent(ctx context.Context, q querier, in StudentInput) (int64, error) {
	var exists int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE sr_code = ?`, in.SRCode,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("checking sr_code: %w", err)
	}
	if exists > 0 {
		return 0, invalidf("sr_code %q is already registered", in.SRCode)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO students (sr_code, name, email, campus, program, performance_type, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.SRCode, in.Name, in.Email, in.Campus, in.Program, in.PerformanceType, in.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("creating student: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting student id: %w", err)
	}
	return id, nil
}

// GetStudent returns a student by ID.
func GetStudent(ctx context.Context, db *sql.DB, id int64) (*model.Student, error) {
	st := &model.Student{}
	err := scanStudent(db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ?`, id,
	), st)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting student: %w", err)
	}
	return st, nil
}

// ListStudents returns the students visible to acc.
func ListStudents(ctx context.Context, db *sql.DB, acc access.Access, f StudentFilter) ([]model.Student, error) {
	scope, args := acc.Filter("campus")
	query := `SELECT ` + studentColumns + ` FROM students WHERE ` + scope

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	} else {
		query += ` AND status <> ?`
		args = append(args, model.StudentStatusArchived)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query += ` AND (name LIKE ? OR sr_code LIKE ? OR program LIKE ?)`
		args = append(args, "%"+q+"%", "%"+q+"%", "%"+q+"%")
	}
	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	defer rows.Close()

	var out []model.Student
	for rows.Next() {
		var st model.Student
		if err := scanStudent(rows, &st); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scopedStudent(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Student, error) {
	st, err := GetStudent(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	if !acc.Allows(st.Campus) {
		return nil, fmt.Errorf("student %d: %w", id, ErrForbidden)
	}
	return st, nil
}

// UpdateStudent edits a student that is not archived.
func UpdateStudent(ctx context.Context, db *sql.DB, acc access.Access, id int64, in StudentInput) (*model.Student, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !acc.Allows(in.Campus) {
		return nil, fmt.Errorf("moving student to %q: %w", in.Campus, ErrForbidden)
	}
	current, err := scopedStudent(ctx, db, acc, id)
	if err != nil {
		return nil, err
	}
	if current.Status == model.StudentStatusArchived {
		return nil, fmt.Errorf("student %d is archived: %w", id, ErrNotFound)
	}
	if in.SRCode != current.SRCode {
		var taken int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM students WHERE sr_code = ? AND id <> ?`, in.SRCode, id,
		).Scan(&taken); err != nil {
			return nil, fmt.Errorf("checking sr_code: %w", err)
		}
		if taken > 0 {
			return nil, invalidf("sr_code %q is already registered", in.SRCode)
		}
	}

	_, err = db.ExecContext(ctx,
		`UPDATE students
		 SET sr_code = ?, name = ?, email = ?, campus = ?, program = ?, performance_type = ?,
		     status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.SRCode, in.Name, in.Email, in.Campus, in.Program, in.PerformanceType, in.Status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating student: %w", err)
	}
	return GetStudent(ctx, db, id)
}

// ArchiveStudent archives a student, remembering their status.
func ArchiveStudent(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Student, error) {
	if _, err := scopedStudent(ctx, db, acc, id); err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx,
		`UPDATE students SET archived_from_status = status, status = ? WHERE id = ? AND status <> ?`,
		model.StudentStatusArchived, id, model.StudentStatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("archiving student: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("student %d already archived: %w", id, ErrNotFound)
	}
	return GetStudent(ctx, db, id)
}

// RestoreStudent restores an archived student to their previous status.
func RestoreStudent(ctx context.Context, db *sql.DB, acc access.Access, id int64) (*model.Student, error) {
	if _, err := scopedStudent(ctx, db, acc, id); err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx,
		`UPDATE students SET status = COALESCE(archived_from_status, ?), archived_from_status = NULL
		 WHERE id = ? AND status = ?`,
		model.StudentStatusActive, id, model.StudentStatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("restoring student: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("student %d is not archived: %w", id, ErrNotFound)
	}
	return GetStudent(ctx, db, id)
}
