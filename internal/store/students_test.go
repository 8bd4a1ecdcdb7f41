package store

import (
	"context"
	"errors"
	"testing"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/db"
	"github.com/culturearts/portal/internal/model"
)

func TestStudentCRUD(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	st := mustStudent(t, database, "21-10001", "Lipa")
	if st.Status != model.StudentStatusActive {
		t.Errorf("expected active, got %q", st.Status)
	}

	if _, err := CreateStudent(ctx, database, StudentInput{SRCode: "21-10001", Name: "Dup", Campus: "Lipa"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for duplicate sr_code, got %v", err)
	}

	updated, err := UpdateStudent(ctx, database, lipaAccess, st.ID, StudentInput{
		SRCode: "21-10001", Name: "Renamed", Campus: "Lipa", Program: "BS Music", Status: model.StudentStatusInactive,
	})
	if err != nil {
		t.Fatalf("UpdateStudent: %v", err)
	}
	if updated.Name != "Renamed" || updated.Status != model.StudentStatusInactive || updated.Program != "BS Music" {
		t.Errorf("unexpected update: %+v", updated)
	}

	if _, err := UpdateStudent(ctx, database, malvarAccess, st.ID, StudentInput{
		SRCode: "21-10001", Name: "x", Campus: "Malvar",
	}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	archived, err := ArchiveStudent(ctx, database, lipaAccess, st.ID)
	if err != nil {
		t.Fatalf("ArchiveStudent: %v", err)
	}
	if archived.Status != model.StudentStatusArchived {
		t.Errorf("expected archived, got %q", archived.Status)
	}
	if list, _ := ListStudents(ctx, database, lipaAccess, StudentFilter{}); len(list) != 0 {
		t.Errorf("expected archived student hidden, got %d", len(list))
	}
	if list, _ := ListStudents(ctx, database, lipaAccess, StudentFilter{Status: model.StudentStatusArchived}); len(list) != 1 {
		t.Errorf("expected 1 archived student, got %d", len(list))
	}

	restored, err := RestoreStudent(ctx, database, lipaAccess, st.ID)
	if err != nil {
		t.Fatalf("RestoreStudent: %v", err)
	}
	if restored.Status != model.StudentStatusInactive {
		t.Errorf("expected inactive after restore, got %q", restored.Status)
	}
	if _, err := RestoreStudent(ctx, database, lipaAccess, st.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListStudentsSearch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustStudent(t, database, "21-20001", "Nasugbu")
	mustStudent(t, database, "21-20002", "ARASOF Nasugbu")
	mustStudent(t, database, "21-20003", "Lipa")

	nasugbu := access.DefaultPolicy().Resolve(access.Actor{Role: model.RoleStaff, Campus: "Nasugbu"})
	got, err := ListStudents(ctx, database, nasugbu, StudentFilter{})
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 Nasugbu students, got %d", len(got))
	}

	hit, _ := ListStudents(ctx, database, adminAccess, StudentFilter{Query: "20003"})
	if len(hit) != 1 || hit[0].Campus != "Lipa" {
		t.Errorf("unexpected search result: %+v", hit)
	}
}

func TestApplicationApproval(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	app, err := CreateApplication(ctx, database, ApplicationInput{
		SRCode: "22-00001", Name: "Applicant", Email: "a@g.batstate-u.edu.ph", Campus: "Malvar", PerformanceType: "choir",
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.Status != model.ApplicationPending {
		t.Errorf("expected pending, got %q", app.Status)
	}

	if _, err := CreateApplication(ctx, database, ApplicationInput{SRCode: "x", Name: "y", Campus: "Lipa"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation without performance_type, got %v", err)
	}

	if _, err := ApproveApplication(ctx, database, lipaAccess, app.ID, 3); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	approved, err := ApproveApplication(ctx, database, malvarAccess, app.ID, 2)
	if err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if approved.Status != model.ApplicationApproved || approved.StudentID == nil {
		t.Fatalf("unexpected approval: %+v", approved)
	}
	student, _ := GetStudent(ctx, database, *approved.StudentID)
	if student == nil || student.SRCode != "22-00001" || student.Campus != "Malvar" {
		t.Errorf("unexpected student: %+v", student)
	}

	if _, err := RejectApplication(ctx, database, malvarAccess, app.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound rejecting decided application, got %v", err)
	}

	// A second application for the same student links to the existing row.
	again, _ := CreateApplication(ctx, database, ApplicationInput{
		SRCode: "22-00001", Name: "Applicant", Campus: "JPLPC Malvar", PerformanceType: "dance",
	})
	linked, err := ApproveApplication(ctx, database, malvarAccess, again.ID, 2)
	if err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if *linked.StudentID != *approved.StudentID {
		t.Errorf("expected link to student %d, got %d", *approved.StudentID, *linked.StudentID)
	}

	pending, _ := ListApplications(ctx, database, malvarAccess, model.ApplicationPending)
	if len(pending) != 0 {
		t.Errorf("expected no pending applications, got %d", len(pending))
	}
	all, _ := ListApplications(ctx, database, malvarAccess, "")
	if len(all) != 2 {
		t.Errorf("expected 2 applications, got %d", len(all))
	}
}
