package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
)

var (
	adminAccess  = access.DefaultPolicy().Resolve(access.Actor{UserID: 1, Role: model.RoleAdmin, Campus: "Pablo Borbon"})
	malvarAccess = access.DefaultPolicy().Resolve(access.Actor{UserID: 2, Role: model.RoleStaff, Campus: "Malvar"})
	lipaAccess   = access.DefaultPolicy().Resolve(access.Actor{UserID: 3, Role: model.RoleHead, Campus: "Lipa"})
)

func intPtr(n int) *int { return &n }

func mustUser(t *testing.T, database *sql.DB, email, role, campus string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, email, "", "hash", role, campus)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustStudent(t *testing.T, database *sql.DB, srCode, campus string) *model.Student {
	t.Helper()
	st, err := CreateStudent(context.Background(), database, StudentInput{
		SRCode: srCode, Name: "Student " + srCode, Campus: campus, PerformanceType: "dance",
	})
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	return st
}

func mustItem(t *testing.T, database *sql.DB, name, campus string, quantity int) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, ItemInput{
		Name: name, Category: model.ItemCategoryCostume, Campus: campus, Quantity: intPtr(quantity),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return item
}

func mustBorrow(t *testing.T, database *sql.DB, studentID int64, items ...model.LineItem) *model.BorrowingRequest {
	t.Helper()
	r, err := CreateBorrowing(context.Background(), database, adminAccess, BorrowingInput{
		StudentID: studentID, Items: items, Purpose: "recital",
	})
	if err != nil {
		t.Fatalf("CreateBorrowing: %v", err)
	}
	return r
}

// checkQuantities reconciles an item and asserts the breakdown and that
// available + borrowed == total with no drift.
func checkQuantities(t *testing.T, database *sql.DB, itemID int64, total, available, borrowed int) {
	t.Helper()
	rec, err := Reconcile(context.Background(), database, itemID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec == nil {
		t.Fatalf("item %d not found", itemID)
	}
	if rec.Total != total || rec.Available != available || rec.Borrowed != borrowed {
		t.Errorf("item %d: got total=%d available=%d borrowed=%d, want %d/%d/%d",
			itemID, rec.Total, rec.Available, rec.Borrowed, total, available, borrowed)
	}
	if rec.Available+rec.Borrowed != rec.Total {
		t.Errorf("item %d: available %d + borrowed %d != total %d", itemID, rec.Available, rec.Borrowed, rec.Total)
	}
	if rec.Drift {
		t.Errorf("item %d: stored available %d drifted from computed %d", itemID, rec.StoredAvailable, rec.Available)
	}
}
