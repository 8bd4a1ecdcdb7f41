package store

import (
	"context"
	"errors"
	"testing"

	"github.com/culturearts/portal/internal/db"
	"github.com/culturearts/portal/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, ItemInput{
		Name: "  Maria Clara gown ", Category: model.ItemCategoryCostume, Campus: "Lipa", Quantity: intPtr(4),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Name != "Maria Clara gown" {
		t.Errorf("expected trimmed name, got %q", item.Name)
	}
	if item.Quantity != 4 || item.AvailableQuantity != 4 {
		t.Errorf("expected 4/4, got %d/%d", item.Quantity, item.AvailableQuantity)
	}
	if item.Status != model.ItemStatusAvailable || item.ConditionStatus != model.ConditionGood {
		t.Errorf("unexpected defaults: %q %q", item.Status, item.ConditionStatus)
	}

	got, err := GetItemWithQuantities(ctx, database, lipaAccess, item.ID)
	if err != nil {
		t.Fatalf("GetItemWithQuantities: %v", err)
	}
	if got == nil || got.Quantities.Available != 4 {
		t.Fatalf("unexpected item: %+v", got)
	}

	hidden, err := GetItemWithQuantities(ctx, database, malvarAccess, item.ID)
	if err != nil {
		t.Fatalf("GetItemWithQuantities: %v", err)
	}
	if hidden != nil {
		t.Error("expected item from another campus to be hidden")
	}
}

func TestCreateItemValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ItemInput
	}{
		{"missing name", ItemInput{Category: model.ItemCategoryCostume, Campus: "Lipa", Quantity: intPtr(1)}},
		{"bad category", ItemInput{Name: "x", Category: "prop", Campus: "Lipa", Quantity: intPtr(1)}},
		{"missing campus", ItemInput{Name: "x", Category: model.ItemCategoryCostume, Quantity: intPtr(1)}},
		{"missing quantity", ItemInput{Name: "x", Category: model.ItemCategoryCostume, Campus: "Lipa"}},
		{"negative quantity", ItemInput{Name: "x", Category: model.ItemCategoryCostume, Campus: "Lipa", Quantity: intPtr(-1)}},
		{"bad status", ItemInput{Name: "x", Category: model.ItemCategoryCostume, Campus: "Lipa", Quantity: intPtr(1), Status: "lost"}},
		{"archived status", ItemInput{Name: "x", Category: model.ItemCategoryCostume, Campus: "Lipa", Quantity: intPtr(1), Status: model.ItemStatusArchived}},
		{"bad condition", ItemInput{Name: "x", Category: model.ItemCategoryCostume, Campus: "Lipa", Quantity: intPtr(1), ConditionStatus: "broken"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateItem(ctx, database, tt.in); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestListItemsCampusScope(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustItem(t, database, "Legacy row", "Malvar", 1)
	mustItem(t, database, "Canonical row", "JPLPC Malvar", 1)
	mustItem(t, database, "Lipa row", "Lipa", 1)
	mustItem(t, database, "HQ row", "Pablo Borbon", 1)

	malvar, err := ListItems(ctx, database, malvarAccess, ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(malvar) != 2 {
		t.Errorf("expected 2 Malvar items, got %d", len(malvar))
	}
	for _, it := range malvar {
		if it.Campus != "Malvar" && it.Campus != "JPLPC Malvar" {
			t.Errorf("unexpected campus %q in Malvar list", it.Campus)
		}
	}

	all, _ := ListItems(ctx, database, adminAccess, ItemFilter{})
	if len(all) != 4 {
		t.Errorf("expected 4 items for admin, got %d", len(all))
	}

	search, _ := ListItems(ctx, database, adminAccess, ItemFilter{Query: "row", Category: model.ItemCategoryEquipment})
	if len(search) != 0 {
		t.Errorf("expected no equipment, got %d", len(search))
	}
}

func TestArchiveRestoreItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Mask", "Lipa", 2)
	if _, err := UpdateItem(ctx, database, lipaAccess, item.ID, ItemInput{
		Name: "Mask", Category: model.ItemCategoryCostume, Campus: "Lipa", Quantity: intPtr(2),
		Status: model.ItemStatusMaintenance,
	}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	before, _ := GetItem(ctx, database, item.ID)

	archived, err := ArchiveItem(ctx, database, lipaAccess, item.ID)
	if err != nil {
		t.Fatalf("ArchiveItem: %v", err)
	}
	if archived.Status != model.ItemStatusArchived {
		t.Errorf("expected archived, got %q", archived.Status)
	}
	if list, _ := ListItems(ctx, database, lipaAccess, ItemFilter{}); len(list) != 0 {
		t.Errorf("expected archived item hidden from default list, got %d", len(list))
	}
	if _, err := ArchiveItem(ctx, database, lipaAccess, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound archiving twice, got %v", err)
	}

	restored, err := RestoreItem(ctx, database, lipaAccess, item.ID)
	if err != nil {
		t.Fatalf("RestoreItem: %v", err)
	}
	if *restored != *before {
		t.Errorf("restore did not round-trip:\nbefore %+v\nafter  %+v", before, restored)
	}
	if _, err := RestoreItem(ctx, database, lipaAccess, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound restoring non-archived item, got %v", err)
	}
	if _, err := ArchiveItem(ctx, database, malvarAccess, item.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden from another campus, got %v", err)
	}
}

func TestUpdateItemQuantityFloor(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	student := mustStudent(t, database, "21-00010", "Lipa")
	item := mustItem(t, database, "Guitar", "Lipa", 5)
	req := mustBorrow(t, database, student.ID, model.LineItem{ID: item.ID, Quantity: 3})
	if _, _, err := ApproveBorrowing(ctx, database, adminAccess, req.ID, 1, nil); err != nil {
		t.Fatalf("ApproveBorrowing: %v", err)
	}

	in := ItemInput{Name: "Guitar", Category: model.ItemCategoryEquipment, Campus: "Lipa", Quantity: intPtr(2)}
	if _, err := UpdateItem(ctx, database, lipaAccess, item.ID, in); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation shrinking below borrowed, got %v", err)
	}

	in.Quantity = intPtr(8)
	updated, err := UpdateItem(ctx, database, lipaAccess, item.ID, in)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Category != model.ItemCategoryEquipment {
		t.Errorf("expected category equipment, got %q", updated.Category)
	}
	checkQuantities(t, database, item.ID, 8, 5, 3)

	in.Campus = "Malvar"
	if _, err := UpdateItem(ctx, database, lipaAccess, item.ID, in); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden moving item out of scope, got %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Old drum", "Lipa", 1)
	if err := DeleteItem(ctx, database, malvarAccess, item.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := DeleteItem(ctx, database, lipaAccess, item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if got, _ := GetItem(ctx, database, item.ID); got != nil {
		t.Error("expected item to be gone")
	}
	if err := DeleteItem(ctx, database, lipaAccess, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReconcileReportsDrift(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Tambourine", "Lipa", 4)
	if _, err := database.Exec(`UPDATE inventory_items SET available_quantity = 9 WHERE id = ?`, item.ID); err != nil {
		t.Fatalf("corrupting cache: %v", err)
	}

	rec, err := Reconcile(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !rec.Drift || rec.StoredAvailable != 9 || rec.Available != 4 {
		t.Errorf("expected drift 9 vs 4, got %+v", rec)
	}
	// Reading never rewrites the stored value or the total.
	got, _ := GetItem(ctx, database, item.ID)
	if got.AvailableQuantity != 9 || got.Quantity != 4 {
		t.Errorf("reconcile mutated the item: %+v", got)
	}

	missing, err := Reconcile(ctx, database, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing item, got %+v %v", missing, err)
	}
}

func TestReconcileSkipsMalformedLoan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustUser(t, database, "admin@campus.edu", model.RoleAdmin, "Pablo Borbon")

	student := mustStudent(t, database, "21-00042", "Pablo Borbon")
	item := mustItem(t, database, "Kulintang", "Pablo Borbon", 3)
	req := mustBorrow(t, database, student.ID, model.LineItem{ID: item.ID, Quantity: 1})
	if _, _, err := ApproveBorrowing(ctx, database, adminAccess, req.ID, admin.ID, nil); err != nil {
		t.Fatalf("ApproveBorrowing: %v", err)
	}

	if _, err := database.ExecContext(ctx,
		`INSERT INTO borrowing_requests (student_id, student_campus, requested_items, approved_items, status, current_status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		student.ID, "Pablo Borbon", "[]", "{not json", model.BorrowStatusApproved, model.CurrentActive,
	); err != nil {
		t.Fatalf("inserting malformed loan: %v", err)
	}

	checkQuantities(t, database, item.ID, 3, 2, 1)
	items, err := ListItems(ctx, database, adminAccess, ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].Quantities.Available != 2 {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestCampusScopeIgnoresCase(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Lowercase row", "lipa", 1)

	items, err := ListItems(ctx, database, lipaAccess, ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the lowercase row to be listed, got %d", len(items))
	}
	got, err := GetItemWithQuantities(ctx, database, lipaAccess, item.ID)
	if err != nil || got == nil {
		t.Fatalf("expected listed row to be readable, got %v %v", got, err)
	}
	if err := DeleteItem(ctx, database, lipaAccess, item.ID); err != nil {
		t.Errorf("expected listed row to be deletable, got %v", err)
	}
	if err := DeleteItem(ctx, database, malvarAccess, mustItem(t, database, "Other", "LIPA", 1).ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden across campuses, got %v", err)
	}
}
