package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/culturearts/portal/internal/db"
	"github.com/culturearts/portal/internal/model"
)

func TestEventArchiveRestoreRoundTrip(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)

	event, err := CreateEvent(ctx, database, EventInput{
		Title: "Foundation Day", Campus: "Malvar", Location: "Gym",
		StartDate: start, EndDate: start.Add(3 * time.Hour), Status: model.EventStatusOngoing,
	}, 1)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	archived, err := ArchiveEvent(ctx, database, malvarAccess, event.ID)
	if err != nil {
		t.Fatalf("ArchiveEvent: %v", err)
	}
	if archived.Status != model.EventStatusArchived {
		t.Errorf("expected archived, got %q", archived.Status)
	}

	restored, err := RestoreEvent(ctx, database, malvarAccess, event.ID)
	if err != nil {
		t.Fatalf("RestoreEvent: %v", err)
	}
	if restored.Status != model.EventStatusOngoing {
		t.Errorf("expected status ongoing after restore, got %q", restored.Status)
	}
	if !restored.UpdatedAt.Equal(event.UpdatedAt) || !restored.StartDate.Equal(event.StartDate) ||
		!restored.EndDate.Equal(event.EndDate) || restored.Title != event.Title ||
		restored.Campus != event.Campus || restored.Location != event.Location {
		t.Errorf("restore changed other fields:\nbefore %+v\nafter  %+v", event, restored)
	}

	if _, err := RestoreEvent(ctx, database, malvarAccess, event.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound restoring a live event, got %v", err)
	}
	if _, err := ArchiveEvent(ctx, database, lipaAccess, event.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden from another campus, got %v", err)
	}
}

func TestListEventsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	for i, campus := range []string{"Malvar", "JPLPC Malvar", "Lipa"} {
		if _, err := CreateEvent(ctx, database, EventInput{
			Title: "Recital " + campus, Campus: campus, StartDate: base.AddDate(0, 0, i*10),
		}, 1); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	scoped, err := ListEvents(ctx, database, malvarAccess, EventFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("expected 2 Malvar events, got %d", len(scoped))
	}

	from := base.AddDate(0, 0, 5)
	to := base.AddDate(0, 0, 25)
	ranged, _ := ListEvents(ctx, database, adminAccess, EventFilter{From: &from, To: &to})
	if len(ranged) != 2 {
		t.Errorf("expected 2 events in range, got %d", len(ranged))
	}

	search, _ := ListEvents(ctx, database, adminAccess, EventFilter{Query: "Lipa"})
	if len(search) != 1 {
		t.Errorf("expected 1 search hit, got %d", len(search))
	}

	upcoming, err := CountUpcomingEvents(ctx, database, adminAccess, base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CountUpcomingEvents: %v", err)
	}
	if upcoming != 2 {
		t.Errorf("expected 2 upcoming, got %d", upcoming)
	}
}

func TestEventValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   EventInput
	}{
		{"missing title", EventInput{Campus: "Lipa", StartDate: start}},
		{"missing campus", EventInput{Title: "x", StartDate: start}},
		{"missing start", EventInput{Title: "x", Campus: "Lipa"}},
		{"end before start", EventInput{Title: "x", Campus: "Lipa", StartDate: start, EndDate: start.Add(-time.Hour)}},
		{"archived status", EventInput{Title: "x", Campus: "Lipa", StartDate: start, Status: model.EventStatusArchived}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateEvent(ctx, database, tt.in, 1); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC)

	event, err := CreateEvent(ctx, database, EventInput{Title: "Concert", Campus: "Lipa", StartDate: start}, 1)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if !event.EndDate.Equal(start) {
		t.Errorf("expected end date to default to start, got %v", event.EndDate)
	}

	updated, err := UpdateEvent(ctx, database, lipaAccess, event.ID, EventInput{
		Title: "Winter Concert", Campus: "Lipa", StartDate: start, Status: model.EventStatusCancelled,
	})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if updated.Title != "Winter Concert" || updated.Status != model.EventStatusCancelled {
		t.Errorf("unexpected update: %+v", updated)
	}

	if _, err := ArchiveEvent(ctx, database, lipaAccess, event.ID); err != nil {
		t.Fatalf("ArchiveEvent: %v", err)
	}
	if _, err := UpdateEvent(ctx, database, lipaAccess, event.ID, EventInput{
		Title: "x", Campus: "Lipa", StartDate: start,
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound editing archived event, got %v", err)
	}

	if err := DeleteEvent(ctx, database, malvarAccess, event.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := DeleteEvent(ctx, database, lipaAccess, event.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if got, _ := GetEvent(ctx, database, event.ID); got != nil {
		t.Error("expected event to be deleted")
	}
}
