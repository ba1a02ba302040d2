package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/repo"
)

func seedDashboard(t *testing.T, db *gorm.DB, name string, n int) string {
	t.Helper()
	ctx := context.Background()
	anon := Anonymize(name)
	if err := repo.CreateUser(ctx, db, &domain.User{ID: "U-" + name, Name: name, AnonymizedName: anon}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for i := 0; i < n; i++ {
		r := &domain.Temperature{
			Datetime:    fmt.Sprintf("2024-05-%02dT08:00:00", i+1),
			UserID:      "U-" + name,
			Temperature: 36.0 + float64(i)/10,
		}
		if err := repo.CreateTemperature(ctx, db, r); err != nil {
			t.Fatalf("seed reading: %v", err)
		}
	}
	return anon
}

func TestDashboard_UnknownNameIsNotFound(t *testing.T) {
	db := newSvcDB(t)
	s := NewDashboardService(db, sqlRepo{})
	ctx := context.Background()

	if _, _, err := s.ListPage(ctx, "nope", 1, 10); !errors.Is(err, ErrDashboardNotFound) {
		t.Fatalf("ListPage: %v", err)
	}
	if _, err := s.Export(ctx, ""); !errors.Is(err, ErrDashboardNotFound) {
		t.Fatalf("Export: %v", err)
	}
	if _, _, err := s.Stats(ctx, "nope"); !errors.Is(err, ErrDashboardNotFound) {
		t.Fatalf("Stats: %v", err)
	}
}

func TestDashboard_ListPageNewestFirst(t *testing.T) {
	db := newSvcDB(t)
	anon := seedDashboard(t, db, "Alice", 5)
	seedDashboard(t, db, "Bob", 2)
	s := NewDashboardService(db, sqlRepo{})
	ctx := context.Background()

	items, total, err := s.ListPage(ctx, anon, 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if items[0].Datetime != "2024-05-05T08:00:00" || items[1].Datetime != "2024-05-04T08:00:00" {
		t.Fatalf("unexpected order %+v", items)
	}

	items, _, err = s.ListPage(ctx, anon, 3, 2)
	if err != nil || len(items) != 1 || items[0].Datetime != "2024-05-01T08:00:00" {
		t.Fatalf("last page: %+v err=%v", items, err)
	}

	// Defaults for bad paging input.
	items, _, err = s.ListPage(ctx, anon, 0, 0)
	if err != nil || len(items) != 5 {
		t.Fatalf("defaults: len=%d err=%v", len(items), err)
	}

	count, latest, err := s.Stats(ctx, anon)
	if err != nil || count != 5 || latest != "2024-05-05T08:00:00" {
		t.Fatalf("Stats = %d %q %v", count, latest, err)
	}
}

func TestDashboard_EmptyAndExport(t *testing.T) {
	db := newSvcDB(t)
	empty := seedDashboard(t, db, "Carol", 0)
	anon := seedDashboard(t, db, "Dave", 3)
	s := NewDashboardService(db, sqlRepo{})
	ctx := context.Background()

	items, total, err := s.ListPage(ctx, empty, 1, 10)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty dashboard: %v %d %v", items, total, err)
	}

	all, err := s.Export(ctx, anon)
	if err != nil || len(all) != 3 {
		t.Fatalf("Export: len=%d err=%v", len(all), err)
	}
}

func TestDashboard_SharedDisplayNameIsAmbiguous(t *testing.T) {
	db := newSvcDB(t)
	s := NewDashboardService(db, sqlRepo{})
	reg := NewRegistrationService(db, sqlRepo{})
	ctx := context.Background()
	ts := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

	if _, err := reg.Register(ctx, "U-alice-1", "Alice", 36.5, ts); err != nil {
		t.Fatalf("register first: %v", err)
	}
	items, total, err := s.ListPage(ctx, Anonymize("Alice"), 1, 10)
	if err != nil || total != 1 || len(items) != 1 || items[0].Temperature != 36.5 {
		t.Fatalf("single owner: %+v total=%d err=%v", items, total, err)
	}

	if _, err := reg.Register(ctx, "U-alice-2", "Alice", 39.9, ts); err != nil {
		t.Fatalf("register second: %v", err)
	}
	if items, total, err := s.ListPage(ctx, Anonymize("Alice"), 1, 10); !errors.Is(err, ErrDashboardAmbiguous) || items != nil || total != 0 {
		t.Fatalf("ListPage = %+v %d %v; want ErrDashboardAmbiguous", items, total, err)
	}
	if rows, err := s.Export(ctx, Anonymize("Alice")); !errors.Is(err, ErrDashboardAmbiguous) || rows != nil {
		t.Fatalf("Export = %+v %v; want ErrDashboardAmbiguous", rows, err)
	}
	if _, _, err := s.Stats(ctx, Anonymize("Alice")); !errors.Is(err, ErrDashboardAmbiguous) {
		t.Fatalf("Stats = %v; want ErrDashboardAmbiguous", err)
	}
}
