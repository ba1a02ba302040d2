// Package services – DashboardService
//
// This file serves the read side of the dashboard link. An anonymized name is
// resolved to exactly one user before any reading is read, so neither the
// display name nor the platform user id ever leaves the store through this
// path, and two senders sharing a display name never see each other's data.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/repo"
)

// MaxExportRows caps the readings written to one export.
const MaxExportRows = 10000

// DashboardRepo defines the repository contract required by DashboardService.
type DashboardRepo interface {
	// FindUserByAnonymizedName returns repo.ErrNotFound or repo.ErrAmbiguous
	// unless exactly one user carries anon.
	FindUserByAnonymizedName(ctx context.Context, db *gorm.DB, anon string) (*domain.User, error)
	CountTemperaturesByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListTemperaturesByUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Temperature, error)
	TemperatureStats(ctx context.Context, db *gorm.DB, userID string) (int64, string, error)
}

// DashboardService lists readings behind an anonymized name.
type DashboardService struct {
	DB   *gorm.DB
	Repo DashboardRepo
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(db *gorm.DB, r DashboardRepo) *DashboardService {
	return &DashboardService{DB: db, Repo: r}
}

// Stats returns the reading count and latest datetime behind anon.
// ErrDashboardNotFound is returned for an unknown anon and
// ErrDashboardAmbiguous when several senders share it.
func (s *DashboardService) Stats(ctx context.Context, anon string) (int64, string, error) {
	userID, err := s.resolve(ctx, anon)
	if err != nil {
		return 0, "", err
	}
	return s.Repo.TemperatureStats(ctx, s.DB, userID)
}

// ListPage returns readings newest first with the total count.
func (s *DashboardService) ListPage(ctx context.Context, anon string, page, pageSize int) ([]domain.Temperature, int64, error) {
	tr := otel.Tracer("services/DashboardService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	userID, err := s.resolve(ctx, anon)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.Repo.CountTemperaturesByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Temperature{}, 0, nil
	}
	items, err := s.Repo.ListTemperaturesByUser(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Export returns up to MaxExportRows readings, newest first.
func (s *DashboardService) Export(ctx context.Context, anon string) ([]domain.Temperature, error) {
	tr := otel.Tracer("services/DashboardService")
	ctx, span := tr.Start(ctx, "Export")
	defer span.End()

	userID, err := s.resolve(ctx, anon)
	if err != nil {
		return nil, err
	}
	return s.Repo.ListTemperaturesByUser(ctx, s.DB, userID, 0, MaxExportRows)
}

// resolve maps anon to the one user id it belongs to.
func (s *DashboardService) resolve(ctx context.Context, anon string) (string, error) {
	if anon == "" {
		return "", ErrDashboardNotFound
	}
	u, err := s.Repo.FindUserByAnonymizedName(ctx, s.DB, anon)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return "", ErrDashboardNotFound
	case errors.Is(err, repo.ErrAmbiguous):
		return "", ErrDashboardAmbiguous
	case err != nil:
		return "", err
	}
	return u.ID, nil
}
