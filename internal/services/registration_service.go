// Package services – RegistrationService
//
// This file implements the registration of one validated reading: the sender
// is looked up and created on first contact, the reading is appended, and the
// outcome reports whether the sender is new and whether the reading shares its
// local calendar date with an earlier one.
//
// Insert failures surface as *repo.StoreError so callers can tell a refused
// write apart from any other failure.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/repo"
)

// RegistrationRepo defines the persistence contract required by RegistrationService.
type RegistrationRepo interface {
	// GetUser returns repo.ErrNotFound when the sender is unknown.
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)

	// CreateUser inserts a sender; failures are *repo.StoreError.
	CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error

	// CreateTemperature appends a reading; failures are *repo.StoreError.
	CreateTemperature(ctx context.Context, db *gorm.DB, t *domain.Temperature) error

	// CountTemperaturesBetween counts the sender's readings in [start, end).
	CountTemperaturesBetween(ctx context.Context, db *gorm.DB, userID, start, end string) (int64, error)
}

// RegistrationService persists readings for senders.
type RegistrationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the repository used by this service.
	Repo RegistrationRepo

	// Location fixes the calendar used for Datetime and same-day detection.
	Location *time.Location
	// Timeout bounds each store call; zero disables it.
	Timeout time.Duration
	// Project is attached to spans as store.project.
	Project string
}

// NewRegistrationService constructs a RegistrationService using UTC and no
// per-call timeout.
func NewRegistrationService(db *gorm.DB, r RegistrationRepo) *RegistrationService {
	return &RegistrationService{
		DB:       db,
		Repo:     r,
		Location: time.UTC,
	}
}

// Register stores value for the sender and reports the outcome.
//
// The first contact of a sender creates their user row from userName; later
// contacts reuse the stored row even if the display name changed. The reading
// is stamped with ts rendered in s.Location.
func (s *RegistrationService) Register(ctx context.Context, userID, userName string, value float64, ts time.Time) (domain.RegistrationOutcome, error) {
	tr := otel.Tracer("services/RegistrationService")
	ctx, span := tr.Start(ctx, "Register",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("store.project", s.Project),
		),
	)
	defer span.End()

	var out domain.RegistrationOutcome
	if userID == "" {
		return out, ErrEmptyUserID
	}

	u, created, err := s.getOrCreateUser(ctx, userID, userName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user")
		return out, err
	}
	out.UserInsertion = domain.UserInsertionResult{Created: created, UserData: *u}

	reading := domain.Temperature{
		Datetime:    domain.FormatDatetime(ts, s.Location),
		UserID:      u.ID,
		Temperature: value,
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.Repo.CreateTemperature(ctx, s.DB, &reading)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "temperature")
		return out, err
	}

	start, end := domain.LocalDayBounds(ts, s.Location)
	var sameDay int64
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		sameDay, err = s.Repo.CountTemperaturesBetween(ctx, s.DB, u.ID, start, end)
		return err
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count")
		return out, fmt.Errorf("count readings: %w", err)
	}
	out.TemperatureInsertion = domain.TemperatureInsertionResult{
		Duplicates:   sameDay > 1,
		BodyTempData: reading,
	}

	span.SetAttributes(
		attribute.Bool("user.created", created),
		attribute.Bool("temperature.duplicates", out.TemperatureInsertion.Duplicates),
	)
	registrations.WithLabelValues(outcomeLabel(out)).Inc()
	return out, nil
}

// getOrCreateUser resolves the stored sender, inserting it on first contact.
// A concurrent first contact that wins the insert race is treated as found.
func (s *RegistrationService) getOrCreateUser(ctx context.Context, userID, userName string) (*domain.User, bool, error) {
	var u *domain.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.Repo.GetUser(ctx, s.DB, userID)
		return err
	})
	switch {
	case err == nil:
		return u, false, nil
	case !errors.Is(err, repo.ErrNotFound):
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	u = &domain.User{ID: userID, Name: userName, AnonymizedName: Anonymize(userName)}
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.Repo.CreateUser(ctx, s.DB, u)
	})
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return nil, false, err
	}

	var stored *domain.User
	if rerr := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.Repo.GetUser(ctx, s.DB, userID)
		return err
	}); rerr != nil {
		return nil, false, fmt.Errorf("lookup user: %w", rerr)
	}
	return stored, false, nil
}

func (s *RegistrationService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if s.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return fn(ctx)
}

func outcomeLabel(o domain.RegistrationOutcome) string {
	switch {
	case o.UserInsertion.Created:
		return "first_reading"
	case o.TemperatureInsertion.Duplicates:
		return "same_day_update"
	default:
		return "reading"
	}
}
