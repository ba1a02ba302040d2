// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// The user table has no update or delete path: rows are written once on first
// contact and then only read.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/domain"
)

// GetUser fetches a user by platform id. Missing rows yield ErrNotFound; any
// other failure is the raw DB error.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, ErrNotFound
	}
	return &u, nil
}

// CreateUser inserts u. Failures are returned as *StoreError; key violations
// also match errors.Is(err, ErrDuplicate).
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return newStoreError(tableName(db, u), 0, err)
	}
	return nil
}

// FindUserByAnonymizedName resolves anon to the single user carrying it.
// No match yields ErrNotFound; more than one match yields ErrAmbiguous.
func FindUserByAnonymizedName(ctx context.Context, db *gorm.DB, anon string) (*domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Where("anonymized_name = ?", anon).
		Order("id").
		Limit(2).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	switch len(users) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &users[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

// tableName resolves the physical table of model under db's naming strategy.
func tableName(db *gorm.DB, model any) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil || stmt.Schema == nil {
		return "unknown"
	}
	return stmt.Schema.Table
}
