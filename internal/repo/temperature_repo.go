// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only Temperature model.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/domain"
)

// CreateTemperature appends one reading. Failures are returned as *StoreError.
func CreateTemperature(ctx context.Context, db *gorm.DB, t *domain.Temperature) error {
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return newStoreError(tableName(db, t), 0, err)
	}
	return nil
}

// CountTemperaturesBetween counts the user's readings with start <= datetime < end.
func CountTemperaturesBetween(ctx context.Context, db *gorm.DB, userID, start, end string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Temperature{}).
		Where("user_id = ? AND datetime >= ? AND datetime < ?", userID, start, end).
		Count(&n).Error
	return n, err
}

func byUser(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&domain.Temperature{}).Where("user_id = ?", userID)
}

// CountTemperaturesByUser returns the number of readings stored for userID.
func CountTemperaturesByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := byUser(db.WithContext(ctx), userID).Count(&n).Error
	return n, err
}

// ListTemperaturesByUser returns a page of the user's readings, newest first.
// The caller computes offset and limit.
func ListTemperaturesByUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Temperature, error) {
	var out []domain.Temperature
	q := byUser(db.WithContext(ctx), userID).Order("datetime DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// TemperatureStats returns the user's reading count and the latest datetime
// among them ("" when there are none). Used for ETag generation.
func TemperatureStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest string, err error) {
	if count, err = CountTemperaturesByUser(ctx, db, userID); err != nil {
		return 0, "", err
	}
	if count == 0 {
		return 0, "", nil
	}
	var row struct {
		Datetime string
	}
	err = byUser(db.WithContext(ctx), userID).
		Select("datetime").
		Order("datetime DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return 0, "", err
	}
	return count, row.Datetime, nil
}
