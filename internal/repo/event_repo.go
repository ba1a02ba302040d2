// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-event ledger used to skip
// webhook redeliveries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/domain"
)

// ClaimEvent records eventID as being processed until now+lease. A second
// claim of the same id returns ErrDuplicate while the row is live; a row whose
// expiry has passed is taken over by the new claim.
func ClaimEvent(ctx context.Context, db *gorm.DB, eventID string, now time.Time, lease time.Duration) error {
	if strings.TrimSpace(eventID) == "" {
		return errors.New("event id must not be empty")
	}
	rec := &domain.ProcessedEvent{
		EventID:   eventID,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(lease),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return nil
	}
	if !isDuplicateKey(err) {
		return err
	}

	res := db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("event_id = ? AND expires_at <= ?", eventID, now.UTC()).
		Updates(map[string]any{"created_at": rec.CreatedAt, "expires_at": rec.ExpiresAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// CompleteEvent extends the claim on eventID until expiresAt. Missing rows
// yield ErrNotFound.
func CompleteEvent(ctx context.Context, db *gorm.DB, eventID string, expiresAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Update("expires_at", expiresAt.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredEvents deletes ledger rows whose TTL elapsed before now and
// returns how many were removed.
func PurgeExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
