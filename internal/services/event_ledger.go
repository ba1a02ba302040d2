package services

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const (
	// DefaultEventTTL is how long a handled event id is remembered.
	DefaultEventTTL = 24 * time.Hour
	// DefaultClaimLease is how long an event id stays claimed while it is
	// being handled. An event whose handler never completes becomes
	// claimable again once the lease runs out.
	DefaultClaimLease = 2 * time.Minute
)

// EventLedgerRepo defines the persistence contract required by EventLedgerService.
type EventLedgerRepo interface {
	ClaimEvent(ctx context.Context, db *gorm.DB, eventID string, now time.Time, lease time.Duration) error
	CompleteEvent(ctx context.Context, db *gorm.DB, eventID string, expiresAt time.Time) error
	PurgeExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

// EventLedgerService is the database-backed EventLedger.
type EventLedgerService struct {
	DB    *gorm.DB
	Repo  EventLedgerRepo
	TTL   time.Duration
	Lease time.Duration
	Now   func() time.Time
}

// NewEventLedgerService constructs a ledger with DefaultEventTTL and
// DefaultClaimLease.
func NewEventLedgerService(db *gorm.DB, r EventLedgerRepo) *EventLedgerService {
	return &EventLedgerService{DB: db, Repo: r, TTL: DefaultEventTTL, Lease: DefaultClaimLease, Now: time.Now}
}

// Claim marks eventID as in progress for the claim lease; see repo.ClaimEvent.
func (s *EventLedgerService) Claim(ctx context.Context, eventID string) error {
	lease := s.Lease
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	return s.Repo.ClaimEvent(ctx, s.DB, eventID, s.now(), lease)
}

// Complete keeps a claimed eventID for the full TTL once it was handled.
func (s *EventLedgerService) Complete(ctx context.Context, eventID string) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return s.Repo.CompleteEvent(ctx, s.DB, eventID, s.now().Add(ttl))
}

// Purge drops expired ids and reports how many were removed.
func (s *EventLedgerService) Purge(ctx context.Context) (int64, error) {
	return s.Repo.PurgeExpiredEvents(ctx, s.DB, s.now())
}

func (s *EventLedgerService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

var _ EventLedger = (*EventLedgerService)(nil)
