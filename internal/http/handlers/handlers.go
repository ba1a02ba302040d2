package handlers

import (
	"context"

	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/services"
)

// WebhookProcessor handles the text events of one verified webhook delivery.
type WebhookProcessor interface {
	Process(ctx context.Context, executionID string, events []services.TextEvent) []services.EventResult
}

// DashboardReader serves readings behind an anonymized name.
type DashboardReader interface {
	Stats(ctx context.Context, anon string) (int64, string, error)
	ListPage(ctx context.Context, anon string, page, pageSize int) ([]domain.Temperature, int64, error)
	Export(ctx context.Context, anon string) ([]domain.Temperature, error)
}

// Handlers aggregates the dependencies used by the HTTP handlers.
type Handlers struct {
	channelSecret string
	webhook       WebhookProcessor
	dashboard     DashboardReader
}

// New constructs Handlers. channelSecret verifies inbound webhook signatures.
func New(channelSecret string, w WebhookProcessor, d DashboardReader) *Handlers {
	return &Handlers{channelSecret: channelSecret, webhook: w, dashboard: d}
}
