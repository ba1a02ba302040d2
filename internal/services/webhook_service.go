// Package services – WebhookService
//
// This file drives the per-event part of a webhook request. For every text
// message event it resolves the sender's display name, validates the text,
// registers the reading and replies. Each event is handled on its own: a
// failure is turned into an apology reply and the next event still runs.
package services

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/repo"
)

// Messenger is the chat-platform client used for profile lookups and replies.
type Messenger interface {
	DisplayName(ctx context.Context, userID string) (string, error)
	Reply(ctx context.Context, replyToken, text string) error
}

// Registrar stores one validated reading.
type Registrar interface {
	Register(ctx context.Context, userID, userName string, value float64, ts time.Time) (domain.RegistrationOutcome, error)
}

// EventLedger remembers webhook event ids. Claim returns repo.ErrDuplicate
// for an id that is already claimed. A claim is short-lived until Complete
// is called, so an event whose handling was cut off is processed again on
// redelivery.
type EventLedger interface {
	Claim(ctx context.Context, eventID string) error
	Complete(ctx context.Context, eventID string) error
}

// TextEvent is one inbound text message.
type TextEvent struct {
	EventID    string
	ReplyToken string
	UserID     string
	Text       string
	Redelivery bool
}

// EventStatus is the terminal state of one event.
type EventStatus string

const (
	StatusRegistered EventStatus = "registered"
	StatusRejected   EventStatus = "rejected"
	StatusFailed     EventStatus = "failed"
	StatusSkipped    EventStatus = "skipped"
)

// EventResult reports how one event ended.
type EventResult struct {
	EventID string
	UserID  string
	Status  EventStatus
	// ErrorCode is CodeStoreFailure or CodeUnexpected for failed events.
	ErrorCode string
	// Reply is the text sent back, empty when nothing was sent.
	Reply   string
	Outcome *domain.RegistrationOutcome
	// Err is the failure that decided the status, if any.
	Err error
	// ReplyErr is set when delivering Reply failed.
	ReplyErr error
}

// WebhookService orchestrates validation, registration and replies.
type WebhookService struct {
	Messenger Messenger
	Registrar Registrar
	Validator *TemperatureValidator
	Composer  *ReplyComposer
	// Ledger is optional; without it redeliveries are processed again.
	Ledger EventLedger

	ProfileTimeout time.Duration
	ReplyTimeout   time.Duration

	// Now stamps readings; defaults to time.Now.
	Now func() time.Time
}

// NewWebhookService wires a WebhookService with default validation bounds.
func NewWebhookService(m Messenger, r Registrar, c *ReplyComposer) *WebhookService {
	return &WebhookService{
		Messenger: m,
		Registrar: r,
		Validator: NewTemperatureValidator(DefaultMinTemperature, DefaultMaxTemperature),
		Composer:  c,
		Now:       time.Now,
	}
}

// Process handles events in order and returns one result per event.
// executionID is surfaced to users in failure replies.
func (s *WebhookService) Process(ctx context.Context, executionID string, events []TextEvent) []EventResult {
	tr := otel.Tracer("services/WebhookService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("execution.id", executionID),
			attribute.Int("events", len(events)),
		),
	)
	defer span.End()

	out := make([]EventResult, 0, len(events))
	for _, ev := range events {
		res := s.handle(ctx, executionID, ev)
		webhookEvents.WithLabelValues(string(res.Status)).Inc()
		out = append(out, res)
	}
	return out
}

func (s *WebhookService) handle(ctx context.Context, executionID string, ev TextEvent) EventResult {
	lg := zerolog.Ctx(ctx).With().
		Str("execution_id", executionID).
		Str("event_id", ev.EventID).
		Str("user_id", ev.UserID).
		Logger()
	res := EventResult{EventID: ev.EventID, UserID: ev.UserID}

	if s.Ledger != nil && ev.EventID != "" {
		switch err := s.Ledger.Claim(ctx, ev.EventID); {
		case errors.Is(err, repo.ErrDuplicate):
			lg.Info().Bool("redelivery", ev.Redelivery).Msg("event already processed")
			res.Status = StatusSkipped
			return res
		case err != nil:
			lg.Warn().Err(err).Msg("event ledger unavailable")
		default:
			defer s.complete(ctx, lg, ev.EventID)
		}
	}

	name, err := s.displayName(ctx, ev.UserID)
	if err != nil {
		lg.Error().Err(err).Bytes("stack", debug.Stack()).Msg("profile lookup failed")
		return s.fail(ctx, lg, ev, res, CodeUnexpected, executionID, err)
	}

	value, err := s.Validator.ParseAndValidate(ev.Text)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return s.fail(ctx, lg, ev, res, CodeUnexpected, executionID, err)
		}
		lg.Info().Str("kind", verr.Kind.String()).Msg("reading rejected")
		res.Status = StatusRejected
		res.Err = err
		return s.reply(ctx, lg, ev, res, s.Composer.ComposeValidation(verr))
	}

	outcome, err := s.Registrar.Register(ctx, ev.UserID, name, value, s.now())
	if err != nil {
		var serr *repo.StoreError
		if errors.As(err, &serr) {
			lg.Error().Object("store_error", serr).Bytes("stack", debug.Stack()).Msg("store rejected reading")
			return s.fail(ctx, lg, ev, res, CodeStoreFailure, executionID, err)
		}
		lg.Error().Err(err).Bytes("stack", debug.Stack()).Msg("registration failed")
		return s.fail(ctx, lg, ev, res, CodeUnexpected, executionID, err)
	}

	res.Status = StatusRegistered
	res.Outcome = &outcome
	lg.Info().
		Bool("created", outcome.UserInsertion.Created).
		Bool("duplicates", outcome.TemperatureInsertion.Duplicates).
		Msg("reading registered")
	return s.reply(ctx, lg, ev, res, s.Composer.Compose(outcome))
}

func (s *WebhookService) fail(ctx context.Context, lg zerolog.Logger, ev TextEvent, res EventResult, code, executionID string, err error) EventResult {
	res.Status = StatusFailed
	res.ErrorCode = code
	res.Err = err
	return s.reply(ctx, lg, ev, res, s.Composer.ComposeError(s.Composer.Apology(), code, executionID))
}

func (s *WebhookService) reply(ctx context.Context, lg zerolog.Logger, ev TextEvent, res EventResult, text string) EventResult {
	if ev.ReplyToken == "" {
		return res
	}
	if s.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ReplyTimeout)
		defer cancel()
	}
	if err := s.Messenger.Reply(ctx, ev.ReplyToken, text); err != nil {
		lg.Error().Err(err).Msg("reply failed")
		res.ReplyErr = err
		return res
	}
	res.Reply = text
	return res
}

func (s *WebhookService) complete(ctx context.Context, lg zerolog.Logger, eventID string) {
	if err := s.Ledger.Complete(ctx, eventID); err != nil {
		lg.Warn().Err(err).Msg("event ledger completion failed")
	}
}

func (s *WebhookService) displayName(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	if s.ProfileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ProfileTimeout)
		defer cancel()
	}
	return s.Messenger.DisplayName(ctx, userID)
}

func (s *WebhookService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
