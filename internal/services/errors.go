// Package services holds the intake logic of the bot: validating readings,
// registering them, composing replies and orchestrating webhook events.
// This file centralizes the service-level error values and reply codes.
//
// Translating these into HTTP statuses is left to the handler layer.
package services

import "errors"

var (
	// ErrDashboardNotFound indicates that no user carries the requested
	// anonymized name.
	ErrDashboardNotFound = errors.New("dashboard not found")

	// ErrDashboardAmbiguous indicates that several senders share the
	// requested anonymized name, so no single dashboard can be shown.
	ErrDashboardAmbiguous = errors.New("dashboard is ambiguous")

	// ErrEmptyUserID is returned when an event carries no platform user id.
	ErrEmptyUserID = errors.New("user id is empty")
)

// Error codes appended to apology replies.
const (
	// CodeStoreFailure marks a reading the store refused to persist.
	CodeStoreFailure = "E001"
	// CodeUnexpected marks every other failure.
	CodeUnexpected = "E002"
)
