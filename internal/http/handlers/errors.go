// Package handlers defines HTTP-layer error codes used across all endpoints.
//
// These codes give clients a stable, machine-readable error taxonomy next to
// the human-readable message. They are unrelated to the E001/E002 codes that
// end up in LINE replies; those never surface over HTTP.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "bad_request",
//	  "message": "malformed webhook payload"
//	}
package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeNotFound        = "not_found"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"
	ErrCodePayloadTooLarge = "payload_too_large"

	// Domain-specific:
	ErrCodeListFailed       = "list_failed"
	ErrCodeExportFailed     = "export_failed"
	ErrCodeAmbiguous        = "ambiguous_dashboard"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
