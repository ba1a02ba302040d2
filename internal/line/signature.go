// Package line adapts the LINE Messaging API to the intake bot: webhook
// signature verification, decoding of webhook payloads into text events, and
// a client for profile lookups and replies.
package line

import (
	"errors"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// HeaderSignature carries the base64 HMAC-SHA256 of the raw request body.
const HeaderSignature = "X-Line-Signature"

var (
	// ErrMissingSignature is returned when the signature header is absent.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrInvalidSignature is returned when the signature does not match the body.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// VerifySignature checks signature against body using the channel secret.
// An empty secret never verifies.
func VerifySignature(channelSecret, signature string, body []byte) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	if channelSecret == "" || !webhook.ValidateSignature(channelSecret, signature, body) {
		return ErrInvalidSignature
	}
	return nil
}
