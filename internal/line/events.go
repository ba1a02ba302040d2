package line

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// ErrMalformedPayload is returned when a webhook body cannot be decoded.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// TextMessageEvent is a message event whose message is text.
type TextMessageEvent struct {
	EventID    string
	ReplyToken string
	UserID     string
	Text       string
	Timestamp  time.Time
	Redelivery bool
}

type webhookPayload struct {
	Destination string           `json:"destination"`
	Events      []*linebot.Event `json:"events"`
}

// ParseTextEvents decodes a webhook body and keeps text message events in
// delivery order. Other event and message types are dropped.
func ParseTextEvents(body []byte) ([]TextMessageEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := make([]TextMessageEvent, 0, len(p.Events))
	for _, ev := range p.Events {
		if ev == nil || ev.Type != linebot.EventTypeMessage {
			continue
		}
		msg, ok := ev.Message.(*linebot.TextMessage)
		if !ok {
			continue
		}
		te := TextMessageEvent{
			EventID:    ev.WebhookEventID,
			ReplyToken: ev.ReplyToken,
			Text:       msg.Text,
			Timestamp:  ev.Timestamp,
			Redelivery: ev.DeliveryContext.IsRedelivery,
		}
		if ev.Source != nil {
			te.UserID = ev.Source.UserID
		}
		out = append(out, te)
	}
	return out, nil
}
