package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/bodytemp-bot/internal/http/middleware"
	"github.com/tbourn/bodytemp-bot/internal/line"
	"github.com/tbourn/bodytemp-bot/internal/services"
	"github.com/tbourn/bodytemp-bot/internal/sysutil"
)

// WebhookAck is the acknowledgment returned for every verified delivery.
// Per-event failures are reported to the sender over LINE, not here.
type WebhookAck struct {
	Message   string `json:"message"   example:"ok"`
	Received  int    `json:"received"  example:"2"`
	Processed int    `json:"processed" example:"1"`
	Failed    int    `json:"failed"    example:"1"`
	Skipped   int    `json:"skipped"   example:"0"`
}

// Callback godoc
// @ID          lineCallback
// @Summary     LINE webhook
// @Description Verifies the X-Line-Signature of the raw body, then registers
// @Description each text message as a body-temperature reading and replies
// @Description to the sender. Non-text events are ignored.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       X-Line-Signature  header  string  true  "Base64 HMAC-SHA256 of the body"
// @Param       body              body    object  true  "LINE webhook payload"
//
// @Success     200  {object} handlers.WebhookAck
// @Failure     400  {object} handlers.ErrorResponse "Malformed payload"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid signature"
// @Failure     413  {object} handlers.ErrorResponse "Body too large"
// @Router      /callback [post]
func (h *Handlers) Callback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read body")
		return
	}

	if err := line.VerifySignature(h.channelSecret, c.GetHeader(line.HeaderSignature), body); err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
		return
	}

	parsed, err := line.ParseTextEvents(body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, line.ErrMalformedPayload.Error())
		return
	}

	events := make([]services.TextEvent, 0, len(parsed))
	for _, ev := range parsed {
		events = append(events, services.TextEvent{
			EventID:    ev.EventID,
			ReplyToken: ev.ReplyToken,
			UserID:     ev.UserID,
			Text:       ev.Text,
			Redelivery: ev.Redelivery,
		})
	}

	lg := middleware.LoggerFrom(c)
	ctx := lg.WithContext(c.Request.Context())
	execID := sysutil.FirstNonEmpty(c.Writer.Header().Get("X-Request-ID"), uuid.NewString())

	ack := WebhookAck{Message: "ok", Received: len(events)}
	for _, res := range h.webhook.Process(ctx, execID, events) {
		switch res.Status {
		case services.StatusFailed:
			ack.Failed++
		case services.StatusSkipped:
			ack.Skipped++
		default:
			ack.Processed++
		}
	}
	ok(c, http.StatusOK, ack)
}
