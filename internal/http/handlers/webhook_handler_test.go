package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bodytemp-bot/internal/services"
)

const testSecret = "channel-secret"

const twoTextEvents = `{
  "destination": "Uxxxxxxxx",
  "events": [
    {
      "type": "message", "mode": "active", "timestamp": 1714550400000,
      "webhookEventId": "ev-1", "deliveryContext": {"isRedelivery": false},
      "replyToken": "rt-1", "source": {"type": "user", "userId": "U1"},
      "message": {"type": "text", "id": "1", "text": "36.5"}
    },
    {
      "type": "follow", "mode": "active", "timestamp": 1714550400001,
      "webhookEventId": "ev-2", "deliveryContext": {"isRedelivery": false},
      "replyToken": "rt-2", "source": {"type": "user", "userId": "U2"}
    },
    {
      "type": "message", "mode": "active", "timestamp": 1714550400002,
      "webhookEventId": "ev-3", "deliveryContext": {"isRedelivery": true},
      "replyToken": "rt-3", "source": {"type": "user", "userId": "U3"},
      "message": {"type": "text", "id": "3", "text": "hot"}
    }
  ]
}`

func sign(secret, body string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(m.Sum(nil))
}

type fakeProcessor struct {
	calls   int
	execID  string
	events  []services.TextEvent
	results []services.EventResult
}

func (f *fakeProcessor) Process(ctx context.Context, executionID string, events []services.TextEvent) []services.EventResult {
	f.calls++
	f.execID = executionID
	f.events = events
	return f.results
}

func newWebhookRouter(p WebhookProcessor, maxBody int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-webhook")
		if maxBody > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		}
		c.Next()
	})
	h := New(testSecret, p, nil)
	r.POST("/callback", h.Callback)
	return r
}

func postCallback(r http.Handler, body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("X-Line-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCallback_MissingSignature_401(t *testing.T) {
	p := &fakeProcessor{}
	w := postCallback(newWebhookRouter(p, 0), twoTextEvents, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if p.calls != 0 {
		t.Fatalf("processor must not run")
	}
}

func TestCallback_BadSignature_401(t *testing.T) {
	p := &fakeProcessor{}
	w := postCallback(newWebhookRouter(p, 0), twoTextEvents, sign("other-secret", twoTextEvents))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Code != ErrCodeUnauthorized || er.RequestID != "rid-webhook" {
		t.Fatalf("unexpected body %+v", er)
	}
	if p.calls != 0 {
		t.Fatalf("processor must not run")
	}
}

func TestCallback_Malformed_400(t *testing.T) {
	p := &fakeProcessor{}
	body := `{"events": "nope"}`
	w := postCallback(newWebhookRouter(p, 0), body, sign(testSecret, body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if p.calls != 0 {
		t.Fatalf("processor must not run")
	}
}

func TestCallback_TooLarge_413(t *testing.T) {
	p := &fakeProcessor{}
	w := postCallback(newWebhookRouter(p, 16), twoTextEvents, sign(testSecret, twoTextEvents))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCallback_ProcessesTextEventsAndAcks(t *testing.T) {
	p := &fakeProcessor{results: []services.EventResult{
		{EventID: "ev-1", Status: services.StatusRegistered},
		{EventID: "ev-3", Status: services.StatusFailed, ErrorCode: services.CodeUnexpected},
	}}
	w := postCallback(newWebhookRouter(p, 0), twoTextEvents, sign(testSecret, twoTextEvents))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	if p.execID != "rid-webhook" {
		t.Fatalf("execution id = %q", p.execID)
	}
	if len(p.events) != 2 {
		t.Fatalf("expected 2 text events, got %+v", p.events)
	}
	if p.events[0].UserID != "U1" || p.events[0].Text != "36.5" || p.events[0].ReplyToken != "rt-1" {
		t.Fatalf("unexpected first event %+v", p.events[0])
	}
	if !p.events[1].Redelivery || p.events[1].EventID != "ev-3" {
		t.Fatalf("unexpected second event %+v", p.events[1])
	}

	var ack WebhookAck
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("json: %v", err)
	}
	want := WebhookAck{Message: "ok", Received: 2, Processed: 1, Failed: 1}
	if ack != want {
		t.Fatalf("ack=%+v want %+v", ack, want)
	}
}

func TestCallback_EmptyBatch(t *testing.T) {
	p := &fakeProcessor{}
	body := `{"destination":"U","events":[]}`
	w := postCallback(newWebhookRouter(p, 0), body, sign(testSecret, body))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"received":0`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}
