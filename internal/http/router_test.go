package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/internal/config"
	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/repo"
	"github.com/tbourn/bodytemp-bot/internal/services"
)

const routerSecret = "router-secret"

type recordingMessenger struct {
	mu      sync.Mutex
	names   map[string]string
	replies map[string]string
}

func (m *recordingMessenger) DisplayName(_ context.Context, userID string) (string, error) {
	if n, ok := m.names[userID]; ok {
		return n, nil
	}
	return "", fmt.Errorf("profile %s: not found", userID)
}

func (m *recordingMessenger) Reply(_ context.Context, token, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[token] = text
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repo.Open(repo.Options{Driver: repo.DriverSQLite, DSN: dsn, Dataset: repo.DefaultDataset, Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:  "/api/v1",
		MaxBodyBytes: 1 << 20,
		RateRPS:      100,
		RateBurst:    10,
		LINE:         config.LINEConfig{ChannelSecret: routerSecret, WebhookPath: "/callback"},
		Intake: config.IntakeConfig{
			DashboardBaseURL: "https://dash.example/d",
			MinTemperature:   35,
			MaxTemperature:   42,
			Location:         time.UTC,
			ReplyLocale:      language.English,
		},
		Events: config.EventsConfig{DedupTTL: time.Hour},
		OTEL:   config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *recordingMessenger, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	m := &recordingMessenger{names: map[string]string{"U1": "Taro"}, replies: map[string]string{}}
	RegisterRoutes(r, db, m, cfg)
	return r, m, db
}

func signedCallback(body string) *http.Request {
	mac := hmac.New(sha256.New, []byte(routerSecret))
	mac.Write([]byte(body))
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Line-Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return req
}

func textEvent(eventID, token, userID, text string) string {
	return fmt.Sprintf(`{"type":"message","mode":"active","timestamp":1714550400000,`+
		`"webhookEventId":%q,"deliveryContext":{"isRedelivery":false},"replyToken":%q,`+
		`"source":{"type":"user","userId":%q},"message":{"type":"text","id":"1","text":%q}}`,
		eventID, token, userID, text)
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r, _, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("GET /health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("global middleware missing: %#v", w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bodytemp_http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /callback expected 405, got %d", w.Code)
	}
}

func TestWebhook_EndToEnd_RegistersAndServesDashboard(t *testing.T) {
	r, m, db := newTestRouter(t, testConfig())

	body := `{"destination":"U","events":[` +
		textEvent("ev-1", "rt-1", "U1", "36.5") + `,` +
		textEvent("ev-2", "rt-2", "U1", "50") + `,` +
		textEvent("ev-3", "rt-3", "U9", "36.6") + `]}`
	req := signedCallback(body)
	req.Header.Set("X-Request-ID", "exec-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("callback = %d %s", w.Code, w.Body.String())
	}
	var ack map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &ack)
	if ack["message"] != "ok" || ack["received"] != float64(3) || ack["failed"] != float64(1) {
		t.Fatalf("ack=%v", ack)
	}

	anon := services.Anonymize("Taro")
	if got := m.replies["rt-1"]; !strings.Contains(got, "Hello, Taro.") || !strings.Contains(got, "https://dash.example/d/"+anon) {
		t.Fatalf("first reply = %q", got)
	}
	if got := m.replies["rt-2"]; !strings.Contains(got, "too high") {
		t.Fatalf("validation reply = %q", got)
	}
	if got := m.replies["rt-3"]; !strings.Contains(got, "E002") || !strings.Contains(got, "exec-42") {
		t.Fatalf("failure reply = %q", got)
	}

	var n int64
	if err := db.Model(&domain.Temperature{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("temperatures=%d err=%v", n, err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/"+anon+"/readings", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard = %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"temperature":36.5`) || strings.Contains(w.Body.String(), "Taro") {
		t.Fatalf("dashboard body = %s", w.Body.String())
	}
	if w.Header().Get("Cache-Control") != "private, no-cache" || w.Header().Get("ETag") == "" {
		t.Fatalf("dashboard headers = %#v", w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/unknown/readings", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown dashboard = %d", w.Code)
	}
}

func TestWebhook_RedeliveryIsSkipped(t *testing.T) {
	r, m, db := newTestRouter(t, testConfig())
	body := `{"destination":"U","events":[` + textEvent("ev-dup", "rt-a", "U1", "36.5") + `]}`

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, signedCallback(body))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d = %d", i, w.Code)
		}
		if i == 1 && !strings.Contains(w.Body.String(), `"skipped":1`) {
			t.Fatalf("second delivery not skipped: %s", w.Body.String())
		}
	}
	var n int64
	db.Model(&domain.Temperature{}).Count(&n)
	if n != 1 {
		t.Fatalf("temperatures=%d want 1", n)
	}
	if len(m.replies) != 1 {
		t.Fatalf("replies=%v", m.replies)
	}
}

func TestWebhook_SignatureRejected_NoSideEffects(t *testing.T) {
	r, m, db := newTestRouter(t, testConfig())
	body := `{"destination":"U","events":[` + textEvent("ev-1", "rt-1", "U1", "36.5") + `]}`

	// Signed for a different payload.
	tampered := signedCallback(strings.Replace(body, "36.5", "36.6", 1)).Header.Get("X-Line-Signature")

	for name, sig := range map[string]string{
		"missing":  "",
		"garbage":  "bm9wZQ==",
		"tampered": tampered,
	} {
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Line-Signature", sig)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status=%d", name, w.Code)
		}
	}

	var users, temps, events int64
	db.Model(&domain.User{}).Count(&users)
	db.Model(&domain.Temperature{}).Count(&temps)
	db.Model(&domain.ProcessedEvent{}).Count(&events)
	if users != 0 || temps != 0 || events != 0 {
		t.Fatalf("rows written: users=%d temperatures=%d events=%d", users, temps, events)
	}
	if len(m.replies) != 0 {
		t.Fatalf("no replies expected, got %v", m.replies)
	}

	// The same body with a valid signature is accepted.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedCallback(body))
	if w.Code != http.StatusOK || len(m.replies) != 1 {
		t.Fatalf("valid signature: status=%d replies=%v", w.Code, m.replies)
	}
}

func TestDashboard_CORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://dash.example"}}
	r, _, _ := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard/x/readings", nil)
	req.Header.Set("Origin", "http://dash.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.example" {
		t.Fatalf("ACAO=%q status=%d", got, w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dash.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("CORS must not apply outside the dashboard, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRegisterRoutes_SwaggerWhenEnabled(t *testing.T) {
	cfg := testConfig()
	r, _, _ := newTestRouter(t, cfg)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}

	cfg.SwaggerEnabled = true
	r, _, _ = newTestRouter(t, cfg)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "lineCallback") {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
}
