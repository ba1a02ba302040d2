// Package httpapi wires the Gin transport to the intake services: the LINE
// webhook, the dashboard read API, health, metrics and optional Swagger UI.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/bodytemp-bot/docs"
	"github.com/tbourn/bodytemp-bot/internal/config"
	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/http/handlers"
	"github.com/tbourn/bodytemp-bot/internal/http/middleware"
	"github.com/tbourn/bodytemp-bot/internal/repo"
	"github.com/tbourn/bodytemp-bot/internal/services"
)

// storeShim adapts the repo free functions to the services' repository
// interfaces.
type storeShim struct{}

func (storeShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (storeShim) CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return repo.CreateUser(ctx, db, u)
}

func (storeShim) CreateTemperature(ctx context.Context, db *gorm.DB, t *domain.Temperature) error {
	return repo.CreateTemperature(ctx, db, t)
}

func (storeShim) CountTemperaturesBetween(ctx context.Context, db *gorm.DB, userID, start, end string) (int64, error) {
	return repo.CountTemperaturesBetween(ctx, db, userID, start, end)
}

func (storeShim) FindUserByAnonymizedName(ctx context.Context, db *gorm.DB, anon string) (*domain.User, error) {
	return repo.FindUserByAnonymizedName(ctx, db, anon)
}

func (storeShim) CountTemperaturesByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountTemperaturesByUser(ctx, db, userID)
}

func (storeShim) ListTemperaturesByUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Temperature, error) {
	return repo.ListTemperaturesByUser(ctx, db, userID, offset, limit)
}

func (storeShim) TemperatureStats(ctx context.Context, db *gorm.DB, userID string) (int64, string, error) {
	return repo.TemperatureStats(ctx, db, userID)
}

func (storeShim) ClaimEvent(ctx context.Context, db *gorm.DB, eventID string, now time.Time, lease time.Duration) error {
	return repo.ClaimEvent(ctx, db, eventID, now, lease)
}

func (storeShim) CompleteEvent(ctx context.Context, db *gorm.DB, eventID string, expiresAt time.Time) error {
	return repo.CompleteEvent(ctx, db, eventID, expiresAt)
}

func (storeShim) PurgeExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return repo.PurgeExpiredEvents(ctx, db, now)
}

// NewEventLedger returns the database-backed event ledger, or nil when
// EVENT_DEDUP_TTL is zero.
func NewEventLedger(db *gorm.DB, cfg config.Config) *services.EventLedgerService {
	if cfg.Events.DedupTTL <= 0 {
		return nil
	}
	l := services.NewEventLedgerService(db, storeShim{})
	l.TTL = cfg.Events.DedupTTL
	l.Lease = cfg.Events.ClaimLease
	return l
}

// NewWebhookService builds the webhook orchestrator from configuration.
func NewWebhookService(db *gorm.DB, messenger services.Messenger, cfg config.Config) *services.WebhookService {
	reg := services.NewRegistrationService(db, storeShim{})
	reg.Location = cfg.Intake.Location
	reg.Timeout = cfg.Intake.StoreTimeout
	reg.Project = cfg.Store.Project

	composer := services.NewReplyComposer(cfg.Intake.ReplyLocale, cfg.Intake.DashboardBaseURL)

	svc := services.NewWebhookService(messenger, reg, composer)
	svc.Validator = services.NewTemperatureValidator(cfg.Intake.MinTemperature, cfg.Intake.MaxTemperature)
	svc.ProfileTimeout = cfg.Intake.ProfileTimeout
	svc.ReplyTimeout = cfg.Intake.ReplyTimeout
	if l := NewEventLedger(db, cfg); l != nil {
		svc.Ledger = l
	}
	return svc
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Security headers
//
// CORS, gzip, cache headers and the rate limiter apply to the dashboard group
// only. The webhook is not rate limited: LINE delivers from a small pool of
// addresses and a 429 would only trigger redeliveries.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, messenger services.Messenger, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.Title = cfg.OTEL.ServiceName
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(
		cfg.LINE.ChannelSecret,
		NewWebhookService(db, messenger, cfg),
		services.NewDashboardService(db, storeShim{}),
	)

	r.POST(cfg.LINE.WebhookPath, h.Callback)

	dash := groupWithPrefix(r, cfg.APIBasePath).Group("/dashboard")
	dash.Use(dashboardCORS(cfg.CORS))
	dash.Use(gzip.Gzip(gzip.DefaultCompression))
	dash.Use(middleware.SecurityHeaders(middleware.SecurityOptions{CacheControl: "private, no-cache"}))
	dash.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByParamOrIP("anon")).Handler())
	{
		dash.GET("/:anon/readings", h.ListReadings)
		dash.GET("/:anon/readings.xlsx", h.ExportReadings)

		// Preflights are answered by the CORS middleware before these run.
		dash.OPTIONS("/:anon/readings", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		dash.OPTIONS("/:anon/readings.xlsx", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
}

// dashboardCORS allows any origin when none are configured, otherwise only
// the configured ones. Credentials are never allowed.
func dashboardCORS(cc config.CORSConfig) gin.HandlerFunc {
	cc2 := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Accept", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cc.AllowedOrigins) == 0 {
		cc2.AllowAllOrigins = true
	} else {
		cc2.AllowOrigins = cc.AllowedOrigins
	}
	return cors.New(cc2)
}

// limitBody caps request bodies at maxBytes; later reads fail with
// *http.MaxBytesError. A non-positive cap disables the limit.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
