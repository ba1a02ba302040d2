// Command bodytemp runs the body-temperature intake bot.
//
//	bodytemp serve     # HTTP server (default)
//	bodytemp migrate   # create or update the schema and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/bodytemp-bot/internal/config"
	httpapi "github.com/tbourn/bodytemp-bot/internal/http"
	"github.com/tbourn/bodytemp-bot/internal/jobs"
	"github.com/tbourn/bodytemp-bot/internal/line"
	"github.com/tbourn/bodytemp-bot/internal/observability"
	"github.com/tbourn/bodytemp-bot/internal/repo"
	"github.com/tbourn/bodytemp-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "bodytemp",
		Short:         "LINE bot that records body-temperature readings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and dashboard HTTP server",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema and exit",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runMigrate() },
	}
	root.AddCommand(serve, migrate)
	root.RunE = serve.RunE
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, os.Stdout)
	return cfg, nil
}

func runMigrate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := repo.Open(repo.Options{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN, Dataset: cfg.Store.Dataset})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close(db)

	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Str("dataset", cfg.Store.Dataset).Msg("schema up to date")
	return nil
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.LINE.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.ServiceInfo{
		Version:      version,
		StoreDriver:  cfg.Store.Driver,
		StoreProject: cfg.Store.Project,
		StoreDataset: cfg.Store.Dataset,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:  cfg.Store.Driver,
		DSN:     cfg.Store.DSN,
		Dataset: cfg.Store.Dataset,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close(db)
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	client, err := line.NewClient(line.ClientOptions{
		ChannelSecret:      cfg.LINE.ChannelSecret,
		ChannelAccessToken: cfg.LINE.ChannelAccessToken,
		EndpointBase:       cfg.LINE.APIEndpoint,
	})
	if err != nil {
		return fmt.Errorf("line client: %w", err)
	}

	if ledger := httpapi.NewEventLedger(db, cfg); ledger != nil {
		janitor, err := jobs.NewJanitor(ledger, cfg.Events.PurgeInterval, log.Logger)
		if err != nil {
			return err
		}
		janitor.Start()
		defer janitor.Stop()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, client, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("webhook_path", cfg.LINE.WebhookPath).
			Str("version", version).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
