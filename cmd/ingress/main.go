package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hotelly/hotelly/internal/authz"
	"github.com/hotelly/hotelly/internal/availability"
	"github.com/hotelly/hotelly/internal/config"
	"github.com/hotelly/hotelly/internal/httpapi"
	"github.com/hotelly/hotelly/internal/identity"
	"github.com/hotelly/hotelly/internal/idempotency"
	"github.com/hotelly/hotelly/internal/intent"
	"github.com/hotelly/hotelly/internal/inventory"
	"github.com/hotelly/hotelly/internal/logger"
	"github.com/hotelly/hotelly/internal/observability"
	"github.com/hotelly/hotelly/internal/payment"
	"github.com/hotelly/hotelly/internal/quote"
	"github.com/hotelly/hotelly/internal/redisclient"
	"github.com/hotelly/hotelly/internal/reservation"
	"github.com/hotelly/hotelly/internal/store"
	"github.com/hotelly/hotelly/internal/tasks"
	"github.com/hotelly/hotelly/internal/whatsapp"
)

func main() {
	cfg := config.Load()
	log := logger.WithRole(logger.New(cfg), "ingress")

	log.Info().Str("env", cfg.Env).Msg("hotelly ingress starting")

	ctx := context.Background()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Pool.Close()

	var rc *redisclient.Client
	if c, err := redisclient.New(cfg); err != nil {
		log.Warn().Err(err).Msg("redis init failed — continuing without the outbox-lease cache fast path")
	} else if err := c.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis ping failed — continuing without the outbox-lease cache fast path")
	} else {
		rc = c
		log.Info().Msg("redis connected")
	}

	vaultKey, err := cfg.VaultKey()
	if err != nil {
		log.Fatal().Err(err).Msg("vault key not configured")
	}
	vault, err := identity.NewVault(db.Pool, vaultKey)
	if err != nil {
		log.Fatal().Err(err).Msg("vault init failed")
	}

	payments := registerPaymentProviders(cfg, log)
	whatsappProviders := registerWhatsAppProviders(cfg, log)

	authzStore := authz.New(db.Pool)
	authzMW := authz.NewMiddleware(ctx, cfg.OIDCIssuer, cfg.OIDCJWKSURL, cfg.DashboardAudience, authzStore)

	signingKey, err := cfg.TaskSigningKey()
	if err != nil {
		log.Fatal().Err(err).Msg("task signing key not configured")
	}
	minter := tasks.NewMinter(cfg.OIDCIssuer, cfg.TaskSigningKeyID, signingKey)
	taskClient := tasks.NewClient(cfg.TaskQueueBaseURL, minter)

	deps := &httpapi.Deps{
		Cfg:          cfg,
		Logger:       log,
		Store:        db,
		Reservations: reservation.New(db),
		Inventory:    inventory.New(db),
		Availability: availability.New(db),
		Quote:        quote.New(db),
		Payments:     payments,
		Idempotency:  idempotency.New(db.Pool),
		Vault:        vault,
		WhatsApp:     whatsappProviders,
		SendResponse: whatsapp.NewHandler(db.Pool, vault, whatsappProviders, rc),
		Classifier:   intent.NewBridge(cfg.ClassifierBaseURL, cfg.ClassifierAPIKey),
		AuthzStore:   authzStore,
		AuthzMW:      authzMW,
		TaskClient:   taskClient,
		Metrics:      observability.NewMetrics(),
	}

	r := httpapi.NewIngressRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.DefaultTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("ingress listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("ingress stopped gracefully")
	}
}

func registerPaymentProviders(cfg *config.Config, log zerolog.Logger) *payment.Registry {
	registry := payment.NewRegistry()
	if cfg.StripeAPIKey != "" {
		registry.Register("stripe", payment.NewStripeProvider(cfg.StripeAPIKey, cfg.StripeWebhookSecret))
		log.Info().Msg("registered stripe payment provider")
	}
	return registry
}

func registerWhatsAppProviders(cfg *config.Config, log zerolog.Logger) *whatsapp.Registry {
	registry := whatsapp.NewRegistry()
	if cfg.WhatsAppBaseURL == "" {
		return registry
	}
	switch cfg.WhatsAppProvider {
	case "meta":
		registry.Register(whatsapp.NewMetaProvider(cfg.WhatsAppBaseURL, cfg.WhatsAppInstance, cfg.WhatsAppAPIKey))
		log.Info().Msg("registered meta whatsapp provider")
	case "evolution":
		registry.Register(whatsapp.NewEvolutionProvider(cfg.WhatsAppBaseURL, cfg.WhatsAppInstance, cfg.WhatsAppAPIKey))
		log.Info().Msg("registered evolution whatsapp provider")
	}
	return registry
}
