package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MeBadDev/GDWeb/internal/adapters/docstore"
	router "github.com/MeBadDev/GDWeb/internal/adapters/http"
	"github.com/MeBadDev/GDWeb/internal/adapters/redis"
	wsignal "github.com/MeBadDev/GDWeb/internal/adapters/signal"
	"github.com/MeBadDev/GDWeb/internal/adapters/storage"
	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/config"
	"github.com/MeBadDev/GDWeb/internal/identity"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	content, err := storage.NewOS(cfg.StorageDir)
	if err != nil {
		log.Fatal().Err(err).Msg("content store")
	}

	var (
		docs app.DocStore
		bus  *redis.Bus
	)
	if cfg.Metadata.Backend == "redis" || cfg.Relay.Bus {
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer client.Close()
		if cfg.Metadata.Backend == "redis" {
			docs = redis.NewDocStore(client)
		}
		if cfg.Relay.Bus {
			bus = redis.NewBus(client)
		}
	}
	switch cfg.Metadata.Backend {
	case "memory":
		docs = docstore.NewMemory()
	case "none":
		docs = docstore.None{}
	}

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		log.Warn().Str("module", "main").Msg("auth.token_secret is empty; identity endpoints disabled")
	}
	auth := identity.NewService(docs, secret, cfg.Auth.TokenTTL)

	policy, err := app.PolicyByName(cfg.Relay.SlowPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("relay policy")
	}
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	opts := app.RelayOptions{
		MaxRoomSize:  cfg.Relay.MaxRoomSize,
		Policy:       policy,
		RateLimit:    cfg.Relay.RateLimit,
		RateInterval: cfg.Relay.RateInterval,
		ValidateSDP:  cfg.Signaling.ValidateSDP,
		InstanceID:   instanceID,
	}
	if bus != nil {
		opts.Bus = bus
	}
	relay := app.NewRelay(opts)

	if bus != nil {
		sub, err := bus.Subscribe(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("relay bus")
		}
		go sub.Run(ctx, relay.Deliver)
		log.Info().Str("module", "main").Str("instance", instanceID).Msg("relay bus subscribed")
	}

	previews := app.NewPreviews(content, cfg.Preview.TTL, cfg.Preview.SweepInterval)
	go previews.Run(ctx)

	ctl := wsignal.NewSignalWSController(relay, auth, wsignal.Options{
		SendBuffer:  cfg.Relay.SendBuffer,
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
		RequireAuth: cfg.Relay.RequireAuth,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Relay:    relay,
		Signal:   ctl,
		Auth:     auth,
		Games:    app.NewGames(content, docs),
		Previews: previews,
		Reports:  app.NewReports(),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("GDWeb server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
