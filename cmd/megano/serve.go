package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vasiliy-maslov/megano/internal/auth"
	"github.com/vasiliy-maslov/megano/internal/basket"
	"github.com/vasiliy-maslov/megano/internal/catalog"
	"github.com/vasiliy-maslov/megano/internal/config"
	"github.com/vasiliy-maslov/megano/internal/db"
	megahttp "github.com/vasiliy-maslov/megano/internal/handler/http"
	"github.com/vasiliy-maslov/megano/internal/order"
	"github.com/vasiliy-maslov/megano/internal/profile"
	"github.com/vasiliy-maslov/megano/internal/session"
	"github.com/vasiliy-maslov/megano/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, envPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogger(cfg)
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("env", cfg.App.Env).Msg("Megano starting...")

	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	disk, err := storage.New(ctx, storage.Config{
		Driver:    cfg.Storage.Disk,
		LocalRoot: cfg.Storage.LocalRoot,
		LocalURL:  strings.TrimSuffix(cfg.App.PublicURL, "/") + cfg.Storage.URL,
		S3: storage.S3Config{
			Bucket:   cfg.Storage.S3.Bucket,
			Region:   cfg.Storage.S3.Region,
			Key:      cfg.Storage.S3.Key,
			Secret:   cfg.Storage.S3.Secret,
			Endpoint: cfg.Storage.S3.Endpoint,
			URL:      cfg.Storage.S3.URL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	tokens := auth.NewTokens(cfg.JWTSecret)

	catalogSvc := catalog.NewService(catalog.NewRepository(pg.Pool))
	basketSvc := basket.NewService(catalogSvc)
	orderSvc := order.NewService(order.NewRepository(pg.Pool), catalogSvc, order.SimulatedValidator{})
	profileSvc := profile.NewService(profile.NewRepository(pg.Pool), disk)

	routerCfg := megahttp.RouterConfig{
		Sessions: sessions,
		SessionOptions: session.Options{
			CookieName: cfg.Session.Cookie,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
			Path:       "/",
		},
	}
	if cfg.Storage.Disk == "local" {
		routerCfg.MediaRoot = cfg.Storage.LocalRoot
		routerCfg.MediaURL = cfg.Storage.URL
	}

	router := megahttp.NewRouter(routerCfg,
		megahttp.NewBasketHandler(basketSvc),
		megahttp.NewCatalogHandler(catalogSvc, profileSvc, tokens),
		megahttp.NewOrderHandler(orderSvc, tokens),
		megahttp.NewProfileHandler(profileSvc, tokens),
	)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", cfg.App.Port, err)
		}
	case <-stopCh:
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info().Msg("Megano stopped gracefully.")
	return nil
}

// newSessionStore returns the configured session store and a func that
// releases it.
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.Session.Driver == "memory" {
		log.Warn().Msg("Using in-memory sessions; baskets are lost on restart")
		return session.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	return session.NewRedisStore(client), func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis client")
		}
	}, nil
}
