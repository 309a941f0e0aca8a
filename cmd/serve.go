package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecoleta/cache"
	"ecoleta/events"
	"ecoleta/handlers"
	"ecoleta/services"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	logger := slog.Default()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	// Redis is optional: without it there is no shared cache and nearby
	// searches use the in-process R-tree.
	var (
		redisClient *redis.Client
		geo         cache.GeoIndex
	)
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		redisGeo := cache.NewRedisGeoIndex(redisClient)
		if err := redisGeo.Reset(ctx); err != nil {
			return err
		}
		geo = redisGeo
		logger.Info("connected to Redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	} else {
		geo = cache.NewTreeGeoIndex()
	}
	pointCache := cache.New(redisClient)

	var publisher events.Publisher = events.Nop{}
	if cfg.MQTTBroker != "" {
		mqttPub, err := events.DialMQTT(cfg.MQTTBroker, cfg.MQTTTopic)
		if err != nil {
			return err
		}
		publisher = mqttPub
	}
	defer publisher.Close()

	itemService := services.NewItemService(store, pointCache, cfg.PublicURL)
	catalog, err := services.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}
	if err := itemService.Seed(ctx, catalog); err != nil {
		return err
	}
	logger.Info("item catalog seeded", "items", len(catalog))

	pointService := services.NewPointService(store, pointCache, geo, publisher, cfg.PublicURL)
	if err := pointService.LoadGeoIndex(ctx); err != nil {
		return err
	}

	router := handlers.NewRouter(
		handlers.NewItemHandler(itemService),
		handlers.NewPointHandler(pointService),
		handlers.NewHealthHandler(store, redisClient),
		handlers.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			JWTSecret:      cfg.JWTSecret,
			UploadsDir:     cfg.UploadsDir,
			Logger:         logger,
		},
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
