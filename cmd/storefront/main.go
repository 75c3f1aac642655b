package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/checkout"
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/guestcart"
	h "github.com/fjod/go_cart/internal/http"
	"github.com/fjod/go_cart/internal/publisher"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg := logger.New(cfg.LogLevel)
	if cfg.GuestCartSecret == config.DevGuestCartSecret {
		lg.Warn("using the development guest cart secret, set GUEST_CART_SECRET")
	}

	creds := &repository.Credentials{
		Driver:            cfg.DBDriver,
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		SQLitePath:        cfg.SQLitePath,
		MigrationsDirPath: cfg.MigrationsDir(),
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	lg.Info("database migrations completed", "driver", repo.Driver())

	ctx := context.Background()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	lg.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	codec, err := guestcart.NewCodec(cfg.GuestCartSecret, cfg.GuestCartTTL)
	if err != nil {
		log.Fatalf("Failed to create guest cart codec: %v", err)
	}

	store := cache.NewRedisCartStore(redisClient, cfg.CartTTL)
	cartService := cart.NewCartService(store, repo, codec, lg)
	checkoutService := checkout.NewCheckoutService(repo, store, checkout.Config{
		Freight:            cfg.Freight,
		ReserveMaxAttempts: cfg.ReserveMaxAttempts,
		ReserveMaxWait:     cfg.ReserveMaxWait,
	}, lg)

	// Outbox relay
	pollerCtx, stopPoller := context.WithCancel(ctx)
	var wg sync.WaitGroup
	var poller *publisher.OutboxPoller
	if len(cfg.KafkaBrokers) > 0 {
		poller = publisher.NewOutboxPoller(repo, cfg.OutboxTick, lg, cfg.KafkaTopic, cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(pollerCtx)
		}()
		lg.Info("outbox poller started", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		lg.Warn("no kafka brokers configured, order events stay in the outbox")
	}

	health := map[string]h.Pinger{"db": repo.Ping}
	health["redis"] = func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Health:             health,
	},
		h.NewCartHandler(cartService, cfg.RequestTimeout, codec.TTL()),
		h.NewOrdersHandler(checkoutService, cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("storefront starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
	}

	stopPoller()
	wg.Wait()
	if poller != nil {
		if err := poller.Close(); err != nil {
			lg.Error("failed to close kafka writer", "error", err)
		}
	}

	lg.Info("server exited")
}
