package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/send-tracker/internal/api"
	"github.com/ignite/send-tracker/internal/cache"
	"github.com/ignite/send-tracker/internal/config"
	"github.com/ignite/send-tracker/internal/pkg/logger"
	"github.com/ignite/send-tracker/internal/repository/postgres"
	"github.com/ignite/send-tracker/internal/service/tracking"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactEnabled())
	mainLog := logger.Named("server")

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	mainLog.Info("database connected")

	// Redis is optional. Without it every duplicate check goes straight
	// to Postgres, which is correct, just slower for hot senders.
	var redisClient *redis.Client
	var sentCache tracking.SentKeyCache
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			mainLog.Warn("redis connection failed, sent-key cache disabled",
				"addr", cfg.Redis.Addr, "error", err)
			redisClient.Close()
			redisClient = nil
		} else {
			sentCache = cache.NewSentSet(redisClient, cfg.Redis.TTL())
			mainLog.Info("redis connected, sent-key cache enabled",
				"addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL().String())
		}
	}

	repo := postgres.NewTrackingRepo(db, cfg.Database.QueryTimeout())
	svc := tracking.NewService(repo, sentCache)
	trackingAPI := api.NewTrackingAPI(svc)
	health := api.NewHealthChecker(db, redisClient)

	router := api.SetupRoutes(trackingAPI, health, cfg.Server.BasePath, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Database.QueryTimeout() + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		mainLog.Info("starting server", "addr", addr, "basePath", cfg.Server.BasePath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	mainLog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.Error("server shutdown error", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	mainLog.Info("server stopped")
}
