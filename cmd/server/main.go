package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadmap/listing-ingest/internal/api"
	"github.com/leadmap/listing-ingest/internal/config"
	"github.com/leadmap/listing-ingest/internal/geocode"
	"github.com/leadmap/listing-ingest/internal/ingest"
	"github.com/leadmap/listing-ingest/internal/repository/postgres"
	"github.com/leadmap/listing-ingest/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash > 0 {
		return rest[:slash]
	}
	return rest
}

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	dbURL := cfg.Database.URL
	if !strings.Contains(dbURL, "connect_timeout") {
		sep := "?"
		if strings.Contains(dbURL, "?") {
			sep = "&"
		}
		dbURL += sep + "connect_timeout=5"
	}
	log.Printf("DB URL host portion: ...@%s/...", extractHost(dbURL))

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()
	log.Println("Connected to database")

	// Geocoder, with optional Redis cache in front
	var geocoder ingest.Geocoder
	var redisClient *redis.Client
	if cfg.Geocoding.Enabled && cfg.Geocoding.APIKey != "" {
		client := geocode.NewClient(geocode.Config{
			APIKey:  cfg.Geocoding.APIKey,
			BaseURL: cfg.Geocoding.BaseURL,
			Timeout: cfg.Geocoding.Timeout(),
		})
		geocoder = client

		if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				log.Printf("Warning: Redis connection failed (%s): %v — geocode cache disabled", cfg.Redis.Addr, err)
				redisClient.Close()
				redisClient = nil
			} else {
				geocoder = geocode.NewCache(client, redisClient, cfg.Geocoding.CacheTTL())
				log.Printf("Redis connected: %s (geocode cache enabled)", cfg.Redis.Addr)
			}
			pingCancel()
		}
	} else {
		log.Println("Geocoding disabled (no API key configured) — records import without enrichment")
	}

	// Repository and pipeline
	repo := postgres.NewListingRepo(db)
	pipeline := ingest.New(repo, geocoder, ingest.Options{
		GeocodeBatchSize: cfg.Geocoding.BatchSize,
		WriteChunkSize:   cfg.Import.WriteChunkSize,
		ErrorSampleSize:  cfg.Import.ErrorSampleSize,
		MaxRows:          cfg.Import.MaxRows,
		DefaultSourceTag: cfg.Import.DefaultSourceTag,
	})

	// Optional S3 drop-bucket imports
	var fetcher api.ObjectFetcher
	var healthS3 *api.HealthChecker
	if cfg.S3Import.Enabled && cfg.S3Import.Bucket != "" {
		s3Fetcher, err := storage.NewS3Fetcher(ctx, cfg.S3Import.Region, cfg.S3Import.AWSProfile, cfg.S3Import.Bucket)
		if err != nil {
			log.Printf("Warning: S3 import disabled: %v", err)
		} else {
			fetcher = s3Fetcher
			healthS3 = api.NewHealthChecker(db, redisClient, s3Fetcher.Client(), cfg.S3Import.Bucket)
			log.Printf("S3 import enabled: bucket=%s region=%s", cfg.S3Import.Bucket, cfg.S3Import.Region)
		}
	}
	if healthS3 == nil {
		healthS3 = api.NewHealthChecker(db, redisClient, nil, "")
	}

	handlers := api.NewImportHandlers(pipeline, repo, fetcher)
	server := api.NewServer(cfg.Server, handlers, healthS3)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Server stopped")
}
