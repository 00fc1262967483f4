// Copyright (c) 2024 cblomart
// Licensed under the MIT License

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lokalarchiv/internal/api"
	"lokalarchiv/internal/backfill"
	"lokalarchiv/internal/cache"
	"lokalarchiv/internal/config"
	"lokalarchiv/internal/extractor"
	"lokalarchiv/internal/ingest"
	"lokalarchiv/internal/notifier"
	"lokalarchiv/internal/query"
	"lokalarchiv/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize cache for hot query results
	cacheManager := cache.NewManager(cfg.CacheTTL)

	// Initialize persistent storage
	store, err := storage.NewStorage(cfg.DataDir)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}
	defer store.Close()

	// Wire up the core components
	ex := extractor.New(cfg.FetchTimeout)
	ingester := ingest.New(store, ex, cfg.FeedURLs, cfg.FetchTimeout)
	scraper := backfill.New(store, ex, cfg)
	engine := query.New(store)
	n := notifier.New(cfg.WebhookURL, cfg.FetchTimeout)

	// Initialize API server
	server := api.NewServer(store, ingester, scraper, engine, n, cacheManager, cfg)

	log.Printf("Starting Lokal-Archiv server on port %d", cfg.Port)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Configured feeds: %d", len(cfg.FeedURLs))
	log.Printf("Archive base URL: %s", cfg.ArchiveBaseURL)
	log.Printf("Fetch timeout: %v", cfg.FetchTimeout)
	log.Printf("Cache TTL: %v", cfg.CacheTTL)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create a context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start signal handler in goroutine
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, stopping services...")
		cancel()
	}()

	// Start the server with context for graceful shutdown
	if err := server.StartWithContext(ctx); err != nil && err != context.Canceled {
		log.Fatal("Failed to start server:", err)
	}
}
