package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/agent"
	"github.com/BerylCAtieno/invoice-chat-api/internal/config"
	"github.com/BerylCAtieno/invoice-chat-api/internal/db"
	"github.com/BerylCAtieno/invoice-chat-api/internal/ledger"
	"github.com/BerylCAtieno/invoice-chat-api/internal/llm"
	"github.com/BerylCAtieno/invoice-chat-api/internal/pricing"
	"github.com/BerylCAtieno/invoice-chat-api/internal/promptcache"
	"github.com/BerylCAtieno/invoice-chat-api/internal/repository"
	"github.com/BerylCAtieno/invoice-chat-api/internal/router"
	"github.com/BerylCAtieno/invoice-chat-api/internal/services"
	"github.com/BerylCAtieno/invoice-chat-api/internal/storage"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database (runs migrations)
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", "error", err, "path", cfg.DatabasePath)
	}
	defer database.Close()

	// Model backend
	model, closeModel, err := llm.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize model backend", "error", err, "provider", cfg.ModelProvider)
	}
	defer closeModel()

	// Pricing, ledger and prompt cache
	table, err := pricing.Load(cfg.PricingFile)
	if err != nil {
		logger.Fatal("Failed to load pricing table", "error", err)
	}
	usageLedger := ledger.New(repository.NewUsageRepository(database), pricing.NewCalculator(table))
	cache := promptcache.New(repository.NewPromptCacheRepository(database), logger, promptcache.WithTTL(cfg.CacheTTL))

	// Optional document archive
	var archive storage.Storage
	if cfg.ArchiveEnabled() {
		archive, err = storage.NewS3Storage(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize S3 storage", "error", err)
		}
		logger.Info("Document archive enabled", "bucket", cfg.S3BucketName)
	}

	invoiceRepo := repository.NewInvoiceRepository(database)
	chatRepo := repository.NewChatRepository(database)
	docAgent := agent.New(model, cache, usageLedger, logger)

	handler := router.NewRouter(router.Services{
		Pipeline:      services.NewPipeline(docAgent, invoiceRepo, chatRepo, archive, logger),
		Invoices:      services.NewInvoiceService(invoiceRepo, chatRepo, archive, logger),
		Chats:         services.NewChatService(chatRepo, model, cache, logger),
		Usage:         services.NewUsageService(usageLedger, cache, logger),
		MaxUploadSize: cfg.MaxUploadSize,
	}, logger)

	// Create HTTP server. Model calls for multi-page documents are slow, so
	// the write timeout is generous.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port, "provider", cfg.ModelProvider, "model", model.ModelID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.CacheCleanupInterval > 0 {
		g.Go(func() error {
			logger.Info("Prompt cache sweeper started", "interval", cfg.CacheCleanupInterval)
			return cache.RunSweeper(gctx, cfg.CacheCleanupInterval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server stopped with error", "error", err)
	}

	logger.Info("Server exited")
}
