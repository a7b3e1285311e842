package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/basel-ax/news2toon/internal/config"
	"github.com/basel-ax/news2toon/internal/handler"
	"github.com/basel-ax/news2toon/internal/infrastructure/dalle"
	"github.com/basel-ax/news2toon/internal/infrastructure/objectstore"
	"github.com/basel-ax/news2toon/internal/infrastructure/pollinations"
	"github.com/basel-ax/news2toon/internal/infrastructure/urlcheck"
	"github.com/basel-ax/news2toon/internal/logger"
	"github.com/basel-ax/news2toon/internal/metrics"
	"github.com/basel-ax/news2toon/internal/migration"
	"github.com/basel-ax/news2toon/internal/repository"
	"github.com/basel-ax/news2toon/internal/server"
	"github.com/basel-ax/news2toon/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command line flags
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	runServe := flag.Bool("serve", false, "Run the HTTP API")
	runCron := flag.Bool("cron", false, "Persist provider hosted cartoon images on schedule")
	runMigrate := flag.Bool("migrate", false, "Apply database migrations")
	generate := flag.String("generate", "", "Generate one image for the given prompt and print its URL")
	flag.Parse()

	if !*runServe && !*runCron && !*runMigrate && *generate == "" {
		log.Fatal("Please specify at least one action: -serve, -cron, -migrate or -generate \"prompt\"")
	}

	logr, err := logger.New(*verbose)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	logr.Info("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		logr.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logr.Info("Received signal, initiating shutdown...", zap.String("signal", sig.String()))
		cancel()
	}()

	if *runMigrate {
		if err := migrate(cfg, logr); err != nil {
			logr.Fatal("Migration failed", zap.Error(err))
		}
	}

	if !*runServe && !*runCron && *generate == "" {
		return
	}

	app, err := buildApp(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("Failed to initialise services", zap.Error(err))
	}
	defer app.db.Close()

	if *generate != "" {
		result, err := app.pipeline.GenerateImage(ctx, *generate)
		if err != nil {
			logr.Fatal("Image generation failed", zap.Error(err))
		}
		fmt.Printf("%s\t%s\n", result.Provider, result.URL)
		if !*runServe && !*runCron {
			return
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if *runCron {
		g.Go(func() error {
			startCron(gctx, app.sweeper, cfg.PersistCron, logr)
			return nil
		})
	}

	if *runServe {
		if cfg.OpenAI.APIKey == "" {
			logr.Fatal("OPENAI_API_KEY is required to serve the API")
		}
		if err := app.store.EnsureBucket(ctx); err != nil {
			logr.Warn("Could not verify storage bucket", zap.Error(err))
		}

		h := handler.NewHandler(app.cartoons, app.pipeline, app.relay, logr).WithSiteURL(cfg.Server.SiteURL)
		srv := server.New(gctx, server.Options{
			Addr:          cfg.Addr(),
			Metrics:       app.metrics.Handler(),
			RatePerSecond: cfg.Server.RateLimitRPS,
			RateBurst:     cfg.Server.RateLimitBurst,
		}, h, logr)

		g.Go(srv.Run)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logr.Error("Stopped with error", zap.Error(err))
	}
	logr.Info("Shutting down gracefully...")
}

type app struct {
	db       *sql.DB
	store    *objectstore.S3Store
	metrics  *metrics.Collector
	relay    *service.StorageRelay
	pipeline *service.ImagePipeline
	cartoons *service.CartoonService
	sweeper  *service.PersistSweeper
}

func buildApp(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	// Initialize database connection
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	store, err := objectstore.NewS3Store(ctx, objectstore.Config{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Bucket:          cfg.S3.Bucket,
		PublicBaseURL:   cfg.S3.PublicBaseURL,
	}, logr)
	if err != nil {
		db.Close()
		return nil, err
	}

	collector := metrics.NewCollector()
	checker := urlcheck.NewChecker(nil)
	relay := service.NewStorageRelay(store, nil, collector, logr)

	dalleCfg := dalle.Config{
		Enabled: cfg.DalleEnabled,
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	}
	openaiClient := dalle.NewClient(dalleCfg)

	providers, err := service.NewProviderRegistry(service.RegistryConfig{
		Dalle: dalleCfg,
		Pollinations: pollinations.Config{
			Enabled: cfg.PollinationsEnabled,
			BaseURL: cfg.PollinationsBaseURL,
			Width:   cfg.DefaultImageWidth,
			Height:  cfg.DefaultImageHeight,
		},
	}, openaiClient, checker, relay, logr)
	if err != nil {
		db.Close()
		return nil, err
	}
	pipeline := service.NewImagePipeline(providers, checker, collector, logr)

	generationRepo := repository.NewPostgresGenerationRepository(db)
	cartoonRepo := repository.NewPostgresCartoonRepository(db)
	promptRepo := repository.NewPostgresPromptRepository(db)

	stories := service.NewStoryService(openaiClient, promptRepo, cfg.OpenAI.ChatModel, logr)
	cartoons := service.NewCartoonService(stories, pipeline, generationRepo, cartoonRepo, logr)
	sweeper := service.NewPersistSweeper(cartoonRepo, relay, store.PublicBaseURL()+"/", cfg.PersistBatchSize, cfg.PersistMaxAttempts, logr)

	logr.Info("Services initialised",
		zap.Int("enabled_providers", len(pipeline.EnabledProviders())),
		zap.String("storage", store.PublicBaseURL()))

	return &app{
		db:       db,
		store:    store,
		metrics:  collector,
		relay:    relay,
		pipeline: pipeline,
		cartoons: cartoons,
		sweeper:  sweeper,
	}, nil
}

func migrate(cfg *config.Config, logr *zap.Logger) error {
	m, err := migration.NewMigrator(cfg.GetDSN(), logr)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Up()
}

func startCron(ctx context.Context, sweeper *service.PersistSweeper, spec string, logr *zap.Logger) {
	// Create a new cron scheduler
	c := cron.New(cron.WithSeconds())

	var cronMutex sync.Mutex

	_, err := c.AddFunc(spec, func() {
		logr.Debug("[CRON] Attempting to start persist sweep...")
		cronMutex.Lock()
		defer cronMutex.Unlock()

		report, err := sweeper.Run(ctx)
		if err != nil {
			logr.Error("[CRON] Persist sweep failed", zap.Error(err))
			return
		}
		logr.Info("[CRON] Finished persist sweep",
			zap.Int("scanned", report.Scanned),
			zap.Int("persisted", report.Persisted),
			zap.Int("failed", report.Failed))
	})
	if err != nil {
		logr.Error("Error scheduling persist sweep", zap.Error(err))
		return
	}

	// Start the cron scheduler
	c.Start()
	logr.Info("Cron scheduler started", zap.String("schedule", spec))

	// Keep the scheduler running until context is cancelled
	<-ctx.Done()
	<-c.Stop().Done()
	logr.Info("Cron scheduler stopped")
}
