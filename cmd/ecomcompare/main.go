package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/nobody-27-27/EcomCompare/internal/api"
	"github.com/nobody-27-27/EcomCompare/internal/config"
	"github.com/nobody-27-27/EcomCompare/internal/crawler"
	"github.com/nobody-27-27/EcomCompare/internal/database"
	"github.com/nobody-27-27/EcomCompare/internal/events"
	"github.com/nobody-27-27/EcomCompare/internal/jobs"
	"github.com/nobody-27-27/EcomCompare/internal/matching"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Name,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// Crawling
	manager := crawler.NewManager(crawler.ManagerOptions{
		MaxPages:          cfg.Crawler.MaxPages,
		Delay:             cfg.Crawler.Delay,
		FetchTimeout:      cfg.Crawler.FetchTimeout,
		MaxCrawlTime:      cfg.Crawler.MaxCrawlTime,
		FailureBudget:     cfg.Crawler.FailureBudget,
		RenderedAvailable: cfg.Crawler.RenderedAvailable,
		UserAgent:         cfg.Crawler.UserAgent,
	}, logger)

	publisher := events.NewPublisher(redisClient, logger)
	runner := jobs.NewRunner(db, manager, publisher, logger)

	// Matching
	matcher := matching.NewEngine(db, db, logger)
	matchOpts := matching.Options{
		MinSimilarity:         cfg.Matching.MinSimilarity,
		MaxMatchesPerProduct:  cfg.Matching.MaxMatchesPerProduct,
		AllowDuplicateMatches: cfg.Matching.AllowDuplicateMatches,
	}

	handlers := api.NewHandlers(db, runner, matcher, matchOpts, logger)

	// Setup Chi router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		health := `{"status":"ok"}`
		if err := db.Pool().Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			health = `{"status":"error","message":"database unreachable"}`
		}
		w.WriteHeader(status)
		w.Write([]byte(health))
	})

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/websites", func(r chi.Router) {
			r.Post("/", handlers.CreateWebsite)
			r.Get("/", handlers.ListWebsites)
			r.Get("/{websiteID}", handlers.GetWebsite)
			r.Delete("/{websiteID}", handlers.DeleteWebsite)
			r.Put("/{websiteID}/source", handlers.SetSourceWebsite)

			r.Post("/{websiteID}/crawl", handlers.StartCrawl)
			r.Delete("/{websiteID}/crawl", handlers.CancelCrawl)
			r.Get("/{websiteID}/crawl", handlers.GetCrawlStatus)

			r.Get("/{websiteID}/products", handlers.ListProducts)
			r.Delete("/{websiteID}/products", handlers.ClearProducts)
		})

		r.Delete("/products/{productID}", handlers.DeleteProduct)

		r.Route("/matching", func(r chi.Router) {
			r.Post("/run", handlers.RunMatching)
			r.Get("/products/{productID}/suggestions", handlers.GetSuggestedMatches)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", handlers.ListMatches)
			r.Post("/", handlers.CreateManualMatch)
			r.Put("/{matchID}/confirm", handlers.ConfirmMatch)
			r.Delete("/{matchID}", handlers.DeleteMatch)
		})

		r.Get("/comparisons", handlers.ListPriceComparisons)
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("starting server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
