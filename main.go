package main

import (
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/username/optfolio/src/config"
	"github.com/username/optfolio/src/database"
	"github.com/username/optfolio/src/handlers"
	"github.com/username/optfolio/src/logger"
	_ "github.com/username/optfolio/src/parsers/ibkr"
	"github.com/username/optfolio/src/processors"
	"github.com/username/optfolio/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Optfolio statement processor starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	snapshotCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	optionProcessor := processors.NewOptionProcessor(config.Cfg.BaseCurrency)
	snapshotProcessor := processors.NewSnapshotProcessor(processors.ReconcilerConfig{
		BaseCurrency:        config.Cfg.BaseCurrency,
		ForexTolerance:      config.Cfg.ForexTolerance,
		ConsolidateAccounts: config.Cfg.ConsolidateAccounts,
	}, optionProcessor)

	ingestService := services.NewIngestService(snapshotProcessor, services.IngestOptions{
		PersistTradeDetails: config.Cfg.PersistTradeDetails,
		ConsolidateAccounts: config.Cfg.ConsolidateAccounts,
	}, snapshotCache)

	statementHandler := handlers.NewStatementHandler(ingestService)
	snapshotHandler := handlers.NewSnapshotHandler(ingestService)

	logger.L.Info("Configuring routes...")
	r := chi.NewRouter()
	r.Use(rateLimitMiddleware)

	r.Get("/health", handlers.HandleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/process-statement", statementHandler.HandleProcessStatement)
		r.Post("/upload-statement", statementHandler.HandleUploadStatement)
		r.Get("/snapshots", snapshotHandler.HandleGetSnapshots)
		r.Get("/snapshots/latest", snapshotHandler.HandleGetLatestSnapshot)
		r.Get("/runs/{runID}", snapshotHandler.HandleGetRun)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
