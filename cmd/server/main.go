package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/restockplan/internal/api"
	"github.com/andresuchdata/restockplan/internal/cache"
	"github.com/andresuchdata/restockplan/internal/config"
	"github.com/andresuchdata/restockplan/internal/pipeline"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/andresuchdata/restockplan/internal/repository/filestore"
	"github.com/andresuchdata/restockplan/internal/repository/postgres"
	"github.com/andresuchdata/restockplan/internal/service"
	"github.com/andresuchdata/restockplan/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", os.Getenv("RESTOCK_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	logger.SetFormat(cfg.App.LogFormat)
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Reads come from Postgres when configured, otherwise from the file store
	// the batch commands write.
	var store repository.Store
	var runs service.RunLister
	if cfg.Database.Enabled() {
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		store = postgres.NewStore(db)
		runs = pipeline.NewRepository(db.DB.DB)
	} else {
		fs, err := filestore.New(cfg.Engine.OutputDir)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to open file store")
		}
		store = fs
	}

	evalCache, err := cache.NewEvaluationCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Cache unavailable, serving uncached")
		evalCache = cache.NewNoopEvaluationCache()
	}

	router := api.NewRouter(&api.Services{
		Query: service.NewQueryService(store, evalCache, runs),
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
