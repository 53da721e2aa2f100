package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/restockplan/internal/cache"
	"github.com/andresuchdata/restockplan/internal/config"
	"github.com/andresuchdata/restockplan/internal/drive"
	"github.com/andresuchdata/restockplan/internal/pipeline"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/andresuchdata/restockplan/internal/repository/filestore"
	"github.com/andresuchdata/restockplan/internal/repository/postgres"
	"github.com/andresuchdata/restockplan/internal/service"
	"github.com/andresuchdata/restockplan/internal/storage"
	"github.com/andresuchdata/restockplan/pkg/logger"
)

// deps holds everything a command wires from configuration.
type deps struct {
	cfg     *config.Config
	db      *postgres.DB
	runs    *pipeline.Repository
	restock *service.RestockService
}

func (d *deps) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
}

// buildDeps wires the stores, cache, extract source and uploader. The file
// store is always the primary; Postgres mirrors it when configured.
func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{cfg: cfg}

	fs, err := filestore.New(cfg.Engine.OutputDir)
	if err != nil {
		return nil, err
	}
	var store repository.Store = fs
	var tracker pipeline.Tracker

	if cfg.Database.Enabled() {
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		d.db = db
		d.runs = pipeline.NewRepository(db.DB.DB)
		store = repository.NewMulti(fs, postgres.NewStore(db))
		tracker = d.runs
	}

	evalCache, err := cache.NewEvaluationCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("cache unavailable, continuing without it")
		evalCache = cache.NewNoopEvaluationCache()
	}

	var objects storage.ObjectStorage
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			d.Close()
			return nil, err
		}
		objects = client
	}

	source, err := buildSource(ctx, cfg, objects)
	if err != nil {
		d.Close()
		return nil, err
	}

	svc, err := service.NewRestockService(cfg.Engine, cfg.Pipeline, service.Deps{
		Store:        store,
		Cache:        evalCache,
		Tracker:      tracker,
		Source:       source,
		Uploader:     objects,
		UploadPrefix: cfg.Storage.OutputPrefix,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.restock = svc
	return d, nil
}

func buildSource(ctx context.Context, cfg *config.Config, objects storage.ObjectStorage) (service.ExtractSource, error) {
	switch strings.ToLower(cfg.Engine.Source) {
	case "", "local":
		return service.LocalSource{}, nil
	case "storage":
		if objects == nil {
			return nil, fmt.Errorf("engine.source is storage but STORAGE_ENABLED is false")
		}
		return service.StorageSource{Store: objects, Prefix: cfg.Storage.InputPrefix}, nil
	case "drive":
		if strings.TrimSpace(cfg.Drive.CredentialsJSON) == "" {
			return nil, fmt.Errorf("GOOGLE_DRIVE_CREDENTIALS_JSON env is required for the drive source")
		}
		svc, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive service: %w", err)
		}
		folderID := cfg.Drive.FolderID
		if folderID == "" && cfg.Drive.FolderPath != "" {
			folderID, err = svc.FindFolderByPath(ctx, cfg.Drive.FolderPath)
			if err != nil {
				return nil, err
			}
		}
		if folderID == "" {
			return nil, fmt.Errorf("DRIVE_FOLDER_ID or DRIVE_FOLDER_PATH is required for the drive source")
		}
		return service.DriveSource{Downloader: drive.NewDownloader(svc), FolderID: folderID}, nil
	default:
		return nil, fmt.Errorf("engine.source: unknown value %q", cfg.Engine.Source)
	}
}

// failedGroups returns the groups the latest tracked run did not complete.
func failedGroups(ctx context.Context, runs *pipeline.Repository) ([]string, error) {
	latest, err := runs.ListRuns(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(latest) == 0 {
		return nil, nil
	}
	jobs, err := runs.GetJobsByRunID(ctx, latest[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs of run %d: %w", latest[0].ID, err)
	}
	var groups []string
	for _, j := range jobs {
		if j.Status != pipeline.JobCompleted {
			groups = append(groups, j.Name)
		}
	}
	return groups, nil
}
