package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/restockplan/internal/drive"
	"github.com/andresuchdata/restockplan/internal/storage"
	"github.com/andresuchdata/restockplan/pkg/logger"
)

// ExtractSource stages the input extracts into a local directory before
// they are parsed.
type ExtractSource interface {
	Name() string
	Fetch(ctx context.Context, dir string) error
}

// LocalSource reads the extracts already in place.
type LocalSource struct{}

func (LocalSource) Name() string                         { return "local" }
func (LocalSource) Fetch(context.Context, string) error { return nil }

// StorageSource mirrors an object-storage prefix.
type StorageSource struct {
	Store  storage.ObjectStorage
	Prefix string
}

func (s StorageSource) Name() string { return "storage" }

func (s StorageSource) Fetch(ctx context.Context, dir string) error {
	paths, err := storage.DownloadPrefix(ctx, s.Store, s.Prefix, dir)
	if err != nil {
		return fmt.Errorf("fetch extracts from storage: %w", err)
	}
	logger.Log.Info().Str("prefix", s.Prefix).Int("files", len(paths)).Msg("extracts fetched from storage")
	return nil
}

// DriveSource downloads one Google Drive folder.
type DriveSource struct {
	Downloader *drive.Downloader
	FolderID   string
}

func (s DriveSource) Name() string { return "drive" }

func (s DriveSource) Fetch(ctx context.Context, dir string) error {
	paths, err := s.Downloader.DownloadFolder(ctx, drive.DownloadOptions{FolderID: s.FolderID, DownloadDir: dir})
	if err != nil {
		return fmt.Errorf("fetch extracts from drive: %w", err)
	}
	logger.Log.Info().Str("folder", s.FolderID).Int("files", len(paths)).Msg("extracts fetched from drive")
	return nil
}
