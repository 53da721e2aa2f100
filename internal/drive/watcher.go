package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/restockplan/pkg/logger"
)

// fileSource is the part of Service the downloader needs.
type fileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
	ExportFile(ctx context.Context, fileID, mimeType string, w io.Writer) error
}

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls extract files out of one Drive folder.
type Downloader struct {
	service fileSource
}

func NewDownloader(s *Service) *Downloader {
	return &Downloader{service: s}
}

// DownloadFolder saves every CSV and XLSX file of the folder into
// DownloadDir and returns the local paths. Native Google Sheets are exported
// as XLSX under their own name; the ingest layer reads both formats.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.service.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, fetch := d.plan(f)
		if fetch == nil {
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(name))
		if err := saveTo(localPath, func(w io.Writer) error { return fetch(ctx, w) }); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}
		logger.Log.Debug().Str("file", f.Name).Str("path", localPath).Msg("drive file downloaded")
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

// plan picks the local name and fetch call for f, or nil to skip it.
func (d *Downloader) plan(f *File) (string, func(context.Context, io.Writer) error) {
	if f.MimeType == spreadsheetMimeType {
		return f.Name + ".xlsx", func(ctx context.Context, w io.Writer) error {
			return d.service.ExportFile(ctx, f.ID, xlsxMimeType, w)
		}
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx":
		return f.Name, func(ctx context.Context, w io.Writer) error {
			return d.service.DownloadFile(ctx, f.ID, w)
		}
	}
	return "", nil
}

func saveTo(path string, write func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", path, err)
	}
	if err := write(out); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}
