package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the pipeline needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// DownloadPrefix mirrors every object under prefix into destDir, keeping the
// key layout below the prefix, and returns the local paths.
func DownloadPrefix(ctx context.Context, store ObjectStorage, prefix, destDir string) ([]string, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		rel, err := objectRelativePath(prefix, obj.Key)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(destDir, filepath.FromSlash(rel))
		if err := store.DownloadObject(ctx, obj.Key, dest); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

// UploadDir uploads every regular file below srcDir under prefix.
func UploadDir(ctx context.Context, store ObjectStorage, srcDir, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(srcDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed reading %s: %w", p, err)
		}
		key := resolveObjectKey(prefix, filepath.ToSlash(rel))
		if err := store.UploadObject(ctx, key, data); err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func resolveObjectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// objectRelativePath is key below prefix, refusing keys that would escape it.
func objectRelativePath(prefix, key string) (string, error) {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, strings.Trim(prefix, "/")), "/")
	if rel == "" {
		rel = path.Base(key)
	}
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("object key %q escapes prefix %q", key, prefix)
	}
	return clean, nil
}
