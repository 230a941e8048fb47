// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package derivative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/media/storage"
	"github.com/taibuivan/atelier/internal/media/transcode"
	"github.com/taibuivan/atelier/internal/platform/apperr"
)

// # Original Tier

// original streams the canonical artifact unchanged when its format already
// matches or when a legacy non-WebP canonical meets a client without WebP
// support. Otherwise it converts into a disposable file that is removed on
// Close. The original tier is never cached.
func (cache *Cache) original(requestContext context.Context, category media.Category, recordID int64, format transcode.Format) (*Derivative, error) {
	artifact, err := cache.source.ResolveArtifact(requestContext, category, recordID)
	if err != nil {
		return nil, err
	}

	canonical := artifact.Format
	if canonical == "" {
		canonical = media.FormatFromName(artifact.StoredName)
	}

	// 1. Pass-through: no transcoding cost to amortize
	if passThrough, ok := passThroughFormat(canonical, format); ok {
		object, err := cache.store.Open(requestContext, artifact.StoragePath)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Image file")
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}
		return &Derivative{Object: object, Format: passThrough}, nil
	}

	// 2. Conversion into a scoped temporary file
	source, err := cache.readCanonical(requestContext, artifact)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(cache.directory, fmt.Sprintf("original-%s-%d-%s%s",
		category, recordID, cache.newID(), format.Extension()))

	if _, err := cache.transcoder.TranscodeTo(context.WithoutCancel(requestContext), source, path, transcode.Options{
		Quality: cache.quality,
		Format:  format,
	}); err != nil {
		_ = os.Remove(path)
		cache.logger.Error("derivative_original_transcode_failed",
			slog.String("category", string(category)),
			slog.Int64("record_id", recordID),
			slog.Any("error", err),
		)
		return nil, apperr.TranscodeFailed(err)
	}

	file, err := os.Open(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, apperr.Internal(fmt.Errorf("derivative: opening %s: %w", path, err))
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, apperr.Internal(fmt.Errorf("derivative: stat %s: %w", path, err))
	}

	return &Derivative{
		Object: &storage.Object{
			ReadSeekCloser: &disposableFile{File: file, path: path, logger: cache.logger},
			Size:           info.Size(),
			ModTime:        info.ModTime(),
		},
		Format: format,
	}, nil
}

// passThroughFormat reports whether the canonical bytes can be sent as-is and
// under which format. A client that accepts WebP always receives WebP.
func passThroughFormat(canonical string, requested transcode.Format) (transcode.Format, bool) {
	if canonical == string(requested) {
		return requested, true
	}
	if canonical == "" || canonical == string(transcode.FormatWebP) || requested == transcode.FormatWebP {
		return "", false
	}
	return transcode.Format(canonical), true
}

// disposableFile deletes its backing file when closed.
type disposableFile struct {
	*os.File
	path   string
	logger *slog.Logger
}

func (file *disposableFile) Close() error {
	closeErr := file.File.Close()

	if err := os.Remove(file.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		file.logger.Warn("derivative_temp_delete_failed", slog.String("path", file.path), slog.Any("error", err))
	}

	return closeErr
}
