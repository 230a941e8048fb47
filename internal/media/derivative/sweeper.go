// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package derivative

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// # Scratch Sweeper

// Sweep removes scratch files that no resident entry references and that are
// older than grace. Such files are left behind when the process dies while an
// original-tier response is streaming, or after an entry is dropped as stale.
func (cache *Cache) Sweep(grace time.Duration) (int, error) {
	files, err := os.ReadDir(cache.directory)
	if err != nil {
		return 0, fmt.Errorf("derivative: listing scratch dir: %w", err)
	}

	cutoff := cache.clock().Add(-grace)
	removed := 0

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		path := filepath.Join(cache.directory, file.Name())
		info, err := file.Info()
		if err != nil || info.ModTime().After(cutoff) || cache.tracked(path) {
			continue
		}

		if err := os.Remove(path); err != nil {
			cache.logger.Warn("scratch_sweep_delete_failed", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}

	return removed, nil
}

// ScheduleSweep runs [Cache.Sweep] on a cron schedule until context is cancelled.
func ScheduleSweep(context context.Context, cache *Cache, schedule string, grace time.Duration, logger *slog.Logger) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(schedule, func() {
		removed, err := cache.Sweep(grace)
		if err != nil {
			logger.Warn("scratch_sweep_failed", slog.Any("error", err))
			return
		}
		if removed > 0 {
			logger.Info("scratch_sweep_completed", slog.Int("removed", removed))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("derivative: invalid sweep schedule %q: %w", schedule, err)
	}

	scheduler.Start()

	go func() {
		<-context.Done()
		<-scheduler.Stop().Done()
	}()

	return scheduler, nil
}
