// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package derivative produces and caches size-bounded copies of canonical artifacts.

Architecture:

  - Index: An unsynchronized simplelru list guarded by one mutex.
  - Eviction: First-in first-out. Hits use Peek so reads never reorder the
    list; once capacity is exceeded the oldest insert is removed together
    with its scratch file.
  - Coalescing: Concurrent misses for the same key share one transcode (singleflight).
  - Generations: Invalidate bumps a per-record counter. A transcode that began
    before the bump discards its output instead of registering it.
  - Self-healing: An entry whose scratch file has vanished is treated as a miss.

Entries live only for the life of the process. The scratch directory is
emptied by [Cache.Reset] at startup.
*/
package derivative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/media/storage"
	"github.com/taibuivan/atelier/internal/media/transcode"
	"github.com/taibuivan/atelier/internal/platform/apperr"
	"github.com/taibuivan/atelier/internal/platform/constants"
)

// # Collaborators

// Source resolves a record to its canonical artifact.
type Source interface {
	ResolveArtifact(context context.Context, category media.Category, recordID int64) (*media.Artifact, error)
}

// Transcoder produces derivative files.
type Transcoder interface {
	TranscodeTo(context context.Context, source []byte, destination string, options transcode.Options) (*transcode.Result, error)
}

// # Keys & Entries

// Key identifies one materialized derivative. The negotiated format is part of
// the key so WebP and JPEG renditions of the same tier never collide.
type Key struct {
	Category media.Category
	RecordID int64
	Tier     media.Tier
	Format   transcode.Format
}

// String renders the key as category|recordID|tier|format.
func (key Key) String() string {
	return string(key.Category) + "|" + strconv.FormatInt(key.RecordID, 10) + "|" + string(key.Tier) + "|" + string(key.Format)
}

type entry struct {
	key       Key
	path      string
	createdAt time.Time
}

// record identifies the owner of a group of keys.
type record struct {
	category media.Category
	id       int64
}

// cachedTiers are the bounded tiers that own index entries.
var cachedTiers = []media.Tier{media.TierThumb, media.TierMedium, media.TierLarge}

// cachedFormats are the formats content negotiation can choose.
var cachedFormats = []transcode.Format{transcode.FormatWebP, transcode.FormatJPEG}

// Derivative is a readable rendition. Close must always be called.
type Derivative struct {
	*storage.Object
	Format transcode.Format
}

// # Cache

// Options configures a [Cache].
type Options struct {
	// Directory holds the materialized scratch files.
	Directory string

	// Capacity is the maximum number of resident entries.
	Capacity int

	// Quality is the encode quality for every derivative.
	Quality int

	// Clock and NewID are injectable for tests.
	Clock func() time.Time
	NewID func() string
}

// Cache is the bounded derivative index. Construct with [New].
type Cache struct {
	mu          sync.Mutex
	index       *simplelru.LRU[Key, *entry]
	generations map[record]uint64

	group singleflight.Group

	source     Source
	store      storage.Store
	transcoder Transcoder
	logger     *slog.Logger

	directory string
	quality   int
	clock     func() time.Time
	newID     func() string
}

// New creates a cache writing into options.Directory.
func New(source Source, store storage.Store, transcoder Transcoder, logger *slog.Logger, options Options) (*Cache, error) {
	if options.Capacity < 1 {
		options.Capacity = constants.DefaultCacheCapacity
	}
	if options.Quality == 0 {
		options.Quality = constants.CanonicalQuality
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.NewID == nil {
		options.NewID = uuid.NewString
	}

	directory, err := filepath.Abs(options.Directory)
	if err != nil {
		return nil, fmt.Errorf("derivative: resolving scratch dir: %w", err)
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("derivative: creating scratch dir: %w", err)
	}

	cache := &Cache{
		generations: make(map[record]uint64),
		source:      source,
		store:       store,
		transcoder:  transcoder,
		logger:      logger,
		directory:   directory,
		quality:     options.Quality,
		clock:       options.Clock,
		newID:       options.NewID,
	}

	index, err := simplelru.NewLRU[Key, *entry](options.Capacity, cache.deleteFile)
	if err != nil {
		return nil, fmt.Errorf("derivative: creating index: %w", err)
	}
	cache.index = index

	return cache, nil
}

/*
GetOrCreate returns the derivative for a record's tier, producing it on a miss.

Parameters:
  - context: Carries request values; a miss runs detached from its cancellation
  - category, recordID: Record identity
  - tier: thumb, medium, large or original
  - wantsWebP: Result of content negotiation

Returns:
  - *Derivative: Open handle; the caller must Close it
  - error: apperr.NotFound when the record or its artifact is missing
*/
func (cache *Cache) GetOrCreate(context context.Context, category media.Category, recordID int64, tier media.Tier, wantsWebP bool) (*Derivative, error) {
	format := transcode.FormatJPEG
	if wantsWebP {
		format = transcode.FormatWebP
	}

	if tier == media.TierOriginal {
		return cache.original(context, category, recordID, format)
	}

	key := Key{Category: category, RecordID: recordID, Tier: tier, Format: format}

	if derivative := cache.lookup(key); derivative != nil {
		return derivative, nil
	}

	value, err, _ := cache.group.Do(key.String(), func() (any, error) {
		// Another flight may have finished between the lookup above and this one.
		if resident := cache.lookup(key); resident != nil {
			return drain(resident)
		}
		// Followers share this flight, so the leader's disconnect must not fail them.
		return cache.materialize(detached(context), key)
	})
	if err != nil {
		return nil, err
	}

	materialized := value.(*materialized)
	return &Derivative{
		Object: &storage.Object{
			ReadSeekCloser: nopCloser{bytes.NewReader(materialized.data)},
			Size:           int64(len(materialized.data)),
			ModTime:        materialized.createdAt,
		},
		Format: format,
	}, nil
}

// lookup serves a resident entry, dropping it when its file has vanished.
func (cache *Cache) lookup(key Key) *Derivative {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	resident, ok := cache.index.Peek(key)
	if !ok {
		return nil
	}

	file, err := os.Open(resident.path)
	if err == nil {
		info, statErr := file.Stat()
		if statErr == nil {
			return &Derivative{
				Object: &storage.Object{ReadSeekCloser: file, Size: info.Size(), ModTime: resident.createdAt},
				Format: key.Format,
			}
		}
		_ = file.Close()
		err = statErr
	}

	cache.index.Remove(key)
	cache.logger.Warn("derivative_stale_entry_dropped",
		slog.String("key", key.String()),
		slog.Any("error", err),
	)
	return nil
}

type materialized struct {
	data      []byte
	createdAt time.Time
}

// drain reads a resident derivative fully and closes it.
func drain(derivative *Derivative) (*materialized, error) {
	defer derivative.Close()

	data, err := io.ReadAll(derivative)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("derivative: reading cached file: %w", err))
	}
	return &materialized{data: data, createdAt: derivative.ModTime}, nil
}

// materialize transcodes the canonical artifact and registers the result.
func (cache *Cache) materialize(context context.Context, key Key) (*materialized, error) {
	generation := cache.generation(key)

	artifact, err := cache.source.ResolveArtifact(context, key.Category, key.RecordID)
	if err != nil {
		return nil, err
	}

	source, err := cache.readCanonical(context, artifact)
	if err != nil {
		return nil, err
	}

	edge, _ := key.Tier.Bounds()
	path := filepath.Join(cache.directory, fmt.Sprintf("%s-%d-%s-%s%s",
		key.Category, key.RecordID, key.Tier, cache.newID(), key.Format.Extension()))

	result, err := cache.transcoder.TranscodeTo(context, source, path, transcode.Options{
		Quality:   cache.quality,
		MaxWidth:  &edge,
		MaxHeight: &edge,
		Format:    key.Format,
	})
	if err != nil {
		cache.logger.Error("derivative_transcode_failed",
			slog.String("category", string(key.Category)),
			slog.Int64("record_id", key.RecordID),
			slog.String("tier", string(key.Tier)),
			slog.Any("error", err),
		)
		return nil, apperr.TranscodeFailed(err)
	}

	createdAt := cache.clock()
	if cache.insert(&entry{key: key, path: path, createdAt: createdAt}, generation) {
		cache.logger.Debug("derivative_created",
			slog.String("key", key.String()),
			slog.Int("width", result.Width),
			slog.Int("height", result.Height),
		)
	}

	return &materialized{data: result.Data, createdAt: createdAt}, nil
}

// generation returns the current invalidation counter of the key's record.
func (cache *Cache) generation(key Key) uint64 {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.generations[record{category: key.Category, id: key.RecordID}]
}

/*
insert registers e unless its record was invalidated after generation was read.

The oldest entry is evicted when the index is full, in the same critical
section. A stale file is deleted and insert reports false.
*/
func (cache *Cache) insert(e *entry, generation uint64) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.generations[record{category: e.key.Category, id: e.key.RecordID}] != generation {
		cache.deleteFile(e.key, e)
		cache.logger.Debug("derivative_discarded_stale", slog.String("key", e.key.String()))
		return false
	}

	// A concurrent producer for the same key (outside singleflight, e.g. after
	// invalidation) may have won the race; the newer file replaces it.
	// simplelru updates in place without an eviction callback, so remove first.
	if cache.index.Remove(e.key) {
		cache.logger.Debug("derivative_replaced", slog.String("key", e.key.String()))
	}

	if evicted := cache.index.Add(e.key, e); evicted {
		cache.logger.Debug("derivative_evicted", slog.String("inserted", e.key.String()))
	}
	return true
}

// deleteFile is the index eviction callback. The caller holds mu.
func (cache *Cache) deleteFile(key Key, victim *entry) {
	if err := os.Remove(victim.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cache.logger.Warn("derivative_file_delete_failed",
			slog.String("key", key.String()),
			slog.String("path", victim.path),
			slog.Any("error", err),
		)
	}
}

/*
Invalidate purges every entry belonging to a record.

Flights already running for the record are forgotten so the next request
starts a fresh transcode, and their results are discarded on completion.
*/
func (cache *Cache) Invalidate(category media.Category, recordID int64) int {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.generations[record{category: category, id: recordID}]++

	for _, tier := range cachedTiers {
		for _, format := range cachedFormats {
			cache.group.Forget(Key{Category: category, RecordID: recordID, Tier: tier, Format: format}.String())
		}
	}

	removed := 0
	for _, key := range cache.index.Keys() {
		if key.Category == category && key.RecordID == recordID {
			cache.index.Remove(key)
			removed++
		}
	}

	if removed > 0 {
		cache.logger.Debug("derivative_invalidated",
			slog.String("category", string(category)),
			slog.Int64("record_id", recordID),
			slog.Int("removed", removed),
		)
	}
	return removed
}

// Len returns the number of resident entries.
func (cache *Cache) Len() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.index.Len()
}

// Contains reports whether key is resident.
func (cache *Cache) Contains(key Key) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.index.Contains(key)
}

// Path returns the scratch file of a resident key.
func (cache *Cache) Path(key Key) (string, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	resident, ok := cache.index.Peek(key)
	if !ok {
		return "", false
	}
	return resident.path, true
}

// Directory returns the absolute scratch directory.
func (cache *Cache) Directory() string {
	return cache.directory
}

// Reset empties the index and removes every file in the scratch directory.
func (cache *Cache) Reset() error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.index.Purge()

	files, err := os.ReadDir(cache.directory)
	if err != nil {
		return fmt.Errorf("derivative: listing scratch dir: %w", err)
	}

	var errs []error
	for _, file := range files {
		if err := os.RemoveAll(filepath.Join(cache.directory, file.Name())); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// tracked reports whether path belongs to a resident entry.
func (cache *Cache) tracked(path string) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	for _, resident := range cache.index.Values() {
		if resident.path == path {
			return true
		}
	}
	return false
}

// readCanonical loads the artifact's bytes, reporting a missing file as 404.
func (cache *Cache) readCanonical(context context.Context, artifact *media.Artifact) ([]byte, error) {
	data, err := cache.store.Read(context, artifact.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("Image file")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return data, nil
}

// detached keeps request values but drops cancellation and deadline.
func detached(requestContext context.Context) context.Context {
	return context.WithoutCancel(requestContext)
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
