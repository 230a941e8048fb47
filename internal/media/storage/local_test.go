// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/media/storage"
)

/*
TestLocal_Lifecycle walks a key through write, open, exists and delete.
*/
func TestLocal_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir(), "sliders")
	require.NoError(t, err)

	key := "sliders/slider-1-2.webp"
	payload := []byte("canonical artifact bytes")

	// 1. Write and read back
	require.NoError(t, store.Write(ctx, key, payload, "image/webp"))

	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// 2. Open is seekable and sized
	object, err := store.Open(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), object.Size)

	_, err = object.Seek(10, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(object)
	require.NoError(t, err)
	assert.Equal(t, payload[10:], rest)
	require.NoError(t, object.Close())

	// 3. Exists, then delete twice
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Delete(ctx, key), storage.ErrNotFound)

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Read(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

/*
TestLocal_NestedDirectories verifies writes into category subdirectories.
*/
func TestLocal_NestedDirectories(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocal(root)
	require.NoError(t, err)

	key := storage.Key(media.CategoryFeaturedWorkImage, "featured-internal-1-1.webp")
	require.NoError(t, store.Write(context.Background(), key, []byte("x"), "image/webp"))

	assert.FileExists(t, filepath.Join(root, "featured-works", "images", "featured-internal-1-1.webp"))

	// No temporary siblings remain
	entries, err := os.ReadDir(filepath.Join(root, "featured-works", "images"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

/*
TestLocal_RejectsEscapingKeys guards against path traversal.
*/
func TestLocal_RejectsEscapingKeys(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../secret", "sliders/../../etc/passwd", "/absolute", "sliders//double", `sliders\win`} {
		t.Run(key, func(t *testing.T) {
			_, err := store.Read(context.Background(), key)
			assert.ErrorIs(t, err, storage.ErrInvalidKey)
		})
	}
}

/*
TestNamer_Format checks the stored-name pattern for every category.
*/
func TestNamer_Format(t *testing.T) {
	namer := storage.Namer{
		Now:   func() time.Time { return time.UnixMilli(1718000000123) },
		RandN: func(int) int { return 42 },
	}

	tests := []struct {
		category media.Category
		expected string
	}{
		{media.CategorySlider, "slider-1718000000123-42.webp"},
		{media.CategoryFeaturedWork, "featured-1718000000123-42.webp"},
		{media.CategoryFeaturedWorkImage, "featured-internal-1718000000123-42.webp"},
		{media.CategoryService, "service-1718000000123-42.webp"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.Name(tt.category, ".webp"))
		})
	}

	// Real clock and randomness still match the public pattern
	pattern := regexp.MustCompile(`^slider-\d{13}-\d{1,9}\.webp$`)
	assert.Regexp(t, pattern, storage.NewNamer().Name(media.CategorySlider, ".webp"))
}

/*
TestArtifact_PublicURL verifies URLs are derived from category and stored name.
*/
func TestArtifact_PublicURL(t *testing.T) {
	artifact := media.NewArtifact(media.CategoryFeaturedWorkImage, "featured-internal-1-2.webp", "beach.jpg", "webp", 800, 600)

	assert.Equal(t, "featured-works/images/featured-internal-1-2.webp", artifact.StoragePath)
	assert.Equal(t, "/uploads/featured-works/images/featured-internal-1-2.webp", artifact.PublicURL)
	assert.Equal(t, 800, *artifact.Width)
}
