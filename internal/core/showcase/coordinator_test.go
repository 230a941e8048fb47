// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package showcase_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/atelier/internal/core/showcase"
	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/media/mediatest"
	"github.com/taibuivan/atelier/internal/media/storage"
	"github.com/taibuivan/atelier/internal/media/transcode"
	"github.com/taibuivan/atelier/internal/platform/apperr"
	"github.com/taibuivan/atelier/internal/platform/keylock"
	"github.com/taibuivan/atelier/pkg/pointer"
)

// # Fixtures

// failingStore makes selected writes fail after validation has passed.
type failingStore struct {
	showcase.RecordStore
	failCreate bool
	failUpdate bool

	// onListChildren runs once, inside the next ListChildren call.
	onListChildren func()
}

var errInjected = errors.New("injected store failure")

func (store *failingStore) Create(ctx context.Context, record *showcase.Record) error {
	if store.failCreate {
		return apperr.Internal(errInjected)
	}
	return store.RecordStore.Create(ctx, record)
}

func (store *failingStore) Update(ctx context.Context, record *showcase.Record) error {
	if store.failUpdate {
		return apperr.Internal(errInjected)
	}
	return store.RecordStore.Update(ctx, record)
}

func (store *failingStore) ListChildren(ctx context.Context, parentID int64) ([]*showcase.Record, error) {
	if hook := store.onListChildren; hook != nil {
		store.onListChildren = nil
		hook()
	}
	return store.RecordStore.ListChildren(ctx, parentID)
}

// flakyArtifacts fails deletes with an error other than ErrNotFound.
type flakyArtifacts struct {
	storage.Store
	failDelete bool
}

var errDiskOffline = errors.New("disk offline")

func (store *flakyArtifacts) Delete(ctx context.Context, key string) error {
	if store.failDelete {
		return errDiskOffline
	}
	return store.Store.Delete(ctx, key)
}

// recordingInvalidator remembers which records were invalidated.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (invalidator *recordingInvalidator) Invalidate(category media.Category, recordID int64) int {
	invalidator.mu.Lock()
	defer invalidator.mu.Unlock()
	invalidator.calls = append(invalidator.calls, string(category)+":"+strconv.FormatInt(recordID, 10))
	return 1
}

func (invalidator *recordingInvalidator) Calls() []string {
	invalidator.mu.Lock()
	defer invalidator.mu.Unlock()
	return append([]string(nil), invalidator.calls...)
}

type fixture struct {
	coordinator *showcase.Coordinator
	records     *showcase.MemoryStore
	failing     *failingStore
	artifacts   *storage.Local
	flaky       *flakyArtifacts
	invalidator *recordingInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	artifacts, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	records := showcase.NewMemoryStore()
	failing := &failingStore{RecordStore: records}
	flaky := &flakyArtifacts{Store: artifacts}
	invalidator := &recordingInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	coordinator := showcase.NewCoordinator(failing, flaky, transcode.NewEngine(2), invalidator, keylock.NewLocal(), logger)

	return &fixture{
		coordinator: coordinator,
		records:     records,
		failing:     failing,
		artifacts:   artifacts,
		flaky:       flaky,
		invalidator: invalidator,
	}
}

// files lists every stored artifact relative to the store root.
func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	var found []string
	root := f.artifacts.Root()
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			relative, _ := filepath.Rel(root, path)
			found = append(found, filepath.ToSlash(relative))
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

func jpegUpload(t *testing.T, name string, width, height int) showcase.Upload {
	t.Helper()
	return showcase.Upload{Filename: name, Data: mediatest.JPEG(t, width, height)}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	appError := apperr.As(err)
	require.NotNil(t, appError, "expected an AppError, got %v", err)
	return appError.HTTPStatus
}

// # Create

/*
TestCoordinator_CreateSlider verifies the canonical artifact and record fields.
*/
func TestCoordinator_CreateSlider(t *testing.T) {
	f := newFixture(t)

	record, err := f.coordinator.Create(context.Background(), showcase.CreateInput{
		Kind:   media.CategorySlider,
		Upload: jpegUpload(t, "Beach Sunset.JPG", 1200, 800),
	})
	require.NoError(t, err)

	// 1. Record points at a webp under sliders/
	assert.Equal(t, int64(1), record.ID)
	assert.Regexp(t, `^slider-\d+-\d+\.webp$`, record.StoredName)
	assert.Equal(t, "sliders/"+record.StoredName, record.StoragePath)
	assert.Equal(t, "/uploads/sliders/"+record.StoredName, record.PublicURL)
	assert.Equal(t, "webp", record.Format)
	assert.Equal(t, 1200, pointer.Val(record.Width))
	assert.Equal(t, 800, pointer.Val(record.Height))

	// 2. Display fields
	assert.Equal(t, "beach-sunset.jpg", record.OriginalName)
	assert.Equal(t, "Beach Sunset.JPG", record.Alt)

	// 3. The stored bytes are really WebP
	data, err := f.artifacts.Read(context.Background(), record.StoragePath)
	require.NoError(t, err)
	width, height, format := mediatest.Dimensions(t, data)
	assert.Equal(t, 1200, width)
	assert.Equal(t, 800, height)
	assert.Equal(t, "webp", format)
}

/*
TestCoordinator_CreateValidatesFirst verifies that rejected input leaves no
artifact and no record behind.
*/
func TestCoordinator_CreateValidatesFirst(t *testing.T) {
	tests := []struct {
		name       string
		input      showcase.CreateInput
		wantStatus int
		wantCode   string
	}{
		{
			name:       "featured work without heading",
			input:      showcase.CreateInput{Kind: media.CategoryFeaturedWork, Upload: showcase.Upload{Filename: "a.jpg", Data: []byte{0xff, 0xd8, 0xff}}},
			wantStatus: 400,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "service without description",
			input: showcase.CreateInput{
				Kind:   media.CategoryService,
				Upload: showcase.Upload{Filename: "a.png", Data: []byte("\x89PNG\r\n\x1a\n")},
				Fields: showcase.Fields{Title: pointer.To("Weddings")},
			},
			wantStatus: 400,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "missing file",
			input:      showcase.CreateInput{Kind: media.CategorySlider},
			wantStatus: 400,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "wrong extension",
			input:      showcase.CreateInput{Kind: media.CategorySlider, Upload: showcase.Upload{Filename: "notes.txt", Data: []byte{0xff, 0xd8, 0xff}}},
			wantStatus: 400,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "text disguised as jpeg",
			input:      showcase.CreateInput{Kind: media.CategorySlider, Upload: showcase.Upload{Filename: "photo.jpg", Data: []byte("hello, world")}},
			wantStatus: 400,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "over ten megabytes",
			input:      showcase.CreateInput{Kind: media.CategorySlider, Upload: showcase.Upload{Filename: "huge.jpg", Data: make([]byte, 10<<20+1)}},
			wantStatus: 400,
			wantCode:   "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.coordinator.Create(context.Background(), tt.input)
			require.Error(t, err)

			assert.Equal(t, tt.wantStatus, statusOf(t, err))
			assert.Equal(t, tt.wantCode, apperr.As(err).Code)
			assert.Empty(t, f.files(t))
			assert.Zero(t, f.records.Len(tt.input.Kind))
		})
	}
}

/*
TestCoordinator_CreateRollsBack verifies a failed insert removes the staged artifact.
*/
func TestCoordinator_CreateRollsBack(t *testing.T) {
	f := newFixture(t)
	f.failing.failCreate = true

	_, err := f.coordinator.Create(context.Background(), showcase.CreateInput{
		Kind:   media.CategoryService,
		Upload: jpegUpload(t, "studio.jpg", 64, 64),
		Fields: showcase.Fields{Title: pointer.To("Studio"), Description: pointer.To("Portraits")},
	})
	require.ErrorIs(t, err, errInjected)

	assert.Empty(t, f.files(t))
	assert.Zero(t, f.records.Len(media.CategoryService))
}

/*
TestCoordinator_CreateChildNeedsParent verifies nested images require a live featured work.
*/
func TestCoordinator_CreateChildNeedsParent(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Create(context.Background(), showcase.CreateInput{
		Kind:     media.CategoryFeaturedWorkImage,
		ParentID: pointer.To(int64(99)),
		Upload:   jpegUpload(t, "detail.jpg", 64, 64),
	})
	require.Error(t, err)

	assert.Equal(t, 404, statusOf(t, err))
	assert.Empty(t, f.files(t))
}

// # Replace

/*
TestCoordinator_ReplaceImage verifies the swap removes the old artifact and
invalidates derived images.
*/
func TestCoordinator_ReplaceImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategorySlider,
		Upload: jpegUpload(t, "first.jpg", 600, 400),
		Fields: showcase.Fields{Alt: pointer.To("Harbour at dawn"), Order: pointer.To(2)},
	})
	require.NoError(t, err)

	replacement := showcase.Upload{Filename: "second.png", Data: mediatest.PNG(t, 500, 500)}
	updated, err := f.coordinator.ReplaceImage(ctx, media.CategorySlider, original.ID, replacement, showcase.Fields{})
	require.NoError(t, err)

	// 1. New artifact, same metadata
	assert.NotEqual(t, original.StoragePath, updated.StoragePath)
	assert.Equal(t, 500, pointer.Val(updated.Width))
	assert.Equal(t, "Harbour at dawn", updated.Alt)
	assert.Equal(t, 2, updated.Order)

	// 2. Exactly one artifact remains
	assert.Equal(t, []string{updated.StoragePath}, f.files(t))

	// 3. Derived images were invalidated
	assert.Equal(t, []string{"slider:1"}, f.invalidator.Calls())
}

/*
TestCoordinator_ReplaceRollsBack verifies that a failed update keeps the old
artifact and leaves no orphan.
*/
func TestCoordinator_ReplaceRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategoryFeaturedWork,
		Upload: jpegUpload(t, "cover.jpg", 300, 200),
		Fields: showcase.Fields{Heading: pointer.To("Coastline")},
	})
	require.NoError(t, err)

	f.failing.failUpdate = true
	_, err = f.coordinator.ReplaceImage(ctx, media.CategoryFeaturedWork, original.ID, jpegUpload(t, "new.jpg", 300, 200), showcase.Fields{})
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, []string{original.StoragePath}, f.files(t))

	stored, err := f.records.Find(ctx, media.CategoryFeaturedWork, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.StoragePath, stored.StoragePath)
	assert.Empty(t, f.invalidator.Calls())
}

/*
TestCoordinator_ReplaceUnknownRecord verifies a 404 without side effects.
*/
func TestCoordinator_ReplaceUnknownRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.ReplaceImage(context.Background(), media.CategoryService, 5, jpegUpload(t, "x.jpg", 32, 32), showcase.Fields{})
	require.Error(t, err)

	assert.Equal(t, 404, statusOf(t, err))
	assert.Empty(t, f.files(t))
}

// # Metadata

/*
TestCoordinator_UpdateMetadata verifies partial updates and required fields.
*/
func TestCoordinator_UpdateMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	service, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategoryService,
		Upload: jpegUpload(t, "service.jpg", 64, 64),
		Fields: showcase.Fields{Title: pointer.To("Events"), Description: pointer.To("Corporate events")},
	})
	require.NoError(t, err)

	// 1. Partial update keeps untouched fields
	updated, err := f.coordinator.UpdateMetadata(ctx, media.CategoryService, service.ID, showcase.Fields{Order: pointer.To(7)})
	require.NoError(t, err)
	assert.Equal(t, "Events", updated.Title)
	assert.Equal(t, 7, updated.Order)
	assert.Equal(t, service.StoragePath, updated.StoragePath)

	// 2. Blanking a required field is rejected
	_, err = f.coordinator.UpdateMetadata(ctx, media.CategoryService, service.ID, showcase.Fields{Title: pointer.To("  ")})
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(t, err))

	stored, err := f.records.Find(ctx, media.CategoryService, service.ID)
	require.NoError(t, err)
	assert.Equal(t, "Events", stored.Title)
}

// # Delete

/*
TestCoordinator_DeleteCascades verifies a featured work takes its images and
all their artifacts with it, even when one file is already missing.
*/
func TestCoordinator_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategoryFeaturedWork,
		Upload: jpegUpload(t, "cover.jpg", 120, 80),
		Fields: showcase.Fields{Heading: pointer.To("Alps")},
	})
	require.NoError(t, err)

	var children []*showcase.Record
	for i := 0; i < 3; i++ {
		child, err := f.coordinator.Create(ctx, showcase.CreateInput{
			Kind:     media.CategoryFeaturedWorkImage,
			ParentID: &parent.ID,
			Upload:   jpegUpload(t, "detail.jpg", 80, 80),
			Fields:   showcase.Fields{Order: pointer.To(i)},
		})
		require.NoError(t, err)
		children = append(children, child)
	}
	require.Len(t, f.files(t), 4)

	// 1. One child's file vanished out of band
	require.NoError(t, os.Remove(filepath.Join(f.artifacts.Root(), filepath.FromSlash(children[1].StoragePath))))

	// 2. Delete the parent
	require.NoError(t, f.coordinator.Delete(ctx, media.CategoryFeaturedWork, parent.ID))

	assert.Empty(t, f.files(t))
	assert.Zero(t, f.records.Len(media.CategoryFeaturedWork))
	assert.Zero(t, f.records.Len(media.CategoryFeaturedWorkImage))
	assert.ElementsMatch(t, []string{
		"featured-work:1",
		"featured-work-image:1",
		"featured-work-image:2",
		"featured-work-image:3",
	}, f.invalidator.Calls())

	// 3. A second delete is a 404
	err = f.coordinator.Delete(ctx, media.CategoryFeaturedWork, parent.ID)
	assert.Equal(t, 404, statusOf(t, err))
}

/*
TestCoordinator_DeleteChild verifies an image is only deleted through its own parent.
*/
func TestCoordinator_DeleteChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var parents []*showcase.Record
	for _, heading := range []string{"North", "South"} {
		parent, err := f.coordinator.Create(ctx, showcase.CreateInput{
			Kind:   media.CategoryFeaturedWork,
			Upload: jpegUpload(t, "cover.jpg", 64, 64),
			Fields: showcase.Fields{Heading: pointer.To(heading)},
		})
		require.NoError(t, err)
		parents = append(parents, parent)
	}

	child, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:     media.CategoryFeaturedWorkImage,
		ParentID: &parents[0].ID,
		Upload:   jpegUpload(t, "detail.jpg", 64, 64),
	})
	require.NoError(t, err)

	err = f.coordinator.DeleteChild(ctx, parents[1].ID, child.ID)
	assert.Equal(t, 404, statusOf(t, err))

	require.NoError(t, f.coordinator.DeleteChild(ctx, parents[0].ID, child.ID))
	assert.Len(t, f.files(t), 2)

	images, err := f.coordinator.ListChildren(ctx, parents[0].ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

/*
TestCoordinator_DeleteParentBlocksNewChild verifies that an image created while
its featured work is being deleted cannot leave an orphaned artifact.
*/
func TestCoordinator_DeleteParentBlocksNewChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategoryFeaturedWork,
		Upload: jpegUpload(t, "cover.jpg", 64, 64),
		Fields: showcase.Fields{Heading: pointer.To("Glacier")},
	})
	require.NoError(t, err)

	// 1. An image upload arrives after the delete has listed the children
	created := make(chan error, 1)
	f.failing.onListChildren = func() {
		go func() {
			_, err := f.coordinator.Create(ctx, showcase.CreateInput{
				Kind:     media.CategoryFeaturedWorkImage,
				ParentID: &parent.ID,
				Upload:   jpegUpload(t, "late.jpg", 64, 64),
			})
			created <- err
		}()
		time.Sleep(50 * time.Millisecond)
	}

	require.NoError(t, f.coordinator.Delete(ctx, media.CategoryFeaturedWork, parent.ID))

	// 2. The upload waited for the delete and then found no parent
	err = <-created
	require.Error(t, err)
	assert.Equal(t, 404, statusOf(t, err))

	assert.Empty(t, f.files(t))
	assert.Zero(t, f.records.Len(media.CategoryFeaturedWorkImage))
}

/*
TestCoordinator_StorageDeleteFailureIsNotFatal verifies that a storage error
while removing an artifact is logged and the record operation still completes.
*/
func TestCoordinator_StorageDeleteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slider, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategorySlider,
		Upload: jpegUpload(t, "first.jpg", 64, 64),
	})
	require.NoError(t, err)

	f.flaky.failDelete = true

	// 1. Replace keeps the new artifact even though the old one stays behind
	updated, err := f.coordinator.ReplaceImage(ctx, media.CategorySlider, slider.ID, jpegUpload(t, "second.jpg", 32, 32), showcase.Fields{})
	require.NoError(t, err)
	assert.NotEqual(t, slider.StoragePath, updated.StoragePath)

	stored, err := f.records.Find(ctx, media.CategorySlider, slider.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.StoragePath, stored.StoragePath)
	assert.ElementsMatch(t, []string{slider.StoragePath, updated.StoragePath}, f.files(t))

	// 2. Delete removes the row even though the file cannot be removed
	require.NoError(t, f.coordinator.Delete(ctx, media.CategorySlider, slider.ID))
	assert.Zero(t, f.records.Len(media.CategorySlider))
	assert.Len(t, f.files(t), 2)
	assert.Equal(t, []string{"slider:1", "slider:1"}, f.invalidator.Calls())
}

// # Reads

/*
TestCoordinator_ListOrdering verifies order ascending with newest first among equals,
and that featured works embed their images oldest first.
*/
func TestCoordinator_ListOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, entry := range []struct {
		alt   string
		order int
	}{{"late", 5}, {"first-equal", 1}, {"second-equal", 1}} {
		_, err := f.coordinator.Create(ctx, showcase.CreateInput{
			Kind:   media.CategorySlider,
			Upload: jpegUpload(t, "s.jpg", 32, 32),
			Fields: showcase.Fields{Alt: pointer.To(entry.alt), Order: pointer.To(entry.order)},
		})
		require.NoError(t, err)
	}

	sliders, err := f.coordinator.List(ctx, media.CategorySlider)
	require.NoError(t, err)

	var alts []string
	for _, slider := range sliders {
		alts = append(alts, slider.Alt)
	}
	assert.Equal(t, []string{"second-equal", "first-equal", "late"}, alts)

	// Featured work children
	parent, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategoryFeaturedWork,
		Upload: jpegUpload(t, "c.jpg", 32, 32),
		Fields: showcase.Fields{Heading: pointer.To("Series")},
	})
	require.NoError(t, err)

	for range 2 {
		_, err := f.coordinator.Create(ctx, showcase.CreateInput{
			Kind:     media.CategoryFeaturedWorkImage,
			ParentID: &parent.ID,
			Upload:   jpegUpload(t, "i.jpg", 32, 32),
		})
		require.NoError(t, err)
	}

	loaded, err := f.coordinator.Get(ctx, media.CategoryFeaturedWork, parent.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Images, 2)
	assert.Less(t, loaded.Images[0].ID, loaded.Images[1].ID)
}

/*
TestCoordinator_ResolveArtifact verifies the cache-facing lookup.
*/
func TestCoordinator_ResolveArtifact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.coordinator.Create(ctx, showcase.CreateInput{
		Kind:   media.CategorySlider,
		Upload: jpegUpload(t, "s.jpg", 32, 32),
	})
	require.NoError(t, err)

	artifact, err := f.coordinator.ResolveArtifact(ctx, media.CategorySlider, record.ID)
	require.NoError(t, err)
	assert.Equal(t, media.CategorySlider, artifact.Category)
	assert.Equal(t, record.StoragePath, artifact.StoragePath)

	_, err = f.coordinator.ResolveArtifact(ctx, media.CategoryService, record.ID)
	assert.Equal(t, 404, statusOf(t, err))
}
