// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package showcase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/media/storage"
	"github.com/taibuivan/atelier/internal/media/transcode"
	"github.com/taibuivan/atelier/internal/platform/apperr"
	"github.com/taibuivan/atelier/internal/platform/constants"
	"github.com/taibuivan/atelier/internal/platform/keylock"
	"github.com/taibuivan/atelier/internal/platform/validate"
	"github.com/taibuivan/atelier/pkg/slug"
)

// # Collaborators

// Encoder converts an upload into the canonical format.
type Encoder interface {
	Transcode(context context.Context, source []byte, options transcode.Options) (*transcode.Result, error)
}

// Invalidator drops derived images of a record.
type Invalidator interface {
	Invalidate(category media.Category, recordID int64) int
}

// Coordinator pairs record changes with artifact writes and removals.
type Coordinator struct {
	records     RecordStore
	artifacts   storage.Store
	encoder     Encoder
	derivatives Invalidator
	locks       keylock.Locker
	namer       storage.Namer
	logger      *slog.Logger
}

// NewCoordinator wires the lifecycle flows. derivatives may be nil when no cache is running.
func NewCoordinator(records RecordStore, artifacts storage.Store, encoder Encoder, derivatives Invalidator, locks keylock.Locker, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		records:     records,
		artifacts:   artifacts,
		encoder:     encoder,
		derivatives: derivatives,
		locks:       locks,
		namer:       storage.NewNamer(),
		logger:      logger,
	}
}

// CreateInput describes a new record and its image.
type CreateInput struct {
	Kind     media.Category
	ParentID *int64
	Upload   Upload
	Fields   Fields
}

// # Reads

// Get returns one record. A featured work carries its ordered images.
func (coordinator *Coordinator) Get(context context.Context, kind media.Category, id int64) (*Record, error) {
	record, err := coordinator.records.Find(context, kind, id)
	if err != nil {
		return nil, err
	}

	if kind == media.CategoryFeaturedWork {
		if record.Images, err = coordinator.records.ListChildren(context, id); err != nil {
			return nil, err
		}
	}

	return record, nil
}

// List returns every record of a kind in display order.
func (coordinator *Coordinator) List(context context.Context, kind media.Category) ([]*Record, error) {
	records, err := coordinator.records.List(context, kind)
	if err != nil {
		return nil, err
	}

	if kind == media.CategoryFeaturedWork {
		for _, record := range records {
			if record.Images, err = coordinator.records.ListChildren(context, record.ID); err != nil {
				return nil, err
			}
		}
	}

	return records, nil
}

// ListChildren returns a featured work's images, or NotFound for an unknown parent.
func (coordinator *Coordinator) ListChildren(context context.Context, parentID int64) ([]*Record, error) {
	if _, err := coordinator.records.Find(context, media.CategoryFeaturedWork, parentID); err != nil {
		return nil, err
	}
	return coordinator.records.ListChildren(context, parentID)
}

// ResolveArtifact returns the canonical artifact of a record.
func (coordinator *Coordinator) ResolveArtifact(context context.Context, category media.Category, recordID int64) (*media.Artifact, error) {
	return NewResolver(coordinator.records).ResolveArtifact(context, category, recordID)
}

// Resolver is the read-only view of a [RecordStore] handed to the derivative
// cache. It exists so the cache can be built before the [Coordinator] that
// invalidates it.
type Resolver struct {
	records RecordStore
}

func NewResolver(records RecordStore) *Resolver {
	return &Resolver{records: records}
}

// ResolveArtifact looks the record up under category. A record of another
// kind with the same id is NotFound.
func (resolver *Resolver) ResolveArtifact(context context.Context, category media.Category, recordID int64) (*media.Artifact, error) {
	record, err := resolver.records.Find(context, category, recordID)
	if err != nil {
		return nil, err
	}

	artifact := record.Artifact
	artifact.Category = category
	return &artifact, nil
}

// # Lifecycle

/*
Create stores a new record backed by a freshly transcoded artifact.

Parameters:
  - requestContext: Request scope
  - input: Kind, optional parent, upload and metadata

Returns:
  - *Record: The persisted record
  - error: ValidationError, PayloadTooLarge, NotFound (parent), TranscodeFailed or storage errors
*/
func (coordinator *Coordinator) Create(requestContext context.Context, input CreateInput) (*Record, error) {

	// 1. Validate everything before touching storage
	if err := ValidateUpload(input.Upload); err != nil {
		return nil, err
	}

	record := &Record{Kind: input.Kind, ParentID: input.ParentID}
	input.Fields.apply(record)
	if record.Kind == media.CategorySlider && strings.TrimSpace(record.Alt) == "" {
		record.Alt = defaultAlt(input.Upload.Filename)
	}

	if err := validateRecord(record); err != nil {
		return nil, err
	}

	// 2. A nested image needs a live parent, held until the row is committed
	if record.Kind == media.CategoryFeaturedWorkImage {
		if record.ParentID == nil {
			return nil, validate.RequiredError(FieldParentID, "This field is required")
		}

		release, err := coordinator.lock(requestContext, media.CategoryFeaturedWork, *record.ParentID)
		if err != nil {
			return nil, err
		}
		defer release()

		if _, err := coordinator.records.Find(requestContext, media.CategoryFeaturedWork, *record.ParentID); err != nil {
			return nil, err
		}
	}

	// 3. Stage the artifact
	artifact, err := coordinator.stage(requestContext, record.Kind, input.Upload)
	if err != nil {
		return nil, err
	}
	record.Artifact = artifact

	// 4. Commit, or roll the artifact back
	if err := coordinator.records.Create(requestContext, record); err != nil {
		coordinator.discard(requestContext, artifact, "artifact_rolled_back")
		return nil, err
	}

	coordinator.logger.Info("record_created",
		slog.String("kind", string(record.Kind)),
		slog.Int64("record_id", record.ID),
		slog.String("path", artifact.StoragePath),
	)

	return record, nil
}

/*
ReplaceImage swaps a record's artifact for a new upload.

Description: The previous artifact is only removed after the record points at
the new one. If the update fails the new artifact is removed and the record is
left untouched. Derived images are invalidated on success.

Parameters:
  - requestContext: Request scope
  - kind, id: Record identity
  - upload: The replacement image
  - fields: Optional metadata applied in the same update

Returns:
  - *Record: The updated record
  - error: ValidationError, NotFound, TranscodeFailed or storage errors
*/
func (coordinator *Coordinator) ReplaceImage(requestContext context.Context, kind media.Category, id int64, upload Upload, fields Fields) (*Record, error) {
	if err := ValidateUpload(upload); err != nil {
		return nil, err
	}

	// 1. Load and validate the resulting metadata
	record, release, err := coordinator.acquire(requestContext, kind, id)
	if err != nil {
		return nil, err
	}
	defer release()

	fields.apply(record)
	if err := validateRecord(record); err != nil {
		return nil, err
	}

	// 2. Stage the new artifact next to the old one
	previous := record.Artifact

	staged, err := coordinator.stage(requestContext, kind, upload)
	if err != nil {
		return nil, err
	}
	record.Artifact = staged

	// 3. Commit, or keep the old artifact
	if err := coordinator.records.Update(requestContext, record); err != nil {
		coordinator.discard(requestContext, staged, "artifact_rolled_back")
		return nil, err
	}

	// 4. Retire the old artifact and everything derived from it
	coordinator.discard(requestContext, previous, "artifact_replaced")
	invalidated := coordinator.invalidate(kind, id)

	coordinator.logger.Info("record_image_replaced",
		slog.String("kind", string(kind)),
		slog.Int64("record_id", id),
		slog.String("path", staged.StoragePath),
		slog.Int("derivatives_invalidated", invalidated),
	)

	return record, nil
}

// UpdateMetadata changes text fields and order without touching the artifact.
func (coordinator *Coordinator) UpdateMetadata(requestContext context.Context, kind media.Category, id int64, fields Fields) (*Record, error) {
	record, release, err := coordinator.acquire(requestContext, kind, id)
	if err != nil {
		return nil, err
	}
	defer release()

	fields.apply(record)
	if err := validateRecord(record); err != nil {
		return nil, err
	}

	if err := coordinator.records.Update(requestContext, record); err != nil {
		return nil, err
	}

	coordinator.logger.Info("record_updated",
		slog.String("kind", string(kind)),
		slog.Int64("record_id", id),
	)

	return record, nil
}

/*
Delete removes a record together with its artifact. Deleting a featured work
also removes the artifacts of its images; their rows cascade.

Description: Artifacts that are already missing are not an error. Other
storage failures are logged and do not block the row deletion.
*/
func (coordinator *Coordinator) Delete(requestContext context.Context, kind media.Category, id int64) error {
	record, release, err := coordinator.acquire(requestContext, kind, id)
	if err != nil {
		return err
	}
	defer release()

	// 1. Children first, so no image outlives its parent's artifact
	var children []*Record
	if kind == media.CategoryFeaturedWork {
		if children, err = coordinator.records.ListChildren(requestContext, id); err != nil {
			return err
		}
	}

	for _, child := range children {
		coordinator.discard(requestContext, child.Artifact, "artifact_deleted")
	}
	coordinator.discard(requestContext, record.Artifact, "artifact_deleted")

	// 2. Rows
	if err := coordinator.records.Delete(requestContext, kind, id); err != nil {
		return err
	}

	// 3. Derived images
	invalidated := coordinator.invalidate(kind, id)
	for _, child := range children {
		invalidated += coordinator.invalidate(media.CategoryFeaturedWorkImage, child.ID)
	}

	coordinator.logger.Warn("record_deleted",
		slog.String("kind", string(kind)),
		slog.Int64("record_id", id),
		slog.Int("children", len(children)),
		slog.Int("derivatives_invalidated", invalidated),
	)

	return nil
}

// DeleteChild removes one image of a featured work. The image must belong to parentID.
func (coordinator *Coordinator) DeleteChild(requestContext context.Context, parentID, imageID int64) error {
	image, err := coordinator.records.Find(requestContext, media.CategoryFeaturedWorkImage, imageID)
	if err != nil {
		return err
	}
	if image.ParentID == nil || *image.ParentID != parentID {
		return apperr.NotFound(media.CategoryFeaturedWorkImage.Label())
	}

	return coordinator.Delete(requestContext, media.CategoryFeaturedWorkImage, imageID)
}

// # Artifact Helpers

// stage transcodes an upload to canonical WebP and writes it under a new name.
func (coordinator *Coordinator) stage(requestContext context.Context, kind media.Category, upload Upload) (media.Artifact, error) {
	result, err := coordinator.encoder.Transcode(requestContext, upload.Data, transcode.Options{
		Quality: constants.CanonicalQuality,
		Format:  transcode.FormatWebP,
	})
	if err != nil {
		coordinator.logger.Error("artifact_transcode_failed",
			slog.String("kind", string(kind)),
			slog.String("original_name", upload.Filename),
			slog.Any("error", err),
		)
		return media.Artifact{}, apperr.TranscodeFailed(err)
	}

	storedName := coordinator.namer.Name(kind, transcode.FormatWebP.Extension())
	artifact := media.NewArtifact(kind, storedName, slug.Filename(upload.Filename), string(transcode.FormatWebP), result.Width, result.Height)

	if err := coordinator.artifacts.Write(requestContext, artifact.StoragePath, result.Data, transcode.FormatWebP.ContentType()); err != nil {
		return media.Artifact{}, apperr.Internal(fmt.Errorf("showcase: writing artifact %s: %w", artifact.StoragePath, err))
	}

	coordinator.logger.Debug("artifact_written",
		slog.String("path", artifact.StoragePath),
		slog.Int("width", result.Width),
		slog.Int("height", result.Height),
		slog.Int("bytes", len(result.Data)),
	)

	return artifact, nil
}

// discard deletes an artifact, tolerating one that is already gone.
func (coordinator *Coordinator) discard(requestContext context.Context, artifact media.Artifact, event string) {
	if artifact.StoragePath == "" {
		return
	}

	err := coordinator.artifacts.Delete(context.WithoutCancel(requestContext), artifact.StoragePath)
	switch {
	case err == nil:
		coordinator.logger.Debug(event, slog.String("path", artifact.StoragePath))
	case errors.Is(err, storage.ErrNotFound):
		coordinator.logger.Debug("artifact_already_missing", slog.String("path", artifact.StoragePath))
	default:
		coordinator.logger.Warn("artifact_delete_failed",
			slog.String("path", artifact.StoragePath),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}

func (coordinator *Coordinator) invalidate(kind media.Category, id int64) int {
	if coordinator.derivatives == nil {
		return 0
	}
	return coordinator.derivatives.Invalidate(kind, id)
}

/*
acquire locks a record and reads it under the lock.

A featured-work image is locked after its parent. Creating an image holds the
same parent key, as does deleting the featured work, so no image can be
written while its parent's artifacts are being removed.

Returns:
  - *Record: The record as read under the lock
  - func(): Releases every lock taken, child first
  - error: NotFound, or ServiceUnavailable when a lock cannot be taken
*/
func (coordinator *Coordinator) acquire(requestContext context.Context, kind media.Category, id int64) (*Record, func(), error) {
	var held []func()
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	if kind == media.CategoryFeaturedWorkImage {
		current, err := coordinator.records.Find(requestContext, kind, id)
		if err != nil {
			return nil, nil, err
		}
		if current.ParentID != nil {
			unlock, err := coordinator.lock(requestContext, media.CategoryFeaturedWork, *current.ParentID)
			if err != nil {
				return nil, nil, err
			}
			held = append(held, unlock)
		}
	}

	unlock, err := coordinator.lock(requestContext, kind, id)
	if err != nil {
		release()
		return nil, nil, err
	}
	held = append(held, unlock)

	record, err := coordinator.records.Find(requestContext, kind, id)
	if err != nil {
		release()
		return nil, nil, err
	}

	return record, release, nil
}

// lock takes the distributed lock of one record key.
func (coordinator *Coordinator) lock(requestContext context.Context, kind media.Category, id int64) (func(), error) {
	release, err := coordinator.locks.Lock(requestContext, fmt.Sprintf("%s:%d", kind, id))
	if err == nil {
		return release, nil
	}
	if apperr.IsAppError(err) {
		return nil, err
	}
	return nil, apperr.ServiceUnavailable("Record is busy, please retry")
}

// defaultAlt derives slider alt text from the uploaded file's name.
func defaultAlt(filename string) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return DefaultSliderAlt
	}
	return name
}
