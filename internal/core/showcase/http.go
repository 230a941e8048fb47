// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package showcase

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/platform/apperr"
	"github.com/taibuivan/atelier/internal/platform/constants"
	"github.com/taibuivan/atelier/internal/platform/middleware"
	requestutil "github.com/taibuivan/atelier/internal/platform/request"
	"github.com/taibuivan/atelier/internal/platform/respond"
	"github.com/taibuivan/atelier/internal/platform/sec"
	"github.com/taibuivan/atelier/internal/platform/validate"
)

// Handler exposes the record API for every showcase kind.
type Handler struct {
	coordinator *Coordinator
}

func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// RegisterRoutes mounts /sliders, /featured-works and /services on router.
// Reads are public. Writes need an editor token and deletes an admin token.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/sliders", func(kindRoute chi.Router) {
		handler.registerKind(kindRoute, media.CategorySlider)
	})

	router.Route("/featured-works", func(kindRoute chi.Router) {
		handler.registerKind(kindRoute, media.CategoryFeaturedWork)

		kindRoute.Get("/{id}/images", handler.listChildren)
		kindRoute.With(middleware.RequireRole(sec.RoleEditor)).Post("/{id}/images", handler.createChild)
		kindRoute.With(middleware.RequireRole(sec.RoleAdmin)).Delete("/{id}/images/{imageId}", handler.deleteChild)
	})

	router.Route("/services", func(kindRoute chi.Router) {
		handler.registerKind(kindRoute, media.CategoryService)
	})
}

func (handler *Handler) registerKind(router chi.Router, kind media.Category) {
	// Public
	router.Get("/", handler.list(kind))
	router.Get("/{id}", handler.get(kind))

	// Editors
	router.Group(func(editorRoute chi.Router) {
		editorRoute.Use(middleware.RequireRole(sec.RoleEditor))

		editorRoute.Post("/", handler.create(kind))
		editorRoute.Put("/{id}", handler.updateMetadata(kind))
		editorRoute.Put("/{id}/image", handler.replaceImage(kind))

		// Admin strict only
		editorRoute.With(middleware.RequireRole(sec.RoleAdmin)).Delete("/{id}", handler.deleteRecord(kind))
	})
}

// # Reads

/*
GET /api/{kind}.

Description: Lists records ordered by order ascending, newest first among equals.
Featured works embed their images.

Response:
  - 200: []Record
*/
func (handler *Handler) list(kind media.Category) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		records, err := handler.coordinator.List(request.Context(), kind)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, records)
	}
}

/*
GET /api/{kind}/{id}.

Response:
  - 200: Record
  - 400: ValidationError: Malformed id
  - 404: NotFound
*/
func (handler *Handler) get(kind media.Category) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		id, err := requestutil.Int64ID(request, "id")
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		record, err := handler.coordinator.Get(request.Context(), kind, id)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, record)
	}
}

/*
GET /api/featured-works/{id}/images.

Response:
  - 200: []Record ordered by order, oldest first among equals
  - 404: NotFound: Unknown featured work
*/
func (handler *Handler) listChildren(writer http.ResponseWriter, request *http.Request) {
	parentID, err := requestutil.Int64ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	images, err := handler.coordinator.ListChildren(request.Context(), parentID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, images)
}

// # Writes

/*
POST /api/{kind}.

Description: Uploads a new record. The body is multipart/form-data with the
image in field "image" plus the kind's text fields and an optional "order".

Response:
  - 201: Record
  - 400: ValidationError or PayloadTooLarge
  - 500: TranscodeFailed
*/
func (handler *Handler) create(kind media.Category) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		upload, fields, err := readMultipart(writer, request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		record, err := handler.coordinator.Create(request.Context(), CreateInput{
			Kind:   kind,
			Upload: upload,
			Fields: fields,
		})
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.Created(writer, record)
	}
}

/*
POST /api/featured-works/{id}/images.

Description: Uploads an internal image of a featured work.

Response:
  - 201: Record
  - 404: NotFound: Unknown featured work
*/
func (handler *Handler) createChild(writer http.ResponseWriter, request *http.Request) {
	parentID, err := requestutil.Int64ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	upload, fields, err := readMultipart(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.coordinator.Create(request.Context(), CreateInput{
		Kind:     media.CategoryFeaturedWorkImage,
		ParentID: &parentID,
		Upload:   upload,
		Fields:   fields,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, record)
}

/*
PUT /api/{kind}/{id}.

Description: Updates text fields and order from a JSON body. The image is untouched.

Response:
  - 200: Record
  - 400: ValidationError
  - 404: NotFound
*/
func (handler *Handler) updateMetadata(kind media.Category) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		id, err := requestutil.Int64ID(request, "id")
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		var fields Fields
		if err := requestutil.DecodeJSON(request, &fields); err != nil {
			respond.Error(writer, request, err)
			return
		}

		record, err := handler.coordinator.UpdateMetadata(request.Context(), kind, id, fields)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, record)
	}
}

/*
PUT /api/{kind}/{id}/image.

Description: Replaces the record's image. Text fields sent alongside are applied too.

Response:
  - 200: Record
  - 400: ValidationError or PayloadTooLarge
  - 404: NotFound
*/
func (handler *Handler) replaceImage(kind media.Category) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		id, err := requestutil.Int64ID(request, "id")
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		upload, fields, err := readMultipart(writer, request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		record, err := handler.coordinator.ReplaceImage(request.Context(), kind, id, upload, fields)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, record)
	}
}

/*
DELETE /api/{kind}/{id}.

Response:
  - 204: Deleted, including a featured work's images
  - 404: NotFound
*/
func (handler *Handler) deleteRecord(kind media.Category) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		id, err := requestutil.Int64ID(request, "id")
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		if err := handler.coordinator.Delete(request.Context(), kind, id); err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.NoContent(writer)
	}
}

/*
DELETE /api/featured-works/{id}/images/{imageId}.

Response:
  - 204: Deleted
  - 404: NotFound: Unknown image, or image of another featured work
*/
func (handler *Handler) deleteChild(writer http.ResponseWriter, request *http.Request) {
	parentID, err := requestutil.Int64ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	imageID, err := requestutil.Int64ID(request, "imageId")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.coordinator.DeleteChild(request.Context(), parentID, imageID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Multipart

// readMultipart extracts the image and text fields of an upload form. A
// missing image yields an empty Upload so that validation reports it.
func readMultipart(writer http.ResponseWriter, request *http.Request) (Upload, Fields, error) {
	limit := int64(constants.MaxUploadBytes + constants.MultipartOverheadBytes)
	request.Body = http.MaxBytesReader(writer, request.Body, limit)

	if err := request.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Upload{}, Fields{}, apperr.PayloadTooLarge(constants.MaxUploadBytes)
		}
		return Upload{}, Fields{}, validate.RequiredError(FieldImage, "Expected a multipart/form-data body")
	}
	defer request.MultipartForm.RemoveAll()

	fields, err := formFields(request)
	if err != nil {
		return Upload{}, Fields{}, err
	}

	file, header, err := request.FormFile(constants.UploadFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return Upload{}, fields, nil
	}
	if err != nil {
		return Upload{}, Fields{}, validate.RequiredError(FieldImage, "Unreadable image part")
	}
	defer file.Close()

	// One byte past the limit is enough for validation to reject it.
	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadBytes+1))
	if err != nil {
		return Upload{}, Fields{}, apperr.Internal(err)
	}

	return Upload{Filename: header.Filename, Data: data}, fields, nil
}

// formFields maps present form values onto Fields. Absent keys stay nil.
func formFields(request *http.Request) (Fields, error) {
	values := request.MultipartForm.Value
	lookup := func(key string) *string {
		if entries, ok := values[key]; ok && len(entries) > 0 {
			value := entries[0]
			return &value
		}
		return nil
	}

	fields := Fields{
		Alt:         lookup(FieldAlt),
		Heading:     lookup(FieldHeading),
		Title:       lookup(FieldTitle),
		Description: lookup(FieldDescription),
	}

	if raw := lookup(FieldOrder); raw != nil && strings.TrimSpace(*raw) != "" {
		order, err := strconv.Atoi(strings.TrimSpace(*raw))
		if err != nil {
			return Fields{}, validate.RequiredError(FieldOrder, "Must be an integer")
		}
		fields.Order = &order
	}

	return fields, nil
}
