// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package derivative

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/media/negotiate"
	"github.com/taibuivan/atelier/internal/platform/constants"
	requestutil "github.com/taibuivan/atelier/internal/platform/request"
	"github.com/taibuivan/atelier/internal/platform/respond"
	"github.com/taibuivan/atelier/internal/platform/validate"
)

// Handler exposes the on-demand derivative endpoint.
type Handler struct {
	cache *Cache
}

// NewHandler creates a derivative Handler.
func NewHandler(cache *Cache) *Handler {
	return &Handler{cache: cache}
}

// Routes returns a router to be mounted under /images.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/{category}/{recordId}/{sizeTier}", handler.serveImage)
	return router
}

/*
GET /images/{category}/{recordId}/{sizeTier}.

Description: Streams a size-bounded rendition of a record's image, encoded as
WebP when the Accept header allows it and JPEG otherwise.

Request:
  - category: slider | featured-work | featured-work-image | service
  - recordId: int64
  - sizeTier: thumb | medium | large | original

Response:
  - 200: image bytes with a one-year immutable Cache-Control
  - 400: ValidationError: Unknown category, tier or malformed id
  - 404: NotFound: Record or backing file missing
*/
func (handler *Handler) serveImage(writer http.ResponseWriter, request *http.Request) {
	validator := &validate.Validator{}

	category, categoryOK := media.ParseCategory(requestutil.Param(request, "category"))
	validator.Custom("category", !categoryOK, "Must be one of: "+joinCategories())

	tier, tierOK := media.ParseTier(requestutil.Param(request, "sizeTier"))
	validator.Custom("sizeTier", !tierOK, "Must be one of: thumb, medium, large, original")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	recordID, err := requestutil.Int64ID(request, "recordId")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	wantsWebP := negotiate.WantsWebP(request.Header.Get(constants.HeaderAccept))

	derivative, err := handler.cache.GetOrCreate(request.Context(), category, recordID, tier, wantsWebP)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer derivative.Close()

	header := writer.Header()
	header.Set(constants.HeaderContentType, derivative.Format.ContentType())
	header.Set(constants.HeaderCacheControl, constants.ImmutableCacheControl)
	header.Add(constants.HeaderVary, constants.HeaderAccept)

	http.ServeContent(writer, request, "", derivative.ModTime, derivative)
}

func joinCategories() string {
	names := make([]string, 0, len(media.Categories))
	for _, category := range media.Categories {
		names = append(names, string(category))
	}
	return strings.Join(names, ", ")
}
