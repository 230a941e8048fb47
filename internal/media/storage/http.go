// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/atelier/internal/media/transcode"
	"github.com/taibuivan/atelier/internal/platform/apperr"
	"github.com/taibuivan/atelier/internal/platform/constants"
	"github.com/taibuivan/atelier/internal/platform/respond"
)

// Handler serves canonical artifacts by public URL, regardless of backend.
type Handler struct {
	store Store
}

// NewHandler creates an artifact Handler over store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Routes returns a router to be mounted under /uploads.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/*", handler.serveArtifact)
	return router
}

/*
GET /uploads/{key...}.

Description: Streams a stored canonical artifact with a one-year cache lifetime.

Response:
  - 200: artifact bytes
  - 404: NotFound: Unknown or invalid key
*/
func (handler *Handler) serveArtifact(writer http.ResponseWriter, request *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(request, "*"), "/")

	object, err := handler.store.Open(request.Context(), key)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) {
		respond.Error(writer, request, apperr.NotFound("File"))
		return
	}
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}
	defer object.Close()

	if format, ok := transcode.ParseFormat(strings.TrimPrefix(path.Ext(key), ".")); ok {
		writer.Header().Set(constants.HeaderContentType, format.ContentType())
	}
	writer.Header().Set(constants.HeaderCacheControl, constants.ImmutableCacheControl)

	http.ServeContent(writer, request, path.Base(key), object.ModTime, object)
}
