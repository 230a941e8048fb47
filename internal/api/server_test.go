// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/atelier/internal/api"
	"github.com/taibuivan/atelier/internal/core/showcase"
	"github.com/taibuivan/atelier/internal/media/derivative"
	"github.com/taibuivan/atelier/internal/media/mediatest"
	"github.com/taibuivan/atelier/internal/media/storage"
	"github.com/taibuivan/atelier/internal/media/transcode"
	"github.com/taibuivan/atelier/internal/platform/config"
	"github.com/taibuivan/atelier/internal/platform/constants"
	"github.com/taibuivan/atelier/internal/platform/keylock"
	"github.com/taibuivan/atelier/internal/platform/sec"
)

type serverFixture struct {
	router http.Handler
	root   string
	editor string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	root := t.TempDir()
	artifacts, err := storage.NewLocal(filepath.Join(root, "uploads"))
	require.NoError(t, err)

	records := showcase.NewMemoryStore()
	engine := transcode.NewEngine(2)

	cache, err := derivative.New(showcase.NewResolver(records), artifacts, engine, logger, derivative.Options{
		Directory: filepath.Join(root, "temp"),
		Capacity:  10,
	})
	require.NoError(t, err)

	coordinator := showcase.NewCoordinator(records, artifacts, engine, cache, keylock.NewLocal(), logger)

	tokens, err := sec.NewTokenService("server-test-secret", constants.AuthIssuer)
	require.NoError(t, err)
	editor, err := tokens.GenerateAccessToken("u-1", "curator", string(sec.RoleEditor), time.Hour)
	require.NoError(t, err)

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{}, logger)
	server := api.NewServer(ctx, &config.Config{ServerPort: "0", Environment: "test"}, logger, tokens, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Showcase:  showcase.NewHandler(coordinator),
		Images:    derivative.NewHandler(cache),
		Uploads:   storage.NewHandler(artifacts),
	})

	return &serverFixture{router: server.Handler(), root: root, editor: editor}
}

func (f *serverFixture) upload(t *testing.T, method, target, filename string, image []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(constants.UploadFormField, filename)
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(method, target, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+f.editor)
	return f.serve(request)
}

func (f *serverFixture) serve(request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeRecord(t *testing.T, recorder *httptest.ResponseRecorder) showcase.Record {
	t.Helper()
	var envelope struct {
		Data showcase.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope), recorder.Body.String())
	return envelope.Data
}

/*
TestServer_SliderLifecycle drives an upload, derivative reads and a replacement
through the fully wired router.
*/
func TestServer_SliderLifecycle(t *testing.T) {
	f := newServerFixture(t)

	// 1. Upload a large JPEG
	recorder := f.upload(t, http.MethodPost, "/api/sliders", "Big Photo.JPG", mediatest.JPEG(t, 3000, 2000))
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	created := decodeRecord(t, recorder)
	assert.Equal(t, "webp", created.Format)
	assert.Equal(t, 3000, *created.Width)
	assert.Equal(t, "big-photo.jpg", created.OriginalName)

	// 2. The canonical artifact is served under /uploads
	recorder = f.serve(httptest.NewRequest(http.MethodGet, created.PublicURL, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "image/webp", recorder.Header().Get("Content-Type"))

	// 3. A thumbnail is negotiated to WebP
	request := httptest.NewRequest(http.MethodGet, "/images/slider/1/thumb", nil)
	request.Header.Set("Accept", "image/webp,*/*")
	recorder = f.serve(request)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	width, height, format := mediatest.Dimensions(t, recorder.Body.Bytes())
	assert.Equal(t, "webp", format)
	assert.LessOrEqual(t, width, 300)
	assert.LessOrEqual(t, height, 300)

	// 4. Replace with a square PNG
	recorder = f.upload(t, http.MethodPut, "/api/sliders/1/image", "square.png", mediatest.PNG(t, 500, 500))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	replaced := decodeRecord(t, recorder)
	assert.NotEqual(t, created.StoragePath, replaced.StoragePath)

	_, err := os.Stat(filepath.Join(f.root, "uploads", filepath.FromSlash(created.StoragePath)))
	assert.True(t, os.IsNotExist(err), "previous artifact must be removed")

	// 5. The thumbnail reflects the new image
	request = httptest.NewRequest(http.MethodGet, "/images/slider/1/thumb", nil)
	request.Header.Set("Accept", "image/webp")
	recorder = f.serve(request)
	require.Equal(t, http.StatusOK, recorder.Code)

	width, height, _ = mediatest.Dimensions(t, recorder.Body.Bytes())
	assert.Equal(t, 300, width)
	assert.Equal(t, 300, height)
}

/*
TestServer_Probes verifies the unauthenticated health endpoints.
*/
func TestServer_Probes(t *testing.T) {
	f := newServerFixture(t)

	for _, target := range []string{"/health", "/ready", "/api/health"} {
		recorder := f.serve(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, recorder.Code, target)
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	recorder := f.serve(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "ready", envelope.Data[constants.FieldStatus])
	assert.Contains(t, envelope.Data, constants.FieldChecks)
}

/*
TestHealth_ReadinessDegraded verifies a failing dependency yields 503.
*/
func TestHealth_ReadinessDegraded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error { return nil },
		CheckStorage:  func() error { return assert.AnError },
	}, logger)

	recorder := httptest.NewRecorder()
	readiness(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	var envelope struct {
		Data struct {
			Status string `json:"status"`
			Checks []struct {
				Name string `json:"name"`
				OK   bool   `json:"ok"`
			} `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "degraded", envelope.Data.Status)
	require.Len(t, envelope.Data.Checks, 2)
	assert.True(t, envelope.Data.Checks[0].OK)
	assert.False(t, envelope.Data.Checks[1].OK)
}
