// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrIncompleteS3Config is returned when a required S3 setting is empty.
var ErrIncompleteS3Config = errors.New("storage: incomplete S3 configuration")

// S3Config carries the connection settings for an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// S3 stores artifacts as objects in a bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewS3 builds a path-style client with static credentials.
func NewS3(config S3Config, logger *slog.Logger) (*S3, error) {
	if strings.TrimSpace(config.Bucket) == "" ||
		strings.TrimSpace(config.Endpoint) == "" ||
		strings.TrimSpace(config.AccessKeyID) == "" ||
		strings.TrimSpace(config.SecretAccessKey) == "" {
		return nil, ErrIncompleteS3Config
	}

	client := s3.New(s3.Options{
		UsePathStyle: true,
		BaseEndpoint: aws.String(config.Endpoint),
		Region:       config.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		),
	})

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   config.Bucket,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func (store *S3) Write(context context.Context, key string, data []byte, contentType string) error {
	timeoutContext, cancel := contextWithTimeout(context, store.timeout)
	defer cancel()

	result, err := store.uploader.Upload(timeoutContext, &s3.PutObjectInput{
		Bucket:       aws.String(store.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		var multipartFailure manager.MultiUploadFailure
		if errors.As(err, &multipartFailure) {
			return fmt.Errorf("storage: multipart upload %s failed (upload_id: %s): %w", key, multipartFailure.UploadID(), err)
		}
		return fmt.Errorf("storage: uploading %s: %w", key, err)
	}

	store.logger.Debug("s3_object_uploaded", slog.String("key", key), slog.String("location", result.Location))
	return nil
}

func (store *S3) Read(context context.Context, key string) ([]byte, error) {
	timeoutContext, cancel := contextWithTimeout(context, store.timeout)
	defer cancel()

	object, err := store.client.GetObject(timeoutContext, &s3.GetObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, store.classify(key, err)
	}
	defer func() {
		if closeErr := object.Body.Close(); closeErr != nil {
			store.logger.Warn("s3_body_close_failed", slog.String("key", key), slog.Any("error", closeErr))
		}
	}()

	data, err := io.ReadAll(object.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: reading %s: %w", key, err)
	}

	return data, nil
}

// Open buffers the object so that the handle can seek for range requests.
func (store *S3) Open(context context.Context, key string) (*Object, error) {
	data, err := store.Read(context, key)
	if err != nil {
		return nil, err
	}

	modTime := time.Time{}
	if head, headErr := store.head(context, key); headErr == nil && head.LastModified != nil {
		modTime = *head.LastModified
	}

	return &Object{
		ReadSeekCloser: nopSeekCloser{bytes.NewReader(data)},
		Size:           int64(len(data)),
		ModTime:        modTime,
	}, nil
}

func (store *S3) Delete(context context.Context, key string) error {
	// DeleteObject succeeds for absent keys, so existence is checked first.
	if _, err := store.head(context, key); err != nil {
		return err
	}

	timeoutContext, cancel := contextWithTimeout(context, store.timeout)
	defer cancel()

	if _, err := store.client.DeleteObject(timeoutContext, &s3.DeleteObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}

	return nil
}

func (store *S3) Exists(context context.Context, key string) (bool, error) {
	_, err := store.head(context, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (store *S3) head(context context.Context, key string) (*s3.HeadObjectOutput, error) {
	timeoutContext, cancel := contextWithTimeout(context, store.timeout)
	defer cancel()

	output, err := store.client.HeadObject(timeoutContext, &s3.HeadObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, store.classify(key, err)
	}
	return output, nil
}

// classify maps the SDK's missing-object errors onto ErrNotFound.
func (store *S3) classify(key string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("storage: s3 request for %s: %w", key, err)
}

func contextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
