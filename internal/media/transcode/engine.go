// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package transcode converts uploaded images into canonical artifacts and
size-bounded derivatives.

Architecture:

  - Stateless: Apart from a concurrency ceiling, an [Engine] holds no state between calls.
  - Bounded: Decodes are gated by a weighted semaphore; callers beyond the ceiling queue.
  - Ground Truth: Output dimensions and format are always read back from the encoded bytes.

Supported inputs are JPEG, PNG, GIF (first frame) and WebP. Outputs are WebP,
JPEG and PNG.
*/
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

// # Errors

var (
	// ErrDecode is returned when the source is not a supported raster image.
	ErrDecode = errors.New("transcode: source image could not be decoded")

	// ErrUnsupportedFormat is returned when the requested output format is unknown.
	ErrUnsupportedFormat = errors.New("transcode: unsupported output format")

	// ErrInvalidOptions is returned for out-of-range quality or bounds.
	ErrInvalidOptions = errors.New("transcode: invalid options")
)

// MaxPixels caps the decoded size of a source image (16383 x 16383).
const MaxPixels = 0x3FFF * 0x3FFF

// # Formats

// Format is an output container.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat validates a format name, accepting "jpg" as an alias.
func ParseFormat(raw string) (Format, bool) {
	switch raw {
	case "webp":
		return FormatWebP, true
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	}
	return "", false
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Extension returns the file extension (with dot) used for stored files.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// # Options & Results

// Options controls a single transcode.
type Options struct {
	// Quality is the 1..100 encoder quality.
	Quality int

	// MaxWidth and MaxHeight bound the output. Nil leaves the axis unbounded.
	MaxWidth  *int
	MaxHeight *int

	// Format is the output container.
	Format Format
}

func (options Options) validate() error {
	if _, ok := ParseFormat(string(options.Format)); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, options.Format)
	}
	if options.Quality < 1 || options.Quality > 100 {
		return fmt.Errorf("%w: quality %d outside 1..100", ErrInvalidOptions, options.Quality)
	}
	if options.MaxWidth != nil && *options.MaxWidth < 1 {
		return fmt.Errorf("%w: max width must be positive", ErrInvalidOptions)
	}
	if options.MaxHeight != nil && *options.MaxHeight < 1 {
		return fmt.Errorf("%w: max height must be positive", ErrInvalidOptions)
	}
	return nil
}

// Result is the encoded artifact and its measured metadata.
type Result struct {
	Data   []byte
	Width  int
	Height int
	Format Format
}

// # Engine

// Engine transcodes images with a bounded number of concurrent decodes.
type Engine struct {
	slots *semaphore.Weighted
}

// NewEngine creates an engine allowing at most concurrency simultaneous transcodes.
func NewEngine(concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{slots: semaphore.NewWeighted(int64(concurrency))}
}

/*
Transcode decodes src, fits it inside the requested bounds and encodes it.

Parameters:
  - context: Cancels only the wait for a free slot; a started transcode runs to completion
  - source: Raw image bytes
  - options: Quality, bounds and output format

Returns:
  - *Result: Encoded bytes with dimensions read back from the output
  - error: ErrUnsupportedFormat, ErrInvalidOptions, ErrDecode or context errors
*/
func (engine *Engine) Transcode(context context.Context, source []byte, options Options) (*Result, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}

	// The header alone must fit the pixel ceiling before a full decode allocates.
	header, _, err := image.DecodeConfig(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(header.Width)*int64(header.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, header.Width, header.Height, MaxPixels)
	}

	if err := engine.slots.Acquire(context, 1); err != nil {
		return nil, fmt.Errorf("transcode: waiting for a slot: %w", err)
	}
	defer engine.slots.Release(1)

	img, err := imaging.Decode(bytes.NewReader(source), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	width, height := FitInside(bounds.Dx(), bounds.Dy(), options.MaxWidth, options.MaxHeight)
	if width != bounds.Dx() || height != bounds.Dy() {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}

	var buffer bytes.Buffer
	if err := encode(&buffer, img, options); err != nil {
		return nil, err
	}

	return measure(buffer.Bytes())
}

/*
TranscodeTo transcodes source and writes the artifact to destination.

The file is written to a sibling temporary name and renamed into place, so a
reader never observes a partial artifact. Metadata is read back from the file
that was written.
*/
func (engine *Engine) TranscodeTo(context context.Context, source []byte, destination string, options Options) (*Result, error) {
	result, err := engine.Transcode(context, source, options)
	if err != nil {
		return nil, err
	}

	if err := WriteFileAtomic(destination, result.Data); err != nil {
		return nil, err
	}

	written, err := os.ReadFile(destination)
	if err != nil {
		return nil, fmt.Errorf("transcode: re-reading %s: %w", destination, err)
	}

	return measure(written)
}

// measure decodes only the header of an encoded artifact.
func measure(data []byte) (*Result, error) {
	config, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: reading encoded output: %v", ErrDecode, err)
	}

	format, ok := ParseFormat(name)
	if !ok {
		return nil, fmt.Errorf("%w: encoder produced %q", ErrUnsupportedFormat, name)
	}

	return &Result{
		Data:   data,
		Width:  config.Width,
		Height: config.Height,
		Format: format,
	}, nil
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("transcode: creating %s: %w", directory, err)
	}

	temporary := filepath.Join(directory, "."+uuid.NewString()+".part")
	if err := os.WriteFile(temporary, data, 0o644); err != nil {
		return fmt.Errorf("transcode: writing %s: %w", temporary, err)
	}

	if err := os.Rename(temporary, path); err != nil {
		_ = os.Remove(temporary)
		return fmt.Errorf("transcode: renaming into %s: %w", path, err)
	}

	return nil
}
