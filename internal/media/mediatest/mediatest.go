// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package mediatest generates in-memory fixture images for tests.
package mediatest

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	_ "golang.org/x/image/webp"
)

// Gradient returns a width×height image with smoothly varying colour, which
// defeats palette shortcuts and exercises real resampling.
func Gradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(1, width-1)),
				G: uint8(y * 255 / max(1, height-1)),
				B: uint8((x + y) % 256),
				A: 0xff,
			})
		}
	}
	return img
}

// Flat returns a width×height image of a single colour.
func Flat(width, height int, fill color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

// JPEG encodes a gradient of the given size.
func JPEG(t testing.TB, width, height int) []byte {
	t.Helper()
	var buffer bytes.Buffer
	require.NoError(t, jpeg.Encode(&buffer, Gradient(width, height), &jpeg.Options{Quality: 90}))
	return buffer.Bytes()
}

// PNG encodes a gradient of the given size.
func PNG(t testing.TB, width, height int) []byte {
	t.Helper()
	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, Gradient(width, height)))
	return buffer.Bytes()
}

// GIF encodes a flat image of the given size.
func GIF(t testing.TB, width, height int) []byte {
	t.Helper()
	var buffer bytes.Buffer
	require.NoError(t, gif.Encode(&buffer, Flat(width, height, color.NRGBA{R: 200, A: 0xff}), nil))
	return buffer.Bytes()
}

// Dimensions decodes only the header of an encoded image.
func Dimensions(t testing.TB, data []byte) (width, height int, format string) {
	t.Helper()
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return config.Width, config.Height, format
}
