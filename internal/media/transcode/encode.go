// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package transcode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/gen2brain/webp"
)

// # Geometry

// FitInside scales width×height to fit inside the optional bounds while
// preserving the aspect ratio. It never enlarges and never returns a zero edge.
func FitInside(width, height int, maxWidth, maxHeight *int) (int, int) {
	scale := 1.0
	if maxWidth != nil && width > *maxWidth {
		scale = math.Min(scale, float64(*maxWidth)/float64(width))
	}
	if maxHeight != nil && height > *maxHeight {
		scale = math.Min(scale, float64(*maxHeight)/float64(height))
	}
	if scale >= 1 {
		return width, height
	}

	fittedWidth := max(1, int(math.Round(float64(width)*scale)))
	fittedHeight := max(1, int(math.Round(float64(height)*scale)))

	if maxWidth != nil {
		fittedWidth = min(fittedWidth, *maxWidth)
	}
	if maxHeight != nil {
		fittedHeight = min(fittedHeight, *maxHeight)
	}

	return fittedWidth, fittedHeight
}

// # Encoders

// webpMethod is libwebp's slowest, best-compressing effort level.
const webpMethod = 6

// paletteLimit is the largest palette PNG supports.
const paletteLimit = 256

func encode(writer io.Writer, img image.Image, options Options) error {
	var err error

	switch options.Format {
	case FormatWebP:
		err = webp.Encode(writer, img, webp.Options{
			Quality:  options.Quality,
			Method:   webpMethod,
			Lossless: false,
		})
	case FormatJPEG:
		err = jpeg.Encode(writer, flatten(img), &jpeg.Options{Quality: options.Quality})
	case FormatPNG:
		encoder := png.Encoder{CompressionLevel: pngCompression(options.Quality)}
		err = encoder.Encode(writer, reducePalette(img, options.Quality))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, options.Format)
	}

	if err != nil {
		return fmt.Errorf("transcode: encoding %s: %w", options.Format, err)
	}
	return nil
}

// flatten composites translucent images onto white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}

	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

// pngCompression maps quality onto deflate effort. Higher quality spends more effort.
func pngCompression(quality int) png.CompressionLevel {
	switch {
	case quality >= 90:
		return png.BestCompression
	case quality >= 50:
		return png.DefaultCompression
	default:
		return png.BestSpeed
	}
}

// reducePalette converts img to a paletted image when that is lossless or when
// quality allows it. Quality controls dithering: Floyd–Steinberg at 50 and above.
func reducePalette(img image.Image, quality int) image.Image {
	bounds := img.Bounds()

	if palette, ok := exactPalette(img, paletteLimit); ok {
		paletted := image.NewPaletted(bounds, palette)
		draw.Draw(paletted, bounds, img, bounds.Min, draw.Src)
		return paletted
	}

	if quality >= 100 {
		return img
	}

	quantizer := quantize.MedianCutQuantizer{}
	palette := quantizer.Quantize(make(color.Palette, 0, paletteLimit), img)
	paletted := image.NewPaletted(bounds, palette)

	if quality >= 50 {
		draw.FloydSteinberg.Draw(paletted, bounds, img, bounds.Min)
	} else {
		draw.Draw(paletted, bounds, img, bounds.Min, draw.Src)
	}

	return paletted
}

// exactPalette collects the distinct colours of img, giving up past limit.
func exactPalette(img image.Image, limit int) (color.Palette, bool) {
	bounds := img.Bounds()
	seen := make(map[color.NRGBA]struct{}, limit)
	palette := make(color.Palette, 0, limit)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixel := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if _, ok := seen[pixel]; ok {
				continue
			}
			if len(palette) == limit {
				return nil, false
			}
			seen[pixel] = struct{}{}
			palette = append(palette, pixel)
		}
	}

	return palette, true
}
