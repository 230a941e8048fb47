// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package negotiate picks the image format to send based on the Accept header.
package negotiate

import (
	"mime"
	"strconv"
	"strings"

	"github.com/taibuivan/atelier/internal/media/transcode"
)

// webpMediaType is the token browsers advertise when they can decode WebP.
const webpMediaType = "image/webp"

// SelectFormat returns WebP when the Accept header lists image/webp, and JPEG otherwise.
func SelectFormat(accept string) transcode.Format {
	if WantsWebP(accept) {
		return transcode.FormatWebP
	}
	return transcode.FormatJPEG
}

// WantsWebP reports whether any media range in accept is image/webp with a
// non-zero q. Wildcards never select WebP. A range that does not parse is skipped.
func WantsWebP(accept string) bool {
	for _, mediaRange := range strings.Split(accept, ",") {
		mediaType, parameters, err := mime.ParseMediaType(mediaRange)
		if err != nil || mediaType != webpMediaType {
			continue
		}
		if quality(parameters) > 0 {
			return true
		}
	}
	return false
}

// quality returns the q parameter, defaulting to 1. A malformed value counts as refused.
func quality(parameters map[string]string) float64 {
	raw, ok := parameters["q"]
	if !ok {
		return 1
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
