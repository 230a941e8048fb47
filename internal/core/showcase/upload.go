// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package showcase

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/taibuivan/atelier/internal/platform/apperr"
	"github.com/taibuivan/atelier/internal/platform/constants"
	"github.com/taibuivan/atelier/internal/platform/validate"
)

// Upload is an image file received from a client.
type Upload struct {
	// Filename is the client-side name, used for display and alt text only.
	Filename string
	Data     []byte
}

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedMIMETypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

/*
ValidateUpload rejects an upload before any decoding or storage work happens.

Description: The extension and the sniffed content type must both name one of
JPEG, PNG, GIF or WebP, and the payload must not exceed the upload limit.

Returns:
  - error: apperr ValidationError or PayloadTooLarge, nil when acceptable
*/
func ValidateUpload(upload Upload) error {
	if len(upload.Data) == 0 {
		return validate.RequiredError(FieldImage, "No image file provided")
	}

	if int64(len(upload.Data)) > constants.MaxUploadBytes {
		return apperr.PayloadTooLarge(constants.MaxUploadBytes)
	}

	extension := strings.ToLower(path.Ext(upload.Filename))
	if !allowedExtensions[extension] {
		return validate.RequiredError(FieldImage, "Only image files are allowed (jpeg, jpg, png, gif, webp)")
	}

	if !isAllowedContent(mimetype.Detect(upload.Data)) {
		return validate.RequiredError(FieldImage, "File content is not a supported image")
	}

	return nil
}

func isAllowedContent(detected *mimetype.MIME) bool {
	for _, allowed := range allowedMIMETypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}
