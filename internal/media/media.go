// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package media defines the vocabulary shared by the image pipeline: record
categories, size tiers and the canonical artifact descriptor.

Architecture:

  - Category: One of the four showcase record kinds. Each owns a storage directory and a file prefix.
  - Tier: A named bounding box used by the derivative cache.
  - Artifact: The single stored file backing a record's image slot.

The package has no dependencies on storage, transcoding or HTTP so that every
other media package can import it.
*/
package media

import (
	"path"
	"strings"
)

// # Categories

// Category identifies which kind of showcase record owns an artifact.
type Category string

const (
	CategorySlider            Category = "slider"
	CategoryFeaturedWork      Category = "featured-work"
	CategoryFeaturedWorkImage Category = "featured-work-image"
	CategoryService           Category = "service"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{
	CategorySlider,
	CategoryFeaturedWork,
	CategoryFeaturedWorkImage,
	CategoryService,
}

// ParseCategory validates a raw path segment.
func ParseCategory(raw string) (Category, bool) {
	for _, category := range Categories {
		if string(category) == raw {
			return category, true
		}
	}
	return "", false
}

// Dir is the category's directory relative to the upload root.
func (c Category) Dir() string {
	switch c {
	case CategorySlider:
		return "sliders"
	case CategoryFeaturedWork:
		return "featured-works"
	case CategoryFeaturedWorkImage:
		return "featured-works/images"
	case CategoryService:
		return "services"
	default:
		return ""
	}
}

// Prefix is prepended to every stored file name of the category.
func (c Category) Prefix() string {
	switch c {
	case CategorySlider:
		return "slider"
	case CategoryFeaturedWork:
		return "featured"
	case CategoryFeaturedWorkImage:
		return "featured-internal"
	case CategoryService:
		return "service"
	default:
		return ""
	}
}

// Label is the human readable name used in error messages.
func (c Category) Label() string {
	switch c {
	case CategorySlider:
		return "Slider image"
	case CategoryFeaturedWork:
		return "Featured work"
	case CategoryFeaturedWorkImage:
		return "Featured work image"
	case CategoryService:
		return "Service"
	default:
		return "Record"
	}
}

// # Size Tiers

// Tier names a derivative bounding box.
type Tier string

const (
	TierThumb    Tier = "thumb"
	TierMedium   Tier = "medium"
	TierLarge    Tier = "large"
	TierOriginal Tier = "original"
)

// ParseTier validates a raw path segment.
func ParseTier(raw string) (Tier, bool) {
	switch tier := Tier(raw); tier {
	case TierThumb, TierMedium, TierLarge, TierOriginal:
		return tier, true
	}
	return "", false
}

// Bounds returns the square bounding box edge for the tier.
// The original tier has no bound and reports ok=false.
func (t Tier) Bounds() (edge int, ok bool) {
	switch t {
	case TierThumb:
		return 300, true
	case TierMedium:
		return 800, true
	case TierLarge:
		return 1920, true
	default:
		return 0, false
	}
}

// # Canonical Artifact

// UploadsRoute is the public URL prefix under which artifacts are served.
const UploadsRoute = "/uploads/"

// Artifact describes the one stored file backing a record's image slot.
type Artifact struct {
	Category     Category `json:"-"`
	StoredName   string   `json:"filename"`
	OriginalName string   `json:"originalName"`
	StoragePath  string   `json:"path"`
	PublicURL    string   `json:"url"`
	Width        *int     `json:"width"`
	Height       *int     `json:"height"`
	Format       string   `json:"format"`
}

// NewArtifact derives the storage path and public URL from category and stored name.
func NewArtifact(category Category, storedName, originalName, format string, width, height int) Artifact {
	storagePath := path.Join(category.Dir(), storedName)
	return Artifact{
		Category:     category,
		StoredName:   storedName,
		OriginalName: originalName,
		StoragePath:  storagePath,
		PublicURL:    UploadsRoute + storagePath,
		Width:        &width,
		Height:       &height,
		Format:       format,
	}
}

// FormatFromName infers a legacy artifact's format from its extension.
func FormatFromName(name string) string {
	extension := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if extension == "jpg" {
		return "jpeg"
	}
	return extension
}
