// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package showcase manages the photography site's content records and keeps each
record's canonical image artifact consistent with it.

Architecture:

  - Record: One row of a slider, featured work, featured-work image or service.
  - RecordStore: Persistence port, implemented by Postgres and by an in-memory store.
  - Coordinator: Create, replace and delete flows that pair every row change with
    the matching artifact write or removal and invalidate derived images.
  - Handler: The /api REST surface for the four kinds.

A record never references an artifact that was not fully written, and an
artifact written for a failed operation is removed before the error returns.
*/
package showcase

import (
	"time"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/platform/validate"
)

// # Record

// Record is a showcase item together with its canonical artifact.
// Which text fields apply depends on Kind.
type Record struct {
	ID       int64          `json:"id"`
	Kind     media.Category `json:"-"`
	ParentID *int64         `json:"featuredWorkId,omitempty"`

	media.Artifact

	Alt         string `json:"alt,omitempty"`
	Heading     string `json:"heading,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Images holds a featured work's ordered internal images when loaded.
	Images []*Record `json:"images,omitempty"`
}

// clone returns a copy that shares no mutable state with record.
func (record *Record) clone() *Record {
	copied := *record
	if record.ParentID != nil {
		parentID := *record.ParentID
		copied.ParentID = &parentID
	}
	if record.Width != nil {
		width := *record.Width
		copied.Width = &width
	}
	if record.Height != nil {
		height := *record.Height
		copied.Height = &height
	}
	copied.Images = nil
	return &copied
}

// DefaultSliderAlt is used when neither alt text nor a file name is available.
const DefaultSliderAlt = "Slider Image"

// Field names shared by validation errors and the JSON/multipart surface.
const (
	FieldImage       = "image"
	FieldAlt         = "alt"
	FieldHeading     = "heading"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldOrder       = "order"
	FieldParentID    = "featuredWorkId"
)

const (
	maxTextLength        = 255
	maxDescriptionLength = 5000
)

// # Fields

// Fields carries the optional metadata of a create or update. Nil means
// "leave unchanged".
type Fields struct {
	Alt         *string `json:"alt"`
	Heading     *string `json:"heading"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
}

// apply copies the fields relevant to record.Kind onto record.
func (fields Fields) apply(record *Record) {
	switch record.Kind {
	case media.CategorySlider:
		if fields.Alt != nil {
			record.Alt = *fields.Alt
		}
	case media.CategoryFeaturedWork:
		if fields.Heading != nil {
			record.Heading = *fields.Heading
		}
	case media.CategoryService:
		if fields.Title != nil {
			record.Title = *fields.Title
		}
		if fields.Description != nil {
			record.Description = *fields.Description
		}
	}

	if fields.Order != nil {
		record.Order = *fields.Order
	}
}

// validateRecord checks the kind-specific required text of a fully populated record.
func validateRecord(record *Record) error {
	validator := &validate.Validator{}

	switch record.Kind {
	case media.CategorySlider:
		validator.MaxLen(FieldAlt, record.Alt, maxTextLength)
	case media.CategoryFeaturedWork:
		validator.Required(FieldHeading, record.Heading).MaxLen(FieldHeading, record.Heading, maxTextLength)
	case media.CategoryService:
		validator.Required(FieldTitle, record.Title).MaxLen(FieldTitle, record.Title, maxTextLength)
		validator.Required(FieldDescription, record.Description).MaxLen(FieldDescription, record.Description, maxDescriptionLength)
	}

	validator.Custom(FieldOrder, record.Order < 0, "Must not be negative")

	return validator.Err()
}
