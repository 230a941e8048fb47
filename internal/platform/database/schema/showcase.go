// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ShowcaseTable represents one of the 'showcase.*' record tables.
// Columns a table does not have are left empty.
type ShowcaseTable struct {
	Table        string
	ID           string
	ParentID     string
	Filename     string
	OriginalName string
	Path         string
	URL          string
	Width        string
	Height       string
	Format       string
	Alt          string
	Heading      string
	Title        string
	Description  string
	SortOrder    string
	CreatedAt    string
	UpdatedAt    string
}

// artifactColumns are shared by every showcase table.
var artifactColumns = ShowcaseTable{
	ID:           "id",
	Filename:     "filename",
	OriginalName: "originalname",
	Path:         "path",
	URL:          "url",
	Width:        "width",
	Height:       "height",
	Format:       "format",
	SortOrder:    "sortorder",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}

// ShowcaseSlider is the schema definition for showcase.slider
var ShowcaseSlider = func() ShowcaseTable {
	t := artifactColumns
	t.Table = "showcase.slider"
	t.Alt = "alt"
	return t
}()

// ShowcaseFeaturedWork is the schema definition for showcase.featuredwork
var ShowcaseFeaturedWork = func() ShowcaseTable {
	t := artifactColumns
	t.Table = "showcase.featuredwork"
	t.Heading = "heading"
	return t
}()

// ShowcaseFeaturedWorkImage is the schema definition for showcase.featuredworkimage
var ShowcaseFeaturedWorkImage = func() ShowcaseTable {
	t := artifactColumns
	t.Table = "showcase.featuredworkimage"
	t.ParentID = "featuredworkid"
	return t
}()

// ShowcaseService is the schema definition for showcase.service
var ShowcaseService = func() ShowcaseTable {
	t := artifactColumns
	t.Table = "showcase.service"
	t.Title = "title"
	t.Description = "description"
	return t
}()

// Columns lists the table's columns in a fixed order, skipping absent ones.
func (t ShowcaseTable) Columns() []string {
	all := []string{
		t.ID, t.ParentID, t.Filename, t.OriginalName, t.Path, t.URL, t.Width, t.Height, t.Format,
		t.Alt, t.Heading, t.Title, t.Description, t.SortOrder, t.CreatedAt, t.UpdatedAt,
	}
	columns := make([]string, 0, len(all))
	for _, column := range all {
		if column != "" {
			columns = append(columns, column)
		}
	}
	return columns
}
