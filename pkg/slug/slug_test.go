// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/atelier/pkg/slug"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Golden Hour", "golden-hour"},
		{"Été à Nice", "ete-a-nice"},
		{"  --Studio__Portraits--  ", "studio-portraits"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, slug.From(tt.input), tt.input)
	}
}

/*
TestFilename verifies upload names are flattened to a safe display form.
*/
func TestFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Beach Sunset.JPG", "beach-sunset.jpg"},
		{"Été à Nice.jpeg", "ete-a-nice.jpeg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\wedding 01.png`, "wedding-01.png"},
		{".webp", "image.webp"},
		{"", "image"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, slug.Filename(tt.input), tt.input)
	}
}
