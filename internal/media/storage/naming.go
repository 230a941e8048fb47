// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/taibuivan/atelier/internal/media"
)

// randomSpan is the exclusive upper bound of the random name component.
const randomSpan = 1_000_000_000

// Namer generates collision-resistant stored names of the form
// {prefix}-{unixMillis}-{random}{extension}.
type Namer struct {
	Now   func() time.Time
	RandN func(n int) int
}

// NewNamer returns a Namer backed by the wall clock and math/rand.
func NewNamer() Namer {
	return Namer{Now: time.Now, RandN: rand.IntN}
}

// Name builds a stored file name for category with the given extension (".webp").
func (namer Namer) Name(category media.Category, extension string) string {
	return fmt.Sprintf("%s-%d-%d%s", category.Prefix(), namer.Now().UnixMilli(), namer.RandN(randomSpan), extension)
}

// Key joins the category directory and a stored name into a storage key.
func Key(category media.Category, storedName string) string {
	return category.Dir() + "/" + storedName
}
