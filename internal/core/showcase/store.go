// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package showcase

import (
	"context"

	"github.com/taibuivan/atelier/internal/media"
)

// RecordStore persists showcase records.
//
// Implementations return apperr.NotFound when a record is missing, and delete a
// featured work's images together with it.
type RecordStore interface {
	Find(context context.Context, kind media.Category, id int64) (*Record, error)
	List(context context.Context, kind media.Category) ([]*Record, error)
	ListChildren(context context.Context, parentID int64) ([]*Record, error)
	Create(context context.Context, record *Record) error
	Update(context context.Context, record *Record) error
	Delete(context context.Context, kind media.Category, id int64) error
}
