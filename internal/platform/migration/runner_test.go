// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/atelier/internal/platform/migration"
)

func TestToPgx5DSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"postgres scheme", "postgres://u:p@db:5432/atelier", "pgx5://u:p@db:5432/atelier"},
		{"postgresql scheme", "postgresql://db/atelier?sslmode=disable", "pgx5://db/atelier?sslmode=disable"},
		{"already pgx5", "pgx5://db/atelier", "pgx5://db/atelier"},
		{"keyword dsn", "host=db dbname=atelier", "host=db dbname=atelier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, migration.ToPgx5DSN(tt.dsn))
		})
	}
}
