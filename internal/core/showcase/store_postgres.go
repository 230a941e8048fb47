// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package showcase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/atelier/internal/media"
	"github.com/taibuivan/atelier/internal/platform/apperr"
	"github.com/taibuivan/atelier/internal/platform/database/schema"
	"github.com/taibuivan/atelier/internal/platform/dberr"
)

// PostgresStore persists records in the showcase schema, one table per kind.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// # Column Bindings

// binding ties a column to the Record field it scans into and writes from.
type binding struct {
	column string
	target func(*Record) any
	value  func(*Record) any
	insert bool
	update bool
}

func tableFor(kind media.Category) (schema.ShowcaseTable, error) {
	switch kind {
	case media.CategorySlider:
		return schema.ShowcaseSlider, nil
	case media.CategoryFeaturedWork:
		return schema.ShowcaseFeaturedWork, nil
	case media.CategoryFeaturedWorkImage:
		return schema.ShowcaseFeaturedWorkImage, nil
	case media.CategoryService:
		return schema.ShowcaseService, nil
	default:
		return schema.ShowcaseTable{}, apperr.Internal(fmt.Errorf("showcase: no table for kind %q", kind))
	}
}

// bindingsFor lists the table's columns in [schema.ShowcaseTable.Columns] order.
func bindingsFor(table schema.ShowcaseTable) []binding {
	all := []binding{
		{table.ID, func(r *Record) any { return &r.ID }, nil, false, false},
		{table.ParentID, func(r *Record) any { return &r.ParentID }, func(r *Record) any { return r.ParentID }, true, false},
		{table.Filename, func(r *Record) any { return &r.StoredName }, func(r *Record) any { return r.StoredName }, true, true},
		{table.OriginalName, func(r *Record) any { return &r.OriginalName }, func(r *Record) any { return r.OriginalName }, true, true},
		{table.Path, func(r *Record) any { return &r.StoragePath }, func(r *Record) any { return r.StoragePath }, true, true},
		{table.URL, func(r *Record) any { return &r.PublicURL }, func(r *Record) any { return r.PublicURL }, true, true},
		{table.Width, func(r *Record) any { return &r.Width }, func(r *Record) any { return r.Width }, true, true},
		{table.Height, func(r *Record) any { return &r.Height }, func(r *Record) any { return r.Height }, true, true},
		{table.Format, func(r *Record) any { return &r.Format }, func(r *Record) any { return r.Format }, true, true},
		{table.Alt, func(r *Record) any { return &r.Alt }, func(r *Record) any { return r.Alt }, true, true},
		{table.Heading, func(r *Record) any { return &r.Heading }, func(r *Record) any { return r.Heading }, true, true},
		{table.Title, func(r *Record) any { return &r.Title }, func(r *Record) any { return r.Title }, true, true},
		{table.Description, func(r *Record) any { return &r.Description }, func(r *Record) any { return r.Description }, true, true},
		{table.SortOrder, func(r *Record) any { return &r.Order }, func(r *Record) any { return r.Order }, true, true},
		{table.CreatedAt, func(r *Record) any { return &r.CreatedAt }, nil, false, false},
		{table.UpdatedAt, func(r *Record) any { return &r.UpdatedAt }, nil, false, false},
	}

	bindings := make([]binding, 0, len(all))
	for _, b := range all {
		if b.column != "" {
			bindings = append(bindings, b)
		}
	}
	return bindings
}

func scanTargets(bindings []binding, record *Record) []any {
	targets := make([]any, len(bindings))
	for i, b := range bindings {
		targets[i] = b.target(record)
	}
	return targets
}

func selectClause(table schema.ShowcaseTable) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(table.Columns(), ", "), table.Table)
}

// # Queries

func (repository *PostgresStore) Find(context context.Context, kind media.Category, id int64) (*Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := selectClause(table) + fmt.Sprintf(" WHERE %s = $1", table.ID)

	record := &Record{Kind: kind}
	err = repository.db.QueryRow(context, query, id).Scan(scanTargets(bindingsFor(table), record)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(kind.Label())
	}
	if err != nil {
		return nil, dberr.Wrap(err, "find_"+table.Table)
	}

	record.Category = kind
	return record, nil
}

func (repository *PostgresStore) List(context context.Context, kind media.Category) ([]*Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := selectClause(table) + fmt.Sprintf(" ORDER BY %s ASC, %s DESC, %s DESC",
		table.SortOrder, table.CreatedAt, table.ID,
	)

	return repository.query(context, kind, table, query)
}

func (repository *PostgresStore) ListChildren(context context.Context, parentID int64) ([]*Record, error) {
	table := schema.ShowcaseFeaturedWorkImage

	query := selectClause(table) + fmt.Sprintf(" WHERE %s = $1 ORDER BY %s ASC, %s ASC, %s ASC",
		table.ParentID, table.SortOrder, table.CreatedAt, table.ID,
	)

	return repository.query(context, media.CategoryFeaturedWorkImage, table, query, parentID)
}

func (repository *PostgresStore) query(context context.Context, kind media.Category, table schema.ShowcaseTable, query string, args ...any) ([]*Record, error) {
	rows, err := repository.db.Query(context, query, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "list_"+table.Table)
	}
	defer rows.Close()

	bindings := bindingsFor(table)
	records := []*Record{}

	for rows.Next() {
		record := &Record{Kind: kind}
		if err := rows.Scan(scanTargets(bindings, record)...); err != nil {
			return nil, dberr.Wrap(err, "scan_"+table.Table)
		}
		record.Category = kind
		records = append(records, record)
	}

	return records, dberr.Wrap(rows.Err(), "iterate_"+table.Table)
}

// # Commands

func (repository *PostgresStore) Create(context context.Context, record *Record) error {
	table, err := tableFor(record.Kind)
	if err != nil {
		return err
	}

	var columns, placeholders []string
	var args []any
	for _, b := range bindingsFor(table) {
		if !b.insert {
			continue
		}
		args = append(args, b.value(record))
		columns = append(columns, b.column)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s)
		VALUES (%s, NOW(), NOW())
		RETURNING %s, %s, %s
	`,
		table.Table, strings.Join(columns, ", "), table.CreatedAt, table.UpdatedAt,
		strings.Join(placeholders, ", "),
		table.ID, table.CreatedAt, table.UpdatedAt,
	)

	err = repository.db.QueryRow(context, query, args...).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	return dberr.Wrap(err, "create_"+table.Table)
}

func (repository *PostgresStore) Update(context context.Context, record *Record) error {
	table, err := tableFor(record.Kind)
	if err != nil {
		return err
	}

	args := []any{record.ID}
	var assignments []string
	for _, b := range bindingsFor(table) {
		if !b.update {
			continue
		}
		args = append(args, b.value(record))
		assignments = append(assignments, fmt.Sprintf("%s = $%d", b.column, len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s, %s = NOW()
		WHERE %s = $1
		RETURNING %s
	`,
		table.Table, strings.Join(assignments, ", "), table.UpdatedAt,
		table.ID,
		table.UpdatedAt,
	)

	err = repository.db.QueryRow(context, query, args...).Scan(&record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(record.Kind.Label())
	}
	return dberr.Wrap(err, "update_"+table.Table)
}

// Delete removes a row. Featured-work images go with their parent via ON DELETE CASCADE.
func (repository *PostgresStore) Delete(context context.Context, kind media.Category, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table.Table, table.ID)

	cmd, err := repository.db.Exec(context, query, id)
	if err != nil {
		return dberr.Wrap(err, "delete_"+table.Table)
	}

	if cmd.RowsAffected() == 0 {
		return apperr.NotFound(kind.Label())
	}
	return nil
}
