package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/willow/internal/store"
)

var (
	_ store.Adapter       = (*Store)(nil)
	_ store.AtomicSwapper = (*Store)(nil)
)

// Store is the SQLite record store adapter.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Find returns matching rows ordered by created_at, then id.
func (s *Store) Find(ctx context.Context, entity store.Entity, filter store.Filter) ([]store.Row, error) {
	if err := store.CheckColumns(entity, filter); err != nil {
		return nil, err
	}
	cols, err := store.Columns(entity)
	if err != nil {
		return nil, err
	}
	names, _ := store.ColumnNames(entity)

	where, args := whereClause(filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at, id",
		strings.Join(names, ", "), entity, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", entity, err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", entity, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", entity, err)
	}
	return out, nil
}

// Insert stores a new row and returns its id.
func (s *Store) Insert(ctx context.Context, entity store.Entity, row store.Row) (string, error) {
	return insert(ctx, s.db, entity, row)
}

// Update applies patch to every row matching filter.
func (s *Store) Update(ctx context.Context, entity store.Entity, filter store.Filter, patch store.Row) (int64, error) {
	return update(ctx, s.db, entity, filter, patch)
}

// Delete removes every row matching filter.
func (s *Store) Delete(ctx context.Context, entity store.Entity, filter store.Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("delete %s: filter must not be empty", entity)
	}
	if err := store.CheckColumns(entity, filter); err != nil {
		return 0, err
	}
	where, args := whereClause(filter)
	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", entity, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", entity, err)
	}
	return result.RowsAffected()
}

// SwapActive deactivates the profile's active avatars and inserts row as the
// new active avatar inside one transaction.
func (s *Store) SwapActive(ctx context.Context, profileID string, row store.Row) (string, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback()

	deactivated, err := update(ctx, tx, store.Avatars,
		store.Filter{"profile_id": profileID, "is_active": true},
		store.Row{"is_active": false})
	if err != nil {
		return "", 0, err
	}

	row = row.Clone()
	row["profile_id"] = profileID
	row["is_active"] = true
	id, err := insert(ctx, tx, store.Avatars, row)
	if err != nil {
		return "", 0, err
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("commit swap: %w", err)
	}
	return id, deactivated, nil
}

func insert(ctx context.Context, q querier, entity store.Entity, row store.Row) (string, error) {
	prepared, err := store.PrepareInsert(entity, row)
	if err != nil {
		return "", err
	}
	keys := store.Filter(prepared).Keys()
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = prepared[k]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		entity, strings.Join(keys, ", "), placeholders)

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert %s: %w", entity, err)
	}
	return prepared.String("id"), nil
}

func update(ctx context.Context, q querier, entity store.Entity, filter store.Filter, patch store.Row) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("update %s: filter must not be empty", entity)
	}
	if len(patch) == 0 {
		return 0, nil
	}
	if _, ok := patch["id"]; ok {
		return 0, fmt.Errorf("update %s: id is immutable", entity)
	}
	if err := store.CheckColumns(entity, filter); err != nil {
		return 0, err
	}
	if err := store.CheckColumns(entity, patch); err != nil {
		return 0, err
	}

	setKeys := store.Filter(patch).Keys()
	sets := make([]string, len(setKeys))
	args := make([]any, 0, len(setKeys)+len(filter))
	for i, k := range setKeys {
		sets[i] = k + " = ?"
		args = append(args, patch[k])
	}
	where, whereArgs := whereClause(filter)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", entity, strings.Join(sets, ", "), where)
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", entity, err)
	}
	return result.RowsAffected()
}

// whereClause renders filter as " WHERE a = ? AND b IS NULL" with args.
// Column names have already been checked against the schema.
func whereClause(filter store.Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := filter.Keys()
	preds := make([]string, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		v := filter[k]
		if v == nil {
			preds[i] = k + " IS NULL"
			continue
		}
		preds[i] = k + " = ?"
		args = append(args, v)
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// scanRow scans the current row into a store.Row using the column kinds.
func scanRow(rows *sql.Rows, cols []store.Column) (store.Row, error) {
	dest := make([]any, len(cols))
	for i, c := range cols {
		switch c.Kind {
		case store.KindString:
			dest[i] = new(string)
		case store.KindNullString:
			dest[i] = new(sql.NullString)
		case store.KindBool:
			dest[i] = new(bool)
		case store.KindInt:
			dest[i] = new(int64)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	row := make(store.Row, len(cols))
	for i, c := range cols {
		switch v := dest[i].(type) {
		case *string:
			row[c.Name] = *v
		case *sql.NullString:
			if v.Valid {
				row[c.Name] = v.String
			} else {
				row[c.Name] = nil
			}
		case *bool:
			row[c.Name] = *v
		case *int64:
			row[c.Name] = *v
		}
	}
	return row, nil
}
