// Package pgstore is the Postgres record store adapter. Postgres enforces
// one active avatar per profile with a partial unique index, so swaps run as
// a single transaction.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hpungsan/willow/internal/store"
)

var (
	_ store.Adapter       = (*Store)(nil)
	_ store.AtomicSwapper = (*Store)(nil)
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// swapAttempts bounds retries when a concurrent swap wins the unique index.
const swapAttempts = 8

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    display_name TEXT NOT NULL,
    age_mode     TEXT NOT NULL,
    created_at   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(user_id, created_at);

CREATE TABLE IF NOT EXISTS avatars (
    id            TEXT PRIMARY KEY,
    profile_id    TEXT NOT NULL,
    skin_tone_id  TEXT NOT NULL,
    face_id       TEXT NOT NULL,
    hair_id       TEXT NOT NULL,
    hair_color_id TEXT NOT NULL,
    outfit_id     TEXT NOT NULL,
    accessory_id  TEXT,
    is_active     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_avatars_profile_created ON avatars(profile_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_avatars_one_active ON avatars(profile_id) WHERE is_active;
`

// Options tunes the connection pool. Zero values keep pgx defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects to dsn, checks the connection, and applies the schema.
func Open(ctx context.Context, dsn string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	cfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store is the Postgres record store adapter.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps a connected pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Find(ctx context.Context, entity store.Entity, filter store.Filter) ([]store.Row, error) {
	if err := store.CheckColumns(entity, filter); err != nil {
		return nil, err
	}
	cols, err := store.Columns(entity)
	if err != nil {
		return nil, err
	}
	names, _ := store.ColumnNames(entity)

	where, args := whereClause(filter, 1)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at, id",
		strings.Join(names, ", "), entity, where)

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) Insert(ctx context.Context, entity store.Entity, row store.Row) (string, error) {
	return insert(ctx, s.pool, entity, row)
}

func (s *Store) Update(ctx context.Context, entity store.Entity, filter store.Filter, patch store.Row) (int64, error) {
	return update(ctx, s.pool, entity, filter, patch)
}

func (s *Store) Delete(ctx context.Context, entity store.Entity, filter store.Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("delete %s: filter must not be empty", entity)
	}
	if err := store.CheckColumns(entity, filter); err != nil {
		return 0, err
	}
	where, args := whereClause(filter, 1)
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s%s", entity, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", entity, err)
	}
	return tag.RowsAffected(), nil
}

// SwapActive deactivates and inserts in one transaction. A concurrent swap
// that commits first surfaces as a unique violation on the active index; the
// transaction is then retried against the new state.
func (s *Store) SwapActive(ctx context.Context, profileID string, row store.Row) (string, int64, error) {
	row = row.Clone()
	row["profile_id"] = profileID
	row["is_active"] = true
	prepared, err := store.PrepareInsert(store.Avatars, row)
	if err != nil {
		return "", 0, err
	}

	var lastErr error
	for range swapAttempts {
		id, n, err := s.swapOnce(ctx, profileID, prepared)
		if err == nil {
			return id, n, nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
			return "", 0, err
		}
		lastErr = err
	}
	return "", 0, fmt.Errorf("swap active avatar: %w", lastErr)
}

func (s *Store) swapOnce(ctx context.Context, profileID string, row store.Row) (string, int64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", 0, fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := update(ctx, tx, store.Avatars,
		store.Filter{"profile_id": profileID, "is_active": true},
		store.Row{"is_active": false})
	if err != nil {
		return "", 0, err
	}
	id, err := insert(ctx, tx, store.Avatars, row)
	if err != nil {
		return "", 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", 0, fmt.Errorf("commit swap: %w", err)
	}
	return id, n, nil
}

func insert(ctx context.Context, q querier, entity store.Entity, row store.Row) (string, error) {
	prepared, err := store.PrepareInsert(entity, row)
	if err != nil {
		return "", err
	}
	keys := store.Filter(prepared).Keys()
	args := make([]any, len(keys))
	placeholders := make([]string, len(keys))
	for i, k := range keys {
		args[i] = prepared[k]
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		entity, strings.Join(keys, ", "), strings.Join(placeholders, ", "))

	if _, err := q.Exec(ctx, query, args...); err != nil {
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
		sets[i] = fmt.Sprintf("%s = $%d", k, i+1)
		args = append(args, patch[k])
	}
	where, whereArgs := whereClause(filter, len(args)+1)
	args = append(args, whereArgs...)

	tag, err := q.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s%s", entity, strings.Join(sets, ", "), where), args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", entity, err)
	}
	return tag.RowsAffected(), nil
}

// whereClause renders filter with numbered placeholders starting at next.
func whereClause(filter store.Filter, next int) (string, []any) {
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
		preds[i] = fmt.Sprintf("%s = $%d", k, next)
		next++
		args = append(args, v)
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

func scanRow(rows pgx.Rows, cols []store.Column) (store.Row, error) {
	dest := make([]any, len(cols))
	for i, c := range cols {
		switch c.Kind {
		case store.KindString:
			dest[i] = new(string)
		case store.KindNullString:
			dest[i] = new(*string)
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
		case **string:
			if *v != nil {
				row[c.Name] = **v
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
