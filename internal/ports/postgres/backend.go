// Package postgres stores documents in a single PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ito/internal/ports"
	"ito/internal/ports/docstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS document_versions;
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT   NOT NULL,
	key        TEXT   NOT NULL,
	value      JSONB  NOT NULL,
	version    BIGINT NOT NULL,
	PRIMARY KEY (collection, key)
);`

// Backend is a docstore.Backend over pgx. Versions come from a sequence, so
// a deleted and recreated document never reuses one.
type Backend struct {
	pool *pgxpool.Pool
}

var _ docstore.Backend = (*Backend)(nil)

// NewBackend connects to connString and creates the documents table if needed.
func NewBackend(ctx context.Context, connString string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Backend{pool: pool}, nil
}

// Close releases the connection pool.
func (b *Backend) Close() {
	b.pool.Close()
}

func (b *Backend) Read(ctx context.Context, collection, key string) (*docstore.Object, error) {
	obj := &docstore.Object{Collection: collection, Key: key}
	var version int64
	row := b.pool.QueryRow(ctx, "SELECT value, version FROM documents WHERE collection = $1 AND key = $2", collection, key)
	if err := row.Scan(&obj.Value, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	obj.Version = strconv.FormatInt(version, 10)
	return obj, nil
}

func (b *Backend) List(ctx context.Context, collection, cursor string, limit int) ([]*docstore.Object, string, error) {
	query := "SELECT key, value, version FROM documents WHERE collection = $1 AND key > $2 ORDER BY key"
	args := []any{collection, cursor}
	if limit > 0 {
		// One extra row tells us whether another page exists.
		query += " LIMIT $3"
		args = append(args, limit+1)
	}
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []*docstore.Object
	for rows.Next() {
		obj := &docstore.Object{Collection: collection}
		var version int64
		if err := rows.Scan(&obj.Key, &obj.Value, &version); err != nil {
			return nil, "", fmt.Errorf("list %s: %w", collection, err)
		}
		obj.Version = strconv.FormatInt(version, 10)
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list %s: %w", collection, err)
	}

	next := ""
	if limit > 0 && len(out) > limit {
		out = out[:limit]
		next = out[len(out)-1].Key
	}
	return out, next, nil
}

func (b *Backend) Apply(ctx context.Context, writes []docstore.Write) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, w := range writes {
		if err := apply(ctx, tx, w); err != nil {
			return conflictOr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return conflictOr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func apply(ctx context.Context, tx pgx.Tx, w docstore.Write) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	switch {
	case w.Value == nil && w.Version == docstore.VersionAny:
		_, err = tx.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND key = $2", w.Collection, w.Key)
		return err
	case w.Value == nil && w.Version == docstore.VersionAbsent:
		var exists bool
		err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND key = $2)", w.Collection, w.Key).Scan(&exists)
		if err == nil && exists {
			return conflict(w, "exists")
		}
		return err
	case w.Value == nil:
		version, ok := parseVersion(w.Version)
		if !ok {
			return conflict(w, "unknown version")
		}
		tag, err = tx.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND key = $2 AND version = $3", w.Collection, w.Key, version)
	case w.Version == docstore.VersionAny:
		_, err = tx.Exec(ctx, `INSERT INTO documents (collection, key, value, version)
			VALUES ($1, $2, $3, nextval('document_versions'))
			ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value, version = EXCLUDED.version`,
			w.Collection, w.Key, w.Value)
		return err
	case w.Version == docstore.VersionAbsent:
		tag, err = tx.Exec(ctx, `INSERT INTO documents (collection, key, value, version)
			VALUES ($1, $2, $3, nextval('document_versions'))
			ON CONFLICT (collection, key) DO NOTHING`,
			w.Collection, w.Key, w.Value)
	default:
		version, ok := parseVersion(w.Version)
		if !ok {
			return conflict(w, "unknown version")
		}
		tag, err = tx.Exec(ctx, `UPDATE documents SET value = $3, version = nextval('document_versions')
			WHERE collection = $1 AND key = $2 AND version = $4`,
			w.Collection, w.Key, w.Value, version)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return conflict(w, "changed")
	}
	return nil
}

func parseVersion(v string) (int64, bool) {
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

func conflict(w docstore.Write, reason string) error {
	return fmt.Errorf("%w: %s/%s %s", docstore.ErrVersionConflict, w.Collection, w.Key, reason)
}

// conflictOr reports serialization failures and deadlocks as version
// conflicts so the store retries them.
func conflictOr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s", docstore.ErrVersionConflict, pgErr.Message)
		}
	}
	return err
}
